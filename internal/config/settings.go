package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ubq-testing/label-base-rate-watcher/internal/domain/model"
)

// LoadSettings reads bot settings from a YAML file. An empty path yields the
// default settings. The result has defaults applied and is validated.
func LoadSettings(path string) (model.Settings, error) {
	if path == "" {
		return model.DefaultSettings(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return model.Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}

	settings, err := ParseSettings(data)
	if err != nil {
		return model.Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return settings, nil
}

// ParseSettings decodes YAML bot settings. Keys the watcher does not read are
// ignored, so a full organization config file can be passed as is. An empty
// document yields the defaults.
func ParseSettings(data []byte) (model.Settings, error) {
	var settings model.Settings

	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
		return model.Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return model.Settings{}, err
	}
	return settings, nil
}
