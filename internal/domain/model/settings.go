package model

import (
	"errors"
	"fmt"
)

// Settings is the subset of the organization bot configuration the watcher
// consumes. Field tags follow the keys of the YAML config file and the JSON
// settings object delivered by the plugin kernel.
type Settings struct {
	Labels   LabelSettings   `json:"labels" yaml:"labels"`
	Payments PaymentSettings `json:"payments" yaml:"payments"`
	Features FeatureSettings `json:"features" yaml:"features"`
}

// LabelSettings lists the configured time and priority labels.
type LabelSettings struct {
	Time     []string `json:"time" yaml:"time"`
	Priority []string `json:"priority" yaml:"priority"`
}

// PaymentSettings carries the organization-wide price multiplier.
type PaymentSettings struct {
	BasePriceMultiplier *float64 `json:"basePriceMultiplier,omitempty" yaml:"basePriceMultiplier,omitempty"`
}

// FeatureSettings toggles optional behaviour.
type FeatureSettings struct {
	AssistivePricing bool `json:"assistivePricing" yaml:"assistivePricing"`
}

// Default label sets applied when the configuration leaves them empty.
var (
	DefaultTimeLabels = []string{
		"Time: <1 Hour",
		"Time: <2 Hours",
		"Time: <4 Hours",
		"Time: <1 Day",
		"Time: <1 Week",
	}
	DefaultPriorityLabels = []string{
		"Priority: 1 (Normal)",
		"Priority: 2 (Medium)",
		"Priority: 3 (High)",
		"Priority: 4 (Urgent)",
		"Priority: 5 (Emergency)",
	}
)

// DefaultBasePriceMultiplier is used when the configuration omits one.
const DefaultBasePriceMultiplier = 1.0

// DefaultSettings returns a fully populated Settings value.
func DefaultSettings() Settings {
	var s Settings
	s.ApplyDefaults()
	return s
}

// ApplyDefaults fills every empty field with its default value.
func (s *Settings) ApplyDefaults() {
	if len(s.Labels.Time) == 0 {
		s.Labels.Time = append([]string(nil), DefaultTimeLabels...)
	}
	if len(s.Labels.Priority) == 0 {
		s.Labels.Priority = append([]string(nil), DefaultPriorityLabels...)
	}
	if s.Payments.BasePriceMultiplier == nil {
		s.Payments.BasePriceMultiplier = Float64Ptr(DefaultBasePriceMultiplier)
	}
}

// BasePriceMultiplier returns the configured multiplier, or the default.
func (s Settings) BasePriceMultiplier() float64 {
	if s.Payments.BasePriceMultiplier == nil {
		return DefaultBasePriceMultiplier
	}
	return *s.Payments.BasePriceMultiplier
}

// ErrInvalidSettings is returned by Validate for settings that cannot be used.
var ErrInvalidSettings = errors.New("invalid settings")

// Validate checks a defaulted Settings value.
func (s Settings) Validate() error {
	var errs []error
	if s.BasePriceMultiplier() < 0 {
		errs = append(errs, fmt.Errorf("payments.basePriceMultiplier: must be >= 0, got %v", s.BasePriceMultiplier()))
	}
	for i, l := range s.Labels.Time {
		if ClassifyLabel(l) != LabelKindTime {
			errs = append(errs, fmt.Errorf("labels.time[%d]: %q is not a time label", i, l))
		}
	}
	for i, l := range s.Labels.Priority {
		if ClassifyLabel(l) != LabelKindPriority {
			errs = append(errs, fmt.Errorf("labels.priority[%d]: %q is not a priority label", i, l))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
	}
	return nil
}
