// Package config loads application configuration from environment variables
// and bot settings from YAML.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken    string
	ListenAddr     string
	DBPath         string
	WebhookSecret  string
	SettingsPath   string
	RequestTimeout time.Duration
}

// HasGitHubToken returns true when a fallback GitHub token is configured.
// Without one, only plugin requests that carry their own token can be served.
func (c *Config) HasGitHubToken() bool {
	return c.GitHubToken != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional. Defaults: BASEWATCHER_LISTEN_ADDR (127.0.0.1:8080),
// BASEWATCHER_DB_PATH (basewatcher.db), BASEWATCHER_REQUEST_TIMEOUT (10m).
// BASEWATCHER_GITHUB_TOKEN, BASEWATCHER_WEBHOOK_SECRET and BASEWATCHER_SETTINGS_PATH
// default to empty.
func Load() (*Config, error) {
	requestTimeout := 10 * time.Minute
	if v, ok := os.LookupEnv("BASEWATCHER_REQUEST_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("BASEWATCHER_REQUEST_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("BASEWATCHER_REQUEST_TIMEOUT must be positive, got %s", parsed)
		}
		requestTimeout = parsed
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("BASEWATCHER_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "basewatcher.db"
	if v, ok := os.LookupEnv("BASEWATCHER_DB_PATH"); ok {
		dbPath = v
	}

	return &Config{
		GitHubToken:    os.Getenv("BASEWATCHER_GITHUB_TOKEN"),
		ListenAddr:     listenAddr,
		DBPath:         dbPath,
		WebhookSecret:  os.Getenv("BASEWATCHER_WEBHOOK_SECRET"),
		SettingsPath:   os.Getenv("BASEWATCHER_SETTINGS_PATH"),
		RequestTimeout: requestTimeout,
	}, nil
}
