package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when the selected provider needs a key and none is configured.
var ErrNoAPIKey = errors.New("no API key configured")

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// apiKeyEnv returns the provider's conventional key variable.
func apiKeyEnv(p Provider) string {
	switch p {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// GetAPIKey returns the API key for the configured provider.
// It checks in order: the provider's environment variable, then the config.
func GetAPIKey(cfg *Config) (string, error) {
	key, _ := resolveAPIKey(cfg)
	if key == "" {
		return "", ErrNoAPIKey
	}
	return key, nil
}

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	_, src := resolveAPIKey(cfg)
	return src
}

func resolveAPIKey(cfg *Config) (string, KeySource) {
	if cfg == nil {
		return "", KeySourceNone
	}
	if env := apiKeyEnv(cfg.Backend.Provider); env != "" {
		if key := os.Getenv(env); key != "" {
			return key, KeySourceEnv
		}
	}
	if cfg.Backend.APIKey != "" {
		// Expand any remaining env var references
		key := os.ExpandEnv(cfg.Backend.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, KeySourceConfig
		}
	}
	return "", KeySourceNone
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// Redacted returns a copy of cfg safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	out.Backend.APIKey = MaskAPIKey(c.Backend.APIKey)
	return &out
}
