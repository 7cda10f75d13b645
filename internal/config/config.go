// Package config handles configuration loading and management for proposer.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names a text-generation backend.
type Provider string

const (
	// ProviderAnthropic uses the Anthropic Messages API, directly or through AWS Bedrock.
	ProviderAnthropic Provider = "anthropic"
	// ProviderOpenAI uses any OpenAI-compatible chat completion endpoint.
	ProviderOpenAI Provider = "openai"
	// ProviderOllama uses a local Ollama server.
	ProviderOllama Provider = "ollama"
	// ProviderEcho answers offline with deterministic text.
	ProviderEcho Provider = "echo"
)

// Config holds all configuration for proposer.
type Config struct {
	Backend      BackendConfig      `mapstructure:"backend" yaml:"backend"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator" yaml:"orchestrator"`
	Storage      StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Tracing      TracingConfig      `mapstructure:"tracing" yaml:"tracing"`
}

// BackendConfig selects and configures the text-generation backend.
type BackendConfig struct {
	Provider   Provider `mapstructure:"provider" yaml:"provider"`
	Model      string   `mapstructure:"model" yaml:"model"`
	APIKey     string   `mapstructure:"api_key" yaml:"api_key"`
	BaseURL    string   `mapstructure:"base_url" yaml:"base_url"`
	UseBedrock bool     `mapstructure:"use_bedrock" yaml:"use_bedrock"`
	AWSRegion  string   `mapstructure:"aws_region" yaml:"aws_region"`
	AWSProfile string   `mapstructure:"aws_profile" yaml:"aws_profile"`
	MaxTokens  int      `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// OrchestratorConfig holds concurrency and retry settings.
type OrchestratorConfig struct {
	Workers           int           `mapstructure:"workers" yaml:"workers"`
	JobTimeout        time.Duration `mapstructure:"job_timeout" yaml:"job_timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay" yaml:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay" yaml:"retry_max_delay"`
	MaxBriefBytes     int           `mapstructure:"max_brief_bytes" yaml:"max_brief_bytes"`
}

// StorageConfig holds report persistence settings.
type StorageConfig struct {
	// DBPath is the SQLite database file. Empty means the XDG data directory.
	DBPath    string        `mapstructure:"db_path" yaml:"db_path"`
	ExportDir string        `mapstructure:"export_dir" yaml:"export_dir"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// File receives JSON log lines in addition to stderr. Empty disables it.
	File string `mapstructure:"file" yaml:"file"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
	Exporter     string  `mapstructure:"exporter" yaml:"exporter"`
	FilePath     string  `mapstructure:"file_path" yaml:"file_path"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (PROPOSER_SECTION_KEY, ANTHROPIC_API_KEY, OPENAI_API_KEY)
// 2. Project config (.proposer.yaml in current directory or parent)
// 3. User config (~/.config/proposer/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file, still honoring
// environment overrides.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PROPOSER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Backend.APIKey = expandEnv(cfg.Backend.APIKey)
	cfg.Storage.DBPath = expandEnv(cfg.Storage.DBPath)
	cfg.Logging.File = expandEnv(cfg.Logging.File)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
// Every key must have a default for environment overrides to apply.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("backend.provider", string(d.Backend.Provider))
	v.SetDefault("backend.model", d.Backend.Model)
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.use_bedrock", false)
	v.SetDefault("backend.aws_region", "")
	v.SetDefault("backend.aws_profile", "")
	v.SetDefault("backend.max_tokens", d.Backend.MaxTokens)

	v.SetDefault("orchestrator.workers", d.Orchestrator.Workers)
	v.SetDefault("orchestrator.job_timeout", d.Orchestrator.JobTimeout.String())
	v.SetDefault("orchestrator.max_attempts", d.Orchestrator.MaxAttempts)
	v.SetDefault("orchestrator.retry_initial_delay", d.Orchestrator.RetryInitialDelay.String())
	v.SetDefault("orchestrator.retry_max_delay", d.Orchestrator.RetryMaxDelay.String())
	v.SetDefault("orchestrator.max_brief_bytes", d.Orchestrator.MaxBriefBytes)

	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.export_dir", d.Storage.ExportDir)
	v.SetDefault("storage.cache_ttl", d.Storage.CacheTTL.String())

	v.SetDefault("server.addr", d.Server.Addr)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", "")
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
}

// getUserConfigDir returns the XDG config directory for proposer.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "proposer")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "proposer")
	}
	return filepath.Join(home, ".config", "proposer")
}

// findProjectConfig searches for .proposer.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".proposer.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Provider:  ProviderAnthropic,
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Orchestrator: OrchestratorConfig{
			Workers:           3,
			JobTimeout:        5 * time.Minute,
			MaxAttempts:       3,
			RetryInitialDelay: 2 * time.Second,
			RetryMaxDelay:     30 * time.Second,
			MaxBriefBytes:     16 * 1024,
		},
		Storage: StorageConfig{
			ExportDir: ".",
			CacheTTL:  10 * time.Minute,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			Exporter:     "stdout",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}
