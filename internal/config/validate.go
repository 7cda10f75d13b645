package config

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError describes one invalid configuration field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validExporters = map[string]bool{"none": true, "stdout": true, "file": true, "otlp": true}

// Validate checks every field and reports all problems at once.
// The returned error joins one *FieldError per bad field.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	switch c.Backend.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderOllama, ProviderEcho:
	default:
		bad("backend.provider", "unknown provider %q", c.Backend.Provider)
	}
	if c.Backend.Provider != ProviderEcho && strings.TrimSpace(c.Backend.Model) == "" {
		bad("backend.model", "required for provider %s", c.Backend.Provider)
	}
	if c.Backend.MaxTokens < 1 {
		bad("backend.max_tokens", "must be positive, got %d", c.Backend.MaxTokens)
	}
	if c.Backend.UseBedrock && c.Backend.Provider != ProviderAnthropic {
		bad("backend.use_bedrock", "only supported with provider anthropic")
	}

	o := c.Orchestrator
	if o.Workers < 1 {
		bad("orchestrator.workers", "must be at least 1, got %d", o.Workers)
	}
	if o.JobTimeout <= 0 {
		bad("orchestrator.job_timeout", "must be positive, got %s", o.JobTimeout)
	}
	if o.MaxAttempts < 1 {
		bad("orchestrator.max_attempts", "must be at least 1, got %d", o.MaxAttempts)
	}
	if o.RetryInitialDelay <= 0 {
		bad("orchestrator.retry_initial_delay", "must be positive, got %s", o.RetryInitialDelay)
	}
	if o.RetryMaxDelay < o.RetryInitialDelay {
		bad("orchestrator.retry_max_delay", "must be at least retry_initial_delay (%s), got %s", o.RetryInitialDelay, o.RetryMaxDelay)
	}
	if o.MaxBriefBytes < 1 {
		bad("orchestrator.max_brief_bytes", "must be positive, got %d", o.MaxBriefBytes)
	}

	if c.Storage.CacheTTL < 0 {
		bad("storage.cache_ttl", "must not be negative, got %s", c.Storage.CacheTTL)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		bad("server.addr", "required")
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		bad("logging.level", "unknown level %q", c.Logging.Level)
	}

	if c.Tracing.Enabled {
		if !validExporters[c.Tracing.Exporter] {
			bad("tracing.exporter", "unknown exporter %q", c.Tracing.Exporter)
		}
		if c.Tracing.Exporter == "file" && c.Tracing.FilePath == "" {
			bad("tracing.file_path", "required for the file exporter")
		}
		if c.Tracing.Exporter == "otlp" && c.Tracing.OTLPEndpoint == "" {
			bad("tracing.otlp_endpoint", "required for the otlp exporter")
		}
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		bad("tracing.sample_rate", "must be between 0 and 1, got %g", c.Tracing.SampleRate)
	}

	return errors.Join(errs...)
}

// InvalidFields returns the names of the fields reported by err.
func InvalidFields(err error) []string {
	var fields []string
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			var fe *FieldError
			if errors.As(e, &fe) {
				fields = append(fields, fe.Field)
			}
		}
		return fields
	}
	var fe *FieldError
	if errors.As(err, &fe) {
		fields = append(fields, fe.Field)
	}
	return fields
}
