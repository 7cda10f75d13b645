// Package backend provides specialist.Client implementations for the
// supported text-generation services.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/ShayCichocki/proposer/internal/config"
	"github.com/ShayCichocki/proposer/internal/specialist"
)

// New returns the client selected by cfg.Backend.Provider.
func New(cfg *config.Config) (specialist.Client, error) {
	b := cfg.Backend
	switch b.Provider {
	case config.ProviderAnthropic:
		var key string
		if !b.UseBedrock {
			k, err := config.GetAPIKey(cfg)
			if err != nil {
				return nil, fmt.Errorf("anthropic backend: %w", err)
			}
			key = k
		}
		return NewAnthropic(AnthropicConfig{
			Model:      b.Model,
			APIKey:     key,
			BaseURL:    b.BaseURL,
			MaxTokens:  int64(b.MaxTokens),
			UseBedrock: b.UseBedrock,
			AWSRegion:  b.AWSRegion,
			AWSProfile: b.AWSProfile,
		})
	case config.ProviderOpenAI:
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("openai backend: %w", err)
		}
		return NewOpenAI(b.Model, key, b.BaseURL, b.MaxTokens)
	case config.ProviderOllama:
		return NewOllama(b.Model, b.BaseURL, b.MaxTokens)
	case config.ProviderEcho:
		return NewEcho(), nil
	default:
		return nil, fmt.Errorf("unsupported backend provider: %q", b.Provider)
	}
}

// classifyContext maps context and network failures shared by every backend.
// It returns nil when err is neither.
func classifyContext(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return specialist.Wrap(specialist.KindTimeout, err)
	case errors.Is(err, context.Canceled):
		if ctx.Err() != nil {
			return specialist.Wrap(specialist.KindCancelled, err)
		}
		return specialist.Wrap(specialist.KindTransientUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return specialist.Wrap(specialist.KindTimeout, err)
		}
		return specialist.Wrap(specialist.KindTransientUnavailable, err)
	}
	return nil
}

// classifyStatus maps an HTTP status code to a failure kind.
func classifyStatus(code int) specialist.Kind {
	switch {
	case code == 408, code == 429, code == 529, code >= 500:
		return specialist.KindTransientUnavailable
	case code >= 400:
		return specialist.KindBackendRejected
	default:
		return specialist.KindMalformedResponse
	}
}

// joinText concatenates text parts and rejects an empty result.
func joinText(parts []string) (string, error) {
	text := strings.TrimSpace(strings.Join(parts, ""))
	if text == "" {
		return "", specialist.Errorf(specialist.KindMalformedResponse, "response contained no text")
	}
	return text, nil
}
