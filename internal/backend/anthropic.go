package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/ShayCichocki/proposer/internal/specialist"
)

// DefaultMaxTokens caps each response when none is configured.
const DefaultMaxTokens = 4096

// AnthropicConfig configures an Anthropic client.
type AnthropicConfig struct {
	// Model is the Claude model name. Empty uses claude-sonnet-4-20250514.
	Model string
	// APIKey is required unless UseBedrock is set.
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL   string
	MaxTokens int64
	// UseBedrock routes calls through AWS Bedrock with the default AWS credential chain.
	UseBedrock bool
	AWSRegion  string
	AWSProfile string
}

// Anthropic calls the Anthropic Messages API.
type Anthropic struct {
	inner     anthropic.Client
	model     anthropic.Model
	maxTokens int64
	tracker   *TokenTracker
}

// NewAnthropic creates an Anthropic client.
// SDK-level retries are disabled; the specialist retrier owns retry policy.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	opts := []option.RequestOption{option.WithMaxRetries(0)}

	if cfg.UseBedrock {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...))
	} else {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key is not set")
		}
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseBedrock {
		model = bedrockModel(model)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Anthropic{
		inner:     anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
		tracker:   NewTokenTracker(),
	}, nil
}

// bedrockModels maps Anthropic model names to Bedrock cross-region inference profiles.
var bedrockModels = map[string]string{
	"claude-sonnet-4-20250514":   "us.anthropic.claude-sonnet-4-20250514-v1:0",
	"claude-sonnet-4-5-20250929": "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
	"claude-haiku-4-5-20251001":  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
	"claude-opus-4-1-20250805":   "us.anthropic.claude-opus-4-1-20250805-v1:0",
	"claude-opus-4-5-20251101":   "us.anthropic.claude-opus-4-5-20251101-v1:0",
}

// bedrockModel returns the Bedrock profile for model, or model unchanged if
// it is unknown or already in Bedrock form.
func bedrockModel(model anthropic.Model) anthropic.Model {
	if strings.HasPrefix(string(model), "us.anthropic.") {
		return model
	}
	if m, ok := bedrockModels[string(model)]; ok {
		return anthropic.Model(m)
	}
	return model
}

// Model returns the model in use.
func (c *Anthropic) Model() anthropic.Model {
	return c.model
}

// Tracker returns the token usage tracker.
func (c *Anthropic) Tracker() *TokenTracker {
	return c.tracker
}

// Invoke implements specialist.Client.
func (c *Anthropic) Invoke(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := c.inner.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", classifyAnthropic(ctx, err)
	}

	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var parts []string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, variant.Text)
		}
	}
	return joinText(parts)
}

func classifyAnthropic(ctx context.Context, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return specialist.Wrap(classifyStatus(apiErr.StatusCode), err)
	}
	if classified := classifyContext(ctx, err); classified != nil {
		return classified
	}
	return specialist.Wrap(specialist.KindTransientUnavailable, err)
}
