package backend

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/ShayCichocki/proposer/internal/specialist"
)

// LangChain adapts a langchaingo model to specialist.Client.
type LangChain struct {
	llm       llms.Model
	name      string
	maxTokens int
}

// NewLangChain wraps an existing model.
func NewLangChain(llm llms.Model, name string, maxTokens int) *LangChain {
	return &LangChain{llm: llm, name: name, maxTokens: maxTokens}
}

// NewOpenAI creates a client for an OpenAI-compatible endpoint.
func NewOpenAI(model, apiKey, baseURL string, maxTokens int) (*LangChain, error) {
	opts := []openai.Option{openai.WithToken(apiKey)}
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	return NewLangChain(llm, model, maxTokens), nil
}

// NewOllama creates a client for an Ollama server.
func NewOllama(model, serverURL string, maxTokens int) (*LangChain, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return NewLangChain(llm, model, maxTokens), nil
}

// Model returns the configured model name.
func (c *LangChain) Model() string {
	return c.name
}

// Invoke implements specialist.Client.
func (c *LangChain) Invoke(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var opts []llms.CallOption
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}

	text, err := llms.GenerateFromSinglePrompt(callCtx, c.llm, prompt, opts...)
	if err != nil {
		return "", classifyLangChain(ctx, err)
	}
	return joinText([]string{text})
}

var statusPattern = regexp.MustCompile(`status code:? (\d{3})`)

// classifyLangChain maps provider errors, which langchaingo surfaces as text.
func classifyLangChain(ctx context.Context, err error) error {
	if classified := classifyContext(ctx, err); classified != nil {
		return classified
	}
	msg := strings.ToLower(err.Error())
	if m := statusPattern.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return specialist.Wrap(classifyStatus(code), err)
		}
	}
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "connection refused"):
		return specialist.Wrap(specialist.KindTransientUnavailable, err)
	case strings.Contains(msg, "empty response"), strings.Contains(msg, "no choices"):
		return specialist.Wrap(specialist.KindMalformedResponse, err)
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "model not found"):
		return specialist.Wrap(specialist.KindBackendRejected, err)
	}
	return specialist.Wrap(specialist.KindTransientUnavailable, err)
}
