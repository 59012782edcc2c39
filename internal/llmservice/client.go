package llmservice

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docflow/internal/config"
	"docflow/internal/models"
)

var thinkRe = regexp.MustCompile(models.ThinkTag)

// NewChatModel builds the chat model for the configured provider
func NewChatModel(cfg config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("Creating chat model")
	switch cfg.Provider {
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.Key()),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai chat model: %w", err)
		}
		return llm, nil
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama chat model: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// CallOptions returns the per-call options derived from the config.
func CallOptions(cfg config.LLMConfig) []llms.CallOption {
	var opts []llms.CallOption
	if cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(cfg.Temperature))
	}
	return opts
}

// Generate sends a single rendered prompt to the model and returns its plain text output.
func Generate(ctx context.Context, llm llms.Model, prompt string, opts ...llms.CallOption) (string, error) {
	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, llm, prompt, opts...)
	if err != nil {
		return "", err
	}
	log.Debug().Dur("dur", time.Since(start)).Int("prompt_len", len(prompt)).Int("response_len", len(out)).Msg("Generated content")
	return ParseText(out), nil
}

// ParseText strips reasoning blocks and surrounding whitespace.
func ParseText(s string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(s, ""))
}
