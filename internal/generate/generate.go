// Package generate runs the one-shot generation modes over the whole
// ingested corpus of a session: summary, FAQ, study guide, timeline and
// mind map.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"docflow/internal/llmservice"
	"docflow/internal/metrics"
	"docflow/internal/models"
)

// Mode selects the generation pipeline
type Mode int

const (
	Passthrough Mode = iota
	Summary
	FAQ
	Guide
	Timeline
	MindMap
)

var modeTags = map[string]Mode{
	"summarise": Summary,
	"faq":       FAQ,
	"guide":     Guide,
	"timeline":  Timeline,
	"map":       MindMap,
}

// ParseMode resolves a request tag. Unknown tags select Passthrough.
func ParseMode(tag string) Mode {
	if m, ok := modeTags[strings.ToLower(strings.TrimSpace(tag))]; ok {
		return m
	}
	return Passthrough
}

func (m Mode) String() string {
	for tag, mode := range modeTags {
		if mode == m {
			return tag
		}
	}
	return "passthrough"
}

func (m Mode) template() string {
	switch m {
	case Summary:
		return models.SummaryPromptTemplate
	case FAQ:
		return models.FAQPromptTemplate
	case Guide:
		return models.GuidePromptTemplate
	case Timeline:
		return models.TimelinePromptTemplate
	case MindMap:
		return models.MindMapPromptTemplate
	default:
		return ""
	}
}

// Input is the accumulated session text and the requested mode tag.
type Input struct {
	Mode string
	Text []string
}

// Chain dispatches Input to the prompt of its mode
type Chain struct {
	llm     llms.Model
	opts    []llms.CallOption
	metrics *metrics.Metrics
	prompts map[Mode]prompts.PromptTemplate
}

func NewChain(llm llms.Model, m *metrics.Metrics, opts ...llms.CallOption) (*Chain, error) {
	if llm == nil {
		return nil, models.ChainBuildError("generation chain", errors.New("language model is not configured"))
	}
	c := &Chain{llm: llm, opts: opts, metrics: m, prompts: map[Mode]prompts.PromptTemplate{}}
	for _, mode := range modeTags {
		p, err := llmservice.NewPrompt(mode.template(), "text")
		if err != nil {
			return nil, models.ChainBuildError("generation chain", fmt.Errorf("%s: %w", mode, err))
		}
		c.prompts[mode] = p
	}
	return c, nil
}

// Join concatenates the corpus as it is inlined into the prompt.
func Join(text []string) string {
	parts := make([]string, 0, len(text))
	for _, t := range text {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, models.ContextSeparator)
}

// Invoke renders the mode prompt over the full corpus and calls the model
// once. Passthrough returns the corpus itself.
func (c *Chain) Invoke(ctx context.Context, in Input) (out string, err error) {
	text := Join(in.Text)
	if text == "" {
		return "", models.ValidationError("generate", models.ErrEmptyCorpus)
	}
	mode := ParseMode(in.Mode)
	if mode == Passthrough {
		log.Debug().Str("mode", in.Mode).Msg("Unknown generation mode, passing text through")
		return text, nil
	}
	defer func() { c.metrics.ObserveGeneration(mode.String(), err) }()

	rendered, err := c.prompts[mode].Format(map[string]any{"text": text})
	if err != nil {
		return "", models.ChainBuildError("render prompt", err)
	}

	start := time.Now()
	out, err = llmservice.Generate(ctx, c.llm, rendered, c.opts...)
	c.metrics.ObserveStage(metrics.StageLLM, start)
	if err != nil {
		log.Error().Err(err).Str("mode", mode.String()).Msg("Generation failed")
		return "", models.QAError("generate", err)
	}
	if out == "" {
		out = models.NoAnswer
	}
	log.Info().Str("mode", mode.String()).Int("sources", len(in.Text)).Int("result_len", len(out)).Msg("Generated")
	return out, nil
}
