package generate

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"

	"docflow/internal/llmservice"
	"docflow/internal/models"
)

const namingSampleRunes = 4000

// Namer asks the model for the topic of a pasted text or web page
type Namer struct {
	llm    llms.Model
	opts   []llms.CallOption
	prompt prompts.PromptTemplate
}

func NewNamer(llm llms.Model, opts ...llms.CallOption) (*Namer, error) {
	p, err := llmservice.NewPrompt(models.TextNamingPromptTemplate, "content")
	if err != nil {
		return nil, models.ChainBuildError("naming chain", err)
	}
	return &Namer{llm: llm, opts: opts, prompt: p}, nil
}

// Name returns a one line topic for content, or fallback when no model is
// configured or the model does not answer.
func (n *Namer) Name(ctx context.Context, content, fallback string) string {
	if n == nil || n.llm == nil || strings.TrimSpace(content) == "" {
		return fallback
	}
	if r := []rune(content); len(r) > namingSampleRunes {
		content = string(r[:namingSampleRunes])
	}
	rendered, err := n.prompt.Format(map[string]any{"content": content})
	if err != nil {
		return fallback
	}
	name, err := llmservice.Generate(ctx, n.llm, rendered, n.opts...)
	if err != nil || name == "" {
		return fallback
	}
	if i := strings.IndexByte(name, '\n'); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return name
}
