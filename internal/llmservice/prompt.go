package llmservice

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// NewPrompt builds an f-string prompt template and checks it renders with
// every variable set.
func NewPrompt(template string, vars ...string) (prompts.PromptTemplate, error) {
	p := prompts.PromptTemplate{
		Template:       template,
		InputVariables: vars,
		TemplateFormat: prompts.TemplateFormatFString,
	}
	sample := make(map[string]any, len(vars))
	for _, v := range vars {
		sample[v] = ""
	}
	if _, err := p.Format(sample); err != nil {
		return prompts.PromptTemplate{}, fmt.Errorf("invalid prompt template: %w", err)
	}
	for _, v := range vars {
		if !strings.Contains(template, "{"+v+"}") {
			return prompts.PromptTemplate{}, fmt.Errorf("prompt template does not use {%s}", v)
		}
	}
	return p, nil
}
