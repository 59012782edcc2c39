// Package testutil provides deterministic stand-ins for the remote
// embedding and language models.
package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Embedder hashes lowercase words into a fixed number of buckets.
// Texts sharing words end up close to each other.
type Embedder struct {
	Dims int
	// FailOn makes any text containing the substring fail to embed.
	FailOn string

	mu    sync.Mutex
	calls int
}

func NewEmbedder() *Embedder { return &Embedder{Dims: 256} }

// ErrEmbed is returned for texts matching FailOn.
var ErrEmbed = errors.New("embedding backend unavailable")

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.FailOn != "" && strings.Contains(text, e.FailOn) {
		return nil, ErrEmbed
	}
	dims := e.Dims
	if dims == 0 {
		dims = 256
	}
	vec := make([]float32, dims)
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dims)]++
	}
	// keep the vector non-zero so cosine is defined
	vec[dims-1] += 0.01
	return vec, nil
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := e.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Calls reports how many texts were embedded.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// LLM replays scripted responses and records every prompt it receives.
type LLM struct {
	Responses []string
	Err       error

	mu      sync.Mutex
	prompts []string
}

func NewLLM(responses ...string) *LLM { return &LLM{Responses: responses} }

func (l *LLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var sb strings.Builder
	for _, m := range messages {
		for _, p := range m.Parts {
			if tc, ok := p.(llms.TextContent); ok {
				sb.WriteString(tc.Text)
			}
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, sb.String())
	if l.Err != nil {
		return nil, l.Err
	}
	reply := ""
	if len(l.Responses) > 0 {
		reply = l.Responses[0]
		if len(l.Responses) > 1 {
			l.Responses = l.Responses[1:]
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: reply}}}, nil
}

func (l *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, l, prompt, options...)
}

// Prompts returns the prompts received so far.
func (l *LLM) Prompts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.prompts...)
}

// LastPrompt returns the most recent prompt or "".
func (l *LLM) LastPrompt() string {
	p := l.Prompts()
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}
