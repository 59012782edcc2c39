package llmservice

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"docflow/internal/config"
)

type echoModel struct {
	reply  string
	err    error
	prompt string
}

func (m *echoModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				m.prompt = tc.Text
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *echoModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestGenerate(t *testing.T) {
	m := &echoModel{reply: "<think>hmm</think>\n  The answer.  "}
	out, err := Generate(context.Background(), m, "question")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "The answer." {
		t.Fatalf("got %q", out)
	}
	if m.prompt != "question" {
		t.Fatalf("prompt not forwarded, got %q", m.prompt)
	}
}

func TestGenerateError(t *testing.T) {
	boom := errors.New("unavailable")
	if _, err := Generate(context.Background(), &echoModel{err: boom}, "q"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped model error, got %v", err)
	}
}

func TestNewChatModelUnknownProvider(t *testing.T) {
	if _, err := NewChatModel(config.LLMConfig{Provider: "unknown"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCallOptions(t *testing.T) {
	if got := CallOptions(config.LLMConfig{}); len(got) != 0 {
		t.Fatalf("expected no options, got %d", len(got))
	}
	if got := CallOptions(config.LLMConfig{Temperature: 0.3}); len(got) != 1 {
		t.Fatalf("expected temperature option, got %d", len(got))
	}
}

func TestNewPrompt(t *testing.T) {
	p, err := NewPrompt("doc:{document} q:{query}", "document", "query")
	if err != nil {
		t.Fatalf("NewPrompt: %v", err)
	}
	out, err := p.Format(map[string]any{"document": "D", "query": "Q"})
	if err != nil || out != "doc:D q:Q" {
		t.Fatalf("Format = %q, %v", out, err)
	}
	if _, err := NewPrompt("no placeholders", "document"); err == nil {
		t.Fatal("expected error for unused variable")
	}
}
