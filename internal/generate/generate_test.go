package generate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docflow/internal/models"
	"docflow/internal/testutil"
)

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"summarise": Summary,
		"FAQ":       FAQ,
		" guide ":   Guide,
		"timeline":  Timeline,
		"map":       MindMap,
		"summary":   Passthrough,
		"":          Passthrough,
	}
	for tag, want := range tests {
		if got := ParseMode(tag); got != want {
			t.Fatalf("ParseMode(%q) = %v, want %v", tag, got, want)
		}
	}
	if MindMap.String() != "map" || Passthrough.String() != "passthrough" {
		t.Fatal("unexpected mode names")
	}
}

func TestSummarise(t *testing.T) {
	llm := testutil.NewLLM("A and B, summarised.")
	c, err := NewChain(llm, nil)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	out, err := c.Invoke(context.Background(), Input{Mode: "summarise", Text: []string{"A", "B"}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if out == "" {
		t.Fatal("expected a non-empty result")
	}
	p := llm.LastPrompt()
	if !strings.Contains(p, "A") || !strings.Contains(p, "B") || !strings.HasPrefix(p, "Summarise") {
		t.Fatalf("prompt does not inline the corpus: %q", p)
	}
}

func TestEachModeUsesItsPrompt(t *testing.T) {
	for tag, mode := range modeTags {
		llm := testutil.NewLLM("ok")
		c, _ := NewChain(llm, nil)
		if _, err := c.Invoke(context.Background(), Input{Mode: tag, Text: []string{"corpus text"}}); err != nil {
			t.Fatalf("%s: %v", tag, err)
		}
		want := strings.Replace(mode.template(), "{text}", "corpus text", 1)
		if llm.LastPrompt() != want {
			t.Fatalf("%s: unexpected prompt %q", tag, llm.LastPrompt())
		}
	}
}

func TestPassthrough(t *testing.T) {
	llm := testutil.NewLLM("unused")
	c, _ := NewChain(llm, nil)
	out, err := c.Invoke(context.Background(), Input{Mode: "poem", Text: []string{"A", " ", "B"}})
	if err != nil {
		t.Fatal(err)
	}
	if out != "A\n\nB" || len(llm.Prompts()) != 0 {
		t.Fatalf("passthrough should return the corpus without calling the model, got %q", out)
	}
}

func TestEmptyCorpus(t *testing.T) {
	c, _ := NewChain(testutil.NewLLM("x"), nil)
	_, err := c.Invoke(context.Background(), Input{Mode: "faq", Text: []string{"", "  "}})
	if !errors.Is(err, models.ErrEmptyCorpus) || !models.IsValidation(err) {
		t.Fatalf("expected empty corpus validation error, got %v", err)
	}
}

func TestModelFailure(t *testing.T) {
	c, _ := NewChain(&testutil.LLM{Err: errors.New("down")}, nil)
	_, err := c.Invoke(context.Background(), Input{Mode: "guide", Text: []string{"x"}})
	if !errors.Is(err, models.ErrDocumentQA) {
		t.Fatalf("expected document qa error, got %v", err)
	}
	if _, err := NewChain(nil, nil); !errors.Is(err, models.ErrChainBuild) {
		t.Fatalf("expected chain build error, got %v", err)
	}
}

func TestNamer(t *testing.T) {
	n, err := NewNamer(testutil.NewLLM("Physics:Optics\nextra"))
	if err != nil {
		t.Fatal(err)
	}
	if got := n.Name(context.Background(), "light bends", "Pasted text"); got != "Physics:Optics" {
		t.Fatalf("got %q", got)
	}
	failing, _ := NewNamer(&testutil.LLM{Err: errors.New("down")})
	if got := failing.Name(context.Background(), "light bends", "Pasted text"); got != "Pasted text" {
		t.Fatalf("fallback expected, got %q", got)
	}
	var none *Namer
	if got := none.Name(context.Background(), "x", "fb"); got != "fb" {
		t.Fatalf("nil namer should fall back, got %q", got)
	}
}
