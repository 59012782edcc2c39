package reranker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tmc/langchaingo/embeddings"

	"docflow/internal/models"
	"docflow/internal/testutil"
)

// tableEmbedder maps known texts to fixed vectors.
type tableEmbedder map[string][]float32

func (t tableEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	v, ok := t[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func (t tableEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, s := range texts {
		v, err := t.EmbedQuery(ctx, s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func chunks(texts ...string) []models.ScoredChunk {
	out := make([]models.ScoredChunk, len(texts))
	for i, s := range texts {
		out[i] = models.ScoredChunk{Chunk: models.Chunk{ID: s, Content: s}}
	}
	return out
}

func ids(cs []models.ScoredChunk) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Chunk.ID
	}
	return out
}

func TestRerankOrderAndLimit(t *testing.T) {
	emb := tableEmbedder{
		"q":  {1, 0},
		"c0": {0, 1},
		"c1": {1, 0.1},
		"c2": {1, 1},
		"c3": {1, 0.5},
		"c4": {-1, 0},
		"c5": {1, 0.05},
		"c6": {0.2, 1},
	}
	r := FromEmbedder(emb)
	got, err := r.Rerank(context.Background(), "q", chunks("c0", "c1", "c2", "c3", "c4", "c5", "c6"))
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	want := []string{"c5", "c1", "c3", "c2", "c6"}
	if fmt.Sprint(ids(got)) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", ids(got), want)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("scores not descending: %v then %v", got[i-1].Score, got[i].Score)
		}
	}
}

func TestRerankStableTies(t *testing.T) {
	emb := tableEmbedder{
		"q": {1, 0},
		"a": {1, 1},
		"b": {1, 1},
		"c": {1, 1},
		"d": {2, 0},
	}
	got, err := FromEmbedder(emb).Rerank(context.Background(), "q", chunks("a", "b", "d", "c"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"d", "a", "b", "c"}
	if fmt.Sprint(ids(got)) != fmt.Sprint(want) {
		t.Fatalf("got %v, want %v", ids(got), want)
	}
}

func TestRerankSubsetProperty(t *testing.T) {
	emb := testutil.NewEmbedder()
	r := FromEmbedder(emb, WithQueryPrompt("query: "))
	for n := 0; n <= 12; n++ {
		var texts []string
		for i := 0; i < n; i++ {
			texts = append(texts, fmt.Sprintf("chunk %d about topic %d", i, i%3))
		}
		in := chunks(texts...)
		got, err := r.Rerank(context.Background(), "topic 1", in)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(got) > DefaultTopN || len(got) > n {
			t.Fatalf("n=%d: got %d results", n, len(got))
		}
		seen := map[string]bool{}
		for _, c := range in {
			seen[c.Chunk.ID] = true
		}
		for i, c := range got {
			if !seen[c.Chunk.ID] {
				t.Fatalf("n=%d: %q was not a candidate", n, c.Chunk.ID)
			}
			delete(seen, c.Chunk.ID)
			if i > 0 && c.Score > got[i-1].Score {
				t.Fatalf("n=%d: not sorted", n)
			}
		}
	}
}

func TestRerankEmbeddingFailure(t *testing.T) {
	emb := testutil.NewEmbedder()
	emb.FailOn = "broken"
	r := FromEmbedder(emb)

	_, err := r.Rerank(context.Background(), "fine query", chunks("ok", "broken chunk"))
	if !errors.Is(err, models.ErrReRanker) || !errors.Is(err, models.ErrDocumentQA) {
		t.Fatalf("expected re-ranker error, got %v", err)
	}
	_, err = r.Rerank(context.Background(), "broken query", chunks("ok"))
	if !errors.Is(err, models.ErrReRanker) {
		t.Fatalf("expected re-ranker error, got %v", err)
	}
}

func TestLoadCachedAndRetried(t *testing.T) {
	calls := 0
	r := New(func(context.Context) (embeddings.Embedder, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("model missing")
		}
		return testutil.NewEmbedder(), nil
	})
	ctx := context.Background()
	if _, err := r.Load(ctx); !errors.Is(err, models.ErrReRanker) {
		t.Fatalf("expected re-ranker error, got %v", err)
	}
	a, err := r.Load(ctx)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	b, _ := r.Load(ctx)
	if a != b || calls != 2 {
		t.Fatalf("model should be cached after the first success, calls=%d", calls)
	}
}

func TestTruncateDimensions(t *testing.T) {
	emb := tableEmbedder{
		"q": {1, 0, 5},
		"a": {0, 1, 5},
		"b": {1, 0, -5},
	}
	got, err := FromEmbedder(emb, WithDimensions(2)).Rerank(context.Background(), "q", chunks("a", "b"))
	if err != nil {
		t.Fatal(err)
	}
	if ids(got)[0] != "b" {
		t.Fatalf("truncated vectors should rank b first, got %v", ids(got))
	}
}
