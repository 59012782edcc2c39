package reranker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"docflow/internal/embedding"
	"docflow/internal/models"
)

const DefaultTopN = 5

// Loader builds the scoring model. It is called until it succeeds once.
type Loader func(ctx context.Context) (embeddings.Embedder, error)

// ReRanker rescores retrieved chunks with a dedicated embedding model
type ReRanker struct {
	load        Loader
	topN        int
	queryPrompt string
	dimensions  int

	mu    sync.Mutex
	model embeddings.Embedder
}

type Option func(*ReRanker)

// WithTopN sets how many chunks survive re-ranking.
func WithTopN(n int) Option { return func(r *ReRanker) { r.topN = n } }

// WithQueryPrompt prefixes the query before it is embedded.
func WithQueryPrompt(p string) Option { return func(r *ReRanker) { r.queryPrompt = p } }

// WithDimensions truncates every embedding to its first n components.
func WithDimensions(n int) Option { return func(r *ReRanker) { r.dimensions = n } }

func New(load Loader, opts ...Option) *ReRanker {
	r := &ReRanker{load: load, topN: DefaultTopN}
	for _, opt := range opts {
		opt(r)
	}
	if r.topN <= 0 {
		r.topN = DefaultTopN
	}
	return r
}

// FromEmbedder wraps an already built model.
func FromEmbedder(e embeddings.Embedder, opts ...Option) *ReRanker {
	return New(func(context.Context) (embeddings.Embedder, error) { return e, nil }, opts...)
}

// Load returns the cached scoring model, loading it on first use.
func (r *ReRanker) Load(ctx context.Context) (embeddings.Embedder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.model != nil {
		return r.model, nil
	}
	if r.load == nil {
		return nil, models.ReRankerError("load", errors.New("no scoring model configured"))
	}
	start := time.Now()
	m, err := r.load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Couldn't load the re-ranking model")
		return nil, models.ReRankerError("load", err)
	}
	if m == nil {
		return nil, models.ReRankerError("load", errors.New("loader returned no model"))
	}
	r.model = m
	log.Debug().Dur("dur", time.Since(start)).Msg("Re-ranking model loaded")
	return m, nil
}

type scored struct {
	chunk models.ScoredChunk
	score float32
}

// Rerank embeds the query once and every candidate independently, then
// returns at most topN candidates ordered by descending cosine similarity.
// Equal scores keep their retrieval order. Score on the returned chunks is
// replaced by the re-ranking score.
func (r *ReRanker) Rerank(ctx context.Context, query string, candidates []models.ScoredChunk) ([]models.ScoredChunk, error) {
	model, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	start := time.Now()
	q, err := model.EmbedQuery(ctx, r.queryPrompt+query)
	if err != nil {
		log.Error().Err(err).Msg("Couldn't encode the query")
		return nil, models.ReRankerError("rerank", fmt.Errorf("failed to embed query: %w", err))
	}
	q = r.truncate(q)

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Chunk.Content
	}
	vecs, err := model.EmbedDocuments(ctx, texts)
	if err != nil {
		log.Error().Err(err).Int("candidates", len(candidates)).Msg("Couldn't encode the candidates")
		return nil, models.ReRankerError("rerank", fmt.Errorf("failed to embed candidates: %w", err))
	}
	if len(vecs) != len(candidates) {
		return nil, models.ReRankerError("rerank", fmt.Errorf("model returned %d embeddings for %d candidates", len(vecs), len(candidates)))
	}
	log.Debug().Dur("dur", time.Since(start)).Int("candidates", len(candidates)).Msg("Computed re-ranking embeddings")

	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{chunk: c, score: embedding.Cosine(q, r.truncate(vecs[i]))}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	n := r.topN
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]models.ScoredChunk, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].chunk
		out[i].Score = ranked[i].score
	}
	log.Info().Int("candidates", len(candidates)).Int("kept", n).Msg("Re-ranked candidates")
	return out, nil
}

func (r *ReRanker) truncate(v []float32) []float32 {
	if r.dimensions > 0 && len(v) > r.dimensions {
		return v[:r.dimensions]
	}
	return v
}
