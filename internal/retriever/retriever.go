package retriever

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"docflow/internal/models"
)

// SearchType selects how candidates are picked from the index
type SearchType string

const (
	Similarity               SearchType = "similarity"
	MMR                      SearchType = "mmr"
	SimilarityScoreThreshold SearchType = "similarity_score_threshold"
)

// ParseSearchType validates a configured search type.
func ParseSearchType(s string) (SearchType, error) {
	switch st := SearchType(s); st {
	case Similarity, MMR, SimilarityScoreThreshold:
		return st, nil
	default:
		return "", fmt.Errorf("unknown search type %q", s)
	}
}

// Index is the nearest-neighbour lookup a retriever reads from.
// Matches must carry the stored embeddings for MMR.
type Index interface {
	Query(ctx context.Context, query string, n int) (*models.QueryResult, error)
}

const (
	DefaultK          = 10
	DefaultFetchK     = 20
	DefaultLambdaMult = 0.5
	DefaultThreshold  = 0.5
)

// Options configure a retriever
type Options struct {
	K              int
	FetchK         int
	LambdaMult     float64
	ScoreThreshold float32
}

// Option is a function type for configuring retriever options.
type Option func(*Options)

func WithK(k int) Option                  { return func(o *Options) { o.K = k } }
func WithFetchK(k int) Option             { return func(o *Options) { o.FetchK = k } }
func WithLambdaMult(l float64) Option     { return func(o *Options) { o.LambdaMult = l } }
func WithScoreThreshold(t float32) Option { return func(o *Options) { o.ScoreThreshold = t } }

// Retriever is a configured view over an Index
type Retriever struct {
	index      Index
	searchType SearchType
	opts       Options
}

// New creates a retriever over index for the given search type.
func New(index Index, searchType SearchType, opts ...Option) *Retriever {
	o := Options{
		K:              DefaultK,
		FetchK:         DefaultFetchK,
		LambdaMult:     DefaultLambdaMult,
		ScoreThreshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.K <= 0 {
		o.K = DefaultK
	}
	if o.FetchK < o.K {
		o.FetchK = o.K
	}
	return &Retriever{index: index, searchType: searchType, opts: o}
}

func (r *Retriever) SearchType() SearchType { return r.searchType }
func (r *Retriever) Options() Options       { return r.opts }

// Retrieve returns up to K chunks for query, ordered by the search strategy.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]models.ScoredChunk, error) {
	start := time.Now()
	n := r.opts.K
	if r.searchType == MMR {
		n = r.opts.FetchK
	}
	res, err := r.index.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	var out []models.ScoredChunk
	switch r.searchType {
	case MMR:
		idx := MaximalMarginalRelevance(res.QueryEmbedding, embeddingsOf(res.Matches), r.opts.LambdaMult, r.opts.K)
		out = make([]models.ScoredChunk, 0, len(idx))
		for _, i := range idx {
			out = append(out, res.Matches[i])
		}
	case SimilarityScoreThreshold:
		for _, m := range res.Matches {
			if m.Score >= r.opts.ScoreThreshold {
				out = append(out, m)
			}
		}
	default:
		out = res.Matches
	}
	if len(out) > r.opts.K {
		out = out[:r.opts.K]
	}
	log.Debug().Str("search_type", string(r.searchType)).Int("candidates", len(res.Matches)).Int("selected", len(out)).Dur("dur", time.Since(start)).Msg("Retrieved chunks")
	return out, nil
}

func embeddingsOf(matches []models.ScoredChunk) [][]float32 {
	out := make([][]float32, len(matches))
	for i, m := range matches {
		out[i] = m.Embedding
	}
	return out
}
