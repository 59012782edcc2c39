// Package vectorindex owns the embedding-backed chunk index and hands out
// retrievers over it.
package vectorindex

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"docflow/internal/models"
	"docflow/internal/retriever"
)

// Backend is a storage engine able to embed, store and rank chunks.
type Backend interface {
	Init(ctx context.Context) error
	Add(ctx context.Context, chunks []models.Chunk) error
	Query(ctx context.Context, query string, n int) (*models.QueryResult, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
	Close() error
}

var errNotInitialized = errors.New("vector store is not initialized")

// Index is shared by every session of the process.
type Index struct {
	backend Backend
	opts    []retriever.Option

	mu          sync.RWMutex
	initialized bool
	retrievers  map[retriever.SearchType]*retriever.Retriever
}

// New wraps backend; opts apply to every retriever handed out.
func New(backend Backend, opts ...retriever.Option) *Index {
	return &Index{
		backend:    backend,
		opts:       opts,
		retrievers: map[retriever.SearchType]*retriever.Retriever{},
	}
}

// Initialize opens or creates the backing collection. Calling it again is a no-op.
func (ix *Index) Initialize(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.initialized {
		return nil
	}
	if err := ix.backend.Init(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to initialize vector store")
		return models.VectorStoreError("initialize", err)
	}
	ix.initialized = true
	return nil
}

func (ix *Index) ready() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if !ix.initialized {
		return errNotInitialized
	}
	return nil
}

// AddDocuments embeds and stores chunks. IDs are assigned to chunks without one.
func (ix *Index) AddDocuments(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return models.VectorStoreError("add documents", models.ErrNoDocuments)
	}
	if err := ix.ready(); err != nil {
		return models.VectorStoreError("add documents", err)
	}
	start := time.Now()
	docs := make([]models.Chunk, len(chunks))
	copy(docs, chunks)
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
	}
	if err := ix.backend.Add(ctx, docs); err != nil {
		log.Error().Err(err).Int("chunks", len(docs)).Msg("Failed to add documents")
		return models.VectorStoreError("add documents", err)
	}
	log.Info().Int("chunks", len(docs)).Dur("dur", time.Since(start)).Msg("Documents added to vector store")
	return nil
}

// AddTexts stores raw strings without source metadata. Blank strings are skipped.
func (ix *Index) AddTexts(ctx context.Context, texts []string) error {
	chunks := make([]models.Chunk, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{Content: t})
	}
	return ix.AddDocuments(ctx, chunks)
}

// Query looks up the n nearest chunks. It satisfies retriever.Index.
func (ix *Index) Query(ctx context.Context, query string, n int) (*models.QueryResult, error) {
	if err := ix.ready(); err != nil {
		return nil, models.VectorStoreError("query", err)
	}
	res, err := ix.backend.Query(ctx, query, n)
	if err != nil {
		return nil, models.VectorStoreError("query", err)
	}
	return res, nil
}

// GetRetriever returns the retriever for searchType, built once per type.
func (ix *Index) GetRetriever(searchType retriever.SearchType) (*retriever.Retriever, error) {
	if _, err := retriever.ParseSearchType(string(searchType)); err != nil {
		return nil, models.ValidationError("get retriever", err)
	}
	if err := ix.ready(); err != nil {
		return nil, models.VectorStoreError("get retriever", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if r, ok := ix.retrievers[searchType]; ok {
		return r, nil
	}
	r := retriever.New(ix, searchType, ix.opts...)
	ix.retrievers[searchType] = r
	log.Debug().Str("search_type", string(searchType)).Msg("Created retriever")
	return r, nil
}

// Count returns the number of stored chunks.
func (ix *Index) Count(ctx context.Context) (int, error) {
	if err := ix.ready(); err != nil {
		return 0, models.VectorStoreError("count", err)
	}
	n, err := ix.backend.Count(ctx)
	if err != nil {
		return 0, models.VectorStoreError("count", err)
	}
	return n, nil
}

// Reset drops every stored chunk. Cached retrievers stay valid.
func (ix *Index) Reset(ctx context.Context) error {
	if err := ix.ready(); err != nil {
		return models.VectorStoreError("reset", err)
	}
	if err := ix.backend.Reset(ctx); err != nil {
		return models.VectorStoreError("reset", err)
	}
	log.Info().Msg("Vector store reset")
	return nil
}

func (ix *Index) Close() error {
	return ix.backend.Close()
}
