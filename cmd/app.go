package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"docflow/internal/chromemdb"
	"docflow/internal/config"
	"docflow/internal/db"
	"docflow/internal/embedding"
	"docflow/internal/generate"
	"docflow/internal/helper"
	"docflow/internal/ingest"
	"docflow/internal/llmservice"
	"docflow/internal/metrics"
	"docflow/internal/parser"
	"docflow/internal/rag"
	"docflow/internal/reranker"
	"docflow/internal/retriever"
	"docflow/internal/session"
	"docflow/internal/vectorindex"
)

// app holds the process-wide components built from one config
type app struct {
	cfg       *config.Config
	metrics   *metrics.Metrics
	chromem   *chromemdb.VectorDBManager
	index     *vectorindex.Index
	qa        rag.Deps
	generator *generate.Chain
	pipeline  *ingest.Pipeline
	sessions  session.Store
	closers   []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	embedder, err := embedding.NewEmbedder(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	backend, err := a.newBackend(embedder)
	if err != nil {
		return nil, err
	}

	vs := cfg.VectorStore
	a.index = vectorindex.New(backend,
		retriever.WithK(vs.TopK),
		retriever.WithFetchK(vs.FetchK),
		retriever.WithLambdaMult(vs.LambdaMult),
		retriever.WithScoreThreshold(vs.ScoreThreshold),
	)
	a.closers = append(a.closers, a.index.Close)
	if err := a.index.Initialize(ctx); err != nil {
		a.Close()
		return nil, err
	}
	st, err := retriever.ParseSearchType(vs.SearchType)
	if err != nil {
		a.Close()
		return nil, err
	}
	r, err := a.index.GetRetriever(st)
	if err != nil {
		a.Close()
		return nil, err
	}

	llm, err := llmservice.NewChatModel(cfg.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}
	callOpts := llmservice.CallOptions(cfg.LLM)
	a.qa = rag.Deps{Retriever: r, LLM: llm, CallOptions: callOpts, Metrics: a.metrics}
	if cfg.Reranker.Enabled {
		model := cfg.Reranker.Model
		a.qa.Reranker = reranker.New(func(ctx context.Context) (embeddings.Embedder, error) {
			return embedding.NewEmbedder(model)
		},
			reranker.WithTopN(cfg.Reranker.TopN),
			reranker.WithQueryPrompt(cfg.Reranker.QueryPrompt),
			reranker.WithDimensions(cfg.Reranker.Dimensions),
		)
	}

	if a.generator, err = generate.NewChain(llm, a.metrics, callOpts...); err != nil {
		a.Close()
		return nil, err
	}
	namer, err := generate.NewNamer(llm, callOpts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = ingest.New(a.index, parser.NewFetcher(0), namer, a.metrics, ingest.Options{
		UploadDir:    cfg.Server.UploadDir,
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		MaxUploads:   cfg.Ingest.MaxUploads,
	})

	if a.sessions, err = a.newSessionStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	log.Info().
		Str("vector_store", vs.Type).
		Str("search_type", vs.SearchType).
		Bool("reranker", cfg.Reranker.Enabled).
		Str("sessions", cfg.Session.Store).
		Msg("Components ready")
	return a, nil
}

func (a *app) newBackend(embedder embeddings.Embedder) (vectorindex.Backend, error) {
	vs := a.cfg.VectorStore
	switch vs.Type {
	case config.StorePgvector:
		bunDB := db.NewDB(db.ConnectDB(a.cfg.Database.DSN), a.cfg.Database.Debug)
		return db.NewStore(bunDB, embedder, vs.Dimensions), nil
	default:
		if vs.PersistDir != "" {
			if err := helper.CreateFolder(vs.PersistDir); err != nil {
				return nil, err
			}
		}
		m, err := chromemdb.NewVectorDBManager(chromemdb.Options{
			CollectionName: vs.Collection,
			DBPath:         vs.PersistDir,
			Compress:       vs.Compress,
			EncryptionKey:  vs.EncryptionKey,
		}, embedding.ChromemFunc(embedder))
		if err != nil {
			return nil, err
		}
		a.chromem = m
		return m, nil
	}
}

func (a *app) newSessionStore(ctx context.Context) (session.Store, error) {
	sc := a.cfg.Session
	if sc.Store != config.SessionRedis {
		return session.NewMemoryStore(sc.TTL), nil
	}
	client, err := session.Connect(ctx, sc.Redis.Addr, sc.Redis.Password, sc.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("redis session store: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return session.NewRedisStore(client, sc.TTL), nil
}

// Close releases the components in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Error closing component")
		}
	}
	a.closers = nil
}
