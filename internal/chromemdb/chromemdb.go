package chromemdb

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"docflow/internal/models"
)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	mu             sync.RWMutex
	db             *chromem.DB
	collection     *chromem.Collection
	embed          chromem.EmbeddingFunc
	collectionName string
	dbPath         string
	compress       bool
	encryptionKey  string
	filePath       string
}

// Options for the chromem backend
type Options struct {
	CollectionName string
	// DBPath enables the persistent database; empty keeps everything in memory.
	DBPath        string
	Compress      bool
	EncryptionKey string
}

// NewVectorDBManager initializes a new vector database manager
func NewVectorDBManager(opts Options, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	if embed == nil {
		return nil, fmt.Errorf("embedding function is required")
	}
	if opts.CollectionName == "" {
		opts.CollectionName = "user"
	}

	var db *chromem.DB
	var err error
	if opts.DBPath == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(opts.DBPath, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:             db,
		embed:          embed,
		collectionName: opts.CollectionName,
		dbPath:         opts.DBPath,
		compress:       opts.Compress,
		encryptionKey:  opts.EncryptionKey,
		filePath:       filepath.Join(opts.DBPath, opts.CollectionName+".chromem"),
	}, nil
}

// Init creates or reads the collection
func (m *VectorDBManager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collection != nil {
		return nil
	}
	c, err := m.db.GetOrCreateCollection(m.collectionName, map[string]string{"hnsw:space": "cosine"}, m.embed)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	log.Info().Str("collection", m.collectionName).Bool("persistent", m.dbPath != "").Int("documents", c.Count()).Msg("Vector collection ready")
	return nil
}

// Add embeds and stores the chunks
func (m *VectorDBManager) Add(ctx context.Context, chunks []models.Chunk) error {
	c, err := m.current()
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		id := ch.ID
		if id == "" {
			id = uuid.NewString()
		}
		docs = append(docs, chromem.Document{
			ID:       id,
			Content:  ch.Content,
			Metadata: ch.Metadata(),
		})
	}
	if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Query embeds the query once and returns its n nearest chunks with their stored embeddings
func (m *VectorDBManager) Query(ctx context.Context, query string, n int) (*models.QueryResult, error) {
	c, err := m.current()
	if err != nil {
		return nil, err
	}
	if query == "" {
		return nil, fmt.Errorf("query must be provided")
	}
	queryEmbedding, err := m.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	res := &models.QueryResult{QueryEmbedding: queryEmbedding}
	// chromem rejects nResults larger than the collection
	if count := c.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return res, nil
	}
	results, err := c.QueryEmbedding(ctx, queryEmbedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	for _, r := range results {
		res.Matches = append(res.Matches, models.ScoredChunk{
			Chunk:     models.ChunkFromMetadata(r.ID, r.Content, r.Metadata),
			Score:     r.Similarity,
			Embedding: r.Embedding,
		})
	}
	return res, nil
}

// Count returns the number of stored chunks
func (m *VectorDBManager) Count(ctx context.Context) (int, error) {
	c, err := m.current()
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// Reset drops and recreates the collection
func (m *VectorDBManager) Reset(ctx context.Context) error {
	m.mu.Lock()
	if m.collection != nil {
		if err := m.db.DeleteCollection(m.collectionName); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("failed to drop collection: %w", err)
		}
		m.collection = nil
	}
	m.mu.Unlock()
	return m.Init(ctx)
}

func (m *VectorDBManager) Close() error { return nil }

// export to file
func (m *VectorDBManager) Export(ctx context.Context) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}
	c, err := m.current()
	if err != nil {
		return err
	}

	log.Debug().Str("collection", c.Name).Str("file", m.filePath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, c.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// import from file
func (m *VectorDBManager) Import(ctx context.Context) error {
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	// imported collections carry no embedding function
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, m.embed)
	if err != nil {
		return fmt.Errorf("failed to reopen collection: %w", err)
	}
	m.collection = c
	return nil
}

func (m *VectorDBManager) current() (*chromem.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.collection == nil {
		return nil, fmt.Errorf("collection %q is not initialized", m.collectionName)
	}
	return m.collection, nil
}
