package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docflow/internal/embedding"
	"docflow/internal/models"
)

// Vector is a pgvector column value in its text form "[1,2,3]"
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String(), nil
}

func (v *Vector) Scan(src any) error {
	var s string
	switch t := src.(type) {
	case nil:
		*v = nil
		return nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return fmt.Errorf("cannot scan %T into Vector", src)
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		*v = Vector{}
		return nil
	}
	parts := strings.Split(s, ",")
	out := make(Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return fmt.Errorf("invalid vector element %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	*v = out
	return nil
}

type DocumentChunk struct {
	bun.BaseModel `bun:"table:document_chunks,alias:dc"`
	ID            string    `bun:"id,pk"`
	Content       string    `bun:"content,notnull"`
	SourceName    string    `bun:"source_name"`
	SourceType    string    `bun:"source_type"`
	UploadedAt    time.Time `bun:"uploaded_at,nullzero"`
	Embedding     Vector    `bun:"embedding,notnull"`
	Similarity    float32   `bun:"similarity,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(dsn string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

// Store keeps chunks in a pgvector table and ranks them by cosine distance
type Store struct {
	db         *bun.DB
	embedder   embeddings.Embedder
	dimensions int
}

func NewStore(db *bun.DB, embedder embeddings.Embedder, dimensions int) *Store {
	return &Store{db: db, embedder: embedder, dimensions: dimensions}
}

// Init creates the extension and table
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	source_name TEXT,
	source_type TEXT,
	uploaded_at TIMESTAMPTZ,
	embedding vector(%d) NOT NULL
)`, s.dimensions)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	log.Info().Int("dimensions", s.dimensions).Msg("pgvector table ready")
	return nil
}

func (s *Store) Add(ctx context.Context, chunks []models.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}
	rows := make([]DocumentChunk, len(chunks))
	for i, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		rows[i] = DocumentChunk{
			ID:         id,
			Content:    c.Content,
			SourceName: c.SourceName,
			SourceType: c.SourceType,
			UploadedAt: c.UploadedAt,
			Embedding:  Vector(embedding.Normalize(vecs[i])),
		}
	}
	if _, err := s.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, query string, n int) (*models.QueryResult, error) {
	q, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	q = embedding.Normalize(q)
	res := &models.QueryResult{QueryEmbedding: q}
	if n <= 0 {
		return res, nil
	}

	var rows []DocumentChunk
	err = s.db.NewSelect().
		Model(&rows).
		Column("id", "content", "source_name", "source_type", "uploaded_at", "embedding").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", Vector(q)).
		OrderExpr("embedding <=> ?", Vector(q)).
		Limit(n).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	for _, r := range rows {
		res.Matches = append(res.Matches, models.ScoredChunk{
			Chunk: models.Chunk{
				ID:         r.ID,
				Content:    r.Content,
				SourceName: r.SourceName,
				SourceType: r.SourceType,
				UploadedAt: r.UploadedAt,
			},
			Score:     r.Similarity,
			Embedding: []float32(r.Embedding),
		})
	}
	return res, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*DocumentChunk)(nil)).Count(ctx)
}

// Reset truncates the chunk table
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.NewTruncateTable().Model((*DocumentChunk)(nil)).Exec(ctx)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
