package models

import "time"

// Chunk represents an ingested span of text with its source metadata
type Chunk struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SourceName string    `json:"source_name,omitempty"`
	SourceType string    `json:"source_type,omitempty"`
	UploadedAt time.Time `json:"uploaded_at,omitempty"`
}

// ScoredChunk is a chunk returned by the index together with its similarity
// to the query and the embedding it was stored with.
type ScoredChunk struct {
	Chunk     Chunk     `json:"chunk"`
	Score     float32   `json:"score"`
	Embedding []float32 `json:"-"`
}

// QueryResult holds one nearest-neighbour lookup.
type QueryResult struct {
	QueryEmbedding []float32
	Matches        []ScoredChunk
}

// Source is the reference returned next to an answer.
type Source struct {
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Snippet string  `json:"snippet"`
	Score   float32 `json:"score"`
}

// metadata keys used by the vector backends
const (
	MetaSourceName = "name"
	MetaSourceType = "type"
	MetaUploadedAt = "uploaded_at"
)

// Metadata flattens the chunk's source information for the vector store.
func (c Chunk) Metadata() map[string]string {
	m := map[string]string{}
	if c.SourceName != "" {
		m[MetaSourceName] = c.SourceName
	}
	if c.SourceType != "" {
		m[MetaSourceType] = c.SourceType
	}
	if !c.UploadedAt.IsZero() {
		m[MetaUploadedAt] = c.UploadedAt.UTC().Format(time.RFC3339)
	}
	return m
}

// ChunkFromMetadata rebuilds a chunk from stored content and metadata.
func ChunkFromMetadata(id, content string, meta map[string]string) Chunk {
	c := Chunk{
		ID:         id,
		Content:    content,
		SourceName: meta[MetaSourceName],
		SourceType: meta[MetaSourceType],
	}
	if ts, ok := meta[MetaUploadedAt]; ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			c.UploadedAt = t
		}
	}
	return c
}
