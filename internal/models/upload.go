package models

import "time"

// DefaultMaxUploads caps the number of sources per session
const DefaultMaxUploads = 10

// UploadRecord describes one ingested source
type UploadRecord struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	UploadedAt time.Time `json:"uploaded_at"`
	Chunks     int       `json:"chunks"`
}

// UploadManifest aggregates the records of a session
type UploadManifest struct {
	Count int            `json:"count"`
	Files []UploadRecord `json:"files"`
}

// Add appends a record, keeping Count in sync.
func (m *UploadManifest) Add(rec UploadRecord) {
	m.Files = append(m.Files, rec)
	m.Count = len(m.Files)
}

// Full reports whether another source may be accepted.
func (m UploadManifest) Full(limit int) bool {
	if limit <= 0 {
		limit = DefaultMaxUploads
	}
	return m.Count >= limit
}
