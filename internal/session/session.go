// Package session keeps the per-user state shared by the chat and ingestion
// handlers.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"docflow/internal/models"
)

// Session is a JSON valued key/value bag scoped to one browser session.
type Session struct {
	id string

	mu       sync.RWMutex
	values   map[string]json.RawMessage
	modified bool
	loaded   bool
}

func New(id string) *Session {
	return &Session{id: id, values: map[string]json.RawMessage{}}
}

func (s *Session) ID() string { return s.id }

// Modified reports whether the session was written to since it was created
// or loaded.
func (s *Session) Modified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// IsNew reports whether the session was not read back from a store.
func (s *Session) IsNew() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loaded
}

// Get decodes the value stored under key into dst. It reports false when
// the key is absent, leaving dst untouched.
func (s *Session) Get(key string, dst any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, models.SessionError("get "+key, err)
	}
	return true, nil
}

// Set stores v under key.
func (s *Session) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return models.SessionError("set "+key, err)
	}
	s.mu.Lock()
	s.values[key] = raw
	s.modified = true
	s.mu.Unlock()
	return nil
}

func (s *Session) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

func (s *Session) Delete(key string) {
	s.mu.Lock()
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.modified = true
	}
	s.mu.Unlock()
}

// Clear drops every key. Clearing an empty session is not a modification.
func (s *Session) Clear() {
	s.mu.Lock()
	if len(s.values) > 0 {
		s.modified = true
	}
	s.values = map[string]json.RawMessage{}
	s.mu.Unlock()
}

func (s *Session) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.values)
}

func (s *Session) UnmarshalJSON(data []byte) error {
	values := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	s.mu.Lock()
	s.values = values
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Store persists sessions between requests.
// Load returns an empty session for unknown ids.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, id string) error
}
