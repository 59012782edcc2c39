package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"docflow/internal/models"
)

type memEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore keeps serialised sessions in process memory. Expired entries
// are dropped on Load and swept from the whole map at most once per ttl on Save.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	m         map[string]memEntry
	now       func() time.Time
	nextSweep time.Time
}

// NewMemoryStore creates a store; ttl <= 0 keeps sessions forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, m: map[string]memEntry{}, now: time.Now}
}

func (s *MemoryStore) Load(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	e, ok := s.m[id]
	if ok && !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		delete(s.m, id)
		ok = false
	}
	s.mu.Unlock()

	sess := New(id)
	if !ok {
		return sess, nil
	}
	if err := json.Unmarshal(e.data, sess); err != nil {
		return nil, models.SessionError("load", err)
	}
	return sess, nil
}

// Save stores a copy so later mutations need another Save.
func (s *MemoryStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return models.SessionError("save", err)
	}
	now := s.now()
	e := memEntry{data: data}
	if s.ttl > 0 {
		e.expiresAt = now.Add(s.ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttl > 0 && !now.Before(s.nextSweep) {
		s.sweep(now)
		s.nextSweep = now.Add(s.ttl)
	}
	s.m[sess.ID()] = e
	return nil
}

func (s *MemoryStore) sweep(now time.Time) {
	n := 0
	for id, e := range s.m {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(s.m, id)
			n++
		}
	}
	if n > 0 {
		log.Debug().Int("expired", n).Int("live", len(s.m)).Msg("Swept sessions")
	}
}

// Len returns the number of stored sessions, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
	return nil
}
