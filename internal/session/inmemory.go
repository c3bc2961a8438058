package session

import (
	"context"
	"sync"
	"time"

	"github.com/pmajor/intake/internal/telemetry"
)

// InMemoryStore is the reference store: a map behind an RWMutex with
// TTL-based opportunistic reclamation on create.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Record
	ttl      time.Duration
	now      func() time.Time
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*Record),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *InMemoryStore) Create(ctx context.Context, rec *Record) (*Record, error) {
	if n, _ := s.ReclaimExpired(ctx); n > 0 {
		telemetry.SessionsReclaimed.Add(float64(n))
	}

	now := s.now()
	cp := rec.Clone()
	cp.CreatedAt = now
	cp.LastAccessedAt = now
	if cp.Fields == nil {
		cp.Fields = map[string]any{}
	}

	s.mu.Lock()
	s.sessions[cp.ID] = cp
	s.mu.Unlock()
	return cp.Clone(), nil
}

func (s *InMemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec.LastAccessedAt = s.now()
	return rec.Clone(), nil
}

func (s *InMemoryStore) Update(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[rec.ID]; !ok {
		return ErrNotFound
	}
	cp := rec.Clone()
	cp.LastAccessedAt = s.now()
	s.sessions[rec.ID] = cp
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *InMemoryStore) ReclaimExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id, rec := range s.sessions {
		if rec.LastAccessedAt.Before(cutoff) {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}
