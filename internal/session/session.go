// Package session holds the per-conversation state record and its keyed
// stores. A record accumulates extracted fields while an agent clarifies, then
// carries the pipeline artifacts and the generated document.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/pmajor/intake/config"
)

// Status tracks where a session is in the clarify-then-generate lifecycle.
type Status string

const (
	StatusCollecting  Status = "collecting"
	StatusReady       Status = "ready"
	StatusGenerating  Status = "generating"
	StatusResearching Status = "researching"
	StatusAnalyzing   Status = "analyzing"
	StatusGenerated   Status = "generated"
	StatusError       Status = "error"
)

// ErrNotFound is returned by Get/Update/Delete for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Record is the unit of state for one conversation.
//
// Fields holds the data extracted from user messages, keyed by schema field
// name. Artifacts holds structured stage outputs (research hits, the
// synthesized dossier, annotations). Once Status is StatusGenerated, Document
// is non-empty and Fields only change through the context-refresh operation.
type Record struct {
	ID             string         `json:"id"`
	Agent          string         `json:"agent"`
	Fields         map[string]any `json:"fields"`
	Artifacts      map[string]any `json:"artifacts,omitempty"`
	Status         Status         `json:"status"`
	Document       string         `json:"document,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
}

// Clone returns a deep copy of the record. Field and artifact values are
// JSON-shaped by construction, so a JSON round-trip is a faithful copy and
// keeps every backend returning identically-typed values.
func (r *Record) Clone() *Record {
	out := *r
	out.Fields = cloneMap(r.Fields)
	out.Artifacts = cloneMap(r.Artifacts)
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		cp := make(map[string]any, len(m))
		for k, v := range m {
			cp[k] = v
		}
		return cp
	}
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}

// Store keeps session records keyed by their caller-supplied opaque id.
//
// Create overwrites any prior record with the same id and opportunistically
// reclaims expired sessions first. Get touches the record's last-accessed
// time. No operation blocks across keys; per-session write serialization is
// the orchestrator's job (see KeyedMutex).
type Store interface {
	Create(ctx context.Context, rec *Record) (*Record, error)
	Get(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	ReclaimExpired(ctx context.Context) (int, error)
}

// NewStore builds the configured store backend.
func NewStore(cfg config.SessionsConfig) (Store, error) {
	switch cfg.Store {
	case "inmemory", "":
		return NewInMemoryStore(cfg.TTL), nil
	case "redis":
		return NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.TTL), nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		ps := NewPostgresStore(db, cfg.TTL)
		if err := ps.EnsureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("ensuring session table: %w", err)
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Store)
	}
}

// KeyedMutex serializes mutations per session id. Two concurrent calls
// against one session interleaving their field merges is the hazard this
// closes; distinct sessions never contend.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the mutex for id and returns its unlock function.
func (k *KeyedMutex) Lock(id string) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &keyedLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
