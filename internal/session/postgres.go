package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pmajor/intake/internal/telemetry"
)

// PostgresStore persists records in a single table for deployments that need
// sessions to survive a restart.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
}

func NewPostgresStore(db *sql.DB, ttl time.Duration) *PostgresStore {
	return &PostgresStore{db: db, ttl: ttl}
}

// EnsureSchema creates the session table if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS intake_sessions (
    id               TEXT PRIMARY KEY,
    agent            TEXT NOT NULL,
    fields           JSONB NOT NULL DEFAULT '{}',
    artifacts        JSONB NOT NULL DEFAULT '{}',
    status           TEXT NOT NULL,
    document         TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL,
    last_accessed_at TIMESTAMPTZ NOT NULL
)`)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, rec *Record) (*Record, error) {
	if n, err := s.ReclaimExpired(ctx); err == nil && n > 0 {
		telemetry.SessionsReclaimed.Add(float64(n))
	}

	now := time.Now()
	cp := rec.Clone()
	cp.CreatedAt = now
	cp.LastAccessedAt = now
	if cp.Fields == nil {
		cp.Fields = map[string]any{}
	}

	fields, artifacts, err := encodeState(cp)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO intake_sessions (id, agent, fields, artifacts, status, document, created_at, last_accessed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (id) DO UPDATE SET
    agent = EXCLUDED.agent,
    fields = EXCLUDED.fields,
    artifacts = EXCLUDED.artifacts,
    status = EXCLUDED.status,
    document = EXCLUDED.document,
    created_at = EXCLUDED.created_at,
    last_accessed_at = EXCLUDED.last_accessed_at`,
		cp.ID, cp.Agent, fields, artifacts, string(cp.Status), cp.Document, now)
	if err != nil {
		return nil, fmt.Errorf("creating session %s: %w", cp.ID, err)
	}
	return cp, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	now := time.Now()
	row := s.db.QueryRowContext(ctx, `
UPDATE intake_sessions SET last_accessed_at = $2 WHERE id = $1
RETURNING agent, fields, artifacts, status, document, created_at`, id, now)

	rec := &Record{ID: id, LastAccessedAt: now}
	var fields, artifacts []byte
	var status string
	err := row.Scan(&rec.Agent, &fields, &artifacts, &status, &rec.Document, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	rec.Status = Status(status)
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return nil, fmt.Errorf("decoding fields for %s: %w", id, err)
	}
	if len(artifacts) > 0 {
		if err := json.Unmarshal(artifacts, &rec.Artifacts); err != nil {
			return nil, fmt.Errorf("decoding artifacts for %s: %w", id, err)
		}
	}
	return rec, nil
}

func (s *PostgresStore) Update(ctx context.Context, rec *Record) error {
	fields, artifacts, err := encodeState(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE intake_sessions SET fields = $2, artifacts = $3, status = $4, document = $5, last_accessed_at = $6
WHERE id = $1`,
		rec.ID, fields, artifacts, string(rec.Status), rec.Document, time.Now())
	if err != nil {
		return fmt.Errorf("updating session %s: %w", rec.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM intake_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ReclaimExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM intake_sessions WHERE last_accessed_at < $1`, time.Now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func encodeState(rec *Record) ([]byte, []byte, error) {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding fields for %s: %w", rec.ID, err)
	}
	artifacts := rec.Artifacts
	if artifacts == nil {
		artifacts = map[string]any{}
	}
	arts, err := json.Marshal(artifacts)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding artifacts for %s: %w", rec.ID, err)
	}
	return fields, arts, nil
}
