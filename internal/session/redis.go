package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCommands is the slice of the go-redis client this store uses; tests
// substitute an in-memory fake.
type redisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps records as JSON values under intake:session:<id>. Redis
// key expiry enforces the TTL, so ReclaimExpired has nothing to sweep.
type RedisStore struct {
	client redisCommands
	ttl    time.Duration
}

func NewRedisStore(addr, password string, db int, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		ttl:    ttl,
	}
}

func key(id string) string { return fmt.Sprintf("intake:session:%s", id) }

func (s *RedisStore) Create(ctx context.Context, rec *Record) (*Record, error) {
	now := time.Now()
	cp := rec.Clone()
	cp.CreatedAt = now
	cp.LastAccessedAt = now
	if cp.Fields == nil {
		cp.Fields = map[string]any{}
	}
	if err := s.write(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	val, err := s.client.Get(ctx, key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	rec.LastAccessedAt = time.Now()
	if err := s.write(ctx, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStore) Update(ctx context.Context, rec *Record) error {
	exists, err := s.client.Exists(ctx, key(rec.ID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	cp := rec.Clone()
	cp.LastAccessedAt = time.Now()
	return s.write(ctx, cp)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, key(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) ReclaimExpired(ctx context.Context) (int, error) {
	// Redis expires keys itself; nothing to do.
	return 0, nil
}

func (s *RedisStore) write(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", rec.ID, err)
	}
	return s.client.Set(ctx, key(rec.ID), data, s.ttl).Err()
}
