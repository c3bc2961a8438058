package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis is an in-memory stand-in for the go-redis client covering the
// commands the store issues.
type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.values[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			delete(f.ttls, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func newTestRedisStore() (*RedisStore, *fakeRedis) {
	fake := newFakeRedis()
	return &RedisStore{client: fake, ttl: 24 * time.Hour}, fake
}

func TestRedisCreateWritesKeyWithTTL(t *testing.T) {
	t.Parallel()
	s, fake := newTestRedisStore()
	ctx := context.Background()

	rec, err := s.Create(ctx, &Record{ID: "s1", Agent: "application", Status: StatusCollecting})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Fields == nil {
		t.Fatalf("create should initialize fields map")
	}

	raw, ok := fake.values["intake:session:s1"]
	if !ok {
		t.Fatalf("record not stored under the session key namespace: %v", fake.values)
	}
	if !strings.Contains(raw, `"agent":"application"`) {
		t.Fatalf("stored value not the JSON record: %s", raw)
	}
	if fake.ttls["intake:session:s1"] != 24*time.Hour {
		t.Fatalf("key written without the configured TTL: %v", fake.ttls)
	}
}

func TestRedisGetRefreshesExpiry(t *testing.T) {
	t.Parallel()
	s, fake := newTestRedisStore()
	ctx := context.Background()

	_, _ = s.Create(ctx, &Record{ID: "s1", Agent: "dossier"})
	// simulate the key nearing expiry
	fake.ttls["intake:session:s1"] = time.Minute

	got, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Agent != "dossier" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if fake.ttls["intake:session:s1"] != 24*time.Hour {
		t.Fatalf("get did not re-arm the TTL: %v", fake.ttls)
	}
}

func TestRedisNotFound(t *testing.T) {
	t.Parallel()
	s, _ := newTestRedisStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "ghost"); err != ErrNotFound {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if err := s.Update(ctx, &Record{ID: "ghost"}); err != ErrNotFound {
		t.Fatalf("update: expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "ghost"); err != ErrNotFound {
		t.Fatalf("delete: expected ErrNotFound, got %v", err)
	}
}

func TestRedisUpdateAndDelete(t *testing.T) {
	t.Parallel()
	s, fake := newTestRedisStore()
	ctx := context.Background()

	_, _ = s.Create(ctx, &Record{ID: "s1", Status: StatusCollecting})

	rec, _ := s.Get(ctx, "s1")
	rec.Status = StatusGenerated
	rec.Document = "doc body"
	if err := s.Update(ctx, rec); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := s.Get(ctx, "s1")
	if again.Status != StatusGenerated || again.Document != "doc body" {
		t.Fatalf("update not persisted: %+v", again)
	}

	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(fake.values) != 0 {
		t.Fatalf("key not removed: %v", fake.values)
	}
}

func TestRedisReclaimIsNoop(t *testing.T) {
	t.Parallel()
	s, _ := newTestRedisStore()
	n, err := s.ReclaimExpired(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("reclaim should be a no-op under native expiry, got (%d, %v)", n, err)
	}
}
