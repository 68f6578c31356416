package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
	fail error
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, false, m.fail
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data[key] = val
	return nil
}

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type countingDir struct {
	calls int
	users map[domain.UserID]domain.UserSummary
}

func (c *countingDir) GetSummary(_ context.Context, id domain.UserID) (*domain.UserSummary, error) {
	c.calls++
	u, ok := c.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func TestDirectory_CachesSummaries(t *testing.T) {
	ctx := context.Background()
	url := "https://cdn/a.png"
	next := &countingDir{users: map[domain.UserID]domain.UserSummary{
		"u1": {ID: "u1", Username: "alice", AvatarURL: &url},
	}}
	d := NewDirectory(next, newMemKV(), time.Minute)

	for i := 0; i < 3; i++ {
		u, err := d.GetSummary(ctx, "u1")
		if err != nil || u.Username != "alice" || u.AvatarURL == nil || *u.AvatarURL != url {
			t.Fatalf("get: %+v %v", u, err)
		}
	}
	if next.calls != 1 {
		t.Fatalf("backing called %d times, want 1", next.calls)
	}
}

func TestDirectory_NotFoundIsNotCached(t *testing.T) {
	next := &countingDir{users: map[domain.UserID]domain.UserSummary{}}
	d := NewDirectory(next, newMemKV(), 0)

	for i := 0; i < 2; i++ {
		if _, err := d.GetSummary(context.Background(), "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("err = %v", err)
		}
	}
	if next.calls != 2 {
		t.Fatalf("misses must go to backing, calls=%d", next.calls)
	}
}

func TestDirectory_DegradesOnCacheFailure(t *testing.T) {
	kv := newMemKV()
	kv.fail = errors.New("connection refused")
	next := &countingDir{users: map[domain.UserID]domain.UserSummary{"u1": {ID: "u1", Username: "alice"}}}
	d := NewDirectory(next, kv, time.Minute)

	u, err := d.GetSummary(context.Background(), "u1")
	if err != nil || u.ID != "u1" {
		t.Fatalf("cache failure must fall through: %+v %v", u, err)
	}
	if next.calls != 1 {
		t.Fatalf("backing calls = %d", next.calls)
	}
}

// CHAT_TEST_REDIS_ADDR=127.0.0.1:6379 go test ./internal/cache
func TestRedis_Integration(t *testing.T) {
	addr := os.Getenv("CHAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHAT_TEST_REDIS_ADDR not set")
	}
	r, err := NewRedis(RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = r.Close() }()

	ctx := context.Background()
	if err := r.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	key := "chat:test:" + time.Now().Format(time.RFC3339Nano)
	if _, ok, err := r.Get(ctx, key); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := r.Set(ctx, key, []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok, err := r.Get(ctx, key); !ok || err != nil || string(v) != "v" {
		t.Fatalf("get: %q %v %v", v, ok, err)
	}
	_ = r.Del(ctx, key)
}
