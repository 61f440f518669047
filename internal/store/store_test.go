package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/leadbridge/ghl-adapter/internal/auth"
)

func testRecord() *auth.Record {
	return &auth.Record{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		LocationID:   "loc-1",
		CompanyID:    "co-1",
	}
}

// ─── Memory ──────────────────────────────────────────────────────────────────

func TestMemory_PutAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(time.Minute)

	if err := s.Put(ctx, "sess-1", testRecord()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.AccessToken != "at-1" {
		t.Errorf("expected access token at-1, got %s", got.AccessToken)
	}
	if got.LocationID != "loc-1" {
		t.Errorf("expected location loc-1, got %s", got.LocationID)
	}
}

func TestMemory_GetMiss(t *testing.T) {
	s := NewMemory(time.Minute)

	got, err := s.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil on miss, got %+v", got)
	}
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(time.Minute)
	_ = s.Put(ctx, "sess-1", testRecord())

	first, _ := s.Get(ctx, "sess-1")
	first.AccessToken = "mutated"

	second, _ := s.Get(ctx, "sess-1")
	if second.AccessToken != "at-1" {
		t.Errorf("caller mutation leaked into store: %s", second.AccessToken)
	}
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(time.Minute)
	_ = s.Put(ctx, "sess-1", testRecord())

	if err := s.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, _ := s.Get(ctx, "sess-1")
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(10 * time.Millisecond)
	_ = s.Put(ctx, "sess-1", testRecord())

	time.Sleep(25 * time.Millisecond)

	got, err := s.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected expired entry to read as miss, got %+v", got)
	}
}

// ─── Redis ───────────────────────────────────────────────────────────────────

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &Redis{client: rdb, ttl: time.Minute, logger: zap.NewNop()}, mr
}

func TestRedis_PutAndGet(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t)
	defer mr.Close()

	if err := s.Put(ctx, "sess-1", testRecord()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.RefreshToken != "rt-1" {
		t.Errorf("expected refresh token rt-1, got %s", got.RefreshToken)
	}
	if !got.ExpiresAt.Equal(testRecord().ExpiresAt) {
		t.Errorf("expires_at round-trip mismatch: %v", got.ExpiresAt)
	}
}

func TestRedis_GetMiss(t *testing.T) {
	s, mr := newTestRedis(t)
	defer mr.Close()

	got, err := s.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil on miss, got %+v", got)
	}
}

func TestRedis_KeyPrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t)
	defer mr.Close()

	_ = s.Put(ctx, "sess-1", testRecord())

	if !mr.Exists("ghl:session:sess-1") {
		t.Fatal("expected key under ghl:session: prefix")
	}
	if mr.TTL("ghl:session:sess-1") != time.Minute {
		t.Errorf("expected 1m TTL, got %v", mr.TTL("ghl:session:sess-1"))
	}
}

func TestRedis_Delete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t)
	defer mr.Close()

	_ = s.Put(ctx, "sess-1", testRecord())
	if err := s.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, _ := s.Get(ctx, "sess-1")
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestRedis_CorruptRecord(t *testing.T) {
	s, mr := newTestRedis(t)
	defer mr.Close()

	_ = mr.Set("ghl:session:bad", "{not json")

	_, err := s.Get(context.Background(), "bad")
	if err == nil {
		t.Fatal("expected decode error for corrupt record")
	}
}

func TestRedis_RecordJSONShape(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t)
	defer mr.Close()

	_ = s.Put(ctx, "sess-1", testRecord())

	raw, err := mr.Get("ghl:session:sess-1")
	if err != nil {
		t.Fatalf("raw get failed: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("stored value is not JSON: %v", err)
	}
	if m["access_token"] != "at-1" {
		t.Errorf("expected access_token field, got %v", m)
	}
}
