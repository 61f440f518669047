package store

import (
	"context"
	"sync"
	"time"

	"github.com/leadbridge/ghl-adapter/internal/auth"
	"github.com/leadbridge/ghl-adapter/internal/metrics"
)

// Memory is an in-process session store: a mutex-guarded TTL map from
// session ID to credential record. Records vanish on restart; use the Redis
// store when sessions must survive the process.
type Memory struct {
	mu   sync.RWMutex
	data map[string]memoryItem
	ttl  time.Duration
}

type memoryItem struct {
	rec        *auth.Record
	expiration time.Time
}

// NewMemory creates an in-memory session store. ttl bounds how long an
// untouched session survives, independent of access-token expiry.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		data: make(map[string]memoryItem),
		ttl:  ttl,
	}
}

func (s *Memory) Get(ctx context.Context, sessionID string) (*auth.Record, error) {
	s.mu.RLock()
	item, ok := s.data[sessionID]
	s.mu.RUnlock()
	if !ok {
		metrics.IncSessionAccess("miss")
		return nil, nil
	}
	if time.Now().After(item.expiration) {
		s.mu.Lock()
		delete(s.data, sessionID)
		s.mu.Unlock()
		metrics.IncSessionAccess("miss")
		return nil, nil
	}
	metrics.IncSessionAccess("hit")

	// Copy so callers never mutate the stored record outside Put.
	rec := *item.rec
	return &rec, nil
}

func (s *Memory) Put(ctx context.Context, sessionID string, rec *auth.Record) error {
	cp := *rec
	s.mu.Lock()
	s.data[sessionID] = memoryItem{rec: &cp, expiration: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *Memory) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.data, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *Memory) HealthCheck(ctx context.Context) error { return nil }

// StartCleaner periodically removes expired sessions.
func (s *Memory) StartCleaner(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-stop:
			return
		}
	}
}

func (s *Memory) cleanupExpired() {
	now := time.Now()
	s.mu.Lock()
	for k, v := range s.data {
		if now.After(v.expiration) {
			delete(s.data, k)
		}
	}
	s.mu.Unlock()
}
