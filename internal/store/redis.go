package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/leadbridge/ghl-adapter/internal/auth"
	"github.com/leadbridge/ghl-adapter/internal/metrics"
)

const sessionKeyPrefix = "ghl:session:"

// Redis is a Redis-backed session store. Records are stored as JSON under
// ghl:session:<id> with a TTL, so refresh tokens survive process restarts.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(addr string, db int, password string, ttl time.Duration, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Redis{client: rdb, ttl: ttl, logger: logger}, nil
}

func (s *Redis) Get(ctx context.Context, sessionID string) (*auth.Record, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.IncSessionAccess("miss")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	var rec auth.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("store.session_decode_failed",
			zap.String("session", sessionID),
			zap.Error(err))
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	metrics.IncSessionAccess("hit")
	return &rec, nil
}

func (s *Redis) Put(ctx context.Context, sessionID string, rec *auth.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *Redis) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

func (s *Redis) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection.
func (s *Redis) Close() error {
	return s.client.Close()
}
