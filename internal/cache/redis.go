package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"blink/internal/livestatus"
)

// RedisSnapshotStore keeps the active journey snapshot in Redis so that every
// process pointed at the same instance sees one journey.
type RedisSnapshotStore struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

func NewRedisSnapshotStore(addr, password string, db int, logger *slog.Logger) (*RedisSnapshotStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisSnapshotStore{
		client: client,
		key:    KeyActiveJourney,
		logger: logger.With("component", "redis_snapshot"),
	}, nil
}

func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}

func (s *RedisSnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSnapshotStore) Get(ctx context.Context) (*livestatus.Snapshot, error) {
	start := time.Now()
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.logger.Debug("snapshot miss", "key", s.key)
		return nil, nil
	}
	if err != nil {
		s.logger.Error("snapshot get failed", "key", s.key, "error", err)
		return nil, err
	}
	s.logger.Debug("snapshot hit", "key", s.key, "size_bytes", len(data), "duration_ms", time.Since(start).Milliseconds())
	return livestatus.DecodeSnapshot(data)
}

func (s *RedisSnapshotStore) Set(ctx context.Context, snap *livestatus.Snapshot) error {
	data, err := livestatus.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		s.logger.Error("snapshot set failed", "key", s.key, "error", err)
		return err
	}
	s.logger.Debug("snapshot set", "key", s.key, "size_bytes", len(data))
	return nil
}

func (s *RedisSnapshotStore) Remove(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
