package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "voicegate:room:"

// RedisStore shares room records between portal replicas.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("record: parse redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts), ttl: ttl}, nil
}

func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("record: marshal: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+rec.Room, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("record: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, room string) (Record, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+room).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("record: redis get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("record: unmarshal: %w", err)
	}
	return rec, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
