package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neudev/attemptd/internal/model"
)

// RedisStore keeps each record as a JSON string that expires a grace period
// after the attempt deadline, long enough for a late auto-submit.
type RedisStore struct {
	rdb   *redis.Client
	grace time.Duration
	now   func() time.Time
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(rdb *redis.Client, grace time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, grace: grace, now: time.Now}
}

func (s *RedisStore) Load(ctx context.Context, key model.SessionKey) (*model.SessionRecord, error) {
	data, err := s.rdb.Get(ctx, StorageKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get attempt state: %w", err)
	}
	return decodeRecord(data)
}

func (s *RedisStore) Save(ctx context.Context, key model.SessionKey, rec *model.SessionRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, StorageKey(key), data, s.ttl(rec)).Err(); err != nil {
		return fmt.Errorf("redis set attempt state: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key model.SessionKey) error {
	if err := s.rdb.Del(ctx, StorageKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del attempt state: %w", err)
	}
	return nil
}

func (s *RedisStore) ttl(rec *model.SessionRecord) time.Duration {
	ttl := time.UnixMilli(rec.EndTime).Sub(s.now()) + s.grace
	if ttl < s.grace {
		ttl = s.grace
	}
	return ttl
}
