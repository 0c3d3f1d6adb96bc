package objectstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

const objectKeyPrefix = "onboard:object:"

// knownPurposes bounds DeleteProcess without a SCAN.
var knownPurposes = []Purpose{PurposeIDDocument, PurposeSelfie}

// RedisStore keeps artifacts in Redis with an optional expiry matching the
// process lifetime.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisOption func(*RedisStore)

// WithTTL expires objects after d; zero keeps them until deleted.
func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = d }
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func redisKey(processID domain.ProcessID, purpose Purpose) string {
	return objectKeyPrefix + processID.String() + ":" + string(purpose)
}

func (s *RedisStore) Put(ctx context.Context, processID domain.ProcessID, purpose Purpose, data []byte) error {
	if err := s.client.Set(ctx, redisKey(processID, purpose), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, processID domain.ProcessID, purpose Purpose) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKey(processID, purpose)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("object %s/%s: %w", processID, purpose, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return data, nil
}

func (s *RedisStore) DeleteProcess(ctx context.Context, processID domain.ProcessID) error {
	keys := make([]string, 0, len(knownPurposes))
	for _, p := range knownPurposes {
		keys = append(keys, redisKey(processID, p))
	}
	return s.client.Del(ctx, keys...).Err()
}
