package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "onboard:token:"

// RedisCache shares tokens between instances. Entries expire in Redis at the
// token's own expiry.
type RedisCache struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, now: time.Now}
}

func (c *RedisCache) Get(ctx context.Context, providerID string) (Token, bool, error) {
	raw, err := c.client.Get(ctx, tokenKeyPrefix+providerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, fmt.Errorf("get token: %w", err)
	}
	var tok Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return Token{}, false, fmt.Errorf("decode cached token: %w", err)
	}
	if !tok.validAt(c.now()) {
		return Token{}, false, nil
	}
	return tok, true, nil
}

func (c *RedisCache) Set(ctx context.Context, providerID string, token Token) error {
	ttl := token.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return c.client.Set(ctx, tokenKeyPrefix+providerID, raw, ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, providerID string) error {
	return c.client.Del(ctx, tokenKeyPrefix+providerID).Err()
}
