// Package tokens acquires and caches per-provider access tokens.
package tokens

import (
	"context"
	"sync"
	"time"
)

// expirySkew treats tokens as expired slightly early so an in-flight call
// never carries a token that lapses mid-request.
const expirySkew = 30 * time.Second

// Token is an access token with its absolute expiry.
type Token struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t Token) validAt(now time.Time) bool {
	return t.Value != "" && now.Add(expirySkew).Before(t.ExpiresAt)
}

// Cache stores tokens by provider id. Implementations are safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, providerID string) (Token, bool, error)
	Set(ctx context.Context, providerID string, token Token) error
	Invalidate(ctx context.Context, providerID string) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu     sync.RWMutex
	tokens map[string]Token
	now    func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{tokens: make(map[string]Token), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, providerID string) (Token, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tok, ok := c.tokens[providerID]
	if !ok || !tok.validAt(c.now()) {
		return Token{}, false, nil
	}
	return tok, true, nil
}

func (c *MemoryCache) Set(_ context.Context, providerID string, token Token) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[providerID] = token
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, providerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, providerID)
	return nil
}
