// Package httpprovider talks to live provider APIs over JSON/HTTP.
package httpprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"onboard/internal/gateway/providers"
)

const maxBodyBytes = 1 << 20

// TokenSource supplies bearer credentials per provider.
type TokenSource interface {
	Token(ctx context.Context, providerID string) (string, error)
	Invalidate(ctx context.Context, providerID string)
}

// Config identifies one live provider endpoint.
type Config struct {
	ID      string
	Kind    providers.Kind
	BaseURL string
}

type Option func(*transport)

func WithHTTPClient(c *http.Client) Option {
	return func(t *transport) { t.http = c }
}

func WithClock(now func() time.Time) Option {
	return func(t *transport) { t.now = now }
}

// transport is shared by the sync and async clients.
type transport struct {
	id      string
	kind    providers.Kind
	baseURL string
	http    *http.Client
	tokens  TokenSource
	now     func() time.Time
}

func newTransport(cfg Config, tokens TokenSource, opts []Option) transport {
	t := transport{
		id:      cfg.ID,
		kind:    cfg.Kind,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    http.DefaultClient,
		tokens:  tokens,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

func (t *transport) ID() string           { return t.id }
func (t *transport) Kind() providers.Kind { return t.kind }

// do performs one authenticated request and returns the raw status and body.
// Transport failures come back as categorized ProviderErrors.
func (t *transport) do(ctx context.Context, method, path, idempotencyKey string, body any) (int, []byte, error) {
	token, err := t.tokens.Token(ctx, t.id)
	if err != nil {
		return 0, nil, providers.NewProviderError(providers.ErrorAuthentication, t.id, "acquire token", err)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, providers.NewProviderError(providers.ErrorInternal, t.id, "encode request", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return 0, nil, providers.NewProviderError(providers.ErrorInternal, t.id, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, nil, providers.NewProviderError(providers.ErrorTimeout, t.id, "request timed out", err)
		}
		return 0, nil, providers.NewProviderError(providers.ErrorProviderOutage, t.id, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, providers.NewProviderError(providers.ErrorProviderOutage, t.id, "read response", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		t.tokens.Invalidate(ctx, t.id)
	}
	return resp.StatusCode, raw, nil
}

func statusError(providerID string, status int, body []byte) error {
	var e struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	_ = json.Unmarshal(body, &e)
	msg := e.Reason
	if msg == "" {
		msg = e.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("unexpected status %d", status)
	}
	return providers.NewProviderError(providers.CategoryForStatus(status), providerID, msg, nil)
}
