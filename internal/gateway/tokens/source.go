package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"onboard/pkg/secrets"
)

const (
	assertionType     = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	assertionLifetime = 5 * time.Minute
	defaultTokenTTL   = 10 * time.Minute
)

// ErrNoCredentials means no usable bundle exists for the provider.
var ErrNoCredentials = errors.New("no provider credentials")

// Source hands out access tokens per provider, fetching at most once per
// provider concurrently.
type Source struct {
	cache   Cache
	secrets secrets.Source
	client  *http.Client
	group   singleflight.Group
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Source)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.now = now }
}

func NewSource(cache Cache, secretSource secrets.Source, opts ...Option) *Source {
	s := &Source{
		cache:   cache,
		secrets: secretSource,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns a bearer credential for providerID. Bundles carrying an API
// key are returned directly; others go through the client-credentials flow
// with a signed JWT assertion.
func (s *Source) Token(ctx context.Context, providerID string) (string, error) {
	if tok, ok, err := s.cache.Get(ctx, providerID); err != nil {
		s.logger.WarnContext(ctx, "token cache read failed", "provider_id", providerID, "error", err)
	} else if ok {
		return tok.Value, nil
	}

	v, err, _ := s.group.Do(providerID, func() (any, error) {
		bundle, err := s.secrets.GetSecret(ctx, providerID)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrNoCredentials, err)
		}
		if !bundle.Complete() {
			return "", fmt.Errorf("%w: incomplete bundle for %s", ErrNoCredentials, providerID)
		}
		if bundle.APIKey != "" {
			return bundle.APIKey, nil
		}
		tok, err := s.exchange(ctx, bundle)
		if err != nil {
			return "", err
		}
		if err := s.cache.Set(ctx, providerID, tok); err != nil {
			s.logger.WarnContext(ctx, "token cache write failed", "provider_id", providerID, "error", err)
		}
		return tok.Value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops a cached token, typically after the provider answered 401.
func (s *Source) Invalidate(ctx context.Context, providerID string) {
	if err := s.cache.Invalidate(ctx, providerID); err != nil {
		s.logger.WarnContext(ctx, "token invalidate failed", "provider_id", providerID, "error", err)
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (s *Source) exchange(ctx context.Context, b secrets.Bundle) (Token, error) {
	assertion, err := s.assertion(b)
	if err != nil {
		return Token{}, fmt.Errorf("sign client assertion: %w", err)
	}
	form := url.Values{
		"grant_type":            {"client_credentials"},
		"client_id":             {b.ClientID},
		"client_assertion_type": {assertionType},
		"client_assertion":      {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Token{}, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Token{}, errors.New("token endpoint returned empty access_token")
	}
	ttl := defaultTokenTTL
	if tr.ExpiresIn > 0 {
		ttl = time.Duration(tr.ExpiresIn) * time.Second
	}
	return Token{Value: tr.AccessToken, ExpiresAt: s.now().Add(ttl)}, nil
}

func (s *Source) assertion(b secrets.Bundle) (string, error) {
	now := s.now()
	aud := b.Audience
	if aud == "" {
		aud = b.TokenURL
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    b.ClientID,
		Subject:   b.ClientID,
		Audience:  []string{aud},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionLifetime)),
		ID:        uuid.NewString(),
	})
	return token.SignedString([]byte(b.ClientSecret))
}
