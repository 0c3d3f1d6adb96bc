package tokens

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"onboard/pkg/secrets"
)

type SourceSuite struct {
	suite.Suite
	server *httptest.Server
	hits   atomic.Int32
	delay  time.Duration
	source *Source
	cache  *MemoryCache
}

func TestSourceSuite(t *testing.T) {
	suite.Run(t, new(SourceSuite))
}

func (s *SourceSuite) SetupTest() {
	s.hits.Store(0)
	s.delay = 0
	s.server = httptest.NewServer(http.HandlerFunc(s.tokenEndpoint))
	s.cache = NewMemoryCache()
	s.source = NewSource(s.cache, secrets.StaticSource{
		"identity": {ClientID: "onboard", ClientSecret: "shh", TokenURL: s.server.URL},
		"keyed":    {APIKey: "static-key"},
		"partial":  {ClientID: "onboard"},
	})
}

func (s *SourceSuite) TearDownTest() {
	s.server.Close()
}

func (s *SourceSuite) tokenEndpoint(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	time.Sleep(s.delay)
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(r.PostForm.Get("client_assertion"), claims, func(*jwt.Token) (any, error) {
		return []byte("shh"), nil
	})
	if err != nil || claims.Issuer != "onboard" || r.PostForm.Get("client_assertion_type") != assertionType {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok-1", ExpiresIn: 3600})
}

func (s *SourceSuite) TestExchangeAndCache() {
	ctx := context.Background()
	tok, err := s.source.Token(ctx, "identity")
	s.Require().NoError(err)
	s.Equal("tok-1", tok)

	tok, err = s.source.Token(ctx, "identity")
	s.Require().NoError(err)
	s.Equal("tok-1", tok)
	s.Equal(int32(1), s.hits.Load(), "second call served from cache")
}

func (s *SourceSuite) TestInvalidateForcesRefetch() {
	ctx := context.Background()
	_, err := s.source.Token(ctx, "identity")
	s.Require().NoError(err)

	s.source.Invalidate(ctx, "identity")
	_, err = s.source.Token(ctx, "identity")
	s.Require().NoError(err)
	s.Equal(int32(2), s.hits.Load())
}

func (s *SourceSuite) TestConcurrentCallersShareOneFetch() {
	s.delay = 100 * time.Millisecond
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := s.source.Token(context.Background(), "identity")
			s.NoError(err)
			s.Equal("tok-1", tok)
		}()
	}
	wg.Wait()
	s.Equal(int32(1), s.hits.Load())
}

func (s *SourceSuite) TestAPIKeyBypassesExchange() {
	tok, err := s.source.Token(context.Background(), "keyed")
	s.Require().NoError(err)
	s.Equal("static-key", tok)
	s.Equal(int32(0), s.hits.Load())
}

func (s *SourceSuite) TestMissingCredentials() {
	_, err := s.source.Token(context.Background(), "unknown")
	s.ErrorIs(err, ErrNoCredentials)

	_, err = s.source.Token(context.Background(), "partial")
	s.ErrorIs(err, ErrNoCredentials)
}

func TestMemoryCacheExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "p", Token{Value: "v", ExpiresAt: now.Add(time.Hour)}))
	_, ok, err := c.Get(ctx, "p")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Hour - 10*time.Second)
	_, ok, _ = c.Get(ctx, "p")
	assert.False(t, ok, "tokens inside the skew window are treated as expired")
}
