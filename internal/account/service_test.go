package account

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"onboard/internal/gateway"
	"onboard/internal/gateway/providers"
	"onboard/internal/gateway/stub"
	"onboard/pkg/domain"
	"onboard/pkg/testutil"
)

// countingGateway records calls per provider before delegating.
type countingGateway struct {
	inner *gateway.Gateway
	calls map[string]int
	last  map[string]providers.Request
}

func (c *countingGateway) Call(ctx context.Context, id string, req providers.Request) gateway.Outcome {
	c.calls[id]++
	c.last[id] = req
	return c.inner.Call(ctx, id, req)
}

type AccountSuite struct {
	suite.Suite
	req Request
}

func TestAccountSuite(t *testing.T) {
	suite.Run(t, new(AccountSuite))
}

func (s *AccountSuite) SetupTest() {
	s.req = Request{
		ProcessID:  domain.NewProcessID(),
		CustomerID: domain.CustomerID(domain.NewProcessID()),
		FullName:   "Ada Lovelace",
		Email:      "ada@example.com",
		Product:    ProductPremium,
	}
}

func (s *AccountSuite) service(fixtures string) (*Service, *countingGateway) {
	f, err := stub.ParseFixtures([]byte(fixtures))
	s.Require().NoError(err)
	reg, err := stub.NewRegistry(stub.WithFixtures(f))
	s.Require().NoError(err)
	gw, err := gateway.New(reg, gateway.WithPolicy(gateway.Policy{Timeout: time.Second, MaxAttempts: 1}))
	s.Require().NoError(err)
	cg := &countingGateway{inner: gw, calls: map[string]int{}, last: map[string]providers.Request{}}
	svc, err := New(cg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	return svc, cg
}

func (s *AccountSuite) TestNewRequiresGateway() {
	_, err := New(nil)
	s.Error(err)
}

func (s *AccountSuite) TestOpen() {
	svc, gw := s.service("")

	res, err := svc.Open(testutil.Context(), s.req)

	s.Require().NoError(err)
	s.Require().True(res.Created, res.Reason)
	s.Len(res.Account.AccountNumber, 9)
	s.Contains(res.Account.RoutingCode, "062-")
	s.Equal(ProductPremium, res.Account.Product)
	s.Contains(res.Account.WelcomeMessage, "Ada Lovelace")
	s.NotEmpty(res.Account.Recommendations)
	s.True(res.Account.Simulated)
	s.Equal(testutil.FixedNow, res.Account.OpenedAt)
	s.Equal(s.req.ProcessID.String(), gw.last[providers.IDCoreBanking].IdempotencyKey)
}

func (s *AccountSuite) TestRepeatedOpenReturnsSameAccount() {
	svc, _ := s.service("")

	first, err := svc.Open(testutil.Context(), s.req)
	s.Require().NoError(err)
	second, err := svc.Open(testutil.Context(), s.req)
	s.Require().NoError(err)

	s.Equal(first.Account.AccountNumber, second.Account.AccountNumber)
}

func (s *AccountSuite) TestTextGenerationFallsBackToStaticText() {
	svc, _ := s.service("providers:\n  text-generation:\n    error: provider_outage\n")

	res, err := svc.Open(testutil.Context(), s.req)

	s.Require().NoError(err)
	s.Require().True(res.Created)
	s.Equal(defaultWelcome("Ada Lovelace", ProductPremium), res.Account.WelcomeMessage)
	s.Equal(defaultRecommendations[ProductPremium], res.Account.Recommendations)
}

func (s *AccountSuite) TestProviderFailures() {
	s.Run("outage", func() {
		svc, gw := s.service("providers:\n  core-banking:\n    error: provider_outage\n")
		res, err := svc.Open(testutil.Context(), s.req)
		s.Require().NoError(err)
		s.False(res.Created)
		s.True(res.ProviderFailure)
		s.Zero(gw.calls[providers.IDTextGeneration], "no welcome text without an account")
	})
	s.Run("declined", func() {
		svc, _ := s.service("providers:\n  core-banking:\n    verified: false\n    reason: duplicate customer\n")
		res, err := svc.Open(testutil.Context(), s.req)
		s.Require().NoError(err)
		s.False(res.Created)
		s.False(res.ProviderFailure)
		s.Equal("duplicate customer", res.Reason)
	})
}

func (s *AccountSuite) TestOpenRequiresProcessID() {
	svc, _ := s.service("")
	_, err := svc.Open(testutil.Context(), Request{})
	s.Error(err)
}

func TestSelectProduct(t *testing.T) {
	assert.Equal(t, ProductPremium, SelectProduct(" Premium "))
	assert.Equal(t, ProductEveryday, SelectProduct(""))
	assert.Equal(t, ProductEveryday, SelectProduct("platinum"))
}

func TestParseRecommendations(t *testing.T) {
	assert.Equal(t, []string{"Save more", "Spend less"},
		parseRecommendations("- Save more\n\n* Spend less\n- Save more\n"))
}
