package financial

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/testutil"
)

func ptr(v float64) *float64 { return &v }

type fakeConsent struct{ err error }

func (f fakeConsent) Require(context.Context, domain.ProcessID, domain.ConsentPurpose) error {
	return f.err
}

type fakePrimary struct {
	data  *PrimaryData
	err   error
	calls atomic.Int32
}

func (f *fakePrimary) Fetch(context.Context, Request) (*PrimaryData, error) {
	f.calls.Add(1)
	return f.data, f.err
}

type fakeVerifier struct {
	data *Affordability
	err  error
}

func (f *fakeVerifier) Verify(context.Context, Request) (*Affordability, error) { return f.data, f.err }

// fakeStatements reports Pending `pending` times, then Complete.
type fakeStatements struct {
	pending int
	polls   atomic.Int32
	data    *StatementData
	err     error
}

func (f *fakeStatements) Start(context.Context, Request) (string, error) { return "job-1", f.err }

func (f *fakeStatements) Poll(context.Context, string) (*JobStatus, error) {
	n := int(f.polls.Add(1))
	if n <= f.pending {
		return &JobStatus{State: JobPending}, nil
	}
	return &JobStatus{State: JobComplete, Statement: f.data}, nil
}

type fakeEnricher struct {
	data *EnrichmentData
	err  error
}

func (f *fakeEnricher) Enrich(context.Context, Request) (*EnrichmentData, error) { return f.data, f.err }

var fixedNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type AggregatorSuite struct {
	suite.Suite
	ctx        context.Context
	consent    fakeConsent
	primary    *fakePrimary
	verifier   *fakeVerifier
	statements *fakeStatements
	enricher   *fakeEnricher
	waits      int
}

func TestAggregatorSuite(t *testing.T) {
	suite.Run(t, new(AggregatorSuite))
}

func (s *AggregatorSuite) SetupTest() {
	s.ctx = testutil.ContextAt(fixedNow)
	s.consent = fakeConsent{}
	s.primary = &fakePrimary{data: &PrimaryData{Verified: true, Income: ptr(6500), Expenses: ptr(4000)}}
	s.verifier = &fakeVerifier{data: &Affordability{Verified: true, AccountName: "Ada Lovelace", Income: ptr(7000), Expenses: ptr(4200), SavingsRatio: ptr(0.25)}}
	s.statements = &fakeStatements{data: &StatementData{RegularIncome: ptr(6800), RegularExpenses: ptr(5000)}}
	s.enricher = &fakeEnricher{data: &EnrichmentData{Balance: ptr(50), NetWorth: ptr(1000)}}
	s.waits = 0
}

func (s *AggregatorSuite) aggregator(opts ...Option) *Aggregator {
	poller := NewPoller(time.Second, 4)
	poller.wait = func(context.Context, time.Duration) error {
		s.waits++
		return nil
	}
	a, err := NewAggregator(s.consent, s.primary, s.verifier, s.statements, s.enricher,
		append([]Option{WithPoller(poller)}, opts...)...)
	s.Require().NoError(err)
	return a
}

func (s *AggregatorSuite) TestPrimaryIncomeWins() {
	res, err := s.aggregator().Aggregate(s.ctx, Request{ProcessID: domain.NewProcessID()})
	s.Require().NoError(err)
	s.Require().True(res.Verified)
	s.Equal(&Figure{Value: 6500, Source: SourcePrimary}, res.Profile.Income)
	s.Equal(&Figure{Value: 4000, Source: SourcePrimary}, res.Profile.Expenses)
	s.Equal(&Figure{Value: 1750, Source: SourceVerifier}, res.Profile.Savings, "savings picked per field")
	s.Equal("Ada Lovelace", res.Profile.AccountName)
}

func (s *AggregatorSuite) TestVerifierIncomeWhenPrimaryAbsent() {
	s.primary.data = &PrimaryData{Verified: true}
	res, err := s.aggregator().Aggregate(s.ctx, Request{})
	s.Require().NoError(err)
	s.Equal(&Figure{Value: 7000, Source: SourceVerifier}, res.Profile.Income)
}

func (s *AggregatorSuite) TestStatementsAreLastResort() {
	s.primary.data = &PrimaryData{Verified: true}
	s.verifier.data = &Affordability{Verified: true}
	res, err := s.aggregator().Aggregate(s.ctx, Request{})
	s.Require().NoError(err)
	s.Equal(&Figure{Value: 6800, Source: SourceStatements}, res.Profile.Income)
	s.Equal(&Figure{Value: 1800, Source: SourceStatements}, res.Profile.Savings)
}

func (s *AggregatorSuite) TestConsentMissingCallsNoProvider() {
	s.consent = fakeConsent{err: dErrors.New(dErrors.CodeConsentRequired, "consent required for cdr_financial_data")}
	res, err := s.aggregator().Aggregate(s.ctx, Request{})
	s.Require().NoError(err)
	s.False(res.Verified)
	s.Equal(FailureConsentRequired, res.Failure)
	s.Equal("CDR consent not granted", res.Reason)
	s.Zero(s.primary.calls.Load())
}

func (s *AggregatorSuite) TestConsentLookupErrorPropagates() {
	s.consent = fakeConsent{err: errors.New("db down")}
	_, err := s.aggregator().Aggregate(s.ctx, Request{})
	s.Error(err)
}

func (s *AggregatorSuite) TestVerifyingSourceFailures() {
	s.Run("primary unavailable", func() {
		s.SetupTest()
		s.primary.err = errors.New("boom")
		res, err := s.aggregator().Aggregate(s.ctx, Request{})
		s.Require().NoError(err)
		s.False(res.Verified)
		s.Equal(FailureProvider, res.Failure)
	})
	s.Run("ownership not confirmed", func() {
		s.SetupTest()
		s.verifier.data = &Affordability{Verified: false, Reason: "name mismatch"}
		res, err := s.aggregator().Aggregate(s.ctx, Request{})
		s.Require().NoError(err)
		s.False(res.Verified)
		s.Equal(FailureNotVerified, res.Failure)
		s.Equal("account ownership not confirmed: name mismatch", res.Reason)
	})
}

func (s *AggregatorSuite) TestEnrichmentFailuresDegrade() {
	s.statements.pending = 100
	s.enricher.err = errors.New("enrichment down")
	res, err := s.aggregator().Aggregate(s.ctx, Request{})
	s.Require().NoError(err)
	s.True(res.Verified)
	s.Require().Len(res.Profile.Degraded, 2)
	s.Equal(SourceStatements, res.Profile.Degraded[0].Source)
	s.Contains(res.Profile.Degraded[0].Reason, "timeout")
	s.Equal(SourceEnrichment, res.Profile.Degraded[1].Source)
	s.Nil(res.Profile.Insights)
}

func (s *AggregatorSuite) TestStatementPollingCompletesAfterNPlusOnePolls() {
	s.statements.pending = 3
	data, err := s.aggregator().RetrieveStatements(s.ctx, Request{})
	s.Require().NoError(err)
	s.Equal(6800.0, *data.RegularIncome)
	s.Equal(int32(4), s.statements.polls.Load())
	s.Equal(3, s.waits)
}

func (s *AggregatorSuite) TestStatementPollingTimesOut() {
	s.statements.pending = 1000
	_, err := s.aggregator().RetrieveStatements(s.ctx, Request{})
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	s.Equal(int32(4), s.statements.polls.Load(), "stops at the cap")
}

func (s *AggregatorSuite) TestPremiumRecommendation() {
	s.primary.data.Income = ptr(150001)
	res, err := s.aggregator().Aggregate(s.ctx, Request{})
	s.Require().NoError(err)
	s.Equal(ProductPremium, res.Profile.RecommendedProduct)

	s.primary.data.Income = ptr(150000)
	res, err = s.aggregator().Aggregate(s.ctx, Request{})
	s.Require().NoError(err)
	s.Equal(ProductEveryday, res.Profile.RecommendedProduct)
}

func (s *AggregatorSuite) TestLowBalanceInsight() {
	res, err := s.aggregator().Aggregate(s.ctx, Request{})
	s.Require().NoError(err)
	s.Require().NotNil(res.Profile.Insights)
	s.Len(res.Profile.Insights.LowBalanceWarnings, 1)
}
