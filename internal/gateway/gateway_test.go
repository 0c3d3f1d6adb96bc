package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"onboard/internal/gateway/providers"
	"onboard/internal/gateway/stub"
	"onboard/pkg/domain"
	"onboard/pkg/platform/audit"
	auditmemory "onboard/pkg/platform/audit/store/memory"
	"onboard/pkg/platform/circuit"
)

// scriptedProvider returns the scripted errors in order, then succeeds.
type scriptedProvider struct {
	id     string
	errs   []error
	resp   *providers.Response
	calls  atomic.Int32
	blockC chan struct{}
}

func (p *scriptedProvider) ID() string           { return p.id }
func (p *scriptedProvider) Kind() providers.Kind { return providers.KindIdentity }

func (p *scriptedProvider) Call(ctx context.Context, _ providers.Request) (*providers.Response, error) {
	n := int(p.calls.Add(1))
	if p.blockC != nil {
		select {
		case <-p.blockC:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= len(p.errs) {
		return nil, p.errs[n-1]
	}
	if p.resp != nil {
		return p.resp, nil
	}
	return &providers.Response{ProviderID: p.id, Verified: true, Payload: map[string]any{"score": 1.0}}, nil
}

func outage(id string) error {
	return providers.NewProviderError(providers.ErrorProviderOutage, id, "down", nil)
}

type GatewaySuite struct {
	suite.Suite
	live    *providers.Registry
	sleeps  []time.Duration
	metrics *Metrics
	audit   *auditmemory.InMemoryStore
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.live = providers.NewRegistry()
	s.sleeps = nil
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.audit = auditmemory.NewInMemoryStore()
}

func (s *GatewaySuite) newGateway(opts ...Option) *Gateway {
	base := []Option{
		WithPolicy(Policy{Timeout: time.Second, MaxAttempts: 3, BackoffBase: 10 * time.Millisecond, BackoffMax: 15 * time.Millisecond}),
		WithMetrics(s.metrics),
		WithAuditPublisher(auditStoreEmitter{s.audit}),
	}
	g, err := New(s.live, append(base, opts...)...)
	s.Require().NoError(err)
	g.sleep = func(_ context.Context, d time.Duration) error {
		s.sleeps = append(s.sleeps, d)
		return nil
	}
	return g
}

func (s *GatewaySuite) register(p providers.Provider) {
	s.Require().NoError(s.live.Register(p))
}

func (s *GatewaySuite) TestVerifiedFirstAttempt() {
	s.register(&scriptedProvider{id: "identity"})
	out := s.newGateway().Call(context.Background(), "identity", providers.Request{})

	s.Equal(OutcomeVerified, out.Kind)
	s.Equal(1, out.Attempts)
	s.Equal(1.0, out.Payload["score"])
	s.Empty(s.sleeps)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Calls.WithLabelValues("identity", "verified")))
}

func (s *GatewaySuite) TestRetriesTransientFailuresWithBackoff() {
	p := &scriptedProvider{id: "identity", errs: []error{outage("identity"), outage("identity")}}
	s.register(p)
	out := s.newGateway().Call(context.Background(), "identity", providers.Request{})

	s.Equal(OutcomeVerified, out.Kind)
	s.Equal(3, out.Attempts)
	s.Equal([]time.Duration{10 * time.Millisecond, 15 * time.Millisecond}, s.sleeps, "backoff doubles and is capped")
	s.Equal(2.0, testutil.ToFloat64(s.metrics.Retries.WithLabelValues("identity")))
}

func (s *GatewaySuite) TestRejectionIsNotRetried() {
	p := &scriptedProvider{id: "identity", errs: []error{providers.Rejected("identity", "document revoked")}}
	s.register(p)
	out := s.newGateway().Call(context.Background(), "identity", providers.Request{})

	s.Equal(OutcomeNotVerified, out.Kind)
	s.Equal("document revoked", out.Reason)
	s.Equal(int32(1), p.calls.Load())
}

func (s *GatewaySuite) TestNegativeAnswerIsNotVerified() {
	s.register(&scriptedProvider{id: "identity", resp: &providers.Response{Verified: false, Reason: "name mismatch"}})
	out := s.newGateway().Call(context.Background(), "identity", providers.Request{})

	s.Equal(OutcomeNotVerified, out.Kind)
	s.Equal("name mismatch", out.Reason)
	s.Equal("identity", out.ProviderID)
}

func (s *GatewaySuite) TestNonRetryableFailureStopsImmediately() {
	auth := providers.NewProviderError(providers.ErrorAuthentication, "identity", "bad key", nil)
	p := &scriptedProvider{id: "identity", errs: []error{auth}}
	s.register(p)
	out := s.newGateway().Call(context.Background(), "identity", providers.Request{})

	s.Equal(OutcomeProviderError, out.Kind)
	s.Equal(1, out.Attempts)
	s.Equal(providers.ErrorAuthentication, providers.GetCategory(out.Err))
}

func (s *GatewaySuite) TestExhaustedAttempts() {
	id := "identity"
	p := &scriptedProvider{id: id, errs: []error{outage(id), outage(id), outage(id), outage(id)}}
	s.register(p)
	out := s.newGateway().Call(context.Background(), id, providers.Request{})

	s.Equal(OutcomeProviderError, out.Kind)
	s.Equal(3, out.Attempts)
	s.Equal(int32(3), p.calls.Load())
}

func (s *GatewaySuite) TestTimeoutPerAttempt() {
	p := &scriptedProvider{id: "face", blockC: make(chan struct{})}
	s.register(p)
	g := s.newGateway(WithProviderPolicy("face", Policy{Timeout: 20 * time.Millisecond, MaxAttempts: 1}))
	out := g.Call(context.Background(), "face", providers.Request{})

	s.Equal(OutcomeProviderError, out.Kind)
	s.Equal(providers.ErrorTimeout, providers.GetCategory(out.Err))
}

func (s *GatewaySuite) TestConcurrencyBoundsAttemptsInFlight() {
	p := &scriptedProvider{id: "identity", blockC: make(chan struct{})}
	s.register(p)
	g := s.newGateway(WithConcurrency(1))

	results := make(chan Outcome, 2)
	call := func() { results <- g.Call(context.Background(), "identity", providers.Request{}) }
	go call()
	s.Require().Eventually(func() bool { return p.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	go call()
	s.Never(func() bool { return p.calls.Load() > 1 }, 50*time.Millisecond, 5*time.Millisecond, "second attempt waits for the slot")

	close(p.blockC)
	for range 2 {
		select {
		case out := <-results:
			s.Equal(OutcomeVerified, out.Kind)
		case <-time.After(2 * time.Second):
			s.FailNow("call never finished")
		}
	}
	s.Equal(int32(2), p.calls.Load())
}

func (s *GatewaySuite) TestCancelledWhileWaitingForSlot() {
	p := &scriptedProvider{id: "identity", blockC: make(chan struct{})}
	s.register(p)
	g := s.newGateway(WithConcurrency(1), WithProviderPolicy("identity", Policy{Timeout: time.Second, MaxAttempts: 1}))
	defer close(p.blockC)

	go g.Call(context.Background(), "identity", providers.Request{})
	s.Require().Eventually(func() bool { return p.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out := g.Call(ctx, "identity", providers.Request{})
	s.Equal(OutcomeProviderError, out.Kind)
	s.Equal(providers.ErrorTimeout, providers.GetCategory(out.Err))
	s.Equal(int32(1), p.calls.Load())
}

func (s *GatewaySuite) TestBreakerOpensAndShortCircuits() {
	id := "identity"
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = outage(id)
	}
	p := &scriptedProvider{id: id, errs: errs}
	s.register(p)
	g := s.newGateway(WithBreaker(circuit.WithFailureThreshold(3), circuit.WithCooldown(time.Hour)))

	first := g.Call(context.Background(), id, providers.Request{})
	s.Equal(OutcomeProviderError, first.Kind)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.BreakerState.WithLabelValues(id)))

	second := g.Call(context.Background(), id, providers.Request{})
	s.Equal(OutcomeProviderError, second.Kind)
	s.Equal(0, second.Attempts)
	s.Equal(providers.ErrorCircuitOpen, providers.GetCategory(second.Err))
	s.Equal(int32(3), p.calls.Load(), "open circuit makes no calls")
}

func (s *GatewaySuite) TestStubFallbackIsExplicitAndAudited() {
	id := providers.IDScreening
	s.register(&scriptedProvider{id: id, errs: []error{outage(id), outage(id), outage(id)}})
	stubs, err := stub.NewRegistry()
	s.Require().NoError(err)
	g := s.newGateway(WithStubFallback(stubs))
	pid := domain.NewProcessID()

	out := g.Call(context.Background(), id, providers.Request{ProcessID: pid})

	s.Equal(OutcomeVerified, out.Kind)
	s.True(out.Simulated)
	s.NotEmpty(out.FallbackReason)
	s.Equal(3, out.Attempts)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Fallbacks.WithLabelValues(id)))

	events, err := s.audit.ListByProcess(context.Background(), pid)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventProviderFallback), events[0].Action)
	s.True(events[0].Simulated)
}

func (s *GatewaySuite) TestMissingLiveProvider() {
	out := s.newGateway().Call(context.Background(), providers.IDFace, providers.Request{})
	s.Equal(OutcomeProviderError, out.Kind)
	s.ErrorIs(out.Err, providers.ErrProviderNotFound)

	stubs, err := stub.NewRegistry()
	s.Require().NoError(err)
	out = s.newGateway(WithStubFallback(stubs)).Call(context.Background(), providers.IDFace, providers.Request{Operation: "compare"})
	s.Equal(OutcomeVerified, out.Kind)
	s.Equal(97.5, out.Payload["similarity"])
	s.Contains(out.FallbackReason, "no live provider configured")
}

func (s *GatewaySuite) TestAsyncFallbackRoutesPollsToStub() {
	stubs, err := stub.NewRegistry(stub.WithPendingPolls(1))
	s.Require().NoError(err)
	g := s.newGateway(WithStubFallback(stubs))
	ctx := context.Background()

	job, err := g.Submit(ctx, providers.IDStatements, providers.Request{ProcessID: domain.NewProcessID()})
	s.Require().NoError(err)
	s.Contains(job, stubJobPrefix)

	status, err := g.Poll(ctx, providers.IDStatements, job)
	s.Require().NoError(err)
	s.Equal(providers.JobPending, status.State)
	status, err = g.Poll(ctx, providers.IDStatements, job)
	s.Require().NoError(err)
	s.Equal(providers.JobComplete, status.State)
	s.True(status.Simulated)
}

func TestFallbackRefusedInProduction(t *testing.T) {
	stubs, err := stub.NewRegistry()
	require.NoError(t, err)
	_, err = New(providers.NewRegistry(), WithStubFallback(stubs), WithProduction(true))
	assert.ErrorIs(t, err, ErrFallbackInProduction)
}

func TestPolicyBackoff(t *testing.T) {
	p := Policy{BackoffBase: 100 * time.Millisecond, BackoffMax: time.Second}
	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 800*time.Millisecond, p.Backoff(4))
	assert.Equal(t, time.Second, p.Backoff(5))
	assert.Equal(t, time.Second, p.Backoff(40))
	assert.Zero(t, p.Backoff(0))
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleep(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
}

type auditStoreEmitter struct{ store *auditmemory.InMemoryStore }

func (e auditStoreEmitter) Emit(ctx context.Context, ev audit.Event) error {
	return e.store.Append(ctx, ev)
}
