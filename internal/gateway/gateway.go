// Package gateway is the single path to external providers. It applies
// timeouts, bounded retries and per-provider circuit breakers, and normalizes
// every answer into an Outcome.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"onboard/internal/gateway/providers"
	"onboard/pkg/platform/audit"
	"onboard/pkg/platform/circuit"
)

// stubJobPrefix marks async job ids issued by a fallback stub so polls are
// routed back to it.
const stubJobPrefix = "stub:"

// ErrFallbackInProduction is returned by New when stub fallback is requested
// for a production deployment.
var ErrFallbackInProduction = errors.New("stub fallback is not permitted in production")

// AuditPublisher records fallback substitutions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Gateway struct {
	live        *providers.Registry
	stubs       *providers.Registry
	policy      Policy
	policies    map[string]Policy
	breakerOpts []circuit.Option
	production  bool

	mu       sync.Mutex
	breakers map[string]*circuit.Breaker

	// slots bounds attempts in flight. Nil means unbounded.
	slots *semaphore.Weighted

	logger  *slog.Logger
	metrics *Metrics
	auditor AuditPublisher
	tracer  trace.Tracer
	sleep   func(ctx context.Context, d time.Duration) error
}

type Option func(*Gateway)

// WithPolicy sets the default policy for every provider.
func WithPolicy(p Policy) Option {
	return func(g *Gateway) { g.policy = p }
}

// WithProviderPolicy overrides the policy for one provider id.
func WithProviderPolicy(providerID string, p Policy) Option {
	return func(g *Gateway) { g.policies[providerID] = p }
}

func WithBreaker(opts ...circuit.Option) Option {
	return func(g *Gateway) { g.breakerOpts = opts }
}

// WithStubFallback substitutes stub results when a live provider fails or is
// not configured. Refused by New in production.
func WithStubFallback(stubs *providers.Registry) Option {
	return func(g *Gateway) { g.stubs = stubs }
}

// WithConcurrency bounds provider attempts in flight across all callers.
// A slot is held only for the attempt itself, never across backoff or
// poll waits.
func WithConcurrency(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithProduction(production bool) Option {
	return func(g *Gateway) { g.production = production }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(g *Gateway) { g.auditor = p }
}

func New(live *providers.Registry, opts ...Option) (*Gateway, error) {
	if live == nil {
		return nil, errors.New("provider registry is required")
	}
	g := &Gateway{
		live:     live,
		policy:   DefaultPolicy(),
		policies: make(map[string]Policy),
		breakers: make(map[string]*circuit.Breaker),
		logger:   slog.Default(),
		tracer:   otel.Tracer("onboard/internal/gateway"),
		sleep:    sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.production && g.stubs != nil {
		return nil, ErrFallbackInProduction
	}
	return g, nil
}

func (g *Gateway) policyFor(providerID string) Policy {
	if p, ok := g.policies[providerID]; ok {
		return p.normalized()
	}
	return g.policy.normalized()
}

func (g *Gateway) breaker(providerID string) *circuit.Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.breakers[providerID]
	if !ok {
		b = circuit.New(providerID, g.breakerOpts...)
		g.breakers[providerID] = b
	}
	return b
}

// Call invokes a synchronous provider and normalizes the answer. It never
// returns an error: failures become OutcomeProviderError.
func (g *Gateway) Call(ctx context.Context, providerID string, req providers.Request) Outcome {
	ctx, span := g.tracer.Start(ctx, "provider.call", trace.WithAttributes(
		attribute.String("provider.id", providerID),
		attribute.String("provider.operation", req.Operation),
		attribute.String("process.id", req.ProcessID.String()),
	))
	defer span.End()

	var out Outcome
	if p, ok := g.live.Get(providerID); ok {
		out = g.callLive(ctx, p, req)
	} else {
		out = failure(providerID, providers.NewProviderError(providers.ErrorInternal, providerID,
			"no live provider configured", providers.ErrProviderNotFound), 0)
	}
	if out.IsProviderError() {
		out = g.fallback(ctx, providerID, req, out)
	}

	g.metrics.IncrementCall(providerID, out.Kind)
	span.SetAttributes(
		attribute.String("provider.outcome", string(out.Kind)),
		attribute.Int("provider.attempts", out.Attempts),
		attribute.Bool("provider.simulated", out.Simulated),
	)
	if out.IsProviderError() {
		span.SetStatus(codes.Error, out.Reason)
		g.logger.WarnContext(ctx, "provider call failed",
			"provider_id", providerID,
			"process_id", req.ProcessID.String(),
			"attempts", out.Attempts,
			"category", string(providers.GetCategory(out.Err)),
			"error", out.Err,
		)
	}
	return out
}

func (g *Gateway) callLive(ctx context.Context, p providers.Provider, req providers.Request) Outcome {
	var resp *providers.Response
	attempts, err := g.retry(ctx, p.ID(), func(ctx context.Context) error {
		r, err := p.Call(ctx, req)
		if err != nil {
			return err
		}
		if r == nil {
			return providers.NewProviderError(providers.ErrorBadData, p.ID(), "empty response", nil)
		}
		resp = r
		return nil
	})
	if err != nil {
		var pe *providers.ProviderError
		if errors.As(err, &pe) && pe.Category == providers.ErrorRejected {
			return rejected(p.ID(), pe, attempts)
		}
		return failure(p.ID(), err, attempts)
	}
	if resp.ProviderID == "" {
		resp.ProviderID = p.ID()
	}
	return fromResponse(resp, attempts)
}

// retry runs fn under the provider's policy and breaker. Only retryable
// provider errors are retried; rejections end the loop and count as a
// healthy answer for the breaker.
func (g *Gateway) retry(ctx context.Context, providerID string, fn func(context.Context) error) (int, error) {
	policy := g.policyFor(providerID)
	br := g.breaker(providerID)

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if !br.Allow() {
			if lastErr == nil {
				lastErr = providers.NewProviderError(providers.ErrorCircuitOpen, providerID, "circuit open", nil)
			}
			break
		}
		// Cancellation while waiting for a slot is not a provider failure.
		release, err := g.acquire(ctx, providerID)
		if err != nil {
			lastErr = err
			break
		}
		attempts = attempt

		start := time.Now()
		err = g.attempt(ctx, providerID, policy.Timeout, fn)
		release()
		g.metrics.ObserveAttempt(providerID, time.Since(start))

		if err == nil || providers.GetCategory(err) == providers.ErrorRejected {
			if _, change := br.RecordSuccess(); change.Closed {
				g.metrics.SetBreakerOpen(providerID, false)
				g.logger.InfoContext(ctx, "provider circuit closed", "provider_id", providerID)
			}
			return attempts, err
		}

		lastErr = err
		if _, change := br.RecordFailure(); change.Opened {
			g.metrics.SetBreakerOpen(providerID, true)
			g.logger.WarnContext(ctx, "provider circuit opened", "provider_id", providerID)
		}
		if !providers.IsRetryable(err) || attempt == policy.MaxAttempts {
			break
		}

		g.metrics.IncrementRetry(providerID)
		if err := g.sleep(ctx, policy.Backoff(attempt)); err != nil {
			lastErr = providers.NewProviderError(providers.ErrorTimeout, providerID, "cancelled during backoff", err)
			break
		}
	}
	return attempts, lastErr
}

// attempt runs fn once under the per-call timeout and coerces any error into
// the provider taxonomy.
func (g *Gateway) attempt(ctx context.Context, providerID string, timeout time.Duration, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	var pe *providers.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return providers.NewProviderError(providers.ErrorTimeout, providerID, "call timed out", err)
	}
	return providers.NewProviderError(providers.ErrorInternal, providerID, "call failed", err)
}

func (g *Gateway) acquire(ctx context.Context, providerID string) (func(), error) {
	if g.slots == nil {
		return func() {}, nil
	}
	if err := g.slots.Acquire(ctx, 1); err != nil {
		return nil, providers.NewProviderError(providers.ErrorTimeout, providerID, "no provider slot before cancellation", err)
	}
	return func() { g.slots.Release(1) }, nil
}

// fallback is the only place a stub result may replace a live failure.
func (g *Gateway) fallback(ctx context.Context, providerID string, req providers.Request, failed Outcome) Outcome {
	if g.stubs == nil {
		return failed
	}
	stub, ok := g.stubs.Get(providerID)
	if !ok {
		return failed
	}
	resp, err := stub.Call(ctx, req)
	if err != nil || resp == nil {
		g.logger.WarnContext(ctx, "stub fallback failed", "provider_id", providerID, "error", err)
		return failed
	}
	out := fromResponse(resp, failed.Attempts)
	out.FallbackReason = failed.Reason
	g.recordFallback(ctx, providerID, req, failed.Reason)
	return out
}

func (g *Gateway) recordFallback(ctx context.Context, providerID string, req providers.Request, reason string) {
	g.metrics.IncrementFallback(providerID)
	g.logger.WarnContext(ctx, "provider result replaced by stub",
		"log_type", "audit",
		"provider_id", providerID,
		"process_id", req.ProcessID.String(),
		"reason", reason,
	)
	if g.auditor == nil {
		return
	}
	if err := g.auditor.Emit(ctx, audit.Event{
		Action:     string(audit.EventProviderFallback),
		ProcessID:  req.ProcessID,
		ProviderID: providerID,
		Reason:     reason,
		Simulated:  true,
	}); err != nil {
		g.logger.WarnContext(ctx, "failed to emit fallback audit event", "provider_id", providerID, "error", err)
	}
}

// Submit starts an asynchronous job. The returned id must be passed back to
// Poll unchanged.
func (g *Gateway) Submit(ctx context.Context, providerID string, req providers.Request) (string, error) {
	ctx, span := g.tracer.Start(ctx, "provider.submit", trace.WithAttributes(
		attribute.String("provider.id", providerID),
		attribute.String("process.id", req.ProcessID.String()),
	))
	defer span.End()

	var (
		jobID string
		err   error
	)
	if p, ok := g.live.GetAsync(providerID); ok {
		_, err = g.retry(ctx, providerID, func(ctx context.Context) error {
			id, err := p.Submit(ctx, req)
			jobID = id
			return err
		})
	} else {
		err = providers.NewProviderError(providers.ErrorInternal, providerID, "no live provider configured", providers.ErrNotAsync)
	}
	if err == nil {
		return jobID, nil
	}

	if g.stubs != nil && providers.GetCategory(err) != providers.ErrorRejected {
		if stub, ok := g.stubs.GetAsync(providerID); ok {
			if id, serr := stub.Submit(ctx, req); serr == nil {
				g.recordFallback(ctx, providerID, req, err.Error())
				return stubJobPrefix + id, nil
			}
		}
	}
	span.SetStatus(codes.Error, err.Error())
	return "", err
}

// Poll fetches the current state of a job started with Submit. A failure to
// poll is an error; a job that failed is a JobFailed status.
func (g *Gateway) Poll(ctx context.Context, providerID, jobID string) (*providers.JobStatus, error) {
	if id, ok := strings.CutPrefix(jobID, stubJobPrefix); ok {
		if g.stubs == nil {
			return nil, providers.NewProviderError(providers.ErrorNotFound, providerID, "stub job without stub registry", nil)
		}
		stub, ok := g.stubs.GetAsync(providerID)
		if !ok {
			return nil, providers.NewProviderError(providers.ErrorNotFound, providerID, "no stub for provider", providers.ErrNotAsync)
		}
		return stub.Poll(ctx, id)
	}

	p, ok := g.live.GetAsync(providerID)
	if !ok {
		return nil, providers.NewProviderError(providers.ErrorInternal, providerID, "no live provider configured", providers.ErrNotAsync)
	}
	var status *providers.JobStatus
	_, err := g.retry(ctx, providerID, func(ctx context.Context) error {
		s, err := p.Poll(ctx, jobID)
		if err == nil && s == nil {
			return providers.NewProviderError(providers.ErrorBadData, providerID, "empty job status", nil)
		}
		status = s
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("poll %s job %s: %w", providerID, jobID, err)
	}
	return status, nil
}
