// Package stub provides deterministic stand-ins for every external provider.
// All output is marked simulated so it can never pass for a live answer.
package stub

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"onboard/internal/gateway/providers"
)

const defaultPendingPolls = 1

type Option func(*options)

type options struct {
	fixtures Fixtures
	now      func() time.Time
	pending  int
}

func WithFixtures(f Fixtures) Option {
	return func(o *options) { o.fixtures = f }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithPendingPolls sets how many polls the statement stub answers Pending.
func WithPendingPolls(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.pending = n
		}
	}
}

type responder func(req providers.Request, now time.Time) map[string]any

// Provider is a canned synchronous provider.
type Provider struct {
	id      string
	kind    providers.Kind
	respond responder
	fixture *Fixture
	now     func() time.Time
}

func (p *Provider) ID() string           { return p.id }
func (p *Provider) Kind() providers.Kind { return p.kind }

func (p *Provider) Call(ctx context.Context, req providers.Request) (*providers.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, providers.NewProviderError(providers.ErrorTimeout, p.id, "context done", err)
	}
	now := p.now()
	payload := p.respond(req, now)
	resp := &providers.Response{
		ProviderID: p.id,
		Verified:   true,
		Simulated:  true,
		ReceivedAt: now,
	}
	if f := p.fixture; f != nil {
		if f.Error != "" {
			return nil, providers.NewProviderError(providers.ErrorCategory(f.Error), p.id, "stub fixture error", nil)
		}
		maps.Copy(payload, f.Payload)
		if f.Verified != nil {
			resp.Verified = *f.Verified
		}
		resp.Reason = f.Reason
	}
	if !resp.Verified && resp.Reason == "" {
		resp.Reason = "simulated rejection"
	}
	payload["simulated"] = true
	resp.Payload = payload
	return resp, nil
}

// StatementProvider simulates the asynchronous statement retrieval job.
type StatementProvider struct {
	mu      sync.Mutex
	polls   map[string]int
	pending int
	fixture *Fixture
	now     func() time.Time
}

func (s *StatementProvider) ID() string           { return providers.IDStatements }
func (s *StatementProvider) Kind() providers.Kind { return providers.KindStatements }

func (s *StatementProvider) Submit(_ context.Context, req providers.Request) (string, error) {
	if s.fixture != nil && s.fixture.Error != "" {
		return "", providers.NewProviderError(providers.ErrorCategory(s.fixture.Error), s.ID(), "stub fixture error", nil)
	}
	jobID := fmt.Sprintf("stub-%016x", murmur3.Sum64([]byte("statements:"+req.ProcessID.String())))
	s.mu.Lock()
	s.polls[jobID] = 0
	s.mu.Unlock()
	return jobID, nil
}

func (s *StatementProvider) Poll(_ context.Context, jobID string) (*providers.JobStatus, error) {
	s.mu.Lock()
	n, ok := s.polls[jobID]
	if ok {
		s.polls[jobID] = n + 1
	}
	s.mu.Unlock()
	if !ok {
		return nil, providers.NewProviderError(providers.ErrorNotFound, s.ID(), "unknown job "+jobID, nil)
	}
	if n < s.pending {
		return &providers.JobStatus{State: providers.JobPending, Simulated: true}, nil
	}
	payload := map[string]any{
		"regular_income":   90000.0,
		"regular_expenses": 52000.0,
		"simulated":        true,
	}
	if s.fixture != nil {
		maps.Copy(payload, s.fixture.Payload)
		if s.fixture.Verified != nil && !*s.fixture.Verified {
			reason := s.fixture.Reason
			if reason == "" {
				reason = "simulated job failure"
			}
			return &providers.JobStatus{State: providers.JobFailed, Reason: reason, Simulated: true}, nil
		}
	}
	return &providers.JobStatus{State: providers.JobComplete, Payload: payload, Simulated: true}, nil
}

// NewRegistry registers a stub for every known provider id.
func NewRegistry(opts ...Option) (*providers.Registry, error) {
	o := options{now: time.Now, pending: defaultPendingPolls}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fixtures.PendingPolls != nil {
		o.pending = *o.fixtures.PendingPolls
	}

	reg := providers.NewRegistry()
	for _, def := range definitions() {
		p := &Provider{id: def.id, kind: def.kind, respond: def.respond, now: o.now}
		if f, ok := o.fixtures.Providers[def.id]; ok {
			p.fixture = &f
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	statements := &StatementProvider{polls: make(map[string]int), pending: o.pending, now: o.now}
	if f, ok := o.fixtures.Providers[providers.IDStatements]; ok {
		statements.fixture = &f
	}
	if err := reg.RegisterAsync(statements); err != nil {
		return nil, err
	}
	return reg, nil
}
