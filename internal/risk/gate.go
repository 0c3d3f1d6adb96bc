// Package risk turns an AML screening answer into a PASS, MANUAL_REVIEW or
// REJECT decision.
package risk

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/requestcontext"
)

// Screener submits an identity to AML screening. Errors mean the screening
// provider could not answer.
type Screener interface {
	Screen(ctx context.Context, req ScreeningRequest) (*Screening, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Gate struct {
	screener   Screener
	thresholds Thresholds
	production bool
	logger     *slog.Logger
	metrics    *Metrics
	auditor    AuditPublisher
	tracer     trace.Tracer
}

type Option func(*Gate)

func WithThresholds(t Thresholds) Option {
	return func(g *Gate) { g.thresholds = t }
}

// WithProduction makes simulated screening answers force manual review.
func WithProduction(production bool) Option {
	return func(g *Gate) { g.production = production }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(g *Gate) { g.auditor = p }
}

func New(screener Screener, opts ...Option) (*Gate, error) {
	if screener == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "screener is required")
	}
	g := &Gate{
		screener:   screener,
		thresholds: DefaultThresholds(),
		logger:     slog.Default(),
		tracer:     otel.Tracer("onboard/internal/risk"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.thresholds.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Assess never fails: an unavailable screener yields MANUAL_REVIEW.
func (g *Gate) Assess(ctx context.Context, req ScreeningRequest) *Assessment {
	ctx, span := g.tracer.Start(ctx, "risk.assess")
	defer span.End()

	screening, err := g.screener.Screen(ctx, req)
	var a *Assessment
	switch {
	case err != nil:
		g.logger.WarnContext(ctx, "aml screening unavailable",
			"process_id", req.ProcessID.String(),
			"error", err,
		)
		a = &Assessment{
			Category:        CategoryFor(0),
			Decision:        DecisionManualReview,
			Reason:          "screening provider unavailable",
			ReasonCodes:     []string{ReasonProviderUnavailable},
			ProviderFailure: true,
		}
	default:
		a = g.evaluate(*screening)
	}

	span.SetAttributes(
		attribute.String("risk.decision", string(a.Decision)),
		attribute.Float64("risk.score", a.Score),
		attribute.Bool("risk.simulated", a.Simulated),
	)
	g.metrics.IncrementDecision(a.Decision, a.Simulated)
	g.record(ctx, req, a)
	return a
}

func (g *Gate) evaluate(s Screening) *Assessment {
	s.Score = clampScore(s.Score)
	g.metrics.ObserveScore(s.Score)

	decision, codes := Decide(s, g.thresholds)
	a := &Assessment{
		Score:       s.Score,
		Category:    bandOf(s.Score),
		Alerts:      s.Alerts,
		Matches:     s.Matches,
		Decision:    decision,
		Reason:      describe(decision, s, g.thresholds),
		ReasonCodes: codes,
		Simulated:   s.Simulated,
	}
	if a.Alerts == nil {
		a.Alerts = []Alert{}
	}
	if a.Matches == nil {
		a.Matches = []Match{}
	}
	// Simulated answers carry no evidence about a real applicant.
	if g.production && s.Simulated && decision != DecisionManualReview {
		a.Decision = DecisionManualReview
		a.Reason = "simulated screening result cannot decide a production applicant"
		a.ReasonCodes = append(a.ReasonCodes, ReasonSimulatedScreening)
	}
	return a
}

func (g *Gate) record(ctx context.Context, req ScreeningRequest, a *Assessment) {
	g.logger.InfoContext(ctx, string(audit.EventScreeningDecided),
		"log_type", "audit",
		"process_id", req.ProcessID.String(),
		"decision", string(a.Decision),
		"score", a.Score,
		"simulated", a.Simulated,
	)
	if g.auditor == nil {
		return
	}
	if err := g.auditor.Emit(ctx, audit.Event{
		Category:  audit.EventScreeningDecided.Category(),
		Timestamp: requestcontext.Now(ctx),
		ProcessID: req.ProcessID,
		Action:    string(audit.EventScreeningDecided),
		Decision:  string(a.Decision),
		Reason:    a.Reason,
		Simulated: a.Simulated,
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		g.logger.WarnContext(ctx, "screening audit emit failed", "error", err)
	}
}
