package financial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/requestcontext"
)

// verificationFailure aborts the fan-out when a verifying source (primary or
// ownership verifier) cannot confirm the account.
type verificationFailure struct {
	kind   FailureKind
	reason string
}

func (f *verificationFailure) Error() string { return f.reason }

type Aggregator struct {
	consent    ConsentChecker
	primary    PrimarySource
	verifier   AccountVerifier
	statements StatementRetriever
	enricher   Enricher
	poller     *Poller
	rules      InsightRules
	premium    float64
	logger     *slog.Logger
	metrics    *Metrics
}

type Option func(*Aggregator)

func WithPoller(p *Poller) Option {
	return func(a *Aggregator) { a.poller = p }
}

func WithInsightRules(r InsightRules) Option {
	return func(a *Aggregator) { a.rules = r }
}

// WithPremiumIncomeAbove sets the income above which premium is recommended.
func WithPremiumIncomeAbove(v float64) Option {
	return func(a *Aggregator) { a.premium = v }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func NewAggregator(
	consent ConsentChecker,
	primary PrimarySource,
	verifier AccountVerifier,
	statements StatementRetriever,
	enricher Enricher,
	opts ...Option,
) (*Aggregator, error) {
	if consent == nil || primary == nil || verifier == nil {
		return nil, errors.New("consent, primary source and account verifier are required")
	}
	a := &Aggregator{
		consent:    consent,
		primary:    primary,
		verifier:   verifier,
		statements: statements,
		enricher:   enricher,
		poller:     NewPoller(5*time.Second, 12),
		rules:      DefaultInsightRules(),
		premium:    150000,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type gathered struct {
	primary      *PrimaryData
	verifier     *Affordability
	statements   *StatementData
	enrichment   *EnrichmentData
	statementErr error
	enrichErr    error
}

// Aggregate verifies the account and builds the profile. Negative outcomes
// are returned as a Result; an error means the stage could not be evaluated.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) (*Result, error) {
	if err := a.consent.Require(ctx, req.ProcessID, domain.ConsentPurposeFinancialData); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConsentRequired) {
			return &Result{Failure: FailureConsentRequired, Reason: ConsentNotGranted}, nil
		}
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	var data gathered

	g.Go(func() error {
		start := time.Now()
		p, err := a.primary.Fetch(gctx, req)
		a.metrics.ObserveSource(SourcePrimary, time.Since(start))
		if err != nil {
			return &verificationFailure{kind: FailureProvider, reason: "primary financial source unavailable"}
		}
		if !p.Verified {
			return &verificationFailure{kind: FailureNotVerified, reason: "primary financial source rejected account: " + p.Reason}
		}
		data.primary = p
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		v, err := a.verifier.Verify(gctx, req)
		a.metrics.ObserveSource(SourceVerifier, time.Since(start))
		if err != nil {
			return &verificationFailure{kind: FailureProvider, reason: "account ownership verifier unavailable"}
		}
		if !v.Verified {
			return &verificationFailure{kind: FailureNotVerified, reason: "account ownership not confirmed: " + v.Reason}
		}
		data.verifier = v
		return nil
	})

	// Statements and enrichment never fail the group: they only degrade.
	if a.statements != nil {
		g.Go(func() error {
			start := time.Now()
			data.statements, data.statementErr = a.RetrieveStatements(gctx, req)
			a.metrics.ObserveSource(SourceStatements, time.Since(start))
			return nil
		})
	}
	if a.enricher != nil {
		g.Go(func() error {
			start := time.Now()
			data.enrichment, data.enrichErr = a.enricher.Enrich(gctx, req)
			a.metrics.ObserveSource(SourceEnrichment, time.Since(start))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var vf *verificationFailure
		if errors.As(err, &vf) {
			a.logger.InfoContext(ctx, "financial verification failed",
				"process_id", req.ProcessID.String(),
				"reason", vf.reason,
			)
			return &Result{Failure: vf.kind, Reason: vf.reason}, nil
		}
		return nil, err
	}

	return &Result{Verified: true, Profile: a.buildProfile(ctx, req, data)}, nil
}

// RetrieveStatements starts the statement job and polls it to completion.
// It returns a CodeTimeout error when the poll cap is exhausted.
func (a *Aggregator) RetrieveStatements(ctx context.Context, req Request) (*StatementData, error) {
	jobID, err := a.statements.Start(ctx, req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProvider, "statement job could not start")
	}
	status, polls, err := a.poller.Run(ctx, func(ctx context.Context) (*JobStatus, error) {
		return a.statements.Poll(ctx, jobID)
	})
	a.metrics.ObservePolls(polls)
	if err != nil {
		return nil, err
	}
	if status.Statement == nil {
		return nil, dErrors.New(dErrors.CodeProvider, "statement job completed without data")
	}
	return status.Statement, nil
}

func (a *Aggregator) buildProfile(ctx context.Context, req Request, data gathered) *Profile {
	now := requestcontext.Now(ctx)
	profile := &Profile{GeneratedAt: now}

	if data.statementErr != nil {
		profile.Degraded = append(profile.Degraded, a.degrade(ctx, req, SourceStatements, data.statementErr))
	}
	if data.enrichErr != nil {
		profile.Degraded = append(profile.Degraded, a.degrade(ctx, req, SourceEnrichment, data.enrichErr))
	}

	profile.Income, profile.Expenses, profile.Savings = mergeFigures(data.primary, data.verifier, data.statements)
	profile.RecommendedProduct = recommendProduct(profile.Income, a.premium)
	profile.AccountName = data.verifier.AccountName
	profile.Simulated = data.primary.Simulated || data.verifier.Simulated
	if data.statements != nil {
		profile.Simulated = profile.Simulated || data.statements.Simulated
	}

	if e := data.enrichment; e != nil {
		windowed := inWindow(e.Transactions, now, a.rules.Window)
		profile.SpendingByCategory = spendingByCategory(windowed)
		profile.SpendingPattern = spendingPattern(profile.SpendingByCategory)
		profile.Insights = deriveInsights(e, windowed, a.rules)
		profile.NetWorth = e.NetWorth
		profile.Holdings = e.Holdings
		profile.Simulated = profile.Simulated || e.Simulated
	}
	return profile
}

func (a *Aggregator) degrade(ctx context.Context, req Request, source Source, err error) Degradation {
	a.metrics.IncrementDegraded(source)
	a.logger.WarnContext(ctx, "financial enrichment degraded",
		"process_id", req.ProcessID.String(),
		"source", string(source),
		"error", err,
	)
	reason := err.Error()
	if dErrors.HasCode(err, dErrors.CodeTimeout) {
		reason = fmt.Sprintf("timeout: %s", reason)
	}
	return Degradation{Source: source, Reason: reason}
}
