package financial

import (
	"context"

	"onboard/pkg/domain"
)

// ConsentChecker returns a CodeConsentRequired error when the purpose is not
// actively consented for the process.
type ConsentChecker interface {
	Require(ctx context.Context, processID domain.ProcessID, purpose domain.ConsentPurpose) error
}

// PrimarySource is the consent-scoped account data provider.
type PrimarySource interface {
	Fetch(ctx context.Context, req Request) (*PrimaryData, error)
}

// AccountVerifier confirms account ownership and returns affordability.
type AccountVerifier interface {
	Verify(ctx context.Context, req Request) (*Affordability, error)
}

// StatementRetriever runs the asynchronous statement job. The caller owns
// the poll loop.
type StatementRetriever interface {
	Start(ctx context.Context, req Request) (jobID string, err error)
	Poll(ctx context.Context, jobID string) (*JobStatus, error)
}

// Enricher returns categorized transactions, holdings and net worth.
type Enricher interface {
	Enrich(ctx context.Context, req Request) (*EnrichmentData, error)
}
