// Package verification runs the identity-document and biometric stages.
package verification

import (
	"context"
	"time"

	"onboard/internal/gateway"
	"onboard/internal/gateway/providers"
	"onboard/internal/objectstore"
	"onboard/internal/process/models"
	"onboard/pkg/domain"
)

// ProviderGateway is the subset of the gateway the stages call.
type ProviderGateway interface {
	Call(ctx context.Context, providerID string, req providers.Request) gateway.Outcome
}

// ObjectReader fetches uploaded artifacts.
type ObjectReader interface {
	Get(ctx context.Context, processID domain.ProcessID, purpose objectstore.Purpose) ([]byte, error)
}

// CustomerEnricher appends provider-derived attributes to a profile.
type CustomerEnricher interface {
	EnrichCustomer(ctx context.Context, id domain.CustomerID, e models.Enrichment, now time.Time) (*models.CustomerProfile, error)
}
