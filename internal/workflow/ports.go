package workflow

import (
	"context"
	"time"

	consentmodels "onboard/internal/consent/models"
	"onboard/internal/notify"
	"onboard/internal/process/models"
	"onboard/pkg/domain"
	"onboard/pkg/platform/audit"
)

// ProcessStore is the only shared mutable state of the engine. Every write
// names the status it expects to replace.
type ProcessStore interface {
	Create(ctx context.Context, p *models.OnboardingProcess) error
	Get(ctx context.Context, id domain.ProcessID) (*models.OnboardingProcess, error)
	ApplyStageResult(ctx context.Context, id domain.ProcessID, u models.StageUpdate, expected models.Status) (*models.OnboardingProcess, error)
	ListActive(ctx context.Context, now time.Time, limit int) ([]domain.ProcessID, error)
	PurgeExpired(ctx context.Context, now time.Time) ([]domain.ProcessID, error)
}

type CustomerStore interface {
	CreateCustomer(ctx context.Context, c *models.CustomerProfile) error
	GetCustomer(ctx context.Context, id domain.CustomerID) (*models.CustomerProfile, error)
}

type ConsentGranter interface {
	Grant(ctx context.Context, processID domain.ProcessID, purposes []string, ttl time.Duration) ([]consentmodels.ConsentRecord, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Notifier is best effort and never reports failure.
type Notifier interface {
	Notify(ctx context.Context, event notify.Event)
}

// ObjectPurger removes the uploads of a purged process.
type ObjectPurger interface {
	DeleteProcess(ctx context.Context, processID domain.ProcessID) error
}
