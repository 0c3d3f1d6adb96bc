package audit

import (
	"context"
	"time"

	"onboard/pkg/domain"
)

// EventCategory classifies audit events so stores can apply different
// retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers regulatory records: terminal decisions,
	// consent changes, screening outcomes.
	CategoryCompliance EventCategory = "compliance"
	// CategorySecurity covers events worth alerting on, such as a stub
	// result substituted for a live provider.
	CategorySecurity EventCategory = "security"
	// CategoryOperations covers routine progress that may be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture onboarding actions. It is
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	ProcessID  domain.ProcessID
	CustomerID domain.CustomerID
	Action     string
	Stage      string
	FromStatus string
	ToStatus   string
	Decision   string
	Reason     string
	ProviderID string
	// Simulated marks events derived from stub provider output.
	Simulated bool
	RequestID string
}

type AuditEvent string

const (
	EventProcessStarted   AuditEvent = "process_started"
	EventDetailsCollected AuditEvent = "details_collected"
	EventStageCompleted   AuditEvent = "stage_completed"
	EventProcessCompleted AuditEvent = "process_completed"
	EventProcessFailed    AuditEvent = "process_failed"
	EventManualReview     AuditEvent = "manual_review_required"
	EventProcessPurged    AuditEvent = "process_purged"

	EventConsentGranted AuditEvent = "consent_granted"
	EventConsentRevoked AuditEvent = "consent_revoked"

	EventScreeningDecided AuditEvent = "screening_decided"
	EventProviderFallback AuditEvent = "provider_fallback"
	EventTransitionLost   AuditEvent = "transition_conflict"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventProcessCompleted: CategoryCompliance,
	EventProcessFailed:    CategoryCompliance,
	EventManualReview:     CategoryCompliance,
	EventConsentGranted:   CategoryCompliance,
	EventConsentRevoked:   CategoryCompliance,
	EventScreeningDecided: CategoryCompliance,
	EventDetailsCollected: CategoryCompliance,

	EventProviderFallback: CategorySecurity,
	EventTransitionLost:   CategorySecurity,

	EventProcessStarted: CategoryOperations,
	EventStageCompleted: CategoryOperations,
	EventProcessPurged:  CategoryOperations,
}

// Category returns the category for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByProcess(ctx context.Context, processID domain.ProcessID) ([]Event, error)
}
