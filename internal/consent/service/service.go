package service

import (
	"context"
	"log/slog"
	"time"

	"onboard/internal/consent/models"
	"onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/requestcontext"
)

type Store interface {
	Save(ctx context.Context, record models.ConsentRecord) error
	ListByProcess(ctx context.Context, processID domain.ProcessID) ([]models.ConsentRecord, error)
	Revoke(ctx context.Context, processID domain.ProcessID, purpose domain.ConsentPurpose, revokedAt time.Time) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service records consent decisions and answers purpose checks for stages.
type Service struct {
	store   Store
	auditor AuditPublisher
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "consent store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Grant validates and records consent for each purpose. ttl of zero means the
// consent lives as long as the process.
func (s *Service) Grant(ctx context.Context, processID domain.ProcessID, purposes []string, ttl time.Duration) ([]models.ConsentRecord, error) {
	if len(purposes) == 0 {
		return nil, nil
	}
	parsed := make([]domain.ConsentPurpose, 0, len(purposes))
	for _, raw := range purposes {
		p, err := domain.ParseConsentPurpose(raw)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid consent purpose "+raw)
		}
		parsed = append(parsed, p)
	}

	now := requestcontext.Now(ctx)
	records := make([]models.ConsentRecord, 0, len(parsed))
	for _, p := range parsed {
		r := models.ConsentRecord{ProcessID: processID, Purpose: p, GrantedAt: now}
		if ttl > 0 {
			r.ExpiresAt = now.Add(ttl)
		}
		if err := s.store.Save(ctx, r); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant consent")
		}
		s.emit(ctx, audit.EventConsentGranted, processID, p)
		records = append(records, r)
	}
	return records, nil
}

// Require returns CodeConsentRequired when no active consent for purpose exists.
func (s *Service) Require(ctx context.Context, processID domain.ProcessID, purpose domain.ConsentPurpose) error {
	consents, err := s.store.ListByProcess(ctx, processID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consents")
	}
	return models.EnsureConsent(consents, purpose, requestcontext.Now(ctx))
}

func (s *Service) Revoke(ctx context.Context, processID domain.ProcessID, purpose domain.ConsentPurpose) error {
	n, err := s.store.Revoke(ctx, processID, purpose, requestcontext.Now(ctx))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke consent")
	}
	if n == 0 {
		return dErrors.New(dErrors.CodeNotFound, "no active consent for "+purpose.String())
	}
	s.emit(ctx, audit.EventConsentRevoked, processID, purpose)
	return nil
}

func (s *Service) List(ctx context.Context, processID domain.ProcessID) ([]models.ConsentRecord, error) {
	return s.store.ListByProcess(ctx, processID)
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, processID domain.ProcessID, purpose domain.ConsentPurpose) {
	s.logger.InfoContext(ctx, string(event),
		"log_type", "audit",
		"process_id", processID.String(),
		"purpose", purpose.String(),
	)
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		ProcessID: processID,
		Action:    string(event),
		Decision:  purpose.String(),
		RequestID: requestcontext.RequestID(ctx),
	}); err != nil {
		s.logger.WarnContext(ctx, "consent audit emit failed", "error", err)
	}
}
