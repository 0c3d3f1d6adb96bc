package models

import (
	"time"

	"onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
)

// ConsentRecord is an applicant's decision for one purpose within one
// onboarding process.
type ConsentRecord struct {
	ProcessID domain.ProcessID
	Purpose   domain.ConsentPurpose
	GrantedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// IsActive returns true when consent is currently valid.
func (c ConsentRecord) IsActive(now time.Time) bool {
	if c.RevokedAt != nil && !c.RevokedAt.After(now) {
		return false
	}
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}

// EnsureConsent returns CodeConsentRequired unless an active record for
// purpose is present.
func EnsureConsent(consents []ConsentRecord, purpose domain.ConsentPurpose, now time.Time) error {
	for _, c := range consents {
		if c.Purpose == purpose && c.IsActive(now) {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeConsentRequired, "consent not granted for "+purpose.String())
}
