package models

import (
	"time"

	"onboard/pkg/domain"
)

// CustomerProfile is created once from collected details. After creation it
// only accepts enrichment of fields that are still empty.
type CustomerProfile struct {
	ID          domain.CustomerID `json:"id"`
	FullName    string            `json:"full_name"`
	DateOfBirth string            `json:"date_of_birth"`
	Address     string            `json:"address"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone,omitempty"`
	Nationality string            `json:"nationality,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Enrichment carries append-only additions to a profile.
type Enrichment struct {
	Nationality string
}

// NewCustomerProfile builds a profile from submitted details.
func NewCustomerProfile(id domain.CustomerID, d CustomerDetails, now time.Time) *CustomerProfile {
	return &CustomerProfile{
		ID:          id,
		FullName:    d.FullName,
		DateOfBirth: d.DateOfBirth,
		Address:     d.Address,
		Email:       d.Email,
		Phone:       d.Phone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Declares reports whether the profile was created from exactly d.
func (c *CustomerProfile) Declares(d CustomerDetails) bool {
	return c.FullName == d.FullName &&
		c.DateOfBirth == d.DateOfBirth &&
		c.Address == d.Address &&
		c.Email == d.Email &&
		c.Phone == d.Phone
}

// Enrich applies e. It returns false when e would overwrite an existing,
// different value. Re-applying the same value is a no-op.
func (c *CustomerProfile) Enrich(e Enrichment, now time.Time) (changed bool, ok bool) {
	if e.Nationality == "" || e.Nationality == c.Nationality {
		return false, true
	}
	if c.Nationality != "" {
		return false, false
	}
	c.Nationality = e.Nationality
	c.UpdatedAt = now
	return true, true
}
