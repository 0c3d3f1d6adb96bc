package httptransport

import (
	"strings"

	"onboard/internal/process/models"
	"onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	platformstrings "onboard/pkg/platform/strings"
)

const maxNameLength = 200

// DetailsRequest is the customer details block shared by start and submit.
type DetailsRequest struct {
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"`
	Address     string `json:"address"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
}

func (d *DetailsRequest) normalize() {
	d.FullName = strings.TrimSpace(d.FullName)
	d.DateOfBirth = strings.TrimSpace(d.DateOfBirth)
	d.Address = strings.TrimSpace(d.Address)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Phone = strings.TrimSpace(d.Phone)
}

// Validate only bounds sizes; field rules belong to the engine.
func (d *DetailsRequest) Validate() error {
	if d == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	d.normalize()
	if len(d.FullName) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "full_name is too long")
	}
	return nil
}

func (d *DetailsRequest) toModel() models.CustomerDetails {
	return models.CustomerDetails{
		FullName:    d.FullName,
		DateOfBirth: d.DateOfBirth,
		Address:     d.Address,
		Email:       d.Email,
		Phone:       d.Phone,
	}
}

type BankRequest struct {
	AccountNumber   string `json:"account_number"`
	RoutingCode     string `json:"routing_code"`
	InstitutionID   string `json:"institution_id,omitempty"`
	CredentialToken string `json:"credential_token,omitempty"`
}

// StartRequest is the body of POST /v1/onboarding.
type StartRequest struct {
	Details         *DetailsRequest `json:"details,omitempty"`
	Bank            *BankRequest    `json:"bank,omitempty"`
	ConsentPurposes []string        `json:"consent_purposes,omitempty"`
	Channel         string          `json:"channel,omitempty"`
}

func (r *StartRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Details != nil {
		if err := r.Details.Validate(); err != nil {
			return err
		}
	}
	if r.Bank != nil {
		r.Bank.AccountNumber = strings.TrimSpace(r.Bank.AccountNumber)
		r.Bank.RoutingCode = strings.TrimSpace(r.Bank.RoutingCode)
		if r.Bank.AccountNumber == "" || r.Bank.RoutingCode == "" {
			return dErrors.New(dErrors.CodeValidation, "bank requires account_number and routing_code")
		}
	}
	r.ConsentPurposes = platformstrings.DedupeAndTrimLower(r.ConsentPurposes)
	for _, p := range r.ConsentPurposes {
		if _, err := domain.ParseConsentPurpose(p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, "unsupported consent purpose "+p)
		}
	}
	r.Channel = strings.TrimSpace(r.Channel)
	return nil
}

func (r *StartRequest) toModel() models.InitialContext {
	in := models.InitialContext{ConsentPurposes: r.ConsentPurposes, Channel: r.Channel}
	if r.Details != nil {
		d := r.Details.toModel()
		in.Details = &d
	}
	if r.Bank != nil {
		in.Bank = &models.BankAccount{
			AccountNumber:   r.Bank.AccountNumber,
			RoutingCode:     r.Bank.RoutingCode,
			InstitutionID:   r.Bank.InstitutionID,
			CredentialToken: r.Bank.CredentialToken,
		}
	}
	return in
}
