// Package models defines the onboarding process record and the customer
// profile it references.
package models

import (
	"encoding/json"
	"maps"
	"time"

	"onboard/pkg/domain"
)

// Status is the position of a process in the onboarding graph.
type Status string

const (
	StatusInitiated         Status = "INITIATED"
	StatusDetailsCollected  Status = "DETAILS_COLLECTED"
	StatusIDVerified        Status = "ID_VERIFIED"
	StatusBiometricVerified Status = "BIOMETRIC_VERIFIED"
	StatusFinancialVerified Status = "FINANCIAL_VERIFIED"
	StatusAMLScreened       Status = "AML_SCREENED"
	StatusAccountCreated    Status = "ACCOUNT_CREATED"
	StatusCompleted         Status = "COMPLETED"

	StatusIDVerificationFailed        Status = "ID_VERIFICATION_FAILED"
	StatusBiometricVerificationFailed Status = "BIOMETRIC_VERIFICATION_FAILED"
	StatusFinancialVerificationFailed Status = "FINANCIAL_VERIFICATION_FAILED"
	StatusAMLScreeningFailed          Status = "AML_SCREENING_FAILED"
	StatusManualReview                Status = "MANUAL_REVIEW"
	StatusAccountCreationFailed       Status = "ACCOUNT_CREATION_FAILED"
)

var terminalStatuses = map[Status]bool{
	StatusCompleted:                   true,
	StatusIDVerificationFailed:        true,
	StatusBiometricVerificationFailed: true,
	StatusFinancialVerificationFailed: true,
	StatusAMLScreeningFailed:          true,
	StatusManualReview:                true,
	StatusAccountCreationFailed:       true,
}

var progressStatuses = map[Status]bool{
	StatusInitiated:         true,
	StatusDetailsCollected:  true,
	StatusIDVerified:        true,
	StatusBiometricVerified: true,
	StatusFinancialVerified: true,
	StatusAMLScreened:       true,
	StatusAccountCreated:    true,
}

// IsKnown reports whether s is a status of the onboarding graph.
func (s Status) IsKnown() bool { return progressStatuses[s] || terminalStatuses[s] }

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool { return terminalStatuses[s] }

// IsFailure reports whether s is a terminal other than COMPLETED.
func (s Status) IsFailure() bool { return s.IsTerminal() && s != StatusCompleted }

func (s Status) String() string { return string(s) }

// Stage names the unit of work run from a non-terminal status.
type Stage string

const (
	StageCollectDetails        Stage = "collect_details"
	StageIdentityVerification  Stage = "identity_verification"
	StageBiometricVerification Stage = "biometric_verification"
	StageFinancialVerification Stage = "financial_verification"
	StageAMLScreening          Stage = "aml_screening"
	StageAccountCreation       Stage = "account_creation"
	StageCompletion            Stage = "completion"
)

// Signal is the tristate verification outcome a stage reports.
type Signal string

const (
	SignalVerified    Signal = "verified"
	SignalNotVerified Signal = "not_verified"
	SignalNeedsReview Signal = "needs_review"
)

// StageResult is the recorded output of one stage. Data is the stage-specific
// blob (identity result, financial profile, risk assessment, account).
type StageResult struct {
	Stage      Stage           `json:"stage"`
	Signal     Signal          `json:"signal"`
	Reason     string          `json:"reason,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Simulated  bool            `json:"simulated,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// StageUpdate is what a stage commits: its result and the status it moves to.
type StageUpdate struct {
	Result     StageResult
	NextStatus Status
	// CustomerID is set by the details stage only.
	CustomerID *domain.CustomerID
	// Reason is persisted on the process when NextStatus is a failure terminal.
	Reason string
	At     time.Time
}

// CustomerDetails is the personal information submitted by the applicant.
type CustomerDetails struct {
	FullName    string `json:"full_name"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
	Address     string `json:"address"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
}

// BankAccount identifies the account used for financial verification.
type BankAccount struct {
	AccountNumber string `json:"account_number"`
	RoutingCode   string `json:"routing_code"`
	InstitutionID string `json:"institution_id,omitempty"`
	// CredentialToken is an opaque, client-side encrypted credential handle
	// for statement retrieval.
	CredentialToken string `json:"credential_token,omitempty"`
}

// InitialContext is what the trigger supplies to start a process.
type InitialContext struct {
	Details         *CustomerDetails `json:"details,omitempty"`
	Bank            *BankAccount     `json:"bank,omitempty"`
	ConsentPurposes []string         `json:"consent_purposes,omitempty"`
	Channel         string           `json:"channel,omitempty"`
}

// OnboardingProcess is the durable record of one onboarding attempt.
type OnboardingProcess struct {
	ID         domain.ProcessID
	Status     Status
	CustomerID *domain.CustomerID
	Reason     string
	Input      InitialContext
	Results    map[Stage]StageResult
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  time.Time
}

// NewProcess builds an INITIATED process expiring ttl after now.
func NewProcess(id domain.ProcessID, input InitialContext, now time.Time, ttl time.Duration) *OnboardingProcess {
	return &OnboardingProcess{
		ID:        id,
		Status:    StatusInitiated,
		Input:     input,
		Results:   map[Stage]StageResult{},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func (p *OnboardingProcess) IsExpiredAt(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// Result returns the recorded result for stage, if any.
func (p *OnboardingProcess) Result(stage Stage) (StageResult, bool) {
	r, ok := p.Results[stage]
	return r, ok
}

// Clone returns a deep copy so store readers never share mutable state.
func (p *OnboardingProcess) Clone() *OnboardingProcess {
	c := *p
	if p.CustomerID != nil {
		id := *p.CustomerID
		c.CustomerID = &id
	}
	c.Results = maps.Clone(p.Results)
	if c.Results == nil {
		c.Results = map[Stage]StageResult{}
	}
	if p.Input.Details != nil {
		d := *p.Input.Details
		c.Input.Details = &d
	}
	if p.Input.Bank != nil {
		b := *p.Input.Bank
		c.Input.Bank = &b
	}
	c.Input.ConsentPurposes = append([]string(nil), p.Input.ConsentPurposes...)
	return &c
}

// Apply mutates p with u. Callers check the expected status first.
func (p *OnboardingProcess) Apply(u StageUpdate) {
	if p.Results == nil {
		p.Results = map[Stage]StageResult{}
	}
	p.Results[u.Result.Stage] = u.Result
	p.Status = u.NextStatus
	if u.CustomerID != nil && p.CustomerID == nil {
		id := *u.CustomerID
		p.CustomerID = &id
	}
	if u.NextStatus.IsFailure() {
		p.Reason = u.Reason
	}
	p.UpdatedAt = u.At
}
