// Package financial builds one verified financial profile from several
// providers whose figures may disagree.
package financial

import (
	"time"

	"onboard/pkg/domain"
)

// Source identifies which provider produced a figure.
type Source string

const (
	SourcePrimary    Source = "cdr_primary"
	SourceVerifier   Source = "account_verifier"
	SourceStatements Source = "statements"
	SourceEnrichment Source = "enrichment"
)

const (
	ProductEveryday = "everyday"
	ProductPremium  = "premium"
)

// ConsentNotGranted is the failure reason when CDR consent is missing.
const ConsentNotGranted = "CDR consent not granted"

// Figure is a reconciled number with its provenance.
type Figure struct {
	Value  float64 `json:"value"`
	Source Source  `json:"source"`
}

// Request identifies the applicant and the account to verify.
type Request struct {
	ProcessID       domain.ProcessID
	AccountHolder   string
	AccountNumber   string
	RoutingCode     string
	InstitutionID   string
	CredentialToken string
}

// PrimaryData is the consent-scoped account record. Missing figures are nil.
type PrimaryData struct {
	Verified      bool
	Reason        string
	AccountHolder string
	Balance       *float64
	Income        *float64
	Expenses      *float64
	Savings       *float64
	Simulated     bool
}

// Affordability is the account-ownership verifier's answer.
type Affordability struct {
	Verified     bool
	Reason       string
	AccountName  string
	Income       *float64
	Expenses     *float64
	SavingsRatio *float64
	Simulated    bool
}

// StatementData holds regular totals derived from retrieved statements.
type StatementData struct {
	RegularIncome   *float64
	RegularExpenses *float64
	Simulated       bool
}

type JobState string

const (
	JobPending  JobState = "pending"
	JobComplete JobState = "complete"
	JobFailed   JobState = "failed"
)

// JobStatus is one poll of the statement retrieval job.
type JobStatus struct {
	State     JobState
	Statement *StatementData
	Reason    string
}

type Transaction struct {
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Recurring   bool    `json:"recurring,omitempty"`
}

type Holding struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// EnrichmentData is the categorized view of the account.
type EnrichmentData struct {
	Transactions []Transaction
	Holdings     []Holding
	NetWorth     *float64
	Balance      *float64
	Simulated    bool
}

type CategorySpend struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// Insights are advisory and derived only from enrichment transactions.
type Insights struct {
	LowBalanceWarnings  []string      `json:"low_balance_warnings,omitempty"`
	LargeTransactions   []Transaction `json:"large_transactions,omitempty"`
	RecurringBillsTotal float64       `json:"recurring_bills_total"`
}

// Degradation records an enrichment step that did not contribute.
type Degradation struct {
	Source Source `json:"source"`
	Reason string `json:"reason"`
}

// Profile is the financial stage blob.
type Profile struct {
	AccountName        string          `json:"account_name,omitempty"`
	Income             *Figure         `json:"income,omitempty"`
	Expenses           *Figure         `json:"expenses,omitempty"`
	Savings            *Figure         `json:"savings,omitempty"`
	SpendingByCategory []CategorySpend `json:"spending_by_category,omitempty"`
	SpendingPattern    string          `json:"spending_pattern,omitempty"`
	Insights           *Insights       `json:"insights,omitempty"`
	NetWorth           *float64        `json:"net_worth,omitempty"`
	Holdings           []Holding       `json:"holdings,omitempty"`
	RecommendedProduct string          `json:"recommended_product"`
	Degraded           []Degradation   `json:"degraded,omitempty"`
	Simulated          bool            `json:"simulated,omitempty"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

// FailureKind explains a negative result.
type FailureKind string

const (
	FailureConsentRequired FailureKind = "consent_required"
	FailureNotVerified     FailureKind = "not_verified"
	FailureProvider        FailureKind = "provider_error"
)

// Result is what the aggregator hands the workflow.
type Result struct {
	Verified bool        `json:"verified"`
	Failure  FailureKind `json:"failure,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	Profile  *Profile    `json:"profile,omitempty"`
}
