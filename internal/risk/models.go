package risk

import (
	"onboard/pkg/domain"
)

// Decision is the gate verdict.
type Decision string

const (
	DecisionPass         Decision = "PASS"
	DecisionManualReview Decision = "MANUAL_REVIEW"
	DecisionReject       Decision = "REJECT"
)

// Category is an ordinal band over the 0-100 score. It is informational and
// never drives the decision.
type Category string

const (
	CategoryVeryLow  Category = "very_low"
	CategoryLow      Category = "low"
	CategoryMedium   Category = "medium"
	CategoryHigh     Category = "high"
	CategoryVeryHigh Category = "very_high"
)

// Reason codes recorded on an assessment.
const (
	ReasonScoreReject         = "score_at_or_above_reject_threshold"
	ReasonScoreReview         = "score_above_review_threshold"
	ReasonAlerts              = "screening_alerts"
	ReasonMatches             = "watchlist_matches"
	ReasonProviderUnavailable = "screening_provider_unavailable"
	ReasonSimulatedScreening  = "simulated_screening_in_production"
)

// ScreeningRequest is the identity submitted to AML screening. Document fields
// come from the identity stage extraction.
type ScreeningRequest struct {
	ProcessID      domain.ProcessID
	FullName       string
	DateOfBirth    string
	Address        string
	Nationality    string
	DocumentType   string
	DocumentNumber string
}

type Alert struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

type Match struct {
	Name       string  `json:"name"`
	ListType   string  `json:"list_type"`
	Similarity float64 `json:"similarity"`
}

// Screening is the raw provider answer. Score keeps the provider's precision
// so threshold comparisons are exact.
type Screening struct {
	Score     float64
	Alerts    []Alert
	Matches   []Match
	Simulated bool
}

// Assessment is the AML stage blob.
type Assessment struct {
	Score       float64  `json:"score"`
	Category    Category `json:"category"`
	Alerts      []Alert  `json:"alerts"`
	Matches     []Match  `json:"matches"`
	Decision    Decision `json:"decision"`
	Reason      string   `json:"reason,omitempty"`
	ReasonCodes []string `json:"reason_codes,omitempty"`
	Simulated   bool     `json:"simulated,omitempty"`
	// ProviderFailure marks a review forced by an unavailable screener.
	ProviderFailure bool `json:"provider_failure,omitempty"`
}
