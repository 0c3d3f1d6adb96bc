package account

import (
	"time"

	"onboard/pkg/domain"
)

// Request carries what account opening needs from earlier stages.
type Request struct {
	ProcessID  domain.ProcessID
	CustomerID domain.CustomerID
	FullName   string
	Email      string
	// Product is the financial stage recommendation; empty selects everyday.
	Product         string
	SpendingPattern string
}

// Account is the account stage blob.
type Account struct {
	AccountNumber   string    `json:"account_number"`
	RoutingCode     string    `json:"routing_code"`
	Product         string    `json:"product"`
	WelcomeMessage  string    `json:"welcome_message"`
	Recommendations []string  `json:"recommendations"`
	Simulated       bool      `json:"simulated,omitempty"`
	OpenedAt        time.Time `json:"opened_at"`
}

type Result struct {
	Created         bool
	Reason          string
	ProviderFailure bool
	Account         *Account
}
