package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "onboard/pkg/domain-errors"
)

// Typed identifiers keep process and customer ids from being swapped at call sites.
type (
	ProcessID  uuid.UUID
	CustomerID uuid.UUID
)

// customerNamespace scopes customer ids derived from process ids.
var customerNamespace = uuid.MustParse("6f1d8a52-3c0e-4b7a-9d3e-51a0c7e2b914")

// NewProcessID generates a fresh random process id.
func NewProcessID() ProcessID { return ProcessID(uuid.New()) }

// ParseProcessID parses external input into a ProcessID.
// Errors: CodeInvalidInput for empty, malformed or nil UUIDs.
func ParseProcessID(s string) (ProcessID, error) {
	u, err := parseUUID(s, "process id")
	return ProcessID(u), err
}

// ParseCustomerID parses external input into a CustomerID.
func ParseCustomerID(s string) (CustomerID, error) {
	u, err := parseUUID(s, "customer id")
	return CustomerID(u), err
}

// CustomerIDFor derives the customer id owned by a process. The derivation is
// stable so a replayed details submission resolves to the same customer.
func CustomerIDFor(p ProcessID) CustomerID {
	return CustomerID(uuid.NewSHA1(customerNamespace, p[:]))
}

func (id ProcessID) String() string  { return uuid.UUID(id).String() }
func (id ProcessID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CustomerID) String() string { return uuid.UUID(id).String() }
func (id CustomerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, label string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
