package domain

import dErrors "onboard/pkg/domain-errors"

// ConsentPurpose identifies what a customer agreed their data may be used for.
// Construct via ParseConsentPurpose at trust boundaries.
type ConsentPurpose string

const (
	// ConsentPurposeFinancialData gates the consent-scoped primary source.
	ConsentPurposeFinancialData ConsentPurpose = "cdr_financial_data"
	ConsentPurposeIdentityCheck ConsentPurpose = "identity_check"
	ConsentPurposeBiometric     ConsentPurpose = "biometric_match"
	ConsentPurposeScreening     ConsentPurpose = "aml_screening"
)

var validConsentPurposes = map[ConsentPurpose]bool{
	ConsentPurposeFinancialData: true,
	ConsentPurposeIdentityCheck: true,
	ConsentPurposeBiometric:     true,
	ConsentPurposeScreening:     true,
}

// ParseConsentPurpose constructs a ConsentPurpose from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseConsentPurpose(s string) (ConsentPurpose, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "purpose cannot be empty")
	}
	p := ConsentPurpose(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid purpose")
	}
	return p, nil
}

func (p ConsentPurpose) IsValid() bool {
	return validConsentPurposes[p]
}

func (p ConsentPurpose) String() string {
	return string(p)
}
