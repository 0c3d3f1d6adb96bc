package gateway

import (
	"onboard/internal/gateway/providers"
)

// OutcomeKind is the normalized tristate every provider call resolves to.
type OutcomeKind string

const (
	OutcomeVerified      OutcomeKind = "verified"
	OutcomeNotVerified   OutcomeKind = "not_verified"
	OutcomeProviderError OutcomeKind = "provider_error"
)

// Outcome is the result of one gateway call, retries included.
type Outcome struct {
	Kind       OutcomeKind
	ProviderID string
	Payload    map[string]any
	Reason     string
	// Err is set for OutcomeProviderError and is always a *providers.ProviderError.
	Err       error
	Attempts  int
	Simulated bool
	// FallbackReason is non-empty when a stub answered in place of a failed
	// live provider.
	FallbackReason string
}

func (o Outcome) IsVerified() bool      { return o.Kind == OutcomeVerified }
func (o Outcome) IsProviderError() bool { return o.Kind == OutcomeProviderError }

// Decode unpacks the payload into dst.
func (o Outcome) Decode(dst any) error {
	return providers.Decode(o.Payload, dst)
}

func fromResponse(resp *providers.Response, attempts int) Outcome {
	out := Outcome{
		ProviderID: resp.ProviderID,
		Payload:    resp.Payload,
		Reason:     resp.Reason,
		Attempts:   attempts,
		Simulated:  resp.Simulated,
	}
	if resp.Verified {
		out.Kind = OutcomeVerified
	} else {
		out.Kind = OutcomeNotVerified
	}
	return out
}

func rejected(providerID string, pe *providers.ProviderError, attempts int) Outcome {
	return Outcome{
		Kind:       OutcomeNotVerified,
		ProviderID: providerID,
		Reason:     pe.Message,
		Attempts:   attempts,
	}
}

func failure(providerID string, err error, attempts int) Outcome {
	return Outcome{
		Kind:       OutcomeProviderError,
		ProviderID: providerID,
		Reason:     err.Error(),
		Err:        err,
		Attempts:   attempts,
	}
}
