// Package adapters implements the risk Screener over the provider gateway.
package adapters

import (
	"context"
	"fmt"
	"math"

	"onboard/internal/gateway"
	"onboard/internal/gateway/providers"
	"onboard/internal/risk"
	dErrors "onboard/pkg/domain-errors"
)

type ProviderGateway interface {
	Call(ctx context.Context, providerID string, req providers.Request) gateway.Outcome
}

type GatewayScreener struct {
	gateway ProviderGateway
}

func NewGatewayScreener(gw ProviderGateway) *GatewayScreener {
	return &GatewayScreener{gateway: gw}
}

type screeningPayload struct {
	RiskScore *float64     `json:"risk_score"`
	Alerts    []risk.Alert `json:"alerts"`
	Matches   []risk.Match `json:"matches"`
}

// Screen returns an error for provider failures and for answers without a
// score. A negative answer from the screener is also treated as unavailable
// since screening has no "not verified" meaning.
func (s *GatewayScreener) Screen(ctx context.Context, req risk.ScreeningRequest) (*risk.Screening, error) {
	out := s.gateway.Call(ctx, providers.IDScreening, providers.Request{
		Operation:      "screen",
		ProcessID:      req.ProcessID,
		IdempotencyKey: req.ProcessID.String() + ":screening",
		Params: map[string]any{
			"full_name":       req.FullName,
			"date_of_birth":   req.DateOfBirth,
			"address":         req.Address,
			"nationality":     req.Nationality,
			"document_type":   req.DocumentType,
			"document_number": req.DocumentNumber,
		},
	})
	switch out.Kind {
	case gateway.OutcomeProviderError:
		return nil, dErrors.Wrap(out.Err, dErrors.CodeProvider, "aml screening unavailable")
	case gateway.OutcomeNotVerified:
		return nil, dErrors.New(dErrors.CodeProvider, "aml screening declined: "+out.Reason)
	}

	var p screeningPayload
	if err := out.Decode(&p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProvider, "aml screening payload unreadable")
	}
	if p.RiskScore == nil {
		return nil, dErrors.New(dErrors.CodeProvider, "aml screening payload missing risk_score")
	}
	if math.IsNaN(*p.RiskScore) || math.IsInf(*p.RiskScore, 0) {
		return nil, dErrors.New(dErrors.CodeProvider, fmt.Sprintf("aml screening risk_score %v is not a number", *p.RiskScore))
	}
	return &risk.Screening{
		Score:     *p.RiskScore,
		Alerts:    p.Alerts,
		Matches:   p.Matches,
		Simulated: out.Simulated,
	}, nil
}

var _ risk.Screener = (*GatewayScreener)(nil)
