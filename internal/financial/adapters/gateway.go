// Package adapters implements the financial ports over the provider gateway.
package adapters

import (
	"context"

	"onboard/internal/financial"
	"onboard/internal/gateway"
	"onboard/internal/gateway/providers"
	dErrors "onboard/pkg/domain-errors"
)

// ProviderGateway is the subset of the gateway the adapters use.
type ProviderGateway interface {
	Call(ctx context.Context, providerID string, req providers.Request) gateway.Outcome
	Submit(ctx context.Context, providerID string, req providers.Request) (string, error)
	Poll(ctx context.Context, providerID, jobID string) (*providers.JobStatus, error)
}

// GatewaySources serves every financial port from one gateway.
type GatewaySources struct {
	gateway ProviderGateway
}

func NewGatewaySources(gw ProviderGateway) *GatewaySources {
	return &GatewaySources{gateway: gw}
}

func accountParams(req financial.Request) map[string]any {
	return map[string]any{
		"full_name":      req.AccountHolder,
		"account_number": req.AccountNumber,
		"routing_code":   req.RoutingCode,
		"institution_id": req.InstitutionID,
	}
}

// outcomeError converts a provider failure into a domain error.
func outcomeError(out gateway.Outcome) error {
	return dErrors.Wrap(out.Err, dErrors.CodeProvider, out.ProviderID+" unavailable")
}

type primaryPayload struct {
	AccountHolder string   `json:"account_holder"`
	Balance       *float64 `json:"balance"`
	Income        *float64 `json:"income"`
	Expenses      *float64 `json:"expenses"`
	Savings       *float64 `json:"savings"`
}

func (s *GatewaySources) Fetch(ctx context.Context, req financial.Request) (*financial.PrimaryData, error) {
	out := s.gateway.Call(ctx, providers.IDPrimaryFinancial, providers.Request{
		Operation: "accounts",
		ProcessID: req.ProcessID,
		Params:    accountParams(req),
	})
	if out.IsProviderError() {
		return nil, outcomeError(out)
	}
	data := &financial.PrimaryData{Verified: out.IsVerified(), Reason: out.Reason, Simulated: out.Simulated}
	if !data.Verified {
		return data, nil
	}
	var p primaryPayload
	if err := out.Decode(&p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProvider, "primary financial payload unreadable")
	}
	data.AccountHolder = p.AccountHolder
	data.Balance, data.Income, data.Expenses, data.Savings = p.Balance, p.Income, p.Expenses, p.Savings
	return data, nil
}

type affordabilityPayload struct {
	AccountName  string   `json:"account_name"`
	Income       *float64 `json:"income"`
	Expenses     *float64 `json:"expenses"`
	SavingsRatio *float64 `json:"savings_ratio"`
}

func (s *GatewaySources) Verify(ctx context.Context, req financial.Request) (*financial.Affordability, error) {
	out := s.gateway.Call(ctx, providers.IDAccountVerifier, providers.Request{
		Operation:      "verify_ownership",
		ProcessID:      req.ProcessID,
		IdempotencyKey: req.ProcessID.String() + ":ownership",
		Params:         accountParams(req),
	})
	if out.IsProviderError() {
		return nil, outcomeError(out)
	}
	data := &financial.Affordability{Verified: out.IsVerified(), Reason: out.Reason, Simulated: out.Simulated}
	if !data.Verified {
		return data, nil
	}
	var p affordabilityPayload
	if err := out.Decode(&p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProvider, "affordability payload unreadable")
	}
	data.AccountName = p.AccountName
	data.Income, data.Expenses, data.SavingsRatio = p.Income, p.Expenses, p.SavingsRatio
	return data, nil
}

func (s *GatewaySources) Start(ctx context.Context, req financial.Request) (string, error) {
	params := accountParams(req)
	params["credential_token"] = req.CredentialToken
	return s.gateway.Submit(ctx, providers.IDStatements, providers.Request{
		Operation:      "retrieve",
		ProcessID:      req.ProcessID,
		IdempotencyKey: req.ProcessID.String() + ":statements",
		Params:         params,
	})
}

type statementPayload struct {
	RegularIncome   *float64 `json:"regular_income"`
	RegularExpenses *float64 `json:"regular_expenses"`
}

func (s *GatewaySources) Poll(ctx context.Context, jobID string) (*financial.JobStatus, error) {
	js, err := s.gateway.Poll(ctx, providers.IDStatements, jobID)
	if err != nil {
		return nil, err
	}
	switch js.State {
	case providers.JobPending:
		return &financial.JobStatus{State: financial.JobPending}, nil
	case providers.JobFailed:
		return &financial.JobStatus{State: financial.JobFailed, Reason: js.Reason}, nil
	}
	var p statementPayload
	if err := providers.Decode(js.Payload, &p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProvider, "statement payload unreadable")
	}
	return &financial.JobStatus{
		State: financial.JobComplete,
		Statement: &financial.StatementData{
			RegularIncome:   p.RegularIncome,
			RegularExpenses: p.RegularExpenses,
			Simulated:       js.Simulated,
		},
	}, nil
}

type enrichmentPayload struct {
	Transactions []financial.Transaction `json:"transactions"`
	Holdings     []financial.Holding     `json:"holdings"`
	NetWorth     *float64                `json:"net_worth"`
	Balance      *float64                `json:"balance"`
}

func (s *GatewaySources) Enrich(ctx context.Context, req financial.Request) (*financial.EnrichmentData, error) {
	out := s.gateway.Call(ctx, providers.IDEnrichment, providers.Request{
		Operation: "enrich",
		ProcessID: req.ProcessID,
		Params:    accountParams(req),
	})
	if !out.IsVerified() {
		if out.IsProviderError() {
			return nil, outcomeError(out)
		}
		return nil, dErrors.New(dErrors.CodeProvider, "enrichment declined: "+out.Reason)
	}
	var p enrichmentPayload
	if err := out.Decode(&p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProvider, "enrichment payload unreadable")
	}
	return &financial.EnrichmentData{
		Transactions: p.Transactions,
		Holdings:     p.Holdings,
		NetWorth:     p.NetWorth,
		Balance:      p.Balance,
		Simulated:    out.Simulated,
	}, nil
}

var (
	_ financial.PrimarySource      = (*GatewaySources)(nil)
	_ financial.AccountVerifier    = (*GatewaySources)(nil)
	_ financial.StatementRetriever = (*GatewaySources)(nil)
	_ financial.Enricher           = (*GatewaySources)(nil)
)
