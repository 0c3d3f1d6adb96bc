// Package account opens the customer's account once every check has passed
// and prepares the welcome material.
package account

import (
	"context"
	"log/slog"

	"onboard/internal/gateway"
	"onboard/internal/gateway/providers"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/requestcontext"
)

type ProviderGateway interface {
	Call(ctx context.Context, providerID string, req providers.Request) gateway.Outcome
}

type Service struct {
	gateway ProviderGateway
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(gw ProviderGateway, opts ...Option) (*Service, error) {
	if gw == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "provider gateway is required")
	}
	s := &Service{gateway: gw, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type openedPayload struct {
	AccountNumber string `json:"account_number"`
	RoutingCode   string `json:"routing_code"`
	Product       string `json:"product"`
}

// Open creates the account at the core banking provider. The process id is
// the idempotency key, so a repeated call for the same process never opens a
// second account. Generated text is best effort.
func (s *Service) Open(ctx context.Context, req Request) (*Result, error) {
	if req.ProcessID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "process id is required")
	}
	product := SelectProduct(req.Product)

	out := s.gateway.Call(ctx, providers.IDCoreBanking, providers.Request{
		Operation:      "open_account",
		ProcessID:      req.ProcessID,
		IdempotencyKey: req.ProcessID.String(),
		Params: map[string]any{
			"customer_id": req.CustomerID.String(),
			"full_name":   req.FullName,
			"email":       req.Email,
			"product":     product,
		},
	})
	switch out.Kind {
	case gateway.OutcomeProviderError:
		return &Result{Reason: "account provider unavailable", ProviderFailure: true}, nil
	case gateway.OutcomeNotVerified:
		reason := out.Reason
		if reason == "" {
			reason = "account provider declined the application"
		}
		return &Result{Reason: reason}, nil
	}

	var p openedPayload
	if err := out.Decode(&p); err != nil || p.AccountNumber == "" {
		s.logger.WarnContext(ctx, "core banking returned an unusable account",
			"process_id", req.ProcessID.String(),
			"error", err,
		)
		return &Result{Reason: "account provider returned no account number", ProviderFailure: true}, nil
	}
	if p.Product != "" {
		product = SelectProduct(p.Product)
	}

	acct := &Account{
		AccountNumber:   p.AccountNumber,
		RoutingCode:     p.RoutingCode,
		Product:         product,
		WelcomeMessage:  s.welcome(ctx, req, product),
		Recommendations: s.recommendations(ctx, req, product),
		Simulated:       out.Simulated,
		OpenedAt:        requestcontext.Now(ctx),
	}
	s.logger.InfoContext(ctx, "account opened",
		"log_type", "audit",
		"process_id", req.ProcessID.String(),
		"product", product,
		"simulated", out.Simulated,
	)
	return &Result{Created: true, Account: acct}, nil
}

type generatedText struct {
	Text string `json:"text"`
}

func (s *Service) generate(ctx context.Context, req Request, operation string, params map[string]any) string {
	out := s.gateway.Call(ctx, providers.IDTextGeneration, providers.Request{
		Operation: operation,
		ProcessID: req.ProcessID,
		Params:    params,
	})
	if !out.IsVerified() {
		s.logger.InfoContext(ctx, "text generation unavailable, using default text",
			"process_id", req.ProcessID.String(),
			"operation", operation,
			"reason", out.Reason,
		)
		return ""
	}
	var g generatedText
	if err := out.Decode(&g); err != nil {
		return ""
	}
	return g.Text
}

func (s *Service) welcome(ctx context.Context, req Request, product string) string {
	text := s.generate(ctx, req, "welcome_message", map[string]any{
		"full_name": req.FullName,
		"product":   product,
	})
	if text == "" {
		return defaultWelcome(req.FullName, product)
	}
	return text
}

func (s *Service) recommendations(ctx context.Context, req Request, product string) []string {
	recs := parseRecommendations(s.generate(ctx, req, "recommendations", map[string]any{
		"product":          product,
		"spending_pattern": req.SpendingPattern,
	}))
	if len(recs) == 0 {
		return append([]string(nil), defaultRecommendations[product]...)
	}
	return recs
}
