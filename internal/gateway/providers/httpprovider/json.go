package httpprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"onboard/internal/gateway/providers"
)

// JSONProvider is a synchronous provider exposing POST {base}/{operation}.
type JSONProvider struct {
	transport
}

func NewJSONProvider(cfg Config, tokens TokenSource, opts ...Option) *JSONProvider {
	return &JSONProvider{transport: newTransport(cfg, tokens, opts)}
}

type callRequest struct {
	ProcessID string            `json:"process_id"`
	Params    map[string]any    `json:"params,omitempty"`
	Blobs     map[string][]byte `json:"blobs,omitempty"`
}

type callResponse struct {
	Verified *bool          `json:"verified"`
	Reason   string         `json:"reason"`
	Data     map[string]any `json:"data"`
}

func (p *JSONProvider) Call(ctx context.Context, req providers.Request) (*providers.Response, error) {
	body := callRequest{ProcessID: req.ProcessID.String(), Params: req.Params, Blobs: req.Blobs}
	status, raw, err := p.do(ctx, http.MethodPost, "/"+req.Operation, req.IdempotencyKey, body)
	if err != nil {
		return nil, err
	}
	return parseResponse(p.id, status, raw, p.now())
}

// parseResponse maps a provider HTTP answer onto the normalized contract.
func parseResponse(providerID string, status int, body []byte, now time.Time) (*providers.Response, error) {
	if status != http.StatusOK {
		return nil, statusError(providerID, status, body)
	}
	var cr callResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, providers.NewProviderError(providers.ErrorBadData, providerID, "malformed response", err)
	}
	if cr.Verified == nil {
		return nil, providers.NewProviderError(providers.ErrorContractMismatch, providerID, "response missing verified flag", nil)
	}
	if !*cr.Verified && cr.Reason == "" {
		cr.Reason = "rejected by provider"
	}
	if cr.Data == nil {
		cr.Data = map[string]any{}
	}
	return &providers.Response{
		ProviderID: providerID,
		Verified:   *cr.Verified,
		Reason:     cr.Reason,
		Payload:    cr.Data,
		ReceivedAt: now,
	}, nil
}
