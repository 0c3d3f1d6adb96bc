package httpprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"onboard/internal/gateway/providers"
)

// StatementProvider drives a session -> credentials -> job statement API.
type StatementProvider struct {
	transport
}

func NewStatementProvider(cfg Config, tokens TokenSource, opts ...Option) *StatementProvider {
	return &StatementProvider{transport: newTransport(cfg, tokens, opts)}
}

// Submit opens a session, posts the bank credentials and returns the job id.
func (p *StatementProvider) Submit(ctx context.Context, req providers.Request) (string, error) {
	status, raw, err := p.do(ctx, http.MethodPost, "/sessions", req.IdempotencyKey,
		map[string]any{"process_id": req.ProcessID.String()})
	if err != nil {
		return "", err
	}
	var session struct {
		SessionID string `json:"session_id"`
	}
	if err := decodeOK(p.id, status, raw, &session); err != nil {
		return "", err
	}
	if session.SessionID == "" {
		return "", providers.NewProviderError(providers.ErrorContractMismatch, p.id, "missing session_id", nil)
	}

	status, raw, err = p.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(session.SessionID)+"/credentials", req.IdempotencyKey, req.Params)
	if err != nil {
		return "", err
	}
	var job struct {
		JobID string `json:"job_id"`
	}
	if err := decodeOK(p.id, status, raw, &job); err != nil {
		return "", err
	}
	if job.JobID == "" {
		return "", providers.NewProviderError(providers.ErrorContractMismatch, p.id, "missing job_id", nil)
	}
	return job.JobID, nil
}

func (p *StatementProvider) Poll(ctx context.Context, jobID string) (*providers.JobStatus, error) {
	status, raw, err := p.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), "", nil)
	if err != nil {
		return nil, err
	}
	var js struct {
		Status string         `json:"status"`
		Reason string         `json:"reason"`
		Data   map[string]any `json:"data"`
	}
	if err := decodeOK(p.id, status, raw, &js); err != nil {
		return nil, err
	}
	switch providers.JobState(js.Status) {
	case providers.JobPending:
		return &providers.JobStatus{State: providers.JobPending}, nil
	case providers.JobComplete:
		return &providers.JobStatus{State: providers.JobComplete, Payload: js.Data}, nil
	case providers.JobFailed:
		reason := js.Reason
		if reason == "" {
			reason = "statement job failed"
		}
		return &providers.JobStatus{State: providers.JobFailed, Reason: reason}, nil
	default:
		return nil, providers.NewProviderError(providers.ErrorContractMismatch, p.id,
			fmt.Sprintf("unknown job status %q", js.Status), nil)
	}
}

func decodeOK(providerID string, status int, body []byte, dst any) error {
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusAccepted {
		return statusError(providerID, status, body)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return providers.NewProviderError(providers.ErrorBadData, providerID, "malformed response", err)
	}
	return nil
}
