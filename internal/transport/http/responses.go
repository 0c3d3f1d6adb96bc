package httptransport

import (
	"encoding/json"
	"time"

	"onboard/internal/process/models"
)

type StageResultResponse struct {
	Signal     string          `json:"signal"`
	Reason     string          `json:"reason,omitempty"`
	Simulated  bool            `json:"simulated,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// ProcessResponse is the public view of a process.
type ProcessResponse struct {
	ProcessID  string                         `json:"process_id"`
	Status     string                         `json:"status"`
	Terminal   bool                           `json:"terminal"`
	CustomerID string                         `json:"customer_id,omitempty"`
	Reason     string                         `json:"reason,omitempty"`
	Results    map[string]StageResultResponse `json:"results"`
	CreatedAt  time.Time                      `json:"created_at"`
	UpdatedAt  time.Time                      `json:"updated_at"`
	ExpiresAt  time.Time                      `json:"expires_at"`
}

type StartResponse struct {
	ProcessID string `json:"process_id"`
	Status    string `json:"status"`
}

type QueuedResponse struct {
	ProcessID string `json:"process_id"`
	Queued    bool   `json:"queued"`
}

func FromProcess(p *models.OnboardingProcess) *ProcessResponse {
	resp := &ProcessResponse{
		ProcessID: p.ID.String(),
		Status:    string(p.Status),
		Terminal:  p.Status.IsTerminal(),
		Reason:    p.Reason,
		Results:   make(map[string]StageResultResponse, len(p.Results)),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		ExpiresAt: p.ExpiresAt,
	}
	if p.CustomerID != nil {
		resp.CustomerID = p.CustomerID.String()
	}
	for stage, r := range p.Results {
		resp.Results[string(stage)] = StageResultResponse{
			Signal:     string(r.Signal),
			Reason:     r.Reason,
			Simulated:  r.Simulated,
			Data:       r.Data,
			RecordedAt: r.RecordedAt,
		}
	}
	return resp
}
