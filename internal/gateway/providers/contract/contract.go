// Package contract is a reusable harness asserting that a provider honors the
// normalized response contract the gateway relies on.
package contract

import (
	"context"
	"errors"
	"testing"

	"onboard/internal/gateway/providers"
)

// ContractTest defines a test case for provider contract validation
type ContractTest struct {
	Name         string
	Request      providers.Request
	ValidateFunc func(resp *providers.Response) error
}

// ContractSuite is a collection of contract tests for one provider
type ContractSuite struct {
	Provider providers.Provider
	Kind     providers.Kind
	// Simulated is the value every response must carry.
	Simulated bool
	Tests     []ContractTest
}

// Run executes all contract tests in the suite
func (s *ContractSuite) Run(t *testing.T) {
	t.Helper()
	if s.Provider.Kind() != s.Kind {
		t.Fatalf("expected kind %s, got %s", s.Kind, s.Provider.Kind())
	}
	for _, test := range s.Tests {
		t.Run(test.Name, func(t *testing.T) {
			resp, err := s.Provider.Call(context.Background(), test.Request)
			if err != nil {
				t.Fatalf("provider call failed: %v", err)
			}
			if resp.ProviderID != s.Provider.ID() {
				t.Errorf("expected provider ID %s, got %s", s.Provider.ID(), resp.ProviderID)
			}
			if resp.Simulated != s.Simulated {
				t.Errorf("expected simulated=%v, got %v", s.Simulated, resp.Simulated)
			}
			if s.Simulated {
				if v, _ := resp.Payload["simulated"].(bool); !v {
					t.Error("simulated payload missing simulated marker")
				}
			}
			if !resp.Verified && resp.Reason == "" {
				t.Error("negative response without reason")
			}
			if resp.ReceivedAt.IsZero() {
				t.Error("ReceivedAt not set")
			}
			if test.ValidateFunc != nil {
				if err := test.ValidateFunc(resp); err != nil {
					t.Errorf("custom validation failed: %v", err)
				}
			}
		})
	}
}

// AsyncContractTest drives an async provider to a terminal job state.
type AsyncContractTest struct {
	Provider providers.AsyncProvider
	Request  providers.Request
	// MaxPolls bounds the poll loop; the job must settle within it.
	MaxPolls      int
	ExpectedState providers.JobState
}

func (at *AsyncContractTest) Run(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	jobID, err := at.Provider.Submit(ctx, at.Request)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if jobID == "" {
		t.Fatal("empty job id")
	}
	for i := 0; i < at.MaxPolls; i++ {
		status, err := at.Provider.Poll(ctx, jobID)
		if err != nil {
			t.Fatalf("poll %d failed: %v", i+1, err)
		}
		if status.State == providers.JobPending {
			continue
		}
		if status.State != at.ExpectedState {
			t.Fatalf("expected %s, got %s (%s)", at.ExpectedState, status.State, status.Reason)
		}
		if status.State == providers.JobFailed && status.Reason == "" {
			t.Error("failed job without reason")
		}
		return
	}
	t.Fatalf("job %s still pending after %d polls", jobID, at.MaxPolls)
}

// ErrorContractTest validates that provider errors follow the taxonomy
type ErrorContractTest struct {
	Name          string
	Provider      providers.Provider
	Request       providers.Request
	ExpectedError providers.ErrorCategory
	ExpectedRetry bool
}

// Run executes an error contract test
func (ect *ErrorContractTest) Run(t *testing.T) {
	t.Helper()
	_, err := ect.Provider.Call(context.Background(), ect.Request)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var pe *providers.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %T: %v", err, err)
	}
	if pe.Category != ect.ExpectedError {
		t.Errorf("expected category %s, got %s", ect.ExpectedError, pe.Category)
	}
	if pe.Retryable != ect.ExpectedRetry {
		t.Errorf("expected retryable=%v, got %v", ect.ExpectedRetry, pe.Retryable)
	}
	if pe.ProviderID != ect.Provider.ID() {
		t.Errorf("expected provider ID %s, got %s", ect.Provider.ID(), pe.ProviderID)
	}
}
