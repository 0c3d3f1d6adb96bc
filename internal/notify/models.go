// Package notify tells downstream systems that an onboarding process reached
// a terminal status.
package notify

import (
	"context"
	"time"
)

// Event is the message published on the status topic.
type Event struct {
	ProcessID  string    `json:"process_id"`
	CustomerID string    `json:"customer_id,omitempty"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Simulated  bool      `json:"simulated,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers one event. Implementations may block until the broker
// acknowledges.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
