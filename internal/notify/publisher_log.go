package notify

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, "onboarding status notification",
		"process_id", event.ProcessID,
		"status", event.Status,
		"reason", event.Reason,
		"simulated", event.Simulated,
	)
	return nil
}
