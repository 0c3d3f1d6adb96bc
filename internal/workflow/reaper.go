package workflow

import (
	"context"
	"log/slog"
	"time"

	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/requestcontext"
)

const defaultPurgeInterval = 15 * time.Minute

// Reaper removes expired processes and their uploaded documents.
type Reaper struct {
	store    ProcessStore
	objects  ObjectPurger
	interval time.Duration
	logger   *slog.Logger
	metrics  *Metrics
	auditor  AuditPublisher
}

type ReaperOption func(*Reaper)

func WithPurgeInterval(d time.Duration) ReaperOption {
	return func(r *Reaper) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithReaperLogger(logger *slog.Logger) ReaperOption {
	return func(r *Reaper) { r.logger = logger }
}

func WithReaperMetrics(m *Metrics) ReaperOption {
	return func(r *Reaper) { r.metrics = m }
}

func WithReaperAudit(p AuditPublisher) ReaperOption {
	return func(r *Reaper) { r.auditor = p }
}

func NewReaper(store ProcessStore, objects ObjectPurger, opts ...ReaperOption) *Reaper {
	r := &Reaper{
		store:    store,
		objects:  objects,
		interval: defaultPurgeInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PurgeOnce deletes every process expired at the request time. Object
// deletion failures are logged; the records are already gone.
func (r *Reaper) PurgeOnce(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)
	ids, err := r.store.PurgeExpired(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge expired processes")
	}
	for _, id := range ids {
		if r.objects != nil {
			if err := r.objects.DeleteProcess(ctx, id); err != nil {
				r.logger.WarnContext(ctx, "failed to delete process documents", "process_id", id.String(), "error", err)
			}
		}
		if r.auditor != nil {
			event := audit.Event{
				Category:  audit.EventProcessPurged.Category(),
				Timestamp: now,
				ProcessID: id,
				Action:    string(audit.EventProcessPurged),
			}
			if err := r.auditor.Emit(ctx, event); err != nil {
				r.logger.WarnContext(ctx, "audit emit failed", "event", event.Action, "error", err)
			}
		}
	}
	r.metrics.AddPurged(len(ids))
	if len(ids) > 0 {
		r.logger.InfoContext(ctx, "purged expired processes", "count", len(ids))
	}
	return len(ids), nil
}

// Run purges on every tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.PurgeOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "purge failed", "error", err)
			}
		}
	}
}
