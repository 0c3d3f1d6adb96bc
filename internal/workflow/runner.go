package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"onboard/internal/process/models"
	"onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/requestcontext"
)

const (
	defaultMaxInFlight = 1024
	defaultQueueSize   = 256
	defaultResumeLimit = 500
)

// ErrQueueFull is returned by Enqueue when every slot is taken.
var ErrQueueFull = errors.New("runner queue is full")

// ProcessRunner drives a process to a terminal status.
type ProcessRunner interface {
	Run(ctx context.Context, id domain.ProcessID) (*models.OnboardingProcess, error)
}

// Runner drives each queued process id on its own goroutine. A process
// waiting between statement polls holds only its goroutine; provider
// concurrency is bounded by the gateway. The same id may be queued twice;
// the store rejects whichever step commits second.
type Runner struct {
	engine      ProcessRunner
	store       ProcessStore
	queue       chan domain.ProcessID
	maxInFlight int
	limit       int
	logger      *slog.Logger
	metrics     *Metrics
}

type RunnerOption func(*Runner)

// WithMaxInFlight caps how many processes are driven at once. Dequeuing
// pauses while the cap is reached.
func WithMaxInFlight(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxInFlight = n
		}
	}
}

func WithQueueSize(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.queue = make(chan domain.ProcessID, n)
		}
	}
}

func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

func WithRunnerMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithResume lets Resume list active processes from store.
func WithResume(store ProcessStore, limit int) RunnerOption {
	return func(r *Runner) {
		r.store = store
		if limit > 0 {
			r.limit = limit
		}
	}
}

func NewRunner(engine ProcessRunner, opts ...RunnerOption) (*Runner, error) {
	if engine == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "engine is required")
	}
	r := &Runner{
		engine:      engine,
		queue:       make(chan domain.ProcessID, defaultQueueSize),
		maxInFlight: defaultMaxInFlight,
		limit:       defaultResumeLimit,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Enqueue schedules id without blocking.
func (r *Runner) Enqueue(id domain.ProcessID) error {
	select {
	case r.queue <- id:
		r.metrics.SetQueueDepth(len(r.queue))
		return nil
	default:
		return dErrors.Wrap(ErrQueueFull, dErrors.CodeUnavailable, "runner is saturated, retry later")
	}
}

// Resume queues every non-terminal, unexpired process. It returns how many
// were queued before the queue filled up.
func (r *Runner) Resume(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	ids, err := r.store.ListActive(ctx, requestcontext.Now(ctx), r.limit)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active processes")
	}
	for i, id := range ids {
		if err := r.Enqueue(id); err != nil {
			r.logger.WarnContext(ctx, "resume stopped, queue full", "queued", i, "active", len(ids))
			return i, err
		}
	}
	if len(ids) > 0 {
		r.logger.InfoContext(ctx, "resumed active processes", "count", len(ids))
	}
	return len(ids), nil
}

// Start dispatches queued ids until ctx is cancelled, then waits for the
// runs in flight to return.
func (r *Runner) Start(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(r.maxInFlight)
	defer func() { _ = g.Wait() }()
	for {
		select {
		case <-ctx.Done():
			return nil
		case id := <-r.queue:
			r.metrics.SetQueueDepth(len(r.queue))
			g.Go(func() error {
				r.runOne(ctx, id)
				return nil
			})
		}
	}
}

func (r *Runner) runOne(ctx context.Context, id domain.ProcessID) {
	start := time.Now()
	p, err := r.engine.Run(ctx, id)
	switch {
	case err == nil:
		r.logger.InfoContext(ctx, "process run finished",
			"process_id", id.String(),
			"status", string(p.Status),
			"duration", time.Since(start),
		)
	case errors.Is(err, ErrAwaitingDetails):
		r.logger.DebugContext(ctx, "process waiting for details", "process_id", id.String())
	case errors.Is(err, ErrTransitionConflict):
		r.logger.InfoContext(ctx, "process advanced elsewhere", "process_id", id.String())
	case errors.Is(err, context.Canceled):
	default:
		r.logger.ErrorContext(ctx, "process run failed", "process_id", id.String(), "error", err)
	}
}
