// Package workflow sequences the onboarding stages. It holds no verification
// logic: it loads the process, runs the stage for its status, picks the exit
// from the graph and commits the result against the status it started from.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"onboard/internal/notify"
	"onboard/internal/process/models"
	"onboard/pkg/attrs"
	"onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/audit"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

const defaultProcessTTL = 72 * time.Hour

type Engine struct {
	store    ProcessStore
	graph    Graph
	stages   map[models.Stage]StageExecutor
	consent  ConsentGranter
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *Metrics
	auditor  AuditPublisher
	notifier Notifier
	tracer   trace.Tracer
}

type Option func(*Engine)

func WithGraph(g Graph) Option {
	return func(e *Engine) { e.graph = g }
}

// WithConsent records the consent purposes supplied at start.
func WithConsent(c ConsentGranter) Option {
	return func(e *Engine) { e.consent = c }
}

func WithProcessTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(e *Engine) { e.auditor = p }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func NewEngine(store ProcessStore, stages map[models.Stage]StageExecutor, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "process store is required")
	}
	e := &Engine{
		store:  store,
		graph:  DefaultGraph(),
		stages: stages,
		ttl:    defaultProcessTTL,
		logger: slog.Default(),
		tracer: otel.Tracer("onboard/internal/workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.graph.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "invalid workflow graph")
	}
	for status, node := range e.graph {
		if e.stages[node.Stage] == nil {
			return nil, dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("no executor for stage %s run from %s", node.Stage, status))
		}
	}
	return e, nil
}

// Start validates the initial context, records consent and creates the
// process in INITIATED.
func (e *Engine) Start(ctx context.Context, input models.InitialContext) (domain.ProcessID, error) {
	now := requestcontext.Now(ctx)
	if input.Details != nil {
		if err := ValidateDetails(input.Details, now); err != nil {
			return domain.ProcessID{}, err
		}
	}
	id := domain.NewProcessID()
	if e.consent != nil && len(input.ConsentPurposes) > 0 {
		if _, err := e.consent.Grant(ctx, id, input.ConsentPurposes, e.ttl); err != nil {
			return domain.ProcessID{}, err
		}
	}
	p := models.NewProcess(id, input, now, e.ttl)
	if err := e.store.Create(ctx, p); err != nil {
		return domain.ProcessID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create process")
	}
	e.metrics.IncStarted()
	e.logAudit(ctx, audit.EventProcessStarted, id,
		"to_status", string(models.StatusInitiated),
		"channel", input.Channel,
	)
	return id, nil
}

// Get returns the current process record.
func (e *Engine) Get(ctx context.Context, id domain.ProcessID) (*models.OnboardingProcess, error) {
	p, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "process not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load process")
	}
	return p, nil
}

// SubmitDetails runs the details stage with the submitted details. It only
// succeeds from INITIATED.
func (e *Engine) SubmitDetails(ctx context.Context, id domain.ProcessID, details models.CustomerDetails) (*models.OnboardingProcess, error) {
	if err := ValidateDetails(&details, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	p, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusInitiated {
		return nil, conflict(fmt.Sprintf("details already collected, process is %s", p.Status), nil)
	}
	p.Input.Details = &details
	return e.advance(ctx, p)
}

// Step runs the stage for the current status and commits its outcome. A
// terminal process is returned unchanged.
func (e *Engine) Step(ctx context.Context, id domain.ProcessID) (*models.OnboardingProcess, error) {
	p, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return p, nil
	}
	return e.advance(ctx, p)
}

// Run steps the process until it reaches a terminal status or a step fails.
func (e *Engine) Run(ctx context.Context, id domain.ProcessID) (*models.OnboardingProcess, error) {
	// every step advances along an acyclic graph
	for range len(e.graph) + 1 {
		p, err := e.Step(ctx, id)
		if err != nil {
			return p, err
		}
		if p.Status.IsTerminal() {
			return p, nil
		}
		if err := ctx.Err(); err != nil {
			return p, err
		}
	}
	return nil, dErrors.New(dErrors.CodeInvariantViolation, "process did not reach a terminal status")
}

func (e *Engine) advance(ctx context.Context, p *models.OnboardingProcess) (*models.OnboardingProcess, error) {
	ctx = requestcontext.WithProcessID(ctx, p.ID)
	now := requestcontext.Now(ctx)
	if p.IsExpiredAt(now) {
		return nil, dErrors.Wrap(sentinel.ErrExpired, dErrors.CodeNotFound, "process expired")
	}
	from := p.Status
	node, ok := e.graph[from]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "no stage runs from "+string(from))
	}

	ctx, span := e.tracer.Start(ctx, "workflow.stage."+string(node.Stage), trace.WithAttributes(
		attribute.String("process.id", p.ID.String()),
		attribute.String("process.status", string(from)),
	))
	defer span.End()

	outcome, err := e.execute(ctx, node.Stage, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	to, err := e.graph.Resolve(from, outcome.Signal)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "stage outcome has no transition")
	}
	span.SetAttributes(attribute.String("process.next_status", string(to)))

	update, err := e.update(ctx, node.Stage, from, to, outcome)
	if err != nil {
		return nil, err
	}
	committed, err := e.store.ApplyStageResult(ctx, p.ID, update, from)
	if err != nil {
		return nil, e.commitError(ctx, p.ID, node.Stage, from, err)
	}

	e.afterCommit(ctx, from, committed, update)
	return committed, nil
}

// execute runs the stage. A missing referenced record becomes a negative
// outcome so the process still reaches a failure terminal.
func (e *Engine) execute(ctx context.Context, stage models.Stage, p *models.OnboardingProcess) (StageOutcome, error) {
	start := time.Now()
	outcome, err := e.stages[stage].Execute(ctx, p)
	if err != nil {
		if isValidation(err) || !isNotFound(err) {
			return StageOutcome{}, err
		}
		if _, rerr := e.graph.Resolve(p.Status, models.SignalNotVerified); rerr != nil {
			return StageOutcome{}, err
		}
		e.logger.WarnContext(ctx, "stage input missing, failing process",
			"process_id", p.ID.String(),
			"stage", string(stage),
			"error", err,
		)
		outcome = StageOutcome{Signal: models.SignalNotVerified, Reason: reasonOf(err)}
	}
	e.metrics.ObserveStage(stage, string(outcome.Signal), time.Since(start))
	return outcome, nil
}

func (e *Engine) update(ctx context.Context, stage models.Stage, from, to models.Status, o StageOutcome) (models.StageUpdate, error) {
	now := requestcontext.Now(ctx)
	var data json.RawMessage
	if o.Data != nil {
		raw, err := json.Marshal(o.Data)
		if err != nil {
			return models.StageUpdate{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode stage result")
		}
		data = raw
	}
	reason := o.Reason
	if to.IsFailure() && reason == "" {
		reason = e.graph.failureReason(from)
	}
	return models.StageUpdate{
		Result: models.StageResult{
			Stage:      stage,
			Signal:     o.Signal,
			Reason:     reason,
			Data:       data,
			Simulated:  o.Simulated,
			RecordedAt: now,
		},
		NextStatus: to,
		CustomerID: o.CustomerID,
		Reason:     reason,
		At:         now,
	}, nil
}

func (e *Engine) commitError(ctx context.Context, id domain.ProcessID, stage models.Stage, from models.Status, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrInvalidState):
		e.metrics.IncConflict(stage)
		e.logAudit(ctx, audit.EventTransitionLost, id,
			"stage", string(stage),
			"from_status", string(from),
		)
		return conflict("process already advanced by another execution", err)
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "process expired")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "process not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record stage result")
	}
}

// afterCommit emits side effects. None of them can undo the transition.
func (e *Engine) afterCommit(ctx context.Context, from models.Status, p *models.OnboardingProcess, u models.StageUpdate) {
	to := p.Status
	e.metrics.IncTransition(from, to)

	event := audit.EventStageCompleted
	switch {
	case to == models.StatusDetailsCollected:
		event = audit.EventDetailsCollected
	case to == models.StatusCompleted:
		event = audit.EventProcessCompleted
	case to == models.StatusManualReview:
		event = audit.EventManualReview
	case to.IsFailure():
		event = audit.EventProcessFailed
	}
	e.logAudit(ctx, event, p.ID,
		"stage", string(u.Result.Stage),
		"from_status", string(from),
		"to_status", string(to),
		"decision", string(u.Result.Signal),
		"reason", u.Reason,
		"simulated", u.Result.Simulated,
	)

	if !to.IsTerminal() || e.notifier == nil {
		return
	}
	n := notify.Event{
		ProcessID:  p.ID.String(),
		Status:     string(to),
		Reason:     p.Reason,
		Simulated:  simulated(p),
		OccurredAt: u.At,
	}
	if p.CustomerID != nil {
		n.CustomerID = p.CustomerID.String()
	}
	e.notifier.Notify(ctx, n)
}

func simulated(p *models.OnboardingProcess) bool {
	for _, r := range p.Results {
		if r.Simulated {
			return true
		}
	}
	return false
}

func (e *Engine) logAudit(ctx context.Context, event audit.AuditEvent, id domain.ProcessID, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "process_id", id.String(), "event", string(event), "log_type", "audit")
	e.logger.InfoContext(ctx, string(event), args...)
	if e.auditor == nil {
		return
	}
	if err := e.auditor.Emit(ctx, audit.Event{
		Category:   event.Category(),
		Timestamp:  requestcontext.Now(ctx),
		ProcessID:  id,
		Action:     string(event),
		Stage:      attrs.ExtractString(attributes, "stage"),
		FromStatus: attrs.ExtractString(attributes, "from_status"),
		ToStatus:   attrs.ExtractString(attributes, "to_status"),
		Decision:   attrs.ExtractString(attributes, "decision"),
		Reason:     attrs.ExtractString(attributes, "reason"),
		Simulated:  attrs.ExtractBool(attributes, "simulated"),
		RequestID:  requestcontext.RequestID(ctx),
	}); err != nil {
		e.logger.WarnContext(ctx, "audit emit failed", "event", string(event), "error", err)
	}
}
