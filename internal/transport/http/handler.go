package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"onboard/internal/objectstore"
	"onboard/internal/process/models"
	"onboard/internal/workflow"
	"onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/requestcontext"
)

const maxDocumentBytes = 10 << 20

// Engine is the workflow surface the trigger drives.
type Engine interface {
	Start(ctx context.Context, input models.InitialContext) (domain.ProcessID, error)
	SubmitDetails(ctx context.Context, id domain.ProcessID, details models.CustomerDetails) (*models.OnboardingProcess, error)
	Get(ctx context.Context, id domain.ProcessID) (*models.OnboardingProcess, error)
	Run(ctx context.Context, id domain.ProcessID) (*models.OnboardingProcess, error)
}

// Scheduler queues a process for a background run.
type Scheduler interface {
	Enqueue(id domain.ProcessID) error
}

type DocumentStore interface {
	Put(ctx context.Context, processID domain.ProcessID, purpose objectstore.Purpose, data []byte) error
}

// Handler maps trigger requests onto the engine. It holds no workflow logic.
type Handler struct {
	engine    Engine
	documents DocumentStore
	scheduler Scheduler
	logger    *slog.Logger
}

// New builds the handler. Without a scheduler every run is synchronous.
func New(engine Engine, documents DocumentStore, scheduler Scheduler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, documents: documents, scheduler: scheduler, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/onboarding", func(r chi.Router) {
		r.Post("/", h.HandleStart)
		r.Get("/{id}", h.HandleGet)
		r.Post("/{id}/details", h.HandleSubmitDetails)
		r.Put("/{id}/documents/{purpose}", h.HandleUploadDocument)
		r.Post("/{id}/run", h.HandleRun)
	})
}

// HandleStart handles POST /v1/onboarding.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeAndPrepare[StartRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	id, err := h.engine.Start(ctx, req.toModel())
	if err != nil {
		h.fail(ctx, w, "start onboarding failed", domain.ProcessID{}, err)
		return
	}
	h.logger.InfoContext(ctx, "onboarding started",
		"request_id", requestcontext.RequestID(ctx),
		"process_id", id.String(),
		"channel", req.Channel,
	)
	httputil.WriteJSON(w, http.StatusCreated, StartResponse{ProcessID: id.String(), Status: string(models.StatusInitiated)})
}

// HandleGet handles GET /v1/onboarding/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := processID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.fail(r.Context(), w, "get process failed", id, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProcess(p))
}

// HandleSubmitDetails handles POST /v1/onboarding/{id}/details.
func (h *Handler) HandleSubmitDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := processID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeAndPrepare[DetailsRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.engine.SubmitDetails(ctx, id, req.toModel())
	if err != nil {
		h.fail(ctx, w, "submit details failed", id, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProcess(p))
}

// HandleUploadDocument handles PUT /v1/onboarding/{id}/documents/{purpose}.
// The body is the raw document bytes.
func (h *Handler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := processID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	purpose, err := objectstore.ParsePurpose(chi.URLParam(r, "purpose"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.engine.Get(ctx, id)
	if err != nil {
		h.fail(ctx, w, "upload lookup failed", id, err)
		return
	}
	if err := workflow.CheckUpload(p.Status, purpose); err != nil {
		httputil.WriteError(w, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "document exceeds 10MiB"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read document"))
		return
	}
	if len(data) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "document body is empty"))
		return
	}
	if err := h.documents.Put(ctx, id, purpose, data); err != nil {
		h.fail(ctx, w, "document upload failed", id, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document"))
		return
	}
	h.logger.InfoContext(ctx, "document uploaded",
		"process_id", id.String(),
		"purpose", string(purpose),
		"bytes", len(data),
	)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRun handles POST /v1/onboarding/{id}/run. With ?wait=true, or
// without a scheduler, the process runs to a terminal status in the request.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := processID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if h.scheduler != nil && r.URL.Query().Get("wait") != "true" {
		if _, err := h.engine.Get(ctx, id); err != nil {
			h.fail(ctx, w, "run lookup failed", id, err)
			return
		}
		if err := h.scheduler.Enqueue(id); err != nil {
			h.fail(ctx, w, "enqueue failed", id, err)
			return
		}
		httputil.WriteJSON(w, http.StatusAccepted, QueuedResponse{ProcessID: id.String(), Queued: true})
		return
	}

	start := time.Now()
	p, err := h.engine.Run(ctx, id)
	if err != nil {
		h.fail(ctx, w, "run failed", id, err)
		return
	}
	h.logger.InfoContext(ctx, "process run finished",
		"process_id", id.String(),
		"status", string(p.Status),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromProcess(p))
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, id domain.ProcessID, err error) {
	level := slog.LevelWarn
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"process_id", id.String(),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func processID(r *http.Request) (domain.ProcessID, error) {
	id, err := domain.ParseProcessID(chi.URLParam(r, "id"))
	if err != nil {
		return domain.ProcessID{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid process id")
	}
	return id, nil
}
