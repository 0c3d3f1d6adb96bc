// Package httptransport is the thin HTTP trigger over the workflow engine.
package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"onboard/pkg/platform/httputil"
	"onboard/pkg/platform/middleware/requesttime"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck checks one backing dependency for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthResponse struct {
	Status  string   `json:"status"`
	Failing []string `json:"failing,omitempty"`
}

// NewRouter mounts the onboarding routes with health and metrics endpoints.
// metrics may be nil.
func NewRouter(h *Handler, metrics http.Handler, timeout time.Duration, checks ...HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", healthz(checks))
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Group(func(r chi.Router) {
		if timeout > 0 {
			r.Use(middleware.Timeout(timeout))
		}
		h.Register(r)
	})
	return r
}

func healthz(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		var failing []string
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				failing = append(failing, c.Name)
			}
		}
		if len(failing) > 0 {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Failing: failing})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}
