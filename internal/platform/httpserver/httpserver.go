package httpserver

import (
	"net/http"
	"time"

	"onboard/internal/platform/config"
)

// New builds the trigger server. Synchronous runs hold the response open, so
// the write timeout comes from config rather than a fixed value.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}
}
