package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rauletepaz/account-verifactu/internal/platform/middleware"
)

// NewRouter wires the public surface: the fiscal endpoints behind auth, plus
// health and metrics without it.
func NewRouter(
	handler *LedgerHandler,
	validator middleware.TokenValidator,
	metricsHandler http.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, logger))
		handler.Register(r)
	})
	return r
}
