// Package httptransport assembles the service's HTTP surface: the sync
// endpoint, health probes, and the Prometheus scrape endpoint.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fieldsync/internal/sync/handler"
	"fieldsync/internal/transport/http/shared"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker func(ctx context.Context) error

// NewRouter wires all endpoints. Readiness runs every registered checker;
// liveness and metrics never touch dependencies.
func NewRouter(syncHandler *handler.Handler, logger *slog.Logger, checkers map[string]HealthChecker) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
		defer cancel()

		status := map[string]string{}
		healthy := true
		for name, check := range checkers {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed", "dependency", name, "error", err.Error())
				status[name] = "unavailable"
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		shared.WriteJSON(w, code, status)
	})

	r.Handle("/metrics", promhttp.Handler())

	syncHandler.Register(r)
	return r
}
