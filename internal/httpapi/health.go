package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Check verifies one dependency for the readiness endpoint.
type Check func(ctx context.Context) error

// RegisterHealth mounts the health endpoints: /healthz answers 200 as long as
// the process serves HTTP, /readyz runs every dependency check under the
// shared timeout and turns the first failure into a 503.
func RegisterHealth(r *mux.Router, timeout time.Duration, checks ...Check) {
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.HandleFunc("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		for _, check := range checks {
			if err := check(ctx); err != nil {
				slog.Warn("readiness check failed", "err", err)
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
}
