// Package metrics registers the Prometheus instruments shared by the API
// service and the reconciler, and serves them on a lightweight sidecar.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EntriesCreated counts ledger writes by entry type
	EntriesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netvend_ledger_entries_created_total",
		Help: "Number of ledger entries created, by entry type.",
	}, []string{"type"})

	// Refunds counts refund attempts by outcome
	Refunds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netvend_refunds_total",
		Help: "Number of refund attempts, by outcome.",
	}, []string{"outcome"})

	// BalanceDrift counts accounts whose cached balance disagreed with the ledger
	BalanceDrift = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netvend_balance_drift_total",
		Help: "Number of accounts flagged with balance drift by the reconciler.",
	})

	// StalledRefunds counts refund markers rolled forward by the reconciler
	StalledRefunds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netvend_stalled_refunds_resumed_total",
		Help: "Number of stalled refund markers rolled forward.",
	})
)

// HealthFunc reports subsystem health for the /healthz endpoint
type HealthFunc func(ctx context.Context) error

// StartServer runs a small HTTP server exposing /metrics and /healthz in a
// goroutine and returns it so the caller can shut it down.
func StartServer(port int, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(fmt.Sprintf("unhealthy: %v", err)))
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}
