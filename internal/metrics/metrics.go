// Package metrics exposes Prometheus counters for the session engine.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matt0x6f/ircsession/internal/logger"
)

var (
	metricEventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ircsession",
		Name:      "events_applied_total",
		Help:      "Inbound protocol events folded into client state, by kind.",
	}, []string{"kind"})
	metricEventsStale = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ircsession",
		Name:      "events_stale_total",
		Help:      "Events dropped because their connection generation was superseded.",
	})
	metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ircsession",
		Name:      "commands_dispatched_total",
		Help:      "User commands dispatched, by command name.",
	}, []string{"command"})
	metricSaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ircsession",
		Name:      "save_failures_total",
		Help:      "Failed attempts to persist server configuration.",
	})
	metricServers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ircsession",
		Name:      "servers",
		Help:      "Configured servers by connection status.",
	}, []string{"status"})
)

func RecordEvent(kind string) {
	metricEventsApplied.WithLabelValues(kind).Inc()
}

func RecordStaleEvent() {
	metricEventsStale.Inc()
}

func RecordCommand(name string) {
	metricCommands.WithLabelValues(name).Inc()
}

func RecordSaveFailure() {
	metricSaveFailures.Inc()
}

// SetServers replaces the per-status server gauge
func SetServers(byStatus map[string]int) {
	metricServers.Reset()
	for status, n := range byStatus {
		metricServers.WithLabelValues(status).Set(float64(n))
	}
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
