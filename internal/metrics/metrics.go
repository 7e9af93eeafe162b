// Package metrics provides Prometheus metrics for the leaderboard service.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds the service's collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	TradesRecorded     prometheus.Counter
	OperationErrors    *prometheus.CounterVec
	CyclesTotal        *prometheus.CounterVec
	RewardsDistributed prometheus.Counter
	RewardsRetained    prometheus.Counter
	BonusesAwarded     prometheus.Counter
	LeaderboardEntries prometheus.Gauge
	TransfersTotal     *prometheus.CounterVec
	CycleDuration      prometheus.Histogram
	LastCycle          prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "flashtrader"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TradesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "recorded_total",
			Help:      "Total number of trades recorded",
		}),
		OperationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Total number of failed operations by operation",
		}, []string{"operation"}),
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "resets_total",
			Help:      "Total number of cycle resets by outcome",
		}, []string{"outcome"}),
		RewardsDistributed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "rewards_distributed_base_units_total",
			Help:      "Reward base units paid out across all cycles",
		}),
		RewardsRetained: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "rewards_undistributed_base_units_total",
			Help:      "Reward base units left in the pool by rounding and decay",
		}),
		BonusesAwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "bonuses_awarded_total",
			Help:      "Total number of lottery bonuses awarded",
		}),
		LeaderboardEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "entries",
			Help:      "Current number of ranked traders",
		}),
		TransfersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "requests_total",
			Help:      "Transfer requests by purpose and status",
		}, []string{"purpose", "status"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Cycle reset duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		LastCycle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "last_reset_timestamp",
			Help:      "Unix timestamp of the last successful reset",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordTrade counts a trade and refreshes the board size.
func (m *Metrics) RecordTrade(boardSize int) {
	if m == nil {
		return
	}
	m.TradesRecorded.Inc()
	m.LeaderboardEntries.Set(float64(boardSize))
}

// RecordError counts a failed operation.
func (m *Metrics) RecordError(operation string) {
	if m == nil {
		return
	}
	m.OperationErrors.WithLabelValues(operation).Inc()
}

// RecordCycle records a committed reset.
func (m *Metrics) RecordCycle(distributed bool, paid, retained uint64, bonuses int, resetAt time.Time, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "empty"
	if distributed {
		outcome = "distributed"
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.RewardsDistributed.Add(float64(paid))
	m.RewardsRetained.Add(float64(retained))
	m.BonusesAwarded.Add(float64(bonuses))
	m.LastCycle.Set(float64(resetAt.Unix()))
	m.CycleDuration.Observe(took.Seconds())
}

// RecordTransfer counts a transfer request state change.
func (m *Metrics) RecordTransfer(purpose, status string) {
	if m == nil {
		return
	}
	m.TransfersTotal.WithLabelValues(purpose, status).Inc()
}

// Serve exposes /metrics and /healthz on listen until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, listen string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", listen).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
