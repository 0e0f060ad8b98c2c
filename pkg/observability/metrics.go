package observability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scoserv"

// Dispatch outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeFailed   = "failed"
)

// Metrics holds the service collectors.
type Metrics struct {
	RunTransitions *prometheus.CounterVec
	Dispatches     *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	StoreLatency   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		RunTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "run_transitions_total",
				Help:      "Total number of model run state transitions",
			},
			[]string{"state"},
		),
		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Total number of run dispatch attempts",
			},
			[]string{"transport", "outcome"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of model runs from start to terminal state",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"state"},
		),
		StoreLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Latency of document backend operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"collection", "operation", "status"},
		),
		gatherer: reg,
	}
	reg.MustRegister(m.RunTransitions, m.Dispatches, m.RunDuration, m.StoreLatency)
	return m
}

// Gatherer returns the registry holding the collectors.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.gatherer }

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that update m and log each event. Either
// argument may be nil.
func Hooks(m *Metrics, logger *slog.Logger) domain.LifecycleHooks {
	log := func(msg string, level slog.Level) func(context.Context, *domain.RunEvent) {
		return func(ctx context.Context, e *domain.RunEvent) {
			if logger == nil {
				return
			}
			attrs := []any{"run_id", e.RunID, "experiment_id", e.ExperimentID, "state", e.State}
			if e.Transport != "" {
				attrs = append(attrs, "transport", e.Transport)
			}
			if e.Duration > 0 {
				attrs = append(attrs, "duration", e.Duration)
			}
			if e.Err != nil {
				attrs = append(attrs, "err", e.Err)
			}
			logger.Log(ctx, level, msg, attrs...)
		}
	}

	record := func(e *domain.RunEvent, terminal bool) {
		if m == nil {
			return
		}
		m.RunTransitions.WithLabelValues(e.State).Inc()
		if terminal {
			m.RunDuration.WithLabelValues(e.State).Observe(e.Duration.Seconds())
		}
	}

	logScheduled := log("run_scheduled", slog.LevelInfo)
	logDispatchFailed := log("run_dispatch_failed", slog.LevelWarn)
	logStarted := log("run_started", slog.LevelInfo)
	logSucceeded := log("run_succeeded", slog.LevelInfo)
	logFailed := log("run_failed", slog.LevelWarn)

	return domain.LifecycleHooks{
		OnScheduled: func(ctx context.Context, e *domain.RunEvent) {
			logScheduled(ctx, e)
			record(e, false)
			if m != nil {
				m.Dispatches.WithLabelValues(e.Transport, OutcomeAccepted).Inc()
			}
		},
		OnDispatchFailed: func(ctx context.Context, e *domain.RunEvent) {
			logDispatchFailed(ctx, e)
			if m != nil {
				m.Dispatches.WithLabelValues(e.Transport, OutcomeFailed).Inc()
			}
		},
		OnStarted: func(ctx context.Context, e *domain.RunEvent) {
			logStarted(ctx, e)
			record(e, false)
		},
		OnSucceeded: func(ctx context.Context, e *domain.RunEvent) {
			logSucceeded(ctx, e)
			record(e, true)
		},
		OnFailed: func(ctx context.Context, e *domain.RunEvent) {
			logFailed(ctx, e)
			record(e, true)
		},
	}
}
