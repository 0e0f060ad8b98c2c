package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_UpdateMetrics(t *testing.T) {
	m := observability.NewMetrics()
	hooks := observability.Hooks(m, nil)
	ctx := context.Background()

	hooks.OnScheduled(ctx, &domain.RunEvent{RunID: "r1", State: domain.StateIdle, Transport: "redis"})
	hooks.OnDispatchFailed(ctx, &domain.RunEvent{RunID: "r2", State: domain.StateIdle, Transport: "redis"})
	hooks.OnStarted(ctx, &domain.RunEvent{RunID: "r1", State: domain.StateRunning})
	hooks.OnSucceeded(ctx, &domain.RunEvent{RunID: "r1", State: domain.StateSuccess, Duration: 3 * time.Second})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("redis", observability.OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("redis", observability.OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunTransitions.WithLabelValues(domain.StateIdle)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunTransitions.WithLabelValues(domain.StateRunning)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunTransitions.WithLabelValues(domain.StateSuccess)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDuration))
}

func TestHooks_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	hooks := observability.Hooks(nil, logger)

	hooks.OnFailed(context.Background(), &domain.RunEvent{
		RunID: "r1", ExperimentID: "e1", State: domain.StateFailed, Err: errors.New("boom"),
	})

	out := buf.String()
	assert.Contains(t, out, "msg=run_failed")
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "err=boom")
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics()
	m.RunTransitions.WithLabelValues(domain.StateFailed).Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `scoserv_run_transitions_total{state="FAILED"} 1`)
}
