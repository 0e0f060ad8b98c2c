package scoserv_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/scoserv"
	"github.com/aretw0/scoserv/internal/config"
	"github.com/aretw0/scoserv/internal/testutils"
	"github.com/aretw0/scoserv/pkg/attribute"
	"github.com/aretw0/scoserv/pkg/datastore"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prediction writes prediction.mgz into the work dir.
var prediction = ports.ModelFunc(func(_ context.Context, in ports.ModelInput) (ports.ModelOutput, error) {
	primary := filepath.Join(in.WorkDir, "prediction.mgz")
	if err := os.WriteFile(primary, []byte("volume"), 0o644); err != nil {
		return ports.ModelOutput{}, err
	}
	return ports.ModelOutput{PrimaryFile: primary}, nil
})

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Root = t.TempDir()
	return cfg
}

func newService(t *testing.T, cfg config.Config, opts ...scoserv.Option) *scoserv.Service {
	t.Helper()
	opts = append([]scoserv.Option{scoserv.WithModel("fake", attribute.ModelParameters(), prediction)}, opts...)
	svc, err := scoserv.New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, svc.Close()) })
	return svc
}

// populate creates a subject, two images in one group and an experiment.
func populate(t *testing.T, data *datastore.DataStore) *domain.Experiment {
	t.Helper()
	ctx := context.Background()
	subject, err := data.Subjects().Create(ctx, "Subject 1", testutils.SubjectTree(t))
	require.NoError(t, err)

	var entries []domain.GroupImage
	for _, path := range testutils.ImageFiles(t, "a.png", "b.png") {
		img, err := data.Images().Create(ctx, path)
		require.NoError(t, err)
		entries = append(entries, domain.GroupImage{ImageID: img.ID, Folder: "/", Name: img.Name()})
	}
	group, err := data.CreateImageGroup(ctx, "Group 1", entries, nil)
	require.NoError(t, err)

	exp, err := data.CreateExperiment(ctx, "Experiment 1", subject.ID, group.ID)
	require.NoError(t, err)
	return exp
}

func runState(t *testing.T, data *datastore.DataStore, id string) string {
	t.Helper()
	run, err := data.ModelRuns().Get(context.Background(), id, true)
	require.NoError(t, err)
	return run.State.Name()
}

func TestService_SynchronousDispatch(t *testing.T) {
	var svc *scoserv.Service
	dispatch := ports.DispatcherFunc(func(ctx context.Context, req domain.RunRequest) error {
		return svc.Engine().Handle(ctx, req)
	})
	svc = newService(t, testConfig(t), scoserv.WithDispatcher(dispatch, "inline"))
	exp := populate(t, svc.Data())

	run, err := svc.Data().CreateModelRun(context.Background(), exp.ID, "Run 1", "fake", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSuccess, runState(t, svc.Data(), run.ID))

	m := svc.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunTransitions.WithLabelValues(domain.StateSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues("inline", "accepted")))
	assert.Positive(t, testutil.CollectAndCount(m.StoreLatency), "collections are instrumented")
}

func TestService_Backends(t *testing.T) {
	tests := []struct {
		name    string
		backend string
	}{
		{"memory", config.BackendMemory},
		{"sqlite", config.BackendSQLite},
		{"loam", config.BackendLoam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Backend.Type = tt.backend
			noop := ports.DispatcherFunc(func(context.Context, domain.RunRequest) error { return nil })
			svc := newService(t, cfg, scoserv.WithDispatcher(noop, "noop"))

			exp := populate(t, svc.Data())
			got, err := svc.Data().Experiments().Get(context.Background(), exp.ID, false)
			require.NoError(t, err)
			assert.Equal(t, "Experiment 1", got.Name())

			run, err := svc.Data().CreateModelRun(context.Background(), exp.ID, "Run 1", "fake", nil)
			require.NoError(t, err)
			require.NoError(t, svc.Engine().Execute(context.Background(), run.ID))
			assert.Equal(t, domain.StateSuccess, runState(t, svc.Data(), run.ID))
		})
	}
}

func TestService_RedisQueue(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := testConfig(t)
	cfg.Backend.Type = config.BackendRedis
	cfg.Backend.Redis.Addr = mr.Addr()
	cfg.Dispatch.Transport = config.TransportRedis
	svc := newService(t, cfg)

	exp := populate(t, svc.Data())
	run, err := svc.Data().CreateModelRun(context.Background(), exp.ID, "Run 1", "fake", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, runState(t, svc.Data(), run.ID), "queued runs wait for a worker")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Consume(ctx) }()

	assert.Eventually(t, func() bool {
		return runState(t, svc.Data(), run.ID) == domain.StateSuccess
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestService_SocketEngine(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.Dispatch.Transport = config.TransportSocket
	cfg.Dispatch.SocketAddr = ln.Addr().String()
	svc := newService(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.ServeEngine(ctx, ln) }()

	exp := populate(t, svc.Data())
	run, err := svc.Data().CreateModelRun(context.Background(), exp.ID, "Run 1", "fake", nil)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return runState(t, svc.Data(), run.ID) == domain.StateSuccess
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func TestService_DispatchFailureDeletesRun(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := testConfig(t)
	cfg.Dispatch.Transport = config.TransportSocket
	cfg.Dispatch.SocketAddr = addr
	cfg.Dispatch.Timeout = time.Second
	svc := newService(t, cfg)

	exp := populate(t, svc.Data())
	_, err = svc.Data().CreateModelRun(context.Background(), exp.ID, "Run 1", "fake", nil)
	assert.ErrorIs(t, err, domain.ErrDispatch)

	page, err := svc.Data().ModelRuns().ListForExperiment(context.Background(), exp.ID, domain.ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, page.Total, "undispatched run is not listed")
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics().Dispatches.WithLabelValues(config.TransportSocket, "failed")))
}

func TestService_ConsumeWithoutQueue(t *testing.T) {
	svc := newService(t, testConfig(t))
	assert.ErrorIs(t, svc.Consume(context.Background()), scoserv.ErrNoQueue)
}

func TestService_ModelsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.File = filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(cfg.Model.File, []byte(`
models:
  - name: retino
    command: retino
    parameters:
      - name: max_eccentricity
        type: float
        default: 10
`), 0o644))
	cfg.Model.Command = "sco"

	svc := newService(t, cfg)
	assert.Equal(t, []string{"fake", "retino", "sco"}, svc.Registry().Names())
}

func TestService_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backend.Type = config.BackendRedis
	cfg.Backend.Redis.Addr = "127.0.0.1:1"
	_, err := scoserv.New(context.Background(), cfg)
	assert.Error(t, err, "unreachable redis")

	cfg = testConfig(t)
	cfg.Model.File = filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(cfg.Model.File, []byte(`
models:
  - name: bad
    command: bad
    parameters:
      - name: x
        type: string
`), 0o644))
	_, err = scoserv.New(context.Background(), cfg)
	assert.Error(t, err, "invalid parameter type")
}
