package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/scoserv"
	"github.com/aretw0/scoserv/internal/config"
	"github.com/aretw0/scoserv/pkg/attribute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scoserv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "log:\n  level: warn\n  format: json\n")

	cfg, logger, err := loadConfig(Options{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, logger.Enabled(context.Background(), -4))

	cfg, logger, err = loadConfig(Options{ConfigPath: path, Debug: true})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, logger.Enabled(context.Background(), -4), "debug flag wins")

	_, _, err = loadConfig(Options{ConfigPath: writeConfig(t, "log:\n  format: xml\n")})
	assert.Error(t, err)
}

func TestParseArguments(t *testing.T) {
	attrs, err := parseArguments(`{"max_eccentricity": 10, "gabor_orientations": 6}`)
	require.NoError(t, err)
	assert.Equal(t, []attribute.Attribute{
		{Name: "gabor_orientations", Value: 6.0},
		{Name: "max_eccentricity", Value: 10.0},
	}, attrs)

	attrs, err = parseArguments("")
	require.NoError(t, err)
	assert.Nil(t, attrs)

	_, err = parseArguments("[1,2]")
	assert.Error(t, err)
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, handleExecutionError(nil))
	assert.NoError(t, handleExecutionError(context.Canceled))
	boom := errors.New("boom")
	assert.Equal(t, boom, handleExecutionError(boom))
}

func TestAdminRouter(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Root = t.TempDir()
	model := attribute.ModelParameters()
	svc, err := scoserv.New(context.Background(), cfg, scoserv.WithModel("sco", model, nil))
	require.NoError(t, err)
	defer svc.Close()

	srv := httptest.NewServer(NewAdminRouter(svc))
	defer srv.Close()

	get := func(path string) (*http.Response, []byte) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, body
	}

	resp, body := get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = get("/info")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var info map[string]any
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, config.BackendSQLite, info["backend"])
	assert.Equal(t, []any{"sco"}, info["models"])

	// Store latency is recorded as soon as a collection is used.
	_, err = svc.Data().Experiments().Exists(context.Background(), "missing")
	require.NoError(t, err)
	resp, body = get("/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "scoserv_store_operation_duration_seconds")

	resp, _ = get("/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeAdmin_Disabled(t *testing.T) {
	assert.NoError(t, serveAdmin(context.Background(), "", http.NotFoundHandler(), nil))
}

func TestSubmit_UnknownExperiment(t *testing.T) {
	path := writeConfig(t, "storage:\n  root: "+t.TempDir()+"\n")
	var out bytes.Buffer
	err := Submit(Options{ConfigPath: path}, SubmitOptions{ExperimentID: "missing", Model: "sco"}, &out)
	assert.Error(t, err)
	assert.Empty(t, out.String())

	err = Submit(Options{ConfigPath: path}, SubmitOptions{ExperimentID: "e1", Model: "sco", Arguments: "{"}, &out)
	assert.ErrorContains(t, err, "--args")
}
