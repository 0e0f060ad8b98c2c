package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/scoserv/pkg/adapters/memory"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/observability"
	"github.com/aretw0/scoserv/pkg/persistence/middleware"
	"github.com/aretw0/scoserv/pkg/ports"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCollection struct {
	ports.Collection
}

func (brokenCollection) Find(context.Context, ports.Query) ([]ports.Document, int, error) {
	return nil, 0, errors.New("connection reset")
}

func TestInstrumentation_Contract(t *testing.T) {
	ports.RunCollectionContract(t, func(t *testing.T) ports.Collection {
		m := observability.NewMetrics()
		return middleware.Chain(memory.NewCollection(), middleware.NewInstrumentation("subjects", m.StoreLatency, nil))
	})
}

func TestInstrumentation_RecordsLatency(t *testing.T) {
	m := observability.NewMetrics()
	c := middleware.Chain(memory.NewCollection(), middleware.NewInstrumentation("subjects", m.StoreLatency, nil))
	ctx := context.Background()

	require.NoError(t, c.Insert(ctx, ports.Document{
		ID: "s1", Kind: string(domain.KindSubject), CreatedAt: time.Now(), Active: true,
		Properties: map[string]any{"name": "one"},
	}))
	_, err := c.Get(ctx, "s1", false)
	require.NoError(t, err)
	_, err = c.Get(ctx, "missing", false)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, 3, testutil.CollectAndCount(m.StoreLatency))
}

func TestInstrumentation_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	c := middleware.NewInstrumentation("images", nil, logger)(brokenCollection{memory.NewCollection()})

	_, _, err := c.Find(context.Background(), ports.Query{Limit: -1})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "operation=find")
	assert.Contains(t, buf.String(), `err="connection reset"`)
}
