package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Operation status labels.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

type instrumented struct {
	next    ports.Collection
	name    string
	latency *prometheus.HistogramVec
	logger  *slog.Logger
}

// NewInstrumentation returns a middleware that records the latency of every
// operation on latency, labelled (collection, operation, status), and logs
// backend failures. Either latency or logger may be nil.
func NewInstrumentation(name string, latency *prometheus.HistogramVec, logger *slog.Logger) Middleware {
	return func(next ports.Collection) ports.Collection {
		return &instrumented{next: next, name: name, latency: latency, logger: logger}
	}
}

func (m *instrumented) observe(ctx context.Context, op string, start time.Time, err error) {
	status := StatusOK
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		status = StatusNotFound
	default:
		status = StatusError
		if m.logger != nil {
			m.logger.ErrorContext(ctx, "Backend operation failed", "collection", m.name, "operation", op, "err", err)
		}
	}
	if m.latency != nil {
		m.latency.WithLabelValues(m.name, op, status).Observe(time.Since(start).Seconds())
	}
}

func (m *instrumented) Insert(ctx context.Context, doc ports.Document) (err error) {
	defer func(start time.Time) { m.observe(ctx, "insert", start, err) }(time.Now())
	return m.next.Insert(ctx, doc)
}

func (m *instrumented) Get(ctx context.Context, id string, includeInactive bool) (doc ports.Document, err error) {
	defer func(start time.Time) { m.observe(ctx, "get", start, err) }(time.Now())
	return m.next.Get(ctx, id, includeInactive)
}

func (m *instrumented) Find(ctx context.Context, q ports.Query) (docs []ports.Document, total int, err error) {
	defer func(start time.Time) { m.observe(ctx, "find", start, err) }(time.Now())
	return m.next.Find(ctx, q)
}

func (m *instrumented) Replace(ctx context.Context, doc ports.Document) (ok bool, err error) {
	defer func(start time.Time) { m.observe(ctx, "replace", start, err) }(time.Now())
	return m.next.Replace(ctx, doc)
}

func (m *instrumented) Deactivate(ctx context.Context, id string) (ok bool, err error) {
	defer func(start time.Time) { m.observe(ctx, "deactivate", start, err) }(time.Now())
	return m.next.Deactivate(ctx, id)
}
