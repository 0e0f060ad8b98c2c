package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "scoserv:"

// Collection implements ports.Collection using Redis.
//
// Each document is stored as JSON under <prefix><name>:doc:<id>. Active
// documents are indexed in the sorted set <prefix><name>:active, scored by
// negated creation time so that ascending rank is newest first and equal
// timestamps fall back to member (id) order.
type Collection struct {
	client *backend.Client
	name   string
	prefix string
	logger *slog.Logger
}

// Option configures a Collection.
type Option func(*Collection)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(c *Collection) {
		c.prefix = prefix
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCollection creates a collection named name on an existing client.
func NewCollection(client *backend.Client, name string, opts ...Option) *Collection {
	c := &Collection{
		client: client,
		name:   name,
		prefix: DefaultPrefix,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collection) key(id string) string {
	return c.prefix + c.name + ":doc:" + id
}

func (c *Collection) indexKey() string {
	return c.prefix + c.name + ":active"
}

func score(doc ports.Document) float64 {
	return -float64(doc.CreatedAt.UnixMicro())
}

// Insert persists the document and indexes it when active.
func (c *Collection) Insert(ctx context.Context, doc ports.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.key(doc.ID), data, 0)
	if doc.Active {
		pipe.ZAdd(ctx, c.indexKey(), backend.Z{Score: score(doc), Member: doc.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert into redis: %w", err)
	}
	return nil
}

// Get retrieves a document.
func (c *Collection) Get(ctx context.Context, id string, includeInactive bool) (ports.Document, error) {
	doc, err := c.load(ctx, c.client, id)
	if err != nil {
		return ports.Document{}, err
	}
	if !doc.Active && !includeInactive {
		return ports.Document{}, domain.ErrNotFound
	}
	return doc, nil
}

// getter is satisfied by both *backend.Client and *backend.Tx.
type getter interface {
	Get(ctx context.Context, key string) *backend.StringCmd
}

func (c *Collection) load(ctx context.Context, cmd getter, id string) (ports.Document, error) {
	val, err := cmd.Get(ctx, c.key(id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return ports.Document{}, domain.ErrNotFound
		}
		return ports.Document{}, fmt.Errorf("failed to get from redis: %w", err)
	}
	var doc ports.Document
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		return ports.Document{}, fmt.Errorf("failed to unmarshal document %s: %w", id, err)
	}
	return doc, nil
}

// Find returns a page of active documents. Without a filter the page is read
// by rank from the index and the total comes from ZCARD; a filter requires a
// scan of the active documents.
func (c *Collection) Find(ctx context.Context, q ports.Query) ([]ports.Document, int, error) {
	if len(q.Filter) > 0 {
		return c.scan(ctx, q)
	}

	total, err := c.client.ZCard(ctx, c.indexKey()).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}
	start, end := ports.Window(int(total), q.Offset, q.Limit)
	if start >= end {
		return []ports.Document{}, int(total), nil
	}

	ids, err := c.client.ZRange(ctx, c.indexKey(), int64(start), int64(end-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to range index: %w", err)
	}
	docs, err := c.fetch(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	return docs, int(total), nil
}

func (c *Collection) scan(ctx context.Context, q ports.Query) ([]ports.Document, int, error) {
	ids, err := c.client.ZRange(ctx, c.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to range index: %w", err)
	}
	docs, err := c.fetch(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	matches := docs[:0]
	for _, doc := range docs {
		if ports.Matches(doc, q.Filter) {
			matches = append(matches, doc)
		}
	}
	start, end := ports.Window(len(matches), q.Offset, q.Limit)
	return matches[start:end], len(matches), nil
}

// fetch loads documents in index order, skipping entries whose document
// vanished between the range and the read.
func (c *Collection) fetch(ctx context.Context, ids []string) ([]ports.Document, error) {
	if len(ids) == 0 {
		return []ports.Document{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	docs := make([]ports.Document, 0, len(vals))
	for i, val := range vals {
		raw, ok := val.(string)
		if !ok {
			c.logger.Warn("index entry without document", "collection", c.name, "id", ids[i])
			continue
		}
		var doc ports.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %s: %w", ids[i], err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Replace overwrites an active document.
func (c *Collection) Replace(ctx context.Context, doc ports.Document) (bool, error) {
	doc.Active = true
	data, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to marshal document: %w", err)
	}

	replaced := false
	err = c.client.Watch(ctx, func(tx *backend.Tx) error {
		current, err := c.load(ctx, tx, doc.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !current.Active {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, c.key(doc.ID), data, 0)
			pipe.ZAdd(ctx, c.indexKey(), backend.Z{Score: score(doc), Member: doc.ID})
			return nil
		})
		replaced = err == nil
		return err
	}, c.key(doc.ID))
	if err != nil {
		return false, fmt.Errorf("failed to replace %s: %w", doc.ID, err)
	}
	return replaced, nil
}

// Deactivate marks an active document inactive and drops it from the index.
func (c *Collection) Deactivate(ctx context.Context, id string) (bool, error) {
	deactivated := false
	err := c.client.Watch(ctx, func(tx *backend.Tx) error {
		current, err := c.load(ctx, tx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !current.Active {
			return nil
		}
		current.Active = false
		data, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, c.key(id), data, 0)
			pipe.ZRem(ctx, c.indexKey(), id)
			return nil
		})
		deactivated = err == nil
		return err
	}, c.key(id))
	if err != nil {
		return false, fmt.Errorf("failed to deactivate %s: %w", id, err)
	}
	return deactivated, nil
}
