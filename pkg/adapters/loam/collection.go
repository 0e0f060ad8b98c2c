package loam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/adapters/fs"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

const ext = ".json"

// DocumentData is the metadata Loam stores for each record.
// It uses "mapstructure" tags so Loam's typed decoding maps the JSON keys.
type DocumentData struct {
	ID         string         `json:"id" mapstructure:"id"`
	Kind       string         `json:"kind" mapstructure:"kind"`
	CreatedAt  int64          `json:"created_at" mapstructure:"created_at"`
	Active     bool           `json:"active" mapstructure:"active"`
	Properties map[string]any `json:"properties" mapstructure:"properties"`
	Fields     map[string]any `json:"fields,omitempty" mapstructure:"fields"`
}

// Collection implements ports.Collection on a Loam repository: one JSON file
// per record under the collection directory. Loam offers no query or count
// primitive, so Find scans the repository.
type Collection struct {
	dir    string
	repo   *loam.TypedRepository[DocumentData]
	logger *slog.Logger
	mu     sync.Mutex
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCollection opens (or initializes) the Loam repository at root/name.
func NewCollection(root, name string, opts ...Option) (*Collection, error) {
	dir, err := filepath.Abs(filepath.Join(root, name))
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create collection dir: %w", err)
	}

	// Strict JSON keeps integers from turning into float64 on the way in;
	// values are normalized through ports.Clone on the way out.
	repo, err := loam.Init(dir,
		loam.WithVersioning(false),
		loam.WithForceTemp(false),
		loam.WithSerializer(ext, fs.NewJSONSerializer(true)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}

	c := &Collection{
		dir:    dir,
		repo:   loam.NewTypedRepository[DocumentData](repo),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

func (c *Collection) exists(id string) bool {
	_, err := os.Stat(filepath.Join(c.dir, id+ext))
	return err == nil
}

func toData(doc ports.Document) DocumentData {
	return DocumentData{
		ID:         doc.ID,
		Kind:       doc.Kind,
		CreatedAt:  doc.CreatedAt.UnixMicro(),
		Active:     doc.Active,
		Properties: doc.Properties,
		Fields:     doc.Fields,
	}
}

func fromData(data DocumentData) (ports.Document, error) {
	return ports.Clone(ports.Document{
		ID:         data.ID,
		Kind:       data.Kind,
		CreatedAt:  time.UnixMicro(data.CreatedAt).UTC(),
		Active:     data.Active,
		Properties: data.Properties,
		Fields:     data.Fields,
	})
}

func (c *Collection) save(ctx context.Context, doc ports.Document) error {
	err := c.repo.Save(ctx, &loam.DocumentModel[DocumentData]{
		ID:      doc.ID + ext,
		Content: fmt.Sprint(doc.Properties[domain.PropertyName]),
		Data:    toData(doc),
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", doc.ID, err)
	}
	return nil
}

func (c *Collection) load(ctx context.Context, id string) (ports.Document, error) {
	if !validID(id) || !c.exists(id) {
		return ports.Document{}, domain.ErrNotFound
	}
	doc, err := c.repo.Get(ctx, id+ext)
	if err != nil {
		return ports.Document{}, fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	if doc.Data.ID == "" {
		doc.Data.ID = id
	}
	return fromData(doc.Data)
}

// Insert persists a new document.
func (c *Collection) Insert(ctx context.Context, doc ports.Document) error {
	if !validID(doc.ID) {
		return fmt.Errorf("invalid document id: %q", doc.ID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(ctx, doc)
}

// Get retrieves a document.
func (c *Collection) Get(ctx context.Context, id string, includeInactive bool) (ports.Document, error) {
	doc, err := c.load(ctx, id)
	if err != nil {
		return ports.Document{}, err
	}
	if !doc.Active && !includeInactive {
		return ports.Document{}, domain.ErrNotFound
	}
	return doc, nil
}

// Find scans the repository for active documents.
func (c *Collection) Find(ctx context.Context, q ports.Query) ([]ports.Document, int, error) {
	items, err := c.repo.List(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("loam list failed: %w", err)
	}

	matches := make([]ports.Document, 0, len(items))
	for _, item := range items {
		if item.Data.ID == "" {
			item.Data.ID = strings.TrimSuffix(filepath.Base(item.ID), ext)
		}
		doc, err := fromData(item.Data)
		if err != nil {
			return nil, 0, err
		}
		if doc.Active && ports.Matches(doc, q.Filter) {
			matches = append(matches, doc)
		}
	}

	ports.SortDocuments(matches)
	start, end := ports.Window(len(matches), q.Offset, q.Limit)
	return matches[start:end], len(matches), nil
}

// Replace overwrites an active document.
func (c *Collection) Replace(ctx context.Context, doc ports.Document) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.load(ctx, doc.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !current.Active {
		return false, nil
	}
	doc.Active = true
	return true, c.save(ctx, doc)
}

// Deactivate marks an active document inactive.
func (c *Collection) Deactivate(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.load(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !current.Active {
		return false, nil
	}
	current.Active = false
	return true, c.save(ctx, current)
}
