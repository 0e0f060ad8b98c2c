package memory

import (
	"context"
	"sync"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

// Collection implements ports.Collection in memory.
// Safe for concurrent use.
type Collection struct {
	data map[string]ports.Document
	mu   sync.RWMutex
}

// NewCollection creates a new in-memory collection.
func NewCollection() *Collection {
	return &Collection{
		data: make(map[string]ports.Document),
	}
}

// Insert persists a copy of the document.
func (c *Collection) Insert(ctx context.Context, doc ports.Document) error {
	// Deep copy to ensure isolation, similar to serialization
	copied, err := ports.Clone(doc)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[doc.ID] = copied
	return nil
}

// Get retrieves a copy of the document.
func (c *Collection) Get(ctx context.Context, id string, includeInactive bool) (ports.Document, error) {
	c.mu.RLock()
	doc, ok := c.data[id]
	c.mu.RUnlock()

	if !ok || (!doc.Active && !includeInactive) {
		return ports.Document{}, domain.ErrNotFound
	}
	return ports.Clone(doc)
}

// Find scans the active documents. Memory has no index to count against, so
// the total is the size of the filtered scan.
func (c *Collection) Find(ctx context.Context, q ports.Query) ([]ports.Document, int, error) {
	c.mu.RLock()
	matches := make([]ports.Document, 0, len(c.data))
	for _, doc := range c.data {
		if doc.Active && ports.Matches(doc, q.Filter) {
			matches = append(matches, doc)
		}
	}
	c.mu.RUnlock()

	ports.SortDocuments(matches)
	start, end := ports.Window(len(matches), q.Offset, q.Limit)

	page := make([]ports.Document, 0, end-start)
	for _, doc := range matches[start:end] {
		copied, err := ports.Clone(doc)
		if err != nil {
			return nil, 0, err
		}
		page = append(page, copied)
	}
	return page, len(matches), nil
}

// Replace overwrites an active document.
func (c *Collection) Replace(ctx context.Context, doc ports.Document) (bool, error) {
	copied, err := ports.Clone(doc)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.data[doc.ID]
	if !ok || !current.Active {
		return false, nil
	}
	copied.Active = true
	c.data[doc.ID] = copied
	return true, nil
}

// Deactivate marks an active document inactive.
func (c *Collection) Deactivate(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, ok := c.data[id]
	if !ok || !current.Active {
		return false, nil
	}
	current.Active = false
	c.data[id] = current
	return true, nil
}

// Len returns the number of stored documents, active or not.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
