package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Document is the persisted form of a record.
// Fields holds the kind-specific part as plain JSON-compatible values.
type Document struct {
	ID         string         `json:"_id"`
	Kind       string         `json:"kind"`
	CreatedAt  time.Time      `json:"created_at"`
	Active     bool           `json:"active"`
	Properties map[string]any `json:"properties"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Query selects active documents.
// Filter keys are dotted paths ("properties.name", "fields.experiment_id");
// a document matches when the value at every path has the given string form.
// A negative Limit means no limit.
type Query struct {
	Filter map[string]string
	Offset int
	Limit  int
}

// Collection is a document-oriented backing database for one record kind.
type Collection interface {
	// Insert persists a new document.
	Insert(ctx context.Context, doc Document) error

	// Get returns the document with the given id.
	// Returns domain.ErrNotFound if it does not exist or is inactive and includeInactive is false.
	Get(ctx context.Context, id string, includeInactive bool) (Document, error)

	// Find returns a page of active documents ordered by creation time
	// (newest first, ties by id) and the total number of matches.
	Find(ctx context.Context, q Query) ([]Document, int, error)

	// Replace overwrites an active document. It reports false without
	// writing when no active document with the id exists.
	Replace(ctx context.Context, doc Document) (bool, error)

	// Deactivate marks an active document inactive. It reports false when
	// no active document with the id exists.
	Deactivate(ctx context.Context, id string) (bool, error)
}

// Lookup resolves a dotted path against a document.
func Lookup(doc Document, path string) (any, bool) {
	head, rest, _ := strings.Cut(path, ".")
	var cur any
	switch head {
	case "_id", "id":
		return doc.ID, rest == ""
	case "kind":
		return doc.Kind, rest == ""
	case "properties":
		cur = doc.Properties
	case "fields":
		cur = doc.Fields
	default:
		return nil, false
	}
	if rest == "" {
		return cur, true
	}
	for _, key := range strings.Split(rest, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Matches reports whether doc satisfies every filter entry.
func Matches(doc Document, filter map[string]string) bool {
	for path, want := range filter {
		got, ok := Lookup(doc, path)
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

// SortDocuments orders documents newest first, ties by id ascending.
func SortDocuments(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}

// Window returns the [offset, offset+limit) slice bounds for n items.
func Window(n, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset >= n {
		return n, n
	}
	end := n
	if limit >= 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}

// Clone returns a deep copy of doc with every value normalized to its JSON
// form, the way a serializing backend would return it.
func Clone(doc Document) (Document, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return Document{}, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
	}
	return out, nil
}
