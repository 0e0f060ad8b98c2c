package domain

import (
	"fmt"
	"time"
)

// Well-known property keys.
const (
	PropertyName     = "name"
	PropertyFilename = "filename"
	PropertyMimeType = "mimetype"
	PropertyFileType = "filetype"
)

// Record is the common part of every stored object.
type Record struct {
	ID         string
	Kind       Kind
	CreatedAt  time.Time
	Properties map[string]any
	Active     bool
}

// Name returns the mandatory name property.
func (r *Record) Name() string {
	name, _ := r.Properties[PropertyName].(string)
	return name
}

// StringProperty returns a property as a string, or "" when absent.
func (r *Record) StringProperty(key string) string {
	s, _ := r.Properties[key].(string)
	return s
}

// Validate checks the record invariants.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidProperty)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidProperty, r.Kind)
	}
	if r.Name() == "" {
		return fmt.Errorf("%w: %s is mandatory", ErrInvalidProperty, PropertyName)
	}
	return nil
}

// Clone returns a copy with its own property map.
func (r Record) Clone() Record {
	props := make(map[string]any, len(r.Properties))
	for k, v := range r.Properties {
		props[k] = v
	}
	r.Properties = props
	return r
}

// Download describes the file served for a data object.
type Download struct {
	Directory string
	Filename  string
	MimeType  string
}
