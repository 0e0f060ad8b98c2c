package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/scoserv/pkg/attribute"
	"github.com/aretw0/scoserv/pkg/ports"
)

// ErrUnknownModel is returned when a model name is not registered.
var ErrUnknownModel = errors.New("unknown model")

// Entry is a registered model: its parameter schema and the computation.
type Entry struct {
	Name   string
	Schema attribute.Schema
	Model  ports.Model
}

// Registry manages the available models.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Entry
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]Entry),
	}
}

// Register adds a model to the registry.
// If a model with the same name exists, it is overwritten.
func (r *Registry) Register(name string, schema attribute.Schema, model ports.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if schema == nil {
		schema = attribute.Schema{}
	}
	r.models[name] = Entry{Name: name, Schema: schema, Model: model}
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (Entry, error) {
	r.mu.RLock()
	entry, ok := r.models[name]
	r.mu.RUnlock()

	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return entry, nil
}

// Names lists registered model names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Arguments builds the argument set of a run of the named model from the
// caller's attributes and the model's schema defaults.
func (r *Registry) Arguments(name string, attrs []attribute.Attribute) (map[string]attribute.Attribute, error) {
	entry, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return entry.Schema.Build(attrs)
}
