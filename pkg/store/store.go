package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
	"github.com/google/uuid"
)

// Codec converts between an entity and the kind-specific fields of its document.
type Codec[T domain.Entity] struct {
	Kind   domain.Kind
	Encode func(T) (map[string]any, error)
	Decode func(rec domain.Record, fields map[string]any) (T, error)
}

type options struct {
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	immutable []string
	mandatory []string
}

// Option configures a store.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the time source for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithIDGenerator overrides identifier generation.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) {
		o.newID = newID
	}
}

// WithImmutable adds properties that cannot be set once the record exists.
func WithImmutable(keys ...string) Option {
	return func(o *options) {
		o.immutable = append(o.immutable, keys...)
	}
}

// WithMandatory adds properties that cannot be removed.
func WithMandatory(keys ...string) Option {
	return func(o *options) {
		o.mandatory = append(o.mandatory, keys...)
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ObjectStore manages the records of one kind.
type ObjectStore[T domain.Entity] struct {
	coll      ports.Collection
	codec     Codec[T]
	immutable map[string]struct{}
	mandatory map[string]struct{}
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewObjectStore creates a store over coll. The name property is always mandatory.
func NewObjectStore[T domain.Entity](coll ports.Collection, codec Codec[T], opts ...Option) *ObjectStore[T] {
	o := newOptions(opts)
	s := &ObjectStore[T]{
		coll:      coll,
		codec:     codec,
		immutable: make(map[string]struct{}),
		mandatory: map[string]struct{}{domain.PropertyName: {}},
		logger:    o.logger.With("kind", string(codec.Kind)),
		now:       o.now,
		newID:     o.newID,
	}
	for _, k := range o.immutable {
		s.immutable[k] = struct{}{}
	}
	for _, k := range o.mandatory {
		s.mandatory[k] = struct{}{}
	}
	return s
}

// Kind returns the record kind served by the store.
func (s *ObjectStore[T]) Kind() domain.Kind { return s.codec.Kind }

// IsImmutable reports whether key is protected from updates.
func (s *ObjectStore[T]) IsImmutable(key string) bool {
	_, ok := s.immutable[key]
	return ok
}

// IsMandatory reports whether key is protected from removal.
func (s *ObjectStore[T]) IsMandatory(key string) bool {
	_, ok := s.mandatory[key]
	return ok
}

// NewRecord returns an active record with a fresh identifier and timestamp.
func (s *ObjectStore[T]) NewRecord(properties map[string]any) domain.Record {
	props := make(map[string]any, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	return domain.Record{
		ID:         s.newID(),
		Kind:       s.codec.Kind,
		CreatedAt:  s.now().UTC().Truncate(time.Microsecond),
		Properties: props,
		Active:     true,
	}
}

func (s *ObjectStore[T]) encode(entity T) (ports.Document, error) {
	rec := entity.Base()
	if err := rec.Validate(); err != nil {
		return ports.Document{}, err
	}
	for key := range s.mandatory {
		if _, ok := rec.Properties[key]; !ok {
			return ports.Document{}, fmt.Errorf("%w: %s is mandatory", domain.ErrInvalidProperty, key)
		}
	}
	fields, err := s.codec.Encode(entity)
	if err != nil {
		return ports.Document{}, fmt.Errorf("failed to encode %s %s: %w", s.codec.Kind, rec.ID, err)
	}
	return ports.Document{
		ID:         rec.ID,
		Kind:       string(rec.Kind),
		CreatedAt:  rec.CreatedAt,
		Active:     rec.Active,
		Properties: rec.Properties,
		Fields:     fields,
	}, nil
}

func (s *ObjectStore[T]) decode(doc ports.Document) (T, error) {
	rec := domain.Record{
		ID:         doc.ID,
		Kind:       domain.Kind(doc.Kind),
		CreatedAt:  doc.CreatedAt,
		Properties: doc.Properties,
		Active:     doc.Active,
	}
	if rec.Properties == nil {
		rec.Properties = map[string]any{}
	}
	entity, err := s.codec.Decode(rec, doc.Fields)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to decode %s %s: %w", s.codec.Kind, doc.ID, err)
	}
	return entity, nil
}

// Insert persists a new record. Callers build the entity around NewRecord.
func (s *ObjectStore[T]) Insert(ctx context.Context, entity T) error {
	doc, err := s.encode(entity)
	if err != nil {
		return err
	}
	if err := s.coll.Insert(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert %s %s: %w", s.codec.Kind, doc.ID, err)
	}
	s.logger.Debug("record created", "id", doc.ID)
	return nil
}

// Get returns the record with the given id, or domain.ErrNotFound.
// Inactive records are only returned when includeInactive is set.
func (s *ObjectStore[T]) Get(ctx context.Context, id string, includeInactive bool) (T, error) {
	var zero T
	doc, err := s.coll.Get(ctx, id, includeInactive)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return zero, fmt.Errorf("%s %s: %w", s.codec.Kind.Label(), id, domain.ErrNotFound)
		}
		return zero, err
	}
	return s.decode(doc)
}

// Exists reports whether an active record with the given id exists.
func (s *ObjectStore[T]) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.coll.Get(ctx, id, false)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// List returns a page of active records, newest first, and the total number
// of active records matching the filter.
func (s *ObjectStore[T]) List(ctx context.Context, opts domain.ListOptions) (domain.Page[T], error) {
	docs, total, err := s.coll.Find(ctx, ports.Query{
		Filter: opts.Filter,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	})
	if err != nil {
		return domain.Page[T]{}, fmt.Errorf("failed to list %s: %w", s.codec.Kind, err)
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		entity, err := s.decode(doc)
		if err != nil {
			return domain.Page[T]{}, err
		}
		items = append(items, entity)
	}
	return domain.Page[T]{Items: items, Total: total, Offset: opts.Offset, Limit: opts.Limit}, nil
}

// Delete soft-deletes an active record and returns it with Active unset.
// It returns domain.ErrNotFound when no active record has the id.
func (s *ObjectStore[T]) Delete(ctx context.Context, id string) (T, error) {
	var zero T
	entity, err := s.Get(ctx, id, false)
	if err != nil {
		return zero, err
	}
	ok, err := s.coll.Deactivate(ctx, id)
	if err != nil {
		return zero, fmt.Errorf("failed to delete %s %s: %w", s.codec.Kind, id, err)
	}
	if !ok {
		return zero, fmt.Errorf("%s %s: %w", s.codec.Kind.Label(), id, domain.ErrNotFound)
	}
	entity.Base().Active = false
	s.logger.Debug("record deleted", "id", id)
	return entity, nil
}

// Replace overwrites an active record. It reports false, without writing,
// when no active record with the same id exists, so a deleted record cannot
// be resurrected.
func (s *ObjectStore[T]) Replace(ctx context.Context, entity T) (bool, error) {
	doc, err := s.encode(entity)
	if err != nil {
		return false, err
	}
	doc.Active = true
	ok, err := s.coll.Replace(ctx, doc)
	if err != nil {
		return false, fmt.Errorf("failed to replace %s %s: %w", s.codec.Kind, doc.ID, err)
	}
	return ok, nil
}

// UpsertProperty sets (value != nil) or removes (value == nil) a property.
// Unless ignoreConstraints is set, setting an immutable property or removing
// a mandatory one returns domain.UpsertIllegal. The name property must stay a
// non-empty string regardless.
func (s *ObjectStore[T]) UpsertProperty(ctx context.Context, id, key string, value any, ignoreConstraints bool) (domain.UpsertOutcome, error) {
	entity, err := s.Get(ctx, id, false)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.UpsertNotFound, nil
	}
	if err != nil {
		return domain.UpsertNotFound, err
	}

	if !ignoreConstraints && value != nil && s.IsImmutable(key) {
		return domain.UpsertIllegal, nil
	}
	if value == nil && !ignoreConstraints && s.IsMandatory(key) {
		return domain.UpsertIllegal, nil
	}
	if key == domain.PropertyName {
		if name, ok := value.(string); !ok || name == "" {
			return domain.UpsertIllegal, nil
		}
	}

	rec := entity.Base()
	var outcome domain.UpsertOutcome
	if value == nil {
		delete(rec.Properties, key)
		outcome = domain.UpsertDeleted
	} else {
		if _, exists := rec.Properties[key]; exists {
			outcome = domain.UpsertUpdated
		} else {
			outcome = domain.UpsertCreated
		}
		rec.Properties[key] = value
	}

	ok, err := s.Replace(ctx, entity)
	if err != nil {
		return domain.UpsertNotFound, err
	}
	if !ok {
		// Deleted between read and write.
		return domain.UpsertNotFound, nil
	}
	return outcome, nil
}
