package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/scoserv/internal/fsutil"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

// DirPolicy maps a record identifier to its storage directory below a base.
type DirPolicy func(base, id string) string

// Flat stores every record directly below the base: base/id.
func Flat(base, id string) string {
	return filepath.Join(base, id)
}

// Sharded spreads records over prefix directories: base/id[:2]/id.
func Sharded(base, id string) string {
	if len(id) < 2 {
		return filepath.Join(base, id)
	}
	return filepath.Join(base, id[:2], id)
}

// DataCodec is the Codec of a kind that owns a storage directory. The
// directory is handed to Decode and never stored in the document.
type DataCodec[T domain.DataObject] struct {
	Kind   domain.Kind
	Encode func(T) (map[string]any, error)
	Decode func(rec domain.Record, dir string, fields map[string]any) (T, error)
}

// DataStore is an ObjectStore whose records each own a directory of files.
type DataStore[T domain.DataObject] struct {
	*ObjectStore[T]
	base   string
	policy DirPolicy
}

// NewDataStore creates a data store rooted at base.
func NewDataStore[T domain.DataObject](coll ports.Collection, base string, policy DirPolicy, codec DataCodec[T], opts ...Option) *DataStore[T] {
	if policy == nil {
		policy = Flat
	}
	s := &DataStore[T]{base: base, policy: policy}
	s.ObjectStore = NewObjectStore(coll, Codec[T]{
		Kind:   codec.Kind,
		Encode: codec.Encode,
		Decode: func(rec domain.Record, fields map[string]any) (T, error) {
			return codec.Decode(rec, s.Dir(rec.ID), fields)
		},
	}, opts...)
	return s
}

// Base returns the storage root of the store.
func (s *DataStore[T]) Base() string { return s.base }

// Dir returns the storage directory of the record with the given id.
func (s *DataStore[T]) Dir(id string) string {
	return s.policy(s.base, id)
}

// Create allocates a record, lets populate fill its directory, syncs the
// directory and only then inserts the record. If populate or the insert
// fails the directory is removed.
func (s *DataStore[T]) Create(
	ctx context.Context,
	properties map[string]any,
	populate func(dir string) error,
	build func(rec domain.Record, dir string) T,
) (T, error) {
	var zero T
	rec := s.NewRecord(properties)
	dir := s.Dir(rec.ID)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zero, fmt.Errorf("failed to create directory for %s %s: %w", s.Kind(), rec.ID, err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("failed to remove directory", "id", rec.ID, "err", err)
		}
	}

	if populate != nil {
		if err := populate(dir); err != nil {
			cleanup()
			return zero, err
		}
	}
	if err := fsutil.SyncDir(dir); err != nil {
		cleanup()
		return zero, err
	}
	if err := fsutil.SyncDir(filepath.Dir(dir)); err != nil {
		cleanup()
		return zero, err
	}

	entity := build(rec, dir)
	if err := s.Insert(ctx, entity); err != nil {
		cleanup()
		return zero, err
	}
	return entity, nil
}

// Download describes the file served for the record with the given id.
func (s *DataStore[T]) Download(ctx context.Context, id string) (domain.Download, error) {
	entity, err := s.Get(ctx, id, false)
	if err != nil {
		return domain.Download{}, err
	}
	rec := entity.Base()
	return domain.Download{
		Directory: entity.Dir(),
		Filename:  rec.StringProperty(domain.PropertyFilename),
		MimeType:  rec.StringProperty(domain.PropertyMimeType),
	}, nil
}
