package store

import (
	"context"
	"path/filepath"

	"github.com/aretw0/scoserv/internal/fsutil"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

// FunctionalDataStore manages functional MRI archives and model results.
type FunctionalDataStore struct {
	*DataStore[*domain.FunctionalData]
}

// NewFunctionalDataStore creates the functional data store rooted at base.
func NewFunctionalDataStore(coll ports.Collection, base string, opts ...Option) *FunctionalDataStore {
	opts = append([]Option{
		WithImmutable(domain.PropertyFilename, domain.PropertyMimeType),
		WithMandatory(domain.PropertyFilename, domain.PropertyMimeType),
	}, opts...)
	return &FunctionalDataStore{NewDataStore(coll, base, Flat, DataCodec[*domain.FunctionalData]{
		Kind: domain.KindFunctionalData,
		Encode: func(*domain.FunctionalData) (map[string]any, error) {
			return map[string]any{}, nil
		},
		Decode: func(rec domain.Record, dir string, _ map[string]any) (*domain.FunctionalData, error) {
			return &domain.FunctionalData{Record: rec, Directory: dir}, nil
		},
	}, opts...)}
}

// Create copies the archive at path into a new record. Accepted archives are
// .tar, .tar.gz and .tgz.
func (s *FunctionalDataStore) Create(ctx context.Context, path string) (*domain.FunctionalData, error) {
	return s.CreateNamed(ctx, filepath.Base(path), path)
}

// CreateNamed is Create with the stored filename given explicitly, for
// archives written under a temporary name.
func (s *FunctionalDataStore) CreateNamed(ctx context.Context, filename, path string) (*domain.FunctionalData, error) {
	mimeType, err := detectType(filename, archiveTypes)
	if err != nil {
		return nil, err
	}
	props := map[string]any{
		domain.PropertyName:     filename,
		domain.PropertyFilename: filename,
		domain.PropertyMimeType: mimeType,
	}
	return s.DataStore.Create(ctx, props, func(dir string) error {
		return fsutil.CopyFile(path, filepath.Join(dir, filename))
	}, func(rec domain.Record, dir string) *domain.FunctionalData {
		return &domain.FunctionalData{Record: rec, Directory: dir}
	})
}
