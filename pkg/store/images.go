package store

import (
	"context"
	"path/filepath"

	"github.com/aretw0/scoserv/internal/fsutil"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

// ImageStore manages single stimulus image files. Image directories are
// sharded by identifier prefix since groups reference many of them.
type ImageStore struct {
	*DataStore[*domain.Image]
}

// NewImageStore creates the image store rooted at base.
func NewImageStore(coll ports.Collection, base string, opts ...Option) *ImageStore {
	opts = append([]Option{
		WithImmutable(domain.PropertyFilename, domain.PropertyMimeType),
		WithMandatory(domain.PropertyFilename, domain.PropertyMimeType),
	}, opts...)
	return &ImageStore{NewDataStore(coll, base, Sharded, DataCodec[*domain.Image]{
		Kind: domain.KindImage,
		Encode: func(*domain.Image) (map[string]any, error) {
			return map[string]any{}, nil
		},
		Decode: func(rec domain.Record, dir string, _ map[string]any) (*domain.Image, error) {
			return &domain.Image{Record: rec, Directory: dir}, nil
		},
	}, opts...)}
}

// Create copies the image file at path into a new record named after the
// file. Only JPEG, PNG and GIF files are accepted.
func (s *ImageStore) Create(ctx context.Context, path string) (*domain.Image, error) {
	filename := filepath.Base(path)
	mimeType, err := detectType(filename, imageTypes)
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
	}, func(rec domain.Record, dir string) *domain.Image {
		return &domain.Image{Record: rec, Directory: dir}
	})
}
