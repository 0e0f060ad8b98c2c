package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aretw0/scoserv/internal/fsutil"
	"github.com/aretw0/scoserv/pkg/archive"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

// SubjectStore manages anatomy scans stored as Freesurfer directory trees.
type SubjectStore struct {
	*DataStore[*domain.Subject]
}

// NewSubjectStore creates the subject store rooted at base.
func NewSubjectStore(coll ports.Collection, base string, opts ...Option) *SubjectStore {
	opts = append([]Option{
		WithImmutable(domain.PropertyFilename, domain.PropertyMimeType, domain.PropertyFileType),
		WithMandatory(domain.PropertyFilename, domain.PropertyMimeType, domain.PropertyFileType),
	}, opts...)
	return &SubjectStore{NewDataStore(coll, base, Flat, DataCodec[*domain.Subject]{
		Kind: domain.KindSubject,
		Encode: func(*domain.Subject) (map[string]any, error) {
			return map[string]any{}, nil
		},
		Decode: func(rec domain.Record, dir string, _ map[string]any) (*domain.Subject, error) {
			return &domain.Subject{Record: rec, Directory: dir}, nil
		},
	}, opts...)}
}

// Create copies a prepared subject directory tree into a new record. The tree
// lands in the record's data directory; a tar.gz of it is kept in the upload
// directory and served as the record's download.
func (s *SubjectStore) Create(ctx context.Context, name, sourceDir string) (*domain.Subject, error) {
	filename := filepath.Base(filepath.Clean(sourceDir)) + ".tar.gz"
	props := map[string]any{
		domain.PropertyName:     name,
		domain.PropertyFilename: filename,
		domain.PropertyMimeType: archive.MimeType,
		domain.PropertyFileType: domain.FileTypeFreesurfer,
	}

	return s.DataStore.Create(ctx, props, func(dir string) error {
		subject := &domain.Subject{Directory: dir}
		if err := fsutil.CopyTree(sourceDir, subject.DataDir()); err != nil {
			return fmt.Errorf("failed to copy subject data: %w", err)
		}
		return writeDirArchive(ctx, subject.DataDir(), filepath.Join(subject.UploadDir(), filename))
	}, func(rec domain.Record, dir string) *domain.Subject {
		return &domain.Subject{Record: rec, Directory: dir}
	})
}

// Download serves the archived upload of the subject.
func (s *SubjectStore) Download(ctx context.Context, id string) (domain.Download, error) {
	subject, err := s.Get(ctx, id, false)
	if err != nil {
		return domain.Download{}, err
	}
	return domain.Download{
		Directory: subject.UploadDir(),
		Filename:  subject.StringProperty(domain.PropertyFilename),
		MimeType:  subject.StringProperty(domain.PropertyMimeType),
	}, nil
}
