package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aretw0/scoserv/pkg/archive"
	"github.com/aretw0/scoserv/pkg/attribute"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

type imageGroupFields struct {
	Images  []domain.GroupImage `mapstructure:"images"`
	Options any                 `mapstructure:"options"`
}

// ImageGroupArchive is the filename of the image archive kept with every group.
const ImageGroupArchive = "images.tar.gz"

// ImageGroupStore manages ordered image collections and their stimulus
// options. Each group keeps a tar.gz of its images, served as its download.
type ImageGroupStore struct {
	*DataStore[*domain.ImageGroup]
	schema attribute.Schema
}

// NewImageGroupStore creates the image group store rooted at base. Options
// are validated against attribute.ImageGroupOptions.
func NewImageGroupStore(coll ports.Collection, base string, opts ...Option) *ImageGroupStore {
	opts = append([]Option{
		WithImmutable(domain.PropertyFilename, domain.PropertyMimeType),
		WithMandatory(domain.PropertyFilename, domain.PropertyMimeType),
	}, opts...)
	s := &ImageGroupStore{schema: attribute.ImageGroupOptions()}
	s.DataStore = NewDataStore(coll, base, Flat, DataCodec[*domain.ImageGroup]{
		Kind:   domain.KindImageGroup,
		Encode: encodeImageGroup,
		Decode: s.decode,
	}, opts...)
	return s
}

// Schema returns the option schema of the store.
func (s *ImageGroupStore) Schema() attribute.Schema { return s.schema }

func encodeImageGroup(g *domain.ImageGroup) (map[string]any, error) {
	images := make([]any, 0, len(g.Images))
	for _, img := range g.Images {
		images = append(images, map[string]any{
			"identifier": img.ImageID,
			"folder":     img.Folder,
			"name":       img.Name,
		})
	}
	return map[string]any{
		"images":  images,
		"options": attribute.Encode(g.Options),
	}, nil
}

func (s *ImageGroupStore) decode(rec domain.Record, dir string, fields map[string]any) (*domain.ImageGroup, error) {
	var f imageGroupFields
	if err := decodeFields(fields, &f); err != nil {
		return nil, err
	}
	options, err := attribute.Decode(f.Options)
	if err != nil {
		return nil, err
	}
	return &domain.ImageGroup{Record: rec, Directory: dir, Images: f.Images, Options: options}, nil
}

// Create stores a new group. files[i] is the image file of images[i]; the
// files are archived under their folder+name path in declaration order.
// Folders are normalized before the duplicate check; options are built from
// the schema defaults plus the given attributes. Image references are not
// resolved here.
func (s *ImageGroupStore) Create(ctx context.Context, name string, images []domain.GroupImage, files []string, options []attribute.Attribute) (*domain.ImageGroup, error) {
	if len(files) != len(images) {
		return nil, fmt.Errorf("%w: %d images but %d files", domain.ErrInvalidProperty, len(images), len(files))
	}
	normalized := make([]domain.GroupImage, len(images))
	members := make([]archive.Member, len(images))
	for i, img := range images {
		img.Folder = domain.NormalizeFolder(img.Folder)
		normalized[i] = img
		members[i] = archive.Member{Name: img.Path(), Path: files[i]}
	}
	if err := domain.ValidateImages(normalized); err != nil {
		return nil, err
	}
	set, err := s.schema.Build(options)
	if err != nil {
		return nil, err
	}

	props := map[string]any{
		domain.PropertyName:     name,
		domain.PropertyFilename: ImageGroupArchive,
		domain.PropertyMimeType: archive.MimeType,
	}
	return s.DataStore.Create(ctx, props, func(dir string) error {
		return writeFilesArchive(ctx, members, filepath.Join(dir, ImageGroupArchive))
	}, func(rec domain.Record, dir string) *domain.ImageGroup {
		return &domain.ImageGroup{Record: rec, Directory: dir, Images: normalized, Options: set}
	})
}

// UpdateOptions replaces the options of a group with the schema defaults plus
// the given attributes.
func (s *ImageGroupStore) UpdateOptions(ctx context.Context, id string, options []attribute.Attribute) (*domain.ImageGroup, error) {
	set, err := s.schema.Build(options)
	if err != nil {
		return nil, err
	}
	group, err := s.Get(ctx, id, false)
	if err != nil {
		return nil, err
	}
	group.Options = set
	ok, err := s.Replace(ctx, group)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", domain.KindImageGroup.Label(), id, domain.ErrNotFound)
	}
	return group, nil
}
