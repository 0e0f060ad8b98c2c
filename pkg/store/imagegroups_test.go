package store_test

import (
	"context"
	"testing"

	"github.com/aretw0/scoserv/internal/testutils"
	"github.com/aretw0/scoserv/pkg/adapters/memory"
	"github.com/aretw0/scoserv/pkg/attribute"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageGroupStore_Create(t *testing.T) {
	s := store.NewImageGroupStore(memory.NewCollection(), t.TempDir())
	ctx := context.Background()

	images := []domain.GroupImage{
		{ImageID: "i1", Folder: "", Name: "a.png"},
		{ImageID: "i2", Folder: "sub", Name: "b.png"},
	}
	group, err := s.Create(ctx, "group", images, testutils.ImageFiles(t, "a.png", "b.png"), []attribute.Attribute{
		{Name: "stimulus_pixels_per_degree", Value: 11.3},
		{Name: "stimulus_gamma", Value: []any{[]any{1.0, 2.0}, []any{3.0, 4.0}}},
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, group.ID, false)
	require.NoError(t, err)
	require.Len(t, got.Images, 2)
	assert.Equal(t, "/a.png", got.Images[0].Path())
	assert.Equal(t, "/sub/b.png", got.Images[1].Path())
	assert.Equal(t, "i2", got.Images[1].ImageID)

	assert.Equal(t, 0.5, got.Options["stimulus_edge_value"].Value, "defaults are applied")
	assert.Equal(t, 11.3, got.Options["stimulus_pixels_per_degree"].Value)
	assert.NoError(t, s.Schema().Validate(got.Options))
}

func TestImageGroupStore_CreateRejects(t *testing.T) {
	s := store.NewImageGroupStore(memory.NewCollection(), t.TempDir())
	ctx := context.Background()

	_, err := s.Create(ctx, "dup", []domain.GroupImage{
		{ImageID: "i1", Folder: "/x", Name: "a.png"},
		{ImageID: "i2", Folder: "x/", Name: "a.png"},
	}, testutils.ImageFiles(t, "a.png", "b.png"), nil)
	assert.ErrorIs(t, err, domain.ErrDuplicateImage)

	_, err = s.Create(ctx, "unpaired", []domain.GroupImage{{ImageID: "i1", Folder: "/", Name: "a.png"}}, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidProperty)

	_, err = s.Create(ctx, "unknown", nil, nil, []attribute.Attribute{{Name: "brightness", Value: 1.0}})
	assert.ErrorIs(t, err, domain.ErrUnknownAttribute)

	_, err = s.Create(ctx, "invalid", nil, nil, []attribute.Attribute{{Name: "stimulus_edge_value", Value: "high"}})
	assert.ErrorIs(t, err, domain.ErrInvalidAttributeValue)
}

func TestImageGroupStore_UpdateOptions(t *testing.T) {
	s := store.NewImageGroupStore(memory.NewCollection(), t.TempDir())
	ctx := context.Background()

	group, err := s.Create(ctx, "group", nil, nil, []attribute.Attribute{{Name: "stimulus_edge_value", Value: 0.9}})
	require.NoError(t, err)

	updated, err := s.UpdateOptions(ctx, group.ID, []attribute.Attribute{{Name: "normalized_stimulus_aperture", Value: 2.0}})
	require.NoError(t, err)
	assert.Equal(t, 0.5, updated.Options["stimulus_edge_value"].Value, "options are rebuilt from defaults")

	got, err := s.Get(ctx, group.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Options["normalized_stimulus_aperture"].Value)

	_, err = s.UpdateOptions(ctx, "missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
