package testutils

import (
	"context"
	"testing"

	"github.com/aretw0/scoserv/pkg/adapters/memory"
	"github.com/aretw0/scoserv/pkg/datastore"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
	"github.com/stretchr/testify/require"
)

// NewStores builds every store over fresh in-memory collections rooted in a
// temp dir.
func NewStores(t *testing.T) datastore.Stores {
	t.Helper()

	stores, err := datastore.NewStores(func(string) (ports.Collection, error) {
		return memory.NewCollection(), nil
	}, t.TempDir())
	require.NoError(t, err, "Failed to build stores")
	return stores
}

// World is a populated data layer: one subject, two images (/a.png and
// /b.png) in one group, and an experiment over them.
type World struct {
	Data       *datastore.DataStore
	Subject    *domain.Subject
	Images     []*domain.Image
	Group      *domain.ImageGroup
	Experiment *domain.Experiment
}

// NewWorld populates a data layer built with opts.
func NewWorld(t *testing.T, opts ...datastore.Option) *World {
	t.Helper()
	ctx := context.Background()

	ds, err := datastore.New(NewStores(t), opts...)
	require.NoError(t, err, "Failed to create datastore")

	subject, err := ds.Subjects().Create(ctx, "Subject 1", SubjectTree(t))
	require.NoError(t, err, "Failed to create subject")

	w := &World{Data: ds, Subject: subject}
	var entries []domain.GroupImage
	for _, path := range ImageFiles(t, "a.png", "b.png") {
		img, err := ds.Images().Create(ctx, path)
		require.NoError(t, err, "Failed to create image")
		w.Images = append(w.Images, img)
		entries = append(entries, domain.GroupImage{ImageID: img.ID, Folder: "/", Name: img.Name()})
	}

	w.Group, err = ds.CreateImageGroup(ctx, "Group 1", entries, nil)
	require.NoError(t, err, "Failed to create image group")

	w.Experiment, err = ds.CreateExperiment(ctx, "Experiment 1", subject.ID, w.Group.ID)
	require.NoError(t, err, "Failed to create experiment")
	return w
}
