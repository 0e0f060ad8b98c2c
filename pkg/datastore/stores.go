package datastore

import (
	"fmt"
	"path/filepath"

	"github.com/aretw0/scoserv/pkg/ports"
	"github.com/aretw0/scoserv/pkg/store"
)

// Collection and directory names, one per record kind.
const (
	CollectionSubjects       = "subjects"
	CollectionImages         = "images"
	CollectionImageGroups    = "imagegroups"
	CollectionExperiments    = "experiments"
	CollectionFunctionalData = "funcdata"
	CollectionModelRuns      = "modelruns"
)

// Stores bundles one store per record kind.
type Stores struct {
	Subjects       *store.SubjectStore
	Images         *store.ImageStore
	ImageGroups    *store.ImageGroupStore
	Experiments    *store.ExperimentStore
	FunctionalData *store.FunctionalDataStore
	ModelRuns      *store.ModelRunStore
}

func (s Stores) validate() error {
	if s.Subjects == nil || s.Images == nil || s.ImageGroups == nil ||
		s.Experiments == nil || s.FunctionalData == nil || s.ModelRuns == nil {
		return fmt.Errorf("datastore: every store must be set")
	}
	return nil
}

// CollectionFactory opens the backend collection with the given name.
type CollectionFactory func(name string) (ports.Collection, error)

// NewStores opens one collection per kind and roots the data stores below
// root, one directory per kind.
func NewStores(open CollectionFactory, root string, opts ...store.Option) (Stores, error) {
	names := []string{
		CollectionSubjects,
		CollectionImages,
		CollectionImageGroups,
		CollectionExperiments,
		CollectionFunctionalData,
		CollectionModelRuns,
	}
	colls := make(map[string]ports.Collection, len(names))
	for _, name := range names {
		c, err := open(name)
		if err != nil {
			return Stores{}, fmt.Errorf("failed to open collection %s: %w", name, err)
		}
		colls[name] = c
	}

	dir := func(name string) string { return filepath.Join(root, name) }
	return Stores{
		Subjects:       store.NewSubjectStore(colls[CollectionSubjects], dir(CollectionSubjects), opts...),
		Images:         store.NewImageStore(colls[CollectionImages], dir(CollectionImages), opts...),
		ImageGroups:    store.NewImageGroupStore(colls[CollectionImageGroups], dir(CollectionImageGroups), opts...),
		Experiments:    store.NewExperimentStore(colls[CollectionExperiments], opts...),
		FunctionalData: store.NewFunctionalDataStore(colls[CollectionFunctionalData], dir(CollectionFunctionalData), opts...),
		ModelRuns:      store.NewModelRunStore(colls[CollectionModelRuns], dir(CollectionModelRuns), opts...),
	}, nil
}
