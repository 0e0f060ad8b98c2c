package datastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/scoserv/pkg/attribute"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
	"github.com/aretw0/scoserv/pkg/registry"
	"github.com/aretw0/scoserv/pkg/store"
)

// DataStore is the composition layer over the per-kind stores.
type DataStore struct {
	stores     Stores
	registry   *registry.Registry
	dispatcher ports.Dispatcher
	transport  string
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the DataStore.
type Option func(*DataStore)

// WithRegistry sets the model registry used to validate run arguments.
func WithRegistry(r *registry.Registry) Option {
	return func(d *DataStore) {
		if r != nil {
			d.registry = r
		}
	}
}

// WithDispatcher sets the dispatcher new runs are handed to. transport names
// it in events and metrics.
func WithDispatcher(dispatcher ports.Dispatcher, transport string) Option {
	return func(d *DataStore) {
		d.dispatcher = dispatcher
		d.transport = transport
	}
}

// WithHooks sets the run lifecycle hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(d *DataStore) {
		d.hooks = hooks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *DataStore) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates the composition layer.
func New(stores Stores, opts ...Option) (*DataStore, error) {
	if err := stores.validate(); err != nil {
		return nil, err
	}
	d := &DataStore{
		stores:   stores,
		registry: registry.NewRegistry(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Subjects returns the subject store.
func (d *DataStore) Subjects() *store.SubjectStore { return d.stores.Subjects }

// Images returns the image store.
func (d *DataStore) Images() *store.ImageStore { return d.stores.Images }

// ImageGroups returns the image group store.
func (d *DataStore) ImageGroups() *store.ImageGroupStore { return d.stores.ImageGroups }

// Experiments returns the experiment store.
func (d *DataStore) Experiments() *store.ExperimentStore { return d.stores.Experiments }

// FunctionalData returns the functional data store.
func (d *DataStore) FunctionalData() *store.FunctionalDataStore { return d.stores.FunctionalData }

// ModelRuns returns the model run store.
func (d *DataStore) ModelRuns() *store.ModelRunStore { return d.stores.ModelRuns }

// Registry returns the model registry.
func (d *DataStore) Registry() *registry.Registry { return d.registry }

// Transport names the configured dispatcher.
func (d *DataStore) Transport() string { return d.transport }

// requireActive returns a ReferenceError unless exists reports an active record.
func requireActive(ctx context.Context, kind domain.Kind, id string, exists func(context.Context, string) (bool, error)) error {
	ok, err := exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.ReferenceError{Kind: kind, ID: id}
	}
	return nil
}

// CreateExperiment creates an experiment for an active subject and image group.
func (d *DataStore) CreateExperiment(ctx context.Context, name, subjectID, groupID string) (*domain.Experiment, error) {
	if err := requireActive(ctx, domain.KindSubject, subjectID, d.stores.Subjects.Exists); err != nil {
		return nil, err
	}
	if err := requireActive(ctx, domain.KindImageGroup, groupID, d.stores.ImageGroups.Exists); err != nil {
		return nil, err
	}
	return d.stores.Experiments.Create(ctx, name, subjectID, groupID)
}

// AttachFmri stores the archive at archivePath as the experiment's functional
// data. A previous association is soft-deleted before the new one is recorded.
func (d *DataStore) AttachFmri(ctx context.Context, experimentID, archivePath string) (*domain.FunctionalData, error) {
	exp, err := d.stores.Experiments.Get(ctx, experimentID, false)
	if err != nil {
		return nil, err
	}
	fd, err := d.stores.FunctionalData.Create(ctx, archivePath)
	if err != nil {
		return nil, err
	}
	if exp.HasFmri() {
		if err := d.deleteFmri(ctx, exp.FmriID); err != nil {
			return nil, err
		}
	}
	if _, err := d.stores.Experiments.SetFmri(ctx, experimentID, fd.ID); err != nil {
		return nil, err
	}
	d.logger.Debug("fmri attached", "experiment_id", experimentID, "id", fd.ID)
	return fd, nil
}

// DetachFmri soft-deletes the experiment's functional data, if any.
func (d *DataStore) DetachFmri(ctx context.Context, experimentID string) (*domain.Experiment, error) {
	exp, err := d.stores.Experiments.Get(ctx, experimentID, false)
	if err != nil {
		return nil, err
	}
	if !exp.HasFmri() {
		return exp, nil
	}
	if err := d.deleteFmri(ctx, exp.FmriID); err != nil {
		return nil, err
	}
	return d.stores.Experiments.ClearFmri(ctx, experimentID)
}

// DeleteExperiment soft-deletes an experiment and cascades to its functional
// data. The functional data goes first, so a failed cascade leaves the
// experiment active and the call can be retried.
func (d *DataStore) DeleteExperiment(ctx context.Context, id string) (*domain.Experiment, error) {
	exp, err := d.stores.Experiments.Get(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if exp.HasFmri() {
		if err := d.deleteFmri(ctx, exp.FmriID); err != nil {
			return nil, err
		}
	}
	return d.stores.Experiments.Delete(ctx, id)
}

func (d *DataStore) deleteFmri(ctx context.Context, id string) error {
	_, err := d.stores.FunctionalData.Delete(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to delete functional data %s: %w", id, err)
	}
	return nil
}

// CreateImageGroup creates a group after resolving every image reference.
// The group archives the referenced image files.
func (d *DataStore) CreateImageGroup(ctx context.Context, name string, images []domain.GroupImage, options []attribute.Attribute) (*domain.ImageGroup, error) {
	files := make([]string, len(images))
	for i, entry := range images {
		img, err := d.stores.Images.Get(ctx, entry.ImageID, false)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ReferenceError{Kind: domain.KindImage, ID: entry.ImageID}
		}
		if err != nil {
			return nil, err
		}
		files[i] = img.File()
	}
	return d.stores.ImageGroups.Create(ctx, name, images, files, options)
}

// CreateModelRun creates a run of model for an experiment and dispatches it.
// Arguments are validated against the model's schema. If dispatch fails the
// run is soft-deleted and the dispatch error returned.
func (d *DataStore) CreateModelRun(ctx context.Context, experimentID, name, model string, attrs []attribute.Attribute) (*domain.ModelRun, error) {
	if err := requireActive(ctx, domain.KindExperiment, experimentID, d.stores.Experiments.Exists); err != nil {
		return nil, err
	}
	args, err := d.registry.Arguments(model, attrs)
	if err != nil {
		return nil, err
	}
	run, err := d.stores.ModelRuns.Create(ctx, name, experimentID, model, args)
	if err != nil {
		return nil, err
	}

	ev := &domain.RunEvent{
		Timestamp:    d.now(),
		RunID:        run.ID,
		ExperimentID: experimentID,
		Model:        model,
		State:        domain.StateIdle,
		Transport:    d.transport,
	}

	err = d.submit(ctx, domain.RunRequest{RunID: run.ID, ExperimentID: experimentID})
	if err != nil {
		if _, delErr := d.stores.ModelRuns.Delete(ctx, run.ID); delErr != nil {
			d.logger.Error("failed to delete undispatched run", "run_id", run.ID, "err", delErr)
		}
		ev.Err = err
		if d.hooks.OnDispatchFailed != nil {
			d.hooks.OnDispatchFailed(ctx, ev)
		}
		d.logger.Warn("run dispatch failed", "run_id", run.ID, "experiment_id", experimentID, "err", err)
		return nil, err
	}

	if d.hooks.OnScheduled != nil {
		d.hooks.OnScheduled(ctx, ev)
	}
	d.logger.Info("run scheduled", "run_id", run.ID, "experiment_id", experimentID, "model", model)
	return run, nil
}

func (d *DataStore) submit(ctx context.Context, req domain.RunRequest) error {
	if d.dispatcher == nil {
		return fmt.Errorf("%w: no dispatcher configured", domain.ErrDispatch)
	}
	err := d.dispatcher.Submit(ctx, req)
	if err != nil && !errors.Is(err, domain.ErrDispatch) {
		err = fmt.Errorf("%w: %w", domain.ErrDispatch, err)
	}
	return err
}

// Resolution is a run together with the records it references.
type Resolution struct {
	Experiment *domain.Experiment
	Subject    *domain.Subject
	Group      *domain.ImageGroup
	// Images are the image file paths in group declaration order.
	Images []string
}

// Resolve loads the experiment, subject, image group and images referenced by
// run. A missing record yields a *domain.ReferenceError naming it.
func (d *DataStore) Resolve(ctx context.Context, run *domain.ModelRun) (*Resolution, error) {
	var res Resolution
	var err error

	if res.Experiment, err = d.stores.Experiments.Get(ctx, run.ExperimentID, false); err != nil {
		return nil, referenceOr(err, domain.KindExperiment, run.ExperimentID)
	}
	if res.Subject, err = d.stores.Subjects.Get(ctx, res.Experiment.SubjectID, false); err != nil {
		return nil, referenceOr(err, domain.KindSubject, res.Experiment.SubjectID)
	}
	if res.Group, err = d.stores.ImageGroups.Get(ctx, res.Experiment.ImageGroupID, false); err != nil {
		return nil, referenceOr(err, domain.KindImageGroup, res.Experiment.ImageGroupID)
	}

	res.Images = make([]string, 0, len(res.Group.Images))
	for _, entry := range res.Group.Images {
		img, err := d.stores.Images.Get(ctx, entry.ImageID, false)
		if err != nil {
			return nil, referenceOr(err, domain.KindImage, entry.ImageID)
		}
		res.Images = append(res.Images, img.File())
	}
	return &res, nil
}

func referenceOr(err error, kind domain.Kind, id string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.ReferenceError{Kind: kind, ID: id}
	}
	return err
}
