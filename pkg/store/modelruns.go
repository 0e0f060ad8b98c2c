package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/scoserv/pkg/attribute"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

// Document field names of model runs.
const (
	FieldExperimentID = "experiment_id"
	FieldModel        = "model"
	FieldState        = "state"
	FieldResultID     = "result_id"
	FieldErrors       = "errors"
	FieldArguments    = "arguments"
	FieldScheduledAt  = "scheduled_at"
	FieldStartedAt    = "started_at"
	FieldFinishedAt   = "finished_at"
)

type modelRunFields struct {
	ExperimentID string    `mapstructure:"experiment_id"`
	Model        string    `mapstructure:"model"`
	State        string    `mapstructure:"state"`
	ResultID     string    `mapstructure:"result_id"`
	Errors       []string  `mapstructure:"errors"`
	Arguments    any       `mapstructure:"arguments"`
	ScheduledAt  time.Time `mapstructure:"scheduled_at"`
	StartedAt    time.Time `mapstructure:"started_at"`
	FinishedAt   time.Time `mapstructure:"finished_at"`
}

// ModelRunStore manages model runs. Each run owns a working directory that
// the model may use for intermediate files.
type ModelRunStore struct {
	*DataStore[*domain.ModelRun]
}

// NewModelRunStore creates the model run store rooted at base.
func NewModelRunStore(coll ports.Collection, base string, opts ...Option) *ModelRunStore {
	return &ModelRunStore{NewDataStore(coll, base, Flat, DataCodec[*domain.ModelRun]{
		Kind:   domain.KindModelRun,
		Encode: encodeModelRun,
		Decode: decodeModelRun,
	}, opts...)}
}

func encodeModelRun(r *domain.ModelRun) (map[string]any, error) {
	if r.State == nil {
		return nil, fmt.Errorf("%w: missing state", domain.ErrInvalidRunState)
	}
	fields := map[string]any{
		FieldExperimentID: r.ExperimentID,
		FieldModel:        r.Model,
		FieldState:        r.State.Name(),
		FieldArguments:    attribute.Encode(r.Arguments),
	}
	switch s := r.State.(type) {
	case domain.Success:
		fields[FieldResultID] = s.ResultID
	case domain.Failed:
		errs := make([]any, len(s.Errors))
		for i, e := range s.Errors {
			errs[i] = e
		}
		fields[FieldErrors] = errs
	}
	putTime(fields, FieldScheduledAt, r.ScheduledAt)
	putTime(fields, FieldStartedAt, r.StartedAt)
	putTime(fields, FieldFinishedAt, r.FinishedAt)
	return fields, nil
}

func decodeModelRun(rec domain.Record, dir string, fields map[string]any) (*domain.ModelRun, error) {
	var f modelRunFields
	if err := decodeFields(fields, &f); err != nil {
		return nil, err
	}
	state, err := domain.ParseRunState(f.State, f.ResultID, f.Errors)
	if err != nil {
		return nil, err
	}
	args, err := attribute.Decode(f.Arguments)
	if err != nil {
		return nil, err
	}
	return &domain.ModelRun{
		Record:       rec,
		Directory:    dir,
		ExperimentID: f.ExperimentID,
		Model:        f.Model,
		State:        state,
		Arguments:    args,
		ScheduledAt:  f.ScheduledAt,
		StartedAt:    f.StartedAt,
		FinishedAt:   f.FinishedAt,
	}, nil
}

// Create stores a new run in the Idle state. Arguments are expected to be
// validated against the model's schema already.
func (s *ModelRunStore) Create(ctx context.Context, name, experimentID, model string, args map[string]attribute.Attribute) (*domain.ModelRun, error) {
	if args == nil {
		args = map[string]attribute.Attribute{}
	}
	props := map[string]any{domain.PropertyName: name}
	return s.DataStore.Create(ctx, props, nil, func(rec domain.Record, dir string) *domain.ModelRun {
		return &domain.ModelRun{
			Record:       rec,
			Directory:    dir,
			ExperimentID: experimentID,
			Model:        model,
			State:        domain.Idle{},
			Arguments:    args,
			ScheduledAt:  rec.CreatedAt,
		}
	})
}

// UpdateState moves an active run to next. The transition is validated
// against the run's current state; entering Running stamps StartedAt and
// entering a terminal state stamps FinishedAt.
func (s *ModelRunStore) UpdateState(ctx context.Context, id string, next domain.RunState) (*domain.ModelRun, error) {
	run, err := s.Get(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if err := domain.Transition(run.State, next); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	switch next.(type) {
	case domain.Running:
		run.StartedAt = now
	case domain.Success, domain.Failed:
		run.FinishedAt = now
	}
	run.State = next

	ok, err := s.Replace(ctx, run)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", domain.KindModelRun.Label(), id, domain.ErrNotFound)
	}
	return run, nil
}

// ListForExperiment lists the active runs of one experiment.
func (s *ModelRunStore) ListForExperiment(ctx context.Context, experimentID string, opts domain.ListOptions) (domain.Page[*domain.ModelRun], error) {
	filter := make(map[string]string, len(opts.Filter)+1)
	for k, v := range opts.Filter {
		filter[k] = v
	}
	filter["fields."+FieldExperimentID] = experimentID
	opts.Filter = filter
	return s.List(ctx, opts)
}
