package store

import (
	"context"
	"fmt"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

// Document field names of experiments.
const (
	FieldSubjectID    = "subject_id"
	FieldImageGroupID = "image_group_id"
	FieldFmriID       = "fmri_id"
)

type experimentFields struct {
	SubjectID    string `mapstructure:"subject_id"`
	ImageGroupID string `mapstructure:"image_group_id"`
	FmriID       string `mapstructure:"fmri_id"`
}

// ExperimentStore manages experiments. References are checked by the caller.
type ExperimentStore struct {
	*ObjectStore[*domain.Experiment]
}

// NewExperimentStore creates the experiment store.
func NewExperimentStore(coll ports.Collection, opts ...Option) *ExperimentStore {
	return &ExperimentStore{NewObjectStore(coll, Codec[*domain.Experiment]{
		Kind: domain.KindExperiment,
		Encode: func(e *domain.Experiment) (map[string]any, error) {
			fields := map[string]any{
				FieldSubjectID:    e.SubjectID,
				FieldImageGroupID: e.ImageGroupID,
			}
			if e.FmriID != "" {
				fields[FieldFmriID] = e.FmriID
			}
			return fields, nil
		},
		Decode: func(rec domain.Record, fields map[string]any) (*domain.Experiment, error) {
			var f experimentFields
			if err := decodeFields(fields, &f); err != nil {
				return nil, err
			}
			return &domain.Experiment{
				Record:       rec,
				SubjectID:    f.SubjectID,
				ImageGroupID: f.ImageGroupID,
				FmriID:       f.FmriID,
			}, nil
		},
	}, opts...)}
}

// Create stores a new experiment without functional data.
func (s *ExperimentStore) Create(ctx context.Context, name, subjectID, groupID string) (*domain.Experiment, error) {
	exp := &domain.Experiment{
		Record:       s.NewRecord(map[string]any{domain.PropertyName: name}),
		SubjectID:    subjectID,
		ImageGroupID: groupID,
	}
	if err := s.Insert(ctx, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

// SetFmri records fmriID as the functional data of the experiment.
func (s *ExperimentStore) SetFmri(ctx context.Context, id, fmriID string) (*domain.Experiment, error) {
	return s.update(ctx, id, func(e *domain.Experiment) { e.FmriID = fmriID })
}

// ClearFmri removes the functional data association of the experiment.
func (s *ExperimentStore) ClearFmri(ctx context.Context, id string) (*domain.Experiment, error) {
	return s.update(ctx, id, func(e *domain.Experiment) { e.FmriID = "" })
}

func (s *ExperimentStore) update(ctx context.Context, id string, mutate func(*domain.Experiment)) (*domain.Experiment, error) {
	exp, err := s.Get(ctx, id, false)
	if err != nil {
		return nil, err
	}
	mutate(exp)
	ok, err := s.Replace(ctx, exp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", domain.KindExperiment.Label(), id, domain.ErrNotFound)
	}
	return exp, nil
}
