package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/aretw0/scoserv/pkg/attribute"
)

// SubmitOptions describe a model run to schedule.
type SubmitOptions struct {
	ExperimentID string
	Name         string
	Model        string
	// Arguments is a JSON object of run arguments, e.g. {"max_eccentricity": 10}.
	Arguments string
}

// Submit creates a model run and dispatches it, then writes the run as JSON
// to out.
func Submit(opts Options, req SubmitOptions, out io.Writer) error {
	attrs, err := parseArguments(req.Arguments)
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, _, err := openService(ctx, opts)
	if err != nil {
		return err
	}
	defer svc.Close()

	name := req.Name
	if name == "" {
		name = req.Model
	}
	run, err := svc.Data().CreateModelRun(ctx, req.ExperimentID, name, req.Model, attrs)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"id":            run.ID,
		"experiment_id": run.ExperimentID,
		"model":         run.Model,
		"state":         run.State.Name(),
		"transport":     svc.Data().Transport(),
	})
}

// parseArguments converts a JSON object into attributes ordered by name.
func parseArguments(raw string) ([]attribute.Attribute, error) {
	if raw == "" {
		return nil, nil
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("error parsing --args JSON: %w", err)
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	attrs := make([]attribute.Attribute, 0, len(names))
	for _, name := range names {
		attrs = append(attrs, attribute.Attribute{Name: name, Value: values[name]})
	}
	return attrs, nil
}
