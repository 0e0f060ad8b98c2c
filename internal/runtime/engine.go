package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"time"
	"unicode"

	"github.com/aretw0/scoserv/pkg/archive"
	"github.com/aretw0/scoserv/pkg/attribute"
	"github.com/aretw0/scoserv/pkg/datastore"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/lease"
	"github.com/aretw0/scoserv/pkg/ports"
)

// ResultFilename is the name of the archive stored for a successful run.
const ResultFilename = "results.tar.gz"

// workDirName is the model's scratch directory inside the run directory.
const workDirName = "work"

// Engine executes model runs.
type Engine struct {
	data   *datastore.DataStore
	leases *lease.Manager
	mirror ports.ArchiveMirror
	hooks  domain.LifecycleHooks
	logger *slog.Logger
	now    func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLeases sets the lease manager that serializes executions of one run.
func WithLeases(m *lease.Manager) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.leases = m
		}
	}
}

// WithMirror replicates result archives after they are stored.
func WithMirror(m ports.ArchiveMirror) EngineOption {
	return func(e *Engine) {
		e.mirror = m
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source used for event timestamps and durations.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine over the data layer.
func NewEngine(data *datastore.DataStore, opts ...EngineOption) *Engine {
	e := &Engine{
		data:   data,
		leases: lease.NewManager(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle executes a dispatched request. It is a ports.RunHandler: runs that
// are gone or already finished are acknowledged without error so a
// redelivered request is not retried forever.
func (e *Engine) Handle(ctx context.Context, req domain.RunRequest) error {
	err := e.Execute(ctx, req.RunID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidRunState):
		e.logger.Warn("Dropping run request", "run_id", req.RunID, "experiment_id", req.ExperimentID, "err", err)
		return nil
	default:
		return err
	}
}

// Execute runs the model for runID and records the outcome on the run.
//
// A run that is already terminal yields domain.ErrInvalidRunState without
// side effects. Missing references and model failures end the run in Failed
// and return nil. Any other error leaves the run in Running so a later
// delivery can retry it.
func (e *Engine) Execute(ctx context.Context, runID string) error {
	return e.leases.WithLease(ctx, runID, func(ctx context.Context) error {
		return e.execute(ctx, runID)
	})
}

func (e *Engine) execute(ctx context.Context, runID string) error {
	runs := e.data.ModelRuns()
	logger := e.logger.With("run_id", runID)

	run, err := runs.Get(ctx, runID, false)
	if err != nil {
		return err
	}
	if !domain.CanExecute(run.State) {
		return fmt.Errorf("%w: run %s is %s", domain.ErrInvalidRunState, runID, run.State.Name())
	}

	if run, err = runs.UpdateState(ctx, runID, domain.Running{}); err != nil {
		return err
	}
	started := e.now()
	e.fire(ctx, e.hooks.OnStarted, run, started, nil)
	logger.Info("Run started", "experiment_id", run.ExperimentID, "model", run.Model)

	res, err := e.data.Resolve(ctx, run)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidReference) {
			return e.fail(ctx, run, started, err.Error(), err)
		}
		return err
	}

	entry, err := e.data.Registry().Lookup(run.Model)
	if err != nil {
		return e.fail(ctx, run, started, err.Error(), err)
	}

	workDir, err := prepareWorkDir(run)
	if err != nil {
		return err
	}

	params := attribute.Values(attribute.Merge(res.Group.Options, run.Arguments))
	out, err := invoke(ctx, entry.Model, ports.ModelInput{
		SubjectDir: res.Subject.DataDir(),
		Images:     res.Images,
		Parameters: params,
		WorkDir:    workDir,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Shutdown, not a model failure: leave the run for redelivery.
			return ctxErr
		}
		return e.fail(ctx, run, started, describe(err), err)
	}

	manifest := make([]string, len(res.Group.Images))
	for i, img := range res.Group.Images {
		manifest[i] = img.Path()
	}
	result, err := e.storeResult(ctx, run, out.PrimaryFile, manifest)
	if err != nil {
		if errors.Is(err, domain.ErrComputation) {
			return e.fail(ctx, run, started, describe(err), err)
		}
		return err
	}
	e.replicate(ctx, run, result)

	if run, err = runs.UpdateState(ctx, runID, domain.Success{ResultID: result.ID}); err != nil {
		return err
	}
	e.fire(ctx, e.hooks.OnSucceeded, run, started, nil)
	logger.Info("Run succeeded", "id", result.ID, "duration", e.now().Sub(started))
	return nil
}

// fail records a Failed state carrying message. cause is only reported to hooks.
func (e *Engine) fail(ctx context.Context, run *domain.ModelRun, started time.Time, message string, cause error) error {
	updated, err := e.data.ModelRuns().UpdateState(ctx, run.ID, domain.Failed{Errors: []string{message}})
	if err != nil {
		return fmt.Errorf("failed to record failure of run %s: %w", run.ID, err)
	}
	e.fire(ctx, e.hooks.OnFailed, updated, started, cause)
	e.logger.Warn("Run failed", "run_id", run.ID, "err", message)
	return nil
}

func (e *Engine) fire(ctx context.Context, hook func(context.Context, *domain.RunEvent), run *domain.ModelRun, started time.Time, err error) {
	if hook == nil {
		return
	}
	now := e.now()
	hook(ctx, &domain.RunEvent{
		Timestamp:    now,
		RunID:        run.ID,
		ExperimentID: run.ExperimentID,
		Model:        run.Model,
		State:        run.State.Name(),
		Duration:     now.Sub(started),
		Err:          err,
	})
}

// storeResult archives the primary output with the group manifest and stores
// the archive as a functional data record. The archive is complete before the
// record is created.
func (e *Engine) storeResult(ctx context.Context, run *domain.ModelRun, primary string, manifest []string) (*domain.FunctionalData, error) {
	if primary == "" {
		return nil, &domain.ComputationError{Category: "OutputError", Message: "model produced no output file"}
	}
	if _, err := os.Stat(primary); err != nil {
		return nil, &domain.ComputationError{Category: "OutputError", Message: err.Error(), Err: err}
	}

	tmp, err := os.CreateTemp(run.Directory, ".result-*.tar.gz")
	if err != nil {
		return nil, fmt.Errorf("failed to create result archive: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := archive.CreateResult(tmpPath, primary, manifest); err != nil {
		return nil, err
	}
	return e.data.FunctionalData().CreateNamed(ctx, ResultFilename, tmpPath)
}

// replicate mirrors the result archive. Mirroring is best effort: a failure
// is logged and the run still succeeds.
func (e *Engine) replicate(ctx context.Context, run *domain.ModelRun, result *domain.FunctionalData) {
	if e.mirror == nil {
		return
	}
	key := fmt.Sprintf("%s/%s/%s", run.ID, result.ID, ResultFilename)
	location, err := e.mirror.Put(ctx, key, result.File(), archive.MimeType)
	if err != nil {
		e.logger.Warn("Failed to mirror result archive", "run_id", run.ID, "id", result.ID, "err", err)
		return
	}
	e.logger.Debug("Result archive mirrored", "run_id", run.ID, "location", location)
}

// prepareWorkDir empties the run's scratch directory so a retried run does
// not see files from an earlier attempt.
func prepareWorkDir(run *domain.ModelRun) (string, error) {
	dir := filepath.Join(run.Directory, workDirName)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("failed to clean work dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	return dir, nil
}

// invoke calls the model, converting a panic into a computation error.
func invoke(ctx context.Context, model ports.Model, in ports.ModelInput) (out ports.ModelOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.ComputationError{Category: "Panic", Message: fmt.Sprint(r)}
		}
	}()
	return model.Run(ctx, in)
}

// describe renders an error as "Category: message".
func describe(err error) string {
	var ce *domain.ComputationError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	return category(err) + ": " + err.Error()
}

// category names an error after its exported Go type, or "Error" when the
// type is unexported.
func category(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" || !unicode.IsUpper(rune(name[0])) {
		return "Error"
	}
	return name
}
