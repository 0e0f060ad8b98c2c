package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

// Spawner dispatches each run by starting `<executable> run <run-id>` as a
// new process. Submit returns once the process started; a goroutine reaps it.
type Spawner struct {
	executable string
	args       []string
	env        []string
	output     io.Writer
	logger     *slog.Logger
}

// SpawnerOption configures the Spawner.
type SpawnerOption func(*Spawner)

// WithArgs appends arguments after the run id, e.g. a config flag.
func WithArgs(args ...string) SpawnerOption {
	return func(s *Spawner) {
		s.args = append(s.args, args...)
	}
}

// WithEnv adds KEY=VALUE pairs to the child environment.
func WithEnv(env ...string) SpawnerOption {
	return func(s *Spawner) {
		s.env = append(s.env, env...)
	}
}

// WithOutput sends the child's stdout and stderr to w.
func WithOutput(w io.Writer) SpawnerOption {
	return func(s *Spawner) {
		s.output = w
	}
}

// WithLogger sets the logger used to report child exits.
func WithLogger(logger *slog.Logger) SpawnerOption {
	return func(s *Spawner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpawner creates a direct dispatcher for executable.
func NewSpawner(executable string, opts ...SpawnerOption) *Spawner {
	s := &Spawner{
		executable: executable,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ ports.Dispatcher = (*Spawner)(nil)

// Submit starts the worker process for req. The process outlives ctx.
func (s *Spawner) Submit(_ context.Context, req domain.RunRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDispatch, err)
	}

	args := append([]string{"run", req.RunID}, s.args...)
	cmd := exec.Command(s.executable, args...)
	cmd.Env = append(cmd.Environ(), s.env...)
	if s.output != nil {
		cmd.Stdout = s.output
		cmd.Stderr = s.output
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start %s: %w", domain.ErrDispatch, s.executable, err)
	}
	s.logger.Debug("Worker process started", "run_id", req.RunID, "pid", cmd.Process.Pid)

	go func() {
		if err := cmd.Wait(); err != nil {
			s.logger.Warn("Worker process exited with error", "run_id", req.RunID, "err", err)
			return
		}
		s.logger.Debug("Worker process exited", "run_id", req.RunID)
	}()
	return nil
}
