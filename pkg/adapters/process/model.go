package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

// Environment variables handed to model commands.
const (
	EnvSubjectDir  = "SCOSERV_SUBJECT_DIR"
	EnvWorkDir     = "SCOSERV_WORK_DIR"
	EnvImages      = "SCOSERV_IMAGES"
	EnvParamPrefix = "SCOSERV_PARAM_"
)

// StimuliFile lists the stimulus image paths, one per line, in the work dir.
const StimuliFile = "stimuli.txt"

// DefaultOutput is the primary output file name when none is configured.
const DefaultOutput = "prediction.mgz"

// DefaultGracePeriod is how long a canceled command may take to exit after
// the interrupt signal before it is killed.
const DefaultGracePeriod = 5 * time.Second

var paramName = regexp.MustCompile(`[^A-Z0-9_]`)

// Model runs an external command as a ports.Model.
//
// Parameters are never passed as flags. Each one becomes an environment
// variable SCOSERV_PARAM_<NAME>: scalars verbatim, composites as JSON. The
// command may print a JSON object {"primary_file": ..., "image_list": ...} on
// stdout; otherwise the configured output file in the work dir is used.
type Model struct {
	cfg   ModelConfig
	grace time.Duration
}

// NewModel creates a model for cfg.
func NewModel(cfg ModelConfig) *Model {
	if cfg.Output == "" {
		cfg.Output = DefaultOutput
	}
	return &Model{cfg: cfg, grace: DefaultGracePeriod}
}

var _ ports.Model = (*Model)(nil)

// Run executes the command in the work dir and waits for it.
func (m *Model) Run(ctx context.Context, in ports.ModelInput) (ports.ModelOutput, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	stimuli := filepath.Join(in.WorkDir, StimuliFile)
	if err := os.WriteFile(stimuli, []byte(strings.Join(in.Images, "\n")+"\n"), 0o644); err != nil {
		return ports.ModelOutput{}, fmt.Errorf("failed to write stimuli list: %w", err)
	}

	cmd := exec.CommandContext(ctx, m.cfg.Command, m.cfg.Args...)
	cmd.Dir = in.WorkDir
	// Interrupt first so the command can clean up; kill after the grace period.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = m.grace

	env, err := environment(in, stimuli)
	if err != nil {
		return ports.ModelOutput{}, err
	}
	for k, v := range m.cfg.Environment {
		env = append(env, k+"="+v)
	}
	cmd.Env = append(cmd.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return ports.ModelOutput{}, m.failure(ctx, err, stderr.String())
	}
	return m.output(in.WorkDir, stdout.Bytes())
}

func environment(in ports.ModelInput, stimuli string) ([]string, error) {
	env := []string{
		EnvSubjectDir + "=" + in.SubjectDir,
		EnvWorkDir + "=" + in.WorkDir,
		EnvImages + "=" + stimuli,
	}
	for k, v := range in.Parameters {
		var val string
		switch v.(type) {
		case string, int, int64, float64, bool, json.Number:
			val = fmt.Sprintf("%v", v)
		case nil:
			val = ""
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to encode parameter %s: %w", k, err)
			}
			val = string(data)
		}
		name := paramName.ReplaceAllString(strings.ToUpper(k), "_")
		env = append(env, EnvParamPrefix+name+"="+val)
	}
	return env, nil
}

func (m *Model) failure(ctx context.Context, err error, stderr string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.ComputationError{
			Category: "Timeout",
			Message:  fmt.Sprintf("%s exceeded %s", m.cfg.Name, m.cfg.Timeout),
			Err:      err,
		}
	}
	msg := err.Error()
	if s := strings.TrimSpace(stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &domain.ComputationError{Category: "ExitError", Message: msg, Err: err}
	}
	return &domain.ComputationError{Category: "ExecError", Message: msg, Err: err}
}

type reportedOutput struct {
	PrimaryFile string `json:"primary_file"`
	ImageList   string `json:"image_list"`
}

func (m *Model) output(workDir string, stdout []byte) (ports.ModelOutput, error) {
	out := ports.ModelOutput{PrimaryFile: filepath.Join(workDir, m.cfg.Output)}

	trimmed := bytes.TrimSpace(stdout)
	if bytes.HasPrefix(trimmed, []byte("{")) && bytes.HasSuffix(trimmed, []byte("}")) {
		var reported reportedOutput
		if err := json.Unmarshal(trimmed, &reported); err == nil && reported.PrimaryFile != "" {
			out.PrimaryFile = resolve(workDir, reported.PrimaryFile)
			if reported.ImageList != "" {
				out.ImageList = resolve(workDir, reported.ImageList)
			}
		}
	}

	if _, err := os.Stat(out.PrimaryFile); err != nil {
		return ports.ModelOutput{}, &domain.ComputationError{
			Category: "OutputError",
			Message:  fmt.Sprintf("missing output %s", filepath.Base(out.PrimaryFile)),
			Err:      err,
		}
	}
	return out, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
