package domain

import "fmt"

// Run state names as persisted.
const (
	StateIdle    = "IDLE"
	StateRunning = "RUNNING"
	StateSuccess = "SUCCESS"
	StateFailed  = "FAILED"
)

// RunState is the closed union of model run states: Idle, Running, Success
// and Failed.
type RunState interface {
	Name() string
	runState()
}

// Idle is the initial state of a run.
type Idle struct{}

// Running marks a run accepted by a worker.
type Running struct{}

// Success is the terminal state of a run that produced a result.
type Success struct {
	ResultID string
}

// Failed is the terminal state of a run that produced errors.
type Failed struct {
	Errors []string
}

func (Idle) Name() string    { return StateIdle }
func (Running) Name() string { return StateRunning }
func (Success) Name() string { return StateSuccess }
func (Failed) Name() string  { return StateFailed }

func (Idle) runState()    {}
func (Running) runState() {}
func (Success) runState() {}
func (Failed) runState()  {}

// IsTerminal reports whether no further transition is permitted from s.
func IsTerminal(s RunState) bool {
	switch s.(type) {
	case Success, Failed:
		return true
	default:
		return false
	}
}

// CanExecute reports whether a worker may pick up a run in state s.
// Running is accepted so a crashed worker's run can be retried.
func CanExecute(s RunState) bool {
	switch s.(type) {
	case Idle, Running:
		return true
	default:
		return false
	}
}

// Transition validates a state change. It returns ErrInvalidRunState for:
// any move out of a terminal state, Idle directly to a terminal state, and
// any move back to Idle.
func Transition(from, to RunState) error {
	if from == nil || to == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidRunState)
	}
	switch from.(type) {
	case Idle:
		if _, ok := to.(Running); ok {
			return nil
		}
	case Running:
		switch to.(type) {
		case Running, Success, Failed:
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidRunState, from.Name(), to.Name())
}

// ParseRunState rebuilds a state from its persisted parts.
func ParseRunState(name, resultID string, errs []string) (RunState, error) {
	switch name {
	case StateIdle:
		return Idle{}, nil
	case StateRunning:
		return Running{}, nil
	case StateSuccess:
		if resultID == "" {
			return nil, fmt.Errorf("%w: success state without result", ErrInvalidRunState)
		}
		return Success{ResultID: resultID}, nil
	case StateFailed:
		return Failed{Errors: errs}, nil
	default:
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidRunState, name)
	}
}
