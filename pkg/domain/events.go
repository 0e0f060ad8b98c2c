package domain

import (
	"context"
	"time"
)

// RunEvent describes a model run lifecycle change.
type RunEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	RunID        string    `json:"run_id"`
	ExperimentID string    `json:"experiment_id"`
	Model        string    `json:"model,omitempty"`
	State        string    `json:"state"`
	Transport    string    `json:"transport,omitempty"`
	Duration     time.Duration
	Err          error `json:"-"`
}

// LifecycleHooks defines callbacks for model run observability.
type LifecycleHooks struct {
	OnScheduled      func(context.Context, *RunEvent)
	OnDispatchFailed func(context.Context, *RunEvent)
	OnStarted        func(context.Context, *RunEvent)
	OnSucceeded      func(context.Context, *RunEvent)
	OnFailed         func(context.Context, *RunEvent)
}

// Combine returns hooks that call every non-nil hook of each argument in order.
func Combine(hooks ...LifecycleHooks) LifecycleHooks {
	pick := func(get func(LifecycleHooks) func(context.Context, *RunEvent)) func(context.Context, *RunEvent) {
		var fns []func(context.Context, *RunEvent)
		for _, h := range hooks {
			if fn := get(h); fn != nil {
				fns = append(fns, fn)
			}
		}
		if len(fns) == 0 {
			return nil
		}
		return func(ctx context.Context, ev *RunEvent) {
			for _, fn := range fns {
				fn(ctx, ev)
			}
		}
	}
	return LifecycleHooks{
		OnScheduled:      pick(func(h LifecycleHooks) func(context.Context, *RunEvent) { return h.OnScheduled }),
		OnDispatchFailed: pick(func(h LifecycleHooks) func(context.Context, *RunEvent) { return h.OnDispatchFailed }),
		OnStarted:        pick(func(h LifecycleHooks) func(context.Context, *RunEvent) { return h.OnStarted }),
		OnSucceeded:      pick(func(h LifecycleHooks) func(context.Context, *RunEvent) { return h.OnSucceeded }),
		OnFailed:         pick(func(h LifecycleHooks) func(context.Context, *RunEvent) { return h.OnFailed }),
	}
}
