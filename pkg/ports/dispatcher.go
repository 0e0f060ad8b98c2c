package ports

import (
	"context"

	"github.com/aretw0/scoserv/pkg/domain"
)

// Dispatcher hands a model run to a worker. Submit returns once the transport
// accepted the request; it never waits for the run to complete.
// Failures wrap domain.ErrDispatch.
type Dispatcher interface {
	Submit(ctx context.Context, req domain.RunRequest) error
}

// RunHandler executes a dispatched run. Workers call it for every request
// they receive and acknowledge the request once it returns.
type RunHandler func(ctx context.Context, req domain.RunRequest) error

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, req domain.RunRequest) error

func (f DispatcherFunc) Submit(ctx context.Context, req domain.RunRequest) error {
	return f(ctx, req)
}
