package cli

import (
	"context"
	"errors"

	"github.com/aretw0/scoserv/pkg/domain"
)

// RunOnce executes a single model run. The direct transport spawns this for
// every scheduled run.
func RunOnce(opts Options, runID string) error {
	sc := NewSignalContext(context.Background())
	defer sc.Cancel()

	svc, logger, err := openService(sc, opts)
	if err != nil {
		return err
	}
	defer svc.Close()

	logger = logger.With("run_id", runID)
	err = svc.Engine().Execute(sc, runID)
	switch {
	case errors.Is(err, domain.ErrInvalidRunState):
		logger.Warn("Run already finished")
		return nil
	case err != nil && sc.Signal() != nil:
		logger.Warn("Run interrupted", "signal", sc.Signal().String())
		return nil
	}
	return err
}
