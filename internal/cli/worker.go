package cli

import (
	"context"
	"log/slog"
	"net"

	"github.com/aretw0/scoserv"
	"golang.org/x/sync/errgroup"
)

// RunWorker consumes the configured queue until interrupted.
func RunWorker(opts Options) error {
	sc := NewSignalContext(context.Background())
	defer sc.Cancel()

	svc, logger, err := openService(sc, opts)
	if err != nil {
		return err
	}
	defer svc.Close()

	logger.Info("Worker started", "queue", svc.Config().Dispatch.Queue)
	err = serveWithAdmin(sc, svc, logger, func(ctx context.Context) error {
		return svc.Consume(ctx)
	})
	if sig := sc.Signal(); sig != nil {
		logger.Info("Worker stopped", "signal", sig.String())
	}
	return handleExecutionError(err)
}

// RunEngine serves the socket protocol on addr (the configured socket
// address when empty) until interrupted.
func RunEngine(opts Options, addr string) error {
	sc := NewSignalContext(context.Background())
	defer sc.Cancel()

	svc, logger, err := openService(sc, opts)
	if err != nil {
		return err
	}
	defer svc.Close()

	if addr == "" {
		addr = svc.Config().Dispatch.SocketAddr
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(sc, "tcp", addr)
	if err != nil {
		return err
	}
	logger.Info("Engine listening", "addr", ln.Addr().String(), "workers", svc.Config().Dispatch.Workers)

	err = serveWithAdmin(sc, svc, logger, func(ctx context.Context) error {
		return svc.ServeEngine(ctx, ln)
	})
	return handleExecutionError(err)
}

// serveWithAdmin runs fn next to the admin server; the first to fail stops
// both.
func serveWithAdmin(ctx context.Context, svc *scoserv.Service, logger *slog.Logger, fn func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := fn(ctx)
		if err == nil {
			err = context.Canceled
		}
		return err
	})
	g.Go(func() error {
		return serveAdmin(ctx, svc.Config().Admin.Addr, NewAdminRouter(svc), logger)
	})
	return g.Wait()
}
