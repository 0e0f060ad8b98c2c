package socket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/aretw0/scoserv/pkg/ports"
)

// DefaultWorkers is the number of runs a server executes concurrently.
const DefaultWorkers = 2

// Server accepts run requests and executes them on a bounded worker pool.
type Server struct {
	handler ports.RunHandler
	slots   chan struct{}
	timeout time.Duration
	logger  *slog.Logger

	wg sync.WaitGroup
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithWorkers sets the number of concurrent runs.
func WithWorkers(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.slots = make(chan struct{}, n)
		}
	}
}

// WithReadTimeout bounds how long a client may take to send its request.
func WithReadTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a server that calls handler for every accepted run.
func NewServer(handler ports.RunHandler, opts ...ServerOption) *Server {
	s := &Server{
		handler: handler,
		slots:   make(chan struct{}, DefaultWorkers),
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections on ln until ctx is canceled, then waits for the
// runs in progress. Runs receive a context that is not canceled with ctx, so
// a shutdown lets them finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	runCtx := context.WithoutCancel(ctx)
	var conns sync.WaitGroup
	defer func() {
		conns.Wait()
		s.wg.Wait()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}
		conns.Add(1)
		go func() {
			defer conns.Done()
			s.serveConn(runCtx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(s.timeout))

	resp := s.accept(ctx, conn)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Warn("Failed to write response", "remote", conn.RemoteAddr().String(), "err", err)
	}
}

func (s *Server) accept(ctx context.Context, conn net.Conn) Response {
	var req domain.RunRequest
	if err := json.NewDecoder(io.LimitReader(conn, maxMessageSize)).Decode(&req); err != nil {
		return Response{Status: http.StatusBadRequest, Message: "invalid request: " + err.Error()}
	}
	if err := req.Validate(); err != nil {
		return Response{Status: http.StatusBadRequest, Message: err.Error()}
	}

	select {
	case s.slots <- struct{}{}:
	default:
		s.logger.Warn("Engine busy, rejecting run", "run_id", req.RunID)
		return Response{Status: http.StatusServiceUnavailable, Message: "engine busy"}
	}

	s.wg.Add(1)
	go func() {
		defer func() {
			<-s.slots
			s.wg.Done()
		}()
		if err := s.handler(ctx, req); err != nil {
			s.logger.Error("Run failed", "run_id", req.RunID, "experiment_id", req.ExperimentID, "err", err)
		}
	}()
	s.logger.Info("Run accepted", "run_id", req.RunID, "experiment_id", req.ExperimentID)
	return Response{Status: http.StatusOK, Message: "run accepted"}
}
