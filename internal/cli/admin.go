package cli

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/scoserv"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewAdminRouter serves /metrics, /healthz and /info for svc.
func NewAdminRouter(svc *scoserv.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", svc.Metrics().Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
		cfg := svc.Config()
		writeJSON(w, http.StatusOK, map[string]any{
			"version":   scoserv.Version,
			"backend":   cfg.Backend.Type,
			"transport": cfg.Dispatch.Transport,
			"models":    svc.Registry().Names(),
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// serveAdmin runs the admin server on addr until ctx is cancelled. An empty
// addr disables it.
func serveAdmin(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if addr == "" {
		return nil
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Admin server listening", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "err", err)
			return srv.Close()
		}
		return nil
	}
}

// RunAdmin serves only the admin endpoints on addr (admin.addr when empty).
func RunAdmin(opts Options, addr string) error {
	sc := NewSignalContext(context.Background())
	defer sc.Cancel()

	svc, logger, err := openService(sc, opts)
	if err != nil {
		return err
	}
	defer svc.Close()

	if addr == "" {
		addr = svc.Config().Admin.Addr
	}
	if addr == "" {
		return errors.New("no admin address: set admin.addr or --listen")
	}
	return serveAdmin(sc, addr, NewAdminRouter(svc), logger)
}
