package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/scoserv"
	"github.com/aretw0/scoserv/internal/config"
	"github.com/aretw0/scoserv/internal/logging"
)

// Options are the flags shared by every command.
type Options struct {
	// ConfigPath is the YAML config file; empty uses defaults and environment.
	ConfigPath string
	// LogLevel overrides log.level when set.
	LogLevel string
	// Debug forces debug logging.
	Debug bool
}

// loadConfig reads the configuration and builds the logger it describes.
func loadConfig(opts Options) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.Debug {
		cfg.Log.Level = "debug"
	}
	logger, err := logging.FromConfig(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// openService builds the service. Spawned workers inherit the config file.
func openService(ctx context.Context, opts Options, extra ...scoserv.Option) (*scoserv.Service, *slog.Logger, error) {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	svcOpts := []scoserv.Option{scoserv.WithLogger(logger)}
	if opts.ConfigPath != "" {
		svcOpts = append(svcOpts, scoserv.WithSpawnArgs("--config", opts.ConfigPath))
	}
	svcOpts = append(svcOpts, extra...)

	svc, err := scoserv.New(ctx, cfg, svcOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing service: %w", err)
	}
	return svc, logger.With("transport", cfg.Dispatch.Transport), nil
}
