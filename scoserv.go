package scoserv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/aretw0/scoserv/internal/config"
	"github.com/aretw0/scoserv/internal/runtime"
	"github.com/aretw0/scoserv/pkg/adapters/amqp"
	loamAdapter "github.com/aretw0/scoserv/pkg/adapters/loam"
	"github.com/aretw0/scoserv/pkg/adapters/memory"
	"github.com/aretw0/scoserv/pkg/adapters/process"
	redisAdapter "github.com/aretw0/scoserv/pkg/adapters/redis"
	"github.com/aretw0/scoserv/pkg/adapters/s3"
	"github.com/aretw0/scoserv/pkg/adapters/socket"
	"github.com/aretw0/scoserv/pkg/adapters/sqldb"
	"github.com/aretw0/scoserv/pkg/attribute"
	"github.com/aretw0/scoserv/pkg/datastore"
	"github.com/aretw0/scoserv/pkg/lease"
	"github.com/aretw0/scoserv/pkg/observability"
	"github.com/aretw0/scoserv/pkg/persistence/middleware"
	"github.com/aretw0/scoserv/pkg/ports"
	"github.com/aretw0/scoserv/pkg/registry"
	"github.com/aretw0/scoserv/pkg/store"
	"github.com/redis/go-redis/v9"
)

// Version is the release version, set at build time.
var Version = "dev"

// Service wires stores, dispatch, the run engine and metrics from a Config.
type Service struct {
	cfg      config.Config
	data     *datastore.DataStore
	engine   *runtime.Engine
	metrics  *observability.Metrics
	registry *registry.Registry
	logger   *slog.Logger

	dispatcher ports.Dispatcher
	transport  string
	spawnArgs  []string
	mirror     ports.ArchiveMirror

	redis   *redis.Client
	amqp    *amqp.Connection
	db      *sql.DB
	closers []func() error
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDispatcher replaces the configured transport.
func WithDispatcher(d ports.Dispatcher, transport string) Option {
	return func(s *Service) {
		s.dispatcher = d
		s.transport = transport
	}
}

// WithModel registers an in-process model next to the configured ones.
func WithModel(name string, schema attribute.Schema, model ports.Model) Option {
	return func(s *Service) {
		s.registry.Register(name, schema, model)
	}
}

// WithSpawnArgs appends arguments to the worker command started by the
// direct transport, e.g. the config file flag.
func WithSpawnArgs(args ...string) Option {
	return func(s *Service) {
		s.spawnArgs = append(s.spawnArgs, args...)
	}
}

// WithMirror replaces the configured result mirror.
func WithMirror(m ports.ArchiveMirror) Option {
	return func(s *Service) {
		s.mirror = m
	}
}

// New builds the service. Close releases the connections it opened.
func New(ctx context.Context, cfg config.Config, opts ...Option) (svc *Service, err error) {
	s := &Service{
		cfg:      cfg,
		metrics:  observability.NewMetrics(),
		registry: registry.NewRegistry(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if cfg.UsesRedis() {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Backend.Redis.Addr,
			Password: cfg.Backend.Redis.Password,
			DB:       cfg.Backend.Redis.DB,
		})
		s.closers = append(s.closers, s.redis.Close)
		if err := s.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	open, err := s.collections(ctx)
	if err != nil {
		return nil, err
	}
	stores, err := datastore.NewStores(open, cfg.Storage.Root, store.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}

	if err := s.registerModels(); err != nil {
		return nil, err
	}
	if s.dispatcher == nil {
		if s.dispatcher, err = s.newDispatcher(); err != nil {
			return nil, err
		}
		s.transport = cfg.Dispatch.Transport
	}
	if s.mirror == nil && cfg.Mirror.Bucket != "" {
		m, err := s3.New(ctx, s3.Config{
			Bucket:          cfg.Mirror.Bucket,
			Region:          cfg.Mirror.Region,
			Endpoint:        cfg.Mirror.Endpoint,
			Prefix:          cfg.Mirror.Prefix,
			PathStyle:       cfg.Mirror.PathStyle,
			AccessKeyID:     cfg.Mirror.AccessKeyID,
			SecretAccessKey: cfg.Mirror.SecretAccessKey,
		}, s3.WithLogger(s.logger))
		if err != nil {
			return nil, err
		}
		s.mirror = m
	}

	hooks := observability.Hooks(s.metrics, s.logger)
	s.data, err = datastore.New(stores,
		datastore.WithRegistry(s.registry),
		datastore.WithDispatcher(s.dispatcher, s.transport),
		datastore.WithHooks(hooks),
		datastore.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}

	leaseOpts := []lease.Option{lease.WithTTL(cfg.Lease.TTL), lease.WithLogger(s.logger)}
	if s.redis != nil {
		leaseOpts = append(leaseOpts, lease.WithLocker(redisAdapter.NewLocker(s.redis, cfg.Backend.Redis.Prefix)))
	}
	engineOpts := []runtime.EngineOption{
		runtime.WithLeases(lease.NewManager(leaseOpts...)),
		runtime.WithLifecycleHooks(hooks),
		runtime.WithLogger(s.logger),
	}
	if s.mirror != nil {
		engineOpts = append(engineOpts, runtime.WithMirror(s.mirror))
	}
	s.engine = runtime.NewEngine(s.data, engineOpts...)
	return s, nil
}

// collections returns the factory for the configured backend. Every
// collection is instrumented with the store latency histogram.
func (s *Service) collections(ctx context.Context) (datastore.CollectionFactory, error) {
	var open datastore.CollectionFactory
	switch s.cfg.Backend.Type {
	case config.BackendMemory:
		open = func(string) (ports.Collection, error) { return memory.NewCollection(), nil }
	case config.BackendRedis:
		open = func(name string) (ports.Collection, error) {
			return redisAdapter.NewCollection(s.redis, name,
				redisAdapter.WithPrefix(s.cfg.Backend.Redis.Prefix),
				redisAdapter.WithLogger(s.logger)), nil
		}
	case config.BackendSQLite, config.BackendPostgres:
		d, err := sqldb.DialectFor(s.cfg.Backend.Type)
		if err != nil {
			return nil, err
		}
		dsn := s.cfg.Backend.DSN
		if dsn == "" {
			if err := os.MkdirAll(s.cfg.Storage.Root, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create storage root: %w", err)
			}
			// Spawned run processes share the file; wait out their writes.
			dsn = filepath.Join(s.cfg.Storage.Root, "scoserv.db") + "?_pragma=busy_timeout(5000)"
		}
		if s.db, err = sqldb.Open(ctx, d, dsn); err != nil {
			return nil, err
		}
		s.closers = append(s.closers, s.db.Close)
		open = func(name string) (ports.Collection, error) {
			return sqldb.NewCollection(ctx, s.db, d, name, sqldb.WithLogger(s.logger))
		}
	case config.BackendLoam:
		root := filepath.Join(s.cfg.Storage.Root, "db")
		open = func(name string) (ports.Collection, error) {
			return loamAdapter.NewCollection(root, name, loamAdapter.WithLogger(s.logger))
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", s.cfg.Backend.Type)
	}

	return func(name string) (ports.Collection, error) {
		c, err := open(name)
		if err != nil {
			return nil, err
		}
		return middleware.Chain(c, middleware.NewInstrumentation(name, s.metrics.StoreLatency, s.logger)), nil
	}, nil
}

func (s *Service) registerModels() error {
	if m := s.cfg.Model; m.Command != "" {
		s.registry.Register(m.Name, attribute.ModelParameters(), process.NewModel(process.ModelConfig{
			Name:    m.Name,
			Command: m.Command,
			Args:    m.Args,
			Output:  m.Output,
			Timeout: m.Timeout,
		}))
	}
	if s.cfg.Model.File == "" {
		return nil
	}
	models, err := process.LoadModels(s.cfg.Model.File)
	if err != nil {
		return err
	}
	for name, mc := range models {
		schema, err := mc.Schema()
		if err != nil {
			return err
		}
		s.registry.Register(name, schema, process.NewModel(mc))
	}
	return nil
}

func (s *Service) newDispatcher() (ports.Dispatcher, error) {
	d := s.cfg.Dispatch
	switch d.Transport {
	case config.TransportDirect:
		exe := d.Executable
		if exe == "" {
			var err error
			if exe, err = os.Executable(); err != nil {
				return nil, fmt.Errorf("failed to locate worker executable: %w", err)
			}
		}
		return process.NewSpawner(exe, process.WithArgs(s.spawnArgs...), process.WithLogger(s.logger)), nil
	case config.TransportRedis:
		return s.redisQueue(), nil
	case config.TransportAMQP:
		conn, err := s.amqpConnection()
		if err != nil {
			return nil, err
		}
		return amqp.NewPublisher(conn.Channel, amqp.WithQueue(d.Queue), amqp.WithLogger(s.logger))
	case config.TransportSocket:
		return socket.NewClient(d.SocketAddr, socket.WithTimeout(d.Timeout)), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", d.Transport)
	}
}

func (s *Service) redisQueue() *redisAdapter.Queue {
	opts := []redisAdapter.QueueOption{
		redisAdapter.WithQueuePrefix(s.cfg.Backend.Redis.Prefix),
		redisAdapter.WithQueueLogger(s.logger),
	}
	if s.cfg.Dispatch.Consumer != "" {
		opts = append(opts, redisAdapter.WithConsumerName(s.cfg.Dispatch.Consumer))
	}
	return redisAdapter.NewQueue(s.redis, s.cfg.Dispatch.Queue, opts...)
}

func (s *Service) amqpConnection() (*amqp.Connection, error) {
	if s.amqp != nil {
		return s.amqp, nil
	}
	conn, err := amqp.Dial(s.cfg.Dispatch.AMQPURL)
	if err != nil {
		return nil, err
	}
	s.amqp = conn
	s.closers = append(s.closers, conn.Close)
	return conn, nil
}

// Data returns the composition layer.
func (s *Service) Data() *datastore.DataStore { return s.data }

// Engine returns the run engine.
func (s *Service) Engine() *runtime.Engine { return s.engine }

// Metrics returns the service collectors.
func (s *Service) Metrics() *observability.Metrics { return s.metrics }

// Registry returns the model registry.
func (s *Service) Registry() *registry.Registry { return s.registry }

// Config returns the configuration the service was built from.
func (s *Service) Config() config.Config { return s.cfg }

// ErrNoQueue is returned by Consume when the transport has no queue.
var ErrNoQueue = errors.New("transport has no queue to consume")

// Consume executes queued runs until ctx is canceled.
func (s *Service) Consume(ctx context.Context) error {
	switch s.cfg.Dispatch.Transport {
	case config.TransportRedis:
		return s.redisQueue().Consume(ctx, s.engine.Handle)
	case config.TransportAMQP:
		conn, err := s.amqpConnection()
		if err != nil {
			return err
		}
		opts := []amqp.Option{amqp.WithQueue(s.cfg.Dispatch.Queue), amqp.WithLogger(s.logger)}
		if s.cfg.Dispatch.Consumer != "" {
			opts = append(opts, amqp.WithConsumerTag(s.cfg.Dispatch.Consumer))
		}
		c, err := amqp.NewConsumer(conn.Channel, opts...)
		if err != nil {
			return err
		}
		return c.Consume(ctx, s.engine.Handle)
	default:
		return fmt.Errorf("%w: %s", ErrNoQueue, s.cfg.Dispatch.Transport)
	}
}

// ServeEngine answers the socket protocol on ln until ctx is canceled.
func (s *Service) ServeEngine(ctx context.Context, ln net.Listener) error {
	srv := socket.NewServer(s.engine.Handle,
		socket.WithWorkers(s.cfg.Dispatch.Workers),
		socket.WithLogger(s.logger),
	)
	return srv.Serve(ctx, ln)
}

// Close releases connections in reverse order of opening.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
