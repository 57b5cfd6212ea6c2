package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/intentflow/internal/config"
	"github.com/aretw0/intentflow/internal/metrics"
	"github.com/aretw0/intentflow/pkg/adapters/file"
	"github.com/aretw0/intentflow/pkg/adapters/memory"
	natsadapter "github.com/aretw0/intentflow/pkg/adapters/nats"
	redisadapter "github.com/aretw0/intentflow/pkg/adapters/redis"
	"github.com/aretw0/intentflow/pkg/auction"
	"github.com/aretw0/intentflow/pkg/lifecycle"
	"github.com/aretw0/intentflow/pkg/persistence/middleware"
	"github.com/aretw0/intentflow/pkg/ports"
	"github.com/aretw0/intentflow/pkg/prover"
	"github.com/aretw0/intentflow/pkg/session"
	"github.com/aretw0/intentflow/pkg/simulate"
	"github.com/aretw0/intentflow/pkg/solverapi"
	"github.com/redis/go-redis/v9"
)

// Runtime holds everything a command needs, built from one Config.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Manager *session.Manager
	// Backend is the snapshot store before any middleware.
	Backend ports.SnapshotStore

	closers []func() error
}

// Bootstrap wires stores, replication, locking and middleware from cfg.
// The caller must Close the runtime.
func Bootstrap(cfg *config.Config, logger *slog.Logger) (_ *Runtime, err error) {
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: metrics.New(logger)}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	var redisClient *redis.Client
	sharedRedis := func() *redis.Client {
		if redisClient == nil {
			r := cfg.Store.Redis
			redisClient = redis.NewClient(&redis.Options{Addr: r.Addr, Password: r.Password, DB: r.DB})
			rt.closers = append(rt.closers, redisClient.Close)
		}
		return redisClient
	}

	switch cfg.Store.Backend {
	case config.BackendFile:
		rt.Backend = file.New(cfg.Store.Dir)
	case config.BackendRedis:
		rt.Backend = redisadapter.NewFromClient(sharedRedis(),
			redisadapter.WithPrefix(cfg.Store.Redis.Prefix),
			redisadapter.WithTTL(cfg.Store.TTL),
		)
	default:
		rt.Backend = memory.NewStore()
	}

	store, err := wrapStore(rt.Backend, cfg.Security)
	if err != nil {
		return nil, err
	}

	mgrOpts := []session.Option{session.WithLogger(logger)}

	switch cfg.Replication.Backend {
	case config.BackendMemory:
		mgrOpts = append(mgrOpts, session.WithReplicator(memory.NewBus()))
	case config.BackendFile:
		mgrOpts = append(mgrOpts, session.WithReplicator(
			file.NewWatcher(cfg.Store.Dir, store, file.WithWatcherLogger(logger)),
		))
	case config.BackendRedis:
		mgrOpts = append(mgrOpts, session.WithReplicator(
			redisadapter.NewReplicator(sharedRedis(), cfg.Store.Redis.Prefix, logger),
		))
	case config.BackendNATS:
		r, err := natsadapter.Connect(cfg.Replication.NATSURL, cfg.Replication.Prefix, logger)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, r.Close)
		mgrOpts = append(mgrOpts, session.WithReplicator(r))
	}

	switch cfg.Lock.Backend {
	case config.BackendMemory:
		mgrOpts = append(mgrOpts, session.WithLocker(memory.NewLocker()))
	case config.BackendRedis:
		mgrOpts = append(mgrOpts, session.WithLocker(redisadapter.NewLocker(sharedRedis(), cfg.Store.Redis.Prefix)))
	}

	storeOpts := []lifecycle.Option{
		lifecycle.WithStrictStepOrder(cfg.Lifecycle.StrictStepOrder),
		lifecycle.WithHooks(rt.Metrics.Hooks()),
	}
	if cfg.Lock.TTL > 0 {
		storeOpts = append(storeOpts, lifecycle.WithLockTTL(cfg.Lock.TTL))
	}
	if len(cfg.Lifecycle.Templates) > 0 {
		storeOpts = append(storeOpts, lifecycle.WithTemplates(cfg.Lifecycle.Templates))
	}
	mgrOpts = append(mgrOpts, session.WithStoreOptions(storeOpts...))

	rt.Manager = session.NewManager(store, mgrOpts...)
	logger.Debug("Runtime ready",
		"store", cfg.Store.Backend,
		"replication", cfg.Replication.Backend,
		"lock", cfg.Lock.Backend,
	)
	return rt, nil
}

// wrapStore applies PII masking outside encryption, so masked values are
// what gets sealed.
func wrapStore(base ports.SnapshotStore, sec config.SecurityConfig) (ports.SnapshotStore, error) {
	var mws []middleware.Middleware
	if sec.MaskPII {
		fields := sec.PIIFields
		if len(fields) == 0 {
			fields = middleware.DefaultPIIFields
		}
		mws = append(mws, middleware.NewPIIMiddleware(fields))
	}
	active, fallback, err := sec.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return middleware.Chain(base, mws...), nil
}

// Open returns the named workspace, or the configured one when name is empty.
func (rt *Runtime) Open(ctx context.Context, name string) (*lifecycle.Store, error) {
	if name == "" {
		name = rt.Config.Workspace
	}
	return rt.Manager.Open(ctx, name)
}

// SolverClient returns a client for the configured solver backend.
func (rt *Runtime) SolverClient() *solverapi.Client {
	opts := []solverapi.Option{solverapi.WithLogger(rt.Logger)}
	if rt.Config.Solver.Timeout > 0 {
		opts = append(opts, solverapi.WithHTTPClient(&http.Client{Timeout: rt.Config.Solver.Timeout}))
	}
	return solverapi.New(rt.Config.Solver.BaseURL, opts...)
}

// Pipeline builds a simulation pipeline over st from the simulate settings.
func (rt *Runtime) Pipeline(st *lifecycle.Store, opts ...simulate.Option) (*simulate.Pipeline, error) {
	strategy, err := auction.ParseStrategy(rt.Config.Simulate.Strategy)
	if err != nil {
		return nil, err
	}
	base := []simulate.Option{
		simulate.WithDelay(rt.Config.Simulate.Delay),
		simulate.WithUser(rt.Config.Simulate.User),
		simulate.WithLogger(rt.Logger),
		simulate.WithAuctioneer(auction.New(
			auction.WithStrategy(strategy),
			auction.WithVerifier(prover.VerifySolverProof),
			auction.WithLogger(rt.Logger),
		)),
	}
	return simulate.New(st, append(base, opts...)...), nil
}

// Close stops every workspace follower, then the transports.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.Manager != nil {
		errs = append(errs, rt.Manager.Close())
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, fmt.Errorf("close: %w", err))
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
