package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/soulscout/soulscout/internal/bus"
	"github.com/soulscout/soulscout/internal/config"
	"github.com/soulscout/soulscout/internal/health"
	"github.com/soulscout/soulscout/internal/store"
)

// runtime holds the shared collaborators every service starts from.
type runtime struct {
	cfg      config.Config
	bus      *bus.RedisBus
	store    *store.Store
	consumer string
}

// newRuntime loads config, connects the bus and the store, and bootstraps
// the schema. The caller owns Close.
func newRuntime(ctx context.Context, service string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ServiceName = service
	applyLogLevel(cfg.LogLevel)

	b, err := bus.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connect bus: %w", err)
	}

	st, err := store.Open(cfg.PostgresDSN)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Bootstrap(ctx); err != nil {
		log.Warn().Err(err).Msg("schema bootstrap failed")
	}

	return &runtime{
		cfg:      cfg,
		bus:      b,
		store:    st,
		consumer: bus.ConsumerName(service, os.Getpid()),
	}, nil
}

func (r *runtime) Close() {
	if err := r.store.Close(); err != nil {
		log.Warn().Err(err).Msg("store close failed")
	}
	if err := r.bus.Close(); err != nil {
		log.Warn().Err(err).Msg("bus close failed")
	}
}

// healthServer builds the per-service listener probing the bus and store.
func (r *runtime) healthServer(service string) *health.Server {
	addr := fmt.Sprintf("%s:%d", r.cfg.ListenAddr, r.cfg.ListenPort)
	return health.NewServer(service, addr, map[string]health.Checker{
		"bus":   r.bus.Ping,
		"store": r.store.Ping,
	})
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// ignoreCancel maps context cancellation to a clean exit.
func ignoreCancel(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
