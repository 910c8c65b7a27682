package main

import (
	"context"
	"fmt"

	"github.com/kestrelhq/agentmesh/coordinator/bus"
	"github.com/kestrelhq/agentmesh/coordinator/config"
	"github.com/kestrelhq/agentmesh/coordinator/manager"
	"github.com/kestrelhq/agentmesh/coordinator/memory"
	"github.com/kestrelhq/agentmesh/coordinator/observability"
	"github.com/kestrelhq/agentmesh/coordinator/registry"
	"github.com/kestrelhq/agentmesh/coordinator/shared"
	"github.com/kestrelhq/agentmesh/coordinator/taskqueue"
)

// runtime bundles the pieces every subcommand boots fresh: a Manager
// wired to a bus, a registry, and the global context, plus a standalone
// shared memory pool and task queue that the agents package workers are
// handed directly (the manager itself only drives workers, it does not
// own their auxiliary collaborators).
type runtime struct {
	cfg         config.AgentManagerConfig
	obs         *observability.Observability
	bus         *bus.Bus
	reg         *registry.Registry
	pool        *memory.Pool
	global      *shared.GlobalContext
	queue       *taskqueue.Queue
	manager     *manager.Manager
	stopReapers context.CancelFunc
}

func bootRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	cfg.ServiceName = serviceName

	obs, err := observability.New(observability.Config{
		ServiceName: cfg.ServiceName,
		LogLevel:    cfg.LogLevel,
		HealthAddr:  cfg.HealthAddr,
	})
	if err != nil {
		return nil, fmt.Errorf("building observability bundle: %w", err)
	}

	b, err := bus.New(cfg.BusConfig(), obs)
	if err != nil {
		return nil, fmt.Errorf("constructing bus: %w", err)
	}
	reg, err := registry.New(cfg.RegistryConfigValue(), obs)
	if err != nil {
		return nil, fmt.Errorf("constructing registry: %w", err)
	}
	mm, err := observability.NewMetricsManager(obs)
	if err != nil {
		return nil, fmt.Errorf("constructing metrics manager: %w", err)
	}
	pool := memory.New(cfg.MemoryConfigValue()).WithMetrics(mm)
	global := shared.New(cfg.GlobalConfig())
	queue := taskqueue.New().WithMetrics(mm)

	mgr, err := manager.New(cfg.ManagerConfig(), b, reg, global, obs)
	if err != nil {
		return nil, fmt.Errorf("constructing manager: %w", err)
	}

	reaperCtx, stopReapers := context.WithCancel(context.Background())
	reg.StartReaper(reaperCtx)
	pool.StartReaper(reaperCtx)

	return &runtime{
		cfg:         cfg,
		obs:         obs,
		bus:         b,
		reg:         reg,
		pool:        pool,
		global:      global,
		queue:       queue,
		manager:     mgr,
		stopReapers: stopReapers,
	}, nil
}

func (rt *runtime) shutdown(ctx context.Context) {
	rt.stopReapers()
	rt.manager.ShutdownAll()
	_ = rt.obs.Shutdown(ctx)
}
