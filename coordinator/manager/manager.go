// Package manager implements the lifecycle controller: spawning workers as
// concurrent driver goroutines, binding them to bus receivers, driving
// heartbeats, propagating shutdown, and enforcing the global worker cap.
// The driver retains sole ownership of its worker and dispatches
// ProcessMessage directly from its select loop.
package manager

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrelhq/agentmesh/coordinator/bus"
	"github.com/kestrelhq/agentmesh/coordinator/errs"
	"github.com/kestrelhq/agentmesh/coordinator/message"
	"github.com/kestrelhq/agentmesh/coordinator/observability"
	"github.com/kestrelhq/agentmesh/coordinator/registry"
	"github.com/kestrelhq/agentmesh/coordinator/shared"
	"github.com/kestrelhq/agentmesh/coordinator/types"
	"github.com/kestrelhq/agentmesh/coordinator/worker"
)

// Config controls the manager's own behavior, independent of the bus and
// registry configs it wires in.
type Config struct {
	MaxAgents         int
	EnableAutoScaling bool
	HeartbeatInterval time.Duration
	TerminateTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAgents:         100,
		EnableAutoScaling: false,
		HeartbeatInterval: 10 * time.Second,
		TerminateTimeout:  10 * time.Second,
	}
}

// runtimeRow is the manager's record for one spawned worker, independent
// of the registry's AgentInfo: it tracks the driver's own goroutine
// lifecycle, not the worker's self-reported status.
type runtimeRow struct {
	behavior worker.Behavior
	cancel   context.CancelFunc
	done     chan struct{}
}

// Manager owns agent lifetimes and wires the bus, registry, and global
// context together for host applications.
type Manager struct {
	cfg    Config
	bus    *bus.Bus
	reg    *registry.Registry
	global *shared.GlobalContext
	logger *slog.Logger
	mm     *observability.MetricsManager

	mu   sync.Mutex
	rows map[string]*runtimeRow

	statsMu        sync.Mutex
	totalMessages  uint64
	failedMessages uint64
}

// New constructs a Manager wired to b and r, sharing global across every
// worker it spawns.
func New(cfg Config, b *bus.Bus, r *registry.Registry, global *shared.GlobalContext, obs *observability.Observability) (*Manager, error) {
	mm, err := observability.NewMetricsManager(obs)
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:    cfg,
		bus:    b,
		reg:    r,
		global: global,
		logger: obs.Logger,
		mm:     mm,
		rows:   make(map[string]*runtimeRow),
	}, nil
}

// Spawn validates the worker cap, initializes w with the shared global
// context, registers it with the bus and registry, spawns its driver, and
// returns its id.
func (m *Manager) Spawn(ctx context.Context, w worker.Behavior) (string, error) {
	m.mu.Lock()
	if len(m.rows) >= m.cfg.MaxAgents {
		m.mu.Unlock()
		return "", errs.ResourceExhausted("max_agents reached")
	}
	// Reserve the slot under the lock before initialization so a racing
	// Spawn cannot both pass the capacity check.
	m.rows[w.ID()] = nil
	m.mu.Unlock()

	if err := w.Initialize(ctx, m.global); err != nil {
		m.mu.Lock()
		delete(m.rows, w.ID())
		m.mu.Unlock()
		return "", err
	}

	recv, err := m.bus.Register(w.ID())
	if err != nil {
		m.mu.Lock()
		delete(m.rows, w.ID())
		m.mu.Unlock()
		return "", err
	}

	m.reg.Register(registry.AgentInfo{
		ID:            w.ID(),
		Type:          w.Type(),
		Capabilities:  w.Capabilities(),
		Status:        types.AgentStatusActive,
		LastHeartbeat: time.Now(),
	})

	driverCtx, cancel := context.WithCancel(context.Background())
	row := &runtimeRow{behavior: w, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.rows[w.ID()] = row
	m.mu.Unlock()

	go m.drive(driverCtx, w, recv, row.done)

	m.logger.Info("agent spawned", "agent_id", w.ID(), "agent_type", w.Type().String())
	return w.ID(), nil
}

// drive is the per-worker driver goroutine and the only caller of w's
// ProcessMessage and Shutdown. Its select loop handles heartbeats and
// inbound message dispatch, and observes the exit of the worker's Run
// loop, which executes in its own sub-goroutine. Run and ProcessMessage
// can therefore overlap in time, so a worker guards any state they share
// with its own locking. Manager.Status and StatusAll call w.Status from
// the caller's goroutine.
func (m *Manager) drive(ctx context.Context, w worker.Behavior, recv *bus.Receiver, done chan struct{}) {
	defer close(done)

	heartbeat := time.NewTicker(m.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- w.Run(ctx)
	}()

	paused := false
	var held []message.Message

	handle := func(msg message.Message) (stop bool) {
		if cmd, ok := msg.Kind.IsControl(); ok {
			switch cmd {
			case message.ControlStop, message.ControlShutdown:
				_ = w.Shutdown(context.Background())
				return true
			case message.ControlPause:
				paused = true
				return false
			case message.ControlResume:
				paused = false
				for _, h := range held {
					m.dispatch(ctx, w, h)
				}
				held = nil
				return false
			}
		}
		if paused {
			held = append(held, msg)
			return false
		}
		m.dispatch(ctx, w, msg)
		return false
	}

	for {
		// Receivers prefer point-to-point over broadcast when both are
		// ready: check p2p non-blockingly before falling into the main
		// multiplexed select.
		select {
		case msg := <-recv.P2PChan():
			if handle(msg) {
				return
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			_ = w.Shutdown(context.Background())
			return

		case err := <-runErrCh:
			if err != nil {
				m.logger.Error("worker run loop exited with error", "agent_id", w.ID(), "error", err)
			}
			// The worker's own loop ending does not end the driver: it
			// keeps serving heartbeats and messages until shutdown.
			runErrCh = nil

		case <-heartbeat.C:
			if err := m.reg.Heartbeat(w.ID()); err != nil {
				m.logger.Error("heartbeat failed, stopping heartbeat sub-task", "agent_id", w.ID(), "error", err)
				heartbeat.Stop()
			}

		case msg := <-recv.P2PChan():
			if handle(msg) {
				return
			}

		case msg := <-recv.BroadcastChan():
			if handle(msg) {
				return
			}
		}
	}
}

// dispatch implements the per-message rule from the driver: StatusUpdate
// carrying a status field updates the registry; everything else goes to
// the worker's ProcessMessage, with any reply sent back through the bus.
func (m *Manager) dispatch(ctx context.Context, w worker.Behavior, msg message.Message) {
	m.statsMu.Lock()
	m.totalMessages++
	m.statsMu.Unlock()

	if msg.Kind == message.KindStatusUpdate {
		if payload, ok := msg.Payload.(map[string]any); ok {
			if s, ok := payload["status"].(string); ok {
				if err := m.reg.UpdateStatus(w.ID(), types.AgentStatus(s)); err != nil {
					m.logger.Warn("status update failed", "agent_id", w.ID(), "error", err)
				}
			}
		}
		return
	}

	reply, err := w.ProcessMessage(ctx, msg)
	if err != nil {
		m.statsMu.Lock()
		m.failedMessages++
		m.statsMu.Unlock()
		m.logger.Error("process_message failed", "agent_id", w.ID(), "error", err)
		return
	}
	if reply != nil {
		if err := m.bus.Send(ctx, *reply); err != nil {
			m.statsMu.Lock()
			m.failedMessages++
			m.statsMu.Unlock()
			m.logger.Warn("reply send failed", "agent_id", w.ID(), "error", err)
		}
	}
}

// Terminate signals id's driver to stop, waits up to TerminateTimeout,
// then unregisters it from the bus and registry and drops its runtime
// row. AgentNotFound if id is unknown.
func (m *Manager) Terminate(id string) error {
	m.mu.Lock()
	row, ok := m.rows[id]
	m.mu.Unlock()
	if !ok || row == nil {
		return errs.AgentNotFound(id)
	}

	row.cancel()
	select {
	case <-row.done:
	case <-time.After(m.cfg.TerminateTimeout):
		m.logger.Warn("terminate timed out waiting for driver exit", "agent_id", id)
	}

	m.bus.Unregister(id)
	m.reg.Unregister(id)

	m.mu.Lock()
	delete(m.rows, id)
	m.mu.Unlock()

	m.logger.Info("agent terminated", "agent_id", id)
	return nil
}

// ShutdownAll iterates Terminate over the current id set, logging
// failures but never aborting.
func (m *Manager) ShutdownAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Terminate(id); err != nil {
			m.logger.Warn("shutdown_all: terminate failed", "agent_id", id, "error", err)
		}
	}
}

// Send is a thin passthrough to the bus.
func (m *Manager) Send(ctx context.Context, msg message.Message) error {
	return m.bus.Send(ctx, msg)
}

// Broadcast is a thin passthrough to the bus.
func (m *Manager) Broadcast(ctx context.Context, msg message.Message) error {
	return m.bus.Broadcast(ctx, msg)
}

// FindByCapability is a registry passthrough.
func (m *Manager) FindByCapability(cap types.AgentCapability) []registry.AgentInfo {
	return m.reg.FindByCapability(cap)
}

// FindByType is a registry passthrough.
func (m *Manager) FindByType(t types.AgentType) []registry.AgentInfo {
	return m.reg.FindByType(t)
}

// FindIdle is a registry passthrough.
func (m *Manager) FindIdle() []registry.AgentInfo {
	return m.reg.FindIdle()
}

// Status returns id's worker-reported self-description, if spawned.
func (m *Manager) Status(id string) (worker.Status, bool) {
	m.mu.Lock()
	row, ok := m.rows[id]
	m.mu.Unlock()
	if !ok || row == nil {
		return worker.Status{}, false
	}
	return row.behavior.Status(), true
}

// StatusAll returns every currently spawned worker's self-description.
func (m *Manager) StatusAll() []worker.Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]worker.Status, 0, len(m.rows))
	for _, row := range m.rows {
		if row != nil {
			out = append(out, row.behavior.Status())
		}
	}
	return out
}

// Stats is the aggregate view over agent count, liveness, and message
// counters.
type Stats struct {
	TotalAgents    int
	Alive          int
	Idle           int
	Busy           int
	TotalMessages  uint64
	FailedMessages uint64
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	total := len(m.rows)
	m.mu.Unlock()

	alive := len(m.reg.FindAlive())
	idle := len(m.reg.FindIdle())
	busy := m.reg.CountByStatus(types.AgentStatusBusy)

	m.statsMu.Lock()
	tm, fm := m.totalMessages, m.failedMessages
	m.statsMu.Unlock()

	return Stats{
		TotalAgents:    total,
		Alive:          alive,
		Idle:           idle,
		Busy:           busy,
		TotalMessages:  tm,
		FailedMessages: fm,
	}
}
