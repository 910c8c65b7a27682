// Package registry implements the capability/type-indexed agent directory
// with heartbeat-based liveness and a background reaper.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kestrelhq/agentmesh/coordinator/errs"
	"github.com/kestrelhq/agentmesh/coordinator/observability"
	"github.com/kestrelhq/agentmesh/coordinator/types"
)

// Config controls liveness timing.
type Config struct {
	HeartbeatTimeout time.Duration
	CleanupInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		HeartbeatTimeout: 30 * time.Second,
		CleanupInterval:  60 * time.Second,
	}
}

// AgentInfo is one directory row.
type AgentInfo struct {
	ID            string
	Type          types.AgentType
	Capabilities  []types.AgentCapability
	Status        types.AgentStatus
	LastHeartbeat time.Time
	Metadata      map[string]string
}

func (a AgentInfo) clone() AgentInfo {
	caps := make([]types.AgentCapability, len(a.Capabilities))
	copy(caps, a.Capabilities)
	meta := make(map[string]string, len(a.Metadata))
	for k, v := range a.Metadata {
		meta[k] = v
	}
	a.Capabilities = caps
	a.Metadata = meta
	return a
}

// Registry is the authoritative agent directory. The primary map and both
// secondary indices are protected by a single RWMutex: every mutation
// updates all three under the writer lock so a concurrent reader never
// observes a partial update.
type Registry struct {
	cfg    Config
	logger *slog.Logger
	mm     *observability.MetricsManager

	mu     sync.RWMutex
	agents map[string]AgentInfo
	byCap  map[types.AgentCapability]map[string]struct{}
	byType map[types.AgentType]map[string]struct{}
}

// New constructs a Registry.
func New(cfg Config, obs *observability.Observability) (*Registry, error) {
	mm, err := observability.NewMetricsManager(obs)
	if err != nil {
		return nil, err
	}
	return &Registry{
		cfg:    cfg,
		logger: obs.Logger,
		mm:     mm,
		agents: make(map[string]AgentInfo),
		byCap:  make(map[types.AgentCapability]map[string]struct{}),
		byType: make(map[types.AgentType]map[string]struct{}),
	}, nil
}

// Register inserts info and appends its id to each capability and type
// index bucket.
func (r *Registry) Register(info AgentInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents[info.ID] = info.clone()

	for _, c := range info.Capabilities {
		bucket, ok := r.byCap[c]
		if !ok {
			bucket = make(map[string]struct{})
			r.byCap[c] = bucket
		}
		bucket[info.ID] = struct{}{}
	}

	bucket, ok := r.byType[info.Type]
	if !ok {
		bucket = make(map[string]struct{})
		r.byType[info.Type] = bucket
	}
	bucket[info.ID] = struct{}{}

	r.mm.AgentRegistered(context.Background(), info.Type.String())
	r.logger.Info("agent registered", "agent_id", info.ID, "agent_type", info.Type.String())
}

// Unregister removes id's row and every secondary-index reference,
// dropping any bucket left empty.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(id)
}

func (r *Registry) unregisterLocked(id string) {
	info, ok := r.agents[id]
	if !ok {
		return
	}
	delete(r.agents, id)

	for _, c := range info.Capabilities {
		if bucket, ok := r.byCap[c]; ok {
			delete(bucket, id)
			if len(bucket) == 0 {
				delete(r.byCap, c)
			}
		}
	}
	if bucket, ok := r.byType[info.Type]; ok {
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(r.byType, info.Type)
		}
	}

	r.logger.Info("agent unregistered", "agent_id", id)
}

// UpdateStatus sets id's status, failing with AgentNotFound if absent.
func (r *Registry) UpdateStatus(id string, status types.AgentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[id]
	if !ok {
		return errs.AgentNotFound(id)
	}
	info.Status = status
	r.agents[id] = info
	return nil
}

// Heartbeat refreshes id's LastHeartbeat, failing with AgentNotFound if
// absent. Calling it n times is equivalent to calling it once with respect
// to membership; LastHeartbeat advances monotonically.
func (r *Registry) Heartbeat(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[id]
	if !ok {
		return errs.AgentNotFound(id)
	}
	info.LastHeartbeat = time.Now()
	r.agents[id] = info
	return nil
}

// FindByCapability returns cloned rows of every agent declaring cap.
func (r *Registry) FindByCapability(capability types.AgentCapability) []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.byCap[capability]
	out := make([]AgentInfo, 0, len(bucket))
	for id := range bucket {
		out = append(out, r.agents[id].clone())
	}
	return out
}

// FindByType returns cloned rows of every agent of the given type.
func (r *Registry) FindByType(t types.AgentType) []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.byType[t]
	out := make([]AgentInfo, 0, len(bucket))
	for id := range bucket {
		out = append(out, r.agents[id].clone())
	}
	return out
}

// FindAlive returns cloned rows of every agent whose heartbeat age is
// below the configured timeout.
func (r *Registry) FindAlive() []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	out := make([]AgentInfo, 0, len(r.agents))
	for _, info := range r.agents {
		if now.Sub(info.LastHeartbeat) < r.cfg.HeartbeatTimeout {
			out = append(out, info.clone())
		}
	}
	return out
}

// FindIdle returns cloned rows of every agent reporting AgentStatusIdle.
func (r *Registry) FindIdle() []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AgentInfo, 0)
	for _, info := range r.agents {
		if info.Status == types.AgentStatusIdle {
			out = append(out, info.clone())
		}
	}
	return out
}

// CountByStatus returns how many registered agents currently report status.
func (r *Registry) CountByStatus(status types.AgentStatus) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, info := range r.agents {
		if info.Status == status {
			n++
		}
	}
	return n
}

// CleanupDead unregisters every agent whose heartbeat age is at least the
// configured timeout and returns their ids.
func (r *Registry) CleanupDead() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var dead []string
	for id, info := range r.agents {
		if now.Sub(info.LastHeartbeat) >= r.cfg.HeartbeatTimeout {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		r.unregisterLocked(id)
		r.mm.AgentEvicted(context.Background())
	}
	if len(dead) > 0 {
		r.logger.Warn("reaped dead agents", "count", len(dead), "agent_ids", dead)
	}
	return dead
}

// StartReaper spawns the periodic CleanupDead goroutine. It stops when ctx
// is cancelled.
func (r *Registry) StartReaper(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.CleanupDead()
			}
		}
	}()
}
