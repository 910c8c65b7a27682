// Package memory implements the two-tier (global + per-agent) TTL-expiring
// shared memory pool.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kestrelhq/agentmesh/coordinator/errs"
	"github.com/kestrelhq/agentmesh/coordinator/observability"
	"github.com/kestrelhq/agentmesh/coordinator/types"
)

// Entry is one key/value record in either tier.
type Entry struct {
	Key         string
	Value       any
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AccessLevel types.AccessLevel
	TTL         *time.Duration
	Metadata    map[string]string
}

// Expired reports whether the entry's TTL has elapsed as of at. Expiry is
// based on CreatedAt, not UpdatedAt — an entry that is frequently updated
// still expires on its original schedule.
func (e Entry) Expired(at time.Time) bool {
	if e.TTL == nil {
		return false
	}
	return at.Sub(e.CreatedAt) > *e.TTL
}

// Config bounds each tier's key capacity (zero means unbounded) and sets
// the reaper's sweep interval.
type Config struct {
	GlobalCapacity   int
	PerAgentCapacity int
	CleanupInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{GlobalCapacity: 0, PerAgentCapacity: 0, CleanupInterval: 60 * time.Second}
}

// Pool is the shared scratchpad. The global tier is one map guarded by its
// own lock; the per-agent tier is an outer map (one lock) of inner maps,
// each accessed through the outer lock.
type Pool struct {
	cfg Config
	mm  *observability.MetricsManager

	globalMu sync.RWMutex
	global   map[string]Entry

	agentsMu sync.RWMutex
	agents   map[string]map[string]Entry
}

func New(cfg Config) *Pool {
	return &Pool{
		cfg:    cfg,
		global: make(map[string]Entry),
		agents: make(map[string]map[string]Entry),
	}
}

// WithMetrics attaches a MetricsManager so CleanupExpired reports the
// number of entries it reaps through it. Optional, like taskqueue.Queue's
// equivalent: a Pool never given one just skips the counter.
func (p *Pool) WithMetrics(mm *observability.MetricsManager) *Pool {
	p.mm = mm
	return p
}

// SetGlobal inserts or updates a global-tier entry. Inserting a new key
// when the tier is already at capacity fails with ResourceExhausted;
// updating an existing key always succeeds.
func (p *Pool) SetGlobal(e Entry) error {
	p.globalMu.Lock()
	defer p.globalMu.Unlock()

	_, exists := p.global[e.Key]
	if !exists && p.cfg.GlobalCapacity > 0 && len(p.global) >= p.cfg.GlobalCapacity {
		return errs.ResourceExhausted("global memory pool at capacity")
	}
	if exists {
		e.CreatedAt = p.global[e.Key].CreatedAt
	} else if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.UpdatedAt = time.Now()
	p.global[e.Key] = e
	return nil
}

// GetGlobal returns the entry for key, or false if absent or expired.
func (p *Pool) GetGlobal(key string) (Entry, bool) {
	p.globalMu.RLock()
	defer p.globalMu.RUnlock()

	e, ok := p.global[key]
	if !ok || e.Expired(time.Now()) {
		return Entry{}, false
	}
	return e, true
}

// DeleteGlobal removes key from the global tier.
func (p *Pool) DeleteGlobal(key string) {
	p.globalMu.Lock()
	defer p.globalMu.Unlock()
	delete(p.global, key)
}

// ListGlobalKeys returns the global tier's current key set.
func (p *Pool) ListGlobalKeys() []string {
	p.globalMu.RLock()
	defer p.globalMu.RUnlock()

	keys := make([]string, 0, len(p.global))
	for k := range p.global {
		keys = append(keys, k)
	}
	return keys
}

// SetAgent inserts or updates a per-agent entry, applying the same
// new-key-vs-capacity rule as SetGlobal, scoped to agentID's own map.
func (p *Pool) SetAgent(agentID string, e Entry) error {
	p.agentsMu.Lock()
	defer p.agentsMu.Unlock()

	inner, ok := p.agents[agentID]
	if !ok {
		inner = make(map[string]Entry)
		p.agents[agentID] = inner
	}

	_, exists := inner[e.Key]
	if !exists && p.cfg.PerAgentCapacity > 0 && len(inner) >= p.cfg.PerAgentCapacity {
		return errs.ResourceExhausted("per-agent memory pool at capacity for " + agentID)
	}
	if exists {
		e.CreatedAt = inner[e.Key].CreatedAt
	} else if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.UpdatedAt = time.Now()
	inner[e.Key] = e
	return nil
}

// GetAgent returns agentID's entry for key, or false if absent or expired.
func (p *Pool) GetAgent(agentID, key string) (Entry, bool) {
	p.agentsMu.RLock()
	defer p.agentsMu.RUnlock()

	inner, ok := p.agents[agentID]
	if !ok {
		return Entry{}, false
	}
	e, ok := inner[key]
	if !ok || e.Expired(time.Now()) {
		return Entry{}, false
	}
	return e, true
}

// DeleteAgent removes key from agentID's map.
func (p *Pool) DeleteAgent(agentID, key string) {
	p.agentsMu.Lock()
	defer p.agentsMu.Unlock()
	if inner, ok := p.agents[agentID]; ok {
		delete(inner, key)
	}
}

// ClearAgent drops agentID's entire per-agent map.
func (p *Pool) ClearAgent(agentID string) {
	p.agentsMu.Lock()
	defer p.agentsMu.Unlock()
	delete(p.agents, agentID)
}

// ListAgentKeys returns agentID's current key set.
func (p *Pool) ListAgentKeys(agentID string) []string {
	p.agentsMu.RLock()
	defer p.agentsMu.RUnlock()

	inner := p.agents[agentID]
	keys := make([]string, 0, len(inner))
	for k := range inner {
		keys = append(keys, k)
	}
	return keys
}

// CleanupExpired reaps expired entries from both tiers and returns the
// total count removed.
func (p *Pool) CleanupExpired() int {
	now := time.Now()
	count := 0

	p.globalMu.Lock()
	for k, e := range p.global {
		if e.Expired(now) {
			delete(p.global, k)
			count++
		}
	}
	p.globalMu.Unlock()

	p.agentsMu.Lock()
	for _, inner := range p.agents {
		for k, e := range inner {
			if e.Expired(now) {
				delete(inner, k)
				count++
			}
		}
	}
	p.agentsMu.Unlock()

	if p.mm != nil {
		p.mm.MemoryEntriesReaped(context.Background(), count)
	}
	return count
}

// StartReaper spawns the periodic CleanupExpired goroutine at the
// configured CleanupInterval (falling back to 60s if unset). It stops when
// ctx is cancelled, matching registry.Registry's reaper shape.
func (p *Pool) StartReaper(ctx context.Context) {
	interval := p.cfg.CleanupInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.CleanupExpired()
			}
		}
	}()
}
