package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kestrelhq/agentmesh/coordinator/errs"
	"github.com/kestrelhq/agentmesh/coordinator/observability"
	"github.com/kestrelhq/agentmesh/coordinator/types"
)

func newTestRegistry(t *testing.T, cfg Config) *Registry {
	t.Helper()
	r, err := New(cfg, observability.NoOp())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func sampleInfo(id string, typ types.AgentType, caps ...types.AgentCapability) AgentInfo {
	return AgentInfo{
		ID:            id,
		Type:          typ,
		Capabilities:  caps,
		Status:        types.AgentStatusActive,
		LastHeartbeat: time.Now(),
	}
}

func TestRegisterIndexesCapabilityAndType(t *testing.T) {
	r := newTestRegistry(t, DefaultConfig())
	r.Register(sampleInfo("executor-1", types.AgentTypeExecutor, types.CapabilityTaskExecution))

	byCap := r.FindByCapability(types.CapabilityTaskExecution)
	if len(byCap) != 1 || byCap[0].ID != "executor-1" {
		t.Fatalf("FindByCapability = %+v, want one row for executor-1", byCap)
	}

	byType := r.FindByType(types.AgentTypeExecutor)
	if len(byType) != 1 || byType[0].ID != "executor-1" {
		t.Fatalf("FindByType = %+v, want one row for executor-1", byType)
	}
}

func TestUnregisterRemovesFromAllIndices(t *testing.T) {
	r := newTestRegistry(t, DefaultConfig())
	r.Register(sampleInfo("executor-1", types.AgentTypeExecutor, types.CapabilityTaskExecution))
	r.Unregister("executor-1")

	if got := r.FindByCapability(types.CapabilityTaskExecution); len(got) != 0 {
		t.Errorf("FindByCapability after Unregister = %+v, want empty", got)
	}
	if got := r.FindByType(types.AgentTypeExecutor); len(got) != 0 {
		t.Errorf("FindByType after Unregister = %+v, want empty", got)
	}
}

func TestHeartbeatAndUpdateStatusAgentNotFound(t *testing.T) {
	r := newTestRegistry(t, DefaultConfig())

	if err := r.Heartbeat("ghost"); !errors.As(err, new(*errs.AgentNotFoundError)) {
		t.Errorf("Heartbeat(ghost) = %v, want AgentNotFoundError", err)
	}
	if err := r.UpdateStatus("ghost", types.AgentStatusIdle); !errors.As(err, new(*errs.AgentNotFoundError)) {
		t.Errorf("UpdateStatus(ghost) = %v, want AgentNotFoundError", err)
	}
}

func TestHeartbeatIdempotentMembershipMonotonicTimestamp(t *testing.T) {
	r := newTestRegistry(t, DefaultConfig())
	r.Register(sampleInfo("a1", types.AgentTypeMonitor, types.CapabilityMonitoring))

	var last time.Time
	for i := 0; i < 5; i++ {
		if err := r.Heartbeat("a1"); err != nil {
			t.Fatalf("Heartbeat #%d: %v", i, err)
		}
		alive := r.FindAlive()
		if len(alive) != 1 {
			t.Fatalf("FindAlive after heartbeat #%d = %+v, want exactly one row", i, alive)
		}
		if !alive[0].LastHeartbeat.After(last) && i > 0 {
			t.Errorf("heartbeat #%d did not advance LastHeartbeat", i)
		}
		last = alive[0].LastHeartbeat
		time.Sleep(time.Millisecond)
	}
}

// TestHeartbeatEviction: an agent whose heartbeat age exceeds the
// configured timeout is evicted by CleanupDead, and subsequent queries no
// longer return it.
func TestHeartbeatEviction(t *testing.T) {
	r := newTestRegistry(t, Config{HeartbeatTimeout: 20 * time.Millisecond, CleanupInterval: time.Hour})
	r.Register(sampleInfo("x", types.AgentTypeMonitor, types.CapabilityMonitoring))

	time.Sleep(30 * time.Millisecond)

	evicted := r.CleanupDead()
	if len(evicted) != 1 || evicted[0] != "x" {
		t.Fatalf("CleanupDead() = %v, want [x]", evicted)
	}
	if got := r.FindByCapability(types.CapabilityMonitoring); len(got) != 0 {
		t.Errorf("FindByCapability after eviction = %+v, want empty", got)
	}
}

func TestFindIdle(t *testing.T) {
	r := newTestRegistry(t, DefaultConfig())
	r.Register(sampleInfo("idle-1", types.AgentTypeExecutor))
	r.Register(sampleInfo("busy-1", types.AgentTypeExecutor))
	r.UpdateStatus("idle-1", types.AgentStatusIdle)
	r.UpdateStatus("busy-1", types.AgentStatusBusy)

	idle := r.FindIdle()
	if len(idle) != 1 || idle[0].ID != "idle-1" {
		t.Fatalf("FindIdle = %+v, want only idle-1", idle)
	}
}

func TestStartReaperEvictsOnTimer(t *testing.T) {
	r := newTestRegistry(t, Config{HeartbeatTimeout: 10 * time.Millisecond, CleanupInterval: 10 * time.Millisecond})
	r.Register(sampleInfo("x", types.AgentTypeMonitor))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartReaper(ctx)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(r.FindByType(types.AgentTypeMonitor)) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("reaper did not evict the stale agent within the deadline")
}

func TestConcurrentRegisterUnregisterNoTornIndex(t *testing.T) {
	r := newTestRegistry(t, DefaultConfig())
	const n = 100
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			r.Register(sampleInfo(id, types.AgentTypeExecutor, types.CapabilityTaskExecution))
			r.Heartbeat(id)
			r.FindByCapability(types.CapabilityTaskExecution)
			r.Unregister(id)
		}(i)
	}
	wg.Wait()

	// Every goroutine unregistered its id after registering it, so both
	// secondary indices must be empty along with the primary map.
	if got := r.FindByCapability(types.CapabilityTaskExecution); len(got) != 0 {
		t.Errorf("FindByCapability after concurrent churn = %+v, want empty", got)
	}
	if got := r.FindByType(types.AgentTypeExecutor); len(got) != 0 {
		t.Errorf("FindByType after concurrent churn = %+v, want empty", got)
	}
}
