// Package worker defines the Behavior contract every worker implementation
// satisfies, plus Base, a small embeddable helper that covers the
// boilerplate shared by concrete workers.
package worker

import (
	"context"

	"github.com/kestrelhq/agentmesh/coordinator/message"
	"github.com/kestrelhq/agentmesh/coordinator/shared"
	"github.com/kestrelhq/agentmesh/coordinator/types"
)

// Status is the self-description a worker reports, the agent-card style
// snapshot used by the manager's status()/status_all() views.
type Status struct {
	ID           string
	Type         types.AgentType
	AgentStatus  types.AgentStatus
	Capabilities []types.AgentCapability
	CurrentTask  *string
}

// Behavior is the small capability set every worker kind implements.
// Concrete variants are Master, Planner, Executor, Verifier, and Monitor
// plus any operator-defined Custom type; dispatch is per-message, not
// through an inheritance hierarchy.
type Behavior interface {
	ID() string
	Type() types.AgentType
	Capabilities() []types.AgentCapability

	// Initialize is called once by Manager.Spawn before the driver
	// starts, with the runtime's shared GlobalContext.
	Initialize(ctx context.Context, global *shared.GlobalContext) error

	// ProcessMessage handles one inbound message not otherwise
	// intercepted by the driver (Control/StatusUpdate are handled by the
	// driver itself). A non-nil reply is sent back through the bus.
	ProcessMessage(ctx context.Context, msg message.Message) (*message.Message, error)

	// Run is the worker's own long-running loop, used by stateful workers
	// like Master and Monitor. Stateless workers block until ctx is
	// cancelled and then return nil (Base.Run). The driver runs it in its
	// own goroutine, so it can overlap with ProcessMessage; state shared
	// between the two needs the worker's own synchronization.
	Run(ctx context.Context) error

	Shutdown(ctx context.Context) error
	IsHealthy() bool
	Status() Status
}

// Base is an embeddable helper covering the fields and trivial methods
// most concrete workers share: identity, capability list, and a Run that
// defaults to a no-op for stateless workers.
type Base struct {
	AgentID           string
	AgentType         types.AgentType
	AgentCapabilities []types.AgentCapability
	Global            *shared.GlobalContext
}

func (b *Base) ID() string                            { return b.AgentID }
func (b *Base) Type() types.AgentType                 { return b.AgentType }
func (b *Base) Capabilities() []types.AgentCapability { return b.AgentCapabilities }

// Initialize stores the shared global context. Concrete workers embedding
// Base should call this from their own Initialize if they override it.
func (b *Base) Initialize(_ context.Context, global *shared.GlobalContext) error {
	b.Global = global
	return nil
}

// Run is a no-op default for stateless workers (Planner, Executor,
// Verifier); Master and Monitor override it with a real loop.
func (b *Base) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Shutdown is a no-op default; concrete workers override when they hold
// resources to release.
func (b *Base) Shutdown(_ context.Context) error { return nil }

// IsHealthy defaults to true; concrete workers override with real checks.
func (b *Base) IsHealthy() bool { return true }
