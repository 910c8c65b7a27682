package agents

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/kestrelhq/agentmesh/coordinator/errs"
	"github.com/kestrelhq/agentmesh/coordinator/memory"
	"github.com/kestrelhq/agentmesh/coordinator/message"
	"github.com/kestrelhq/agentmesh/coordinator/plan"
	"github.com/kestrelhq/agentmesh/coordinator/types"
	"github.com/kestrelhq/agentmesh/coordinator/worker"
)

// Executor runs one plan at a time through plan.Executor, mirroring every
// step transition into the shared memory pool's per-agent tier so the
// state-map invariant (every step ever selected has a recorded status)
// survives outside the in-memory Plan value itself.
type Executor struct {
	worker.Base
	Tools plan.ToolInvoker
	Pool  *memory.Pool

	// In/Out back the ask_user channel: the question goes to Out, the
	// answer line is read from In. They default to os.Stdin/os.Stdout
	// when left nil.
	In  io.Reader
	Out io.Writer

	mu      sync.Mutex
	current *plan.Plan
}

// NewExecutor constructs an Executor worker with the TaskExecution
// capability. pool may be nil to skip state-map mirroring (e.g. in tests
// that only care about plan outcomes).
func NewExecutor(id string, tools plan.ToolInvoker, pool *memory.Pool) *Executor {
	return &Executor{
		Base: worker.Base{
			AgentID:           id,
			AgentType:         types.AgentTypeExecutor,
			AgentCapabilities: []types.AgentCapability{types.CapabilityTaskExecution},
		},
		Tools: tools,
		Pool:  pool,
	}
}

// ProcessMessage runs the plan carried in a TaskAssignment's "plan" field
// to completion (or first failure) and replies with a ResultNotification
// carrying the finished Plan.
func (e *Executor) ProcessMessage(ctx context.Context, msg message.Message) (*message.Message, error) {
	if msg.Kind != message.KindTaskAssignment {
		return nil, nil
	}

	p, ok := planFromPayload(msg.Payload)
	if !ok {
		return nil, errs.Parse("task_assignment payload missing \"plan\"")
	}

	e.mu.Lock()
	e.current = p
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.current = nil
		e.mu.Unlock()
	}()

	in := e.In
	if in == nil {
		in = os.Stdin
	}
	out := e.Out
	if out == nil {
		out = os.Stdout
	}
	runner := plan.NewExecutor(e.Tools, in, out)
	runner.StepObserver = e.persistStep

	// A tool or plan failure is a result to report back, not a
	// process_message error: the finished plan carries the outcome.
	_ = runner.Run(ctx, p)

	reply := message.New(e.ID(), msg.Sender, message.KindResultNotification, msg.Priority,
		map[string]any{"plan": p, "succeeded": p.IsSucceeded})
	reply = reply.WithCorrelation(msg.ID)
	return &reply, nil
}

func (e *Executor) persistStep(step plan.Step) {
	if e.Pool == nil {
		return
	}
	e.mu.Lock()
	planID := ""
	if e.current != nil {
		planID = e.current.PlanID
	}
	e.mu.Unlock()

	key := fmt.Sprintf("plan:%s:step:%d", planID, step.StepID)
	_ = e.Pool.SetAgent(e.ID(), memory.Entry{
		Key:         key,
		Value:       step,
		CreatedBy:   e.ID(),
		AccessLevel: types.AccessPrivate,
	})
}

// Status reports Busy with the in-flight plan id while a plan is running,
// Idle otherwise.
func (e *Executor) Status() worker.Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := worker.Status{
		ID:           e.ID(),
		Type:         e.Type(),
		Capabilities: e.Capabilities(),
		AgentStatus:  types.AgentStatusIdle,
	}
	if e.current != nil {
		st.AgentStatus = types.AgentStatusBusy
		planID := e.current.PlanID
		st.CurrentTask = &planID
	}
	return st
}

func planFromPayload(payload any) (*plan.Plan, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}
	switch v := m["plan"].(type) {
	case *plan.Plan:
		return v, true
	case plan.Plan:
		p := v
		return &p, true
	default:
		return nil, false
	}
}
