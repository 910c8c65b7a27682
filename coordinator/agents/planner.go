package agents

import (
	"context"
	"fmt"

	"github.com/kestrelhq/agentmesh/coordinator/errs"
	"github.com/kestrelhq/agentmesh/coordinator/message"
	"github.com/kestrelhq/agentmesh/coordinator/types"
	"github.com/kestrelhq/agentmesh/coordinator/worker"
)

// Planner turns an incoming goal into a Plan via an injected
// PlanGenerator, replying with the plan wrapped in a ResultNotification
// correlated to the request. It holds no long-running loop: Run is the
// inherited Base no-op.
type Planner struct {
	worker.Base
	Generator PlanGenerator
}

// NewPlanner constructs a Planner worker with the TaskPlanning capability.
func NewPlanner(id string, generator PlanGenerator) *Planner {
	return &Planner{
		Base: worker.Base{
			AgentID:           id,
			AgentType:         types.AgentTypePlanner,
			AgentCapabilities: []types.AgentCapability{types.CapabilityTaskPlanning},
		},
		Generator: generator,
	}
}

// ProcessMessage generates a plan for TaskAssignment messages whose
// payload carries a "goal" string; every other kind is ignored (nil, nil).
func (p *Planner) ProcessMessage(ctx context.Context, msg message.Message) (*message.Message, error) {
	if msg.Kind != message.KindTaskAssignment {
		return nil, nil
	}

	goal, ok := payloadString(msg.Payload, "goal")
	if !ok || goal == "" {
		return nil, errs.Parse("task_assignment payload missing \"goal\"")
	}

	generated, err := p.Generator.GeneratePlan(ctx, goal)
	if err != nil {
		return nil, errs.Execution(fmt.Sprintf("plan generation failed: %v", err))
	}

	reply := message.New(p.ID(), msg.Sender, message.KindResultNotification, msg.Priority,
		map[string]any{"plan": generated})
	reply = reply.WithCorrelation(msg.ID)
	return &reply, nil
}

// Status reports Planner as idle between requests; it never tracks a
// current task of its own.
func (p *Planner) Status() worker.Status {
	return worker.Status{
		ID:           p.ID(),
		Type:         p.Type(),
		AgentStatus:  types.AgentStatusIdle,
		Capabilities: p.Capabilities(),
	}
}
