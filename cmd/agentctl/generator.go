package main

import (
	"context"
	"fmt"

	"github.com/kestrelhq/agentmesh/coordinator/ids"
	"github.com/kestrelhq/agentmesh/coordinator/plan"
)

// echoGenerator is the CLI's stand-in for the out-of-scope LLM planning
// client: it turns a goal into a single call_tool step invoking a fixed
// "echo" tool, just enough to exercise the Planner/Executor/Master wiring
// end to end without a real model in the loop.
type echoGenerator struct{}

func (echoGenerator) GeneratePlan(ctx context.Context, goal string) (*plan.Plan, error) {
	return &plan.Plan{
		PlanID:      ids.New("plan"),
		Description: goal,
		Steps: []plan.Step{
			{
				StepID:     1,
				Action:     plan.ActionCallTool,
				Tool:       "echo",
				Parameters: map[string]any{"message": fmt.Sprintf("handling goal: %s", goal)},
			},
		},
	}, nil
}

// echoTools is the accompanying plan.ToolInvoker: it always succeeds,
// returning the parameters it was called with.
type echoTools struct{}

func (echoTools) Invoke(ctx context.Context, tool string, parameters map[string]any) (any, error) {
	return map[string]any{"tool": tool, "echoed": parameters}, nil
}
