// Package agents provides concrete worker.Behavior implementations for
// the five built-in agent types: Planner, Executor, Verifier, Monitor,
// and Master. Each embeds worker.Base for the identity/capability
// boilerplate and implements only the message handling and (for
// Master/Monitor) the Run loop that distinguishes it.
package agents

import (
	"context"

	"github.com/kestrelhq/agentmesh/coordinator/plan"
)

// PlanGenerator is anything that turns a goal string into a Plan,
// typically backed by an LLM client. Both Planner and Master accept one
// at construction time rather than talking to a concrete model client.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, goal string) (*plan.Plan, error)
}

func payloadString(payload any, key string) (string, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	v, ok := m[key].(string)
	return v, ok
}

func payloadBool(payload any, key string) (bool, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return false, false
	}
	v, ok := m[key].(bool)
	return v, ok
}
