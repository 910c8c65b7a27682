package agents

import (
	"context"
	"fmt"

	"github.com/kestrelhq/agentmesh/coordinator/errs"
	"github.com/kestrelhq/agentmesh/coordinator/message"
	"github.com/kestrelhq/agentmesh/coordinator/types"
	"github.com/kestrelhq/agentmesh/coordinator/worker"
)

// Check inspects a ResultNotification's payload and reports whether the
// result is acceptable, with a human-readable reason either way.
type Check func(payload any) (ok bool, reason string)

// Verifier applies an injected Check to every incoming ResultNotification
// and replies with either a ResultNotification carrying {"verified":true}
// or an Error message wrapping a VerificationError.
type Verifier struct {
	worker.Base
	CheckFn Check
}

// NewVerifier constructs a Verifier worker with the TaskVerification
// capability.
func NewVerifier(id string, check Check) *Verifier {
	return &Verifier{
		Base: worker.Base{
			AgentID:           id,
			AgentType:         types.AgentTypeVerifier,
			AgentCapabilities: []types.AgentCapability{types.CapabilityTaskVerification},
		},
		CheckFn: check,
	}
}

func (v *Verifier) ProcessMessage(ctx context.Context, msg message.Message) (*message.Message, error) {
	if msg.Kind != message.KindResultNotification {
		return nil, nil
	}

	ok, reason := v.CheckFn(msg.Payload)
	if !ok {
		verr := errs.Verification(reason)
		reply := message.New(v.ID(), msg.Sender, message.KindError, msg.Priority,
			map[string]any{"error": verr.Error()})
		reply = reply.WithCorrelation(msg.ID)
		return &reply, nil
	}

	reply := message.New(v.ID(), msg.Sender, message.KindResultNotification, msg.Priority,
		map[string]any{"verified": true, "reason": reason})
	reply = reply.WithCorrelation(msg.ID)
	return &reply, nil
}

func (v *Verifier) Status() worker.Status {
	return worker.Status{
		ID:           v.ID(),
		Type:         v.Type(),
		AgentStatus:  types.AgentStatusIdle,
		Capabilities: v.Capabilities(),
	}
}

// AlwaysPass is a trivial Check useful as a default or in tests.
func AlwaysPass(any) (bool, string) { return true, "accepted" }

// RequireKey builds a Check rejecting any payload that is not a
// map[string]any containing key with a truthy bool value.
func RequireKey(key string) Check {
	return func(payload any) (bool, string) {
		m, ok := payload.(map[string]any)
		if !ok {
			return false, fmt.Sprintf("payload is not an object, missing %q", key)
		}
		v, ok := m[key].(bool)
		if !ok || !v {
			return false, fmt.Sprintf("payload.%s is not true", key)
		}
		return true, fmt.Sprintf("%s confirmed", key)
	}
}
