// Package plan implements the Plan/Step data model and the single-worker
// plan execution loop: pending-step selection, status transitions, and
// result archival.
package plan

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/kestrelhq/agentmesh/coordinator/errs"
)

// StepStatus is a step's position in its Pending → Executing → (Done |
// Failed) sub-machine.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepExecuting StepStatus = "executing"
	StepDone      StepStatus = "done"
	StepFailed    StepStatus = "failed"
)

// Action is what a step does when dispatched.
type Action string

const (
	ActionCallTool Action = "call_tool"
	ActionAskUser  Action = "ask_user"
)

// Step is one unit of plan execution.
type Step struct {
	StepID      int
	Description string
	Action      Action
	Tool        string
	Parameters  map[string]any
	Input       map[string]any
	Output      any
	Status      StepStatus
	IsSucceeded bool
	ErrorCode   string
	ErrorReason string
}

// Plan is an ordered sequence of steps owned by a single worker.
type Plan struct {
	PlanID      string
	Description string
	Version     string
	Steps       []Step
	IsSucceeded bool
	ErrorStepID *int
}

// ToolInvoker calls an external tool and returns its JSON-equivalent
// result, or an error. The gateway behind it is a collaborator of the
// runtime, not part of it.
type ToolInvoker interface {
	Invoke(ctx context.Context, tool string, parameters map[string]any) (any, error)
}

// Executor runs a Plan's execution loop against an injected ToolInvoker
// and a user-interaction stream (stdin/stdout by default).
type Executor struct {
	Tools  ToolInvoker
	Input  *bufio.Reader
	Output io.Writer

	// StepObserver, if set, is invoked after every step status transition
	// (Executing, then Done or Failed) so a caller can persist the state
	// map externally — e.g. an executor worker mirroring it into the
	// shared memory pool's per-agent tier, per the state-map invariant
	// that every step ever selected has a recorded status somewhere.
	StepObserver func(Step)
}

// NewExecutor constructs an Executor. in/out are typically os.Stdin and
// os.Stdout; they are injected so tests can supply their own streams for
// the ask_user scenario.
func NewExecutor(tools ToolInvoker, in io.Reader, out io.Writer) *Executor {
	return &Executor{Tools: tools, Input: bufio.NewReader(in), Output: out}
}

// Run drives p's steps until no step is selectable: the first step found
// Pending (or with no recorded status) is selected, transitioned to
// Executing, dispatched per its Action, and on success the loop continues
// from the top; on failure the loop aborts with no further steps run.
// Tool-invocation errors are not fatal to the loop — they are demoted to a
// step-level failure result and the status transition decides whether to
// abort.
func (e *Executor) Run(ctx context.Context, p *Plan) error {
	for {
		idx := selectPending(p)
		if idx == -1 {
			p.IsSucceeded = true
			return nil
		}

		step := &p.Steps[idx]
		step.Status = StepExecuting
		e.observe(*step)

		succeeded, output, errCode, errReason := e.dispatch(ctx, step)
		step.IsSucceeded = succeeded
		step.Output = output

		if succeeded {
			step.Status = StepDone
			e.observe(*step)
			continue
		}

		step.Status = StepFailed
		step.ErrorCode = errCode
		step.ErrorReason = errReason
		e.observe(*step)
		p.IsSucceeded = false
		stepID := step.StepID
		p.ErrorStepID = &stepID
		return errs.Execution(fmt.Sprintf("step %d failed: %s", step.StepID, errReason))
	}
}

func (e *Executor) observe(step Step) {
	if e.StepObserver != nil {
		e.StepObserver(step)
	}
}

func selectPending(p *Plan) int {
	for i, s := range p.Steps {
		if s.Status == "" || s.Status == StepPending {
			return i
		}
	}
	return -1
}

func (e *Executor) dispatch(ctx context.Context, step *Step) (succeeded bool, output any, errCode, errReason string) {
	switch step.Action {
	case ActionCallTool:
		if step.Tool == "" {
			return false, nil, "missing_tool", "call_tool step has no tool set"
		}
		result, err := e.Tools.Invoke(ctx, step.Tool, step.Parameters)
		if err != nil {
			return false, fmt.Sprintf("tool %q failed: %v", step.Tool, err), "tool_error", err.Error()
		}
		return true, result, "", ""

	case ActionAskUser:
		question, _ := step.Input["question"].(string)
		if question != "" && e.Output != nil {
			fmt.Fprintln(e.Output, question)
		}
		line, err := e.Input.ReadString('\n')
		if err != nil && line == "" {
			return false, nil, "read_error", err.Error()
		}
		answer := trimNewline(line)
		return true, map[string]any{"answer": answer}, "", ""

	default:
		return false, nil, "unknown_action", fmt.Sprintf("unknown action: %s", step.Action)
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
