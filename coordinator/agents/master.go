package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kestrelhq/agentmesh/coordinator/errs"
	"github.com/kestrelhq/agentmesh/coordinator/ids"
	"github.com/kestrelhq/agentmesh/coordinator/message"
	"github.com/kestrelhq/agentmesh/coordinator/plan"
	"github.com/kestrelhq/agentmesh/coordinator/taskqueue"
	"github.com/kestrelhq/agentmesh/coordinator/types"
	"github.com/kestrelhq/agentmesh/coordinator/worker"
)

// goalRun tracks one in-flight goal: the plan generated for it and the
// task ids Master enqueued for each of its steps.
type goalRun struct {
	plan     *plan.Plan
	taskIDs  []string
	creator  string
	reported bool
}

// AgentFinder looks up a currently available executor agent to dispatch
// one queued task to, returning false when no qualified worker is free
// right now. Master retries the dequeued task on the next poll tick
// rather than blocking on one.
type AgentFinder func() (agentID string, ok bool)

// Master is the orchestrator worker: it turns an incoming goal into a
// Plan via an injected PlanGenerator, enqueues each step as a Task on the
// shared queue tagged by the step's action, dequeues eligible tasks and
// dispatches them to a qualified Executor via Finder, and polls the
// queue in its Run loop to notice when every task for a goal has reached
// a terminal state, at which point it reports completion to the goal's
// requester.
type Master struct {
	worker.Base
	Generator PlanGenerator
	Queue     *taskqueue.Queue
	Publish   Publisher
	Finder    AgentFinder
	PollEvery time.Duration

	mu         sync.Mutex
	goals      map[string]*goalRun // keyed by plan id
	dispatched map[string]string   // dispatch message id -> task id
}

// NewMaster constructs a Master worker with the Coordination capability.
// finder may be nil, in which case Master enqueues steps but never
// dispatches them itself — useful for tests that drive the queue by hand.
func NewMaster(id string, generator PlanGenerator, queue *taskqueue.Queue, publish Publisher, finder AgentFinder) *Master {
	return &Master{
		Base: worker.Base{
			AgentID:           id,
			AgentType:         types.AgentTypeMaster,
			AgentCapabilities: []types.AgentCapability{types.CapabilityCoordination},
		},
		Generator:  generator,
		Queue:      queue,
		Publish:    publish,
		Finder:     finder,
		PollEvery:  2 * time.Second,
		goals:      make(map[string]*goalRun),
		dispatched: make(map[string]string),
	}
}

// ProcessMessage accepts a TaskAssignment carrying {"goal": <string>},
// generates a plan for it, and enqueues one Task per step. It also
// accepts the ResultNotification an Executor sends back for a task
// Master itself dispatched, correlated by message id, and resolves that
// task's outcome in the queue.
func (m *Master) ProcessMessage(ctx context.Context, msg message.Message) (*message.Message, error) {
	if msg.Kind == message.KindResultNotification && msg.CorrelationID != nil {
		if m.resolveDispatch(*msg.CorrelationID, msg.Payload) {
			return nil, nil
		}
	}

	if msg.Kind != message.KindTaskAssignment {
		return nil, nil
	}

	goal, ok := payloadString(msg.Payload, "goal")
	if !ok || goal == "" {
		return nil, errs.Parse("task_assignment payload missing \"goal\"")
	}

	generated, err := m.Generator.GeneratePlan(ctx, goal)
	if err != nil {
		return nil, errs.Execution(fmt.Sprintf("plan generation failed: %v", err))
	}

	run := &goalRun{plan: generated, creator: msg.Sender}
	for _, step := range generated.Steps {
		taskID := ids.New("task")
		kind := types.TaskKindExecution
		if step.Action == plan.ActionAskUser {
			kind = types.TaskKindPlanning
		}
		m.Queue.Enqueue(taskqueue.Task{
			ID:        taskID,
			Kind:      kind,
			Priority:  msg.Priority,
			Payload:   step,
			Creator:   m.ID(),
			CreatedAt: time.Now(),
		})
		run.taskIDs = append(run.taskIDs, taskID)
	}

	m.mu.Lock()
	m.goals[generated.PlanID] = run
	m.mu.Unlock()

	reply := message.New(m.ID(), msg.Sender, message.KindStatusUpdate, msg.Priority,
		map[string]any{"plan_id": generated.PlanID, "status": "accepted", "steps": len(generated.Steps)})
	reply = reply.WithCorrelation(msg.ID)
	return &reply, nil
}

// Run polls on PollEvery: each tick it dispatches as many eligible
// queued tasks as a qualified worker is free to take, then checks every
// tracked goal's tasks for terminal state and reports completion once to
// each goal's requester the first time all of its tasks are done.
func (m *Master) Run(ctx context.Context) error {
	interval := m.PollEvery
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.dispatchPending(ctx)
			m.pollGoals(ctx)
		}
	}
}

// dispatchPending drains every currently eligible task from the queue,
// handing each to the worker Finder reports as free. A task dequeued
// while no worker is free is put back and dispatching stops for this
// tick rather than dropping it.
func (m *Master) dispatchPending(ctx context.Context) {
	if m.Finder == nil {
		return
	}
	for {
		task, ok := m.Queue.Dequeue()
		if !ok {
			return
		}

		step, ok := task.Payload.(plan.Step)
		if !ok {
			m.Queue.MarkInProgress(task)
			_ = m.Queue.MarkFailed(task.ID, "task payload is not a plan step")
			continue
		}

		agentID, ok := m.Finder()
		if !ok {
			m.Queue.Enqueue(task)
			return
		}
		m.Queue.MarkInProgress(task)

		sub := &plan.Plan{PlanID: task.ID, Steps: []plan.Step{step}}
		dispatch := message.New(m.ID(), agentID, message.KindTaskAssignment, task.Priority,
			map[string]any{"plan": sub})

		m.mu.Lock()
		m.dispatched[dispatch.ID] = task.ID
		m.mu.Unlock()

		if m.Publish == nil {
			continue
		}
		if err := m.Publish(ctx, dispatch); err != nil {
			m.mu.Lock()
			delete(m.dispatched, dispatch.ID)
			m.mu.Unlock()
			_ = m.Queue.MarkFailed(task.ID, fmt.Sprintf("dispatch failed: %v", err))
		}
	}
}

// resolveDispatch looks up correlationID among the messages Master itself
// dispatched and, if found, marks the corresponding task completed or
// failed based on the reply's "succeeded" field. Returns false if
// correlationID does not belong to a Master-issued dispatch, so callers
// can fall through to other message handling.
func (m *Master) resolveDispatch(correlationID string, payload any) bool {
	m.mu.Lock()
	taskID, ok := m.dispatched[correlationID]
	if ok {
		delete(m.dispatched, correlationID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	if succeeded, _ := payloadBool(payload, "succeeded"); succeeded {
		_ = m.Queue.MarkCompleted(taskID)
	} else {
		_ = m.Queue.MarkFailed(taskID, "dispatched step did not succeed")
	}
	return true
}

func (m *Master) pollGoals(ctx context.Context) {
	m.mu.Lock()
	runs := make([]*goalRun, 0, len(m.goals))
	for _, r := range m.goals {
		runs = append(runs, r)
	}
	m.mu.Unlock()

	for _, run := range runs {
		if run.reported {
			continue
		}
		if m.allTerminal(run) {
			run.reported = true
			if m.Publish != nil {
				notice := message.New(m.ID(), run.creator, message.KindResultNotification, types.PriorityNormal,
					map[string]any{"plan_id": run.plan.PlanID, "status": "complete"})
				_ = m.Publish(ctx, notice)
			}
		}
	}
}

// allTerminal reports whether every task id Master enqueued for run has
// reached Completed, Failed, or Cancelled. A task still Pending or InProgress (or one
// the queue has no record of at all, e.g. dropped by CleanupExpired)
// keeps the goal open.
func (m *Master) allTerminal(run *goalRun) bool {
	for _, id := range run.taskIDs {
		status, ok := m.Queue.Status(id)
		if !ok {
			return false
		}
		switch status.Kind {
		case types.TaskCompleted, types.TaskFailed, types.TaskCancelled:
			continue
		default:
			return false
		}
	}
	return true
}

func (m *Master) Status() worker.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return worker.Status{
		ID:           m.ID(),
		Type:         m.Type(),
		AgentStatus:  types.AgentStatusActive,
		Capabilities: m.Capabilities(),
	}
}
