package agents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kestrelhq/agentmesh/coordinator/memory"
	"github.com/kestrelhq/agentmesh/coordinator/message"
	"github.com/kestrelhq/agentmesh/coordinator/plan"
	"github.com/kestrelhq/agentmesh/coordinator/taskqueue"
	"github.com/kestrelhq/agentmesh/coordinator/types"
)

// stubGenerator is a PlanGenerator returning a fixed plan or error,
// recording every goal it was asked to expand.
type stubGenerator struct {
	mu    sync.Mutex
	plans map[string]*plan.Plan
	err   error
	asked []string
}

func (g *stubGenerator) GeneratePlan(ctx context.Context, goal string) (*plan.Plan, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.asked = append(g.asked, goal)
	if g.err != nil {
		return nil, g.err
	}
	if p, ok := g.plans[goal]; ok {
		return p, nil
	}
	return &plan.Plan{PlanID: "plan-" + goal}, nil
}

func TestPlannerRepliesWithGeneratedPlan(t *testing.T) {
	gen := &stubGenerator{}
	p := NewPlanner("planner-1", gen)

	req := message.New("caller", "planner-1", message.KindTaskAssignment, types.PriorityNormal,
		map[string]any{"goal": "diagnose outage"})

	reply, err := p.ProcessMessage(context.Background(), req)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if reply == nil {
		t.Fatal("reply is nil, want a ResultNotification")
	}
	if reply.Kind != message.KindResultNotification {
		t.Errorf("reply.Kind = %v, want ResultNotification", reply.Kind)
	}
	if reply.CorrelationID == nil || *reply.CorrelationID != req.ID {
		t.Error("reply is not correlated to the request")
	}
	payload, ok := reply.Payload.(map[string]any)
	if !ok {
		t.Fatalf("reply payload is %T, want map[string]any", reply.Payload)
	}
	got, ok := payload["plan"].(*plan.Plan)
	if !ok || got.PlanID != "plan-diagnose outage" {
		t.Errorf("reply payload[plan] = %+v, want the generated plan", payload["plan"])
	}
	if len(gen.asked) != 1 || gen.asked[0] != "diagnose outage" {
		t.Errorf("generator asked = %v, want exactly [diagnose outage]", gen.asked)
	}
}

func TestPlannerRejectsMissingGoal(t *testing.T) {
	p := NewPlanner("planner-1", &stubGenerator{})
	req := message.New("caller", "planner-1", message.KindTaskAssignment, types.PriorityNormal, map[string]any{})
	if _, err := p.ProcessMessage(context.Background(), req); err == nil {
		t.Fatal("ProcessMessage with no goal = nil error, want ParseError")
	}
}

func TestPlannerIgnoresOtherKinds(t *testing.T) {
	p := NewPlanner("planner-1", &stubGenerator{})
	req := message.New("caller", "planner-1", message.KindHeartbeat, types.PriorityLow, nil)
	reply, err := p.ProcessMessage(context.Background(), req)
	if err != nil || reply != nil {
		t.Errorf("ProcessMessage(heartbeat) = (%v, %v), want (nil, nil)", reply, err)
	}
}

func TestPlannerStatusIsAlwaysIdle(t *testing.T) {
	p := NewPlanner("planner-1", &stubGenerator{})
	if p.Status().AgentStatus != types.AgentStatusIdle {
		t.Errorf("Status().AgentStatus = %v, want Idle", p.Status().AgentStatus)
	}
}

func TestPlannerPropagatesGenerationFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("model unavailable")}
	p := NewPlanner("planner-1", gen)
	req := message.New("caller", "planner-1", message.KindTaskAssignment, types.PriorityNormal,
		map[string]any{"goal": "x"})
	if _, err := p.ProcessMessage(context.Background(), req); err == nil {
		t.Fatal("ProcessMessage with a failing generator = nil error, want ExecutionError")
	}
}

type stubTools struct {
	result any
	err    error
}

func (s *stubTools) Invoke(ctx context.Context, tool string, parameters map[string]any) (any, error) {
	return s.result, s.err
}

func TestExecutorRunsPlanAndPersistsSteps(t *testing.T) {
	pool := memory.New(memory.DefaultConfig())
	e := NewExecutor("executor-1", &stubTools{result: "ok"}, pool)

	p := &plan.Plan{
		PlanID: "plan-1",
		Steps:  []plan.Step{{StepID: 1, Action: plan.ActionCallTool, Tool: "fetch"}},
	}
	req := message.New("master-1", "executor-1", message.KindTaskAssignment, types.PriorityNormal,
		map[string]any{"plan": p})

	reply, err := e.ProcessMessage(context.Background(), req)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if reply == nil || reply.Kind != message.KindResultNotification {
		t.Fatalf("reply = %+v, want a ResultNotification", reply)
	}
	payload := reply.Payload.(map[string]any)
	if payload["succeeded"] != true {
		t.Errorf("payload[succeeded] = %v, want true", payload["succeeded"])
	}

	stored, ok := pool.GetAgent("executor-1", "plan:plan-1:step:1")
	if !ok {
		t.Fatal("executor did not mirror the step into its agent memory tier")
	}
	step, ok := stored.Value.(plan.Step)
	if !ok || step.Status != plan.StepDone {
		t.Errorf("persisted step = %+v, want Status=Done", stored.Value)
	}
}

func TestExecutorStatusIdleWithoutPlan(t *testing.T) {
	e := NewExecutor("executor-1", &stubTools{result: "ok"}, nil)
	if e.Status().AgentStatus != types.AgentStatusIdle {
		t.Errorf("initial Status().AgentStatus = %v, want Idle", e.Status().AgentStatus)
	}
}

func TestExecutorRejectsMissingPlan(t *testing.T) {
	e := NewExecutor("executor-1", &stubTools{}, nil)
	req := message.New("master-1", "executor-1", message.KindTaskAssignment, types.PriorityNormal, map[string]any{})
	if _, err := e.ProcessMessage(context.Background(), req); err == nil {
		t.Fatal("ProcessMessage with no plan = nil error, want ParseError")
	}
}

func TestExecutorToleratesNilPool(t *testing.T) {
	e := NewExecutor("executor-1", &stubTools{result: "ok"}, nil)
	p := &plan.Plan{Steps: []plan.Step{{StepID: 1, Action: plan.ActionCallTool, Tool: "fetch"}}}
	req := message.New("master-1", "executor-1", message.KindTaskAssignment, types.PriorityNormal,
		map[string]any{"plan": p})
	if _, err := e.ProcessMessage(context.Background(), req); err != nil {
		t.Fatalf("ProcessMessage with a nil pool: %v", err)
	}
}

func TestVerifierAcceptsAndRejects(t *testing.T) {
	v := NewVerifier("verifier-1", RequireKey("done"))

	pass := message.New("executor-1", "verifier-1", message.KindResultNotification, types.PriorityNormal,
		map[string]any{"done": true})
	reply, err := v.ProcessMessage(context.Background(), pass)
	if err != nil {
		t.Fatalf("ProcessMessage(pass): %v", err)
	}
	if reply.Kind != message.KindResultNotification {
		t.Errorf("pass reply.Kind = %v, want ResultNotification", reply.Kind)
	}

	fail := message.New("executor-1", "verifier-1", message.KindResultNotification, types.PriorityNormal,
		map[string]any{"done": false})
	reply, err = v.ProcessMessage(context.Background(), fail)
	if err != nil {
		t.Fatalf("ProcessMessage(fail): %v", err)
	}
	if reply.Kind != message.KindError {
		t.Errorf("fail reply.Kind = %v, want Error", reply.Kind)
	}
}

func TestVerifierIgnoresNonResultMessages(t *testing.T) {
	v := NewVerifier("verifier-1", AlwaysPass)
	req := message.New("caller", "verifier-1", message.KindTaskAssignment, types.PriorityNormal, nil)
	reply, err := v.ProcessMessage(context.Background(), req)
	if err != nil || reply != nil {
		t.Errorf("ProcessMessage(task_assignment) = (%v, %v), want (nil, nil)", reply, err)
	}
}

func TestMonitorBroadcastsAlertsOnFiringRules(t *testing.T) {
	var published []message.Message
	var mu sync.Mutex
	publish := func(ctx context.Context, msg message.Message) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, msg)
		return nil
	}

	source := func() Snapshot {
		return Snapshot{TasksCompleted: 1, TasksFailed: 9, AliveAgents: 1, TotalAgents: 10}
	}

	m := NewMonitor("monitor-1", source, []AlertRule{ErrorRateHigh(0.1), AgentUnhealthy(0.5)}, 5*time.Millisecond, publish)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = m.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(published) == 0 {
		t.Fatal("no alerts were published despite both rules firing")
	}
	for _, msg := range published {
		if !msg.IsBroadcast() {
			t.Error("alert message is not a broadcast")
		}
	}
}

func TestMonitorEmitsNothingWhenRulesDontFire(t *testing.T) {
	var count int
	var mu sync.Mutex
	publish := func(ctx context.Context, msg message.Message) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}
	source := func() Snapshot { return Snapshot{TasksCompleted: 100, TasksFailed: 0, AliveAgents: 5, TotalAgents: 5} }
	m := NewMonitor("monitor-1", source, []AlertRule{ErrorRateHigh(0.5), AgentUnhealthy(0.5)}, 5*time.Millisecond, publish)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_ = m.Run(ctx)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("published %d alerts, want 0", count)
	}
}

func TestMasterEnqueuesStepsAndReportsCompletion(t *testing.T) {
	q := taskqueue.New()
	gen := &stubGenerator{plans: map[string]*plan.Plan{
		"fix the leak": {
			PlanID: "plan-1",
			Steps: []plan.Step{
				{StepID: 1, Action: plan.ActionCallTool, Tool: "patch"},
				{StepID: 2, Action: plan.ActionAskUser},
			},
		},
	}}

	var notices []message.Message
	var mu sync.Mutex
	publish := func(ctx context.Context, msg message.Message) error {
		mu.Lock()
		defer mu.Unlock()
		notices = append(notices, msg)
		return nil
	}

	m := NewMaster("master-1", gen, q, publish, nil)
	m.PollEvery = 5 * time.Millisecond

	req := message.New("caller", "master-1", message.KindTaskAssignment, types.PriorityNormal,
		map[string]any{"goal": "fix the leak"})
	reply, err := m.ProcessMessage(context.Background(), req)
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if reply.Kind != message.KindStatusUpdate {
		t.Errorf("reply.Kind = %v, want StatusUpdate", reply.Kind)
	}
	if q.Size() != 2 {
		t.Fatalf("queue size after enqueue = %d, want 2", q.Size())
	}

	// Drain and complete both tasks to simulate workers finishing them.
	for i := 0; i < 2; i++ {
		task, ok := q.Dequeue()
		if !ok {
			t.Fatal("expected a dequeueable task")
		}
		q.MarkInProgress(task)
		if err := q.MarkCompleted(task.ID); err != nil {
			t.Fatalf("MarkCompleted: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go m.Run(ctx)

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(notices)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	mu.Lock()
	defer mu.Unlock()
	if len(notices) != 1 {
		t.Fatalf("got %d completion notices, want exactly 1", len(notices))
	}
	if notices[0].Receiver == nil || *notices[0].Receiver != "caller" {
		t.Errorf("completion notice receiver = %v, want caller", notices[0].Receiver)
	}
}

func TestMasterGoalStaysOpenUntilEveryTaskIsTerminal(t *testing.T) {
	q := taskqueue.New()
	gen := &stubGenerator{plans: map[string]*plan.Plan{
		"two steps": {
			PlanID: "plan-2",
			Steps: []plan.Step{
				{StepID: 1, Action: plan.ActionCallTool, Tool: "a"},
				{StepID: 2, Action: plan.ActionCallTool, Tool: "b"},
			},
		},
	}}
	var notified bool
	var mu sync.Mutex
	publish := func(ctx context.Context, msg message.Message) error {
		mu.Lock()
		notified = true
		mu.Unlock()
		return nil
	}

	m := NewMaster("master-1", gen, q, publish, nil)
	req := message.New("caller", "master-1", message.KindTaskAssignment, types.PriorityNormal,
		map[string]any{"goal": "two steps"})
	if _, err := m.ProcessMessage(context.Background(), req); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	// Complete only one of the two tasks.
	task, _ := q.Dequeue()
	q.MarkInProgress(task)
	q.MarkCompleted(task.ID)

	m.pollGoals(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if notified {
		t.Error("Master reported completion with one task still pending")
	}
}
