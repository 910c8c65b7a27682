// Package types defines the enumerations shared across the coordination
// runtime: agent identity/capability/status, task priority and status, and
// the access levels used by the shared memory pool.
package types

import "fmt"

// AgentType identifies what role a worker plays. The closed set below
// covers the built-in worker kinds; Custom carries an operator-defined
// name for anything else.
type AgentType struct {
	kind string
	name string
}

var (
	AgentTypeMaster   = AgentType{kind: "master"}
	AgentTypePlanner  = AgentType{kind: "planner"}
	AgentTypeExecutor = AgentType{kind: "executor"}
	AgentTypeVerifier = AgentType{kind: "verifier"}
	AgentTypeMonitor  = AgentType{kind: "monitor"}
)

// CustomAgentType builds an open-ended agent type tagged with name.
func CustomAgentType(name string) AgentType {
	return AgentType{kind: "custom", name: name}
}

func (t AgentType) String() string {
	if t.kind == "custom" {
		return "custom:" + t.name
	}
	return t.kind
}

// AgentCapability is a routing predicate: what a worker declares it can do.
// ToolCalling and Custom carry a parameter, so the zero value of
// AgentCapability is never meaningful on its own — always construct one of
// the package functions below.
type AgentCapability struct {
	kind  string
	param string
}

var (
	CapabilityTaskPlanning     = AgentCapability{kind: "task_planning"}
	CapabilityTaskExecution    = AgentCapability{kind: "task_execution"}
	CapabilityTaskVerification = AgentCapability{kind: "task_verification"}
	CapabilityMonitoring       = AgentCapability{kind: "monitoring"}
	CapabilityCoordination     = AgentCapability{kind: "coordination"}
)

// ToolCalling declares the capability to invoke the named external tool.
func ToolCalling(tool string) AgentCapability {
	return AgentCapability{kind: "tool_calling", param: tool}
}

// CustomCapability declares an operator-defined capability tag.
func CustomCapability(name string) AgentCapability {
	return AgentCapability{kind: "custom", param: name}
}

func (c AgentCapability) String() string {
	if c.param == "" {
		return c.kind
	}
	return fmt.Sprintf("%s(%s)", c.kind, c.param)
}

// AgentStatus is the worker's current operational state, as recorded in
// the registry (set at registration and changed through UpdateStatus; a
// heartbeat refreshes only liveness). It is distinct from
// AgentLifecycleState, which tracks the
// manager-observed spawn/run/stop progression.
type AgentStatus string

const (
	AgentStatusActive  AgentStatus = "active"
	AgentStatusBusy    AgentStatus = "busy"
	AgentStatusIdle    AgentStatus = "idle"
	AgentStatusOffline AgentStatus = "offline"
	AgentStatusFailed  AgentStatus = "failed"
)

// AgentLifecycleState tracks the manager's view of a worker's driver
// goroutine, independent of the worker's self-reported AgentStatus.
type AgentLifecycleState string

const (
	LifecycleCreated      AgentLifecycleState = "created"
	LifecycleInitializing AgentLifecycleState = "initializing"
	LifecycleRunning      AgentLifecycleState = "running"
	LifecyclePaused       AgentLifecycleState = "paused"
	LifecycleStopping     AgentLifecycleState = "stopping"
	LifecycleStopped      AgentLifecycleState = "stopped"
	LifecycleFailed       AgentLifecycleState = "failed"
)

// Priority is a four-level total order over message and task urgency.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "unknown"
	}
}

// TaskKind is the category of work a Task represents.
type TaskKind string

const (
	TaskKindPlanning     TaskKind = "planning"
	TaskKindExecution    TaskKind = "execution"
	TaskKindVerification TaskKind = "verification"
	TaskKindAnalysis     TaskKind = "analysis"
	TaskKindMonitoring   TaskKind = "monitoring"
	TaskKindComposite    TaskKind = "composite"
)

// TaskStatusKind is the discriminant of TaskStatus. Assigned and Failed
// carry associated data (the assignee id, the failure reason) so they are
// modeled as TaskStatus fields rather than additional enum values.
type TaskStatusKind string

const (
	TaskPending    TaskStatusKind = "pending"
	TaskAssigned   TaskStatusKind = "assigned"
	TaskInProgress TaskStatusKind = "in_progress"
	TaskCompleted  TaskStatusKind = "completed"
	TaskFailed     TaskStatusKind = "failed"
	TaskCancelled  TaskStatusKind = "cancelled"
)

// TaskStatus is the task's lifecycle state. AgentID is set only when Kind
// is TaskAssigned; Reason is set only when Kind is TaskFailed.
type TaskStatus struct {
	Kind    TaskStatusKind
	AgentID string
	Reason  string
}

func Pending() TaskStatus    { return TaskStatus{Kind: TaskPending} }
func InProgress() TaskStatus { return TaskStatus{Kind: TaskInProgress} }
func Completed() TaskStatus  { return TaskStatus{Kind: TaskCompleted} }
func Cancelled() TaskStatus  { return TaskStatus{Kind: TaskCancelled} }

func Assigned(agentID string) TaskStatus {
	return TaskStatus{Kind: TaskAssigned, AgentID: agentID}
}

func Failed(reason string) TaskStatus {
	return TaskStatus{Kind: TaskFailed, Reason: reason}
}

func (s TaskStatus) String() string {
	switch s.Kind {
	case TaskAssigned:
		return fmt.Sprintf("assigned(%s)", s.AgentID)
	case TaskFailed:
		return fmt.Sprintf("failed(%s)", s.Reason)
	default:
		return string(s.Kind)
	}
}

// AccessLevel labels the visibility class of a shared memory pool entry: Public (any agent), Private (its creator), or Shared (between the
// two). The pool stores the label on each entry but does not check it:
// reads and writes succeed regardless of the caller or the level.
type AccessLevel string

const (
	AccessPublic  AccessLevel = "public"
	AccessPrivate AccessLevel = "private"
	AccessShared  AccessLevel = "shared"
)
