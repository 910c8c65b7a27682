package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrelhq/agentmesh/coordinator/message"
	"github.com/kestrelhq/agentmesh/coordinator/types"
	"github.com/kestrelhq/agentmesh/coordinator/worker"
)

// Severity is the urgency level of an evaluated AlertRule.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) priority() types.Priority {
	switch s {
	case SeverityCritical:
		return types.PriorityUrgent
	case SeverityWarning:
		return types.PriorityHigh
	default:
		return types.PriorityNormal
	}
}

// Snapshot is the aggregate view a Monitor polls each tick: task
// throughput, agent liveness, and an approximate message backlog.
type Snapshot struct {
	TasksCompleted  int
	TasksFailed     int
	AliveAgents     int
	TotalAgents     int
	PendingMessages int
}

// SnapshotSource produces the current Snapshot; typically a closure over a
// manager's Stats() and a taskqueue's Stats().
type SnapshotSource func() Snapshot

// AlertRule evaluates a Snapshot and, if it fires, reports the severity
// and a human-readable reason.
type AlertRule struct {
	Name     string
	Evaluate func(Snapshot) (fire bool, severity Severity, reason string)
}

// ErrorRateHigh fires Warning when the fraction of failed-vs-completed
// tasks exceeds threshold (0 < threshold <= 1).
func ErrorRateHigh(threshold float64) AlertRule {
	return AlertRule{
		Name: "error_rate_high",
		Evaluate: func(s Snapshot) (bool, Severity, string) {
			total := s.TasksCompleted + s.TasksFailed
			if total == 0 {
				return false, SeverityInfo, ""
			}
			rate := float64(s.TasksFailed) / float64(total)
			if rate > threshold {
				return true, SeverityWarning, fmt.Sprintf("task error rate %.2f exceeds threshold %.2f", rate, threshold)
			}
			return false, SeverityInfo, ""
		},
	}
}

// TaskFailureRate fires Critical once the absolute failed-task count
// reaches maxFailures, independent of how many completed successfully.
func TaskFailureRate(maxFailures int) AlertRule {
	return AlertRule{
		Name: "task_failure_count",
		Evaluate: func(s Snapshot) (bool, Severity, string) {
			if s.TasksFailed >= maxFailures {
				return true, SeverityCritical, fmt.Sprintf("%d tasks failed (limit %d)", s.TasksFailed, maxFailures)
			}
			return false, SeverityInfo, ""
		},
	}
}

// AgentUnhealthy fires Critical when the fraction of alive agents drops
// below minAliveFraction among all spawned agents.
func AgentUnhealthy(minAliveFraction float64) AlertRule {
	return AlertRule{
		Name: "agent_unhealthy",
		Evaluate: func(s Snapshot) (bool, Severity, string) {
			if s.TotalAgents == 0 {
				return false, SeverityInfo, ""
			}
			fraction := float64(s.AliveAgents) / float64(s.TotalAgents)
			if fraction < minAliveFraction {
				return true, SeverityCritical, fmt.Sprintf("only %d/%d agents alive", s.AliveAgents, s.TotalAgents)
			}
			return false, SeverityInfo, ""
		},
	}
}

// MessageBacklog fires Warning when PendingMessages exceeds maxPending.
func MessageBacklog(maxPending int) AlertRule {
	return AlertRule{
		Name: "message_backlog",
		Evaluate: func(s Snapshot) (bool, Severity, string) {
			if s.PendingMessages > maxPending {
				return true, SeverityWarning, fmt.Sprintf("%d pending messages exceeds %d", s.PendingMessages, maxPending)
			}
			return false, SeverityInfo, ""
		},
	}
}

// Publisher is the minimal outbound capability a Monitor needs to emit
// alerts; a host binds it to a manager's Broadcast method.
type Publisher func(ctx context.Context, msg message.Message) error

// Monitor polls a SnapshotSource on Interval, evaluates every rule, and
// broadcasts a Custom("alert") message for each one that fires. Its Run
// loop is the long-running behavior Master/Monitor override, unlike the
// Base no-op other workers inherit.
type Monitor struct {
	worker.Base
	Source   SnapshotSource
	Rules    []AlertRule
	Interval time.Duration
	Publish  Publisher
}

// NewMonitor constructs a Monitor worker with the Monitoring capability.
// interval defaults to 10s when zero.
func NewMonitor(id string, source SnapshotSource, rules []AlertRule, interval time.Duration, publish Publisher) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{
		Base: worker.Base{
			AgentID:           id,
			AgentType:         types.AgentTypeMonitor,
			AgentCapabilities: []types.AgentCapability{types.CapabilityMonitoring},
		},
		Source:   source,
		Rules:    rules,
		Interval: interval,
		Publish:  publish,
	}
}

// Run ticks every m.Interval, evaluating all rules against the latest
// Snapshot until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.evaluate(ctx)
		}
	}
}

func (m *Monitor) evaluate(ctx context.Context) {
	if m.Source == nil {
		return
	}
	snapshot := m.Source()
	for _, rule := range m.Rules {
		fire, severity, reason := rule.Evaluate(snapshot)
		if !fire {
			continue
		}
		alert := message.NewBroadcast(m.ID(), message.Custom("alert"), severity.priority(),
			map[string]any{"rule": rule.Name, "severity": string(severity), "reason": reason})
		if m.Publish != nil {
			_ = m.Publish(ctx, alert)
		}
	}
}

// ProcessMessage is a no-op: Monitor's behavior lives entirely in Run.
func (m *Monitor) ProcessMessage(ctx context.Context, msg message.Message) (*message.Message, error) {
	return nil, nil
}

func (m *Monitor) Status() worker.Status {
	return worker.Status{
		ID:           m.ID(),
		Type:         m.Type(),
		AgentStatus:  types.AgentStatusActive,
		Capabilities: m.Capabilities(),
	}
}
