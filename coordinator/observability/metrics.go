package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsManager holds the counters this runtime exposes: message
// delivery, task throughput, agent registration/eviction, and memory
// reaping.
type MetricsManager struct {
	messagesProcessed metric.Int64Counter
	messagesFailed    metric.Int64Counter
	messagesExpired   metric.Int64Counter

	tasksEnqueued  metric.Int64Counter
	tasksDequeued  metric.Int64Counter
	tasksCompleted metric.Int64Counter
	tasksFailed    metric.Int64Counter

	agentsRegistered metric.Int64Counter
	agentsEvicted    metric.Int64Counter

	memoryEntriesReaped metric.Int64Counter
}

func NewMetricsManager(o *Observability) (*MetricsManager, error) {
	meter := o.Meter
	mm := &MetricsManager{}
	var err error

	if mm.messagesProcessed, err = meter.Int64Counter("messages_processed_total",
		metric.WithDescription("Total messages successfully delivered")); err != nil {
		return nil, err
	}
	if mm.messagesFailed, err = meter.Int64Counter("messages_failed_total",
		metric.WithDescription("Total message delivery failures by reason")); err != nil {
		return nil, err
	}
	if mm.messagesExpired, err = meter.Int64Counter("messages_expired_total",
		metric.WithDescription("Total messages rejected for being already expired")); err != nil {
		return nil, err
	}
	if mm.tasksEnqueued, err = meter.Int64Counter("tasks_enqueued_total",
		metric.WithDescription("Total tasks enqueued")); err != nil {
		return nil, err
	}
	if mm.tasksDequeued, err = meter.Int64Counter("tasks_dequeued_total",
		metric.WithDescription("Total tasks dequeued for execution")); err != nil {
		return nil, err
	}
	if mm.tasksCompleted, err = meter.Int64Counter("tasks_completed_total",
		metric.WithDescription("Total tasks marked completed")); err != nil {
		return nil, err
	}
	if mm.tasksFailed, err = meter.Int64Counter("tasks_failed_total",
		metric.WithDescription("Total tasks marked failed")); err != nil {
		return nil, err
	}
	if mm.agentsRegistered, err = meter.Int64Counter("agents_registered_total",
		metric.WithDescription("Total agent registrations")); err != nil {
		return nil, err
	}
	if mm.agentsEvicted, err = meter.Int64Counter("agents_evicted_total",
		metric.WithDescription("Total agents evicted by the liveness reaper")); err != nil {
		return nil, err
	}
	if mm.memoryEntriesReaped, err = meter.Int64Counter("memory_entries_reaped_total",
		metric.WithDescription("Total memory pool entries removed by the TTL reaper")); err != nil {
		return nil, err
	}

	return mm, nil
}

func (mm *MetricsManager) MessageProcessed(ctx context.Context, broadcast bool) {
	mm.messagesProcessed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("broadcast", broadcast)))
}

func (mm *MetricsManager) MessageFailed(ctx context.Context, reason string) {
	mm.messagesFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (mm *MetricsManager) MessageExpired(ctx context.Context) {
	mm.messagesExpired.Add(ctx, 1)
}

func (mm *MetricsManager) TaskEnqueued(ctx context.Context, priority string) {
	mm.tasksEnqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("priority", priority)))
}

func (mm *MetricsManager) TaskDequeued(ctx context.Context, priority string) {
	mm.tasksDequeued.Add(ctx, 1, metric.WithAttributes(attribute.String("priority", priority)))
}

func (mm *MetricsManager) TaskCompleted(ctx context.Context) {
	mm.tasksCompleted.Add(ctx, 1)
}

func (mm *MetricsManager) TaskFailed(ctx context.Context) {
	mm.tasksFailed.Add(ctx, 1)
}

func (mm *MetricsManager) AgentRegistered(ctx context.Context, agentType string) {
	mm.agentsRegistered.Add(ctx, 1, metric.WithAttributes(attribute.String("agent_type", agentType)))
}

func (mm *MetricsManager) AgentEvicted(ctx context.Context) {
	mm.agentsEvicted.Add(ctx, 1)
}

func (mm *MetricsManager) MemoryEntriesReaped(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	mm.memoryEntriesReaped.Add(ctx, int64(count))
}
