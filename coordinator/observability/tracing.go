package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceManager wraps the bundle's tracer with the span shapes this runtime
// needs: publish/consume on the bus, and step dispatch in the plan loop.
type TraceManager struct {
	tracer trace.Tracer
}

func NewTraceManager(o *Observability) *TraceManager {
	return &TraceManager{tracer: o.Tracer}
}

// StartSendSpan wraps a bus send (point-to-point or broadcast).
func (tm *TraceManager) StartSendSpan(ctx context.Context, senderID string, broadcast bool, kind string) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, "bus.send", trace.WithAttributes(
		attribute.String("agent.sender_id", senderID),
		attribute.Bool("message.broadcast", broadcast),
		attribute.String("message.kind", kind),
	))
}

// StartRecvSpan wraps a receiver's recv call.
func (tm *TraceManager) StartRecvSpan(ctx context.Context, receiverID string) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, "bus.recv", trace.WithAttributes(
		attribute.String("agent.receiver_id", receiverID),
	))
}

// StartStepSpan wraps a single plan-step dispatch.
func (tm *TraceManager) StartStepSpan(ctx context.Context, planID string, stepID int, action string) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, "plan.step", trace.WithAttributes(
		attribute.String("plan.id", planID),
		attribute.Int("step.id", stepID),
		attribute.String("step.action", action),
	))
}

// RecordError marks span as failed and attaches err.
func (tm *TraceManager) RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanSuccess marks span as successfully completed.
func (tm *TraceManager) SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
