package message

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kestrelhq/agentmesh/coordinator/types"
)

func TestIsBroadcast(t *testing.T) {
	p2p := New("a1", "a2", KindTaskAssignment, types.PriorityNormal, nil)
	if p2p.IsBroadcast() {
		t.Error("point-to-point message reported as broadcast")
	}

	bcast := NewBroadcast("a1", KindStatusUpdate, types.PriorityNormal, nil)
	if !bcast.IsBroadcast() {
		t.Error("broadcast message (nil receiver) not reported as broadcast")
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	m := New("a1", "a2", KindHeartbeat, types.PriorityLow, nil)

	if m.Expired(now) {
		t.Error("message with no expiry reported expired")
	}

	m = m.WithExpiry(-time.Second) // already in the past relative to CreatedAt
	if !m.Expired(now) {
		t.Error("message past its expires_at not reported expired")
	}
}

func TestFilterMatchNilIsMatchAll(t *testing.T) {
	var f Filter
	m := New("a1", "a2", KindHeartbeat, types.PriorityLow, nil)
	if !f.Match(m) {
		t.Error("nil Filter should match every message")
	}
}

func TestBySenderFilter(t *testing.T) {
	f := BySender("a1")
	mine := New("a1", "a2", KindHeartbeat, types.PriorityLow, nil)
	theirs := New("a3", "a2", KindHeartbeat, types.PriorityLow, nil)

	if !f.Match(mine) {
		t.Error("BySender filter rejected a message from the matching sender")
	}
	if f.Match(theirs) {
		t.Error("BySender filter accepted a message from a different sender")
	}
}

func TestControlKindRoundTrip(t *testing.T) {
	k := Control(ControlPause)
	cmd, ok := k.IsControl()
	if !ok || cmd != ControlPause {
		t.Fatalf("IsControl() = (%v, %v), want (%v, true)", cmd, ok, ControlPause)
	}
	if KindHeartbeat == k {
		t.Error("Control(Pause) must not equal the simple Heartbeat kind")
	}
}

func TestKindJSONSimpleVariant(t *testing.T) {
	data, err := json.Marshal(KindTaskAssignment)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"TaskAssignment"` {
		t.Errorf("Marshal(KindTaskAssignment) = %s, want %q", data, `"TaskAssignment"`)
	}

	var k Kind
	if err := json.Unmarshal(data, &k); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if k != KindTaskAssignment {
		t.Errorf("round-tripped kind = %v, want KindTaskAssignment", k)
	}
}

func TestKindJSONControlVariant(t *testing.T) {
	k := Control(ControlShutdown)
	data, err := json.Marshal(k)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"Control":"Shutdown"}` {
		t.Errorf("Marshal(Control(Shutdown)) = %s, want %q", data, `{"Control":"Shutdown"}`)
	}

	var decoded Kind
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	cmd, ok := decoded.IsControl()
	if !ok || cmd != ControlShutdown {
		t.Errorf("round-tripped control kind = (%v, %v), want (%v, true)", cmd, ok, ControlShutdown)
	}
}

func TestKindJSONCustomVariant(t *testing.T) {
	k := Custom("alert")
	data, err := json.Marshal(k)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"Custom":"alert"}` {
		t.Errorf("Marshal(Custom(alert)) = %s, want %q", data, `{"Custom":"alert"}`)
	}

	var decoded Kind
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.String() != "custom:alert" {
		t.Errorf("round-tripped custom kind = %q, want %q", decoded.String(), "custom:alert")
	}
}

func TestMessageJSONRoundTrip(t *testing.T) {
	original := New("planner-1", "executor-1", KindTaskAssignment, types.PriorityHigh,
		map[string]any{"goal": "summarize the report"})
	original = original.WithExpiry(time.Minute)
	original = original.WithCorrelation("req-123")

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.ID != original.ID {
		t.Errorf("ID = %q, want %q", decoded.ID, original.ID)
	}
	if decoded.Sender != original.Sender {
		t.Errorf("Sender = %q, want %q", decoded.Sender, original.Sender)
	}
	if decoded.Receiver == nil || *decoded.Receiver != *original.Receiver {
		t.Errorf("Receiver = %v, want %v", decoded.Receiver, original.Receiver)
	}
	if decoded.Kind != original.Kind {
		t.Errorf("Kind = %v, want %v", decoded.Kind, original.Kind)
	}
	if decoded.Priority != original.Priority {
		t.Errorf("Priority = %v, want %v", decoded.Priority, original.Priority)
	}
	if decoded.CorrelationID == nil || *decoded.CorrelationID != *original.CorrelationID {
		t.Errorf("CorrelationID = %v, want %v", decoded.CorrelationID, original.CorrelationID)
	}
	if decoded.ExpiresAt == nil || !decoded.ExpiresAt.Equal(*original.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", decoded.ExpiresAt, original.ExpiresAt)
	}
	if !decoded.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", decoded.CreatedAt, original.CreatedAt)
	}

	payload, ok := decoded.Payload.(map[string]any)
	if !ok || payload["goal"] != "summarize the report" {
		t.Errorf("Payload round-trip = %v, want goal field preserved", decoded.Payload)
	}
}

func TestMessageJSONBroadcastHasNilReceiver(t *testing.T) {
	m := NewBroadcast("monitor-1", KindStatusUpdate, types.PriorityNormal, map[string]any{"status": "ready"})
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Receiver != nil {
		t.Errorf("decoded.Receiver = %v, want nil for a broadcast message", decoded.Receiver)
	}
	if !decoded.IsBroadcast() {
		t.Error("round-tripped broadcast message no longer reports IsBroadcast()")
	}
}
