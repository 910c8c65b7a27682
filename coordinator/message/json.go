package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrelhq/agentmesh/coordinator/types"
)

const rfc3339 = time.RFC3339Nano

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(rfc3339, s)
}

func priorityFromInt(v int) types.Priority {
	switch v {
	case int(types.PriorityLow), int(types.PriorityNormal), int(types.PriorityHigh), int(types.PriorityUrgent):
		return types.Priority(v)
	default:
		return types.PriorityNormal
	}
}

// wireKind is the serialized message-type tagged union: a bare string for
// the simple variants, or a single-key object ({"Control": "..."} /
// {"Custom": "..."}) for the two that carry data.
type wireKind struct {
	Control *string `json:"Control,omitempty"`
	Custom  *string `json:"Custom,omitempty"`
}

// Control commands serialize capitalized ("Shutdown"), distinct from the
// lowercase in-memory constants.
var controlWireNames = map[ControlCommand]string{
	ControlStart:    "Start",
	ControlStop:     "Stop",
	ControlPause:    "Pause",
	ControlResume:   "Resume",
	ControlShutdown: "Shutdown",
}

var controlByWireName = func() map[string]ControlCommand {
	out := make(map[string]ControlCommand, len(controlWireNames))
	for cmd, wire := range controlWireNames {
		out[wire] = cmd
	}
	return out
}()

var simpleKindTags = map[string]string{
	"task_assignment":     "TaskAssignment",
	"status_update":       "StatusUpdate",
	"result_notification": "ResultNotification",
	"resource_request":    "ResourceRequest",
	"resource_response":   "ResourceResponse",
	"heartbeat":           "Heartbeat",
	"error":               "Error",
}

var simpleKindByWire = func() map[string]Kind {
	out := make(map[string]Kind, len(simpleKindTags))
	for internal, wire := range simpleKindTags {
		out[wire] = Kind{tag: internal}
	}
	return out
}()

// MarshalJSON renders Kind as the schema's tagged union.
func (k Kind) MarshalJSON() ([]byte, error) {
	if wire, ok := simpleKindTags[k.tag]; ok {
		return json.Marshal(wire)
	}
	if cmd, ok := k.IsControl(); ok {
		wire, ok := controlWireNames[cmd]
		if !ok {
			return nil, fmt.Errorf("message: unknown control command %q", cmd)
		}
		return json.Marshal(wireKind{Control: &wire})
	}
	if k.tag == "custom" {
		tag := k.custom
		return json.Marshal(wireKind{Custom: &tag})
	}
	return nil, fmt.Errorf("message: cannot marshal kind with empty tag")
}

// UnmarshalJSON parses either a bare string variant or a {"Control":...}/
// {"Custom":...} object.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if found, ok := simpleKindByWire[s]; ok {
			*k = found
			return nil
		}
		return fmt.Errorf("message: unknown message_type %q", s)
	}

	var w wireKind
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("message: invalid message_type: %w", err)
	}
	switch {
	case w.Control != nil:
		cmd, ok := controlByWireName[*w.Control]
		if !ok {
			return fmt.Errorf("message: unknown control command %q", *w.Control)
		}
		*k = Control(cmd)
	case w.Custom != nil:
		*k = Custom(*w.Custom)
	default:
		return fmt.Errorf("message: message_type object has neither Control nor Custom")
	}
	return nil
}

// wireMessage carries the serialized field names, which differ from the
// Go struct's: sender_id/receiver_id/message_type/timestamp instead of
// Sender/Receiver/Kind/CreatedAt.
type wireMessage struct {
	ID            string         `json:"id"`
	SenderID      string         `json:"sender_id"`
	ReceiverID    *string        `json:"receiver_id"`
	MessageType   Kind           `json:"message_type"`
	Priority      int            `json:"priority"`
	Payload       any            `json:"payload"`
	Timestamp     string         `json:"timestamp"`
	CorrelationID *string        `json:"correlation_id"`
	ExpiresAt     *string        `json:"expires_at"`
}

// MarshalJSON renders m in the persisted/traversed wire schema.
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		ID:            m.ID,
		SenderID:      m.Sender,
		ReceiverID:    m.Receiver,
		MessageType:   m.Kind,
		Priority:      int(m.Priority),
		Payload:       m.Payload,
		Timestamp:     m.CreatedAt.Format(rfc3339),
		CorrelationID: m.CorrelationID,
	}
	if m.ExpiresAt != nil {
		s := m.ExpiresAt.Format(rfc3339)
		w.ExpiresAt = &s
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses m from the persisted/traversed wire schema.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	ts, err := parseTime(w.Timestamp)
	if err != nil {
		return fmt.Errorf("message: invalid timestamp: %w", err)
	}

	*m = Message{
		ID:            w.ID,
		Sender:        w.SenderID,
		Receiver:      w.ReceiverID,
		Kind:          w.MessageType,
		Priority:      priorityFromInt(w.Priority),
		Payload:       w.Payload,
		CreatedAt:     ts,
		CorrelationID: w.CorrelationID,
	}
	if w.ExpiresAt != nil {
		exp, err := parseTime(*w.ExpiresAt)
		if err != nil {
			return fmt.Errorf("message: invalid expires_at: %w", err)
		}
		m.ExpiresAt = &exp
	}
	return nil
}
