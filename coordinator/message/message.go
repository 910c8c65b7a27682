// Package message defines the envelope type carried across the bus: its
// kind taxonomy, expiry rule, and the filter predicate used by history
// queries and recv_filtered. Priorities are types.Priority values.
package message

import (
	"time"

	"github.com/kestrelhq/agentmesh/coordinator/ids"
	"github.com/kestrelhq/agentmesh/coordinator/types"
)

// Kind is the closed sum of message categories. Control and Custom carry
// associated data, so Kind is a struct rather than a bare string constant;
// construct one with the package-level helpers below.
type Kind struct {
	tag     string
	control ControlCommand
	custom  string
}

// ControlCommand is the payload of a Control message.
type ControlCommand string

const (
	ControlStart    ControlCommand = "start"
	ControlStop     ControlCommand = "stop"
	ControlPause    ControlCommand = "pause"
	ControlResume   ControlCommand = "resume"
	ControlShutdown ControlCommand = "shutdown"
)

var (
	KindTaskAssignment     = Kind{tag: "task_assignment"}
	KindStatusUpdate       = Kind{tag: "status_update"}
	KindResultNotification = Kind{tag: "result_notification"}
	KindResourceRequest    = Kind{tag: "resource_request"}
	KindResourceResponse   = Kind{tag: "resource_response"}
	KindHeartbeat          = Kind{tag: "heartbeat"}
	KindError              = Kind{tag: "error"}
)

// Control builds a Control(cmd) message kind.
func Control(cmd ControlCommand) Kind {
	return Kind{tag: "control", control: cmd}
}

// Custom builds a Custom(tag) message kind for application-defined traffic.
func Custom(tag string) Kind {
	return Kind{tag: "custom", custom: tag}
}

// IsControl reports whether k is Control(cmd) and, if so, returns cmd.
func (k Kind) IsControl() (ControlCommand, bool) {
	if k.tag == "control" {
		return k.control, true
	}
	return "", false
}

func (k Kind) String() string {
	switch k.tag {
	case "control":
		return "control:" + string(k.control)
	case "custom":
		return "custom:" + k.custom
	default:
		return k.tag
	}
}

// Message is the envelope routed by the bus. A nil Receiver means
// broadcast. CorrelationID is set only when this message answers an
// earlier request; ExpiresAt is optional and, when set, must not precede
// CreatedAt.
type Message struct {
	ID            string
	Sender        string
	Receiver      *string
	Kind          Kind
	Priority      types.Priority
	Payload       any
	CreatedAt     time.Time
	CorrelationID *string
	ExpiresAt     *time.Time
}

// New builds a point-to-point message from sender to receiver. Use
// NewBroadcast for a message with no receiver.
func New(sender, receiver string, kind Kind, priority types.Priority, payload any) Message {
	return Message{
		ID:        ids.New("msg"),
		Sender:    sender,
		Receiver:  &receiver,
		Kind:      kind,
		Priority:  priority,
		Payload:   payload,
		CreatedAt: now(),
	}
}

// NewBroadcast builds a message with no receiver, i.e. fanned out to every
// other registered agent.
func NewBroadcast(sender string, kind Kind, priority types.Priority, payload any) Message {
	return Message{
		ID:        ids.New("msg"),
		Sender:    sender,
		Receiver:  nil,
		Kind:      kind,
		Priority:  priority,
		Payload:   payload,
		CreatedAt: now(),
	}
}

// IsBroadcast reports whether the message has no receiver.
func (m Message) IsBroadcast() bool {
	return m.Receiver == nil
}

// Expired reports whether ExpiresAt is set and has already passed as of at.
func (m Message) Expired(at time.Time) bool {
	return m.ExpiresAt != nil && at.After(*m.ExpiresAt)
}

// WithExpiry returns a copy of m that expires after ttl.
func (m Message) WithExpiry(ttl time.Duration) Message {
	exp := m.CreatedAt.Add(ttl)
	m.ExpiresAt = &exp
	return m
}

// WithCorrelation returns a copy of m marked as a response to id.
func (m Message) WithCorrelation(id string) Message {
	m.CorrelationID = &id
	return m
}

// Filter is a predicate over messages, used by History and recv_filtered.
// A nil Filter matches everything.
type Filter func(Message) bool

// Match reports whether f matches m, treating a nil Filter as match-all.
func (f Filter) Match(m Message) bool {
	if f == nil {
		return true
	}
	return f(m)
}

// ByKindTag returns a Filter matching messages whose Kind has the given tag.
func ByKindTag(tag string) Filter {
	return func(m Message) bool { return m.Kind.tag == tag }
}

// BySender returns a Filter matching messages from the given sender.
func BySender(sender string) Filter {
	return func(m Message) bool { return m.Sender == sender }
}

var now = time.Now
