// Package bus implements the message fabric: per-agent point-to-point
// inboxes plus a broadcast fan-out, a bounded history ring, and delivery
// counters.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/kestrelhq/agentmesh/coordinator/errs"
	"github.com/kestrelhq/agentmesh/coordinator/message"
	"github.com/kestrelhq/agentmesh/coordinator/observability"
)

// Config controls the bus's queue capacities and history depth.
type Config struct {
	BroadcastCapacity int
	P2PCapacity       int
	HistorySize       int
}

// DefaultConfig returns the documented default capacities.
func DefaultConfig() Config {
	return Config{
		BroadcastCapacity: 1000,
		P2PCapacity:       100,
		HistorySize:       1000,
	}
}

// Stats are the bus's cumulative delivery counters.
type Stats struct {
	Total     uint64
	Broadcast uint64
	P2P       uint64
	Failed    uint64
	Expired   uint64
}

type subscriber struct {
	agentID   string
	p2p       chan message.Message
	broadcast chan message.Message
}

// Bus is the message fabric. Zero value is not usable; construct with New.
type Bus struct {
	cfg Config
	obs *observability.Observability
	tm  *observability.TraceManager
	mm  *observability.MetricsManager

	mu   sync.RWMutex
	subs map[string]*subscriber

	histMu  sync.Mutex
	history []message.Message

	statsMu sync.Mutex
	stats   Stats
}

// New constructs a Bus. obs may be observability.NoOp() in tests.
func New(cfg Config, obs *observability.Observability) (*Bus, error) {
	mm, err := observability.NewMetricsManager(obs)
	if err != nil {
		return nil, err
	}
	return &Bus{
		cfg:  cfg,
		obs:  obs,
		tm:   observability.NewTraceManager(obs),
		mm:   mm,
		subs: make(map[string]*subscriber),
	}, nil
}

// Receiver is the handle returned by Register: a read-only view over an
// agent's point-to-point and broadcast queues, biased to prefer
// point-to-point delivery when both are ready.
type Receiver struct {
	agentID string
	p2p     <-chan message.Message
	bcast   <-chan message.Message
}

// AgentID returns the id this receiver was registered under.
func (r *Receiver) AgentID() string { return r.agentID }

// P2PChan exposes the raw point-to-point channel so a caller that already
// runs its own select loop (the manager's driver) can multiplex it
// alongside other event sources instead of going through Recv.
func (r *Receiver) P2PChan() <-chan message.Message { return r.p2p }

// BroadcastChan exposes the raw broadcast channel; see P2PChan.
func (r *Receiver) BroadcastChan() <-chan message.Message { return r.bcast }

// Recv blocks until a message arrives or ctx is cancelled. Point-to-point
// messages are preferred over broadcasts whenever both are ready.
func (r *Receiver) Recv(ctx context.Context) (message.Message, error) {
	select {
	case m := <-r.p2p:
		return m, nil
	default:
	}
	select {
	case m := <-r.p2p:
		return m, nil
	case m := <-r.bcast:
		return m, nil
	case <-ctx.Done():
		return message.Message{}, ctx.Err()
	}
}

// RecvFiltered drains messages until one matches filter, discarding every
// non-matching message along the way. This is documented lossy behavior,
// not a bug: discarded messages are not re-queued.
func (r *Receiver) RecvFiltered(ctx context.Context, filter message.Filter) (message.Message, error) {
	for {
		m, err := r.Recv(ctx)
		if err != nil {
			return message.Message{}, err
		}
		if filter.Match(m) {
			return m, nil
		}
	}
}

// Register creates a bounded point-to-point inbox and a broadcast
// subscription for agentID. It fails if agentID is already registered.
func (b *Bus) Register(agentID string) (*Receiver, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subs[agentID]; exists {
		return nil, errs.Internal("agent already registered on bus: " + agentID)
	}

	sub := &subscriber{
		agentID:   agentID,
		p2p:       make(chan message.Message, b.cfg.P2PCapacity),
		broadcast: make(chan message.Message, b.cfg.BroadcastCapacity),
	}
	b.subs[agentID] = sub

	return &Receiver{agentID: agentID, p2p: sub.p2p, bcast: sub.broadcast}, nil
}

// Unregister drops agentID's inbox. In-flight messages addressed to it may
// be silently dropped.
func (b *Bus) Unregister(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, agentID)
}

// Send routes m based on m.Receiver: nil means broadcast to every other
// registered agent, otherwise point-to-point to the named receiver.
func (b *Bus) Send(ctx context.Context, m message.Message) error {
	ctx, span := b.tm.StartSendSpan(ctx, m.Sender, m.IsBroadcast(), m.Kind.String())
	defer span.End()

	if m.Expired(time.Now()) {
		b.mm.MessageExpired(ctx)
		b.recordExpired()
		b.tm.RecordError(span, errs.ErrExpired)
		return errs.ErrExpired
	}

	b.appendHistory(m)

	var err error
	if m.IsBroadcast() {
		err = b.sendBroadcast(ctx, m)
	} else {
		err = b.sendP2P(ctx, m)
	}

	if err != nil {
		b.mm.MessageFailed(ctx, err.Error())
		b.tm.RecordError(span, err)
		return err
	}
	b.mm.MessageProcessed(ctx, m.IsBroadcast())
	b.tm.SetSpanSuccess(span)
	return nil
}

// Broadcast is send on a message with no receiver; there is no separate
// broadcast_message alias.
func (b *Bus) Broadcast(ctx context.Context, m message.Message) error {
	m.Receiver = nil
	return b.Send(ctx, m)
}

func (b *Bus) sendP2P(ctx context.Context, m message.Message) error {
	b.mu.RLock()
	sub, ok := b.subs[*m.Receiver]
	b.mu.RUnlock()

	if !ok {
		b.recordFailed()
		return errs.ErrUnknownReceiver
	}

	select {
	case sub.p2p <- m:
		b.statsMu.Lock()
		b.stats.Total++
		b.stats.P2P++
		b.statsMu.Unlock()
		return nil
	default:
		b.recordFailed()
		return errs.ErrBackpressure
	}
}

func (b *Bus) sendBroadcast(ctx context.Context, m message.Message) error {
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subs))
	for id, sub := range b.subs {
		if id == m.Sender {
			continue // no self-delivery on the broadcast path
		}
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		b.recordFailed()
		return errs.ErrNoSubscribers
	}

	for _, sub := range targets {
		select {
		case sub.broadcast <- m:
		default:
			// Lagged subscriber: documented lossy behavior, not an error.
		}
	}

	b.statsMu.Lock()
	b.stats.Total++
	b.stats.Broadcast++
	b.statsMu.Unlock()
	return nil
}

func (b *Bus) recordFailed() {
	b.statsMu.Lock()
	b.stats.Failed++
	b.statsMu.Unlock()
}

func (b *Bus) recordExpired() {
	b.statsMu.Lock()
	b.stats.Expired++
	b.statsMu.Unlock()
}

func (b *Bus) appendHistory(m message.Message) {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	b.history = append(b.history, m)
	if over := len(b.history) - b.cfg.HistorySize; over > 0 {
		b.history = b.history[over:]
	}
}

// History returns a snapshot of the ring, most-recent-last, optionally
// filtered.
func (b *Bus) History(filter message.Filter) []message.Message {
	b.histMu.Lock()
	defer b.histMu.Unlock()

	out := make([]message.Message, 0, len(b.history))
	for _, m := range b.history {
		if filter.Match(m) {
			out = append(out, m)
		}
	}
	return out
}

// Stats returns the bus's cumulative delivery counters.
func (b *Bus) Stats() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.stats
}
