package fragment

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dubedition/guidecore/internal/htmldoc"
)

// EventType identifies what happened to a fragment.
type EventType int

const (
	// EventLoaded fires after a fragment body is inserted into the document.
	EventLoaded EventType = iota
	// EventFailed fires after a load attempt ends in a terminal error.
	EventFailed
	// EventRescan fires after Scan enrolls new placeholders.
	EventRescan
)

// String returns a human-readable event type name.
func (t EventType) String() string {
	switch t {
	case EventLoaded:
		return "loaded"
	case EventFailed:
		return "failed"
	case EventRescan:
		return "rescan"
	default:
		return "unknown"
	}
}

// Event describes a fragment lifecycle change. Consumers use these to
// refresh search indexes or push live updates to connected clients.
type Event struct {
	Type     EventType
	RecordID string
	Source   string
	Owner    htmldoc.NodeRef
	Err      error
	Time     time.Time
}

// subscriptionBuffer is the per-subscriber channel depth. Slow consumers
// drop events rather than stalling fragment loads.
const subscriptionBuffer = 16

// Subscription is a cancellable handle on the event stream. Cancel it
// when done; an abandoned subscription leaks its slot until the bus closes.
type Subscription struct {
	ch     chan Event
	cancel func()
	once   sync.Once
}

// Events returns the channel events are delivered on. It is closed when
// the subscription is cancelled or the bus shuts down.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Cancel detaches the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Bus fan-outs fragment events to subscribers. Publishing never blocks:
// a full subscriber buffer drops the event.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]*Subscription
	nextID int
	closed bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*Subscription)}
}

// Subscribe registers a new subscriber and returns its cancellation handle.
// Subscribing to a closed bus returns a subscription whose channel is
// already closed.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriptionBuffer)
	if b.closed {
		close(ch)
		return &Subscription{ch: ch, cancel: func() {}}
	}

	id := b.nextID
	b.nextID++
	sub := &Subscription{ch: ch}
	sub.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	b.subs[id] = sub
	return sub
}

// Publish delivers an event to every subscriber. Events for subscribers
// with full buffers are dropped.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			slog.Debug("fragment event dropped, slow subscriber",
				slog.String("type", ev.Type.String()),
				slog.String("record_id", ev.RecordID))
		}
	}
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
