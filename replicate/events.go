package replicate

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/freehandle/ripple/crypto"
	"github.com/freehandle/ripple/feed"
	"github.com/freehandle/ripple/vclock"
)

// Event is delivered to subscriptions. It is one of FinishEvent, AppendEvent
// or RejectedEvent.
type Event interface {
	event()
}

// FinishEvent is emitted once per connection when both sides have sent
// everything they were permitted to send. Clock is what the remote is known
// to hold of the feeds it asked for. Local is the local clock over the feeds
// asked from the remote.
type FinishEvent struct {
	Connection ulid.ULID
	Remote     crypto.Token
	Clock      vclock.Clock
	Local      vclock.Clock
}

// AppendEvent is emitted after a message is committed and folded into the
// graph. Local distinguishes own publications from replicated messages.
type AppendEvent struct {
	Local   bool
	Message *feed.Message
}

// RejectedEvent reports an inbound message dropped by validation.
type RejectedEvent struct {
	Connection ulid.ULID
	Remote     crypto.Token
	Reason     error
}

func (FinishEvent) event()   {}
func (AppendEvent) event()   {}
func (RejectedEvent) event() {}

// Subscription receives node events on C until it is cancelled or the node is
// closed, at which point C is closed. A subscriber that does not keep up
// loses events.
type Subscription struct {
	C   <-chan Event
	c   chan Event
	hub *hub
}

func (s *Subscription) Unsubscribe() {
	s.hub.remove(s)
}

type hub struct {
	mu          sync.Mutex
	buffer      int
	closed      bool
	subscribers map[*Subscription]struct{}
}

func newHub(buffer int) *hub {
	return &hub{buffer: buffer, subscribers: make(map[*Subscription]struct{})}
}

func (h *hub) subscribe() *Subscription {
	c := make(chan Event, h.buffer)
	s := &Subscription{C: c, c: c, hub: h}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c)
		return s
	}
	h.subscribers[s] = struct{}{}
	return s
}

func (h *hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[s]; ok {
		delete(h.subscribers, s)
		close(s.c)
	}
}

func (h *hub) emit(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subscribers {
		select {
		case s.c <- ev:
		default:
			slog.Warn("subscriber is lagging, event dropped", "event", ev)
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subscribers {
		close(s.c)
	}
	h.subscribers = make(map[*Subscription]struct{})
}
