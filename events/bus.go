package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Topic is the name of the logout broadcast channel.
const Topic = "auth:logout"

// Reason explains why a session ended.
type Reason string

const (
	ReasonSessionExpired         Reason = "session_expired"
	ReasonAuthenticationRequired Reason = "authentication_required"
	ReasonAccessDenied           Reason = "access_denied"
	ReasonLoggedOut              Reason = "logged_out"
)

// Valid reports whether r is one of the known reasons.
func (r Reason) Valid() bool {
	switch r {
	case ReasonSessionExpired, ReasonAuthenticationRequired, ReasonAccessDenied, ReasonLoggedOut:
		return true
	}
	return false
}

// Event is one logout broadcast.
type Event struct {
	ID     string    `json:"id"`
	Topic  string    `json:"topic"`
	Reason Reason    `json:"reason"`
	At     time.Time `json:"at"`
}

// Subscription receives events published after it was created.
type Subscription struct {
	C <-chan Event

	bus       *Bus
	ch        chan Event
	closeOnce sync.Once

	// unbounded subscriptions queue here and a pump feeds ch
	mu    sync.Mutex
	queue []Event
	wake  chan struct{}
	stop  chan struct{}
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		s.bus.remove(s)
	})
}

// Bus is a process-local broadcast channel. The zero value is not usable; use
// [NewBus].
type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	closed  bool
	now     func() time.Time
	dropped atomic.Uint64
	sent    atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[*Subscription]struct{}),
		now:  time.Now,
	}
}

// SubscribeUnbounded registers a subscriber that never misses an event.
// Publish queues for it without blocking; the queue grows until the reader
// catches up or the subscription is closed.
func (b *Bus) SubscribeUnbounded() *Subscription {
	ch := make(chan Event)
	sub := &Subscription{C: ch, bus: b, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	sub.wake = make(chan struct{}, 1)
	sub.stop = make(chan struct{})
	b.subs[sub] = struct{}{}
	go sub.pump()
	return sub
}

// Subscribe registers a new subscriber whose channel holds up to buffer
// undelivered events.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, bus: b, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish broadcasts reason to every subscriber without blocking and returns
// the event that was sent. ctx is accepted for symmetry with other emitters;
// delivery never waits.
func (b *Bus) Publish(_ context.Context, reason Reason) Event {
	ev := Event{
		ID:     uuid.NewString(),
		Topic:  Topic,
		Reason: reason,
		At:     b.now(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ev
	}

	b.sent.Add(1)
	for sub := range b.subs {
		if !sub.deliver(ev) {
			b.dropped.Add(1)
		}
	}
	return ev
}

// Published returns how many events were broadcast.
func (b *Bus) Published() uint64 {
	if b == nil {
		return 0
	}
	return b.sent.Load()
}

// Dropped returns how many deliveries were skipped because a subscriber was
// full.
func (b *Bus) Dropped() uint64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

// Close detaches and closes every subscription. Later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		sub.shutdown()
		delete(b.subs, sub)
	}
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	sub.shutdown()
}

func (s *Subscription) deliver(ev Event) bool {
	if s.wake == nil {
		select {
		case s.ch <- ev:
			return true
		default:
			return false
		}
	}
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Subscription) pump() {
	defer close(s.ch)
	for {
		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		s.mu.Unlock()
		for _, ev := range pending {
			select {
			case s.ch <- ev:
			case <-s.stop:
				return
			}
		}
		select {
		case <-s.wake:
		case <-s.stop:
			return
		}
	}
}

// shutdown must run under the bus lock.
func (s *Subscription) shutdown() {
	if s.stop != nil {
		close(s.stop)
		return
	}
	close(s.ch)
}
