// Package broadcast provides an in-memory publish/subscribe hub with bounded,
// non-blocking delivery.
//
// A Subscription may be attached to several hubs at once. Values published on
// any of them land on the subscription's single channel in arrival order. A
// subscription whose buffer is full when a value arrives is closed and
// detached: publishers never block on slow readers.
package broadcast

import (
	"errors"
	"sync"
)

// ErrClosed is returned when attaching to a closed hub or subscription.
var ErrClosed = errors.New("broadcast: closed")

// Hub fans values out to every attached subscription.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	closed bool
	buffer int
	onDrop func()
}

// New returns a hub whose Subscribe creates subscriptions buffering up to
// buffer values. buffer <= 0 is treated as 1.
func New[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub[T]{subs: make(map[*Subscription[T]]struct{}), buffer: buffer}
}

// OnDrop registers fn to be called whenever a subscription is dropped for
// falling behind. fn runs with the hub lock held and must not call back into
// the hub.
func (h *Hub[T]) OnDrop(fn func()) {
	h.mu.Lock()
	h.onDrop = fn
	h.mu.Unlock()
}

// Subscribe creates a subscription with the hub's buffer size and attaches it.
func (h *Hub[T]) Subscribe() (*Subscription[T], error) {
	s := NewSubscription[T](h.buffer)
	if err := h.Attach(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Attach adds s to the hub.
func (h *Hub[T]) Attach(s *Subscription[T]) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if !s.link(h) {
		return ErrClosed
	}
	h.subs[s] = struct{}{}
	return nil
}

// Publish delivers v to every subscription and returns how many received it.
func (h *Hub[T]) Publish(v T) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}
	n := 0
	for s := range h.subs {
		switch s.deliver(v) {
		case delivered:
			n++
		case overflowed:
			delete(h.subs, s)
			if h.onDrop != nil {
				h.onDrop()
			}
		default:
			delete(h.subs, s)
		}
	}
	return n
}

// Len returns the number of attached subscriptions.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every attached subscription. Publish becomes a no-op.
// Calling Close twice is safe.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for s := range h.subs {
		s.close()
	}
	h.subs = nil
}

// Closed reports whether Close has been called.
func (h *Hub[T]) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Hub[T]) detach(s *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s)
}

// Subscription receives values from one or more hubs on a single channel.
type Subscription[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
	hubs   []*Hub[T]
}

// NewSubscription returns a detached subscription buffering up to buffer values.
func NewSubscription[T any](buffer int) *Subscription[T] {
	if buffer <= 0 {
		buffer = 1
	}
	return &Subscription[T]{ch: make(chan T, buffer)}
}

// C returns the delivery channel. It is closed when the subscription is
// cancelled, dropped, or any hub it is attached to is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Cancel closes the subscription and detaches it from every hub.
func (s *Subscription[T]) Cancel() {
	s.mu.Lock()
	hubs := s.hubs
	s.hubs = nil
	s.closeLocked()
	s.mu.Unlock()
	for _, h := range hubs {
		h.detach(s)
	}
}

func (s *Subscription[T]) link(h *Hub[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.hubs = append(s.hubs, h)
	return true
}

type outcome int

const (
	delivered outcome = iota
	overflowed
	gone
)

// deliver closes the subscription when its buffer is full.
func (s *Subscription[T]) deliver(v T) outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return gone
	}
	select {
	case s.ch <- v:
		return delivered
	default:
		s.closeLocked()
		return overflowed
	}
}

func (s *Subscription[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription[T]) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
