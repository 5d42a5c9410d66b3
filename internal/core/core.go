// Package core owns the canonical zone table and the viewer session table.
//
// A single Core serializes every mutation of both tables behind one mutex.
// Upstream notifications, queue results, timer ticks and viewer requests all
// enter through methods that take it. Events are published on a shared
// broadcast hub while the lock is held; delivery never blocks.
package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/broadcast"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/command"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/platform/metrics"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
)

// Dispatcher executes viewer commands against the upstream core.
type Dispatcher interface {
	Execute(cmd command.Command, target command.Publisher) string
	Browse(ctx context.Context, req roon.BrowseRequest) (roon.BrowseResult, error)
	Load(ctx context.Context, req roon.LoadRequest) (roon.LoadResult, error)
}

// Options tunes a Core.
type Options struct {
	// SubscriberBuffer is the number of events a feed may lag behind before
	// it is dropped.
	SubscriberBuffer int
	// PingInterval is the period of ping events. Zero disables them.
	PingInterval time.Duration
}

// Core is the synchronization engine and the session registry.
type Core struct {
	upstream   roon.Upstream
	queues     QueueFactory
	dispatcher Dispatcher
	log        *slog.Logger
	metrics    *metrics.Metrics
	opts       Options
	newID      func() string

	mu        sync.Mutex
	started   bool
	state     roon.GlobalState
	gen       uint64
	zoneSub   roon.Subscription
	outputSub roon.Subscription
	store     Store
	broadcast *broadcast.Hub[roon.Event]
	sessions  map[string]*Session
	ctx       context.Context
	cancel    context.CancelFunc
}

// New returns a Core in state STARTING. queues may be nil, in which case
// zones never carry queue data. Metrics may be nil.
func New(upstream roon.Upstream, queues QueueFactory, dispatcher Dispatcher, log *slog.Logger, m *metrics.Metrics, opts Options) *Core {
	c := &Core{
		upstream:   upstream,
		queues:     queues,
		dispatcher: dispatcher,
		log:        log.With("component", "core"),
		metrics:    m,
		opts:       opts,
		newID:      uuid.NewString,
		state:      roon.GlobalStarting,
		store:      NewInMemoryStore(),
		broadcast:  broadcast.New[roon.Event](opts.SubscriberBuffer),
		sessions:   make(map[string]*Session),
	}
	c.broadcast.OnDrop(c.dropped)
	return c
}

// State returns the current GlobalState and zone list.
func (c *Core) State() roon.StateEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return roon.StateEvent{State: c.state, Zones: c.describeLocked()}
}

// SessionCount returns the number of registered sessions.
func (c *Core) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Core) runningLocked() bool {
	return c.started && c.state != roon.GlobalStopped
}

func (c *Core) describeLocked() []roon.ZoneDescription {
	ids := c.store.IDs()
	zones := make([]roon.ZoneDescription, 0, len(ids))
	for _, id := range ids {
		e, _ := c.store.Get(id)
		zones = append(zones, roon.ZoneDescription{ZoneID: e.ID, DisplayName: e.DisplayName})
	}
	return zones
}

func (c *Core) publishLocked(ev roon.Event) {
	c.broadcast.Publish(ev)
	c.metrics.IncEventsPublished(string(ev.Type()))
}

func (c *Core) transitionLocked(s roon.GlobalState) {
	if c.state != s {
		c.log.Info("state changed", slog.String("from", string(c.state)), slog.String("to", string(s)))
	}
	c.state = s
	c.setStateMetricLocked()
	c.publishLocked(roon.NewStateEvent(s, c.describeLocked()))
}

func (c *Core) setStateMetricLocked() {
	all := make([]string, len(roon.AllGlobalStates))
	for i, s := range roon.AllGlobalStates {
		all[i] = string(s)
	}
	c.metrics.SetUpstreamState(string(c.state), all)
}

// dropped runs with a hub lock held.
func (c *Core) dropped() {
	c.log.Warn("feed dropped: subscriber fell behind")
	c.metrics.IncSubscribersDropped()
}

func (c *Core) ping(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	next := max(int(interval/time.Second), 1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.state != roon.GlobalStopped {
				c.publishLocked(roon.Event{Data: roon.PingEvent{Next: next}})
			}
			c.mu.Unlock()
		}
	}
}
