package core

import (
	"context"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/broadcast"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
)

// Feed is the outward event stream of a session: a replay of the current
// state followed by the session's private stream merged with the shared
// broadcast, in arrival order.
type Feed struct {
	session *Session
	sub     *broadcast.Subscription[roon.Event]
}

// Attach starts a consumer of the feed. The returned channel first yields
// the replay, then live events. It is closed when ctx is done, when the
// session is unregistered, when the engine stops, when the consumer falls
// too far behind, or when a later Attach replaces this consumer.
func (f *Feed) Attach(ctx context.Context) (<-chan roon.Event, error) {
	c := f.session.core
	c.mu.Lock()
	if _, err := c.sessionLocked(f.session.ID); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if !c.runningLocked() {
		c.mu.Unlock()
		return nil, ErrNotStarted
	}
	if f.sub != nil {
		f.sub.Cancel()
		f.sub = nil
	}

	sub := broadcast.NewSubscription[roon.Event](c.opts.SubscriberBuffer)
	if err := c.broadcast.Attach(sub); err != nil {
		c.mu.Unlock()
		return nil, ErrNotStarted
	}
	if err := f.session.private.Attach(sub); err != nil {
		c.mu.Unlock()
		sub.Cancel()
		return nil, ErrSessionNotFound
	}
	replay := c.replayLocked()
	f.sub = sub
	c.mu.Unlock()

	out := make(chan roon.Event)
	go pump(ctx, replay, sub, out)
	return out, nil
}

// replayLocked builds the snapshot a new consumer sees before live events:
// one state event, then per zone its zone event and its live or backed-up
// queue event.
func (c *Core) replayLocked() []roon.Event {
	ids := c.store.IDs()
	events := make([]roon.Event, 0, 1+2*len(ids))
	events = append(events, roon.NewStateEvent(c.state, c.describeLocked()))
	for _, id := range ids {
		e, _ := c.store.Get(id)
		if z := e.current(); z != nil {
			events = append(events, roon.NewZoneEvent(z))
		}
		switch {
		case e.Queue != nil && e.queueLive && e.Queue.IsStarted():
			events = append(events, e.Queue.Queue())
		case e.Backup != nil && e.Backup.Queue != nil:
			events = append(events, *e.Backup.Queue)
		}
	}
	return events
}

func pump(ctx context.Context, replay []roon.Event, sub *broadcast.Subscription[roon.Event], out chan<- roon.Event) {
	defer close(out)
	defer sub.Cancel()

	for _, ev := range replay {
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}
