package core

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/command"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/platform/logger"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon/sim"
)

const eventTimeout = 2 * time.Second

var testCore = roon.CoreInfo{CoreID: "test-core", DisplayName: "Test Core", Version: "1.0"}

// newSim returns an unpaired simulated core with one zone per name, each
// with a three track queue. Zone ids are zone-1, zone-2...
func newSim(names ...string) *sim.Core {
	up := sim.New(testCore)
	for i, name := range names {
		id := fmt.Sprintf("zone-%d", i+1)
		up.AddZone(sim.DemoZone(id, name))
		up.SetQueue(id, sim.DemoQueue(name, 3))
	}
	return up
}

func pollingQueues(up *sim.Core) QueueFactory {
	return NewPollingQueueFactory(up, 20, 0, logger.Discard())
}

func newCore(t *testing.T, up *sim.Core, queues QueueFactory, opts Options) *Core {
	t.Helper()
	log := logger.Discard()
	if opts.SubscriberBuffer == 0 {
		opts.SubscriberBuffer = 64
	}
	c := New(up, queues, command.NewDispatcher(up, up, log, nil, time.Second), log, nil, opts)
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

func startedCore(t *testing.T, up *sim.Core, queues QueueFactory) *Core {
	t.Helper()
	c := newCore(t, up, queues, Options{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c
}

// attach registers a session and attaches a consumer to its feed.
func attach(t *testing.T, c *Core) (string, <-chan roon.Event) {
	t.Helper()
	id, err := c.Register()
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return id, attachTo(t, c, id)
}

func attachTo(t *testing.T, c *Core, id string) <-chan roon.Event {
	t.Helper()
	s, err := c.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch, err := s.Feed().Attach(ctx)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return ch
}

func next(t *testing.T, ch <-chan roon.Event) roon.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("feed closed")
		}
		return ev
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for event")
	}
	return roon.Event{}
}

// until reads events up to and including the first one matching match.
func until(t *testing.T, ch <-chan roon.Event, match func(roon.Event) bool) []roon.Event {
	t.Helper()
	var seen []roon.Event
	for {
		ev := next(t, ch)
		seen = append(seen, ev)
		if match(ev) {
			return seen
		}
	}
}

func isState(s roon.GlobalState) func(roon.Event) bool {
	return func(ev roon.Event) bool {
		st, ok := ev.Data.(roon.StateEvent)
		return ok && st.State == s
	}
}

func isType(typ roon.EventType) func(roon.Event) bool {
	return func(ev roon.Event) bool { return ev.Type() == typ }
}

func expectClosed(t *testing.T, ch <-chan roon.Event) {
	t.Helper()
	deadline := time.After(eventTimeout)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("feed was not closed")
		}
	}
}

func expectState(t *testing.T, ev roon.Event, state roon.GlobalState, zoneIDs ...string) {
	t.Helper()
	st, ok := ev.Data.(roon.StateEvent)
	if !ok {
		t.Fatalf("expected state event, got %s", ev.Type())
	}
	if st.State != state {
		t.Errorf("expected state %s, got %s", state, st.State)
	}
	got := make([]string, 0, len(st.Zones))
	for _, z := range st.Zones {
		got = append(got, z.ZoneID)
	}
	if !slices.Equal(got, zoneIDs) {
		t.Errorf("expected zones %v, got %v", zoneIDs, got)
	}
}

func expectZone(t *testing.T, ev roon.Event, zoneID string) *roon.Zone {
	t.Helper()
	ze, ok := ev.Data.(roon.ZoneEvent)
	if !ok {
		t.Fatalf("expected zone event, got %s", ev.Type())
	}
	if ze.ZoneID != zoneID {
		t.Errorf("expected zone %s, got %s", zoneID, ze.ZoneID)
	}
	return ze.Zone
}

func expectQueue(t *testing.T, ev roon.Event, zoneID string, total int) roon.QueueEvent {
	t.Helper()
	qe, ok := ev.Data.(roon.QueueEvent)
	if !ok {
		t.Fatalf("expected queue event, got %s", ev.Type())
	}
	if qe.ZoneID != zoneID || qe.Total != total {
		t.Errorf("expected queue of %d for %s, got %d for %s", total, zoneID, qe.Total, qe.ZoneID)
	}
	return qe
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(eventTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// entry returns a copy of a zone entry, read under the core lock.
func entry(c *Core, id string) (ZoneEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.store.Get(id)
	if !ok {
		return ZoneEntry{}, false
	}
	return *e, true
}

func queueStarted(c *Core, id string) func() bool {
	return func() bool {
		e, ok := entry(c, id)
		return ok && e.queueLive && e.Queue != nil && e.Queue.IsStarted()
	}
}

// fakeQueue starts when the test sends on release.
type fakeQueue struct {
	zoneID  string
	release chan error

	mu      sync.Mutex
	started bool
	stopped bool
}

func (q *fakeQueue) Start(ctx context.Context) error {
	select {
	case err := <-q.release:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.started = !q.stopped
	return nil
}

func (q *fakeQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.started = false
}

func (q *fakeQueue) IsStarted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.started
}

func (q *fakeQueue) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

func (q *fakeQueue) Queue() roon.Event {
	return roon.NewQueueEvent(q.zoneID, 1, []roon.QueueTrack{{QueueItemID: 1}})
}

type fakeQueues struct {
	created chan *fakeQueue
}

func newFakeQueues() *fakeQueues {
	return &fakeQueues{created: make(chan *fakeQueue, 16)}
}

func (f *fakeQueues) factory(zoneID string, onChange func(roon.Event)) QueueManager {
	q := &fakeQueue{zoneID: zoneID, release: make(chan error, 1)}
	f.created <- q
	return q
}

func (f *fakeQueues) next(t *testing.T) *fakeQueue {
	t.Helper()
	select {
	case q := <-f.created:
		return q
	case <-time.After(eventTimeout):
		t.Fatal("no queue manager created")
	}
	return nil
}

// gatedQueue reports itself started as soon as Start runs, then holds Start
// until gate is closed.
type gatedQueue struct {
	zoneID  string
	entered chan struct{}
	gate    chan struct{}

	mu      sync.Mutex
	started bool
}

func (q *gatedQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	q.started = true
	q.mu.Unlock()
	q.entered <- struct{}{}
	select {
	case <-q.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *gatedQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.started = false
}

func (q *gatedQueue) IsStarted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.started
}

func (q *gatedQueue) Queue() roon.Event {
	return roon.NewQueueEvent(q.zoneID, 1, []roon.QueueTrack{{QueueItemID: 1}})
}
