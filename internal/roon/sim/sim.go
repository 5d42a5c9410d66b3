// Package sim is an in-memory stand-in for the upstream audio core. It
// implements every upstream interface of package roon, delivers notifications
// synchronously from its driver methods, and can animate playback on a ticker.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
)

var errNotStarted = errors.New("sim: not started")

// Core is a simulated upstream core.
type Core struct {
	mu       sync.Mutex
	info     roon.CoreInfo
	log      *slog.Logger
	autoPair bool

	started bool
	paired  bool
	pairing roon.PairingHandler

	order  []string
	zones  map[string]*roon.Zone
	queues map[string][]roon.QueueTrack
	qerrs  map[string]error

	nextSub    int
	zoneSubs   map[int]func(roon.ZoneNotification)
	outputSubs map[int]func(roon.OutputNotification)
}

// Option configures a Core.
type Option func(*Core)

// WithAutoPair makes Start pair immediately.
func WithAutoPair() Option {
	return func(c *Core) { c.autoPair = true }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Core) { c.log = log }
}

// New returns an empty simulated core.
func New(info roon.CoreInfo, opts ...Option) *Core {
	c := &Core{
		info:       info,
		log:        slog.Default(),
		zones:      make(map[string]*roon.Zone),
		queues:     make(map[string][]roon.QueueTrack),
		qerrs:      make(map[string]error),
		zoneSubs:   make(map[int]func(roon.ZoneNotification)),
		outputSubs: make(map[int]func(roon.OutputNotification)),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("component", "sim")
	return c
}

// NewDemo returns an auto-pairing core with one playing zone per name, each
// with a single output and a queue of queueLen generated tracks.
func NewDemo(names []string, queueLen int, opts ...Option) *Core {
	c := New(roon.CoreInfo{CoreID: "sim-core", DisplayName: "Simulated Core", Version: "1.0"},
		append([]Option{WithAutoPair()}, opts...)...)
	for i, name := range names {
		z := DemoZone(fmt.Sprintf("zone-%d", i+1), name)
		c.order = append(c.order, z.ZoneID)
		c.zones[z.ZoneID] = &z
		c.queues[z.ZoneID] = DemoQueue(name, queueLen)
	}
	return c
}

// DemoZone builds a playing zone with a single output.
func DemoZone(id, name string) roon.Zone {
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
	return roon.Zone{
		ZoneID:      id,
		DisplayName: name,
		Outputs: []roon.Output{{
			OutputID:    "output-" + slug,
			ZoneID:      id,
			DisplayName: name,
			Volume:      &roon.Volume{Type: roon.VolumeNumber, Min: 0, Max: 100, Value: 30, Step: 1},
		}},
		State:             roon.StatePlaying,
		IsPreviousAllowed: true,
		IsNextAllowed:     true,
		IsPauseAllowed:    true,
		IsSeekAllowed:     true,
		NowPlaying: &roon.NowPlaying{
			SeekPosition: roon.IntPtr(0),
			Length:       240,
			OneLine:      roon.Lines{Line1: name + " opener"},
			TwoLine:      roon.Lines{Line1: name + " opener", Line2: "Simulated Artist"},
			ThreeLine:    roon.Lines{Line1: name + " opener", Line2: "Simulated Artist", Line3: "Simulated Album"},
		},
		SeekPosition: roon.IntPtr(0),
	}
}

// DemoQueue builds n tracks.
func DemoQueue(prefix string, n int) []roon.QueueTrack {
	tracks := make([]roon.QueueTrack, 0, n)
	for i := 1; i <= n; i++ {
		title := fmt.Sprintf("%s track %d", prefix, i)
		tracks = append(tracks, roon.QueueTrack{
			QueueItemID: i,
			Length:      180 + i,
			OneLine:     roon.Lines{Line1: title},
			TwoLine:     roon.Lines{Line1: title, Line2: "Simulated Artist"},
			ThreeLine:   roon.Lines{Line1: title, Line2: "Simulated Artist", Line3: "Simulated Album"},
		})
	}
	return tracks
}

// Start implements roon.Upstream.
func (c *Core) Start(ctx context.Context, h roon.PairingHandler) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("sim: already started")
	}
	c.started = true
	c.pairing = h
	auto := c.autoPair
	c.mu.Unlock()

	c.log.Info("extension started", slog.String("core_id", c.info.CoreID))
	if auto {
		c.Pair()
	}
	return nil
}

// Stop implements roon.Upstream.
func (c *Core) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
	c.paired = false
	c.pairing = nil
	clear(c.zoneSubs)
	clear(c.outputSubs)
	return nil
}

type subscription struct {
	once sync.Once
	fn   func()
}

func (s *subscription) Unsubscribe() { s.once.Do(s.fn) }

// SubscribeZones implements roon.Upstream. The initial snapshot is delivered
// before SubscribeZones returns.
func (c *Core) SubscribeZones(fn func(roon.ZoneNotification)) (roon.Subscription, error) {
	c.mu.Lock()
	if !c.paired {
		c.mu.Unlock()
		return nil, roon.ErrNotPaired
	}
	c.nextSub++
	id := c.nextSub
	c.zoneSubs[id] = fn
	snapshot := c.zonesLocked()
	c.mu.Unlock()

	fn(roon.ZonesSubscribed{Zones: snapshot})
	return &subscription{fn: func() {
		c.mu.Lock()
		delete(c.zoneSubs, id)
		c.mu.Unlock()
	}}, nil
}

// SubscribeOutputs implements roon.Upstream.
func (c *Core) SubscribeOutputs(fn func(roon.OutputNotification)) (roon.Subscription, error) {
	c.mu.Lock()
	if !c.paired {
		c.mu.Unlock()
		return nil, roon.ErrNotPaired
	}
	c.nextSub++
	id := c.nextSub
	c.outputSubs[id] = fn
	var outputs []roon.Output
	for _, z := range c.zonesLocked() {
		outputs = append(outputs, z.Outputs...)
	}
	c.mu.Unlock()

	fn(roon.OutputsSubscribed{Outputs: outputs})
	return &subscription{fn: func() {
		c.mu.Lock()
		delete(c.outputSubs, id)
		c.mu.Unlock()
	}}, nil
}

// ZoneSubscribers returns the number of registered zone handlers.
func (c *Core) ZoneSubscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.zoneSubs)
}

// OutputSubscribers returns the number of registered output handlers.
func (c *Core) OutputSubscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outputSubs)
}

// Pair reports the core as paired.
func (c *Core) Pair() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.paired = true
	h := c.pairing
	c.mu.Unlock()
	if h != nil {
		h.Paired(c.info)
	}
}

// Lose simulates a dropped connection: every server-side subscription is
// forgotten and the pairing handler is told the core went away.
func (c *Core) Lose() {
	c.mu.Lock()
	if !c.paired {
		c.mu.Unlock()
		return
	}
	c.paired = false
	clear(c.zoneSubs)
	clear(c.outputSubs)
	h := c.pairing
	c.mu.Unlock()
	if h != nil {
		h.Unpaired(c.info)
	}
}

// AddZone adds z and notifies subscribers.
func (c *Core) AddZone(z roon.Zone) {
	c.mu.Lock()
	if _, ok := c.zones[z.ZoneID]; !ok {
		c.order = append(c.order, z.ZoneID)
	}
	stored := z.Clone()
	c.zones[z.ZoneID] = stored
	n := roon.ZonesChanged{Added: []roon.Zone{*stored.Clone()}}
	c.mu.Unlock()
	c.notifyZones(n)
}

// RemoveZone removes a zone and notifies subscribers.
func (c *Core) RemoveZone(zoneID string) {
	c.mu.Lock()
	if _, ok := c.zones[zoneID]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.zones, zoneID)
	delete(c.queues, zoneID)
	for i, id := range c.order {
		if id == zoneID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.notifyZones(roon.ZonesChanged{Removed: []string{zoneID}})
}

// UpdateZone replaces a zone and notifies subscribers. Unknown zones are
// still reported, mimicking an upstream race.
func (c *Core) UpdateZone(z roon.Zone) {
	c.mu.Lock()
	if _, ok := c.zones[z.ZoneID]; ok {
		c.zones[z.ZoneID] = z.Clone()
	}
	c.mu.Unlock()
	c.notifyZones(roon.ZonesChanged{Changed: []roon.Zone{*z.Clone()}})
}

// SeekZone moves the seek position of a zone and notifies subscribers.
func (c *Core) SeekZone(zoneID string, position, queueTimeRemaining int) {
	c.mu.Lock()
	if z, ok := c.zones[zoneID]; ok {
		z.SeekPosition = roon.IntPtr(position)
		if z.NowPlaying != nil {
			z.NowPlaying.SeekPosition = roon.IntPtr(position)
		}
		z.QueueTimeRemaining = queueTimeRemaining
	}
	c.mu.Unlock()
	c.notifyZones(roon.ZonesChanged{SeekChanged: []roon.SeekChange{{
		ZoneID:             zoneID,
		SeekPosition:       roon.IntPtr(position),
		QueueTimeRemaining: queueTimeRemaining,
	}}})
}

// UpdateOutput replaces an output inside its zone and notifies output
// subscribers.
func (c *Core) UpdateOutput(o roon.Output) {
	c.mu.Lock()
	if z, ok := c.zones[o.ZoneID]; ok {
		for i := range z.Outputs {
			if z.Outputs[i].OutputID == o.OutputID {
				z.Outputs[i] = o
			}
		}
	}
	c.mu.Unlock()
	c.notifyOutputs(roon.OutputsChanged{Changed: []roon.Output{o}})
}

// SetQueue replaces the queue of a zone.
func (c *Core) SetQueue(zoneID string, tracks []roon.QueueTrack) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues[zoneID] = append([]roon.QueueTrack(nil), tracks...)
}

// FailQueue makes Queue return err for zoneID. A nil err clears the failure.
func (c *Core) FailQueue(zoneID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.qerrs, zoneID)
		return
	}
	c.qerrs[zoneID] = err
}

// EndSubscriptions tells subscribers the zone subscription ended.
func (c *Core) EndSubscriptions() {
	c.notifyZones(roon.ZonesUnsubscribed{})
}

// SendZones delivers an arbitrary zone notification.
func (c *Core) SendZones(n roon.ZoneNotification) {
	c.notifyZones(n)
}

// SendOutputs delivers an arbitrary output notification.
func (c *Core) SendOutputs(n roon.OutputNotification) {
	c.notifyOutputs(n)
}

// Queue implements roon.QueueSource.
func (c *Core) Queue(ctx context.Context, zoneID string, max int) ([]roon.QueueTrack, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paired {
		return nil, 0, roon.ErrNotPaired
	}
	if err := c.qerrs[zoneID]; err != nil {
		return nil, 0, err
	}
	if _, ok := c.zones[zoneID]; !ok {
		return nil, 0, roon.ErrUnknownZone
	}
	q := c.queues[zoneID]
	n := len(q)
	if max > 0 && n > max {
		n = max
	}
	return append([]roon.QueueTrack(nil), q[:n]...), len(q), nil
}

// Tick advances every playing zone by one second and emits seek changes.
// A finished track makes the zone move to the next queued track.
func (c *Core) Tick() {
	c.mu.Lock()
	var seeks []roon.SeekChange
	var changed []roon.Zone
	for _, id := range c.order {
		z := c.zones[id]
		if z.State != roon.StatePlaying || z.NowPlaying == nil {
			continue
		}
		pos := 1
		if z.SeekPosition != nil {
			pos = *z.SeekPosition + 1
		}
		if z.NowPlaying.Length > 0 && pos >= z.NowPlaying.Length {
			c.advanceLocked(z)
			changed = append(changed, *z.Clone())
			continue
		}
		z.SeekPosition = roon.IntPtr(pos)
		z.NowPlaying.SeekPosition = roon.IntPtr(pos)
		z.QueueTimeRemaining = c.queueTimeLocked(id)
		seeks = append(seeks, roon.SeekChange{ZoneID: id, SeekPosition: roon.IntPtr(pos), QueueTimeRemaining: z.QueueTimeRemaining})
	}
	c.mu.Unlock()
	if len(seeks) > 0 || len(changed) > 0 {
		c.notifyZones(roon.ZonesChanged{Changed: changed, SeekChanged: seeks})
	}
}

// Run calls Tick every interval until ctx is done.
func (c *Core) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			paired := c.paired
			c.mu.Unlock()
			if paired {
				c.Tick()
			}
		}
	}
}

func (c *Core) zonesLocked() []roon.Zone {
	out := make([]roon.Zone, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.zones[id].Clone())
	}
	return out
}

// advanceLocked loads the head of the queue into now playing, or stops the
// zone when the queue is empty.
func (c *Core) advanceLocked(z *roon.Zone) {
	q := c.queues[z.ZoneID]
	if len(q) == 0 {
		z.State = roon.StateStopped
		z.NowPlaying = nil
		z.SeekPosition = nil
		z.QueueItemsRemaining = 0
		z.QueueTimeRemaining = 0
		return
	}
	next := q[0]
	c.queues[z.ZoneID] = q[1:]
	z.NowPlaying = &roon.NowPlaying{
		SeekPosition: roon.IntPtr(0),
		Length:       next.Length,
		ImageKey:     next.ImageKey,
		OneLine:      next.OneLine,
		TwoLine:      next.TwoLine,
		ThreeLine:    next.ThreeLine,
	}
	z.SeekPosition = roon.IntPtr(0)
	z.QueueItemsRemaining = len(c.queues[z.ZoneID])
	z.QueueTimeRemaining = c.queueTimeLocked(z.ZoneID)
}

func (c *Core) queueTimeLocked(zoneID string) int {
	total := 0
	for _, t := range c.queues[zoneID] {
		total += t.Length
	}
	return total
}

func (c *Core) notifyZones(n roon.ZoneNotification) {
	c.mu.Lock()
	fns := make([]func(roon.ZoneNotification), 0, len(c.zoneSubs))
	for _, fn := range c.zoneSubs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(n)
	}
}

func (c *Core) notifyOutputs(n roon.OutputNotification) {
	c.mu.Lock()
	fns := make([]func(roon.OutputNotification), 0, len(c.outputSubs))
	for _, fn := range c.outputSubs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(n)
	}
}
