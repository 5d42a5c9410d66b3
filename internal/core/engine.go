package core

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
)

// Start starts the upstream session. A second call fails with
// ErrAlreadyStarted; a call after Stop fails with ErrStopped.
func (c *Core) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == roon.GlobalStopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.ctx, c.cancel = runCtx, cancel
	c.setStateMetricLocked()
	c.mu.Unlock()

	c.log.Info("starting upstream session")
	if err := c.upstream.Start(runCtx, pairingHandler{c}); err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("start upstream: %w", err)
	}
	if c.opts.PingInterval > 0 {
		go c.ping(runCtx, c.opts.PingInterval)
	}
	return nil
}

// Stop unregisters every session, stops the engine and then the upstream
// session. STOPPED is terminal. Stopping an engine the upstream already
// stopped is a no-op.
func (c *Core) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	if c.state == roon.GlobalStopped {
		c.mu.Unlock()
		return nil
	}
	subs := c.stopLocked()
	c.mu.Unlock()

	unsubscribe(subs...)
	if err := c.upstream.Stop(); err != nil {
		return fmt.Errorf("stop upstream: %w", err)
	}
	c.log.Info("engine stopped")
	return nil
}

// stopLocked tears everything down and returns the upstream subscriptions to
// release once the lock is dropped.
func (c *Core) stopLocked() []roon.Subscription {
	for _, s := range c.sessions {
		s.close()
	}
	c.metrics.SetActiveSessions(0)

	c.gen++
	for _, id := range c.store.IDs() {
		if e, ok := c.store.Get(id); ok && e.Queue != nil {
			e.Queue.Stop()
			e.Queue = nil
		}
	}
	c.store.Clear()
	c.metrics.SetZones(0)
	c.transitionLocked(roon.GlobalStopped)
	c.broadcast.Close()
	if c.cancel != nil {
		c.cancel()
	}
	return c.takeSubscriptionsLocked()
}

func (c *Core) takeSubscriptionsLocked() []roon.Subscription {
	subs := []roon.Subscription{c.zoneSub, c.outputSub}
	c.zoneSub, c.outputSub = nil, nil
	return subs
}

func unsubscribe(subs ...roon.Subscription) {
	for _, s := range subs {
		if s != nil {
			s.Unsubscribe()
		}
	}
}

// shutdown handles the end of an upstream subscription like an explicit Stop.
func (c *Core) shutdown(reason string) {
	c.mu.Lock()
	if c.state == roon.GlobalStopped {
		c.mu.Unlock()
		return
	}
	c.log.Warn("upstream subscription ended, stopping", slog.String("reason", reason))
	subs := c.stopLocked()
	c.mu.Unlock()

	unsubscribe(subs...)
	if err := c.upstream.Stop(); err != nil {
		c.log.Error("stop upstream", slog.String("error", err.Error()))
	}
}

// pairingHandler keeps the roon.PairingHandler methods off Core's API.
type pairingHandler struct {
	c *Core
}

func (h pairingHandler) Paired(info roon.CoreInfo)   { h.c.paired(info) }
func (h pairingHandler) Unpaired(info roon.CoreInfo) { h.c.unpaired(info) }

func (c *Core) paired(info roon.CoreInfo) {
	c.mu.Lock()
	if !c.runningLocked() {
		c.mu.Unlock()
		return
	}
	if c.state == roon.GlobalSyncing || c.state == roon.GlobalSync {
		c.mu.Unlock()
		c.log.Debug("duplicate pairing ignored", slog.String("core_id", info.CoreID))
		return
	}
	c.log.Info("core paired",
		slog.String("core_id", info.CoreID),
		slog.String("core_name", info.DisplayName),
		slog.String("core_version", info.Version))

	recovering := c.state == roon.GlobalLost
	c.gen++
	gen := c.gen
	c.transitionLocked(roon.GlobalSyncing)
	if recovering {
		c.restoreLocked()
	}
	c.mu.Unlock()

	c.subscribe(gen)
}

func (c *Core) unpaired(info roon.CoreInfo) {
	c.mu.Lock()
	if !c.runningLocked() || c.state == roon.GlobalLost {
		c.mu.Unlock()
		return
	}
	c.log.Warn("core lost", slog.String("core_id", info.CoreID))
	c.gen++
	for _, id := range c.store.IDs() {
		e, _ := c.store.Get(id)
		backupLocked(e)
	}
	subs := c.takeSubscriptionsLocked()
	c.transitionLocked(roon.GlobalLost)
	c.mu.Unlock()

	unsubscribe(subs...)
}

// subscribe registers the zone and output handlers of generation gen. The
// upstream may deliver the initial snapshot before returning, so the lock is
// not held here.
func (c *Core) subscribe(gen uint64) {
	zs, err := c.upstream.SubscribeZones(func(n roon.ZoneNotification) { c.onZones(gen, n) })
	if err != nil {
		c.log.Error("subscribe zones", slog.String("error", err.Error()))
		return
	}
	outs, err := c.upstream.SubscribeOutputs(func(n roon.OutputNotification) { c.onOutputs(gen, n) })
	if err != nil {
		c.log.Error("subscribe outputs", slog.String("error", err.Error()))
		zs.Unsubscribe()
		return
	}

	c.mu.Lock()
	if c.gen != gen || !c.runningLocked() {
		c.mu.Unlock()
		unsubscribe(zs, outs)
		return
	}
	c.zoneSub, c.outputSub = zs, outs
	c.mu.Unlock()
}

func (c *Core) onZones(gen uint64, n roon.ZoneNotification) {
	c.mu.Lock()
	if c.gen != gen || !c.runningLocked() {
		c.mu.Unlock()
		return
	}
	switch n := n.(type) {
	case roon.ZonesSubscribed:
		c.zonesSubscribedLocked(n)
	case roon.ZonesChanged:
		c.zonesChangedLocked(n)
	case roon.ZonesUnsubscribed:
		c.mu.Unlock()
		c.shutdown("zones unsubscribed")
		return
	case roon.UnknownNotification:
		c.log.Warn("unknown zone notification ignored", slog.String("kind", n.Kind))
	default:
		c.log.Warn("unexpected zone notification ignored", slog.String("type", fmt.Sprintf("%T", n)))
	}
	c.mu.Unlock()
}

func (c *Core) onOutputs(gen uint64, n roon.OutputNotification) {
	c.mu.Lock()
	if c.gen != gen || !c.runningLocked() {
		c.mu.Unlock()
		return
	}
	switch n := n.(type) {
	case roon.OutputsSubscribed:
		// zone snapshots already carry their outputs
		c.log.Debug("outputs subscribed", slog.Int("outputs", len(n.Outputs)))
	case roon.OutputsChanged:
		for _, o := range n.Changed {
			c.outputChangedLocked(o)
		}
	case roon.OutputsUnsubscribed:
		c.mu.Unlock()
		c.shutdown("outputs unsubscribed")
		return
	case roon.UnknownNotification:
		c.log.Warn("unknown output notification ignored", slog.String("kind", n.Kind))
	default:
		c.log.Warn("unexpected output notification ignored", slog.String("type", fmt.Sprintf("%T", n)))
	}
	c.mu.Unlock()
}

func (c *Core) zonesSubscribedLocked(n roon.ZonesSubscribed) {
	seen := make(map[string]struct{}, len(n.Zones))
	for _, z := range n.Zones {
		seen[z.ZoneID] = struct{}{}
		c.upsertLocked(&z)
	}
	for _, id := range c.store.IDs() {
		if _, ok := seen[id]; !ok {
			c.removeLocked(id)
		}
	}
	c.metrics.SetZones(c.store.Len())
	c.transitionLocked(roon.GlobalSync)
}

// zonesChangedLocked applies removals, additions, replacements and seek
// patches in that order, then publishes one state event if the zone set
// changed.
func (c *Core) zonesChangedLocked(n roon.ZonesChanged) {
	structural := false
	for _, id := range n.Removed {
		if _, ok := c.store.Get(id); ok {
			c.removeLocked(id)
			structural = true
		}
	}
	for _, z := range n.Added {
		c.upsertLocked(&z)
		structural = true
	}
	for _, z := range n.Changed {
		e, ok := c.store.Get(z.ZoneID)
		if !ok {
			c.log.Debug("change for unknown zone ignored", slog.String("zone_id", z.ZoneID))
			continue
		}
		e.Snapshot = &z
		e.DisplayName = z.DisplayName
		dropSnapshotBackup(e)
		c.publishLocked(roon.NewZoneEvent(e.Snapshot))
	}
	for _, s := range n.SeekChanged {
		c.seekLocked(s)
	}
	if structural {
		c.metrics.SetZones(c.store.Len())
		c.transitionLocked(roon.GlobalSync)
	}
}

// upsertLocked stores a fresh snapshot for z, creating the entry and its
// queue manager when the zone is new.
func (c *Core) upsertLocked(z *roon.Zone) {
	e, ok := c.store.Get(z.ZoneID)
	if !ok {
		e = &ZoneEntry{ID: z.ZoneID}
		c.store.Set(e)
	}
	e.Snapshot = z
	e.DisplayName = z.DisplayName
	dropSnapshotBackup(e)
	if e.Queue == nil {
		c.startQueueLocked(e)
	}
	c.publishLocked(roon.NewZoneEvent(z))
}

func (c *Core) removeLocked(id string) {
	e, ok := c.store.Get(id)
	if !ok {
		return
	}
	if e.Queue != nil {
		e.Queue.Stop()
		e.Queue = nil
	}
	c.store.Delete(id)
	c.log.Debug("zone removed", slog.String("zone_id", id))
}

func (c *Core) seekLocked(s roon.SeekChange) {
	e, ok := c.store.Get(s.ZoneID)
	if !ok || e.Snapshot == nil {
		return
	}
	patched := e.Snapshot.Clone()
	patched.SeekPosition = nil
	if s.SeekPosition != nil {
		patched.SeekPosition = roon.IntPtr(*s.SeekPosition)
	}
	if patched.NowPlaying != nil {
		patched.NowPlaying.SeekPosition = nil
		if s.SeekPosition != nil {
			patched.NowPlaying.SeekPosition = roon.IntPtr(*s.SeekPosition)
		}
	}
	patched.QueueTimeRemaining = s.QueueTimeRemaining
	e.Snapshot = patched
	c.publishLocked(roon.NewZoneEvent(patched))
}

func (c *Core) outputChangedLocked(o roon.Output) {
	for _, id := range c.store.IDs() {
		e, _ := c.store.Get(id)
		if e.Snapshot == nil {
			continue
		}
		for i := range e.Snapshot.Outputs {
			if e.Snapshot.Outputs[i].OutputID != o.OutputID {
				continue
			}
			patched := e.Snapshot.Clone()
			patched.Outputs[i] = o
			e.Snapshot = patched
			c.publishLocked(roon.NewZoneEvent(patched))
			return
		}
	}
}
