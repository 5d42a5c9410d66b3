package core

import (
	"context"
	"log/slog"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
)

// backupLocked moves the live state of e into its backup and stops its queue
// manager. A zone that was already backed up keeps its older halves when
// nothing newer is available.
func backupLocked(e *ZoneEntry) {
	b := &Backup{}
	if e.Backup != nil {
		*b = *e.Backup
	}
	if e.Snapshot != nil {
		b.Snapshot = e.Snapshot
	}
	if e.Queue != nil {
		if e.Queue.IsStarted() {
			q := e.Queue.Queue()
			b.Queue = &q
		}
		e.Queue.Stop()
		e.Queue = nil
		e.queueLive = false
	}
	e.Snapshot = nil
	e.Backup = b
}

// restoreLocked brings backed-up zones back to life after re-pairing and
// starts a fresh queue manager for each of them.
func (c *Core) restoreLocked() {
	for _, id := range c.store.IDs() {
		e, _ := c.store.Get(id)
		if e.Backup != nil && e.Backup.Snapshot != nil {
			e.Snapshot = e.Backup.Snapshot
		}
		if e.Snapshot != nil {
			c.publishLocked(roon.NewZoneEvent(e.Snapshot))
		}
		if e.Queue == nil {
			c.startQueueLocked(e)
		}
	}
}

// dropSnapshotBackup discards the zone half of the backup once a fresh
// snapshot has arrived from upstream.
func dropSnapshotBackup(e *ZoneEntry) {
	if e.Backup == nil {
		return
	}
	e.Backup.Snapshot = nil
	if e.Backup.Queue == nil {
		e.Backup = nil
	}
}

// dropQueueBackup discards the queue half of the backup once a queue manager
// has produced a live queue.
func dropQueueBackup(e *ZoneEntry) {
	if e.Backup == nil {
		return
	}
	e.Backup.Queue = nil
	if e.Backup.Snapshot == nil {
		e.Backup = nil
	}
}

// startQueueLocked creates the queue manager of e and starts it in the
// background. The outcome comes back through queueStarted.
func (c *Core) startQueueLocked(e *ZoneEntry) {
	if c.queues == nil {
		return
	}
	id := e.ID
	var m QueueManager
	m = c.queues(id, func(ev roon.Event) { c.onQueue(id, m, ev) })
	e.Queue = m
	e.queueLive = false

	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		c.queueStarted(id, m, m.Start(ctx))
	}()
}

// queueStarted applies the result of an asynchronous Start. Results for a
// manager that is no longer the zone's current one are discarded. The first
// queue of a manager is published here and nowhere else: replay and onQueue
// ignore the manager until then.
func (c *Core) queueStarted(id string, m QueueManager, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store.Get(id)
	if !ok || e.Queue != m {
		m.Stop()
		return
	}
	if err != nil {
		c.log.Warn("queue start failed", slog.String("zone_id", id), slog.String("error", err.Error()))
		c.metrics.IncQueueStartFailures()
		m.Stop()
		e.Queue = nil
		return
	}
	dropQueueBackup(e)
	e.queueLive = true
	c.publishLocked(m.Queue())
}

func (c *Core) onQueue(id string, m QueueManager, ev roon.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.store.Get(id)
	if !ok || e.Queue != m || !e.queueLive || !m.IsStarted() {
		return
	}
	c.publishLocked(ev)
}
