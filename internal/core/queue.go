package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
)

// QueueManager maintains the bounded queue of one zone.
type QueueManager interface {
	// Start produces the first queue snapshot. It may fail transiently.
	Start(ctx context.Context) error
	// Stop releases resources. It is idempotent and must not block on
	// in-flight work.
	Stop()
	IsStarted() bool
	// Queue returns the current snapshot as a queue event. Only valid while
	// started.
	Queue() roon.Event
}

// QueueFactory creates the queue manager of a zone. onChange is called with
// every new snapshot produced after Start returned.
type QueueFactory func(zoneID string, onChange func(roon.Event)) QueueManager

// ErrQueueStopped is returned by Start on a stopped manager.
var ErrQueueStopped = errors.New("queue manager stopped")

// PollingQueue polls a roon.QueueSource on an interval.
type PollingQueue struct {
	zoneID   string
	source   roon.QueueSource
	max      int
	interval time.Duration
	onChange func(roon.Event)
	log      *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	tracks  []roon.QueueTrack
	total   int
}

// NewPollingQueueFactory returns a QueueFactory of PollingQueues reading at
// most max tracks from source every interval.
func NewPollingQueueFactory(source roon.QueueSource, max int, interval time.Duration, log *slog.Logger) QueueFactory {
	return func(zoneID string, onChange func(roon.Event)) QueueManager {
		return &PollingQueue{
			zoneID:   zoneID,
			source:   source,
			max:      max,
			interval: interval,
			onChange: onChange,
			log:      log.With("component", "queue", "zone_id", zoneID),
		}
	}
}

// Start implements QueueManager. Stop cancels a first fetch still in flight.
func (q *PollingQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrQueueStopped
	}
	if q.started || q.cancel != nil {
		q.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.mu.Unlock()

	tracks, total, err := q.source.Queue(ctx, q.zoneID, q.max)

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		cancel()
		return ErrQueueStopped
	}
	if err != nil {
		cancel()
		q.cancel = nil
		return fmt.Errorf("queue %s: %w", q.zoneID, err)
	}
	q.tracks, q.total = tracks, total
	q.started = true
	if q.interval > 0 {
		go q.poll(ctx)
	} else {
		cancel()
		q.cancel = nil
	}
	return nil
}

// Stop implements QueueManager.
func (q *PollingQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.started = false
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
}

// IsStarted implements QueueManager.
func (q *PollingQueue) IsStarted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.started
}

// Queue implements QueueManager.
func (q *PollingQueue) Queue() roon.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return roon.NewQueueEvent(q.zoneID, q.total, append([]roon.QueueTrack(nil), q.tracks...))
}

func (q *PollingQueue) poll(ctx context.Context) {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		tracks, total, err := q.source.Queue(ctx, q.zoneID, q.max)
		if err != nil {
			if ctx.Err() == nil {
				q.log.Debug("queue poll failed", slog.String("error", err.Error()))
			}
			continue
		}

		q.mu.Lock()
		if q.stopped {
			q.mu.Unlock()
			return
		}
		if total == q.total && slices.Equal(tracks, q.tracks) {
			q.mu.Unlock()
			continue
		}
		q.tracks, q.total = tracks, total
		q.mu.Unlock()

		q.onChange(q.Queue())
	}
}
