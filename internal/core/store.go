package core

import (
	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
)

// Backup is what survives of a zone while the upstream core is unavailable.
type Backup struct {
	Snapshot *roon.Zone
	Queue    *roon.Event
}

// ZoneEntry is the engine's record of one zone.
type ZoneEntry struct {
	ID          string
	DisplayName string
	Snapshot    *roon.Zone
	Queue       QueueManager
	Backup      *Backup

	// queueLive is set once the first queue of Queue has been published.
	queueLive bool
}

// current returns the snapshot viewers should see: the live one, or the
// backed-up one while the upstream is lost.
func (e *ZoneEntry) current() *roon.Zone {
	if e.Snapshot != nil {
		return e.Snapshot
	}
	if e.Backup != nil {
		return e.Backup.Snapshot
	}
	return nil
}

// Store is the zone table. Implementations are not safe for concurrent use;
// the Core serializes every access.
type Store interface {
	Get(id string) (*ZoneEntry, bool)
	Set(e *ZoneEntry)
	Delete(id string)
	// IDs returns zone ids in insertion order.
	IDs() []string
	Len() int
	Clear()
}

// InMemoryStore is an insertion-ordered in-memory Store.
type InMemoryStore struct {
	entries map[string]*ZoneEntry
	order   []string
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]*ZoneEntry),
	}
}

// Get implements Store.Get.
func (s *InMemoryStore) Get(id string) (*ZoneEntry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// Set implements Store.Set. Replacing an entry keeps its position.
func (s *InMemoryStore) Set(e *ZoneEntry) {
	if _, exists := s.entries[e.ID]; !exists {
		s.order = append(s.order, e.ID)
	}
	s.entries[e.ID] = e
}

// Delete implements Store.Delete.
func (s *InMemoryStore) Delete(id string) {
	if _, exists := s.entries[id]; !exists {
		return
	}
	delete(s.entries, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// IDs implements Store.IDs.
func (s *InMemoryStore) IDs() []string {
	return append([]string(nil), s.order...)
}

// Len implements Store.Len.
func (s *InMemoryStore) Len() int {
	return len(s.entries)
}

// Clear implements Store.Clear.
func (s *InMemoryStore) Clear() {
	clear(s.entries)
	s.order = nil
}
