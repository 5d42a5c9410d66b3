package roon

import (
	"encoding/json"
	"errors"
)

// GlobalState is the connection state of the synchronization engine.
type GlobalState string

const (
	GlobalStarting GlobalState = "STARTING"
	GlobalSyncing  GlobalState = "SYNCING"
	GlobalSync     GlobalState = "SYNC"
	GlobalLost     GlobalState = "LOST"
	GlobalStopped  GlobalState = "STOPPED"
)

// AllGlobalStates lists every GlobalState, in declaration order.
var AllGlobalStates = []GlobalState{GlobalStarting, GlobalSyncing, GlobalSync, GlobalLost, GlobalStopped}

// EventType tags the payload of an Event on the wire.
type EventType string

const (
	EventState   EventType = "state"
	EventZone    EventType = "zone"
	EventQueue   EventType = "queue"
	EventCommand EventType = "command"
	EventPing    EventType = "ping"
	EventConfig  EventType = "config"
)

// EventData is implemented by every payload an Event may carry. The set is
// closed: only types in this package implement it.
type EventData interface {
	eventType() EventType
}

// Event is the unit published on the shared broadcast and on every private
// command stream. It marshals to {"event": <type>, "data": <payload>}.
type Event struct {
	Data EventData
}

// Type returns the wire tag of the event.
func (e Event) Type() EventType {
	if e.Data == nil {
		return ""
	}
	return e.Data.eventType()
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Data == nil {
		return nil, errors.New("roon: event without data")
	}
	return json.Marshal(struct {
		Event EventType `json:"event"`
		Data  EventData `json:"data"`
	}{e.Type(), e.Data})
}

// ZoneDescription is the short form of a zone carried by state events.
type ZoneDescription struct {
	ZoneID      string `json:"zone_id"`
	DisplayName string `json:"display_name"`
}

// StateEvent carries the GlobalState and the known zones.
type StateEvent struct {
	State GlobalState       `json:"state"`
	Zones []ZoneDescription `json:"zones"`
}

// ZoneEvent carries a full zone snapshot.
type ZoneEvent struct {
	*Zone
}

// QueueEvent carries the bounded queue of a zone.
type QueueEvent struct {
	ZoneID string       `json:"zone_id"`
	Total  int          `json:"total"`
	Tracks []QueueTrack `json:"tracks"`
}

// CommandState is the outcome of a dispatched command.
type CommandState string

const (
	CommandSuccess CommandState = "SUCCESS"
	CommandFailed  CommandState = "FAILED"
)

// CommandEvent reports the result of a command on the issuing session's
// private stream.
type CommandEvent struct {
	CommandID string       `json:"command_id"`
	State     CommandState `json:"state"`
	Cause     string       `json:"cause,omitempty"`
}

// PingEvent is a keepalive. Next is the number of seconds until the next ping.
type PingEvent struct {
	Next int `json:"next"`
}

// ConfigEvent carries a viewer's settings back to that viewer.
type ConfigEvent struct {
	Settings json.RawMessage `json:"settings"`
}

func (StateEvent) eventType() EventType   { return EventState }
func (ZoneEvent) eventType() EventType    { return EventZone }
func (QueueEvent) eventType() EventType   { return EventQueue }
func (CommandEvent) eventType() EventType { return EventCommand }
func (PingEvent) eventType() EventType    { return EventPing }
func (ConfigEvent) eventType() EventType  { return EventConfig }

// NewStateEvent wraps a StateEvent.
func NewStateEvent(state GlobalState, zones []ZoneDescription) Event {
	if zones == nil {
		zones = []ZoneDescription{}
	}
	return Event{Data: StateEvent{State: state, Zones: zones}}
}

// NewZoneEvent wraps a zone snapshot.
func NewZoneEvent(z *Zone) Event {
	return Event{Data: ZoneEvent{Zone: z}}
}

// NewQueueEvent wraps a zone queue.
func NewQueueEvent(zoneID string, total int, tracks []QueueTrack) Event {
	if tracks == nil {
		tracks = []QueueTrack{}
	}
	return Event{Data: QueueEvent{ZoneID: zoneID, Total: total, Tracks: tracks}}
}

// NewCommandEvent wraps a command result. A nil err means success.
func NewCommandEvent(commandID string, err error) Event {
	ev := CommandEvent{CommandID: commandID, State: CommandSuccess}
	if err != nil {
		ev.State = CommandFailed
		ev.Cause = err.Error()
	}
	return Event{Data: ev}
}
