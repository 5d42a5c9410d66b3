package roon

import (
	"context"
	"encoding/json"
	"errors"
)

// ZoneNotification is one message of the zone subscription. The variants are
// ZonesSubscribed, ZonesChanged, ZonesUnsubscribed and UnknownNotification.
type ZoneNotification interface {
	zoneNotification()
}

// OutputNotification is one message of the output subscription. The variants
// are OutputsSubscribed, OutputsChanged, OutputsUnsubscribed and
// UnknownNotification.
type OutputNotification interface {
	outputNotification()
}

// ZonesSubscribed is the initial snapshot of every zone.
type ZonesSubscribed struct {
	Zones []Zone
}

// ZonesChanged groups the deltas delivered in one upstream message.
type ZonesChanged struct {
	Removed     []string
	Added       []Zone
	Changed     []Zone
	SeekChanged []SeekChange
}

// ZonesUnsubscribed ends the zone subscription.
type ZonesUnsubscribed struct{}

// OutputsSubscribed is the initial snapshot of every output.
type OutputsSubscribed struct {
	Outputs []Output
}

// OutputsChanged carries outputs whose state changed.
type OutputsChanged struct {
	Changed []Output
}

// OutputsUnsubscribed ends the output subscription.
type OutputsUnsubscribed struct{}

// UnknownNotification is delivered for message kinds this module does not
// understand. It is logged and ignored.
type UnknownNotification struct {
	Kind string
}

func (ZonesSubscribed) zoneNotification()     {}
func (ZonesChanged) zoneNotification()        {}
func (ZonesUnsubscribed) zoneNotification()   {}
func (UnknownNotification) zoneNotification() {}

func (OutputsSubscribed) outputNotification()   {}
func (OutputsChanged) outputNotification()      {}
func (OutputsUnsubscribed) outputNotification() {}
func (UnknownNotification) outputNotification() {}

// PairingHandler receives the availability of the upstream core.
type PairingHandler interface {
	Paired(core CoreInfo)
	Unpaired(core CoreInfo)
}

// Subscription is the handle of a registered notification handler.
// Unsubscribe removes exactly that handler and is safe to call twice.
type Subscription interface {
	Unsubscribe()
}

// Upstream is the long-lived session with the control backend.
type Upstream interface {
	// Start begins discovery and pairing. Pairing changes are reported to h.
	Start(ctx context.Context, h PairingHandler) error
	// Stop ends the session. No handler is called after Stop returns.
	Stop() error
	SubscribeZones(fn func(ZoneNotification)) (Subscription, error)
	SubscribeOutputs(fn func(OutputNotification)) (Subscription, error)
}

// QueueSource reads the upcoming tracks of a zone. It returns at most max
// tracks and the total queue length.
type QueueSource interface {
	Queue(ctx context.Context, zoneID string, max int) (tracks []QueueTrack, total int, err error)
}

// Control is a transport action on a zone.
type Control string

const (
	ControlPlay      Control = "play"
	ControlPause     Control = "pause"
	ControlPlayPause Control = "playpause"
	ControlStop      Control = "stop"
	ControlNext      Control = "next"
	ControlPrevious  Control = "previous"
)

// VolumeHow selects how a volume value is applied.
type VolumeHow string

const (
	VolumeAbsolute     VolumeHow = "absolute"
	VolumeRelative     VolumeHow = "relative"
	VolumeRelativeStep VolumeHow = "relative_step"
)

// Controller executes transport commands on the upstream core.
type Controller interface {
	Control(ctx context.Context, zoneID string, c Control) error
	ChangeVolume(ctx context.Context, outputID string, how VolumeHow, value float64) error
	Mute(ctx context.Context, outputID string, mute bool) error
	Seek(ctx context.Context, zoneID string, seconds int) error
}

// BrowseRequest navigates the upstream library hierarchy.
type BrowseRequest struct {
	Hierarchy    string `json:"hierarchy"`
	ItemKey      string `json:"item_key,omitempty"`
	ZoneID       string `json:"zone_or_output_id,omitempty"`
	PopAll       bool   `json:"pop_all,omitempty"`
	PopLevels    int    `json:"pop_levels,omitempty"`
	Input        string `json:"input,omitempty"`
	MultiSession string `json:"multi_session_key,omitempty"`
}

// BrowseResult is the upstream answer to a BrowseRequest.
type BrowseResult struct {
	Action string          `json:"action"`
	List   json.RawMessage `json:"list,omitempty"`
}

// LoadRequest pages through the items of the current browse level.
type LoadRequest struct {
	Hierarchy    string `json:"hierarchy"`
	Level        int    `json:"level,omitempty"`
	Offset       int    `json:"offset,omitempty"`
	Count        int    `json:"count,omitempty"`
	MultiSession string `json:"multi_session_key,omitempty"`
}

// LoadResult is the upstream answer to a LoadRequest.
type LoadResult struct {
	Offset int             `json:"offset"`
	List   json.RawMessage `json:"list"`
	Items  json.RawMessage `json:"items"`
}

// Browser exposes the upstream library browser.
type Browser interface {
	Browse(ctx context.Context, req BrowseRequest) (BrowseResult, error)
	Load(ctx context.Context, req LoadRequest) (LoadResult, error)
}

var (
	// ErrUnknownZone is returned by upstream calls targeting a zone the core
	// does not know.
	ErrUnknownZone = errors.New("unknown zone")

	// ErrUnknownOutput is returned by upstream calls targeting an unknown output.
	ErrUnknownOutput = errors.New("unknown output")

	// ErrNotPaired is returned by upstream calls made while no core is paired.
	ErrNotPaired = errors.New("core not paired")
)
