// Package command turns viewer intents into upstream calls and reports the
// outcome as command events on the issuing viewer's stream.
package command

import (
	"errors"
	"fmt"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
)

// Type names a command.
type Type string

const (
	Play      Type = "play"
	Pause     Type = "pause"
	PlayPause Type = "play_pause"
	Stop      Type = "stop"
	Next      Type = "next"
	Previous  Type = "previous"
	Volume    Type = "volume"
	Mute      Type = "mute"
	Unmute    Type = "unmute"
	Seek      Type = "seek"
)

var (
	// ErrUnknownCommand is returned for a command type this server does not handle.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrMissingTarget is returned when a command lacks its zone or output id.
	ErrMissingTarget = errors.New("missing command target")

	// ErrInvalidVolume is returned for a volume command with an unknown how.
	ErrInvalidVolume = errors.New("invalid volume mode")
)

// Command is a viewer intent. ZoneID targets transport commands, OutputID
// targets volume commands.
type Command struct {
	Type     Type           `json:"type"`
	ZoneID   string         `json:"zone_id,omitempty"`
	OutputID string         `json:"output_id,omitempty"`
	How      roon.VolumeHow `json:"how,omitempty"`
	Value    float64        `json:"value,omitempty"`
	Seconds  int            `json:"seconds,omitempty"`
}

// Validate checks that the command is well-formed.
func (c Command) Validate() error {
	switch c.Type {
	case Play, Pause, PlayPause, Stop, Next, Previous, Seek:
		if c.ZoneID == "" {
			return fmt.Errorf("%s: %w: zone_id", c.Type, ErrMissingTarget)
		}
	case Volume:
		if c.OutputID == "" {
			return fmt.Errorf("%s: %w: output_id", c.Type, ErrMissingTarget)
		}
		switch c.How {
		case roon.VolumeAbsolute, roon.VolumeRelative, roon.VolumeRelativeStep:
		default:
			return fmt.Errorf("volume: %w %q", ErrInvalidVolume, c.How)
		}
	case Mute, Unmute:
		if c.OutputID == "" {
			return fmt.Errorf("%s: %w: output_id", c.Type, ErrMissingTarget)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Type)
	}
	return nil
}

func (c Command) control() (roon.Control, bool) {
	switch c.Type {
	case Play:
		return roon.ControlPlay, true
	case Pause:
		return roon.ControlPause, true
	case PlayPause:
		return roon.ControlPlayPause, true
	case Stop:
		return roon.ControlStop, true
	case Next:
		return roon.ControlNext, true
	case Previous:
		return roon.ControlPrevious, true
	}
	return "", false
}
