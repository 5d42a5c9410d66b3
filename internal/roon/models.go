package roon

// PlaybackState is the transport state of a zone.
type PlaybackState string

const (
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
	StateLoading PlaybackState = "loading"
	StateStopped PlaybackState = "stopped"
)

// VolumeType describes how an output's volume is expressed.
type VolumeType string

const (
	VolumeNumber   VolumeType = "number"
	VolumeDB       VolumeType = "db"
	VolumeIncrDecr VolumeType = "incremental"
)

// Volume is the volume control of a single output.
type Volume struct {
	Type    VolumeType `json:"type"`
	Min     float64    `json:"min"`
	Max     float64    `json:"max"`
	Value   float64    `json:"value"`
	Step    float64    `json:"step"`
	IsMuted bool       `json:"is_muted"`
}

// Output is a single playback endpoint. It belongs to exactly one zone at a time.
type Output struct {
	OutputID    string  `json:"output_id"`
	ZoneID      string  `json:"zone_id"`
	DisplayName string  `json:"display_name"`
	Volume      *Volume `json:"volume,omitempty"`
}

// Lines holds the up to three display lines of a track.
type Lines struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2,omitempty"`
	Line3 string `json:"line3,omitempty"`
}

// NowPlaying describes the track currently loaded in a zone.
type NowPlaying struct {
	SeekPosition *int   `json:"seek_position,omitempty"`
	Length       int    `json:"length,omitempty"`
	ImageKey     string `json:"image_key,omitempty"`
	OneLine      Lines  `json:"one_line"`
	TwoLine      Lines  `json:"two_line"`
	ThreeLine    Lines  `json:"three_line"`
}

// Zone is the snapshot of a zone's playback state. Snapshots are treated as
// immutable once stored: patches go through Clone.
type Zone struct {
	ZoneID              string        `json:"zone_id"`
	DisplayName         string        `json:"display_name"`
	Outputs             []Output      `json:"outputs"`
	State               PlaybackState `json:"state"`
	IsPreviousAllowed   bool          `json:"is_previous_allowed"`
	IsNextAllowed       bool          `json:"is_next_allowed"`
	IsPauseAllowed      bool          `json:"is_pause_allowed"`
	IsPlayAllowed       bool          `json:"is_play_allowed"`
	IsSeekAllowed       bool          `json:"is_seek_allowed"`
	NowPlaying          *NowPlaying   `json:"now_playing,omitempty"`
	SeekPosition        *int          `json:"seek_position,omitempty"`
	QueueItemsRemaining int           `json:"queue_items_remaining"`
	QueueTimeRemaining  int           `json:"queue_time_remaining"`
}

// Clone returns a deep copy of z.
func (z *Zone) Clone() *Zone {
	if z == nil {
		return nil
	}
	c := *z
	if z.Outputs != nil {
		c.Outputs = make([]Output, len(z.Outputs))
		for i, o := range z.Outputs {
			if o.Volume != nil {
				v := *o.Volume
				o.Volume = &v
			}
			c.Outputs[i] = o
		}
	}
	if z.NowPlaying != nil {
		np := *z.NowPlaying
		np.SeekPosition = cloneInt(z.NowPlaying.SeekPosition)
		c.NowPlaying = &np
	}
	c.SeekPosition = cloneInt(z.SeekPosition)
	return &c
}

// SeekChange is the targeted patch delivered on every seek tick.
type SeekChange struct {
	ZoneID             string `json:"zone_id"`
	SeekPosition       *int   `json:"seek_position,omitempty"`
	QueueTimeRemaining int    `json:"queue_time_remaining"`
}

// QueueTrack is one upcoming track in a zone's queue.
type QueueTrack struct {
	QueueItemID int    `json:"queue_item_id"`
	Length      int    `json:"length"`
	ImageKey    string `json:"image_key,omitempty"`
	OneLine     Lines  `json:"one_line"`
	TwoLine     Lines  `json:"two_line"`
	ThreeLine   Lines  `json:"three_line"`
}

// CoreInfo identifies the upstream core a session is paired with.
type CoreInfo struct {
	CoreID      string `json:"core_id"`
	DisplayName string `json:"display_name"`
	Version     string `json:"display_version"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
