package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
)

// Control implements roon.Controller.
func (c *Core) Control(ctx context.Context, zoneID string, ctl roon.Control) error {
	c.mu.Lock()
	z, err := c.zoneLocked(zoneID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	switch ctl {
	case roon.ControlPlay:
		z.State = roon.StatePlaying
	case roon.ControlPause:
		z.State = roon.StatePaused
	case roon.ControlPlayPause:
		if z.State == roon.StatePlaying {
			z.State = roon.StatePaused
		} else {
			z.State = roon.StatePlaying
		}
	case roon.ControlStop:
		z.State = roon.StateStopped
		z.SeekPosition = roon.IntPtr(0)
		if z.NowPlaying != nil {
			z.NowPlaying.SeekPosition = roon.IntPtr(0)
		}
	case roon.ControlNext:
		c.advanceLocked(z)
	case roon.ControlPrevious:
		z.SeekPosition = roon.IntPtr(0)
		if z.NowPlaying != nil {
			z.NowPlaying.SeekPosition = roon.IntPtr(0)
		}
	default:
		c.mu.Unlock()
		return fmt.Errorf("sim: unsupported control %q", ctl)
	}
	changed := *z.Clone()
	c.mu.Unlock()

	c.notifyZones(roon.ZonesChanged{Changed: []roon.Zone{changed}})
	return nil
}

// ChangeVolume implements roon.Controller.
func (c *Core) ChangeVolume(ctx context.Context, outputID string, how roon.VolumeHow, value float64) error {
	return c.updateOutput(outputID, func(v *roon.Volume) {
		switch how {
		case roon.VolumeAbsolute:
			v.Value = value
		case roon.VolumeRelative:
			v.Value += value
		case roon.VolumeRelativeStep:
			v.Value += value * v.Step
		}
		v.Value = math.Max(v.Min, math.Min(v.Max, v.Value))
	})
}

// Mute implements roon.Controller.
func (c *Core) Mute(ctx context.Context, outputID string, mute bool) error {
	return c.updateOutput(outputID, func(v *roon.Volume) { v.IsMuted = mute })
}

// Seek implements roon.Controller.
func (c *Core) Seek(ctx context.Context, zoneID string, seconds int) error {
	c.mu.Lock()
	z, err := c.zoneLocked(zoneID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	remaining := z.QueueTimeRemaining
	c.mu.Unlock()
	c.SeekZone(zoneID, seconds, remaining)
	return nil
}

func (c *Core) updateOutput(outputID string, fn func(v *roon.Volume)) error {
	c.mu.Lock()
	if !c.paired {
		c.mu.Unlock()
		return roon.ErrNotPaired
	}
	for _, id := range c.order {
		z := c.zones[id]
		for i := range z.Outputs {
			o := &z.Outputs[i]
			if o.OutputID != outputID {
				continue
			}
			if o.Volume == nil {
				c.mu.Unlock()
				return fmt.Errorf("sim: output %s has no volume control", outputID)
			}
			fn(o.Volume)
			updated := *o
			v := *o.Volume
			updated.Volume = &v
			c.mu.Unlock()
			c.notifyOutputs(roon.OutputsChanged{Changed: []roon.Output{updated}})
			return nil
		}
	}
	c.mu.Unlock()
	return roon.ErrUnknownOutput
}

func (c *Core) zoneLocked(zoneID string) (*roon.Zone, error) {
	if !c.paired {
		return nil, roon.ErrNotPaired
	}
	z, ok := c.zones[zoneID]
	if !ok {
		return nil, roon.ErrUnknownZone
	}
	return z, nil
}

type browseItem struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	ItemKey  string `json:"item_key,omitempty"`
	Hint     string `json:"hint,omitempty"`
}

type browseList struct {
	Title  string `json:"title"`
	Count  int    `json:"count"`
	Level  int    `json:"level"`
	Hint   string `json:"hint,omitempty"`
	Offset int    `json:"display_offset,omitempty"`
}

// Browse implements roon.Browser over a fixed two-level library.
func (c *Core) Browse(ctx context.Context, req roon.BrowseRequest) (roon.BrowseResult, error) {
	c.mu.Lock()
	paired := c.paired
	c.mu.Unlock()
	if !paired {
		return roon.BrowseResult{}, roon.ErrNotPaired
	}
	title, level := "Library", 0
	if req.ItemKey != "" && !req.PopAll {
		title, level = req.ItemKey, 1
	}
	list, err := json.Marshal(browseList{Title: title, Count: len(c.items(level, title)), Level: level})
	if err != nil {
		return roon.BrowseResult{}, err
	}
	return roon.BrowseResult{Action: "list", List: list}, nil
}

// Load implements roon.Browser.
func (c *Core) Load(ctx context.Context, req roon.LoadRequest) (roon.LoadResult, error) {
	c.mu.Lock()
	paired := c.paired
	c.mu.Unlock()
	if !paired {
		return roon.LoadResult{}, roon.ErrNotPaired
	}
	title := "Library"
	if req.Level > 0 {
		title = "Albums"
	}
	all := c.items(req.Level, title)
	start := min(max(req.Offset, 0), len(all))
	end := len(all)
	if req.Count > 0 {
		end = min(start+req.Count, len(all))
	}
	items, err := json.Marshal(all[start:end])
	if err != nil {
		return roon.LoadResult{}, err
	}
	list, err := json.Marshal(browseList{Title: title, Count: len(all), Level: req.Level})
	if err != nil {
		return roon.LoadResult{}, err
	}
	return roon.LoadResult{Offset: start, List: list, Items: items}, nil
}

func (c *Core) items(level int, title string) []browseItem {
	if level == 0 {
		return []browseItem{
			{Title: "Artists", ItemKey: "Artists", Hint: "list"},
			{Title: "Albums", ItemKey: "Albums", Hint: "list"},
			{Title: "Tracks", ItemKey: "Tracks", Hint: "list"},
		}
	}
	out := make([]browseItem, 0, 5)
	for i := 1; i <= 5; i++ {
		out = append(out, browseItem{
			Title:    fmt.Sprintf("%s %d", title, i),
			Subtitle: "Simulated Artist",
			ItemKey:  fmt.Sprintf("%s:%d", title, i),
			Hint:     "action_list",
		})
	}
	return out
}
