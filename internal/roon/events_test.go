package roon

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEvent_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{
			name: "state_with_no_zones",
			ev:   NewStateEvent(GlobalSyncing, nil),
			want: `{"event":"state","data":{"state":"SYNCING","zones":[]}}`,
		},
		{
			name: "queue_with_no_tracks",
			ev:   NewQueueEvent("z1", 0, nil),
			want: `{"event":"queue","data":{"zone_id":"z1","total":0,"tracks":[]}}`,
		},
		{
			name: "command_success",
			ev:   NewCommandEvent("c1", nil),
			want: `{"event":"command","data":{"command_id":"c1","state":"SUCCESS"}}`,
		},
		{
			name: "command_failure",
			ev:   NewCommandEvent("c2", errors.New("unknown zone")),
			want: `{"event":"command","data":{"command_id":"c2","state":"FAILED","cause":"unknown zone"}}`,
		},
		{
			name: "ping",
			ev:   Event{Data: PingEvent{Next: 20}},
			want: `{"event":"ping","data":{"next":20}}`,
		},
		{
			name: "config",
			ev:   Event{Data: ConfigEvent{Settings: json.RawMessage(`{"theme":"dark"}`)}},
			want: `{"event":"config","data":{"settings":{"theme":"dark"}}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.ev)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestEvent_zone_payload_is_flat(t *testing.T) {
	ev := NewZoneEvent(&Zone{ZoneID: "z1", DisplayName: "Kitchen", State: StatePaused})
	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Event != "zone" || got.Data["zone_id"] != "z1" || got.Data["state"] != "paused" {
		t.Errorf("unexpected zone event %s", raw)
	}
}

func TestEvent_without_data(t *testing.T) {
	var ev Event
	if ev.Type() != "" {
		t.Errorf("expected empty type, got %q", ev.Type())
	}
	if _, err := json.Marshal(ev); err == nil {
		t.Error("expected an error for an event without data")
	}
}

func TestZone_Clone(t *testing.T) {
	z := &Zone{
		ZoneID:       "z1",
		Outputs:      []Output{{OutputID: "o1", Volume: &Volume{Value: 10}}},
		NowPlaying:   &NowPlaying{SeekPosition: IntPtr(5), Length: 200},
		SeekPosition: IntPtr(5),
	}
	c := z.Clone()

	c.Outputs[0].Volume.Value = 50
	c.Outputs[0].OutputID = "o2"
	*c.NowPlaying.SeekPosition = 99
	*c.SeekPosition = 99

	if z.Outputs[0].Volume.Value != 10 || z.Outputs[0].OutputID != "o1" {
		t.Errorf("outputs shared with clone: %+v", z.Outputs[0])
	}
	if *z.NowPlaying.SeekPosition != 5 || *z.SeekPosition != 5 {
		t.Error("seek positions shared with clone")
	}

	var nilZone *Zone
	if nilZone.Clone() != nil {
		t.Error("expected nil clone of nil zone")
	}
}
