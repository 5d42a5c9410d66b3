package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/command"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
)

func TestCore_Register(t *testing.T) {
	up := newSim()
	c := startedCore(t, up, nil)

	seen := make(map[string]bool)
	for range 50 {
		id, err := c.Register()
		if err != nil {
			t.Fatalf("Register: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if n := c.SessionCount(); n != 50 {
		t.Errorf("expected 50 sessions, got %d", n)
	}
}

func TestCore_Register_collision_panics(t *testing.T) {
	up := newSim()
	c := startedCore(t, up, nil)
	c.newID = func() string { return "same" }

	if _, err := c.Register(); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("expected a panic on duplicate session id")
		}
	}()
	_, _ = c.Register()
}

func TestCore_Get_not_found(t *testing.T) {
	up := newSim()
	c := startedCore(t, up, nil)

	if _, err := c.Get("never-registered"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	id, _ := c.Register()
	c.Unregister(id)
	if _, err := c.Get(id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after Unregister, got %v", err)
	}
}

func TestCore_Unregister(t *testing.T) {
	up := newSim("Kitchen")
	c := startedCore(t, up, nil)
	up.Pair()

	id, feed := attach(t, c)
	_, other := attach(t, c)
	s, _ := c.Get(id)

	t.Run("closes_feed", func(t *testing.T) {
		c.Unregister(id)
		expectClosed(t, feed)
	})

	t.Run("idempotent", func(t *testing.T) {
		c.Unregister(id)
		c.Unregister("unknown")
		if n := c.SessionCount(); n != 1 {
			t.Errorf("expected 1 session left, got %d", n)
		}
	})

	t.Run("other_sessions_unaffected", func(t *testing.T) {
		until(t, other, isType(roon.EventZone))
		up.SeekZone("zone-1", 3, 0)
		expectZone(t, next(t, other), "zone-1")
	})

	t.Run("feed_of_removed_session", func(t *testing.T) {
		if _, err := s.Feed().Attach(context.Background()); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestFeed_merges_private_and_broadcast(t *testing.T) {
	up := newSim("Kitchen")
	c := startedCore(t, up, nil)
	up.Pair()

	id, feed := attach(t, c)
	until(t, feed, isType(roon.EventZone))
	s, _ := c.Get(id)

	s.Publish(roon.NewCommandEvent("a", nil))
	up.SeekZone("zone-1", 5, 0)
	s.Publish(roon.NewCommandEvent("b", errors.New("boom")))

	if ce, ok := next(t, feed).Data.(roon.CommandEvent); !ok || ce.CommandID != "a" {
		t.Errorf("expected command a first, got %+v", ce)
	}
	expectZone(t, next(t, feed), "zone-1")
	ce, ok := next(t, feed).Data.(roon.CommandEvent)
	if !ok || ce.CommandID != "b" || ce.State != roon.CommandFailed || ce.Cause != "boom" {
		t.Errorf("expected failed command b, got %+v", ce)
	}
}

func TestFeed_private_stream_is_private(t *testing.T) {
	up := newSim("Kitchen")
	c := startedCore(t, up, nil)
	up.Pair()

	id, feed := attach(t, c)
	_, other := attach(t, c)
	until(t, feed, isType(roon.EventZone))
	until(t, other, isType(roon.EventZone))

	s, _ := c.Get(id)
	s.Publish(roon.NewCommandEvent("mine", nil))
	if next(t, feed).Type() != roon.EventCommand {
		t.Error("expected the command event on the issuing session")
	}
	expectNothing(t, other)
}

func TestFeed_Attach_replaces_previous_consumer(t *testing.T) {
	up := newSim("Kitchen")
	c := startedCore(t, up, nil)
	up.Pair()

	id, first := attach(t, c)
	second := attachTo(t, c, id)
	expectClosed(t, first)

	expectState(t, next(t, second), roon.GlobalSync, "zone-1")
	expectZone(t, next(t, second), "zone-1")

	s, _ := c.Get(id)
	if s.Feed() != s.Feed() {
		t.Error("feed must be cached for the session lifetime")
	}
}

func TestFeed_context_cancel(t *testing.T) {
	up := newSim()
	c := startedCore(t, up, nil)
	id, _ := c.Register()
	s, _ := c.Get(id)

	ctx, cancel := context.WithCancel(context.Background())
	feed, err := s.Feed().Attach(ctx)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	cancel()
	expectClosed(t, feed)

	if _, err := c.Get(id); err != nil {
		t.Errorf("cancelling a consumer must not unregister the session: %v", err)
	}
}

func TestFeed_slow_consumer_dropped(t *testing.T) {
	up := newSim("Kitchen")
	c := newCore(t, up, nil, Options{SubscriberBuffer: 2})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	up.Pair()

	id, feed := attach(t, c)
	for i := range 10 {
		up.SeekZone("zone-1", i, 0)
	}
	expectClosed(t, feed)

	// the session survives and a new consumer gets a fresh replay
	again := attachTo(t, c, id)
	expectState(t, next(t, again), roon.GlobalSync, "zone-1")
	z := expectZone(t, next(t, again), "zone-1")
	if *z.SeekPosition != 9 {
		t.Errorf("expected latest seek position 9 in replay, got %d", *z.SeekPosition)
	}
}

func TestCore_Command(t *testing.T) {
	up := newSim("Kitchen")
	c := startedCore(t, up, nil)
	up.Pair()

	id, feed := attach(t, c)
	until(t, feed, isType(roon.EventZone))

	t.Run("result_on_private_stream", func(t *testing.T) {
		cmdID, err := c.Command(id, command.Command{Type: command.Pause, ZoneID: "zone-1"})
		if err != nil {
			t.Fatalf("Command: %v", err)
		}
		events := until(t, feed, isType(roon.EventCommand))
		ce := events[len(events)-1].Data.(roon.CommandEvent)
		if ce.CommandID != cmdID || ce.State != roon.CommandSuccess {
			t.Errorf("unexpected command result %+v", ce)
		}
		if !hasType(events, roon.EventZone) {
			until(t, feed, isType(roon.EventZone))
		}
	})

	t.Run("upstream_failure", func(t *testing.T) {
		cmdID, err := c.Command(id, command.Command{Type: command.Play, ZoneID: "missing"})
		if err != nil {
			t.Fatalf("Command: %v", err)
		}
		events := until(t, feed, isType(roon.EventCommand))
		ce := events[len(events)-1].Data.(roon.CommandEvent)
		if ce.CommandID != cmdID || ce.State != roon.CommandFailed || ce.Cause == "" {
			t.Errorf("unexpected command result %+v", ce)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := c.Command(id, command.Command{Type: "rewind", ZoneID: "zone-1"}); !errors.Is(err, command.ErrUnknownCommand) {
			t.Errorf("expected ErrUnknownCommand, got %v", err)
		}
		if _, err := c.Command(id, command.Command{Type: command.Mute}); !errors.Is(err, command.ErrMissingTarget) {
			t.Errorf("expected ErrMissingTarget, got %v", err)
		}
		bad := command.Command{Type: command.Volume, OutputID: "output-kitchen", How: "sideways"}
		if _, err := c.Command(id, bad); !errors.Is(err, command.ErrInvalidVolume) {
			t.Errorf("expected ErrInvalidVolume, got %v", err)
		}
	})

	t.Run("unknown_session", func(t *testing.T) {
		if _, err := c.Command("nope", command.Command{Type: command.Play, ZoneID: "zone-1"}); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestCore_Browse_and_Load(t *testing.T) {
	up := newSim("Kitchen")
	c := startedCore(t, up, nil)
	up.Pair()
	id, _ := c.Register()

	res, err := c.Browse(context.Background(), id, roon.BrowseRequest{Hierarchy: "browse"})
	if err != nil {
		t.Fatalf("Browse: %v", err)
	}
	if res.Action != "list" {
		t.Errorf("expected list action, got %q", res.Action)
	}
	page, err := c.Load(context.Background(), id, roon.LoadRequest{Hierarchy: "browse", Count: 2})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(page.Items, &items); err != nil || len(items) != 2 {
		t.Errorf("expected 2 items, got %s (%v)", page.Items, err)
	}
	if _, err := c.Browse(context.Background(), "nope", roon.BrowseRequest{}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCore_Settings(t *testing.T) {
	up := newSim()
	c := startedCore(t, up, nil)
	id, feed := attach(t, c)
	next(t, feed)

	got, err := c.Settings(id)
	if err != nil || string(got) != "{}" {
		t.Fatalf("expected empty settings, got %s (%v)", got, err)
	}

	raw := json.RawMessage(`{"theme":"dark"}`)
	if err := c.UpdateSettings(id, raw); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	cfg, ok := next(t, feed).Data.(roon.ConfigEvent)
	if !ok || string(cfg.Settings) != `{"theme":"dark"}` {
		t.Errorf("expected config event, got %+v", cfg)
	}
	if got, _ := c.Settings(id); string(got) != `{"theme":"dark"}` {
		t.Errorf("settings not stored, got %s", got)
	}
	if err := c.UpdateSettings("nope", raw); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}
