package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/broadcast"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/command"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
)

// Session is one registered viewer. Its private stream carries the results
// of the commands it issued and its config updates.
type Session struct {
	ID string

	core     *Core
	private  *broadcast.Hub[roon.Event]
	feed     *Feed
	settings json.RawMessage
	close    func()
}

// Publish implements command.Publisher on the session's private stream.
func (s *Session) Publish(ev roon.Event) {
	s.private.Publish(ev)
}

// Feed returns the session's merged feed, creating it on first use.
func (s *Session) Feed() *Feed {
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	if s.feed == nil {
		s.feed = &Feed{session: s}
	}
	return s.feed
}

// Register creates a session and returns its id.
func (c *Core) Register() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.runningLocked() {
		return "", ErrNotStarted
	}

	id := c.newID()
	if _, exists := c.sessions[id]; exists {
		panic(fmt.Sprintf("core: duplicate session id %q", id))
	}
	s := &Session{
		ID:      id,
		core:    c,
		private: broadcast.New[roon.Event](c.opts.SubscriberBuffer),
	}
	s.private.OnDrop(c.dropped)
	s.close = func() {
		s.private.Close()
		delete(c.sessions, id)
	}
	c.sessions[id] = s

	c.metrics.SessionRegistered(len(c.sessions))
	c.log.Info("session registered", slog.String("client_id", id))
	return id, nil
}

// Get returns the session registered under id.
func (c *Core) Get(id string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionLocked(id)
}

func (c *Core) sessionLocked(id string) (*Session, error) {
	s, ok := c.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Unregister closes the session's private stream, which ends its feed, and
// forgets it. Unknown ids are ignored.
func (c *Core) Unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	if !ok {
		return
	}
	s.close()
	c.metrics.SetActiveSessions(len(c.sessions))
	c.log.Info("session unregistered", slog.String("client_id", id))
}

// Command hands cmd to the dispatcher and returns the command id. The
// result arrives later on the session's feed.
func (c *Core) Command(id string, cmd command.Command) (string, error) {
	s, err := c.Get(id)
	if err != nil {
		return "", err
	}
	if err := cmd.Validate(); err != nil {
		return "", err
	}
	return c.dispatcher.Execute(cmd, s), nil
}

// Browse forwards a library browse request on behalf of session id.
func (c *Core) Browse(ctx context.Context, id string, req roon.BrowseRequest) (roon.BrowseResult, error) {
	if _, err := c.Get(id); err != nil {
		return roon.BrowseResult{}, err
	}
	return c.dispatcher.Browse(ctx, req)
}

// Load forwards a library load request on behalf of session id.
func (c *Core) Load(ctx context.Context, id string, req roon.LoadRequest) (roon.LoadResult, error) {
	if _, err := c.Get(id); err != nil {
		return roon.LoadResult{}, err
	}
	return c.dispatcher.Load(ctx, req)
}

// Settings returns the viewer settings of session id, or an empty JSON
// object when none were stored.
func (c *Core) Settings(id string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.sessionLocked(id)
	if err != nil {
		return nil, err
	}
	if s.settings == nil {
		return json.RawMessage("{}"), nil
	}
	return append(json.RawMessage(nil), s.settings...), nil
}

// UpdateSettings replaces the viewer settings of session id and echoes them
// as a config event on its private stream.
func (c *Core) UpdateSettings(id string, settings json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.sessionLocked(id)
	if err != nil {
		return err
	}
	s.settings = append(json.RawMessage(nil), settings...)
	s.Publish(roon.Event{Data: roon.ConfigEvent{Settings: s.settings}})
	return nil
}
