package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/platform/metrics"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
)

// DefaultTimeout bounds a single upstream command when none is configured.
const DefaultTimeout = 10 * time.Second

// Publisher receives command result events. A session's private stream
// implements it.
type Publisher interface {
	Publish(ev roon.Event)
}

// Dispatcher executes commands against the upstream core.
type Dispatcher struct {
	ctrl    roon.Controller
	browser roon.Browser
	log     *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	newID   func() string
}

// NewDispatcher returns a Dispatcher using ctrl for transport commands and
// browser for library navigation. Metrics may be nil.
func NewDispatcher(ctrl roon.Controller, browser roon.Browser, log *slog.Logger, m *metrics.Metrics, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		ctrl:    ctrl,
		browser: browser,
		log:     log.With("component", "command"),
		metrics: m,
		timeout: timeout,
		newID:   uuid.NewString,
	}
}

// Execute starts cmd in the background and returns its id immediately. The
// result is published on target as a command event carrying that id.
func (d *Dispatcher) Execute(cmd Command, target Publisher) string {
	id := d.newID()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := d.run(ctx, cmd)
		if err != nil {
			d.log.Warn("command failed",
				slog.String("command_id", id),
				slog.String("type", string(cmd.Type)),
				slog.String("error", err.Error()))
			d.metrics.IncCommands("failed")
		} else {
			d.log.Debug("command executed",
				slog.String("command_id", id),
				slog.String("type", string(cmd.Type)))
			d.metrics.IncCommands("success")
		}
		target.Publish(roon.NewCommandEvent(id, err))
	}()
	return id
}

func (d *Dispatcher) run(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if c, ok := cmd.control(); ok {
		return d.ctrl.Control(ctx, cmd.ZoneID, c)
	}
	switch cmd.Type {
	case Volume:
		return d.ctrl.ChangeVolume(ctx, cmd.OutputID, cmd.How, cmd.Value)
	case Mute:
		return d.ctrl.Mute(ctx, cmd.OutputID, true)
	case Unmute:
		return d.ctrl.Mute(ctx, cmd.OutputID, false)
	case Seek:
		return d.ctrl.Seek(ctx, cmd.ZoneID, cmd.Seconds)
	}
	return ErrUnknownCommand
}

// Browse forwards req to the upstream browser.
func (d *Dispatcher) Browse(ctx context.Context, req roon.BrowseRequest) (roon.BrowseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.browser.Browse(ctx, req)
}

// Load forwards req to the upstream browser.
func (d *Dispatcher) Load(ctx context.Context, req roon.LoadRequest) (roon.LoadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.browser.Load(ctx, req)
}
