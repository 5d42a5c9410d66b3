package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Events handles GET /api/{client_id}/events as a server-sent event stream.
// Each event is framed as "event: <type>" followed by "data: <json payload>".
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "client_id")
	s, err := h.core.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	feed, err := s.Feed().Attach(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.log.Debug("event stream opened", slog.String("client_id", id))
	for ev := range feed {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			h.log.Error("encode event", slog.String("event", string(ev.Type())), slog.String("error", err.Error()))
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type(), data); err != nil {
			return
		}
		flusher.Flush()
	}
	h.log.Debug("event stream closed", slog.String("client_id", id))
}

// Socket handles GET /api/{client_id}/ws. It streams the same feed as Events,
// one {"event", "data"} JSON text message per event.
func (h *Handler) Socket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "client_id")
	s, err := h.core.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// the feed is attached only once the upgrade succeeded: Attach replaces
	// the session's current consumer
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", slog.String("client_id", id), slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	feed, err := s.Feed().Attach(ctx)
	if err != nil {
		h.log.Debug("websocket attach failed", slog.String("client_id", id), slog.String("error", err.Error()))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(wsWriteWait))
		return
	}

	// drain control frames; a read error means the viewer went away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for ev := range feed {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(ev); err != nil {
			h.log.Debug("websocket write failed", slog.String("client_id", id), slog.String("error", err.Error()))
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "feed closed"),
		time.Now().Add(wsWriteWait))
}
