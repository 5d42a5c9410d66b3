// Package api exposes the session registry and the viewer feeds over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/command"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/core"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon"
)

const maxBodyBytes = 1 << 20

// Handler serves the viewer API using go-chi.
type Handler struct {
	core    *core.Core
	log     *slog.Logger
	version string
}

// NewHandler returns a Handler backed by c.
func NewHandler(c *core.Core, log *slog.Logger, version string) *Handler {
	return &Handler{core: c, log: log.With("component", "api"), version: version}
}

// Routes mounts every endpoint under /api on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Get("/state", h.State)
		r.Get("/version", h.Version)
		r.Route("/{client_id}", func(r chi.Router) {
			r.Post("/unregister", h.Unregister)
			r.Get("/events", h.Events)
			r.Get("/ws", h.Socket)
			r.Post("/command", h.Command)
			r.Post("/browse", h.Browse)
			r.Post("/load", h.Load)
			r.Get("/config", h.Config)
			r.Put("/config", h.UpdateConfig)
		})
	})
}

// Register handles POST /api/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	id, err := h.core.Register()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"client_id": id})
}

// Unregister handles POST /api/{client_id}/unregister.
func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request) {
	h.core.Unregister(chi.URLParam(r, "client_id"))
	w.WriteHeader(http.StatusNoContent)
}

// Command handles POST /api/{client_id}/command.
// Body: { "type": "volume", "output_id": "...", "how": "relative_step", "value": 1 }.
func (h *Handler) Command(w http.ResponseWriter, r *http.Request) {
	var cmd command.Command
	if !h.decode(w, r, &cmd) {
		return
	}
	commandID, err := h.core.Command(chi.URLParam(r, "client_id"), cmd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"command_id": commandID})
}

// Browse handles POST /api/{client_id}/browse.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	var req roon.BrowseRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.core.Browse(r.Context(), chi.URLParam(r, "client_id"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Load handles POST /api/{client_id}/load.
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	var req roon.LoadRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.core.Load(r.Context(), chi.URLParam(r, "client_id"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Config handles GET /api/{client_id}/config.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	settings, err := h.core.Settings(chi.URLParam(r, "client_id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateConfig handles PUT /api/{client_id}/config. The body is any JSON value.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || !json.Valid(body) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.core.UpdateSettings(chi.URLParam(r, "client_id"), body); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// State handles GET /api/state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.core.State())
}

// Version handles GET /api/version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.version})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.log.Debug("invalid request body", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, roon.ErrUnknownZone),
		errors.Is(err, roon.ErrUnknownOutput):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrNotStarted), errors.Is(err, roon.ErrNotPaired):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, command.ErrUnknownCommand),
		errors.Is(err, command.ErrMissingTarget),
		errors.Is(err, command.ErrInvalidVolume):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		h.log.Error("request failed", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
