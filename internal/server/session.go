package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mediasync/internal/shared"
)

const (
	StatusPath     = "/api/session/status"
	ConnectPath    = "/api/session/connect"
	DisconnectPath = "/api/session/disconnect"
	ExtendPath     = "/api/session/extend"
	TimeoutPath    = "/api/session/timeout"
	StreamPath     = "/api/session/ws"
)

// timeoutRequest is the body of POST /api/session/timeout. The response echoes the applied, clamped value.
type timeoutRequest struct {
	Minutes *int `json:"minutes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// SessionHandler exposes a [SessionController] over JSON.
type SessionHandler struct {
	ctrl   SessionController
	logger *log.Logger
}

// NewSessionHandler creates a handler for ctrl.
func NewSessionHandler(ctrl SessionController, logger *log.Logger) *SessionHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SessionHandler{ctrl: ctrl, logger: shared.WithLogger(logger, "component", "http")}
}

// Register adds the session routes to r.
func (h *SessionHandler) Register(r Router) {
	r.Handle(http.MethodGet, StatusPath, http.HandlerFunc(h.status))
	r.Handle(http.MethodPost, ConnectPath, http.HandlerFunc(h.connect))
	r.Handle(http.MethodPost, DisconnectPath, http.HandlerFunc(h.disconnect))
	r.Handle(http.MethodPost, ExtendPath, http.HandlerFunc(h.extend))
	r.Handle(http.MethodPost, TimeoutPath, http.HandlerFunc(h.timeout))
}

func (h *SessionHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *SessionHandler) connect(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Connect(); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.ctrl.Status())
}

func (h *SessionHandler) disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Disconnect(); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *SessionHandler) extend(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.ExtendSession(); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *SessionHandler) timeout(w http.ResponseWriter, r *http.Request) {
	var req timeoutRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024))
	if err := dec.Decode(&req); err != nil {
		h.fail(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}
	if req.Minutes == nil {
		h.fail(w, fmt.Errorf("%w: minutes is required", shared.ErrInvalidInput))
		return
	}

	applied, err := h.ctrl.SetTimeout(*req.Minutes)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.logger.Info("idle timeout updated", "requested", *req.Minutes, "applied", applied)
	writeJSON(w, http.StatusOK, map[string]int{"minutes": applied})
}

func (h *SessionHandler) fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, shared.ErrNotConnected):
		code = http.StatusConflict
	case errors.Is(err, shared.ErrSessionClosed):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		h.logger.Error("session request failed", "err", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
