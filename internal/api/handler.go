// Package api provides HTTP handlers for the evening ritual API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/evening-ritual/internal/domain"
	"github.com/ashureev/evening-ritual/internal/evening"
	"github.com/ashureev/evening-ritual/internal/identity"
	"github.com/ashureev/evening-ritual/internal/store"
	"github.com/ashureev/evening-ritual/internal/stream"
	"github.com/go-chi/chi/v5"
)

const defaultMaxBodyBytes = 1 << 20

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// commandBody is the wire form of a command request.
type commandBody struct {
	UserID          string `json:"user_id"`
	Command         string `json:"command"`
	ExtensionReason string `json:"extension_reason,omitempty"`
	IdempotencyKey  string `json:"idempotency_key,omitempty"`
}

// EveningHandler serves the command and snapshot endpoints.
type EveningHandler struct {
	svc          *evening.Service
	hub          *stream.Hub
	logger       *slog.Logger
	maxBodyBytes int64
	origins      []string
}

// NewEveningHandler creates a handler. hub may be nil when live streaming is not wired.
func NewEveningHandler(svc *evening.Service, hub *stream.Hub, logger *slog.Logger, maxBodyBytes int64, origins []string) *EveningHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &EveningHandler{
		svc:          svc,
		hub:          hub,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
		origins:      origins,
	}
}

// RegisterRoutes registers evening routes.
func (h *EveningHandler) RegisterRoutes(r chi.Router) {
	r.Route("/v1/evening/{sessionID}", func(r chi.Router) {
		r.Post("/commands", h.PostCommand)
		r.Get("/snapshot", h.GetSnapshot)
		if h.hub != nil {
			r.Get("/stream", h.Stream)
		}
	})
}

// PostCommand applies one command to the caller's evening.
// Rejected commands still answer 200; only malformed input and storage failures are errors.
func (h *EveningHandler) PostCommand(w http.ResponseWriter, r *http.Request) {
	sessionID, err := identity.Validate("session_id", chi.URLParam(r, "sessionID"))
	if err != nil {
		Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	req, status, err := h.decodeCommand(w, r)
	if err != nil {
		Error(w, status, err.Error())
		return
	}
	req.SessionID = sessionID

	ctx := identity.WithEvening(r.Context(), req.SessionID, req.UserID)
	resp, err := h.svc.Execute(ctx, req)
	if err != nil {
		h.writeServiceError(w, err, req.SessionID, req.UserID)
		return
	}

	if h.hub != nil {
		if _, err := h.hub.Publish(req.SessionID, req.UserID, stream.FrameCommand, resp); err != nil {
			h.logger.Warn("Failed to publish command frame", "error", err, "session_id", req.SessionID)
		}
	}

	JSON(w, http.StatusOK, resp)
}

// GetSnapshot returns the caller's evening without changing it.
func (h *EveningHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID, userID, err := eveningKey(r)
	if err != nil {
		Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	snap, err := h.svc.Snapshot(r.Context(), sessionID, userID)
	if err != nil {
		h.writeServiceError(w, err, sessionID, userID)
		return
	}
	JSON(w, http.StatusOK, snap)
}

func (h *EveningHandler) decodeCommand(w http.ResponseWriter, r *http.Request) (evening.Request, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var body commandBody
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return evening.Request{}, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		if errors.Is(err, io.EOF) {
			return evening.Request{}, http.StatusUnprocessableEntity, errors.New("request body is empty")
		}
		return evening.Request{}, http.StatusUnprocessableEntity, fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return evening.Request{}, http.StatusUnprocessableEntity, errors.New("request body must contain a single JSON object")
	}

	userID, err := identity.Validate("user_id", body.UserID)
	if err != nil {
		return evening.Request{}, http.StatusUnprocessableEntity, err
	}
	command := domain.Command(strings.TrimSpace(body.Command))
	if !command.Valid() {
		return evening.Request{}, http.StatusUnprocessableEntity, fmt.Errorf("unknown command %q", body.Command)
	}
	reason := domain.ExtensionReason(strings.TrimSpace(body.ExtensionReason))
	if !reason.Valid() {
		return evening.Request{}, http.StatusUnprocessableEntity, fmt.Errorf("unknown extension_reason %q", body.ExtensionReason)
	}

	return evening.Request{
		UserID:         userID,
		Command:        command,
		Reason:         reason,
		IdempotencyKey: strings.TrimSpace(body.IdempotencyKey),
	}, http.StatusOK, nil
}

func (h *EveningHandler) writeServiceError(w http.ResponseWriter, err error, sessionID, userID string) {
	if errors.Is(err, store.ErrStoreBusy) {
		h.logger.Warn("Store busy", "error", err, "session_id", sessionID, "user_id", userID)
		Error(w, http.StatusServiceUnavailable, "store_busy")
		return
	}
	h.logger.Error("Evening request failed", "error", err, "session_id", sessionID, "user_id", userID)
	Error(w, http.StatusInternalServerError, "internal_error")
}

// eveningKey validates the session id path parameter and the user_id query parameter.
func eveningKey(r *http.Request) (string, string, error) {
	sessionID, err := identity.Validate("session_id", chi.URLParam(r, "sessionID"))
	if err != nil {
		return "", "", err
	}
	userID, err := identity.Validate("user_id", r.URL.Query().Get("user_id"))
	if err != nil {
		return "", "", err
	}
	return sessionID, userID, nil
}
