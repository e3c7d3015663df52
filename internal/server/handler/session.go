package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// SessionService is what the session endpoints need from the trading layer.
type SessionService interface {
	SessionState() domain.SessionState
	SessionError() error
	Session() (domain.Session, bool)
	CreateSession(ctx context.Context) (domain.Session, error)
	ClearSession()
}

// SessionHandler serves the trading session lifecycle.
type SessionHandler struct {
	sessions SessionService
	logger   *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(sessions SessionService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// sessionResponse never carries credentials.
type sessionResponse struct {
	State         domain.SessionState `json:"state"`
	Error         string              `json:"error,omitempty"`
	EOA           string              `json:"eoa,omitempty"`
	Funder        string              `json:"funder,omitempty"`
	SignatureType int                 `json:"signature_type,omitempty"`
	CreatedAt     *time.Time          `json:"created_at,omitempty"`
}

func (h *SessionHandler) snapshot() sessionResponse {
	resp := sessionResponse{State: h.sessions.SessionState()}
	if err := h.sessions.SessionError(); err != nil {
		resp.Error = err.Error()
	}
	if s, ok := h.sessions.Session(); ok {
		resp.EOA = s.EOA.Hex()
		resp.Funder = s.Funder.Hex()
		resp.SignatureType = int(s.SignatureType)
		resp.CreatedAt = &s.CreatedAt
	}
	return resp
}

// GetSession returns the session state.
// GET /api/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot())
}

// CreateSession authenticates and activates a session.
// POST /api/session
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.CreateSession(r.Context()); err != nil {
		writeDomainError(w, r, h.logger, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.snapshot())
}

// ClearSession drops the session. Clearing twice is not an error.
// DELETE /api/session
func (h *SessionHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSession()
	writeJSON(w, http.StatusOK, h.snapshot())
}
