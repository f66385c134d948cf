package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"diaspora-map/internal/models"
	"diaspora-map/internal/proposal"
	"diaspora-map/internal/session"

	"go.uber.org/zap"
)

// idleWait bounds how long a response waits for outstanding fetches before
// answering with a loading view.
const idleWait = 5 * time.Second

// TokenIssuer hands out session tokens.
type TokenIssuer interface {
	Issue(sessionID string, ttl time.Duration) (string, time.Time, error)
}

// SessionHandler handles HTTP requests for interactive map sessions
type SessionHandler struct {
	sessions *session.Manager
	tokens   TokenIssuer
	tokenTTL time.Duration
	logr     *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Manager, tokens TokenIssuer, tokenTTL time.Duration, logr *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		logr:     logr,
	}
}

type createSessionRequest struct {
	Query string `json:"query"`
}

type createSessionResponse struct {
	SessionID string         `json:"session_id"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	View      models.MapView `json:"view"`
}

type categoryRequest struct {
	Slug *string `json:"slug"`
	PK   *int    `json:"pk"`
}

type locationRequest struct {
	PK int `json:"pk"`
}

type searchRequest struct {
	Phrase string `json:"phrase"`
}

type navigateRequest struct {
	Query string `json:"query"`
}

// Create handles POST /sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.logr.Warn("failed to decode request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := h.sessions.Create(req.Query)
	if err != nil {
		if errors.Is(err, session.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "Server is shutting down")
			return
		}
		h.fail(w, err)
		return
	}

	token, exp, err := h.tokens.Issue(s.ID(), h.tokenTTL)
	if err != nil {
		h.logr.Error("failed to issue session token", zap.Error(err))
		_ = h.sessions.Remove(s.ID())
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	view, err := h.settledView(r.Context(), s)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeData(w, http.StatusCreated, createSessionResponse{
		SessionID: s.ID(),
		Token:     token,
		ExpiresAt: exp,
		View:      view,
	})
}

// View handles GET /sessions/view. With ?wait=true it first waits for
// outstanding fetches.
func (h *SessionHandler) View(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())

	var (
		view models.MapView
		err  error
	)
	if r.URL.Query().Get("wait") == "true" {
		view, err = h.settledView(r.Context(), s)
	} else {
		view, err = s.View(r.Context())
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

// SetCategory handles PUT /sessions/category
func (h *SessionHandler) SetCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s := session.FromContext(r.Context())
	var err error
	switch {
	case req.Slug != nil:
		err = s.SelectCategory(r.Context(), *req.Slug)
	case req.PK != nil:
		err = s.SelectCategoryPK(r.Context(), *req.PK)
	default:
		writeError(w, http.StatusBadRequest, "slug or pk is required")
		return
	}
	h.respond(w, r, s, err)
}

// SetLocation handles PUT /sessions/location
func (h *SessionHandler) SetLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeBody(w, r, &req); err != nil || req.PK <= 0 {
		writeError(w, http.StatusBadRequest, "A positive location pk is required")
		return
	}

	s := session.FromContext(r.Context())
	h.respond(w, r, s, s.SelectLocation(r.Context(), req.PK))
}

// ClearLocation handles DELETE /sessions/location
func (h *SessionHandler) ClearLocation(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	h.respond(w, r, s, s.ClearLocation(r.Context()))
}

// SetSearch handles PUT /sessions/search
func (h *SessionHandler) SetSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s := session.FromContext(r.Context())
	h.respond(w, r, s, s.SetSearchPhrase(r.Context(), req.Phrase))
}

// Navigate handles POST /sessions/navigate
func (h *SessionHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s := session.FromContext(r.Context())
	h.respond(w, r, s, s.Navigate(r.Context(), req.Query))
}

// Reload handles POST /sessions/reload
func (h *SessionHandler) Reload(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if err := s.Reload(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	view, err := h.settledView(r.Context(), s)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

// OpenProposal handles POST /sessions/proposal/open
func (h *SessionHandler) OpenProposal(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	h.respond(w, r, s, s.OpenProposal(r.Context()))
}

// SubmitProposal handles POST /sessions/proposal
func (h *SessionHandler) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	var form models.ProposalForm
	if err := decodeBody(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s := session.FromContext(r.Context())
	status, err := s.SubmitProposal(r.Context(), form)

	var verr *proposal.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, Response{
			Success: false,
			Message: "Please correct the highlighted fields",
			Errors:  verr.Fields,
		})
		return
	case errors.Is(err, proposal.ErrInFlight):
		writeError(w, http.StatusConflict, "A proposal is already being sent")
		return
	case err != nil:
		h.fail(w, err)
		return
	}

	view, err := s.View(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}

	if status != proposal.StatusSubmitted {
		writeJSON(w, http.StatusBadGateway, Response{
			Success: false,
			Message: view.Proposal.Message,
		})
		return
	}
	writeData(w, http.StatusCreated, view)
}

// Close handles DELETE /sessions
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if err := h.sessions.Remove(s.ID()); err != nil && !errors.Is(err, session.ErrNotFound) {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Session closed",
	})
}

// respond answers a mutation with the resulting view.
func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, s *session.Session, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	view, err := s.View(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *SessionHandler) settledView(ctx context.Context, s *session.Session) (models.MapView, error) {
	waitCtx, cancel := context.WithTimeout(ctx, idleWait)
	defer cancel()

	if err := s.WaitIdle(waitCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return models.MapView{}, err
	}
	return s.View(ctx)
}

func (h *SessionHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrUnknownCategory):
		writeError(w, http.StatusNotFound, "Category not found")
	case errors.Is(err, session.ErrUnknownLocation):
		writeError(w, http.StatusNotFound, "Location not found")
	case errors.Is(err, session.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "Invalid query string")
	case errors.Is(err, session.ErrNotReady):
		writeError(w, http.StatusConflict, "Map data is still loading")
	case errors.Is(err, session.ErrClosed), errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusGone, "Session closed")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		h.logr.Error("session request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
