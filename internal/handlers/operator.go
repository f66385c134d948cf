package handlers

import (
	"context"
	"errors"
	"net/http"

	"diaspora-map/internal/logger"
	"diaspora-map/internal/services"

	"go.uber.org/zap"
)

// OperatorAuthenticator logs operators in.
type OperatorAuthenticator interface {
	LoginLocal(ctx context.Context, email, password string) (*services.OperatorLogin, error)
	LoginLDAP(ctx context.Context, username, password string) (*services.OperatorLogin, error)
}

type OperatorHandler struct {
	auth OperatorAuthenticator
	logr *zap.Logger
}

func NewOperatorHandler(auth OperatorAuthenticator, logr *zap.Logger) *OperatorHandler {
	return &OperatorHandler{auth: auth, logr: logr}
}

type localLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ldapLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginLocal handles POST /operators/login
func (h *OperatorHandler) LoginLocal(w http.ResponseWriter, r *http.Request) {
	var req localLoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	login, err := h.auth.LoginLocal(r.Context(), req.Email, req.Password)
	h.respond(w, r, login, err)
}

// LoginLDAP handles POST /operators/ldap
func (h *OperatorHandler) LoginLDAP(w http.ResponseWriter, r *http.Request) {
	var req ldapLoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	login, err := h.auth.LoginLDAP(r.Context(), req.Username, req.Password)
	h.respond(w, r, login, err)
}

func (h *OperatorHandler) respond(w http.ResponseWriter, r *http.Request, login *services.OperatorLogin, err error) {
	switch {
	case err == nil:
		writeData(w, http.StatusOK, login)
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, services.ErrLoginDisabled):
		writeError(w, http.StatusNotFound, "Login method not enabled")
	case errors.Is(err, services.ErrDirectoryUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Directory unavailable")
	default:
		logger.ForRequest(h.logr, r).Error("operator login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
