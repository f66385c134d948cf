package middleware

import (
	"errors"
	"net/http"
	"strings"

	"diaspora-map/internal/logger"
	"diaspora-map/internal/session"

	"go.uber.org/zap"
)

// TokenVerifier resolves a bearer token to a session id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// SessionLookup finds open sessions.
type SessionLookup interface {
	Get(id string) (*session.Session, error)
}

type SessionMiddleware struct {
	tokens   TokenVerifier
	sessions SessionLookup
	logr     *zap.Logger
}

// NewSessionMiddleware creates a reusable session auth middleware instance
func NewSessionMiddleware(tokens TokenVerifier, sessions SessionLookup, logr *zap.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		tokens:   tokens,
		sessions: sessions,
		logr:     logr,
	}
}

// RequireSession validates the token and attaches the session to the request context
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, problem := bearerToken(r)
		if problem != "" {
			writeError(w, http.StatusUnauthorized, problem)
			return
		}

		sessionID, err := m.tokens.Verify(tokenString)
		if err != nil {
			logger.ForRequest(m.logr, r).Warn("token verification failed", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		s, err := m.sessions.Get(sessionID)
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found or expired")
			return
		}
		if err != nil {
			logger.ForRequest(m.logr, r).Error("failed looking up session", zap.Error(err), zap.String("session", sessionID))
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), s)))
	})
}

// bearerToken extracts the token from the Authorization header. problem is
// the client-facing reason when there is none.
func bearerToken(r *http.Request) (token, problem string) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "missing authorization header"
	}
	token = strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader || token == "" {
		return "", "invalid token format"
	}
	return token, ""
}
