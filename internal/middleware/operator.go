package middleware

import (
	"context"
	"net/http"

	"diaspora-map/internal/logger"

	"go.uber.org/zap"
)

type contextKey string

const contextOperatorKey contextKey = "operator"

// OperatorVerifier resolves an operator bearer token to its subject.
type OperatorVerifier interface {
	VerifyOperator(token string) (string, error)
}

type OperatorMiddleware struct {
	tokens OperatorVerifier
	logr   *zap.Logger
}

func NewOperatorMiddleware(tokens OperatorVerifier, logr *zap.Logger) *OperatorMiddleware {
	return &OperatorMiddleware{tokens: tokens, logr: logr}
}

// RequireOperator lets through requests carrying a valid operator token and
// attaches the operator to the request context.
func (m *OperatorMiddleware) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, problem := bearerToken(r)
		if problem != "" {
			writeError(w, http.StatusUnauthorized, problem)
			return
		}

		subject, err := m.tokens.VerifyOperator(tokenString)
		if err != nil {
			logger.ForRequest(m.logr, r).Warn("operator token rejected", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), contextOperatorKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OperatorFromContext returns the operator bound by RequireOperator, or "".
func OperatorFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(contextOperatorKey).(string)
	return subject
}
