package session

import "context"

type contextKey string

const sessionKey contextKey = "mapSession"

// NewContext binds s to ctx for handlers behind the session middleware.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext returns the session bound to ctx. A handler reaching for a
// session outside the middleware is a wiring error and panics.
func FromContext(ctx context.Context) *Session {
	s, ok := ctx.Value(sessionKey).(*Session)
	if !ok || s == nil {
		panic("session: FromContext called without a session bound to the context")
	}
	return s
}
