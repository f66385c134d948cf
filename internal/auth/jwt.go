package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	sessionKind  = "session"
	operatorKind = "operator"
)

// ErrInvalidToken covers every token that cannot be trusted.
var ErrInvalidToken = errors.New("invalid token")

// JWTManager signs and verifies the bearer tokens handed out with map
// sessions and to operators. The "typ" claim keeps the two apart.
type JWTManager struct {
	secret []byte
	issuer string
}

func NewJWTManager(secret, issuer string) (*JWTManager, error) {
	if secret == "" {
		return nil, errors.New("session secret must not be empty")
	}
	return &JWTManager{
		secret: []byte(secret),
		issuer: issuer,
	}, nil
}

// Issue makes a signed token naming sessionID.
func (m *JWTManager) Issue(sessionID string, ttl time.Duration) (string, time.Time, error) {
	return m.sign(sessionKind, sessionID, ttl, nil)
}

// IssueOperator makes a signed token for an authenticated operator. method
// records how they logged in (local or ldap).
func (m *JWTManager) IssueOperator(subject, method string, ttl time.Duration) (string, time.Time, error) {
	return m.sign(operatorKind, subject, ttl, jwt.MapClaims{"auth_method": method})
}

// Verify checks a session token and returns the session id.
func (m *JWTManager) Verify(tokenStr string) (string, error) {
	return m.parse(tokenStr, sessionKind)
}

// VerifyOperator checks an operator token and returns the operator subject.
func (m *JWTManager) VerifyOperator(tokenStr string) (string, error) {
	return m.parse(tokenStr, operatorKind)
}

func (m *JWTManager) sign(kind, subject string, ttl time.Duration, extra jwt.MapClaims) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)

	claims := jwt.MapClaims{
		"iss": m.issuer,
		"sub": subject,
		"iat": now.Unix(),
		"exp": exp.Unix(),
		"jti": uuid.New().String(),
		"typ": kind,
	}
	for k, v := range extra {
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return tokenStr, exp, nil
}

// parse checks the HS256 signature, issuer, expiry and kind and returns the subject.
func (m *JWTManager) parse(tokenStr, kind string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithLeeway(5*time.Second), jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if typ, _ := claims["typ"].(string); typ != kind {
		return "", ErrInvalidToken
	}
	subject, _ := claims["sub"].(string)
	if subject == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}
