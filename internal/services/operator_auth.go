package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"diaspora-map/internal/config"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrLoginDisabled        = errors.New("login method not configured")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrDirectoryUnavailable = errors.New("directory unavailable")
)

// OperatorTokenIssuer signs operator tokens.
type OperatorTokenIssuer interface {
	IssueOperator(subject, method string, ttl time.Duration) (string, time.Time, error)
}

// directoryConn is the part of *ldap.Conn used for login.
type directoryConn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

type directoryDialer func(addr string) (directoryConn, error)

func dialLDAP(addr string) (directoryConn, error) {
	conn, err := ldap.DialURL(addr, ldap.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}))
	if err != nil {
		return nil, err
	}
	conn.SetTimeout(30 * time.Second)
	return conn, nil
}

type OperatorInfo struct {
	Subject  string `json:"subject"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Provider string `json:"provider"`
}

type OperatorLogin struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Operator  OperatorInfo `json:"operator"`
}

// OperatorAuthService logs in the people allowed to read the proposal log,
// either with the configured local credential or against a directory.
type OperatorAuthService struct {
	cfg    *config.Config
	tokens OperatorTokenIssuer
	logr   *zap.Logger
	dial   directoryDialer
}

func NewOperatorAuthService(cfg *config.Config, tokens OperatorTokenIssuer, logr *zap.Logger) *OperatorAuthService {
	return &OperatorAuthService{cfg: cfg, tokens: tokens, logr: logr, dial: dialLDAP}
}

// HashPassword uses bcrypt
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// LoginLocal checks email and password against OPERATOR_EMAIL and
// OPERATOR_PASSWORD_HASH.
func (s *OperatorAuthService) LoginLocal(ctx context.Context, email, password string) (*OperatorLogin, error) {
	if s.cfg.OperatorEmail == "" || s.cfg.OperatorPasswordHash == "" {
		return nil, ErrLoginDisabled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Compare the hash even for an unknown email so both paths cost the same.
	hashErr := ComparePassword(s.cfg.OperatorPasswordHash, password)
	if !strings.EqualFold(strings.TrimSpace(email), s.cfg.OperatorEmail) || hashErr != nil {
		s.logr.Warn("local operator login rejected", zap.String("email", email))
		return nil, ErrInvalidCredentials
	}

	return s.issue(OperatorInfo{
		Subject:  s.cfg.OperatorEmail,
		Name:     s.cfg.OperatorEmail,
		Email:    s.cfg.OperatorEmail,
		Provider: "local",
	})
}

// LoginLDAP binds as the user; with LDAP_BASE_DN set it also looks up the
// display name and mail address.
func (s *OperatorAuthService) LoginLDAP(ctx context.Context, username, password string) (*OperatorLogin, error) {
	if s.cfg.LDAPServer == "" {
		return nil, ErrLoginDisabled
	}

	cleanUsername := strings.TrimSpace(username)
	if i := strings.Index(cleanUsername, "@"); i >= 0 {
		cleanUsername = cleanUsername[:i]
	}
	// An empty password is an unauthenticated bind, which most servers accept.
	if cleanUsername == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := s.dial(s.cfg.LDAPServer)
	if err != nil {
		s.logr.Error("LDAP dial failed", zap.Error(err), zap.String("server", s.cfg.LDAPServer))
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			s.logr.Debug("LDAP close error", zap.Error(closeErr))
		}
	}()

	bindDN := cleanUsername
	if s.cfg.LDAPDomain != "" {
		bindDN = cleanUsername + "@" + s.cfg.LDAPDomain
	}

	if err := conn.Bind(bindDN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			s.logr.Warn("LDAP bind failed", zap.String("username", cleanUsername))
			return nil, ErrInvalidCredentials
		}
		s.logr.Error("LDAP bind error", zap.Error(err), zap.String("username", cleanUsername))
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	info := OperatorInfo{Subject: bindDN, Name: cleanUsername, Provider: "ldap"}
	if s.cfg.LDAPBaseDN == "" {
		return s.issue(info)
	}

	searchReq := ldap.NewSearchRequest(
		s.cfg.LDAPBaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1,
		0,
		false,
		fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(cleanUsername)),
		[]string{"cn", "displayName", "mail"},
		nil,
	)
	sr, err := conn.Search(searchReq)
	if err != nil {
		s.logr.Error("LDAP search failed", zap.Error(err), zap.String("username", cleanUsername))
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if len(sr.Entries) == 0 {
		s.logr.Warn("LDAP: no entry found", zap.String("username", cleanUsername))
		return nil, ErrInvalidCredentials
	}

	entry := sr.Entries[0]
	if name := entry.GetAttributeValue("displayName"); name != "" {
		info.Name = name
	} else if cn := entry.GetAttributeValue("cn"); cn != "" {
		info.Name = cn
	}
	if mail := entry.GetAttributeValue("mail"); mail != "" {
		info.Email = mail
		info.Subject = mail
	}
	return s.issue(info)
}

func (s *OperatorAuthService) issue(info OperatorInfo) (*OperatorLogin, error) {
	token, exp, err := s.tokens.IssueOperator(info.Subject, info.Provider, s.cfg.OperatorTokenTTL)
	if err != nil {
		return nil, err
	}
	s.logr.Info("operator logged in", zap.String("subject", info.Subject), zap.String("provider", info.Provider))
	return &OperatorLogin{Token: token, ExpiresAt: exp, Operator: info}, nil
}
