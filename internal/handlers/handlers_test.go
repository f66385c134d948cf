package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"diaspora-map/internal/models"
	"diaspora-map/internal/services"
	"diaspora-map/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRenderer struct {
	view models.MapView
	err  error
	got  string
}

func (f *fakeRenderer) Render(_ context.Context, rawQuery string) (models.MapView, error) {
	f.got = rawQuery
	return f.view, f.err
}

func TestGetMap(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"ok", nil, http.StatusOK},
		{"bad query", session.ErrInvalidQuery, http.StatusBadRequest},
		{"slow backend", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRenderer{view: models.MapView{Status: "ready", Query: "category=museums"}, err: tt.err}
			h := NewMapHandler(r, "pk.x", 600*time.Millisecond, zap.NewNop())
			rec := httptest.NewRecorder()

			h.GetMap(rec, httptest.NewRequest(http.MethodGet, "/api/v1/map?category=museums", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "category=museums", r.got)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.err == nil {
				assert.Contains(t, rec.Body.String(), `"success":true`)
				assert.Contains(t, rec.Body.String(), `"query":"category=museums"`)
			} else {
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}
}

func TestGetConfig(t *testing.T) {
	h := NewMapHandler(&fakeRenderer{}, "pk.x", 600*time.Millisecond, zap.NewNop())
	rec := httptest.NewRecorder()

	h.GetConfig(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	var body struct {
		Data MapConfig `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "pk.x", body.Data.MapboxToken)
	assert.Equal(t, int64(600), body.Data.SearchDebounceMS)
	assert.Equal(t, 11.1, body.Data.DefaultViewport.Zoom)
}

type fakeLog struct {
	limit, offset int
	countKey      string
	err           error
}

func (f *fakeLog) ListAttempts(_ context.Context, limit, offset int) ([]models.ProposalAttempt, error) {
	f.limit, f.offset = limit, offset
	return []models.ProposalAttempt{{IdempotencyKey: "k-1", Outcome: "submitted"}}, f.err
}

func (f *fakeLog) CountByKey(_ context.Context, key string) (int, error) {
	f.countKey = key
	return 2, f.err
}

func TestProposalLogList(t *testing.T) {
	t.Run("pagination defaults", func(t *testing.T) {
		log := &fakeLog{}
		h := NewProposalLogHandler(log, zap.NewNop())
		rec := httptest.NewRecorder()

		h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/proposals?limit=-3&offset=x", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 50, log.limit)
		assert.Equal(t, 0, log.offset)
		assert.Contains(t, rec.Body.String(), `"idempotency_key":"k-1"`)
	})

	t.Run("count by key", func(t *testing.T) {
		log := &fakeLog{}
		h := NewProposalLogHandler(log, zap.NewNop())
		rec := httptest.NewRecorder()

		h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/proposals?idempotency_key=k-1", nil))

		assert.Equal(t, "k-1", log.countKey)
		assert.Contains(t, rec.Body.String(), `"count":2`)
	})

	t.Run("storage failure", func(t *testing.T) {
		h := NewProposalLogHandler(&fakeLog{err: errors.New("down")}, zap.NewNop())
		rec := httptest.NewRecorder()

		h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/proposals", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"success":false,"message":"Failed to fetch proposals"}`, rec.Body.String())
	})
}

func TestDecodeBody(t *testing.T) {
	var dst struct {
		Query string `json:"query"`
	}

	rec := httptest.NewRecorder()
	require.NoError(t, decodeBody(rec, httptest.NewRequest(http.MethodPost, "/", nil), &dst))

	err := decodeBody(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nope":1}`)), &dst)
	assert.Error(t, err, "unknown fields are rejected")

	require.NoError(t, decodeBody(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":"a=b"}`)), &dst))
	assert.Equal(t, "a=b", dst.Query)
}

type fakeOperatorAuth struct {
	err error
}

func (f fakeOperatorAuth) LoginLocal(_ context.Context, email, _ string) (*services.OperatorLogin, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.OperatorLogin{Token: "op-token", Operator: services.OperatorInfo{Subject: email, Provider: "local"}}, nil
}

func (f fakeOperatorAuth) LoginLDAP(_ context.Context, username, _ string) (*services.OperatorLogin, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.OperatorLogin{Token: "op-token", Operator: services.OperatorInfo{Subject: username, Provider: "ldap"}}, nil
}

func TestOperatorLogin(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
	}{
		{"ok", nil, `{"email":"a@example.org","password":"x"}`, http.StatusOK},
		{"wrong password", services.ErrInvalidCredentials, `{"email":"a@example.org","password":"y"}`, http.StatusUnauthorized},
		{"not configured", services.ErrLoginDisabled, `{"email":"a@example.org","password":"x"}`, http.StatusNotFound},
		{"directory down", services.ErrDirectoryUnavailable, `{"email":"a@example.org","password":"x"}`, http.StatusServiceUnavailable},
		{"bad body", nil, `{"user":"a"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOperatorHandler(fakeOperatorAuth{err: tt.err}, zap.NewNop())
			rec := httptest.NewRecorder()

			h.LoginLocal(rec, httptest.NewRequest(http.MethodPost, "/api/v1/operators/login", strings.NewReader(tt.body)))

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"token":"op-token"`)
			}
		})
	}

	t.Run("ldap", func(t *testing.T) {
		h := NewOperatorHandler(fakeOperatorAuth{}, zap.NewNop())
		rec := httptest.NewRecorder()

		h.LoginLDAP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/operators/ldap",
			strings.NewReader(`{"username":"jdoe","password":"x"}`)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"provider":"ldap"`)
	})
}
