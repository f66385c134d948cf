// Package backend talks to the POI API: the category list, the location
// feature collection and the location proposal endpoint.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"diaspora-map/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	categoriesPath = "/api/categories/"
	locationsPath  = "/api/locations/"
	proposalPath   = "/api/location-proposal/"

	maxErrorBody = 512
)

// StatusError is returned when the API answers a read with a non-200 status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.StatusCode, e.Body)
}

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("backend temporarily unavailable")

// LocationQuery narrows GET /api/locations/.
type LocationQuery struct {
	Search     string
	CategoryPK int
}

// Values encodes the query parameters understood by the API.
func (q LocationQuery) Values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.CategoryPK > 0 {
		v.Set("category", strconv.Itoa(q.CategoryPK))
	}
	return v
}

// BreakerConfig mirrors the gobreaker settings used for reads.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the read breaker
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          20 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logr       *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBreaker replaces the default read breaker configuration.
func WithBreaker(cfg BreakerConfig) Option {
	return func(c *Client) { c.breaker = newBreaker(cfg, c.logr) }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration, logr *zap.Logger, opts ...Option) *Client {
	if logr == nil {
		logr = zap.NewNop()
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logr:       logr,
	}
	c.breaker = newBreaker(DefaultBreakerConfig(), logr)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newBreaker(cfg BreakerConfig, logr *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "poi-backend",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logr.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// 4xx answers mean the API is up
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500
			}
			return err == nil
		},
	})
}

// doRequest - internal helper for building and sending requests
func (c *Client) doRequest(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}

// getJSON performs a GET through the breaker and decodes the answer into out.
func (c *Client) getJSON(ctx context.Context, op, rawURL string, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.doRequest(ctx, http.MethodGet, rawURL, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(b)}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("%s: failed to decode response: %w", op, err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	return err
}

// FetchCategories implements GET /api/categories/.
func (c *Client) FetchCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := c.getJSON(ctx, "fetch categories", c.baseURL+categoriesPath, &categories); err != nil {
		c.logr.Error("failed to fetch categories", zap.Error(err))
		return nil, err
	}
	if categories == nil {
		categories = []models.Category{}
	}
	c.logr.Debug("fetched categories", zap.Int("count", len(categories)))
	return categories, nil
}

// FetchLocations implements GET /api/locations/ with optional search and category filters.
func (c *Client) FetchLocations(ctx context.Context, q LocationQuery) (models.FeatureCollection, error) {
	rawURL := c.baseURL + locationsPath
	if v := q.Values(); len(v) > 0 {
		rawURL += "?" + v.Encode()
	}

	var fc models.FeatureCollection
	if err := c.getJSON(ctx, "fetch locations", rawURL, &fc); err != nil {
		c.logr.Error("failed to fetch locations", zap.Error(err), zap.String("search", q.Search))
		return models.EmptyFeatureCollection(), err
	}
	if fc.Type == "" {
		fc.Type = "FeatureCollection"
	}
	if fc.Features == nil {
		fc.Features = []models.Location{}
	}
	c.logr.Debug("fetched locations", zap.Int("count", len(fc.Features)), zap.String("search", q.Search))
	return fc, nil
}

// CreateProposal implements POST /api/location-proposal/. It returns the
// response status; the caller decides what counts as success. The
// idempotency key travels in the Idempotency-Key header.
func (c *Client) CreateProposal(ctx context.Context, form models.ProposalForm, idempotencyKey string) (int, error) {
	reqBody, err := json.Marshal(form)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal proposal: %w", err)
	}

	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	resp, err := c.doRequest(ctx, http.MethodPost, c.baseURL+proposalPath, bytes.NewReader(reqBody), headers)
	if err != nil {
		c.logr.Error("failed to send location proposal", zap.Error(err))
		return 0, fmt.Errorf("create proposal: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	c.logr.Info("location proposal sent", zap.Int("status", resp.StatusCode))
	return resp.StatusCode, nil
}
