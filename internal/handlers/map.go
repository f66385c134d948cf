package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"diaspora-map/internal/logger"
	"diaspora-map/internal/models"
	"diaspora-map/internal/session"
	"diaspora-map/internal/spatial"

	"go.uber.org/zap"
)

// Renderer builds a view for a shareable link.
type Renderer interface {
	Render(ctx context.Context, rawQuery string) (models.MapView, error)
}

// MapConfig is the public configuration the browser shell needs.
type MapConfig struct {
	MapboxToken      string          `json:"mapbox_token"`
	DefaultViewport  models.Viewport `json:"default_viewport"`
	SearchDebounceMS int64           `json:"search_debounce_ms"`
}

// MapHandler serves stateless map views and the public map configuration
type MapHandler struct {
	renderer Renderer
	config   MapConfig
	logr     *zap.Logger
}

// NewMapHandler creates a new map handler
func NewMapHandler(renderer Renderer, mapboxToken string, searchDebounce time.Duration, logr *zap.Logger) *MapHandler {
	return &MapHandler{
		renderer: renderer,
		config: MapConfig{
			MapboxToken:      mapboxToken,
			DefaultViewport:  spatial.DefaultViewport(),
			SearchDebounceMS: searchDebounce.Milliseconds(),
		},
		logr: logr,
	}
}

// GetMap handles GET /map?category=&location=&search=
func (h *MapHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), idleWait)
	defer cancel()

	view, err := h.renderer.Render(ctx, r.URL.RawQuery)
	switch {
	case errors.Is(err, session.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "Invalid query string")
		return
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "Map data did not arrive in time")
		return
	case err != nil:
		logger.ForRequest(h.logr, r).Error("failed to render map", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to render map")
		return
	}

	h.logr.Debug("map rendered",
		zap.String("query", view.Query),
		zap.String("status", view.Status),
		zap.Int("pins", len(view.Pins)))

	writeData(w, http.StatusOK, view)
}

// GetConfig handles GET /config
func (h *MapHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.config)
}
