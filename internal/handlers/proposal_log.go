package handlers

import (
	"context"
	"net/http"
	"strconv"

	"diaspora-map/internal/logger"
	"diaspora-map/internal/middleware"
	"diaspora-map/internal/models"

	"go.uber.org/zap"
)

// ProposalLog is the audit trail of sent proposals.
type ProposalLog interface {
	ListAttempts(ctx context.Context, limit, offset int) ([]models.ProposalAttempt, error)
	CountByKey(ctx context.Context, key string) (int, error)
}

// ProposalLogHandler handles HTTP requests for the proposal audit log
type ProposalLogHandler struct {
	log  ProposalLog
	logr *zap.Logger
}

// NewProposalLogHandler creates a new proposal log handler
func NewProposalLogHandler(log ProposalLog, logr *zap.Logger) *ProposalLogHandler {
	return &ProposalLogHandler{
		log:  log,
		logr: logr,
	}
}

// List handles GET /proposals. With ?idempotency_key= it reports how often
// that proposal was sent instead of listing.
func (h *ProposalLogHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if key := q.Get("idempotency_key"); key != "" {
		sends, err := h.log.CountByKey(r.Context(), key)
		if err != nil {
			logger.ForRequest(h.logr, r).Error("failed to count proposal attempts", zap.Error(err), zap.String("idempotency_key", key))
			writeError(w, http.StatusInternalServerError, "Failed to fetch proposals")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":         true,
			"idempotency_key": key,
			"count":           sends,
		})
		return
	}

	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50 // default
	}

	offset, err := strconv.Atoi(q.Get("offset"))
	if err != nil || offset < 0 {
		offset = 0 // default
	}

	attempts, err := h.log.ListAttempts(r.Context(), limit, offset)
	if err != nil {
		logger.ForRequest(h.logr, r).Error("failed to list proposal attempts", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch proposals")
		return
	}

	h.logr.Info("proposal attempts fetched",
		zap.String("operator", middleware.OperatorFromContext(r.Context())),
		zap.Int("count", len(attempts)),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    attempts,
		"count":   len(attempts),
		"limit":   limit,
		"offset":  offset,
	})
}
