package services

import (
	"context"
	"time"

	"diaspora-map/internal/models"

	"github.com/uptrace/bun"
)

// ProposalLogService keeps the audit trail of transmitted location proposals.
type ProposalLogService struct {
	db *bun.DB
}

// NewProposalLogService creates a new proposal log service
func NewProposalLogService(db *bun.DB) *ProposalLogService {
	return &ProposalLogService{db: db}
}

// Record inserts one attempt.
func (s *ProposalLogService) Record(ctx context.Context, attempt *models.ProposalAttempt) error {
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}
	_, err := s.insertQuery(attempt).Exec(ctx)
	return err
}

func (s *ProposalLogService) insertQuery(attempt *models.ProposalAttempt) *bun.InsertQuery {
	return s.db.NewInsert().Model(attempt).Returning("id")
}

// ListAttempts returns recent attempts, newest first.
func (s *ProposalLogService) ListAttempts(ctx context.Context, limit, offset int) ([]models.ProposalAttempt, error) {
	var attempts []models.ProposalAttempt
	err := s.listQuery(&attempts, limit, offset).Scan(ctx)
	return attempts, err
}

func (s *ProposalLogService) listQuery(dst *[]models.ProposalAttempt, limit, offset int) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(dst).
		OrderExpr("created_at DESC").
		Limit(limit).
		Offset(offset)
}

// CountByKey returns how many times a proposal with this idempotency key was sent.
func (s *ProposalLogService) CountByKey(ctx context.Context, key string) (int, error) {
	return s.db.NewSelect().
		Model((*models.ProposalAttempt)(nil)).
		Where("idempotency_key = ?", key).
		Count(ctx)
}
