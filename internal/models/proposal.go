package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ProposalForm is the body of POST /api/location-proposal/.
type ProposalForm struct {
	Name        string `json:"name" validate:"notblank,max=64"`
	Address     string `json:"address" validate:"notblank,max=128"`
	Description string `json:"description" validate:"max=500"`
	Website     string `json:"website" validate:"omitempty,httpurl,max=128"`
	Email       string `json:"email" validate:"omitempty,email,max=128"`
	Phone       string `json:"phone" validate:"max=16"`
}

// ProposalAttempt is one transmitted proposal as kept in the audit log.
type ProposalAttempt struct {
	bun.BaseModel `bun:"table:app.location_proposals,alias:lp"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	IdempotencyKey string    `bun:"idempotency_key,notnull" json:"idempotency_key"`
	SessionID      string    `bun:"session_id" json:"session_id"`
	Name           string    `bun:"name,notnull" json:"name"`
	Address        string    `bun:"address,notnull" json:"address"`
	Description    string    `bun:"description" json:"description"`
	Website        string    `bun:"website" json:"website"`
	Email          string    `bun:"email" json:"email"`
	Phone          string    `bun:"phone" json:"phone"`
	StatusCode     int       `bun:"status_code" json:"status_code"`
	Outcome        string    `bun:"outcome,notnull" json:"outcome"`
	Error          *string   `bun:"error" json:"error,omitempty"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
