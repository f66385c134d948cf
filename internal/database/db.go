package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"diaspora-map/internal/config"
	"diaspora-map/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// Open builds a Bun handle without touching the network.
func Open(dsn string, cfg *config.Config) *bun.DB {
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(30*time.Second),
		pgdriver.WithDialTimeout(10*time.Second),
		pgdriver.WithReadTimeout(30*time.Second),
		pgdriver.WithWriteTimeout(10*time.Second),
	)

	sqldb := sql.OpenDB(connector)
	db := bun.NewDB(sqldb, pgdialect.New())

	// Configure connection pool
	sqldb.SetMaxOpenConns(10)
	sqldb.SetMaxIdleConns(5)
	sqldb.SetConnMaxLifetime(5 * time.Minute)
	sqldb.SetConnMaxIdleTime(10 * time.Minute)

	// Optional query logging
	if cfg != nil && cfg.BunDebug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return db
}

// New connects to Postgres, verifies the connection and creates the proposal
// log table if needed.
func New(dsn string, cfg *config.Config) (*bun.DB, error) {
	db := Open(dsn, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Verify connection first
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the app schema and the proposal log table.
func Migrate(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS app`); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	_, err := db.NewCreateTable().
		Model((*models.ProposalAttempt)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create proposal log table: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*models.ProposalAttempt)(nil)).
		Index("location_proposals_idempotency_key_idx").
		Column("idempotency_key").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create proposal log index: %w", err)
	}

	return nil
}
