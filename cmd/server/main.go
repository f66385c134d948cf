package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"diaspora-map/internal/backend"
	"diaspora-map/internal/config"
	"diaspora-map/internal/database"
	"diaspora-map/internal/fetcher"
	"diaspora-map/internal/logger"
	"diaspora-map/internal/metrics"
	"diaspora-map/internal/proposal"
	"diaspora-map/internal/routes"
	"diaspora-map/internal/services"
	"diaspora-map/internal/session"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	if err := cfg.Validate(); err != nil {
		logr.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.SessionSecret == config.DefaultSessionSecret {
		logr.Warn("SESSION_SECRET not set, using the development secret")
	}
	if cfg.OperatorPasswordHash == "" && cfg.LDAPServer == "" {
		logr.Info("no operator login configured, proposal log is not readable")
	}

	// The proposal log is optional
	var (
		db       *bun.DB
		recorder proposal.Recorder
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.New(cfg.DatabaseURL, cfg)
		if err != nil {
			logr.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		recorder = services.NewProposalLogService(db)
	} else {
		logr.Info("DATABASE_URL not set, proposal log disabled")
	}

	m := metrics.New()
	client := backend.New(cfg.APIURL, cfg.FetchTimeout, logr.Component("backend"))
	data := fetcher.New(client, fetcher.Config{
		LocationsTTL: cfg.LocationsTTL,
		Timeout:      cfg.FetchTimeout,
		Observer:     m.ObserveFetch,
	}, logr.Component("query"))

	sessions := session.NewManager(session.Deps{
		Data:              data,
		Submitter:         client,
		Recorder:          recorder,
		Logger:            logr.Component("session"),
		SearchDebounce:    cfg.SearchDebounce,
		OnProposalOutcome: m.ProposalOutcome,
	}, cfg.SessionTTL, session.WithLifecycle(m))

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go sessions.Run(janitorCtx, time.Minute)

	r := routes.NewRouter(db, cfg, logr, sessions, m)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server started",
			zap.String("port", cfg.Port),
			zap.String("api_url", cfg.APIURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logr.Fatal("server forced to shutdown", zap.Error(err))
	}

	stopJanitor()
	sessions.Close()
	logr.Info("server exited gracefully")
}
