package routes

import (
	"net/http"

	"diaspora-map/internal/auth"
	"diaspora-map/internal/config"
	"diaspora-map/internal/handlers"
	"diaspora-map/internal/logger"
	"diaspora-map/internal/metrics"
	mdlwr "diaspora-map/internal/middleware"
	"diaspora-map/internal/services"
	"diaspora-map/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const tokenIssuer = "diaspora-map"

// NewRouter wires the HTTP surface. db may be nil, in which case the
// proposal log endpoint is not mounted. The proposal log requires an operator
// token from /operators/login or /operators/ldap.
func NewRouter(db *bun.DB, cfg *config.Config, logr *logger.Logger, sessions *session.Manager, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// CORS middleware with config
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// init session token manager
	jwtMgr, err := auth.NewJWTManager(cfg.SessionSecret, tokenIssuer)
	if err != nil {
		logr.Fatal("failed to init jwt manager", zap.Error(err))
	}

	// operator login guards the proposal log
	operatorSvc := services.NewOperatorAuthService(cfg, jwtMgr, logr.Component("operators"))

	sessionMW := mdlwr.NewSessionMiddleware(jwtMgr, sessions, logr.Component("auth"))
	operatorMW := mdlwr.NewOperatorMiddleware(jwtMgr, logr.Component("auth"))

	mapHandler := handlers.NewMapHandler(sessions, cfg.MapboxToken, cfg.SearchDebounce, logr.Component("map"))
	sessionHandler := handlers.NewSessionHandler(sessions, jwtMgr, cfg.SessionTTL, logr.Component("session"))
	operatorHandler := handlers.NewOperatorHandler(operatorSvc, logr.Component("operators"))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("ok"))
		if err != nil {
			return
		}
	})
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", mapHandler.GetConfig)
		r.Get("/map", mapHandler.GetMap)

		r.Route("/sessions", func(r chi.Router) {
			// Public routes
			r.Post("/", sessionHandler.Create)

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(sessionMW.RequireSession)
				r.Delete("/", sessionHandler.Close)
				r.Get("/view", sessionHandler.View)
				r.Put("/category", sessionHandler.SetCategory)
				r.Put("/location", sessionHandler.SetLocation)
				r.Delete("/location", sessionHandler.ClearLocation)
				r.Put("/search", sessionHandler.SetSearch)
				r.Post("/navigate", sessionHandler.Navigate)
				r.Post("/reload", sessionHandler.Reload)
				r.Post("/proposal/open", sessionHandler.OpenProposal)
				r.Post("/proposal", sessionHandler.SubmitProposal)
			})
		})

		r.Route("/operators", func(r chi.Router) {
			r.Post("/login", operatorHandler.LoginLocal)
			r.Post("/ldap", operatorHandler.LoginLDAP)
		})

		if db != nil {
			proposalLogHandler := handlers.NewProposalLogHandler(services.NewProposalLogService(db), logr.Component("proposals"))

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(operatorMW.RequireOperator)
				r.Get("/proposals", proposalLogHandler.List)
			})
		}
	})

	return r
}
