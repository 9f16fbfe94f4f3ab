package routes

import (
	"net/http"

	"sos-bknd/internal/config"
	"sos-bknd/internal/handlers"
	"sos-bknd/internal/logger"
	"sos-bknd/internal/metrics"
	mdlwr "sos-bknd/internal/middleware"
	"sos-bknd/internal/models"
	"sos-bknd/internal/push"
	"sos-bknd/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Dependencies are the backends chosen at startup.
type Dependencies struct {
	Directory services.Directory
	Alerts    services.AlertStore
	Notifier  push.Notifier
	Verifier  mdlwr.TokenVerifier
	Metrics   *metrics.Dispatch
}

func NewRouter(cfg *config.Config, logr *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	dispatchSvc := services.NewDispatchService(
		deps.Directory,
		deps.Alerts,
		deps.Notifier,
		services.DispatchConfig{
			MaxCandidates:      cfg.MaxCandidates,
			SearchRadiusMeters: cfg.SearchRadiusMeters,
			AlertLinkBase:      cfg.AlertLinkBase,
			NotifyTimeout:      cfg.NotifyTimeout,
		},
		deps.Metrics,
		logr.Named("dispatch"),
	)
	volunteerSvc := services.NewVolunteerService(deps.Directory, logr.Named("volunteer"))

	var versions mdlwr.TokenVersionChecker = deps.Directory
	if cfg.AuthCacheTTL > 0 {
		versions = mdlwr.NewCachedVersionChecker(deps.Directory, cfg.AuthCacheTTL)
	}
	authMW := mdlwr.NewAuthMiddleware(deps.Verifier, versions, logr.Named("auth"))

	limitTrigger := func(next http.Handler) http.Handler { return next }
	if cfg.TriggerRate != "" {
		rl, err := mdlwr.NewRateLimiter(cfg.TriggerRate, "sos_trigger", nil, deps.Metrics, logr.Named("ratelimit"))
		if err != nil {
			logr.Fatal("failed to init trigger rate limiter", zap.Error(err))
		}
		limitTrigger = rl.Handler
	}

	sosHandler := handlers.NewSOSHandler(dispatchSvc, logr.Named("sos"))
	volunteerHandler := handlers.NewVolunteerHandler(volunteerSvc, logr.Named("volunteer"))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", deps.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMW.JWTAuth)

		r.Route("/sos", func(r chi.Router) {
			r.With(mdlwr.RequireRole(models.RoleCitizen), limitTrigger).Post("/trigger", sosHandler.Trigger)
			r.With(mdlwr.RequireRole(models.RoleCitizen)).Get("/my-alerts", sosHandler.CitizenAlerts)

			r.With(mdlwr.RequireRole(models.RoleVolunteer)).Get("/volunteer-alerts", sosHandler.VolunteerAlerts)
			r.With(mdlwr.RequireRole(models.RoleVolunteer)).Put("/alerts/{alertId}/response", sosHandler.UpdateResponse)

			r.Get("/alerts/{alertId}", sosHandler.GetAlert)
		})

		r.Route("/volunteers/me", func(r chi.Router) {
			r.Use(mdlwr.RequireRole(models.RoleVolunteer))
			r.Put("/location", volunteerHandler.UpdateLocation)
			r.Put("/push-token", volunteerHandler.UpdatePushToken)
		})
	})

	return r
}
