package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sos-bknd/internal/auth"
	"sos-bknd/internal/config"
	"sos-bknd/internal/database"
	"sos-bknd/internal/jobs"
	"sos-bknd/internal/logger"
	"sos-bknd/internal/metrics"
	"sos-bknd/internal/models"
	"sos-bknd/internal/push"
	"sos-bknd/internal/routes"
	"sos-bknd/internal/services"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	if err := cfg.Validate(); err != nil {
		logr.Fatal("invalid configuration", zap.Error(err))
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTIssuer)
	if err != nil {
		logr.Fatal("failed to init jwt manager", zap.Error(err))
	}

	deps := routes.Dependencies{
		Verifier: jwtMgr,
		Metrics:  metrics.NewDispatch(),
	}

	switch cfg.StoreBackend {
	case config.StoreMemory:
		logr.Warn("using in-memory store, data is lost on restart")
		users, err := loadSeedUsers(cfg.SeedUsersPath)
		if err != nil {
			logr.Fatal("failed to load seed users", zap.Error(err))
		}
		logr.Info("seeded memory directory", zap.Int("users", len(users)))
		deps.Directory = services.NewMemoryDirectory(users...)
		deps.Alerts = services.NewMemoryAlertStore()
	default:
		db, err := database.New(cfg)
		if err != nil {
			logr.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if cfg.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := database.EnsureSchema(ctx, db)
			cancel()
			if err != nil {
				logr.Fatal("failed to apply schema", zap.Error(err))
			}
		}
		deps.Directory = services.NewUserService(db)
		deps.Alerts = services.NewAlertRepository(db, cfg.UpdateRetries)
	}

	deps.Notifier = push.DisabledNotifier{}
	if cfg.FirebaseCredentialsPath != "" {
		fcm, err := push.NewFirebaseNotifier(context.Background(), cfg.FirebaseCredentialsPath, logr.Named("push"))
		if err != nil {
			logr.Error("failed to init firebase, push notifications disabled", zap.Error(err))
		} else {
			deps.Notifier = fcm
		}
	} else {
		logr.Warn("FIREBASE_CREDENTIALS_PATH not set, every push will be recorded as failed")
	}

	r := routes.NewRouter(cfg, logr, deps)

	scheduler := jobs.NewScheduler(logr.Named("jobs"), 30*time.Second)
	awaiting := jobs.NewAwaitingReporter(deps.Alerts, deps.Metrics, cfg.StaleAfter, logr.Named("jobs"))
	if err := scheduler.Add(cfg.StaleScanSchedule, awaiting); err != nil {
		logr.Fatal("invalid SOS_STALE_SCAN_SCHEDULE", zap.Error(err))
	}
	scheduler.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.NotifyTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server started",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.StoreBackend))
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
	scheduler.Stop()

	logr.Info("server exited gracefully")
}

func loadSeedUsers(path string) ([]models.User, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return services.LoadSeedUsers(f)
}
