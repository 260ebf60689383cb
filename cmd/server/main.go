package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/parcela/internal/cache"
	"github.com/stwalsh4118/parcela/internal/config"
	"github.com/stwalsh4118/parcela/internal/database"
	"github.com/stwalsh4118/parcela/internal/events"
	"github.com/stwalsh4118/parcela/internal/handlers"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/mapview"
	"github.com/stwalsh4118/parcela/internal/metrics"
	"github.com/stwalsh4118/parcela/internal/middleware"
	"github.com/stwalsh4118/parcela/internal/repository"
	"github.com/stwalsh4118/parcela/internal/reservation"
	"github.com/stwalsh4118/parcela/internal/scheduler"
	"github.com/stwalsh4118/parcela/internal/services"
	"github.com/stwalsh4118/parcela/internal/storage"
)

const (
	shutdownTimeout   = 30 * time.Second
	wizardSweepPeriod = time.Minute
	readHeaderTimeout = 10 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	log.Info("Starting Parcela API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})
	metrics.RegisterPool(func() metrics.PoolStats { return db.Stats() })

	// Redis, NATS and S3 are optional; each degrades to an in-process
	// fallback when unconfigured.
	featureCache := cache.New(ctx, cfg.Redis, log)
	defer featureCache.Close()

	bus := events.New(cfg.NATS, log)
	defer bus.Close()

	blobs, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatal("Failed to configure document storage", err, map[string]interface{}{
			"bucket": cfg.Storage.Bucket,
			"region": cfg.Storage.Region,
		})
	}

	// Initialize repository and service layers
	store := repository.NewPostgresStore(db)
	mapCfg := mapview.DefaultConfig()

	maps := services.NewMapService(store.Zones, store.Lots, featureCache, mapCfg, log)
	unwatch, err := maps.Watch(bus)
	if err != nil {
		log.Fatal("Failed to subscribe to lot changes", err, nil)
	}
	defer unwatch()

	catalog := services.NewCatalogService(store.Zones, store.Lots, log)
	wizards := reservation.NewWizardStore(time.Duration(cfg.Reservation.WizardIdleMinute)*time.Minute, nil)
	go sweepWizards(ctx, wizards, log)

	reservations := services.NewReservationService(store, wizards, reservation.PolicyFromConfig(cfg.Reservation), bus, maps, log)
	documents := services.NewDocumentService(store.Documents, blobs, log)

	if cfg.Scheduler.ExpiryReconcileEnabled {
		expiry := scheduler.NewExpiryScheduler(reservations, cfg.Scheduler.ExpiryReconcileSchedule, log)
		if err := expiry.Start(); err != nil {
			log.Fatal("Failed to start expiry reconciliation", err, map[string]interface{}{
				"schedule": cfg.Scheduler.ExpiryReconcileSchedule,
			})
		}
		defer expiry.Stop()
	}

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS -> Metrics
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))
	router.Use(middleware.Metrics())

	checks := []handlers.Check{{Name: "database", Pinger: db}}
	if pinger, ok := featureCache.(handlers.Pinger); ok {
		checks = append(checks, handlers.Check{Name: "cache", Pinger: pinger, Optional: true})
	}

	handlers.Register(router, handlers.Routes{
		Health:       handlers.NewHealthHandler(cfg.Server.Env, checks...),
		Lots:         handlers.NewLotHandler(catalog),
		Maps:         handlers.NewMapHandler(maps),
		MapSocket:    handlers.NewMapSocketHandler(maps, catalog, mapCfg, cfg.CORS.Origins, log),
		Reservations: handlers.NewReservationHandler(reservations),
		Account: handlers.NewAccountHandler(
			services.NewDashboardService(store, nil),
			services.NewSavedLotService(store.SavedLots),
			documents,
		),
		Admin:    handlers.NewAdminHandler(services.NewAdminService(store, reservations, bus, maps, log), documents),
		Support:  handlers.NewSupportHandler(services.NewTicketService(store.Tickets, store.Profiles, log)),
		Profiles: handlers.NewProfileHandler(services.NewProfileService(store.Profiles, log)),
		Auth:     middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Limiter:  middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}

// sweepWizards drops idle reservation wizards until ctx is done.
func sweepWizards(ctx context.Context, wizards *reservation.WizardStore, log *logger.Logger) {
	ticker := time.NewTicker(wizardSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := wizards.Sweep(); n > 0 {
				log.Debug("Dropped idle reservation wizards", map[string]interface{}{
					"dropped": n,
					"open":    wizards.Len(),
				})
			}
		}
	}
}
