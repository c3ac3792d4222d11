package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resaletix/resaletix-backend/config"
	"github.com/resaletix/resaletix-backend/db"
	"github.com/resaletix/resaletix-backend/handlers"
	"github.com/resaletix/resaletix-backend/internal/dedup"
	"github.com/resaletix/resaletix-backend/internal/events"
	"github.com/resaletix/resaletix-backend/internal/filestore"
	"github.com/resaletix/resaletix-backend/internal/store/sqlcadapter"
	"github.com/resaletix/resaletix-backend/internal/ticket"
	"github.com/resaletix/resaletix-backend/logger"
	"github.com/resaletix/resaletix-backend/middleware"
	listingSvc "github.com/resaletix/resaletix-backend/models/listing/service"
	"github.com/resaletix/resaletix-backend/router"
	"github.com/resaletix/resaletix-backend/services"
)

const shutdownTimeout = 15 * time.Second

// multipartOverhead is the slack MAX_UPLOAD_BYTES leaves for form framing
// on top of the ticket file itself.
const multipartOverhead int64 = 1 << 20

func main() {
	logger.InitLogger()
	log := logger.GetLogger()
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.RunMigrations(cfg.Database.URL()); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	poolConfig, err := config.PoolConfig(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to build database config: %v", err)
	}
	dbClient, err := db.Connect(ctx, poolConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbClient.Close()

	redisClient := redis.NewClient(config.RedisOptions(&cfg.Redis))
	defer func() { _ = redisClient.Close() }()
	if err := config.PingRedis(ctx, redisClient); err != nil {
		// Redis only backs events and rate limiting, both of which degrade.
		log.Warnw("Redis unavailable at startup, continuing degraded", "error", err)
	}

	files, err := filestore.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}

	dedupClient := dedup.NewClient(cfg.DedupService.BaseURL, cfg.DedupService.APIKey,
		dedup.WithTimeouts(
			time.Duration(cfg.DedupService.ExtractTimeoutSeconds)*time.Second,
			time.Duration(cfg.DedupService.CheckTimeoutSeconds)*time.Second,
		))

	rules := ticket.DefaultRules()
	if path := cfg.DuplicateDetection.RulesFile; path != "" {
		if rules, err = ticket.LoadRulesFile(path); err != nil {
			log.Fatalf("Failed to load extraction rules from %s: %v", path, err)
		}
		log.Infow("Loaded extraction rules", "path", path)
	}

	publisher := events.NewRedisPublisher(redisClient, events.Config{
		Channel:        cfg.EventService.Channel,
		PublishTimeout: time.Duration(cfg.EventService.PublishTimeoutSeconds) * time.Second,
	})

	deps := listingSvc.Deps{
		Store:     sqlcadapter.NewListingStore(dbClient.GetPool()),
		Files:     files,
		Dedup:     dedupClient,
		Extractor: ticket.NewExtractor(rules),
		Events:    publisher,
	}
	if cfg.Email.Enabled {
		deps.Notifier = services.NewEmailService(&cfg.Email)
	}

	listingService := listingSvc.NewListingService(deps, listingServiceConfig(cfg))

	verifier, err := middleware.NewJWTVerifier(cfg.ExternalServices.SupabaseJWTSecret)
	if err != nil {
		log.Fatalf("Failed to initialize JWT verifier: %v", err)
	}

	healthService := services.NewHealthService(dbClient, redisClient, dedupClient, cfg.Server.Version)

	r := router.SetupRouter(router.Dependencies{
		Config:         cfg,
		JWTVerifier:    verifier,
		ListingHandler: handlers.NewListingHandler(listingService, cfg.Server.MaxUploadBytes),
		HealthHandler:  handlers.NewHealthHandler(healthService),
		RateLimiter:    services.NewRateLimitService(redisClient),
		Logger:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infow("Starting server", "port", cfg.Server.Port, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server shutdown did not complete cleanly", "error", err)
	}
	log.Info("Server stopped")
}

func listingServiceConfig(cfg *config.Config) listingSvc.Config {
	c := listingSvc.DefaultConfig()
	c.SimilarityThreshold = cfg.DuplicateDetection.SimilarityThreshold
	c.MatchCount = cfg.DuplicateDetection.MatchCount
	c.PDFEmbeddingCheck = cfg.DuplicateDetection.PDFEmbeddingCheck
	c.ExactFingerprintCheck = cfg.DuplicateDetection.ExactFingerprintCheck
	c.MaxUploadBytes = cfg.Server.MaxUploadBytes - multipartOverhead
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = cfg.Server.MaxUploadBytes
	}
	return c
}
