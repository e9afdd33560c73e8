package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/JaimeRamones/prodflow/internal/cache"
	"github.com/JaimeRamones/prodflow/internal/config"
	"github.com/JaimeRamones/prodflow/internal/database"
	"github.com/JaimeRamones/prodflow/internal/handler"
	"github.com/JaimeRamones/prodflow/internal/middleware"
	"github.com/JaimeRamones/prodflow/internal/repository"
	"github.com/JaimeRamones/prodflow/internal/service"
	"github.com/JaimeRamones/prodflow/internal/sse"
	"github.com/JaimeRamones/prodflow/internal/utils"
	"github.com/JaimeRamones/prodflow/internal/worker"
	"github.com/JaimeRamones/prodflow/pkg/meli"
	"github.com/JaimeRamones/prodflow/pkg/retry"
)

// listingConcurrency bounds in-flight listing updates per page; the
// marketplace limiter still spaces the calls.
const listingConcurrency = 4

// main is the entrypoint of the ProdFlow sync service.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting prodflow sync")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Connect database
	db, err := database.Connect(ctx, &cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	pageQueue := cache.NewPageQueue(redisClient, cfg.Sync.SoftDeadline+time.Minute)

	// 4. Marketplace client
	meliClient := meli.NewClient(meli.Config{
		BaseURL:      cfg.Meli.BaseURL,
		ClientID:     cfg.Meli.ClientID,
		ClientSecret: cfg.Meli.ClientSecret,
		Timeout:      cfg.Meli.Timeout,
	})

	// 5. Repositories
	inventoryRepo := repository.NewInventoryRepository(db)
	listingRepo := repository.NewListingRepository(db, cfg.Sync.OptimisticLock)
	credentialRepo := repository.NewCredentialRepository(db, utils.NewTokenSealer(cfg.TokenSealKey))
	pricingRepo := repository.NewPricingRepository(db)
	syncRunRepo := repository.NewSyncRunRepository(db)

	// 6. Services
	hub := sse.NewHub()
	policy := retry.Default()
	policy.MaxAttempts = cfg.Sync.MaxAttempts
	policy.BaseDelay = cfg.Sync.BaseDelay

	tokens := service.NewTokenSource(credentialRepo, service.MeliRefresher{API: meliClient}, policy)
	market := service.NewMarketplaceService(meliClient, tokens, policy, cfg.Sync.UpdateDelay)
	orchestrator := service.NewSyncOrchestrator(service.OrchestratorDeps{
		Aggregator:  service.NewStockAggregator(inventoryRepo),
		Engine:      service.NewRuleEngine(cfg.Sync.MinPrice, cfg.Sync.MaxQuantity),
		Driver:      service.NewListingSyncDriver(listingRepo, market, listingConcurrency),
		Pricing:     pricingRepo,
		Listings:    listingRepo,
		Credentials: credentialRepo,
		Tokens:      tokens,
		Runs:        syncRunRepo,
		Pages:       pageQueue,
		Notifier:    sse.NewHubNotifier(hub),
	}, service.OrchestratorConfig{
		BatchSize:         cfg.Sync.BatchSize,
		SoftDeadline:      cfg.Sync.SoftDeadline,
		TenantConcurrency: cfg.Sync.TenantConcurrency,
	})

	// 7. Handlers
	handlers := &Handlers{
		Health: handler.NewHealthHandler(db, handler.PingFunc(redisClient.Ping), pageQueue),
		Sync:   handler.NewSyncHandler(orchestrator, syncRunRepo),
		SSE:    handler.NewSSEHandler(hub, cfg.JWTSecret),
	}

	// 8. Router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, middleware.NewJWTMiddleware(cfg.JWTSecret))

	// 9. Workers
	go worker.NewSyncWorker(orchestrator, cfg.Worker.SyncInterval).Start(ctx)
	go worker.NewPageWorker(orchestrator, pageQueue, cfg.Worker.PageWorkers, cfg.Sync.PageMaxAttempts, cfg.Worker.QueuePollTimeout).Start(ctx)

	// 10. HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health *handler.HealthHandler
	Sync   *handler.SyncHandler
	SSE    *handler.SSEHandler
}

func setupRoutes(r *gin.Engine, handlers *Handlers, jwtMw *middleware.JWTMiddleware) {
	v1 := r.Group("/v1")
	v1.GET("/health", handlers.Health.GetHealth)

	// EventSource cannot send headers; the stream validates ?token= itself.
	v1.GET("/sync/events", handlers.SSE.Stream)

	sync := v1.Group("/sync", jwtMw.Handle())
	{
		sync.POST("/run", handlers.Sync.RunAll)
		sync.POST("/tenant", handlers.Sync.RunTenant)
		sync.GET("/tenants/:tenantId/runs", handlers.Sync.ListRuns)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
