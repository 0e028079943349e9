package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "rivalwatch/docs"
	"rivalwatch/internal/gateway/config"
	delivery "rivalwatch/internal/gateway/delivery/http"
	"rivalwatch/internal/gateway/repository"
	"rivalwatch/internal/gateway/service"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/postgres"
	"rivalwatch/pkg/redis"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	swagger "github.com/swaggo/echo-swagger"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the gateway service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Gateway Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	watchItemRepo := repository.NewWatchItemRepository(db.DB)
	cardRepo := repository.NewImpactCardRepository(db.DB)
	runRepo := repository.NewPipelineRunRepository(db.DB)
	reportRepo := repository.NewResearchReportRepository(db.DB)
	reviewRepo := repository.NewReviewItemRepository(db.DB)
	queueRepo := repository.NewTaskQueueRepository(redisClient.Client, cfg.Redis.StreamMaxLen)

	// Initialize services
	pollingInterval := cfg.Scheduler.PollingInterval
	if pollingInterval <= 0 {
		pollingInterval = 30 * time.Second
	}
	debounceWindow := cfg.Scheduler.DebounceWindow
	if debounceWindow <= 0 {
		// The debounce window tracks the scheduler cadence unless set
		// explicitly.
		debounceWindow = pollingInterval
	}

	watchItemSvc := service.NewWatchItemService(watchItemRepo, appLogger)
	runSvc := service.NewRunService(watchItemRepo, runRepo, queueRepo, appLogger, debounceWindow)
	cardSvc := service.NewImpactCardService(cardRepo, appLogger)
	researchSvc := service.NewResearchService(cardRepo, reportRepo, queueRepo, appLogger)
	reviewSvc := service.NewReviewService(reviewRepo, appLogger)
	schedulerSvc := service.NewSchedulerService(watchItemRepo, runSvc, appLogger, pollingInterval)

	// Start scheduler service
	go schedulerSvc.Start(ctx)

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	apiV1 := e.Group("/api/v1")

	watchItemHandler := delivery.NewWatchItemHandler(watchItemSvc, appLogger)
	watchItemsGroup := apiV1.Group("/watch-items")
	watchItemHandler.RegisterRoutes(watchItemsGroup)

	runHandler := delivery.NewRunHandler(runSvc, appLogger)
	runsGroup := apiV1.Group("/runs")
	runHandler.RegisterRoutes(runsGroup)
	runHandler.RegisterWatchItemRoutes(watchItemsGroup)

	cardHandler := delivery.NewImpactCardHandler(cardSvc, appLogger)
	cardsGroup := apiV1.Group("/cards")
	cardHandler.RegisterRoutes(cardsGroup)

	researchHandler := delivery.NewResearchHandler(researchSvc, appLogger)
	researchGroup := apiV1.Group("/research")
	researchHandler.RegisterRoutes(researchGroup)
	researchHandler.RegisterCardRoutes(cardsGroup)

	reviewHandler := delivery.NewReviewHandler(reviewSvc, appLogger)
	reviewsGroup := apiV1.Group("/reviews")
	reviewHandler.RegisterRoutes(reviewsGroup)

	e.GET("/swagger/*", swagger.WrapHandler)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

// @title RivalWatch Gateway API
// @version 1.0
// @description Competitive-intelligence gateway: watch items, impact cards, pipeline runs, deep research and the manual review queue.
// @BasePath /api/v1
func main() {
	rootCmd := &cobra.Command{Use: "gateway-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-gateway.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing gateway-service CLI: %s\n", err)
		os.Exit(1)
	}
}
