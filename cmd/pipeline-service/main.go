package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rivalwatch/internal/pipeline/config"
	"rivalwatch/internal/pipeline/delivery/consumer"
	"rivalwatch/internal/pipeline/repository"
	"rivalwatch/internal/pipeline/rules"
	"rivalwatch/internal/pipeline/service"
	"rivalwatch/pkg/common"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/postgres"
	"rivalwatch/pkg/redis"
	"rivalwatch/pkg/resilience"
	"rivalwatch/pkg/telegram"

	"google.golang.org/genai"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the pipeline service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	appLogger.Info("Starting Pipeline Service", zap.String("name", cfg.App.Name))

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
		appLogger.Fatal("Failed to initialize database", zap.Error(err))
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
		appLogger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Create the consumer groups if they don't exist
	// MKSTREAM creates the stream if it doesn't exist
	if err := redisClient.XGroupCreateMkStream(context.Background(), common.RedisStreamWatchIngest, common.RedisStreamGroup, "0").Err(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
		}
	}
	if err := redisClient.XGroupCreateMkStream(context.Background(), common.RedisStreamCardResearch, common.RedisStreamGroup, "0").Err(); err != nil {
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			appLogger.Fatal("Failed to create consumer group", logger.ErrorField(err))
		}
	}

	// Load the verification and action rule table and keep it hot-reloaded
	rulesStore, err := rules.NewStore(cfg.Pipeline.RulesPath, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to load rule table", zap.Error(err))
	}
	if err := rulesStore.Watch(ctx); err != nil {
		appLogger.Error("Failed to watch rule table, hot reload disabled", zap.Error(err))
	}

	// Initialize the resilience client guarding every upstream call
	resClient := resilience.NewClient(cfg.Resilience, appLogger)
	defer resClient.Close()

	// Initialize repositories
	signalRepo := repository.NewSignalRepository(db.DB)
	watchItemRepo := repository.NewWatchItemRepository(db.DB)
	resultRepo := repository.NewExtractionResultRepository(db.DB)
	cardRepo := repository.NewImpactCardRepository(db.DB)
	runRepo := repository.NewPipelineRunRepository(db.DB)
	reviewRepo := repository.NewReviewItemRepository(db.DB)
	reportRepo := repository.NewResearchReportRepository(db.DB)
	progressPublisher := repository.NewProgressPublisher(redisClient)
	contextSearchRepo := repository.NewContextSearchRepository(cfg, appLogger)

	// Initialize signal search provider
	var searchRepo repository.SignalSearchRepository
	switch cfg.SignalSearch.Provider {
	case "rss":
		searchRepo = repository.NewRSSSignalSearchRepository(cfg, appLogger, repository.NewArticleFetcher(appLogger))
	case "newsapi":
		searchRepo = repository.NewNewsAPISignalSearchRepository(cfg, appLogger)
	default:
		appLogger.Fatal("Invalid signal search provider specified in config", zap.String("provider", cfg.SignalSearch.Provider))
	}

	// Initialize AI provider
	var aiRepo repository.AIRepository
	switch cfg.AI.Provider {
	case "gemini":
		genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: cfg.Gemini.APIKey,
		})
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini AI client", zap.Error(err))
		}
		repo, err := repository.NewGeminiAIRepository(cfg, appLogger, genAiClient)
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini AI repository", zap.Error(err))
		}
		aiRepo = repo
	case "openai":
		aiRepo = repository.NewOpenAIRepository(cfg, appLogger)
	default:
		appLogger.Fatal("Invalid AI provider specified in config", zap.String("provider", cfg.AI.Provider))
	}

	var telegramNotifier telegram.Notifier
	if cfg.Telegram.Enabled {
		client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", zap.Error(err))
		}
		telegramNotifier = client
	}

	// Initialize pipeline stages
	credibility := service.NewCredibilityRegistry(rulesStore)
	ingestor := service.NewIngestor(cfg, appLogger, searchRepo, resClient, signalRepo, credibility)
	enricher := service.NewEnricher(cfg, appLogger, contextSearchRepo, resClient, watchItemRepo)
	extractor := service.NewExtractor(appLogger, aiRepo, resClient, resultRepo, reviewRepo, credibility)
	verifier := service.NewVerifier(rulesStore, appLogger)
	assembler := service.NewAssembler(appLogger, rulesStore, cardRepo, telegramNotifier)

	pipelineSvc := service.NewPipelineService(
		cfg,
		appLogger,
		runRepo,
		watchItemRepo,
		resultRepo,
		reviewRepo,
		progressPublisher,
		ingestor,
		enricher,
		extractor,
		verifier,
		assembler,
		telegramNotifier,
	)
	researcher := service.NewResearcher(cfg, appLogger, aiRepo, resClient, reportRepo, cardRepo, watchItemRepo)

	// Initialize and start the Redis consumer
	redisConsumer := consumer.NewRedisConsumer(cfg, redisClient.Client, pipelineSvc, researcher, telegramNotifier, appLogger)
	redisConsumer.Start(ctx)

	appLogger.Info("Pipeline service started. Waiting for tasks...")

	// Wait for interrupt signal to gracefully shut down the service
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down pipeline service...")
	cancel()
	redisConsumer.Stop()
	appLogger.Info("Pipeline service stopped.")
}

func main() {
	rootCmd := &cobra.Command{Use: "pipeline-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config-pipeline.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing pipeline-service CLI: %s\n", err)
		os.Exit(1)
	}
}
