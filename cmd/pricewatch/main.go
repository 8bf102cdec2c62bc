package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pricewatch/internal/api"
	"pricewatch/internal/cache"
	"pricewatch/internal/config"
	"pricewatch/internal/fetch"
	"pricewatch/internal/history"
	"pricewatch/internal/monitoring"
	"pricewatch/internal/render"
	"pricewatch/internal/scheduler"
	"pricewatch/internal/scraper"
	"pricewatch/internal/storage"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	// Initialize Storage Layer
	store, err := storage.NewStore(context.Background(), cfg.PostgresURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		logger.Fatal("failed to ensure schema", zap.Error(err))
	}
	resultCache := cache.NewRedisCache(cfg.RedisAddr, logger)

	// Initialize Monitoring, Fetching, Rendering
	metrics := monitoring.NewMetrics()
	fetchClient := fetch.NewClient(time.Duration(cfg.FetchTimeout)*time.Second, metrics, logger)
	browser := render.NewBrowser(time.Duration(cfg.RenderTimeout)*time.Second, logger)
	defer browser.Close()

	// Register Source Adapters
	registry := scraper.NewRegistry(logger,
		scraper.NewIconic(fetchClient, logger),
		scraper.NewAmazon(fetchClient, logger),
		scraper.NewBirdsNest(browser, logger),
	)

	// Each source gets its own persistence unit of work, released right after.
	uow := func(ctx context.Context) (scraper.ProductGateway, func(), error) {
		u, err := store.Begin(ctx)
		if err != nil {
			return nil, nil, err
		}
		return u.Products(), u.Release, nil
	}

	monitor := scraper.NewMonitor(scraper.NewLogAlerter(logger), metrics, logger)
	orchestrator := scraper.NewService(registry, monitor, uow, scraper.Options{
		MaxItems:        cfg.MaxItemsPerSource,
		HealthyMaxItems: cfg.HealthyMaxItems,
		SourceDelay:     time.Duration(cfg.SourceDelaySeconds) * time.Second,
	}, metrics, logger)

	historyEngine := history.NewEngine(store, metrics, logger)
	search := cache.NewSearchService(resultCache, store, metrics, logger)

	// Initialize API Server
	server := api.NewServer(cfg, orchestrator, search, historyEngine, store, resultCache, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SchedulerEnabled {
		go scheduler.Run(ctx, orchestrator, time.Duration(cfg.ScrapeIntervalMins)*time.Minute, logger)
	}

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	store.Close()

	logger.Info("server exiting")
}
