package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/product-extractor/internal/api"
	"github.com/maltedev/product-extractor/internal/browser"
	"github.com/maltedev/product-extractor/internal/config"
	"github.com/maltedev/product-extractor/internal/database"
	"github.com/maltedev/product-extractor/internal/database/sqlite"
	"github.com/maltedev/product-extractor/internal/events"
	"github.com/maltedev/product-extractor/internal/extractor/sites"
	"github.com/maltedev/product-extractor/internal/logging"
	"github.com/maltedev/product-extractor/internal/metrics"
	"github.com/maltedev/product-extractor/internal/ratelimit"
	"github.com/maltedev/product-extractor/internal/render"
	"github.com/maltedev/product-extractor/internal/scraper"
	"github.com/maltedev/product-extractor/internal/worker"
)

type itemStore interface {
	worker.Store
	api.ItemStore
}

type outboxStore interface {
	database.OutboxRepo
	events.OutboxWriter
	api.BacklogReader
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		slog.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("extractor stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("extractor stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, outbox, closeStore, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()

	registry, err := sites.NewRegistry()
	if err != nil {
		return fmt.Errorf("failed to build extractor registry: %w", err)
	}
	strategy := render.NewStrategy(registry.DynamicDomains(), cfg.Render.DynamicDomains)

	fetcher := render.NewStaticFetcher(render.StaticOptions{
		UserAgent:      cfg.Fetch.UserAgent,
		AcceptLanguage: cfg.Fetch.AcceptLanguage,
		Timeout:        cfg.Fetch.Timeout,
	}, logger)

	router := scraper.NewRouter(registry, strategy, fetcher,
		scraper.WithObserver(m),
		scraper.WithLogger(logger),
	)

	// A nil interface, not a nil *browser.Browser, tells the router no
	// browser is available.
	var pages scraper.Browser
	if cfg.Browser.Enabled {
		b, err := browser.New(browser.OptionsFromConfig(cfg.Browser), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize browser: %w", err)
		}
		defer func() {
			if err := b.Close(); err != nil {
				logger.Error("failed to close browser", "error", err)
			}
		}()
		pages = b
	} else {
		logger.Warn("browser disabled; dynamic domains will fail", "domains", strategy.Domains())
	}

	publisher := events.NewPublisher(outbox, cfg.Redis.Stream, logger)
	w := worker.New(items, router, pages,
		worker.WithPublisher(publisher),
		worker.WithMetrics(m),
		worker.WithLogger(logger),
		worker.WithDelays(cfg.Worker.DelayMin, cfg.Worker.DelayMax, cfg.Worker.IdleDelay),
	)

	var wg sync.WaitGroup

	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}

		relay := database.NewRelay(outbox, redisClient, logger, database.RelayConfig{
			PollInterval: cfg.Redis.PollInterval,
			BatchSize:    cfg.Redis.BatchSize,
			Observer:     m,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("relay stopped with error", "error", err)
			}
		}()
	} else {
		logger.Warn("redis disabled; events stay in the outbox")
	}

	if cfg.Worker.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				logger.Error("worker stopped with error", "error", err)
			}
		}()
	}

	handlers := api.NewHandlers(router, items, w, api.Config{
		CacheSize: cfg.Preview.CacheSize,
		CacheTTL:  cfg.Preview.CacheTTL,
		Limiter:   ratelimit.NewSimpleRateLimiter(cfg.Preview.MinDelay, cfg.Preview.MinDelay),
		Backlog:   outbox,
	}, logger)

	server := &http.Server{
		Addr: net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler: api.NewRouter(handlers, api.RouterOptions{
			AllowedOrigins: cfg.Server.CORSOrigins,
			Metrics:        m.Handler(),
			RequestTimeout: cfg.Server.WriteTimeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case err := <-serverErr:
		stop()
		wg.Wait()
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	wg.Wait()
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (itemStore, outboxStore, func(), error) {
	if cfg.Database.Driver == config.DriverSQLite {
		store, err := sqlite.NewStore(ctx, logger, cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.Info("using sqlite store", "path", cfg.Database.SQLitePath)
		return store, store, func() { _ = store.Close() }, nil
	}

	var (
		db  *database.DB
		err error
	)
	if cfg.Database.URL != "" {
		db, err = database.NewFromURL(ctx, cfg.Database.URL)
	} else {
		db, err = database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
		})
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return database.NewItemRepository(db), database.NewOutboxRepository(db), db.Close, nil
}
