package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/use-agent/pricescout/api"
	"github.com/use-agent/pricescout/cache"
	"github.com/use-agent/pricescout/config"
	"github.com/use-agent/pricescout/publisher"
	"github.com/use-agent/pricescout/scheduler"
	"github.com/use-agent/pricescout/scraper"
	"github.com/use-agent/pricescout/store"
	"github.com/use-agent/pricescout/tracker"
	"github.com/use-agent/pricescout/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("pricescout starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"fetchMode", cfg.Scraper.FetchMode,
		"maxPages", cfg.Browser.MaxPages,
		"target", cfg.Scraper.TargetDomain,
	)

	// ── 3. Initialise scraper (browser launches lazily) ─────────────
	sc, err := scraper.Build(cfg)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}

	// ── 4. Initialise cache ─────────────────────────────────────────
	cc := newCache(cfg.Cache)

	// ── 5. Initialise store ─────────────────────────────────────────
	st, err := newStore(cfg.Database)
	if err != nil {
		slog.Error("failed to initialise store", "error", err)
		os.Exit(1)
	}

	// ── 6. Initialise notifiers ─────────────────────────────────────
	var notifiers []tracker.Notifier
	if cfg.Webhook.URL != "" {
		notifiers = append(notifiers, webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret))
		slog.Info("webhook notifications enabled", "url", cfg.Webhook.URL)
	}
	var pub *publisher.RedisPublisher
	if cfg.Redis.Addr != "" {
		pub = publisher.NewRedisPublisher(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Stream, cfg.Redis.MaxLen)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := pub.Ping(pingCtx); err != nil {
			slog.Warn("redis unreachable, events will be retried per publish", "addr", cfg.Redis.Addr, "error", err)
		}
		cancel()
		notifiers = append(notifiers, pub)
		slog.Info("redis stream publishing enabled", "stream", cfg.Redis.Stream)
	}

	// ── 7. Tracker and scheduler ────────────────────────────────────
	tr := tracker.New(sc, st, cfg.Scheduler.Concurrency, notifiers...)

	var sched *scheduler.PriceChecker
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(tr, cfg.Scheduler.Spec)
		if err := sched.Start(cfg.Scheduler.RunOnStart); err != nil {
			slog.Error("failed to start scheduler", "spec", cfg.Scheduler.Spec, "error", err)
			os.Exit(1)
		}
	}

	// ── 8. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(sc, tr, st, cc, cfg, startTime)
	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-API-Key"},
		AllowCredentials: true,
	}).Handler(router)

	// ── 9. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 10. Graceful shutdown ───────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	if sched != nil {
		sched.Stop()
	}

	// Give in-flight requests the scrape deadline to complete.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scraper.ScrapeTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	if err := sc.Shutdown(); err != nil {
		slog.Error("scraper shutdown failed", "error", err)
	}
	if err := st.Close(); err != nil {
		slog.Error("store close failed", "error", err)
	}
	if pub != nil {
		if err := pub.Close(); err != nil {
			slog.Error("redis close failed", "error", err)
		}
	}
	cc.Close()

	slog.Info("pricescout stopped")
}

// newCache selects the scrape result cache backend.
func newCache(cfg config.CacheConfig) cache.Store {
	if cfg.Backend == "memcache" {
		mc := cache.NewMemcache(cfg.MemcacheAddr, cfg.TTL)
		if err := mc.Ping(); err != nil {
			slog.Warn("memcached unreachable, cache lookups will miss", "addr", cfg.MemcacheAddr, "error", err)
		}
		slog.Info("memcached result cache enabled", "addr", cfg.MemcacheAddr)
		return mc
	}
	return cache.NewMemory(cfg.MaxEntries, cfg.TTL)
}

// newStore opens Postgres when a URL is configured, else an in-memory store.
func newStore(cfg config.DatabaseConfig) (store.Store, error) {
	if cfg.URL == "" {
		slog.Warn("DATABASE_URL not set, tracked products are kept in memory only")
		return store.NewMemory(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pg, err := store.OpenPostgres(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Info("postgres store ready")
	return pg, nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
