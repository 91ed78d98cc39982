package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/praxis/social-engine/internal/analytics"
	"github.com/praxis/social-engine/internal/api"
	"github.com/praxis/social-engine/internal/config"
	"github.com/praxis/social-engine/internal/feed"
	"github.com/praxis/social-engine/internal/leaderboard"
	"github.com/praxis/social-engine/internal/metrics"
	"github.com/praxis/social-engine/internal/polymarket"
	"github.com/praxis/social-engine/internal/store"
	enginesync "github.com/praxis/social-engine/internal/sync"
	"github.com/praxis/social-engine/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- WebSocket hub ---
	hub := feed.NewHub()
	go hub.Run()

	// --- Domain services ---
	feedSvc := feed.NewService(st, hub)
	analyticsSvc := analytics.NewService(st, feedSvc)
	leaderboardSvc := leaderboard.NewService(st)

	pmClient := polymarket.NewClient(cfg.GammaAPIURL, cfg.DataAPIURL)
	syncSvc := enginesync.NewService(st, pmClient, feedSvc)

	apiSvc := api.NewService(st, analyticsSvc, leaderboardSvc, feedSvc, syncSvc)

	// --- Background jobs ---
	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	worker.NewRunner(st, analyticsSvc, leaderboardSvc, feedSvc, syncSvc, worker.Intervals{
		Stats:       cfg.StatsInterval,
		Leaderboard: cfg.LeaderboardInterval,
		MarketSync:  cfg.MarketSyncInterval,
		FeedCleanup: cfg.FeedCleanupInterval,
	}, cfg.FeedRetentionDays).Start(jobCtx)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"social-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time feed events.
		r.Get("/ws", hub.HandleWS)

		// User stats and rankings.
		r.Get("/users/{userID}/stats", apiSvc.GetUserStats)
		r.Post("/users/{userID}/stats/recompute", apiSvc.RecomputeUserStats)
		r.Get("/users/{userID}/rankings", apiSvc.GetUserRankings)
		r.Get("/users/{userID}/badges", apiSvc.GetUserBadges)
		r.Post("/users/{userID}/follow", apiSvc.Follow)

		// Leaderboards.
		r.Get("/leaderboard/{period}/{metric}", apiSvc.GetLeaderboard)
		r.Post("/leaderboard/calculate", apiSvc.CalculateLeaderboards)

		// Social feed.
		r.Get("/feed", apiSvc.GetFeed)
		r.Post("/feed", apiSvc.RecordFeedEvent)
		r.Post("/feed/cleanup", apiSvc.CleanupFeed)

		// Upstream sync.
		r.Post("/sync/markets", apiSvc.SyncMarkets)
		r.Post("/users/{userID}/sync", apiSvc.SyncUser)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("social-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopJobs()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down social-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("social-engine stopped")
}
