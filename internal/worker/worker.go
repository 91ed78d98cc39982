// Package worker runs the periodic background jobs: user stats refresh,
// leaderboard recalculation, market sync, and feed retention cleanup.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/praxis/social-engine/internal/analytics"
	"github.com/praxis/social-engine/internal/feed"
	"github.com/praxis/social-engine/internal/leaderboard"
	"github.com/praxis/social-engine/internal/store"
	enginesync "github.com/praxis/social-engine/internal/sync"
)

// Intervals configures the cadence of each background job. A zero
// interval disables that job.
type Intervals struct {
	Stats       time.Duration
	Leaderboard time.Duration
	MarketSync  time.Duration
	FeedCleanup time.Duration
}

// Runner owns the background job goroutines. All jobs stop when the
// context passed to Start is cancelled.
type Runner struct {
	store       store.Store
	analytics   *analytics.Service
	leaderboard *leaderboard.Service
	feed        *feed.Service
	sync        *enginesync.Service // optional
	intervals   Intervals
	retention   int // feed retention in days
}

// NewRunner creates a background job runner. sync may be nil, which
// disables the market sync job.
func NewRunner(st store.Store, an *analytics.Service, lb *leaderboard.Service, fd *feed.Service, sy *enginesync.Service, intervals Intervals, retentionDays int) *Runner {
	return &Runner{
		store:       st,
		analytics:   an,
		leaderboard: lb,
		feed:        fd,
		sync:        sy,
		intervals:   intervals,
		retention:   retentionDays,
	}
}

// Start launches one goroutine per enabled job and returns immediately.
func (r *Runner) Start(ctx context.Context) {
	if r.intervals.Stats > 0 {
		go r.loop(ctx, "stats refresh", r.intervals.Stats, r.refreshStats)
	}
	if r.intervals.Leaderboard > 0 {
		go r.loop(ctx, "leaderboard recalc", r.intervals.Leaderboard, r.recalcLeaderboards)
	}
	if r.intervals.MarketSync > 0 && r.sync != nil {
		go r.loop(ctx, "market sync", r.intervals.MarketSync, r.syncMarkets)
	}
	if r.intervals.FeedCleanup > 0 {
		go r.loop(ctx, "feed cleanup", r.intervals.FeedCleanup, r.cleanupFeed)
	}
}

func (r *Runner) loop(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("background job started", "job", name, "interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("background job stopped", "job", name)
			return
		case <-ticker.C:
			if err := job(ctx); err != nil {
				slog.Error("background job failed", "job", name, "err", err)
			}
		}
	}
}

// refreshStats recomputes stats for every user with recorded activity.
// Per-user failures are logged and skipped so one bad user cannot stall
// the whole refresh.
func (r *Runner) refreshStats(ctx context.Context) error {
	userIDs, err := r.store.ListActiveUserIDs(ctx)
	if err != nil {
		return err
	}
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := r.analytics.Recompute(ctx, userID); err != nil {
			slog.Error("stats refresh failed for user", "user", userID, "err", err)
		}
	}
	slog.Info("stats refresh complete", "users", len(userIDs))
	return nil
}

func (r *Runner) recalcLeaderboards(ctx context.Context) error {
	r.leaderboard.CalculateAll(ctx)
	return nil
}

func (r *Runner) syncMarkets(ctx context.Context) error {
	_, err := r.sync.SyncMarkets(ctx, 0)
	return err
}

func (r *Runner) cleanupFeed(ctx context.Context) error {
	_, err := r.feed.Cleanup(ctx, r.retention)
	return err
}
