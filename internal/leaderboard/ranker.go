// Package leaderboard snapshots the user stats store into ranked caches
// per (period, metric) pair.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/praxis/social-engine/internal/metrics"
	"github.com/praxis/social-engine/internal/model"
	"github.com/praxis/social-engine/internal/store"
)

// Default entry limits for calculation and the read path.
const (
	DefaultCalculateLimit = 100
	DefaultReadLimit      = 50
)

// Service ranks users into cached leaderboards. Stateless; every
// recalculation fully replaces its (period, metric) cache partition.
type Service struct {
	store store.Store
}

// NewService creates a leaderboard ranker.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// metricValue maps a leaderboard metric onto its stats field.
func metricValue(st *model.UserStats, metric model.Metric) decimal.Decimal {
	switch metric {
	case model.MetricPnL:
		return st.TotalPnL
	case model.MetricROI:
		return st.ROI
	case model.MetricAccuracy:
		return st.Accuracy
	case model.MetricStreak:
		return decimal.NewFromInt(int64(st.TradingStreak))
	case model.MetricVolume:
		return st.TotalVolume
	}
	return decimal.Zero
}

// Calculate rebuilds the cache partition for one (period, metric) pair
// from the current stats store and returns the number of cached entries.
// Users qualify with at least one trade. Ties are broken by user ID so
// ranking is reproducible.
//
// Periods daily and weekly are computed from the same unwindowed stats
// snapshot as all_time; there is no time-bucketed aggregation.
func (s *Service) Calculate(ctx context.Context, period model.Period, metric model.Metric, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultCalculateLimit
	}

	stats, err := s.store.ListQualifyingStats(ctx)
	if err != nil {
		metrics.LeaderboardCalculations.WithLabelValues(string(period), string(metric), "error").Inc()
		return 0, fmt.Errorf("calculate leaderboard %s/%s: %w", period, metric, err)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		vi, vj := metricValue(&stats[i], metric), metricValue(&stats[j], metric)
		if !vi.Equal(vj) {
			return vi.GreaterThan(vj)
		}
		return stats[i].UserID < stats[j].UserID
	})

	if len(stats) > limit {
		stats = stats[:limit]
	}

	now := time.Now().UTC()
	entries := make([]model.LeaderboardEntry, len(stats))
	for i, st := range stats {
		entries[i] = model.LeaderboardEntry{
			Period:    period,
			Metric:    metric,
			Rank:      i + 1,
			UserID:    st.UserID,
			Value:     metricValue(&st, metric),
			UpdatedAt: now,
		}
	}

	if err := s.store.ReplaceLeaderboard(ctx, period, metric, entries); err != nil {
		metrics.LeaderboardCalculations.WithLabelValues(string(period), string(metric), "error").Inc()
		return 0, fmt.Errorf("calculate leaderboard %s/%s: %w", period, metric, err)
	}

	metrics.LeaderboardCalculations.WithLabelValues(string(period), string(metric), "ok").Inc()
	slog.Info("leaderboard cached", "period", period, "metric", metric, "entries", len(entries))
	return len(entries), nil
}

// CalculateAll rebuilds every (period, metric) partition sequentially and
// returns the count of successful recalculations. A failing pair is
// logged and skipped — it never aborts the batch.
func (s *Service) CalculateAll(ctx context.Context) int {
	calculated := 0
	for _, period := range model.Periods {
		for _, metric := range model.Metrics {
			if _, err := s.Calculate(ctx, period, metric, DefaultCalculateLimit); err != nil {
				slog.Error("leaderboard calculation failed", "period", period, "metric", metric, "err", err)
				continue
			}
			calculated++
		}
	}
	slog.Info("leaderboards recalculated", "count", calculated)
	return calculated
}

// Get returns the cached leaderboard page for a (period, metric) pair.
// An empty cache self-heals with exactly one synchronous recalculation
// and one re-read; if recalculation legitimately yields no qualifying
// users the result is an empty list, not another retry.
func (s *Service) Get(ctx context.Context, period model.Period, metric model.Metric, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultReadLimit
	}

	entries, err := s.store.GetLeaderboard(ctx, period, metric, limit)
	if err != nil {
		return nil, fmt.Errorf("get leaderboard %s/%s: %w", period, metric, err)
	}

	if len(entries) == 0 {
		if _, err := s.Calculate(ctx, period, metric, DefaultCalculateLimit); err != nil {
			return nil, err
		}
		entries, err = s.store.GetLeaderboard(ctx, period, metric, limit)
		if err != nil {
			return nil, fmt.Errorf("get leaderboard %s/%s: %w", period, metric, err)
		}
	}

	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	return entries, nil
}

// Ranking is one user's cached standing in a single leaderboard.
type Ranking struct {
	Rank      int             `json:"rank"`
	Value     decimal.Decimal `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// UserRankings returns the user's cached rank across every (period,
// metric) pair, grouped by period then metric. Pairs where the user is
// unranked are omitted, not zero-filled.
func (s *Service) UserRankings(ctx context.Context, userID string) (map[model.Period]map[model.Metric]Ranking, error) {
	entries, err := s.store.GetUserRankings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get rankings for %s: %w", userID, err)
	}

	grouped := make(map[model.Period]map[model.Metric]Ranking, len(model.Periods))
	for _, period := range model.Periods {
		grouped[period] = make(map[model.Metric]Ranking)
	}
	for _, e := range entries {
		grouped[e.Period][e.Metric] = Ranking{
			Rank:      e.Rank,
			Value:     e.Value,
			UpdatedAt: e.UpdatedAt,
		}
	}
	return grouped, nil
}
