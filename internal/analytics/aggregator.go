package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/praxis/social-engine/internal/badge"
	"github.com/praxis/social-engine/internal/metrics"
	"github.com/praxis/social-engine/internal/model"
	"github.com/praxis/social-engine/internal/store"
)

// Notifier receives best-effort social notifications from stats
// recomputes. Implementations must never fail the recompute — they log
// and suppress their own errors.
type Notifier interface {
	OnStreakAchieved(ctx context.Context, userID string, streak int)
	OnBadgeEarned(ctx context.Context, userID, badgeID string)
}

// Service recomputes and persists per-user statistics. Stateless; all
// durable state lives in the store, so concurrent recomputes for the same
// user resolve to last-write-wins over an internally-consistent row.
type Service struct {
	store    store.Store
	notifier Notifier
}

// NewService creates a stats aggregator.
// Pass nil for notifier to disable feed notifications.
func NewService(st store.Store, notifier Notifier) *Service {
	return &Service{store: st, notifier: notifier}
}

var hundred = decimal.NewFromInt(100)

// Recompute derives the full statistics row for one user from their
// current positions and trade history, then atomically replaces the stored
// row. Returns (nil, nil) when the user has no positions and no trades —
// no row is written in that case.
//
// Recomputing is idempotent: with unchanged inputs the output fields are
// identical except LastUpdated.
func (s *Service) Recompute(ctx context.Context, userID string) (*model.UserStats, error) {
	start := time.Now()

	positions, err := s.store.GetUserPositions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recompute %s: load positions: %w", userID, err)
	}
	trades, err := s.store.GetUserTrades(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recompute %s: load trades: %w", userID, err)
	}

	if len(positions) == 0 && len(trades) == 0 {
		slog.Debug("no positions or trades, skipping stats", "user", userID)
		return nil, nil
	}

	totalPnL := decimal.Zero
	totalInvested := decimal.Zero
	activeMarkets := 0
	closedCount := 0
	winningClosed := 0

	for _, p := range positions {
		totalPnL = totalPnL.Add(p.UnrealizedPnL).Add(p.RealizedPnL)
		totalInvested = totalInvested.Add(p.Size.Mul(p.AvgPrice))

		switch p.Status {
		case model.PositionActive:
			activeMarkets++
		case model.PositionClosed:
			closedCount++
			if p.RealizedPnL.IsPositive() {
				winningClosed++
			}
		}
	}

	totalVolume := decimal.Zero
	for _, t := range trades {
		totalVolume = totalVolume.Add(t.Size.Mul(t.Price))
	}

	roi := decimal.Zero
	if totalInvested.IsPositive() {
		roi = totalPnL.Div(totalInvested).Mul(hundred)
	}

	winRate := decimal.Zero
	if closedCount > 0 {
		winRate = decimal.NewFromInt(int64(winningClosed)).
			Div(decimal.NewFromInt(int64(closedCount))).Mul(hundred)
	}

	avgPositionSize := decimal.Zero
	if len(positions) > 0 {
		avgPositionSize = totalInvested.Div(decimal.NewFromInt(int64(len(positions))))
	}

	streak := CalculateStreak(trades)

	stats := &model.UserStats{
		UserID:          userID,
		TotalPnL:        totalPnL,
		ROI:             roi,
		WinRate:         winRate,
		Accuracy:        winRate, // placeholder metric, alias of win rate
		AvgPositionSize: avgPositionSize,
		TradingStreak:   streak,
		TotalTrades:     len(trades),
		TotalVolume:     totalVolume,
		ActiveMarkets:   activeMarkets,
		LastUpdated:     time.Now().UTC(),
	}

	if err := s.store.UpsertUserStats(ctx, stats); err != nil {
		return nil, fmt.Errorf("recompute %s: upsert stats: %w", userID, err)
	}

	metrics.StatsRecomputes.Inc()
	metrics.StatsRecomputeDuration.Observe(time.Since(start).Seconds())

	slog.Info("stats recomputed",
		"user", userID,
		"total_pnl", totalPnL.String(),
		"trades", len(trades),
		"streak", streak,
	)

	if s.notifier != nil {
		if streak > 0 {
			// The notifier filters for notable values. Fires on every
			// recompute landing on a notable streak, by original behavior.
			s.notifier.OnStreakAchieved(ctx, userID, streak)
		}
		s.awardBadges(ctx, userID, stats, winningClosed)
	}

	return stats, nil
}

// awardBadges checks badge criteria against the fresh stats and records
// first-time awards. Best-effort: failures are logged, never propagated.
func (s *Service) awardBadges(ctx context.Context, userID string, stats *model.UserStats, winningClosed int) {
	for _, b := range badge.Eligible(stats, winningClosed) {
		newlyAwarded, err := s.store.AwardBadge(ctx, userID, b.ID, time.Now().UTC())
		if err != nil {
			slog.Error("badge award failed", "user", userID, "badge", b.ID, "err", err)
			continue
		}
		if newlyAwarded {
			s.notifier.OnBadgeEarned(ctx, userID, b.ID)
		}
	}
}
