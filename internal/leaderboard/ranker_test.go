package leaderboard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/praxis/social-engine/internal/leaderboard"
	"github.com/praxis/social-engine/internal/model"
	"github.com/praxis/social-engine/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seedStats(t *testing.T, ms *store.MemoryStore, userID string, pnl float64, trades int) {
	t.Helper()
	err := ms.UpsertUserStats(context.Background(), &model.UserStats{
		UserID:      userID,
		TotalPnL:    d(pnl),
		TotalTrades: trades,
	})
	if err != nil {
		t.Fatalf("failed to seed stats: %v", err)
	}
}

func TestCalculate_RanksDenseAndOrdered(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := leaderboard.NewService(ms)
	ctx := context.Background()

	seedStats(t, ms, "alice", 300, 5)
	seedStats(t, ms, "bob", 100, 5)
	seedStats(t, ms, "carol", 200, 5)

	n, err := svc.Calculate(ctx, model.PeriodAllTime, model.MetricPnL, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 entries, got %d", n)
	}

	entries, err := ms.GetLeaderboard(ctx, model.PeriodAllTime, model.MetricPnL, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []string{"alice", "carol", "bob"}
	for i, e := range entries {
		if e.Rank != i+1 {
			t.Errorf("entry %d: expected dense rank %d, got %d", i, i+1, e.Rank)
		}
		if e.UserID != wantOrder[i] {
			t.Errorf("entry %d: expected %s, got %s", i, wantOrder[i], e.UserID)
		}
	}
}

func TestCalculate_TieBreaksByUserID(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := leaderboard.NewService(ms)
	ctx := context.Background()

	seedStats(t, ms, "zoe", 100, 1)
	seedStats(t, ms, "amy", 100, 1)

	if _, err := svc.Calculate(ctx, model.PeriodDaily, model.MetricPnL, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, _ := ms.GetLeaderboard(ctx, model.PeriodDaily, model.MetricPnL, 0)
	if len(entries) != 2 || entries[0].UserID != "amy" || entries[1].UserID != "zoe" {
		t.Errorf("expected tie broken by user ID ascending, got %v", entries)
	}
}

func TestCalculate_ExcludesUsersWithoutTrades(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := leaderboard.NewService(ms)
	ctx := context.Background()

	seedStats(t, ms, "trader", 50, 3)
	seedStats(t, ms, "lurker", 999, 0)

	if _, err := svc.Calculate(ctx, model.PeriodAllTime, model.MetricPnL, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, _ := ms.GetLeaderboard(ctx, model.PeriodAllTime, model.MetricPnL, 0)
	if len(entries) != 1 || entries[0].UserID != "trader" {
		t.Errorf("expected only trading users ranked, got %v", entries)
	}
}

func TestCalculate_ReplacesPreviousGeneration(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := leaderboard.NewService(ms)
	ctx := context.Background()

	seedStats(t, ms, "old", 100, 1)
	if _, err := svc.Calculate(ctx, model.PeriodAllTime, model.MetricPnL, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The user's stats vanish from qualification; recalculation must not
	// leave the stale entry behind.
	seedStats(t, ms, "old", 100, 0)
	seedStats(t, ms, "new", 50, 1)
	if _, err := svc.Calculate(ctx, model.PeriodAllTime, model.MetricPnL, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, _ := ms.GetLeaderboard(ctx, model.PeriodAllTime, model.MetricPnL, 0)
	if len(entries) != 1 || entries[0].UserID != "new" {
		t.Errorf("expected full partition replacement, got %v", entries)
	}
}

func TestCalculate_TruncatesToLimit(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := leaderboard.NewService(ms)
	ctx := context.Background()

	seedStats(t, ms, "a", 3, 1)
	seedStats(t, ms, "b", 2, 1)
	seedStats(t, ms, "c", 1, 1)

	n, err := svc.Calculate(ctx, model.PeriodAllTime, model.MetricPnL, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 entries at limit, got %d", n)
	}
}

func TestGet_SelfHealsEmptyCache(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := leaderboard.NewService(ms)
	ctx := context.Background()

	seedStats(t, ms, "alice", 10, 1)

	// No Calculate has run; the read must trigger one and return data.
	entries, err := svc.Get(ctx, model.PeriodWeekly, model.MetricPnL, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].UserID != "alice" {
		t.Errorf("expected self-healed leaderboard, got %v", entries)
	}
}

func TestGet_EmptyAfterRecalcTerminates(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := leaderboard.NewService(ms)

	// No qualifying users at all: one recalculation, one re-read, then an
	// empty result — never a retry loop.
	entries, err := svc.Get(context.Background(), model.PeriodDaily, model.MetricVolume, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", entries)
	}
}

func TestCalculateAll_CoversEveryPair(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := leaderboard.NewService(ms)
	ctx := context.Background()

	seedStats(t, ms, "alice", 10, 1)

	if got := svc.CalculateAll(ctx); got != len(model.Periods)*len(model.Metrics) {
		t.Fatalf("expected %d recalculations, got %d", len(model.Periods)*len(model.Metrics), got)
	}

	for _, period := range model.Periods {
		for _, metric := range model.Metrics {
			entries, err := ms.GetLeaderboard(ctx, period, metric, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(entries) != 1 {
				t.Errorf("%s/%s: expected 1 entry, got %d", period, metric, len(entries))
			}
		}
	}
}

// failingStore makes one partition's replacement fail, to prove a bad
// pair cannot abort the batch.
type failingStore struct {
	store.Store
	failPeriod model.Period
	failMetric model.Metric
}

func (f *failingStore) ReplaceLeaderboard(ctx context.Context, period model.Period, metric model.Metric, entries []model.LeaderboardEntry) error {
	if period == f.failPeriod && metric == f.failMetric {
		return errors.New("replace failed")
	}
	return f.Store.ReplaceLeaderboard(ctx, period, metric, entries)
}

func TestCalculateAll_SkipsFailingPair(t *testing.T) {
	ms := store.NewMemoryStore()
	fs := &failingStore{Store: ms, failPeriod: model.PeriodDaily, failMetric: model.MetricROI}
	svc := leaderboard.NewService(fs)

	seedStats(t, ms, "alice", 10, 1)

	if got := svc.CalculateAll(context.Background()); got != 14 {
		t.Errorf("expected 14 successful recalculations, got %d", got)
	}
}

func TestUserRankings_GroupsByPeriod(t *testing.T) {
	ms := store.NewMemoryStore()
	svc := leaderboard.NewService(ms)
	ctx := context.Background()

	seedStats(t, ms, "alice", 10, 1)
	if _, err := svc.Calculate(ctx, model.PeriodAllTime, model.MetricPnL, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rankings, err := svc.UserRankings(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, period := range model.Periods {
		if _, ok := rankings[period]; !ok {
			t.Errorf("expected period map for %s even when empty", period)
		}
	}
	r, ok := rankings[model.PeriodAllTime][model.MetricPnL]
	if !ok || r.Rank != 1 {
		t.Errorf("expected rank 1 on all_time/pnl, got %+v (present=%v)", r, ok)
	}
	if _, ok := rankings[model.PeriodDaily][model.MetricPnL]; ok {
		t.Error("uncalculated pair should be omitted, not zero-filled")
	}
}
