package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/praxis/social-engine/internal/model"
	"github.com/praxis/social-engine/internal/store"
)

func TestGetUserStats_NotFound(t *testing.T) {
	ms := store.NewMemoryStore()

	_, err := ms.GetUserStats(context.Background(), "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertPosition_KeyedByUserMarketOutcome(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	base := model.Position{
		ID: "p1", UserID: "user1", MarketID: "m1", Outcome: "YES",
		Size: decimal.NewFromInt(10), Status: model.PositionActive,
	}
	other := base
	other.ID = "p2"
	other.Outcome = "NO"

	if err := ms.UpsertPosition(ctx, &base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ms.UpsertPosition(ctx, &other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	positions, err := ms.GetUserPositions(ctx, "user1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 2 {
		t.Errorf("outcomes are distinct positions, expected 2, got %d", len(positions))
	}

	// Same key again replaces instead of duplicating.
	base.Size = decimal.NewFromInt(20)
	if err := ms.UpsertPosition(ctx, &base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := ms.GetPosition(ctx, "user1", "m1", "YES")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Size.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected upsert to replace, got size %s", p.Size)
	}
}

func TestHasTradeByTxHash_ScopedToUser(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	err := ms.InsertTradeEvent(ctx, &model.TradeEvent{
		ID: "t1", UserID: "user1", MarketID: "m1", TxHash: "0xabc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen, err := ms.HasTradeByTxHash(ctx, "user1", "0xabc")
	if err != nil || !seen {
		t.Errorf("expected recorded hash to be seen, got %v/%v", seen, err)
	}
	seen, err = ms.HasTradeByTxHash(ctx, "user2", "0xabc")
	if err != nil || seen {
		t.Errorf("hash dedup is per user, got %v/%v", seen, err)
	}
}

func TestQueryFeed_UserIDsTakesPrecedence(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	for _, user := range []string{"a", "b", "c"} {
		err := ms.InsertFeedEvent(ctx, &model.FeedEvent{
			ID: "e-" + user, Type: model.EventPositionOpened, UserID: user,
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	events, total, err := ms.QueryFeed(ctx, store.FeedFilter{
		UserID:  "a",
		UserIDs: []string{"b", "c"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected membership set to win over single user, got total %d", total)
	}
	for _, e := range events {
		if e.UserID == "a" {
			t.Errorf("single-user filter leaked through: %+v", e)
		}
	}
}

func TestQueryFeed_OffsetBeyondTotal(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	err := ms.InsertFeedEvent(ctx, &model.FeedEvent{
		ID: "e1", Type: model.EventPositionOpened, UserID: "a", Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events, total, err := ms.QueryFeed(ctx, store.FeedFilter{Offset: 10, Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 || total != 1 {
		t.Errorf("expected empty page with true total, got %d events, total %d", len(events), total)
	}
}

func TestReplaceLeaderboard_Swap(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	gen1 := []model.LeaderboardEntry{
		{Period: model.PeriodDaily, Metric: model.MetricPnL, Rank: 1, UserID: "old"},
	}
	if err := ms.ReplaceLeaderboard(ctx, model.PeriodDaily, model.MetricPnL, gen1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gen2 := []model.LeaderboardEntry{
		{Period: model.PeriodDaily, Metric: model.MetricPnL, Rank: 1, UserID: "new1"},
		{Period: model.PeriodDaily, Metric: model.MetricPnL, Rank: 2, UserID: "new2"},
	}
	if err := ms.ReplaceLeaderboard(ctx, model.PeriodDaily, model.MetricPnL, gen2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := ms.GetLeaderboard(ctx, model.PeriodDaily, model.MetricPnL, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 || entries[0].UserID != "new1" {
		t.Errorf("expected full swap to generation 2, got %v", entries)
	}

	// Other partitions are untouched.
	other, err := ms.GetLeaderboard(ctx, model.PeriodWeekly, model.MetricPnL, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("replacement leaked into another partition: %v", other)
	}
}

func TestAwardBadge_OncePerUser(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := ms.AwardBadge(ctx, "user1", "hot_hand", now)
	if err != nil || !first {
		t.Fatalf("expected first award to report new, got %v/%v", first, err)
	}
	second, err := ms.AwardBadge(ctx, "user1", "hot_hand", now.Add(time.Hour))
	if err != nil || second {
		t.Fatalf("expected repeat award to report held, got %v/%v", second, err)
	}

	badges, err := ms.GetUserBadges(ctx, "user1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(badges) != 1 {
		t.Fatalf("expected 1 badge, got %d", len(badges))
	}
	if !badges[0].EarnedAt.Equal(now) {
		t.Errorf("repeat award must not touch the original timestamp")
	}
}

func TestAddFollow_Idempotent(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	if err := ms.AddFollow(ctx, "fan", "hero"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ms.AddFollow(ctx, "fan", "hero"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	following, err := ms.GetFollowing(ctx, "fan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(following) != 1 {
		t.Errorf("expected deduplicated follow edge, got %v", following)
	}
}

func TestListActiveUserIDs(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	err := ms.UpsertPosition(ctx, &model.Position{
		ID: "p1", UserID: "holder", MarketID: "m1", Outcome: "YES",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = ms.InsertTradeEvent(ctx, &model.TradeEvent{ID: "t1", UserID: "trader", MarketID: "m1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids, err := ms.ListActiveUserIDs(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "holder" || ids[1] != "trader" {
		t.Errorf("expected sorted distinct active users, got %v", ids)
	}
}
