package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/praxis/social-engine/internal/model"
	"github.com/praxis/social-engine/internal/polymarket"
	"github.com/praxis/social-engine/internal/store"
	enginesync "github.com/praxis/social-engine/internal/sync"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// fakeAPI serves canned upstream responses.
type fakeAPI struct {
	markets   []polymarket.Market
	positions []polymarket.Position
	trades    []polymarket.Trade
}

func (f *fakeAPI) GetMarkets(_ context.Context, _ int) ([]polymarket.Market, error) {
	return f.markets, nil
}

func (f *fakeAPI) GetUserPositions(_ context.Context, _ string) ([]polymarket.Position, error) {
	return f.positions, nil
}

func (f *fakeAPI) GetUserTrades(_ context.Context, _ string, _ int) ([]polymarket.Trade, error) {
	return f.trades, nil
}

// spyNotifier counts position lifecycle notifications.
type spyNotifier struct {
	opened []model.Position
	closed []model.Position
}

func (n *spyNotifier) OnPositionOpened(_ context.Context, p *model.Position) {
	n.opened = append(n.opened, *p)
}

func (n *spyNotifier) OnPositionClosed(_ context.Context, p *model.Position) {
	n.closed = append(n.closed, *p)
}

func seedMarket(t *testing.T, ms *store.MemoryStore, id string) {
	t.Helper()
	err := ms.UpsertMarket(context.Background(), &model.Market{
		ID: id, Question: "test?", Active: true, UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to seed market: %v", err)
	}
}

func TestSyncMarkets_ParsesAndUpserts(t *testing.T) {
	ms := store.NewMemoryStore()
	api := &fakeAPI{markets: []polymarket.Market{
		{ConditionID: "m1", Question: "Will it rain?", Category: "weather",
			Volume: "12345.67", Liquidity: "890.12", Active: true,
			EndDateISO: "2026-09-30T00:00:00Z"},
		{ConditionID: "", Question: "missing ID, skipped"},
	}}
	svc := enginesync.NewService(ms, api, nil)

	synced, err := svc.SyncMarkets(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if synced != 1 {
		t.Fatalf("expected 1 market synced, got %d", synced)
	}

	m, err := ms.GetMarket(context.Background(), "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Volume.Equal(d(12345.67)) {
		t.Errorf("volume: expected 12345.67, got %s", m.Volume)
	}
	if m.EndDate.IsZero() {
		t.Error("expected parsed end date")
	}
}

func TestSyncUserPositions_OpensNewPosition(t *testing.T) {
	ms := store.NewMemoryStore()
	spy := &spyNotifier{}
	api := &fakeAPI{positions: []polymarket.Position{
		{Market: "m1", Outcome: "YES", Size: "100", AveragePrice: "0.40", CurrentPrice: "0.55"},
	}}
	svc := enginesync.NewService(ms, api, spy)
	seedMarket(t, ms, "m1")

	synced, err := svc.SyncUserPositions(context.Background(), "user1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if synced != 1 {
		t.Fatalf("expected 1 position synced, got %d", synced)
	}

	p, err := ms.GetPosition(context.Background(), "user1", "m1", "YES")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != model.PositionActive {
		t.Errorf("expected active status, got %s", p.Status)
	}
	// 100 * (0.55 - 0.40) = 15.
	if !p.UnrealizedPnL.Equal(d(15)) {
		t.Errorf("unrealized pnl: expected 15, got %s", p.UnrealizedPnL)
	}
	if len(spy.opened) != 1 || len(spy.closed) != 0 {
		t.Errorf("expected one open notification, got opened=%d closed=%d", len(spy.opened), len(spy.closed))
	}
}

func TestSyncUserPositions_ClosesOnZeroSize(t *testing.T) {
	ms := store.NewMemoryStore()
	spy := &spyNotifier{}
	api := &fakeAPI{positions: []polymarket.Position{
		{Market: "m1", Outcome: "YES", Size: "100", AveragePrice: "0.40", CurrentPrice: "0.55"},
	}}
	svc := enginesync.NewService(ms, api, spy)
	seedMarket(t, ms, "m1")
	ctx := context.Background()

	if _, err := svc.SyncUserPositions(ctx, "user1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Next refresh reports the position fully exited at 0.70.
	api.positions = []polymarket.Position{
		{Market: "m1", Outcome: "YES", Size: "0", AveragePrice: "0.40", CurrentPrice: "0.70"},
	}
	if _, err := svc.SyncUserPositions(ctx, "user1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := ms.GetPosition(ctx, "user1", "m1", "YES")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != model.PositionClosed {
		t.Errorf("expected closed status, got %s", p.Status)
	}
	// Realized at last known exposure: 100 * (0.70 - 0.40) = 30.
	if !p.RealizedPnL.Equal(d(30)) {
		t.Errorf("realized pnl: expected 30, got %s", p.RealizedPnL)
	}

	if len(spy.closed) != 1 {
		t.Fatalf("expected one close notification, got %d", len(spy.closed))
	}
	// Close notification carries the pre-exit size for whale detection.
	if !spy.closed[0].Size.Equal(d(100)) {
		t.Errorf("close notification size: expected 100, got %s", spy.closed[0].Size)
	}
}

func TestSyncUserPositions_RefreshDoesNotReopen(t *testing.T) {
	ms := store.NewMemoryStore()
	spy := &spyNotifier{}
	api := &fakeAPI{positions: []polymarket.Position{
		{Market: "m1", Outcome: "YES", Size: "100", AveragePrice: "0.40", CurrentPrice: "0.55"},
	}}
	svc := enginesync.NewService(ms, api, spy)
	seedMarket(t, ms, "m1")
	ctx := context.Background()

	if _, err := svc.SyncUserPositions(ctx, "user1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.SyncUserPositions(ctx, "user1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(spy.opened) != 1 {
		t.Errorf("refresh of a live position must not re-notify, got %d opens", len(spy.opened))
	}
}

func TestSyncUserPositions_SkipsUnknownMarket(t *testing.T) {
	ms := store.NewMemoryStore()
	api := &fakeAPI{positions: []polymarket.Position{
		{Market: "never-synced", Outcome: "YES", Size: "10", AveragePrice: "0.5", CurrentPrice: "0.5"},
	}}
	svc := enginesync.NewService(ms, api, nil)

	synced, err := svc.SyncUserPositions(context.Background(), "user1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if synced != 0 {
		t.Errorf("expected unknown-market position skipped, got %d synced", synced)
	}
}

func TestSyncUserTrades_DeduplicatesByTxHash(t *testing.T) {
	ms := store.NewMemoryStore()
	api := &fakeAPI{trades: []polymarket.Trade{
		{Market: "m1", Side: "BUY", Outcome: "YES", Size: "10", Price: "0.5",
			Timestamp: time.Now().Unix(), TransactionHash: "0xabc"},
		{Market: "m1", Side: "SELL", Outcome: "YES", Size: "5", Price: "0.6",
			Timestamp: time.Now().Unix(), TransactionHash: "0xdef"},
	}}
	svc := enginesync.NewService(ms, api, nil)
	seedMarket(t, ms, "m1")
	ctx := context.Background()

	first, err := svc.SyncUserTrades(ctx, "user1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != 2 {
		t.Fatalf("expected 2 trades synced, got %d", first)
	}

	second, err := svc.SyncUserTrades(ctx, "user1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != 0 {
		t.Errorf("expected re-sync to dedup all trades, got %d", second)
	}

	trades, err := ms.GetUserTrades(ctx, "user1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 2 {
		t.Errorf("expected 2 recorded trades, got %d", len(trades))
	}
	for _, tr := range trades {
		if tr.Side != model.SideBuy && tr.Side != model.SideSell {
			t.Errorf("upstream side not normalized: %s", tr.Side)
		}
	}
}
