// Package sync mirrors upstream Polymarket data into the local store:
// market metadata, per-user positions, and per-user fills. Position
// refreshes detect open/close transitions and notify the feed.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/praxis/social-engine/internal/metrics"
	"github.com/praxis/social-engine/internal/model"
	"github.com/praxis/social-engine/internal/polymarket"
	"github.com/praxis/social-engine/internal/store"
)

// Default fetch limits per sync pass.
const (
	DefaultMarketLimit = 200
	DefaultTradeLimit  = 500
)

// API is the slice of the Polymarket client the sync service uses.
type API interface {
	GetMarkets(ctx context.Context, limit int) ([]polymarket.Market, error)
	GetUserPositions(ctx context.Context, address string) ([]polymarket.Position, error)
	GetUserTrades(ctx context.Context, address string, limit int) ([]polymarket.Trade, error)
}

// PositionNotifier receives position lifecycle transitions. Implemented
// by the feed service; hooks are best-effort and must not return errors.
type PositionNotifier interface {
	OnPositionOpened(ctx context.Context, p *model.Position)
	OnPositionClosed(ctx context.Context, p *model.Position)
}

// Service pulls upstream state into the store. Individual records that
// fail to parse or reference unknown markets are logged and skipped; a
// sync pass only fails outright when the upstream fetch itself fails.
type Service struct {
	store    store.Store
	client   API
	notifier PositionNotifier // optional
}

// NewService creates a sync service. notifier may be nil.
func NewService(st store.Store, client API, notifier PositionNotifier) *Service {
	return &Service{store: st, client: client, notifier: notifier}
}

// SyncMarkets refreshes market metadata from the Gamma API and returns
// the number of markets upserted.
func (s *Service) SyncMarkets(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultMarketLimit
	}

	upstream, err := s.client.GetMarkets(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("sync markets: %w", err)
	}

	synced := 0
	for _, m := range upstream {
		if m.ConditionID == "" {
			continue
		}
		market := model.Market{
			ID:        m.ConditionID,
			Question:  m.Question,
			Category:  m.Category,
			Volume:    parseDecimal(m.Volume),
			Liquidity: parseDecimal(m.Liquidity),
			Active:    m.Active,
			UpdatedAt: time.Now().UTC(),
		}
		if m.EndDateISO != "" {
			if end, err := time.Parse(time.RFC3339, m.EndDateISO); err == nil {
				market.EndDate = end.UTC()
			}
		}
		if err := s.store.UpsertMarket(ctx, &market); err != nil {
			slog.Error("market upsert failed", "market", market.ID, "err", err)
			continue
		}
		synced++
	}

	metrics.SyncedRecords.WithLabelValues("market").Add(float64(synced))
	slog.Info("markets synced", "count", synced)
	return synced, nil
}

// SyncUserPositions refreshes one user's positions from the Data API and
// returns the number of positions upserted. A position with zero size is
// closed; a newly seen position with positive size is opened. Transitions
// are forwarded to the notifier. Positions are never deleted.
func (s *Service) SyncUserPositions(ctx context.Context, userID string) (int, error) {
	upstream, err := s.client.GetUserPositions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("sync positions for %s: %w", userID, err)
	}

	synced := 0
	for _, up := range upstream {
		if up.Market == "" || up.Outcome == "" {
			continue
		}

		// Skip positions in markets we have not synced yet; the next
		// market sync pass will pick them up.
		if _, err := s.store.GetMarket(ctx, up.Market); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				slog.Warn("skipping position in unknown market", "market", up.Market, "user", userID)
				continue
			}
			return synced, fmt.Errorf("sync positions for %s: %w", userID, err)
		}

		size := parseDecimal(up.Size)
		avgPrice := parseDecimal(up.AveragePrice)
		curPrice := parseDecimal(up.CurrentPrice)

		status := model.PositionClosed
		if size.IsPositive() {
			status = model.PositionActive
		}

		now := time.Now().UTC()
		pos := model.Position{
			UserID:       userID,
			MarketID:     up.Market,
			Outcome:      up.Outcome,
			Size:         size,
			AvgPrice:     avgPrice,
			CurrentPrice: curPrice,
			Status:       status,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if status == model.PositionActive {
			pos.UnrealizedPnL = size.Mul(curPrice.Sub(avgPrice))
		}

		prev, err := s.store.GetPosition(ctx, userID, up.Market, up.Outcome)
		switch {
		case err == nil:
			pos.ID = prev.ID
			pos.CreatedAt = prev.CreatedAt
			pos.RealizedPnL = prev.RealizedPnL
			if prev.Status == model.PositionActive && status == model.PositionClosed {
				// Freeze the realized result at the last known exposure.
				pos.RealizedPnL = prev.Size.Mul(curPrice.Sub(prev.AvgPrice))
			}
		case errors.Is(err, store.ErrNotFound):
			pos.ID = uuid.New().String()
		default:
			return synced, fmt.Errorf("sync positions for %s: %w", userID, err)
		}

		if err := s.store.UpsertPosition(ctx, &pos); err != nil {
			slog.Error("position upsert failed", "user", userID, "market", up.Market, "err", err)
			continue
		}
		synced++

		if s.notifier != nil {
			switch {
			case prev == nil && status == model.PositionActive:
				s.notifier.OnPositionOpened(ctx, &pos)
			case prev != nil && prev.Status == model.PositionActive && status == model.PositionClosed:
				closed := pos
				closed.Size = prev.Size // notional at close, not the zeroed size
				s.notifier.OnPositionClosed(ctx, &closed)
			}
		}
	}

	metrics.SyncedRecords.WithLabelValues("position").Add(float64(synced))
	slog.Info("positions synced", "user", userID, "count", synced)
	return synced, nil
}

// SyncUserTrades mirrors one user's recent fills and returns the number
// of new trade events recorded. Fills already seen (by transaction hash)
// and fills in unknown markets are skipped.
func (s *Service) SyncUserTrades(ctx context.Context, userID string, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultTradeLimit
	}

	upstream, err := s.client.GetUserTrades(ctx, userID, limit)
	if err != nil {
		return 0, fmt.Errorf("sync trades for %s: %w", userID, err)
	}

	synced := 0
	for _, t := range upstream {
		if t.TransactionHash == "" || t.Market == "" {
			continue
		}

		seen, err := s.store.HasTradeByTxHash(ctx, userID, t.TransactionHash)
		if err != nil {
			return synced, fmt.Errorf("sync trades for %s: %w", userID, err)
		}
		if seen {
			continue
		}

		if _, err := s.store.GetMarket(ctx, t.Market); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				slog.Warn("skipping trade in unknown market", "market", t.Market, "user", userID)
				continue
			}
			return synced, fmt.Errorf("sync trades for %s: %w", userID, err)
		}

		side := model.SideBuy
		if t.Side == "SELL" || t.Side == model.SideSell {
			side = model.SideSell
		}

		event := model.TradeEvent{
			ID:        uuid.New().String(),
			UserID:    userID,
			MarketID:  t.Market,
			Side:      side,
			Outcome:   t.Outcome,
			Size:      parseDecimal(t.Size),
			Price:     parseDecimal(t.Price),
			Timestamp: time.Unix(t.Timestamp, 0).UTC(),
			TxHash:    t.TransactionHash,
		}
		if err := s.store.InsertTradeEvent(ctx, &event); err != nil {
			slog.Error("trade insert failed", "user", userID, "tx", t.TransactionHash, "err", err)
			continue
		}
		synced++
	}

	metrics.SyncedRecords.WithLabelValues("trade").Add(float64(synced))
	slog.Info("trades synced", "user", userID, "count", synced)
	return synced, nil
}

// parseDecimal parses an upstream numeric string, treating empty or
// malformed values as zero.
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
