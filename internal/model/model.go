// Package model defines the core domain types shared across the social
// trading engine. All monetary values use shopspring/decimal — never
// float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position statuses.
const (
	PositionActive = "active"
	PositionClosed = "closed"
)

// Trade sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Feed event types.
const (
	EventPositionOpened = "position_opened"
	EventPositionClosed = "position_closed"
	EventStreakAchieved = "streak_achieved"
	EventWhaleTrade     = "whale_trade"
	EventBadgeEarned    = "badge_earned"
)

// Period is a leaderboard time window.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodAllTime Period = "all_time"
)

// Metric is a leaderboard sort dimension.
type Metric string

const (
	MetricPnL      Metric = "pnl"
	MetricROI      Metric = "roi"
	MetricAccuracy Metric = "accuracy"
	MetricStreak   Metric = "streak"
	MetricVolume   Metric = "volume"
)

// Periods and Metrics enumerate the full leaderboard cross-product.
var (
	Periods = []Period{PeriodDaily, PeriodWeekly, PeriodAllTime}
	Metrics = []Metric{MetricPnL, MetricROI, MetricAccuracy, MetricStreak, MetricVolume}
)

// WhaleThreshold is the notional value (USD) at or above which a position
// open/close is surfaced as a whale trade.
var WhaleThreshold = decimal.NewFromInt(1000)

// NotableStreaks are the consecutive-winning-day counts that produce a
// streak_achieved feed event.
var NotableStreaks = map[int]bool{3: true, 5: true, 7: true, 10: true, 15: true, 20: true, 30: true}

// Market mirrors one upstream prediction market. Owned by the sync
// subsystem; read-only for analytics and feed.
type Market struct {
	ID        string          `json:"id" db:"id"` // upstream condition ID
	Question  string          `json:"question" db:"question"`
	Category  string          `json:"category,omitempty" db:"category"`
	Volume    decimal.Decimal `json:"volume" db:"volume"`
	Liquidity decimal.Decimal `json:"liquidity" db:"liquidity"`
	Active    bool            `json:"active" db:"active"`
	EndDate   time.Time       `json:"end_date,omitempty" db:"end_date"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Position is a user's exposure to one outcome of one market. Created on
// first fill sync, mutated on every refresh, never deleted — closed
// positions are retained for history.
//
// Invariant while active: UnrealizedPnL = Size * (CurrentPrice - AvgPrice).
// Once closed, RealizedPnL is frozen.
type Position struct {
	ID            string          `json:"id" db:"id"`
	UserID        string          `json:"user_id" db:"user_id"`
	MarketID      string          `json:"market_id" db:"market_id"`
	Outcome       string          `json:"outcome" db:"outcome"`
	Size          decimal.Decimal `json:"size" db:"size"`
	AvgPrice      decimal.Decimal `json:"avg_price" db:"avg_price"`
	CurrentPrice  decimal.Decimal `json:"current_price" db:"current_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl" db:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl" db:"realized_pnl"`
	Status        string          `json:"status" db:"status"` // "active" or "closed"
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// TradeEvent is an immutable record of one observed fill. TxHash is the
// dedup key against repeated syncs.
type TradeEvent struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	MarketID  string          `json:"market_id" db:"market_id"`
	Side      string          `json:"side" db:"side"` // "buy" or "sell"
	Outcome   string          `json:"outcome" db:"outcome"`
	Size      decimal.Decimal `json:"size" db:"size"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	TxHash    string          `json:"tx_hash" db:"tx_hash"`
}

// UserStats is the materialized per-user performance summary. Every field
// is a pure function of the user's current Position and TradeEvent sets —
// it is a cache, not a source of truth, and is always safe to rebuild.
type UserStats struct {
	UserID          string          `json:"user_id" db:"user_id"`
	TotalPnL        decimal.Decimal `json:"total_pnl" db:"total_pnl"`
	ROI             decimal.Decimal `json:"roi" db:"roi"`           // percent
	WinRate         decimal.Decimal `json:"win_rate" db:"win_rate"` // percent
	Accuracy        decimal.Decimal `json:"accuracy" db:"accuracy"` // percent, alias of win rate
	AvgPositionSize decimal.Decimal `json:"avg_position_size" db:"avg_position_size"`
	TradingStreak   int             `json:"trading_streak" db:"trading_streak"`
	TotalTrades     int             `json:"total_trades" db:"total_trades"`
	TotalVolume     decimal.Decimal `json:"total_volume" db:"total_volume"`
	ActiveMarkets   int             `json:"active_markets" db:"active_markets"`
	LastUpdated     time.Time       `json:"last_updated" db:"last_updated"`
}

// LeaderboardEntry is one row of a fully-replaceable ranked snapshot for a
// (period, metric) pair. Ranks form a dense 1..N sequence.
type LeaderboardEntry struct {
	Period    Period          `json:"period" db:"period"`
	Metric    Metric          `json:"metric" db:"metric"`
	Rank      int             `json:"rank" db:"rank"`
	UserID    string          `json:"user_id" db:"user_id"`
	Value     decimal.Decimal `json:"value" db:"value"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// FeedEvent is an immutable social activity record. Deleted only by the
// age-based retention cleanup.
type FeedEvent struct {
	ID        string         `json:"id" db:"id"`
	Type      string         `json:"type" db:"type"`
	UserID    string         `json:"user_id" db:"user_id"`
	MarketID  string         `json:"market_id,omitempty" db:"market_id"`
	Data      map[string]any `json:"data" db:"data"`
	Timestamp time.Time      `json:"timestamp" db:"timestamp"`
}

// UserBadge records a badge award. One row per (user, badge), ever.
type UserBadge struct {
	UserID   string    `json:"user_id" db:"user_id"`
	BadgeID  string    `json:"badge_id" db:"badge_id"`
	EarnedAt time.Time `json:"earned_at" db:"earned_at"`
}

// ValidPeriod reports whether p is a supported leaderboard period.
func ValidPeriod(p Period) bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodAllTime:
		return true
	}
	return false
}

// ValidMetric reports whether m is a supported leaderboard metric.
func ValidMetric(m Metric) bool {
	switch m {
	case MetricPnL, MetricROI, MetricAccuracy, MetricStreak, MetricVolume:
		return true
	}
	return false
}

// ValidEventType reports whether t is a known feed event type.
func ValidEventType(t string) bool {
	switch t {
	case EventPositionOpened, EventPositionClosed, EventStreakAchieved,
		EventWhaleTrade, EventBadgeEarned:
		return true
	}
	return false
}
