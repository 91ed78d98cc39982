// Package store defines the persistence interface for the social trading
// engine. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/praxis/social-engine/internal/model"
)

// ErrNotFound is returned when a requested row does not exist. Callers use
// it to distinguish "never computed" from storage failures.
var ErrNotFound = errors.New("store: not found")

// FeedFilter is a conjunctive filter over feed events. Zero values mean
// "no constraint". UserIDs, when non-nil, restricts to membership in the
// given set (used for following feeds) and takes precedence over UserID.
type FeedFilter struct {
	UserID   string
	UserIDs  []string
	MarketID string
	Type     string
	Offset   int
	Limit    int
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
//
// Positions, trade events, markets, and follows are owned by the sync and
// social subsystems; the analytics core only reads them. UserStats and
// leaderboard partitions are owned by the aggregator and ranker and are
// always written as whole-row / whole-partition replacements.
type Store interface {
	// --- Markets (written by sync) ---

	// UpsertMarket creates or refreshes a mirrored market.
	UpsertMarket(ctx context.Context, m *model.Market) error

	// GetMarket retrieves a market by its condition ID.
	GetMarket(ctx context.Context, id string) (*model.Market, error)

	// --- Positions (written by sync, read by analytics) ---

	// UpsertPosition creates or refreshes a position keyed by
	// (user, market, outcome).
	UpsertPosition(ctx context.Context, p *model.Position) error

	// GetPosition retrieves one position by its natural key.
	GetPosition(ctx context.Context, userID, marketID, outcome string) (*model.Position, error)

	// GetUserPositions returns all positions for a user, open and closed.
	GetUserPositions(ctx context.Context, userID string) ([]model.Position, error)

	// --- Immutable trade ledger (written by sync, read by analytics) ---

	// InsertTradeEvent appends an immutable fill record.
	InsertTradeEvent(ctx context.Context, e *model.TradeEvent) error

	// HasTradeByTxHash reports whether a fill was already recorded.
	HasTradeByTxHash(ctx context.Context, userID, txHash string) (bool, error)

	// GetUserTrades returns all fills for a user, oldest first.
	GetUserTrades(ctx context.Context, userID string) ([]model.TradeEvent, error)

	// --- User stats (owned by the aggregator) ---

	// UpsertUserStats replaces the full stats row for a user atomically.
	UpsertUserStats(ctx context.Context, s *model.UserStats) error

	// GetUserStats returns the stats row or ErrNotFound.
	GetUserStats(ctx context.Context, userID string) (*model.UserStats, error)

	// ListQualifyingStats returns stats rows with at least one trade.
	ListQualifyingStats(ctx context.Context) ([]model.UserStats, error)

	// ListActiveUserIDs returns the distinct users that have positions or
	// trades, for the bulk analytics refresh.
	ListActiveUserIDs(ctx context.Context) ([]string, error)

	// --- Leaderboard cache (owned by the ranker) ---

	// ReplaceLeaderboard atomically swaps the full cache partition for a
	// (period, metric) pair: delete everything, insert the new entries.
	ReplaceLeaderboard(ctx context.Context, period model.Period, metric model.Metric, entries []model.LeaderboardEntry) error

	// GetLeaderboard returns cached entries ordered by rank ascending.
	GetLeaderboard(ctx context.Context, period model.Period, metric model.Metric, limit int) ([]model.LeaderboardEntry, error)

	// GetUserRankings returns all cached entries for one user across every
	// (period, metric) pair that currently ranks them.
	GetUserRankings(ctx context.Context, userID string) ([]model.LeaderboardEntry, error)

	// --- Feed log ---

	// InsertFeedEvent appends an immutable activity record.
	InsertFeedEvent(ctx context.Context, e *model.FeedEvent) error

	// QueryFeed returns a page of events matching the filter, newest
	// first, plus the total match count.
	QueryFeed(ctx context.Context, f FeedFilter) ([]model.FeedEvent, int, error)

	// DeleteFeedEventsBefore removes events older than cutoff and returns
	// the deleted count.
	DeleteFeedEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// --- Follow graph (owned by the social subsystem) ---

	// AddFollow records that follower follows following.
	AddFollow(ctx context.Context, followerID, followingID string) error

	// GetFollowing returns the user IDs that userID follows.
	GetFollowing(ctx context.Context, userID string) ([]string, error)

	// --- Badges ---

	// AwardBadge records a badge award. Returns true if the badge was
	// newly awarded, false if the user already held it.
	AwardBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error)

	// GetUserBadges returns all badges a user has earned.
	GetUserBadges(ctx context.Context, userID string) ([]model.UserBadge, error)
}
