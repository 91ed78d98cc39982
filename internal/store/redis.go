package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/praxis/social-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot read paths: user stats, leaderboard pages, and mirrored
// markets. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
type CachedStore struct {
	Store
	rdb *redis.Client
	ttl time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Store: primary,
		rdb:   rdb,
		ttl:   ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) UpsertMarket(ctx context.Context, m *model.Market) error {
	if err := s.Store.UpsertMarket(ctx, m); err != nil {
		return err
	}
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.ID), data, s.ttl)
	}
	return nil
}

func (s *CachedStore) UpsertUserStats(ctx context.Context, st *model.UserStats) error {
	if err := s.Store.UpsertUserStats(ctx, st); err != nil {
		return err
	}
	// Invalidate; next read will re-populate.
	s.rdb.Del(ctx, statsKey(st.UserID))
	return nil
}

func (s *CachedStore) ReplaceLeaderboard(ctx context.Context, period model.Period, metric model.Metric, entries []model.LeaderboardEntry) error {
	if err := s.Store.ReplaceLeaderboard(ctx, period, metric, entries); err != nil {
		return err
	}
	// Drop every cached page of this partition (keys vary by limit).
	if keys, err := s.rdb.Keys(ctx, leaderboardKey(period, metric, 0)+"*").Result(); err == nil && len(keys) > 0 {
		s.rdb.Del(ctx, keys...)
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err == nil {
		var m model.Market
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.Store.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(id), data, s.ttl)
	}
	return m, nil
}

func (s *CachedStore) GetUserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	data, err := s.rdb.Get(ctx, statsKey(userID)).Bytes()
	if err == nil {
		var st model.UserStats
		if json.Unmarshal(data, &st) == nil {
			return &st, nil
		}
	}

	st, err := s.Store.GetUserStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(st); err == nil {
		s.rdb.Set(ctx, statsKey(userID), data, s.ttl)
	}
	return st, nil
}

func (s *CachedStore) GetLeaderboard(ctx context.Context, period model.Period, metric model.Metric, limit int) ([]model.LeaderboardEntry, error) {
	key := leaderboardKey(period, metric, limit)

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var entries []model.LeaderboardEntry
		if json.Unmarshal(data, &entries) == nil {
			return entries, nil
		}
	}

	entries, err := s.Store.GetLeaderboard(ctx, period, metric, limit)
	if err != nil {
		return nil, err
	}

	// Only cache non-empty pages so the ranker's self-heal path always
	// reaches the primary store.
	if len(entries) > 0 {
		if data, err := json.Marshal(entries); err == nil {
			s.rdb.Set(ctx, key, data, s.ttl)
		}
	}
	return entries, nil
}

// --- Cache keys ---

func marketKey(id string) string { return fmt.Sprintf("market:%s", id) }
func statsKey(uid string) string { return fmt.Sprintf("stats:%s", uid) }

func leaderboardKey(period model.Period, metric model.Metric, limit int) string {
	if limit == 0 {
		return fmt.Sprintf("leaderboard:%s:%s:", period, metric)
	}
	return fmt.Sprintf("leaderboard:%s:%s:%d", period, metric, limit)
}
