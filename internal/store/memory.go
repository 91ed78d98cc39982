package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/praxis/social-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	markets     map[string]*model.Market
	positions   map[string]*model.Position // keyed user|market|outcome
	trades      []model.TradeEvent
	stats       map[string]*model.UserStats
	leaderboard map[string][]model.LeaderboardEntry // keyed period|metric
	feed        []model.FeedEvent
	follows     map[string][]string
	badges      map[string]map[string]time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets:     make(map[string]*model.Market),
		positions:   make(map[string]*model.Position),
		stats:       make(map[string]*model.UserStats),
		leaderboard: make(map[string][]model.LeaderboardEntry),
		follows:     make(map[string][]string),
		badges:      make(map[string]map[string]time.Time),
	}
}

func positionKey(userID, marketID, outcome string) string {
	return userID + "|" + marketID + "|" + outcome
}

func partitionKey(period model.Period, metric model.Metric) string {
	return string(period) + "|" + string(metric)
}

func (s *MemoryStore) UpsertMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *m
	s.markets[m.ID] = &copy
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id string) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("get market %s: %w", id, ErrNotFound)
	}
	copy := *m
	return &copy, nil
}

func (s *MemoryStore) UpsertPosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.positions[positionKey(p.UserID, p.MarketID, p.Outcome)] = &copy
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, userID, marketID, outcome string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[positionKey(userID, marketID, outcome)]
	if !ok {
		return nil, fmt.Errorf("get position %s/%s/%s: %w", userID, marketID, outcome, ErrNotFound)
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) GetUserPositions(_ context.Context, userID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Position
	for _, p := range s.positions {
		if p.UserID == userID {
			result = append(result, *p)
		}
	}
	// Deterministic enumeration for reproducible aggregation.
	sort.Slice(result, func(i, j int) bool {
		if result[i].MarketID != result[j].MarketID {
			return result[i].MarketID < result[j].MarketID
		}
		return result[i].Outcome < result[j].Outcome
	})
	return result, nil
}

func (s *MemoryStore) InsertTradeEvent(_ context.Context, e *model.TradeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, *e)
	return nil
}

func (s *MemoryStore) HasTradeByTxHash(_ context.Context, userID, txHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.trades {
		if t.UserID == userID && t.TxHash == txHash {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetUserTrades(_ context.Context, userID string) ([]model.TradeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TradeEvent
	for _, t := range s.trades {
		if t.UserID == userID {
			result = append(result, t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func (s *MemoryStore) UpsertUserStats(_ context.Context, st *model.UserStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *st
	s.stats[st.UserID] = &copy
	return nil
}

func (s *MemoryStore) GetUserStats(_ context.Context, userID string) (*model.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stats[userID]
	if !ok {
		return nil, fmt.Errorf("get stats %s: %w", userID, ErrNotFound)
	}
	copy := *st
	return &copy, nil
}

func (s *MemoryStore) ListQualifyingStats(_ context.Context) ([]model.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.UserStats
	for _, st := range s.stats {
		if st.TotalTrades > 0 {
			result = append(result, *st)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

func (s *MemoryStore) ListActiveUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, p := range s.positions {
		seen[p.UserID] = true
	}
	for _, t := range s.trades {
		seen[t.UserID] = true
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ReplaceLeaderboard(_ context.Context, period model.Period, metric model.Metric, entries []model.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	replacement := make([]model.LeaderboardEntry, len(entries))
	copy(replacement, entries)
	s.leaderboard[partitionKey(period, metric)] = replacement
	return nil
}

func (s *MemoryStore) GetLeaderboard(_ context.Context, period model.Period, metric model.Metric, limit int) ([]model.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.leaderboard[partitionKey(period, metric)]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	result := make([]model.LeaderboardEntry, len(entries))
	copy(result, entries)
	return result, nil
}

func (s *MemoryStore) GetUserRankings(_ context.Context, userID string) ([]model.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LeaderboardEntry
	for _, entries := range s.leaderboard {
		for _, e := range entries {
			if e.UserID == userID {
				result = append(result, e)
			}
		}
	}
	return result, nil
}

func (s *MemoryStore) InsertFeedEvent(_ context.Context, e *model.FeedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.feed = append(s.feed, *e)
	return nil
}

func (s *MemoryStore) QueryFeed(_ context.Context, f FeedFilter) ([]model.FeedEvent, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var allowed map[string]bool
	if f.UserIDs != nil {
		allowed = make(map[string]bool, len(f.UserIDs))
		for _, id := range f.UserIDs {
			allowed[id] = true
		}
	}

	var matches []model.FeedEvent
	for _, e := range s.feed {
		if allowed != nil {
			if !allowed[e.UserID] {
				continue
			}
		} else if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.MarketID != "" && e.MarketID != f.MarketID {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		matches = append(matches, e)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Timestamp.After(matches[j].Timestamp)
	})

	total := len(matches)
	if f.Offset >= total {
		return []model.FeedEvent{}, total, nil
	}
	matches = matches[f.Offset:]
	if f.Limit > 0 && len(matches) > f.Limit {
		matches = matches[:f.Limit]
	}
	return matches, total, nil
}

func (s *MemoryStore) DeleteFeedEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []model.FeedEvent
	var deleted int64
	for _, e := range s.feed {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.feed = kept
	return deleted, nil
}

func (s *MemoryStore) AddFollow(_ context.Context, followerID, followingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.follows[followerID] {
		if id == followingID {
			return nil
		}
	}
	s.follows[followerID] = append(s.follows[followerID], followingID)
	return nil
}

func (s *MemoryStore) GetFollowing(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	following := make([]string, len(s.follows[userID]))
	copy(following, s.follows[userID])
	return following, nil
}

func (s *MemoryStore) AwardBadge(_ context.Context, userID, badgeID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	earned, ok := s.badges[userID]
	if !ok {
		earned = make(map[string]time.Time)
		s.badges[userID] = earned
	}
	if _, held := earned[badgeID]; held {
		return false, nil
	}
	earned[badgeID] = at
	return true, nil
}

func (s *MemoryStore) GetUserBadges(_ context.Context, userID string) ([]model.UserBadge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.UserBadge
	for badgeID, at := range s.badges[userID] {
		result = append(result, model.UserBadge{UserID: userID, BadgeID: badgeID, EarnedAt: at})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BadgeID < result[j].BadgeID })
	return result, nil
}
