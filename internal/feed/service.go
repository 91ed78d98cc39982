// Package feed appends and queries the social activity log: position
// opens/closes, whale trades, streak milestones, and badge awards.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/praxis/social-engine/internal/badge"
	"github.com/praxis/social-engine/internal/metrics"
	"github.com/praxis/social-engine/internal/model"
	"github.com/praxis/social-engine/internal/store"
)

// DefaultRetentionDays is how long feed events are kept by Cleanup when
// the caller does not override it.
const DefaultRetentionDays = 30

// Service records and serves feed events. The On* hooks are best-effort:
// they log and suppress failures so they can never fail the triggering
// action (position sync, stats recompute).
type Service struct {
	store store.Store
	hub   *Hub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a feed service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, hub *Hub) *Service {
	return &Service{store: st, hub: hub}
}

// Record appends one immutable feed event and broadcasts it to connected
// subscribers. marketID may be empty for events not tied to a market.
func (s *Service) Record(ctx context.Context, eventType, userID, marketID string, data map[string]any) (*model.FeedEvent, error) {
	event := &model.FeedEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		UserID:    userID,
		MarketID:  marketID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	if err := s.store.InsertFeedEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("record feed event %s: %w", eventType, err)
	}

	metrics.FeedEventsTotal.WithLabelValues(eventType).Inc()
	slog.Info("feed event recorded", "type", eventType, "user", userID)

	if s.hub != nil {
		s.hub.Broadcast(event)
	}
	return event, nil
}

// OnPositionOpened emits position_opened, or whale_trade when the opening
// notional value (size * avg price) meets the whale threshold.
func (s *Service) OnPositionOpened(ctx context.Context, p *model.Position) {
	value := p.Size.Mul(p.AvgPrice)

	data := map[string]any{
		"position_id": p.ID,
		"outcome":     p.Outcome,
		"size":        p.Size.String(),
		"price":       p.AvgPrice.String(),
		"value":       value.String(),
	}

	eventType := model.EventPositionOpened
	if value.GreaterThanOrEqual(model.WhaleThreshold) {
		eventType = model.EventWhaleTrade
		data["action"] = "opened"
	}

	if _, err := s.Record(ctx, eventType, p.UserID, p.MarketID, data); err != nil {
		s.suppress("position opened", err)
	}
}

// OnPositionClosed emits position_closed, or whale_trade when the closing
// notional value (size * current price) meets the whale threshold. The
// payload carries the realized PnL either way.
func (s *Service) OnPositionClosed(ctx context.Context, p *model.Position) {
	value := p.Size.Mul(p.CurrentPrice)

	data := map[string]any{
		"position_id": p.ID,
		"outcome":     p.Outcome,
		"size":        p.Size.String(),
		"price":       p.CurrentPrice.String(),
		"value":       value.String(),
		"pnl":         p.RealizedPnL.String(),
	}

	eventType := model.EventPositionClosed
	if value.GreaterThanOrEqual(model.WhaleThreshold) {
		eventType = model.EventWhaleTrade
		data["action"] = "closed"
	}

	if _, err := s.Record(ctx, eventType, p.UserID, p.MarketID, data); err != nil {
		s.suppress("position closed", err)
	}
}

// OnStreakAchieved emits streak_achieved for notable streak values only.
// Fires on every recompute that lands on a notable value — there is no
// already-notified guard.
func (s *Service) OnStreakAchieved(ctx context.Context, userID string, streak int) {
	if !model.NotableStreaks[streak] {
		return
	}
	if _, err := s.Record(ctx, model.EventStreakAchieved, userID, "", map[string]any{"streak": streak}); err != nil {
		s.suppress("streak achieved", err)
	}
}

// OnBadgeEarned emits badge_earned. Unknown badge IDs are a silent no-op.
func (s *Service) OnBadgeEarned(ctx context.Context, userID, badgeID string) {
	b, ok := badge.Lookup(badgeID)
	if !ok {
		return
	}
	data := map[string]any{
		"badge_id":          b.ID,
		"badge_name":        b.Name,
		"badge_description": b.Description,
	}
	if _, err := s.Record(ctx, model.EventBadgeEarned, userID, "", data); err != nil {
		s.suppress("badge earned", err)
	}
}

func (s *Service) suppress(hook string, err error) {
	metrics.FeedEventsDropped.Inc()
	slog.Error("feed emission failed", "hook", hook, "err", err)
}

// Filter selects feed events; all set fields apply conjunctively.
// FollowingOf restricts to events from users the given user follows.
type Filter struct {
	UserID      string
	FollowingOf string
	MarketID    string
	Type        string
}

// Page is one page of feed events, newest first.
type Page struct {
	Events     []model.FeedEvent `json:"events"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

// GetFeed returns a filtered, paginated view of the feed. A FollowingOf
// filter for a user who follows nobody yields an explicitly empty page,
// not the global feed.
func (s *Service) GetFeed(ctx context.Context, f Filter, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	sf := store.FeedFilter{
		UserID:   f.UserID,
		MarketID: f.MarketID,
		Type:     f.Type,
		Offset:   (page - 1) * limit,
		Limit:    limit,
	}

	if f.FollowingOf != "" {
		following, err := s.store.GetFollowing(ctx, f.FollowingOf)
		if err != nil {
			return nil, fmt.Errorf("get feed: resolve following of %s: %w", f.FollowingOf, err)
		}
		if len(following) == 0 {
			return &Page{Events: []model.FeedEvent{}, Page: page, Limit: limit}, nil
		}
		sf.UserIDs = following
	}

	events, total, err := s.store.QueryFeed(ctx, sf)
	if err != nil {
		return nil, fmt.Errorf("get feed: %w", err)
	}
	if events == nil {
		events = []model.FeedEvent{}
	}

	return &Page{
		Events:     events,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// Cleanup deletes feed events older than daysToKeep days and returns the
// deleted count. An explicit maintenance operation, never triggered by
// reads or writes.
func (s *Service) Cleanup(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		daysToKeep = DefaultRetentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep)

	deleted, err := s.store.DeleteFeedEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup feed: %w", err)
	}

	slog.Info("feed cleanup complete", "deleted", deleted, "days_kept", daysToKeep)
	return deleted, nil
}
