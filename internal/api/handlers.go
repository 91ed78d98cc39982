// Package api provides the HTTP handlers for user stats, leaderboards,
// the social feed, and upstream sync triggers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/praxis/social-engine/internal/analytics"
	"github.com/praxis/social-engine/internal/feed"
	"github.com/praxis/social-engine/internal/leaderboard"
	"github.com/praxis/social-engine/internal/model"
	"github.com/praxis/social-engine/internal/store"
	enginesync "github.com/praxis/social-engine/internal/sync"
)

// Service bundles the domain services behind the HTTP surface.
type Service struct {
	store       store.Store
	analytics   *analytics.Service
	leaderboard *leaderboard.Service
	feed        *feed.Service
	sync        *enginesync.Service // optional; nil disables sync routes
}

// NewService creates the API service. sync may be nil when no upstream
// client is configured.
func NewService(st store.Store, an *analytics.Service, lb *leaderboard.Service, fd *feed.Service, sy *enginesync.Service) *Service {
	return &Service{store: st, analytics: an, leaderboard: lb, feed: fd, sync: sy}
}

// GetUserStats handles GET /api/v1/users/{userID}/stats
func (s *Service) GetUserStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	stats, err := s.store.GetUserStats(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "stats not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to load stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// RecomputeUserStats handles POST /api/v1/users/{userID}/stats/recompute
// Rebuilds the user's stats from their positions and trades.
func (s *Service) RecomputeUserStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	stats, err := s.analytics.Recompute(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to recompute stats", http.StatusInternalServerError)
		return
	}
	if stats == nil {
		writeError(w, "no trading activity for user", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// GetUserRankings handles GET /api/v1/users/{userID}/rankings
// Returns the user's cached rank across every leaderboard.
func (s *Service) GetUserRankings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	rankings, err := s.leaderboard.UserRankings(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load rankings", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rankings)
}

// GetLeaderboard handles GET /api/v1/leaderboard/{period}/{metric}
// Optional ?limit= caps the page size.
func (s *Service) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	period := model.Period(chi.URLParam(r, "period"))
	metric := model.Metric(chi.URLParam(r, "metric"))

	if !model.ValidPeriod(period) {
		writeError(w, "period must be daily, weekly, or all_time", http.StatusBadRequest)
		return
	}
	if !model.ValidMetric(metric) {
		writeError(w, "metric must be pnl, roi, accuracy, streak, or volume", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.leaderboard.Get(r.Context(), period, metric, limit)
	if err != nil {
		writeError(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"period":  period,
		"metric":  metric,
		"entries": entries,
	})
}

// CalculateLeaderboards handles POST /api/v1/leaderboard/calculate
// Recalculates every (period, metric) pair.
func (s *Service) CalculateLeaderboards(w http.ResponseWriter, r *http.Request) {
	calculated := s.leaderboard.CalculateAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"calculated": calculated})
}

// GetFeed handles GET /api/v1/feed
// Filters: ?user_id=, ?following_of=, ?market_id=, ?type=. Pagination:
// ?page= and ?limit=.
func (s *Service) GetFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if t := q.Get("type"); t != "" && !model.ValidEventType(t) {
		writeError(w, "unknown event type: "+t, http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := s.feed.GetFeed(r.Context(), feed.Filter{
		UserID:      q.Get("user_id"),
		FollowingOf: q.Get("following_of"),
		MarketID:    q.Get("market_id"),
		Type:        q.Get("type"),
	}, page, limit)
	if err != nil {
		writeError(w, "failed to load feed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RecordFeedEventRequest is the JSON body for POST /api/v1/feed.
type RecordFeedEventRequest struct {
	Type     string         `json:"type"`
	UserID   string         `json:"user_id"`
	MarketID string         `json:"market_id,omitempty"`
	Data     map[string]any `json:"data"`
}

// RecordFeedEvent handles POST /api/v1/feed
// Appends a feed event directly, outside the sync/analytics hooks.
func (s *Service) RecordFeedEvent(w http.ResponseWriter, r *http.Request) {
	var req RecordFeedEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !model.ValidEventType(req.Type) {
		writeError(w, "unknown event type: "+req.Type, http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	event, err := s.feed.Record(r.Context(), req.Type, req.UserID, req.MarketID, req.Data)
	if err != nil {
		writeError(w, "failed to record feed event", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// CleanupFeed handles POST /api/v1/feed/cleanup
// Optional ?days= overrides the retention window.
func (s *Service) CleanupFeed(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	deleted, err := s.feed.Cleanup(r.Context(), days)
	if err != nil {
		writeError(w, "failed to clean up feed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// FollowRequest is the JSON body for POST /api/v1/users/{userID}/follow.
type FollowRequest struct {
	FolloweeID string `json:"followee_id"`
}

// Follow handles POST /api/v1/users/{userID}/follow
func (s *Service) Follow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req FollowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FolloweeID == "" {
		writeError(w, "followee_id is required", http.StatusBadRequest)
		return
	}
	if req.FolloweeID == userID {
		writeError(w, "cannot follow yourself", http.StatusBadRequest)
		return
	}

	if err := s.store.AddFollow(r.Context(), userID, req.FolloweeID); err != nil {
		writeError(w, "failed to record follow", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"follower_id": userID,
		"followee_id": req.FolloweeID,
	})
}

// GetUserBadges handles GET /api/v1/users/{userID}/badges
func (s *Service) GetUserBadges(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	badges, err := s.store.GetUserBadges(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load badges", http.StatusInternalServerError)
		return
	}
	if badges == nil {
		badges = []model.UserBadge{}
	}

	writeJSON(w, http.StatusOK, badges)
}

// SyncMarkets handles POST /api/v1/sync/markets
func (s *Service) SyncMarkets(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		writeError(w, "sync is not configured", http.StatusServiceUnavailable)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	synced, err := s.sync.SyncMarkets(r.Context(), limit)
	if err != nil {
		writeError(w, "market sync failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"synced": synced})
}

// SyncUser handles POST /api/v1/users/{userID}/sync
// Pulls the user's positions and trades, then recomputes their stats.
func (s *Service) SyncUser(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		writeError(w, "sync is not configured", http.StatusServiceUnavailable)
		return
	}
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	positions, err := s.sync.SyncUserPositions(ctx, userID)
	if err != nil {
		writeError(w, "position sync failed", http.StatusBadGateway)
		return
	}
	trades, err := s.sync.SyncUserTrades(ctx, userID, 0)
	if err != nil {
		writeError(w, "trade sync failed", http.StatusBadGateway)
		return
	}

	if _, err := s.analytics.Recompute(ctx, userID); err != nil {
		writeError(w, "stats recompute failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"positions": positions,
		"trades":    trades,
	})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
