package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/praxis/social-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) UpsertMarket(ctx context.Context, m *model.Market) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (id, question, category, volume, liquidity, active, end_date, updated_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   question = EXCLUDED.question,
		   category = EXCLUDED.category,
		   volume = EXCLUDED.volume,
		   liquidity = EXCLUDED.liquidity,
		   active = EXCLUDED.active,
		   end_date = EXCLUDED.end_date,
		   updated_at = EXCLUDED.updated_at`,
		m.ID, m.Question, m.Category,
		m.Volume.String(), m.Liquidity.String(),
		m.Active, m.EndDate, m.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetMarket(ctx context.Context, id string) (*model.Market, error) {
	var m model.Market
	var volume, liquidity string

	err := s.pool.QueryRow(ctx,
		`SELECT id, question, COALESCE(category, ''),
		        volume::TEXT, liquidity::TEXT, active, end_date, updated_at
		 FROM markets WHERE id = $1`, id).
		Scan(&m.ID, &m.Question, &m.Category, &volume, &liquidity,
			&m.Active, &m.EndDate, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get market %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}

	m.Volume, _ = decimal.NewFromString(volume)
	m.Liquidity, _ = decimal.NewFromString(liquidity)

	return &m, nil
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, p *model.Position) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (id, user_id, market_id, outcome,
		   size, avg_price, current_price, unrealized_pnl, realized_pnl,
		   status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC,
		   $8::NUMERIC, $9::NUMERIC, $10, $11, $12)
		 ON CONFLICT (user_id, market_id, outcome) DO UPDATE SET
		   size = EXCLUDED.size,
		   avg_price = EXCLUDED.avg_price,
		   current_price = EXCLUDED.current_price,
		   unrealized_pnl = EXCLUDED.unrealized_pnl,
		   realized_pnl = EXCLUDED.realized_pnl,
		   status = EXCLUDED.status,
		   updated_at = EXCLUDED.updated_at`,
		p.ID, p.UserID, p.MarketID, p.Outcome,
		p.Size.String(), p.AvgPrice.String(), p.CurrentPrice.String(),
		p.UnrealizedPnL.String(), p.RealizedPnL.String(),
		p.Status, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

const positionColumns = `id, user_id, market_id, outcome,
	size::TEXT, avg_price::TEXT, current_price::TEXT,
	unrealized_pnl::TEXT, realized_pnl::TEXT,
	status, created_at, updated_at`

func (s *PostgresStore) GetPosition(ctx context.Context, userID, marketID, outcome string) (*model.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+`
		 FROM positions WHERE user_id = $1 AND market_id = $2 AND outcome = $3`,
		userID, marketID, outcome)

	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get position %s/%s/%s: %w", userID, marketID, outcome, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s/%s/%s: %w", userID, marketID, outcome, err)
	}
	return p, nil
}

func (s *PostgresStore) GetUserPositions(ctx context.Context, userID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+`
		 FROM positions WHERE user_id = $1 ORDER BY market_id, outcome`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

func (s *PostgresStore) InsertTradeEvent(ctx context.Context, e *model.TradeEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trade_events (id, user_id, market_id, side, outcome, size, price, timestamp, tx_hash)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8, $9)`,
		e.ID, e.UserID, e.MarketID, e.Side, e.Outcome,
		e.Size.String(), e.Price.String(), e.Timestamp, e.TxHash,
	)
	return err
}

func (s *PostgresStore) HasTradeByTxHash(ctx context.Context, userID, txHash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM trade_events WHERE user_id = $1 AND tx_hash = $2)`,
		userID, txHash).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) GetUserTrades(ctx context.Context, userID string) ([]model.TradeEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, market_id, side, outcome,
		        size::TEXT, price::TEXT, timestamp, tx_hash
		 FROM trade_events WHERE user_id = $1 ORDER BY timestamp`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.TradeEvent
	for rows.Next() {
		var e model.TradeEvent
		var sizeS, priceS string
		if err := rows.Scan(&e.ID, &e.UserID, &e.MarketID, &e.Side, &e.Outcome,
			&sizeS, &priceS, &e.Timestamp, &e.TxHash); err != nil {
			return nil, err
		}
		e.Size, _ = decimal.NewFromString(sizeS)
		e.Price, _ = decimal.NewFromString(priceS)
		trades = append(trades, e)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) UpsertUserStats(ctx context.Context, st *model.UserStats) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_stats (user_id, total_pnl, roi, win_rate, accuracy,
		   avg_position_size, trading_streak, total_trades, total_volume,
		   active_markets, last_updated)
		 VALUES ($1, $2::NUMERIC, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC,
		   $6::NUMERIC, $7, $8, $9::NUMERIC, $10, $11)
		 ON CONFLICT (user_id) DO UPDATE SET
		   total_pnl = EXCLUDED.total_pnl,
		   roi = EXCLUDED.roi,
		   win_rate = EXCLUDED.win_rate,
		   accuracy = EXCLUDED.accuracy,
		   avg_position_size = EXCLUDED.avg_position_size,
		   trading_streak = EXCLUDED.trading_streak,
		   total_trades = EXCLUDED.total_trades,
		   total_volume = EXCLUDED.total_volume,
		   active_markets = EXCLUDED.active_markets,
		   last_updated = EXCLUDED.last_updated`,
		st.UserID,
		st.TotalPnL.String(), st.ROI.String(), st.WinRate.String(), st.Accuracy.String(),
		st.AvgPositionSize.String(), st.TradingStreak, st.TotalTrades,
		st.TotalVolume.String(), st.ActiveMarkets, st.LastUpdated,
	)
	return err
}

const statsColumns = `user_id, total_pnl::TEXT, roi::TEXT, win_rate::TEXT,
	accuracy::TEXT, avg_position_size::TEXT, trading_streak, total_trades,
	total_volume::TEXT, active_markets, last_updated`

func (s *PostgresStore) GetUserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+statsColumns+` FROM user_stats WHERE user_id = $1`, userID)

	st, err := scanUserStats(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get stats %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get stats %s: %w", userID, err)
	}
	return st, nil
}

func (s *PostgresStore) ListQualifyingStats(ctx context.Context) ([]model.UserStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+statsColumns+`
		 FROM user_stats WHERE total_trades > 0 ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []model.UserStats
	for rows.Next() {
		st, err := scanUserStats(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, *st)
	}
	return stats, rows.Err()
}

func (s *PostgresStore) ListActiveUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM positions
		 UNION
		 SELECT user_id FROM trade_events
		 ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplaceLeaderboard swaps the cache partition inside a transaction so a
// reader never sees rows from two generations at once.
func (s *PostgresStore) ReplaceLeaderboard(ctx context.Context, period model.Period, metric model.Metric, entries []model.LeaderboardEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("replace leaderboard %s/%s: %w", period, metric, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM leaderboard_cache WHERE period = $1 AND metric = $2`,
		string(period), string(metric)); err != nil {
		return fmt.Errorf("replace leaderboard %s/%s: %w", period, metric, err)
	}

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO leaderboard_cache (period, metric, rank, user_id, value, updated_at)
			 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6)`,
			string(e.Period), string(e.Metric), e.Rank, e.UserID,
			e.Value.String(), e.UpdatedAt); err != nil {
			return fmt.Errorf("replace leaderboard %s/%s: %w", period, metric, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetLeaderboard(ctx context.Context, period model.Period, metric model.Metric, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT period, metric, rank, user_id, value::TEXT, updated_at
		 FROM leaderboard_cache
		 WHERE period = $1 AND metric = $2
		 ORDER BY rank
		 LIMIT NULLIF($3, 0)`,
		string(period), string(metric), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLeaderboardEntries(rows)
}

func (s *PostgresStore) GetUserRankings(ctx context.Context, userID string) ([]model.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT period, metric, rank, user_id, value::TEXT, updated_at
		 FROM leaderboard_cache WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLeaderboardEntries(rows)
}

func (s *PostgresStore) InsertFeedEvent(ctx context.Context, e *model.FeedEvent) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("insert feed event: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO feed_events (id, type, user_id, market_id, data, timestamp)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`,
		e.ID, e.Type, e.UserID, e.MarketID, data, e.Timestamp,
	)
	return err
}

func (s *PostgresStore) QueryFeed(ctx context.Context, f FeedFilter) ([]model.FeedEvent, int, error) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.UserIDs != nil {
		conds = append(conds, "user_id = ANY("+arg(f.UserIDs)+")")
	} else if f.UserID != "" {
		conds = append(conds, "user_id = "+arg(f.UserID))
	}
	if f.MarketID != "" {
		conds = append(conds, "market_id = "+arg(f.MarketID))
	}
	if f.Type != "" {
		conds = append(conds, "type = "+arg(f.Type))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM feed_events`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, type, user_id, COALESCE(market_id, ''), data, timestamp
		 FROM feed_events` + where +
		` ORDER BY timestamp DESC OFFSET ` + arg(f.Offset) + ` LIMIT ` + arg(f.Limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []model.FeedEvent
	for rows.Next() {
		var e model.FeedEvent
		var data []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.UserID, &e.MarketID, &data, &e.Timestamp); err != nil {
			return nil, 0, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, 0, fmt.Errorf("decode feed event %s: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

func (s *PostgresStore) DeleteFeedEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM feed_events WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) AddFollow(ctx context.Context, followerID, followingID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO follows (follower_id, following_id)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		followerID, followingID)
	return err
}

func (s *PostgresStore) GetFollowing(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT following_id FROM follows WHERE follower_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) AwardBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO user_badges (user_id, badge_id, earned_at)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		userID, badgeID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetUserBadges(ctx context.Context, userID string) ([]model.UserBadge, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, badge_id, earned_at
		 FROM user_badges WHERE user_id = $1 ORDER BY badge_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var badges []model.UserBadge
	for rows.Next() {
		var b model.UserBadge
		if err := rows.Scan(&b.UserID, &b.BadgeID, &b.EarnedAt); err != nil {
			return nil, err
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// --- Row scanning helpers ---

type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row pgxRow) (*model.Position, error) {
	var p model.Position
	var sizeS, avgS, curS, unrealS, realS string

	if err := row.Scan(&p.ID, &p.UserID, &p.MarketID, &p.Outcome,
		&sizeS, &avgS, &curS, &unrealS, &realS,
		&p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	p.Size, _ = decimal.NewFromString(sizeS)
	p.AvgPrice, _ = decimal.NewFromString(avgS)
	p.CurrentPrice, _ = decimal.NewFromString(curS)
	p.UnrealizedPnL, _ = decimal.NewFromString(unrealS)
	p.RealizedPnL, _ = decimal.NewFromString(realS)

	return &p, nil
}

func scanUserStats(row pgxRow) (*model.UserStats, error) {
	var st model.UserStats
	var pnlS, roiS, winS, accS, avgS, volS string

	if err := row.Scan(&st.UserID, &pnlS, &roiS, &winS, &accS, &avgS,
		&st.TradingStreak, &st.TotalTrades, &volS,
		&st.ActiveMarkets, &st.LastUpdated); err != nil {
		return nil, err
	}

	st.TotalPnL, _ = decimal.NewFromString(pnlS)
	st.ROI, _ = decimal.NewFromString(roiS)
	st.WinRate, _ = decimal.NewFromString(winS)
	st.Accuracy, _ = decimal.NewFromString(accS)
	st.AvgPositionSize, _ = decimal.NewFromString(avgS)
	st.TotalVolume, _ = decimal.NewFromString(volS)

	return &st, nil
}

func scanLeaderboardEntries(rows pgx.Rows) ([]model.LeaderboardEntry, error) {
	var entries []model.LeaderboardEntry
	for rows.Next() {
		var e model.LeaderboardEntry
		var period, metric, valueS string
		if err := rows.Scan(&period, &metric, &e.Rank, &e.UserID, &valueS, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Period = model.Period(period)
		e.Metric = model.Metric(metric)
		e.Value, _ = decimal.NewFromString(valueS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
