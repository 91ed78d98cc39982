// Package analytics derives per-user trading statistics from synced
// positions and trade history.
//
// All monetary values use shopspring/decimal — never float64 for money.
package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/praxis/social-engine/internal/model"
)

// CalculateStreak returns the number of consecutive most-recent trading
// days with strictly positive aggregate day PnL, walking backward from the
// latest trade and stopping at the first non-positive day.
//
// Day PnL is a cash-flow proxy: sells contribute +size*price, buys
// contribute -size*price. It does not net against cost basis across days.
// The streak counts trading days present in history — calendar gaps with
// no trades do not break it.
func CalculateStreak(trades []model.TradeEvent) int {
	if len(trades) == 0 {
		return 0
	}

	// Aggregate PnL per UTC calendar day.
	dayPnL := make(map[string]decimal.Decimal)
	for _, t := range trades {
		day := t.Timestamp.UTC().Format("2006-01-02")
		value := t.Size.Mul(t.Price)
		if t.Side == model.SideBuy {
			value = value.Neg()
		}
		dayPnL[day] = dayPnL[day].Add(value)
	}

	days := make([]string, 0, len(dayPnL))
	for day := range dayPnL {
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))

	streak := 0
	for _, day := range days {
		if !dayPnL[day].IsPositive() {
			break
		}
		streak++
	}
	return streak
}
