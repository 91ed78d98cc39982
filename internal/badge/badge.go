// Package badge holds the static badge registry and the criteria checks
// that run after a stats recompute.
package badge

import (
	"github.com/shopspring/decimal"

	"github.com/praxis/social-engine/internal/model"
)

// Badge IDs.
const (
	HotHand      = "hot_hand"
	Oracle       = "oracle"
	Whale        = "whale"
	Sharpshooter = "sharpshooter"
	Grinder      = "grinder"
)

// Badge describes one earnable achievement.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var registry = map[string]Badge{
	HotHand:      {ID: HotHand, Name: "Hot Hand", Description: "Achieve a 3-day winning streak"},
	Oracle:       {ID: Oracle, Name: "Oracle", Description: "Make 10 correct predictions"},
	Whale:        {ID: Whale, Name: "Whale", Description: "Reach $10,000 in total trading volume"},
	Sharpshooter: {ID: Sharpshooter, Name: "Sharpshooter", Description: "Achieve 70% accuracy"},
	Grinder:      {ID: Grinder, Name: "Grinder", Description: "Complete 100 trades"},
}

// Criteria thresholds.
var (
	hotHandStreak       = 3
	oracleCorrect       = 10
	whaleVolume         = decimal.NewFromInt(10000)
	sharpshooterPercent = decimal.NewFromInt(70)
	grinderTrades       = 100
)

// Lookup resolves a badge by ID. The second return is false for unknown
// IDs — callers treat that as a silent no-op.
func Lookup(id string) (Badge, bool) {
	b, ok := registry[id]
	return b, ok
}

// All returns every badge in the registry, for presentation.
func All() []Badge {
	return []Badge{
		registry[HotHand],
		registry[Oracle],
		registry[Whale],
		registry[Sharpshooter],
		registry[Grinder],
	}
}

// Eligible returns the badges whose criteria the given stats satisfy.
// winningClosed is the count of closed positions with positive realized
// PnL (the "correct predictions" proxy).
func Eligible(stats *model.UserStats, winningClosed int) []Badge {
	var earned []Badge

	if stats.TradingStreak >= hotHandStreak {
		earned = append(earned, registry[HotHand])
	}
	if winningClosed >= oracleCorrect {
		earned = append(earned, registry[Oracle])
	}
	if stats.TotalVolume.GreaterThanOrEqual(whaleVolume) {
		earned = append(earned, registry[Whale])
	}
	if stats.Accuracy.GreaterThanOrEqual(sharpshooterPercent) && winningClosed > 0 {
		earned = append(earned, registry[Sharpshooter])
	}
	if stats.TotalTrades >= grinderTrades {
		earned = append(earned, registry[Grinder])
	}

	return earned
}
