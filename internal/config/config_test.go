package config_test

import (
	"testing"
	"time"

	"github.com/praxis/social-engine/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STATS_INTERVAL", "")
	t.Setenv("FEED_RETENTION_DAYS", "")

	cfg := config.Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.StatsInterval != 10*time.Minute {
		t.Errorf("expected default stats interval 10m, got %s", cfg.StatsInterval)
	}
	if cfg.FeedRetentionDays != 30 {
		t.Errorf("expected default retention 30 days, got %d", cfg.FeedRetentionDays)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LEADERBOARD_INTERVAL", "15m")
	t.Setenv("FEED_RETENTION_DAYS", "7")
	t.Setenv("FEED_CLEANUP_INTERVAL", "not-a-duration")

	cfg := config.Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port override, got %s", cfg.Port)
	}
	if cfg.LeaderboardInterval != 15*time.Minute {
		t.Errorf("expected interval override, got %s", cfg.LeaderboardInterval)
	}
	if cfg.FeedRetentionDays != 7 {
		t.Errorf("expected retention override, got %d", cfg.FeedRetentionDays)
	}
	if cfg.FeedCleanupInterval != 24*time.Hour {
		t.Errorf("malformed duration should fall back to default, got %s", cfg.FeedCleanupInterval)
	}
}
