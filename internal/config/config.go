// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the social trading engine.
type Config struct {
	// HTTP
	Port string

	// Storage. Empty DatabaseURL selects the in-memory store; empty
	// RedisURL disables the cache layer.
	DatabaseURL string
	RedisURL    string

	// Upstream Polymarket endpoints. Empty values use the public APIs.
	GammaAPIURL string
	DataAPIURL  string

	// Background worker cadence.
	StatsInterval       time.Duration
	LeaderboardInterval time.Duration
	MarketSyncInterval  time.Duration
	FeedCleanupInterval time.Duration

	// Feed retention window in days.
	FeedRetentionDays int
}

// Load reads configuration from environment variables, applying defaults
// for anything unset.
func Load() *Config {
	return &Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		GammaAPIURL:         os.Getenv("GAMMA_API_URL"),
		DataAPIURL:          os.Getenv("DATA_API_URL"),
		StatsInterval:       getDuration("STATS_INTERVAL", 10*time.Minute),
		LeaderboardInterval: getDuration("LEADERBOARD_INTERVAL", time.Hour),
		MarketSyncInterval:  getDuration("MARKET_SYNC_INTERVAL", time.Hour),
		FeedCleanupInterval: getDuration("FEED_CLEANUP_INTERVAL", 24*time.Hour),
		FeedRetentionDays:   getInt("FEED_RETENTION_DAYS", 30),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
