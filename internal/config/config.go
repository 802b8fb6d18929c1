package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken     string
	DiscordGuildID   string
	GameLogChannelID string

	// Riot API
	RiotAPIKey             string
	RiotRegion             string
	RiotPlatform           string
	RiotRequestsPerSecond  int
	RiotRequestsPerTwoMins int
	RiotTimeout            time.Duration

	// Database
	DatabaseURL string

	// Task intervals
	ForwardfillInterval time.Duration
	BackfillInterval    time.Duration
	DetailsInterval     time.Duration
	DispatchInterval    time.Duration
	StatsInterval       time.Duration

	// Sync policy
	RankFreshness    time.Duration
	AnnounceWindow   time.Duration
	ForwardOverlap   time.Duration
	AnnounceTimezone string

	// Observability
	MetricsAddr string
	LogLevel    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:     os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordGuildID:   os.Getenv("DISCORD_GUILD_ID"),
		GameLogChannelID: os.Getenv("GAME_LOG_CHANNEL_ID"),
		RiotAPIKey:       os.Getenv("RIOT_API_KEY"),
		RiotRegion:       getEnvOrDefault("RIOT_REGION", "americas"),
		RiotPlatform:     getEnvOrDefault("RIOT_PLATFORM", "na1"),
		DatabaseURL:      getEnvOrDefault("DATABASE_URL", "./data/bot.db"),
		AnnounceTimezone: getEnvOrDefault("ANNOUNCE_TIMEZONE", "America/Chicago"),
		MetricsAddr:      os.Getenv("METRICS_ADDR"),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RiotRequestsPerSecond, err = getIntOrDefault("RIOT_REQUESTS_PER_SECOND", 20); err != nil {
		return nil, err
	}
	if cfg.RiotRequestsPerTwoMins, err = getIntOrDefault("RIOT_REQUESTS_PER_2MIN", 100); err != nil {
		return nil, err
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"RIOT_TIMEOUT", 10 * time.Second, &cfg.RiotTimeout},
		{"FORWARDFILL_INTERVAL", 120 * time.Second, &cfg.ForwardfillInterval},
		{"BACKFILL_INTERVAL", 1200 * time.Second, &cfg.BackfillInterval},
		{"DETAILS_INTERVAL", 40 * time.Second, &cfg.DetailsInterval},
		{"DISPATCH_INTERVAL", 60 * time.Second, &cfg.DispatchInterval},
		{"STATS_INTERVAL", 60 * time.Second, &cfg.StatsInterval},
		{"RANK_FRESHNESS", 60 * time.Second, &cfg.RankFreshness},
		{"ANNOUNCE_WINDOW", 6 * 24 * time.Hour, &cfg.AnnounceWindow},
		{"FORWARD_OVERLAP", 5 * time.Minute, &cfg.ForwardOverlap},
	}
	for _, d := range durations {
		if *d.dest, err = getDurationOrDefault(d.key, d.def); err != nil {
			return nil, err
		}
	}

	// Validate required fields
	if cfg.RiotAPIKey == "" {
		return nil, fmt.Errorf("RIOT_API_KEY is required")
	}

	return cfg, nil
}

// ValidateDiscord checks the settings only the long-running bot needs
func (c *Config) ValidateDiscord() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if c.GameLogChannelID == "" {
		return fmt.Errorf("GAME_LOG_CHANNEL_ID is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}

// getDurationOrDefault accepts Go durations ("90s", "2m") or bare seconds ("120")
func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("invalid %s: must be positive", key)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
