// Package config provides configuration management for the helper ledger
// services. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Discord   DiscordConfig
	Sweep     SweepConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP API server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL returns the connection URL used by the migration runner.
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
	LeaderboardTTL time.Duration
}

// DiscordConfig holds the gateway connection and the community's fixed
// identifiers: monitored forum categories, the rank role ladder, staff roles
// and log channels.
type DiscordConfig struct {
	Token        string
	GuildID      string
	HelpForumIDs []string
	HelperRoleID string
	StaffRoleIDs []string

	// RankRoleIDs holds the role for each ladder entry, lowest threshold
	// first. Must have exactly one entry per ladder rank.
	RankRoleIDs []string

	RankupLogChannelID string
	ThankLogChannelID  string
}

// SweepConfig holds the inactivity sweep configuration
type SweepConfig struct {
	// Schedule is a cron expression; the default runs hourly, which is
	// sufficient granularity for the day-scale thresholds below.
	Schedule           string
	InactivityReminder time.Duration
	ReminderGrace      time.Duration
	PendingCloseAfter  time.Duration
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// rankRoleCount matches the size of the rank ladder in internal/rank.
const rankRoleCount = 13

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "helper_ledger"),
				User:           getEnv("POSTGRES_USER", "helper"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
				LeaderboardTTL: getEnvAsDuration("LEADERBOARD_CACHE_TTL", time.Minute),
			},
		},
		Discord: DiscordConfig{
			Token:              getEnv("DISCORD_TOKEN", ""),
			GuildID:            getEnv("DISCORD_GUILD_ID", ""),
			HelpForumIDs:       getEnvAsList("HELP_FORUM_IDS"),
			HelperRoleID:       getEnv("HELPER_ROLE_ID", ""),
			StaffRoleIDs:       getEnvAsList("STAFF_ROLE_IDS"),
			RankRoleIDs:        loadRankRoleIDs(),
			RankupLogChannelID: getEnv("RANKUP_LOG_CHANNEL_ID", ""),
			ThankLogChannelID:  getEnv("THANK_LOG_CHANNEL_ID", ""),
		},
		Sweep: SweepConfig{
			Schedule:           getEnv("SWEEP_SCHEDULE", "0 * * * *"),
			InactivityReminder: getEnvAsDuration("SWEEP_INACTIVITY_REMINDER", 24*time.Hour),
			ReminderGrace:      getEnvAsDuration("SWEEP_REMINDER_GRACE", 72*time.Hour),
			PendingCloseAfter:  getEnvAsDuration("SWEEP_PENDING_CLOSE_AFTER", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// loadRankRoleIDs reads RANK_1_ROLE_ID through RANK_13_ROLE_ID. Missing
// entries stay empty; role grants for those ranks are skipped and reported
// by the promotion service.
func loadRankRoleIDs() []string {
	ids := make([]string, rankRoleCount)
	for i := range ids {
		ids[i] = getEnv(fmt.Sprintf("RANK_%d_ROLE_ID", i+1), "")
	}
	return ids
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList gets a comma-separated environment variable as a string slice
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}

	var values []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}
