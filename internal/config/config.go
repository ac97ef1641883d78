// Package config provides configuration management for the character hunt bot.
// It loads configuration from environment variables and .env files.
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
	Telegram Telegram
	Database DatabaseConfig
	Game     GameConfig
	Ops      OpsConfig
	Logging  LoggingConfig
}

// Telegram holds bot API configuration
type Telegram struct {
	Token          string
	UpdateTimeout  int
	AdminUserIDs   []int64
	AdminUsernames []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
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

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	Enabled  bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// GameConfig holds gameplay pacing configuration
type GameConfig struct {
	SpawnThreshold int           // default per-chat message threshold
	GuessReward    int64         // currency awarded to the winning guesser
	RecentWindow   int           // recently-shown characters remembered per chat
	SweepInterval  time.Duration // pending-operation sweep cadence
}

// OpsConfig holds the ops HTTP server configuration
type OpsConfig struct {
	Host string
	Port string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Telegram: Telegram{
			Token:          getEnv("TELEGRAM_BOT_TOKEN", ""),
			UpdateTimeout:  getEnvAsInt("TELEGRAM_UPDATE_TIMEOUT", 60),
			AdminUserIDs:   getEnvAsInt64Slice("ADMIN_USER_IDS"),
			AdminUsernames: getEnvAsSlice("ADMIN_USERNAMES"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "character_hunt"),
				User:           getEnv("POSTGRES_USER", "hunt"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "character_hunt"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Game: GameConfig{
			SpawnThreshold: getEnvAsInt("SPAWN_THRESHOLD", 100),
			GuessReward:    int64(getEnvAsInt("GUESS_REWARD", 100)),
			RecentWindow:   getEnvAsInt("RECENT_WINDOW", 20),
			SweepInterval:  getEnvAsDuration("SWEEP_INTERVAL", 60*time.Second),
		},
		Ops: OpsConfig{
			Host: getEnv("OPS_HOST", "0.0.0.0"),
			Port: getEnv("OPS_PORT", "8080"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Game.SpawnThreshold <= 0 {
		return fmt.Errorf("SPAWN_THRESHOLD must be positive, got %d", c.Game.SpawnThreshold)
	}
	if c.Game.GuessReward < 0 {
		return fmt.Errorf("GUESS_REWARD cannot be negative, got %d", c.Game.GuessReward)
	}
	return nil
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

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
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

// getEnvAsSlice gets a comma-separated environment variable as a string slice
func getEnvAsSlice(key string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return nil
	}

	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// getEnvAsInt64Slice gets a comma-separated environment variable as int64 values
func getEnvAsInt64Slice(key string) []int64 {
	var result []int64
	for _, p := range getEnvAsSlice(key) {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		result = append(result, v)
	}
	return result
}
