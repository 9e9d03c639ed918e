package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the zone info server
type Config struct {
	Server     ServerConfig
	Scan       ScanConfig
	Display    DisplayConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Simulation SimulationConfig
	Unlocks    UnlockConfig
	Logging    LoggingConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string
	Port         string        `validate:"required,numeric"`
	ReadTimeout  time.Duration `validate:"gt=0"`
	WriteTimeout time.Duration `validate:"gt=0"`
	IdleTimeout  time.Duration `validate:"gt=0"`
	Environment  string        `validate:"oneof=development staging production test"`
	// RateLimit is the per-client request allowance on public routes, in
	// ulule/limiter notation such as "100-M".
	RateLimit string `validate:"required"`
	// AllowedOrigins lists CORS and WebSocket origins; empty allows all in
	// development only.
	AllowedOrigins []string
}

// ScanConfig controls the scan loop
type ScanConfig struct {
	TickInterval  time.Duration `validate:"gt=0"`
	BlocksPerTick int           `validate:"gt=0,lte=49152"`
	RuleSet       string        `validate:"oneof=default classic"`
	// RecountRate is the number of external full recount requests honoured
	// per second.
	RecountRate float64 `validate:"gt=0"`
	Profile     bool
}

// DisplayConfig holds the view served when a client gives no options
type DisplayConfig struct {
	DefaultDistrict int `validate:"gte=0,lte=128"`
	Percent         bool
	IncludeUnzoned  bool
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host            string
	Port            int `validate:"gt=0,lte=65535"`
	User            string
	Password        string
	Database        string
	SSLMode         string `validate:"oneof=disable require verify-ca verify-full"`
	MaxConnections  int    `validate:"gt=0"`
	MaxIdleConns    int    `validate:"gte=0"`
	ConnMaxLifetime time.Duration
	// ArchiveEnabled stores every published pass in PostgreSQL.
	ArchiveEnabled bool
}

// AuthConfig holds authentication configuration for control endpoints
type AuthConfig struct {
	JWTSecret     string
	JWTExpiration time.Duration `validate:"gt=0"`
}

// SimulationConfig describes the simulation host the world is pulled from
type SimulationConfig struct {
	BaseURL         string        `validate:"required,url"`
	Timeout         time.Duration `validate:"gt=0"`
	RetryCount      int           `validate:"gte=0"`
	RefreshInterval time.Duration `validate:"gt=0"`
}

// UnlockConfig lists the zone families and district policies the player
// owns. A nil list means everything is unlocked.
type UnlockConfig struct {
	Zones    []string
	Policies []string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format     string `validate:"omitempty,oneof=json text"`
	OutputPath string
}

// Load reads configuration from environment variables and .env file
// The .env file is loaded from the current working directory
func Load() (*Config, error) {
	// A missing .env is fine; variables may be set directly
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	config := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "8080"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:    getEnv("ENVIRONMENT", "development"),
			RateLimit:      getEnv("RATE_LIMIT", "600-M"),
			AllowedOrigins: getListEnv("ALLOWED_ORIGINS"),
		},
		Scan: ScanConfig{
			TickInterval:  getDurationEnv("SCAN_TICK_INTERVAL", 16*time.Millisecond),
			BlocksPerTick: getIntEnv("SCAN_BLOCKS_PER_TICK", 256),
			RuleSet:       getEnv("SCAN_RULE_SET", "default"),
			RecountRate:   getFloatEnv("SCAN_RECOUNT_RATE", 1),
			Profile:       getBoolEnv("SCAN_PROFILE", false),
		},
		Display: DisplayConfig{
			DefaultDistrict: getIntEnv("DISPLAY_DEFAULT_DISTRICT", 128),
			Percent:         getBoolEnv("DISPLAY_PERCENT", false),
			IncludeUnzoned:  getBoolEnv("DISPLAY_INCLUDE_UNZONED", true),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getIntEnv("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "zoneinfo_dev"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConnections:  getIntEnv("DB_MAX_CONNECTIONS", 10),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ArchiveEnabled:  getBoolEnv("DB_ARCHIVE_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			JWTExpiration: getDurationEnv("JWT_EXPIRATION", time.Hour),
		},
		Simulation: SimulationConfig{
			// 127.0.0.1 avoids IPv6 resolution of localhost on some hosts
			BaseURL:         getEnv("SIM_BASE_URL", "http://127.0.0.1:8081"),
			Timeout:         getDurationEnv("SIM_TIMEOUT", 30*time.Second),
			RetryCount:      getIntEnv("SIM_RETRY_COUNT", 3),
			RefreshInterval: getDurationEnv("SIM_REFRESH_INTERVAL", 2*time.Second),
		},
		Unlocks: UnlockConfig{
			Zones:    getListEnv("UNLOCKED_ZONES"),
			Policies: getListEnv("UNLOCKED_POLICIES"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT_PATH", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	if !c.Server.IsDevelopment() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	if c.Database.ArchiveEnabled && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required when DB_ARCHIVE_ENABLED is set")
	}
	return nil
}

// DatabaseURL returns a PostgreSQL connection string
func (c *DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// IsDevelopment returns true if running in development mode
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Helper functions for environment variable access

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer value, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return intValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("invalid float value, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return f
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("invalid boolean value, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return b
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration value, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return duration
}

// getListEnv splits a comma separated variable. Unset returns nil, which
// callers treat differently from an explicitly empty list.
func getListEnv(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
