package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // SHOP_TIMEZONE must resolve on minimal images

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// Shop API configuration
	ShopAPI ShopAPIConfig

	// Booking wizard configuration
	Wizard WizardConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret      string
	Issuer      string
	TokenExpiry time.Duration // only used by cmd/issue-token
}

// ShopAPIConfig holds the shop backend endpoint
type ShopAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// WizardConfig holds booking wizard settings
type WizardConfig struct {
	ShopTimezone                     string
	DraftNamespace                   string
	DraftStorage                     string // postgres or redis
	DraftTTL                         time.Duration
	DraftEncryptionKey               string // empty stores plaintext drafts
	AvailabilityWindowDays           int
	AvailabilityMaxParallel          int
	AvailabilityInvalidateOnDuration bool
	MultiVehiclePolicy               string // first or require_selection
	SessionIdleTimeout               time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", ""),
			Issuer:      getEnv("JWT_ISSUER", "taller-charli"),
			TokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		ShopAPI: ShopAPIConfig{
			BaseURL: getEnv("SHOP_API_URL", ""),
			Timeout: time.Duration(getEnvAsInt("SHOP_API_TIMEOUT_SECONDS", 10)) * time.Second,
		},
		Wizard: WizardConfig{
			ShopTimezone:                     getEnv("SHOP_TIMEZONE", "America/Argentina/Buenos_Aires"),
			DraftNamespace:                   getEnv("DRAFT_NAMESPACE", "taller.bookingDraft"),
			DraftStorage:                     getEnv("DRAFT_STORAGE", "postgres"),
			DraftTTL:                         time.Duration(getEnvAsInt("DRAFT_TTL_HOURS", 720)) * time.Hour,
			DraftEncryptionKey:               getEnv("DRAFT_ENCRYPTION_KEY", ""),
			AvailabilityWindowDays:           getEnvAsInt("AVAILABILITY_WINDOW_DAYS", 14),
			AvailabilityMaxParallel:          getEnvAsInt("AVAILABILITY_MAX_PARALLEL", 0),
			AvailabilityInvalidateOnDuration: getEnvAsBool("AVAILABILITY_INVALIDATE_ON_DURATION", true),
			MultiVehiclePolicy:               getEnv("MULTI_VEHICLE_POLICY", "first"),
			SessionIdleTimeout:               time.Duration(getEnvAsInt("SESSION_IDLE_MINUTES", 120)) * time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "X-Wizard-Session"}),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ShopAPI.BaseURL == "" {
		return fmt.Errorf("SHOP_API_URL is required")
	}

	switch c.Wizard.DraftStorage {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when DRAFT_STORAGE=postgres")
		}
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when DRAFT_STORAGE=redis")
		}
	default:
		return fmt.Errorf("invalid DRAFT_STORAGE: %s (must be 'postgres' or 'redis')", c.Wizard.DraftStorage)
	}

	if c.Wizard.MultiVehiclePolicy != "first" && c.Wizard.MultiVehiclePolicy != "require_selection" {
		return fmt.Errorf("invalid MULTI_VEHICLE_POLICY: %s (must be 'first' or 'require_selection')", c.Wizard.MultiVehiclePolicy)
	}

	if c.Wizard.AvailabilityWindowDays < 1 || c.Wizard.AvailabilityWindowDays > 62 {
		return fmt.Errorf("AVAILABILITY_WINDOW_DAYS must be between 1 and 62")
	}

	if _, err := time.LoadLocation(c.Wizard.ShopTimezone); err != nil {
		return fmt.Errorf("invalid SHOP_TIMEZONE %q: %w", c.Wizard.ShopTimezone, err)
	}

	return nil
}

// Location returns the shop's time zone. Validate has already checked it loads.
func (c *WizardConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.ShopTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
