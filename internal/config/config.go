package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backend identifiers.
const (
	StorageBackendMongo = "mongo"
	StorageBackendFile  = "file"
)

// Fetch window modes.
const (
	FetchModeRecent = "recent"
	FetchModeDay    = "day"
)

// Config holds the application configuration.
type Config struct {
	AppEnv    string
	Debug     bool
	Version   string
	SentryDSN string

	TelegramAPIID   int
	TelegramAPIHash string
	SessionFile     string
	ChannelUsername string

	FetchMode  string
	FetchLimit int
	FetchRate  int

	IDPadWidth    int
	TZOffsetHours int

	ImgBBAPIKey string

	StorageBackend  string
	MongoDBURI      string
	MongoDBDatabase string
	PostsFile       string

	S3Bucket    string
	S3Region    string
	SnapshotKey string

	PushBaseURL     string
	FrontendBaseURL string
	DefaultLanguage string
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present but prioritizes
// actual environment variables set in the system (e.g., by the scheduler).
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (useful for development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	debug, _ := strconv.ParseBool(getEnv("DEBUG", "false"))

	apiIDStr := getEnv("TELEGRAM_API_ID", "")
	apiID, err := strconv.Atoi(apiIDStr)
	if err != nil && apiIDStr != "" {
		return nil, fmt.Errorf("invalid TELEGRAM_API_ID: %w", err)
	}

	fetchLimit, err := strconv.Atoi(getEnv("FETCH_LIMIT", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_LIMIT: %w", err)
	}
	fetchRate, err := strconv.Atoi(getEnv("FETCH_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_RATE: %w", err)
	}
	padWidth, err := strconv.Atoi(getEnv("ID_PAD_WIDTH", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid ID_PAD_WIDTH: %w", err)
	}
	tzOffset, err := strconv.Atoi(getEnv("TZ_OFFSET_HOURS", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid TZ_OFFSET_HOURS: %w", err)
	}

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		Debug:     debug,
		Version:   getEnv("VERSION", "dev"),
		SentryDSN: getEnv("SENTRY_DSN", ""),

		TelegramAPIID:   apiID,
		TelegramAPIHash: getEnv("TELEGRAM_API_HASH", ""),
		SessionFile:     getEnv("TELEGRAM_SESSION_FILE", "/secrets/telegram-session"),
		ChannelUsername: getEnv("CHANNEL_USERNAME", ""),

		FetchMode:  getEnv("FETCH_MODE", FetchModeRecent),
		FetchLimit: fetchLimit,
		FetchRate:  fetchRate,

		IDPadWidth:    padWidth,
		TZOffsetHours: tzOffset,

		ImgBBAPIKey: getEnv("IMGBB_API_KEY", ""),

		StorageBackend:  getEnv("STORAGE_BACKEND", StorageBackendMongo),
		MongoDBURI:      getEnv("MONGODB_URI", ""),
		MongoDBDatabase: getEnv("MONGODB_DATABASE", ""),
		PostsFile:       getEnv("POSTS_FILE", "posts.json"),

		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3Region:    getEnv("AWS_REGION", "ap-northeast-1"),
		SnapshotKey: getEnv("SNAPSHOT_KEY", "posts.json"),

		PushBaseURL:     getEnv("PUSH_BASE_URL", ""),
		FrontendBaseURL: getEnv("FRONTEND_BASE_URL", ""),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "zh-Hant"),
	}

	// Basic validation for essential variables
	if cfg.TelegramAPIID == 0 {
		return nil, fmt.Errorf("TELEGRAM_API_ID is required")
	}
	if cfg.TelegramAPIHash == "" {
		return nil, fmt.Errorf("TELEGRAM_API_HASH is required")
	}
	if cfg.ChannelUsername == "" {
		return nil, fmt.Errorf("CHANNEL_USERNAME is required")
	}
	if cfg.ImgBBAPIKey == "" {
		return nil, fmt.Errorf("IMGBB_API_KEY is required")
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}
	switch cfg.StorageBackend {
	case StorageBackendMongo:
		if cfg.MongoDBURI == "" {
			return nil, fmt.Errorf("MONGODB_URI is required for the mongo backend")
		}
		if cfg.MongoDBDatabase == "" {
			return nil, fmt.Errorf("MONGODB_DATABASE is required for the mongo backend")
		}
	case StorageBackendFile:
		if cfg.PostsFile == "" {
			return nil, fmt.Errorf("POSTS_FILE is required for the file backend")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	switch cfg.FetchMode {
	case FetchModeRecent, FetchModeDay:
	default:
		return nil, fmt.Errorf("unknown FETCH_MODE %q", cfg.FetchMode)
	}
	if cfg.FetchLimit <= 0 {
		return nil, fmt.Errorf("FETCH_LIMIT must be positive")
	}
	if cfg.IDPadWidth <= 0 {
		return nil, fmt.Errorf("ID_PAD_WIDTH must be positive")
	}
	if cfg.SentryDSN == "" {
		log.Println("Warning: SENTRY_DSN is not set. Error tracking disabled.")
	}
	if cfg.PushBaseURL == "" {
		log.Println("Warning: PUSH_BASE_URL is not set. Push notifications disabled.")
	}
	if cfg.FrontendBaseURL == "" {
		log.Println("Warning: FRONTEND_BASE_URL is not set. Notification deep links will be relative.")
	}

	return cfg, nil
}

// Location returns the fixed timezone all message timestamps are normalized to.
func (c *Config) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.TZOffsetHours), c.TZOffsetHours*3600)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
