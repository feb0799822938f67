package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string        `validate:"required"`
	ReadTimeout     time.Duration `validate:"gt=0"`
	WriteTimeout    time.Duration `validate:"gt=0"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	StoreDriver    string `validate:"oneof=sqlite memory"`
	SQLitePath     string `validate:"required_if=StoreDriver sqlite"`
	SeedRosterPath string

	SnapshotDriver string `validate:"oneof=file redis memory"`
	SnapshotPath   string `validate:"required_if=SnapshotDriver file"`
	RedisAddr      string `validate:"required_if=SnapshotDriver redis"`
	RedisPassword  string
	RedisDB        int `validate:"gte=0"`

	LiveStatusEnabled   bool
	JourneyTickInterval time.Duration `validate:"gt=0"`
	JourneyTickStep     time.Duration `validate:"gt=0"`

	ScanMinFrameInterval    time.Duration `validate:"gte=0"`
	ScanConfidenceThreshold int           `validate:"gte=1"`
	ScanSessionTTL          time.Duration `validate:"gt=0"`

	ElasticsearchEnabled bool
	ElasticsearchURL     string `validate:"omitempty,url"`
	ElasticsearchIndex   string `validate:"required_if=ElasticsearchEnabled true"`

	RateLimitPerWindow int           `validate:"gte=1"`
	RateLimitWindow    time.Duration `validate:"gt=0"`
	RateLimitWhitelist []string
}

// Load reads the environment after merging an optional .env file. Variables
// already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		SQLitePath:     getEnv("SQLITE_PATH", "blink.db"),
		SeedRosterPath: getEnv("SEED_ROSTER_PATH", ""),

		SnapshotDriver: strings.ToLower(getEnv("SNAPSHOT_DRIVER", "file")),
		SnapshotPath:   getEnv("SNAPSHOT_PATH", "blink-journey.json"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getIntEnv("REDIS_DB", 0),

		LiveStatusEnabled:   getBoolEnv("LIVE_STATUS_ENABLED", true),
		JourneyTickInterval: getDurationEnv("JOURNEY_TICK_INTERVAL", 15*time.Second),
		JourneyTickStep:     getDurationEnv("JOURNEY_TICK_STEP", time.Minute),

		ScanMinFrameInterval:    getDurationEnv("SCAN_MIN_FRAME_INTERVAL", 200*time.Millisecond),
		ScanConfidenceThreshold: getIntEnv("SCAN_CONFIDENCE_THRESHOLD", 2),
		ScanSessionTTL:          getDurationEnv("SCAN_SESSION_TTL", 5*time.Minute),

		ElasticsearchEnabled: getBoolEnv("ELASTICSEARCH_ENABLED", false),
		ElasticsearchURL:     getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
		ElasticsearchIndex:   getEnv("ELASTICSEARCH_INDEX", "blink-scans"),

		RateLimitPerWindow: getIntEnv("RATE_LIMIT_PER_WINDOW", 120),
		RateLimitWindow:    getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist: getCSVEnv("RATE_LIMIT_WHITELIST"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be %s %s", fe.Field(), map[string]string{"gt": ">", "gte": ">="}[fe.Tag()], fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a URL", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}
