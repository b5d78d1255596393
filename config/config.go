package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"HealthBot/model"
)

// Profile store backends.
const (
	StoreFirebase = "firebase"
	StorePostgres = "postgres"
	StoreSheets   = "sheets"
)

// Config aggregates application configuration values.
type Config struct {
	Telegram  TelegramConfig
	Flow      FlowConfig
	Store     StoreConfig
	Session   SessionConfig
	Metrics   MetricsConfig
	Logging   LoggingConfig
	Assistant AssistantConfig
}

type TelegramConfig struct {
	Token string
	Debug bool
}

// FlowConfig selects the signup variant and how long unfinished signups live.
type FlowConfig struct {
	Variant       model.Variant
	SessionTTL    time.Duration
	ControllerTTL time.Duration
	SubmitTimeout time.Duration
}

type StoreConfig struct {
	Backend string

	FirebaseCredentials string
	FirebaseDatabaseURL string

	PostgresDSN string

	SheetsCredentials  string
	SpreadsheetID      string
	SheetsSetupHeaders bool
}

// SessionConfig points at Redis. An empty address keeps sessions in memory.
type SessionConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type MetricsConfig struct {
	Addr string
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level  string
	Format string // text|json
}

// AssistantConfig enables prevention tips after signup when APIKey is set.
type AssistantConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

const (
	defaultVariant       = model.VariantBasic
	defaultSessionTTL    = 24 * time.Hour
	defaultControllerTTL = 30 * time.Minute
	defaultSubmitTimeout = 15 * time.Second
	defaultStore         = StoreFirebase
	defaultMetricsAddr   = ":9090"
	defaultLoggingLevel  = "info"
	defaultLoggingFormat = "text"
	defaultModel         = "claude-sonnet-4-5-20250929"
	defaultMaxTokens     = 400
	defaultTipsTimeout   = 20 * time.Second
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Telegram: TelegramConfig{
			Token: strings.TrimSpace(os.Getenv("BOT_TOKEN")),
			Debug: parseBoolWithDefault("BOT_DEBUG", false),
		},
		Flow: FlowConfig{
			Variant: model.Variant(strings.ToLower(valueOrDefault("FLOW_VARIANT", string(defaultVariant)))),
		},
		Store: StoreConfig{
			Backend:             strings.ToLower(valueOrDefault("STORE_BACKEND", defaultStore)),
			FirebaseCredentials: valueOrDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", ""),
			FirebaseDatabaseURL: valueOrDefault("FIREBASE_DATABASE_URL", ""),
			PostgresDSN:         valueOrDefault("POSTGRES_DSN", ""),
			SheetsCredentials:   valueOrDefault("GOOGLE_CREDENTIALS_PATH", ""),
			SpreadsheetID:       valueOrDefault("SPREADSHEET_ID", ""),
			SheetsSetupHeaders:  parseBoolWithDefault("SHEETS_SETUP_HEADERS", false),
		},
		Session: SessionConfig{
			RedisAddr:     valueOrDefault("REDIS_ADDR", ""),
			RedisPassword: valueOrDefault("REDIS_PASSWORD", ""),
		},
		Metrics: MetricsConfig{
			Addr: valueOrDefault("METRICS_ADDR", defaultMetricsAddr),
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format: valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
		},
		Assistant: AssistantConfig{
			APIKey: valueOrDefault("ANTHROPIC_API_KEY", ""),
			Model:  valueOrDefault("ASSISTANT_MODEL", defaultModel),
		},
	}

	var err error
	if cfg.Flow.SessionTTL, err = parseDuration("SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.Flow.ControllerTTL, err = parseDuration("CONTROLLER_TTL", defaultControllerTTL); err != nil {
		return Config{}, err
	}
	if cfg.Flow.SubmitTimeout, err = parseDuration("SUBMIT_TIMEOUT", defaultSubmitTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Assistant.Timeout, err = parseDuration("ASSISTANT_TIMEOUT", defaultTipsTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Session.RedisDB, err = parseInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	maxTokens, err := parseInt("ASSISTANT_MAX_TOKENS", defaultMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.Assistant.MaxTokens = int64(maxTokens)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}

	switch c.Flow.Variant {
	case model.VariantBasic, model.VariantHealth:
	default:
		return fmt.Errorf("invalid FLOW_VARIANT %q: want basic or health", c.Flow.Variant)
	}

	switch c.Store.Backend {
	case StoreFirebase:
		if c.Store.FirebaseCredentials == "" {
			return fmt.Errorf("FIREBASE_SERVICE_ACCOUNT_KEY_PATH environment variable not set")
		}
		if c.Store.FirebaseDatabaseURL == "" {
			return fmt.Errorf("FIREBASE_DATABASE_URL environment variable not set")
		}
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required")
		}
	case StoreSheets:
		if c.Store.SheetsCredentials == "" || c.Store.SpreadsheetID == "" {
			return fmt.Errorf("GOOGLE_CREDENTIALS_PATH and SPREADSHEET_ID are required")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.Store.Backend)
	}

	if c.Assistant.MaxTokens <= 0 {
		return fmt.Errorf("ASSISTANT_MAX_TOKENS must be positive")
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
