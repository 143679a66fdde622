package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"governance_reminder_bot/internal/domain/reminder"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	AdminTelegramID int64
	DatabaseURL     string
	RedisURL        string
	LogLevel        string
	Environment     string

	Offsets reminder.Offsets

	SnapshotSpace        string
	SnapshotAPIURL       string
	SnapshotPollInterval time.Duration
	SnapshotFetchLimit   int

	EthRPCURL               string
	EventContractAddress    string
	FrontendContractAddress string
	LinksBaseURL            string
	ChainPrefix             string
	OnChainPollInterval     time.Duration
	AverageBlockTime        time.Duration

	WatcherBackoffMin time.Duration
	WatcherBackoffMax time.Duration
	SendRatePerSecond int
	SendTimeout       time.Duration

	HTTPAddr string
}

// SnapshotEnabled reports whether a Snapshot space is configured.
func (c *AppConfig) SnapshotEnabled() bool { return c.SnapshotSpace != "" }

// OnChainEnabled reports whether the on-chain watcher has an RPC endpoint.
func (c *AppConfig) OnChainEnabled() bool { return c.EthRPCURL != "" }

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(getEnv("ENVIRONMENT", "development"))

	if cfg.Offsets.FromStart, err = parseOffsets("REMINDERS_FROM_START", "0"); err != nil {
		return nil, err
	}
	if cfg.Offsets.BeforeEnd, err = parseOffsets("REMINDERS_BEFORE_END", "24,4"); err != nil {
		return nil, err
	}
	if cfg.Offsets.ButtonFollowup, err = parseOffsets("BUTTON_REMINDERS", "1,4"); err != nil {
		return nil, err
	}
	if err := cfg.Offsets.Validate(); err != nil {
		return nil, err
	}

	cfg.SnapshotSpace = strings.TrimSpace(os.Getenv("SNAPSHOT_SPACE"))
	cfg.SnapshotAPIURL = getEnv("SNAPSHOT_API_URL", "https://hub.snapshot.org/graphql")
	if cfg.SnapshotPollInterval, err = parseSeconds("SNAPSHOT_POLL_INTERVAL", 60); err != nil {
		return nil, err
	}
	if cfg.SnapshotFetchLimit, err = parseInt("SNAPSHOT_FETCH_LIMIT", 3); err != nil {
		return nil, err
	}

	cfg.EthRPCURL = os.Getenv("ETH_RPC_URL")
	cfg.EventContractAddress = os.Getenv("EVENT_CONTRACT_ADDRESS")
	if cfg.EthRPCURL != "" && cfg.EventContractAddress == "" {
		return nil, fmt.Errorf("EVENT_CONTRACT_ADDRESS is required when ETH_RPC_URL is set")
	}
	cfg.FrontendContractAddress = getEnv("FRONTEND_CONTRACT_ADDRESS", cfg.EventContractAddress)
	cfg.LinksBaseURL = getEnv("LINKS_BASE_URL", "https://app.decentdao.org/")
	cfg.ChainPrefix = getEnv("CHAIN_PREFIX", "eth")
	if cfg.OnChainPollInterval, err = parseSeconds("ONCHAIN_POLL_INTERVAL", 10); err != nil {
		return nil, err
	}
	if cfg.AverageBlockTime, err = parseSeconds("AVERAGE_BLOCK_TIME", 12); err != nil {
		return nil, err
	}

	if cfg.WatcherBackoffMin, err = parseDuration("WATCHER_BACKOFF_MIN", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.WatcherBackoffMax, err = parseDuration("WATCHER_BACKOFF_MAX", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WatcherBackoffMax < cfg.WatcherBackoffMin {
		return nil, fmt.Errorf("WATCHER_BACKOFF_MAX (%v) is below WATCHER_BACKOFF_MIN (%v)", cfg.WatcherBackoffMax, cfg.WatcherBackoffMin)
	}
	if cfg.SendRatePerSecond, err = parseInt("SEND_RATE_PER_SEC", 25); err != nil {
		return nil, err
	}
	if cfg.SendTimeout, err = parseDuration("SEND_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// ParseOffsetList reads comma separated hours. Anything after a '#' is a
// comment.
func ParseOffsetList(value string) ([]float64, error) {
	if i := strings.Index(value, "#"); i >= 0 {
		value = value[:i]
	}
	var out []float64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid offset %q: %w", part, err)
		}
		out = append(out, h)
	}
	return out, nil
}

func parseOffsets(key, fallback string) ([]float64, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		value = fallback
	}
	offsets, err := ParseOffsetList(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return offsets, nil
}

func parseInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func parseSeconds(key string, fallback int) (time.Duration, error) {
	n, err := parseInt(key, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}
