package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/logger"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	AppPort     string
	DatabaseURL string
	JWTSecret   string
	CORSOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	EventChannel  string

	KafkaBrokers []string
	KafkaTopic   string

	BotToken         string
	AdminTelegramIDs []int64 // tg ids allowed to drive the admin bot
	AdminBotEnabled  bool

	// API limits
	APIRateLimit  int
	APIRateWindow time.Duration

	OutboxPoll   time.Duration
	RateCacheTTL time.Duration

	LogLevel string
	LogJSON  bool

	// Used until an admin saves the first rate row
	DefaultRates domain.RateConfig
}

// Load reads the config from env
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// comma separated in env
	var adminIDs []int64
	for _, idStr := range splitList(os.Getenv("ADMIN_TELEGRAM_IDS")) {
		if id, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			adminIDs = append(adminIDs, id)
		}
	}

	return &Config{
		AppPort:     port,
		DatabaseURL: dbURL,
		JWTSecret:   jwtSecret,
		CORSOrigins: splitList(os.Getenv("CORS_ORIGINS")),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       intEnv("REDIS_DB", 0),
		EventChannel:  stringEnv("EVENT_CHANNEL", "ledger_events"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   stringEnv("KAFKA_TOPIC", "ledger-events"),

		BotToken:         os.Getenv("BOT_TOKEN"),
		AdminTelegramIDs: adminIDs,
		AdminBotEnabled:  os.Getenv("ADMIN_BOT_ENABLED") == "true",

		APIRateLimit:  intEnv("API_RATE_LIMIT", 120),
		APIRateWindow: time.Duration(intEnv("API_RATE_WINDOW_SECONDS", 60)) * time.Second,

		OutboxPoll:   time.Duration(intEnv("OUTBOX_POLL_SECONDS", 2)) * time.Second,
		RateCacheTTL: time.Duration(intEnv("RATE_CACHE_TTL_SECONDS", 60)) * time.Second,

		LogLevel: stringEnv("LOG_LEVEL", "info"),
		LogJSON:  os.Getenv("LOG_JSON") == "true",

		DefaultRates: DefaultRates(),
	}
}

// DefaultRates reads the fallback rates from env.
func DefaultRates() domain.RateConfig {
	return domain.RateConfig{
		PlatformFeeRate:    decimalEnv("DEFAULT_PLATFORM_FEE_PCT", "5"),
		ClientCashbackRate: decimalEnv("DEFAULT_CASHBACK_PCT", "2"),
		ReferralBonusRate:  decimalEnv("DEFAULT_REFERRAL_PCT", "1"),
		WithdrawalFeeRate:  decimalEnv("DEFAULT_WITHDRAWAL_FEE_PCT", "0"),
		MinWithdrawal:      decimalEnv("DEFAULT_MIN_WITHDRAWAL", "10.00"),
	}
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
		logger.Warn("ignoring invalid env value", "key", key, "value", v)
	}
	return def
}

func decimalEnv(key, def string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && !d.IsNegative() {
			return d
		}
		logger.Warn("ignoring invalid env value", "key", key, "value", v)
	}
	return decimal.RequireFromString(def)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
