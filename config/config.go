package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/yeremiapane/campus-food/utils"
)

type Config struct {
	Port    string
	GinMode string

	DBDriver string
	DBDSN    string

	JWTSecret string
	TokenTTL  time.Duration

	// Order lifecycle
	ReceiptGracePeriod   time.Duration
	SweepInterval        time.Duration
	ReopenWindow         time.Duration
	MaxReopeningRequests int
	ReopenPolicy         string

	RequestTimeout time.Duration
	NotifyTimeout  time.Duration

	RedisAddr              string
	KafkaBrokers           []string
	KafkaNotificationTopic string

	UploadDir  string
	SweepToken string
	CORSOrigin string
}

// Load reads the .env file (if any) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		utils.InfoLogger.Println("Warning: .env file not found")
	}

	// resubmit | accept, anything else falls back to resubmit
	policy := strings.ToLower(getenv("REOPEN_POLICY", "resubmit"))
	if policy != "accept" {
		policy = "resubmit"
	}

	cfg := Config{
		Port:    getenv("PORT", "8080"),
		GinMode: getenv("GIN_MODE", "debug"),

		DBDriver: strings.ToLower(getenv("DB_DRIVER", "mysql")),
		DBDSN:    getenv("DB_DSN", "root:root@tcp(127.0.0.1:3306)/campus_food?charset=utf8mb4&parseTime=True&loc=UTC"),

		JWTSecret: getenv("JWT_SECRET", ""),
		TokenTTL:  getDuration("TOKEN_TTL_HOURS", 24, time.Hour),

		ReceiptGracePeriod:   getDuration("RECEIPT_GRACE_MINUTES", 24*60, time.Minute),
		SweepInterval:        getDuration("SWEEP_INTERVAL_SECONDS", 180, time.Second),
		ReopenWindow:         getDuration("REOPEN_WINDOW_HOURS", 24, time.Hour),
		MaxReopeningRequests: getInt("MAX_REOPENING_REQUESTS", 3),
		ReopenPolicy:         policy,

		RequestTimeout: getDuration("REQUEST_TIMEOUT_SECONDS", 5, time.Second),
		NotifyTimeout:  getDuration("NOTIFY_TIMEOUT_SECONDS", 2, time.Second),

		RedisAddr:              getenv("REDIS_ADDR", ""),
		KafkaBrokers:           splitCSV(getenv("KAFKA_BROKERS", "")),
		KafkaNotificationTopic: getenv("KAFKA_NOTIFICATION_TOPIC", "order-notifications"),

		UploadDir:  getenv("UPLOAD_DIR", "storage/receipts"),
		SweepToken: getenv("SWEEP_TOKEN", ""),
		CORSOrigin: getenv("CORS_ORIGIN", "http://127.0.0.1:5500"),
	}

	if cfg.JWTSecret == "" {
		utils.ErrorLogger.Warn("JWT_SECRET not set, using development secret")
		cfg.JWTSecret = "campus-food-dev-secret"
	}
	return cfg
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
		utils.ErrorLogger.Warnf("ignoring invalid %s=%q", key, v)
	}
	return def
}

func getDuration(key string, def int, unit time.Duration) time.Duration {
	return time.Duration(getInt(key, def)) * unit
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
