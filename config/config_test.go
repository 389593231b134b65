package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REOPEN_POLICY", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.ReopenWindow)
	assert.Equal(t, 3, cfg.MaxReopeningRequests)
	assert.Equal(t, "resubmit", cfg.ReopenPolicy)
	assert.Equal(t, 3*time.Minute, cfg.SweepInterval)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REOPEN_POLICY", "ACCEPT")
	t.Setenv("RECEIPT_GRACE_MINUTES", "15")
	t.Setenv("MAX_REOPENING_REQUESTS", "not-a-number")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("DB_DRIVER", "SQLite")

	cfg := Load()
	assert.Equal(t, "accept", cfg.ReopenPolicy)
	assert.Equal(t, 15*time.Minute, cfg.ReceiptGracePeriod)
	assert.Equal(t, 3, cfg.MaxReopeningRequests)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "sqlite", cfg.DBDriver)
}

func TestInitDB(t *testing.T) {
	db, err := InitDB(Config{DBDriver: "sqlite", DBDSN: "file:config_test?mode=memory&cache=shared"})
	require.NoError(t, err)
	require.NoError(t, db.Exec("SELECT 1").Error)

	_, err = InitDB(Config{DBDriver: "oracle"})
	assert.Error(t, err)
}
