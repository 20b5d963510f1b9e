package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ivms/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Heuristics.DuplicateWindowDays)
	assert.Equal(t, 0.7, cfg.Heuristics.DuplicateThreshold)
	assert.Equal(t, 0.9, cfg.Heuristics.DuplicateExceptionThreshold)
	assert.Equal(t, 30.0, cfg.Heuristics.FraudSuspiciousScore)
	assert.Equal(t, 50.0, cfg.Heuristics.FraudExceptionScore)
	assert.Equal(t, 10000.0, cfg.Heuristics.AutoApproveLimit)
	assert.Equal(t, 180, cfg.Heuristics.MaxAgeDays)
	assert.Equal(t, 60, cfg.ML.ExtractTimeoutSecs)
	assert.Equal(t, 20, cfg.ML.FraudTimeoutSecs)
	assert.Equal(t, "memory", cfg.Lock.Provider)
	assert.Equal(t, 10*time.Minute, cfg.Lock.TTL)
	assert.Equal(t, "noop", cfg.Notify.Provider)
	assert.Empty(t, cfg.Notify.Recipients)

	sum := cfg.Heuristics.WeightDuplicate + cfg.Heuristics.WeightPrice + cfg.Heuristics.WeightRush +
		cfg.Heuristics.WeightRound + cfg.Heuristics.WeightNewVendor + cfg.Heuristics.WeightFrequency
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("IVMS_DB_HOST", "db.internal")
	t.Setenv("IVMS_ML_BASE_URL", "http://ml:5000/")
	t.Setenv("IVMS_NOTIFY_RECIPIENTS", "ap@example.com, controller@example.com")
	t.Setenv("IVMS_HEURISTICS_AUTO_APPROVE_LIMIT", "2500")
	t.Setenv("IVMS_LOCK_PROVIDER", "redis")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, "http://ml:5000", cfg.ML.BaseURL)
	assert.Equal(t, []string{"ap@example.com", "controller@example.com"}, cfg.Notify.Recipients)
	assert.Equal(t, 2500.0, cfg.Heuristics.AutoApproveLimit)
	assert.Equal(t, "redis", cfg.Lock.Provider)
}

func TestLoad_PortFallback(t *testing.T) {
	t.Setenv("PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)
}

func TestDBConfig_DSN(t *testing.T) {
	db := config.DBConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", db.DSN())
}
