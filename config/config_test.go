package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, 750*time.Millisecond, cfg.Analytics.SettleDelay)
	assert.Equal(t, 10*time.Second, cfg.Analytics.FetchTimeout)
	assert.Equal(t, 7, cfg.Analytics.WeekDays)
	assert.Equal(t, 30, cfg.Analytics.MonthDays)
	assert.True(t, cfg.Redis.Disabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestLoad_DatabaseURLSelectsPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/analytics")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
}

func TestLoad_Timezone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Asia/Almaty")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Almaty", cfg.App.Location.String())

	t.Setenv("APP_TIMEZONE", "Not/AZone")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cfg.App.Location)
}

func TestLoad_SettleDelayIsClamped(t *testing.T) {
	t.Setenv("ANALYTICS_SETTLE_DELAY", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, MaxSettleDelay, cfg.Analytics.SettleDelay)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("LOG_FORMAT", "xml")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "LogFormat")
}

func TestValidate_MemoryDriverRejectedInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory driver")
}

func TestClampSettleDelay(t *testing.T) {
	assert.Equal(t, time.Duration(0), ClampSettleDelay(-time.Second))
	assert.Equal(t, 500*time.Millisecond, ClampSettleDelay(500*time.Millisecond))
	assert.Equal(t, 5*time.Second, ClampSettleDelay(time.Minute))
}

func TestLoad_RedisURLEnablesSharedCache(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DB_CONSISTENT_READS", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Redis.Disabled)
	assert.True(t, cfg.Database.ConsistentReads)
}
