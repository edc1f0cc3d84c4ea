package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "DB_PORT", "ACTIVATION_THRESHOLD", "AUTO_MIGRATE", "RECONCILE_CRON"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "3306", cfg.Database.Port)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, "0 */6 * * *", cfg.ReconcileCron)
	assert.True(t, decimal.NewFromInt(1000).Equal(cfg.ActivationThreshold))
}

func TestLoadPostgresPortDefault(t *testing.T) {
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_PORT", "")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "5432", cfg.Database.Port)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ACTIVATION_THRESHOLD", "250.50")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("DB_MAX_OPEN_CONNS", "42")

	cfg := Load()
	assert.True(t, decimal.RequireFromString("250.50").Equal(cfg.ActivationThreshold))
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, 42, cfg.Database.MaxOpenConns)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ACTIVATION_THRESHOLD", "-5")
	t.Setenv("AUTO_MIGRATE", "maybe")
	t.Setenv("DB_MAX_OPEN_CONNS", "many")

	cfg := Load()
	assert.True(t, decimal.NewFromInt(1000).Equal(cfg.ActivationThreshold))
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
}

func TestConfigureLogger(t *testing.T) {
	prevLevel, prevFormatter := logrus.GetLevel(), logrus.StandardLogger().Formatter
	t.Cleanup(func() {
		logrus.SetLevel(prevLevel)
		logrus.SetFormatter(prevFormatter)
	})

	(&Config{LogLevel: "debug", LogFormat: "json"}).ConfigureLogger()
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)

	(&Config{LogLevel: "nonsense", LogFormat: "text"}).ConfigureLogger()
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logrus.StandardLogger().Formatter)
}
