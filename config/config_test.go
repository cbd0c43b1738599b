package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DRAFT_TTL", "")
	t.Setenv("ATTEND_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.Session.DraftTTL)
	assert.Equal(t, 2*time.Hour, cfg.Session.AttendTTL)
	assert.NotEmpty(t, cfg.Server.Port)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DRAFT_TTL", "90m")
	t.Setenv("ATTEND_TTL", "600")
	t.Setenv("STATISTICS_CACHE_TTL", "not-a-duration")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RUN_WORKER", "false")
	t.Setenv("CLOSE_SWEEP_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Session.DraftTTL)
	assert.Equal(t, 10*time.Minute, cfg.Session.AttendTTL)
	assert.Equal(t, 10*time.Minute, cfg.Statistics.CacheTTL)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.False(t, cfg.RunWorker)
	assert.Equal(t, 30*time.Second, cfg.Worker.CloseSweepInterval)
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("ATTEND_TTL", "-5m")
	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "survey", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/survey?sslmode=disable", c.DSN())

	c.URL = "postgres://elsewhere/x"
	assert.Equal(t, "postgres://elsewhere/x", c.DSN())
}

func TestSplitTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitTrim(" a, ,b ", ","))
	assert.Nil(t, SplitTrim("", ","))
}
