package infra

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MatchGroupSize)
	assert.Equal(t, 2*time.Hour, cfg.MatchWindow)
	assert.Equal(t, 3, cfg.NearbyClubLimit)
	assert.Equal(t, 7, cfg.ProvisionHorizonDays)
	assert.Equal(t, "1 0 * * *", cfg.ProvisionSchedule)
	assert.Equal(t, int64(2500), cfg.DefaultSlotPriceCents)
	assert.Equal(t, BrokerNone, cfg.EventBroker)
	assert.Equal(t, int32(20), cfg.DBMaxConns)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("MATCH_GROUP_SIZE", "6")
	t.Setenv("MATCH_WINDOW", "90m")
	t.Setenv("EVENT_BROKER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SCHEDULE_TIMEZONE", "UTC")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.MatchGroupSize)
	assert.Equal(t, 90*time.Minute, cfg.MatchWindow)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokerList())
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"group too small", func(c *Config) { c.MatchGroupSize = 1 }},
		{"zero window", func(c *Config) { c.MatchWindow = 0 }},
		{"no nearby clubs", func(c *Config) { c.NearbyClubLimit = 0 }},
		{"horizon too long", func(c *Config) { c.ProvisionHorizonDays = 61 }},
		{"unknown broker", func(c *Config) { c.EventBroker = "sqs" }},
		{"bad time zone", func(c *Config) { c.ScheduleTimezone = "Mars/Olympus" }},
		{"bad cron", func(c *Config) { c.ProvisionSchedule = "every day" }},
		{"negative price", func(c *Config) { c.DefaultSlotPriceCents = -1 }},
		{"tiny pool", func(c *Config) { c.DBMaxConns = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_SharedClubCacheTTL(t *testing.T) {
	cfg := &Config{ClubCacheTTL: time.Minute}
	assert.Zero(t, cfg.SharedClubCacheTTL(), "in-memory caches are per process")

	cfg.RedisEnabled = true
	assert.Equal(t, time.Minute, cfg.SharedClubCacheTTL())
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{PGUser: "u", PGPassword: "p", PGHost: "h", PGPort: 1, PGDatabase: "d"}
	assert.Equal(t, "postgres://u:p@h:1/d?sslmode=disable", cfg.DSN())

	cfg.DatabaseURL = "postgres://override"
	assert.Equal(t, "postgres://override", cfg.DSN())
}

func TestConfig_SlogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo,
	} {
		assert.Equal(t, want, (&Config{LogLevel: in}).SlogLevel(), in)
	}
}

func TestParseSchedule(t *testing.T) {
	sched, err := ParseSchedule("1 0 * * *")
	require.NoError(t, err)

	from := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 1, 0, 0, time.UTC), sched.Next(from))

	_, err = ParseSchedule("@daily")
	assert.NoError(t, err)
}

func TestRetry(t *testing.T) {
	calls := 0
	err := retry(t.Context(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return assert.AnError
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retry(t.Context(), 2, time.Millisecond, func() error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, calls)
}

func TestFindMigrationDir(t *testing.T) {
	root := t.TempDir()
	migrations := filepath.Join(root, "db", "migrations")
	nested := filepath.Join(root, "internal", "store")
	require.NoError(t, os.MkdirAll(migrations, 0o755))
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	got, err := filepath.EvalSymlinks(findMigrationDir())
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(migrations)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
