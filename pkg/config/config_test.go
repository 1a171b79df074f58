package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "podping-watcher", cfg.App.Name)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "static", cfg.Accounts.Source)
	assert.Equal(t, []string{"podping"}, cfg.Accounts.Anchors)
	assert.Equal(t, time.Hour, cfg.Accounts.RefreshInterval)
	assert.False(t, cfg.Podping.Livetest)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ACCOUNTS_SOURCE", "redis")
	t.Setenv("ACCOUNTS_STATIC", "podping.aaa,podping.bbb")
	t.Setenv("ACCOUNTS_REFRESH_INTERVAL", "15m")
	t.Setenv("PODPING_LIVETEST", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "redis", cfg.Accounts.Source)
	assert.Equal(t, []string{"podping.aaa", "podping.bbb"}, cfg.Accounts.Static)
	assert.Equal(t, 15*time.Minute, cfg.Accounts.RefreshInterval)
	assert.True(t, cfg.Podping.Livetest)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("ACCOUNTS_REFRESH_INTERVAL", "soon")

	_, err := Load()
	assert.Error(t, err)
}
