package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.MarketDataMaxCalls)
	assert.Equal(t, 60*time.Second, cfg.MarketDataWindow)
	assert.Equal(t, 3, cfg.SyncMaxRetries)
	assert.Equal(t, time.Second, cfg.SyncRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
	assert.True(t, cfg.ValuationJitter)
	assert.InDelta(t, 6.667, cfg.APIRateRPS, 0.001)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MFL_API_URL", "http://localhost:4000/")
	t.Setenv("SYNC_PLAYER_CAP", "25")
	t.Setenv("OPPONENT_PAUSE", "0s")
	t.Setenv("VALUATION_JITTER", "false")
	t.Setenv("LOG_FORMAT", "TEXT")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://localhost:4000", cfg.APIURL)
	assert.Equal(t, 25, cfg.SyncPlayerCap)
	assert.Zero(t, cfg.OpponentPause)
	assert.False(t, cfg.ValuationJitter)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestGetEnvHelpers_InvalidFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		value string
		check func(t *testing.T)
	}{
		{"int", "ten", func(t *testing.T) { assert.Equal(t, 7, GetEnvAsInt("CFG_TEST", 7)) }},
		{"float", "1,5", func(t *testing.T) { assert.Equal(t, 2.5, GetEnvAsFloat("CFG_TEST", 2.5)) }},
		{"duration", "5 minutes", func(t *testing.T) { assert.Equal(t, time.Minute, GetEnvAsDuration("CFG_TEST", time.Minute)) }},
		{"bool", "maybe", func(t *testing.T) { assert.True(t, GetEnvAsBool("CFG_TEST", true)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CFG_TEST", tt.value)
			tt.check(t)
		})
	}
}
