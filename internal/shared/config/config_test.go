package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "escrow-service")

	cfg := Load()
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "8083", cfg.HTTPPort)
	assert.Equal(t, "9099", cfg.MetricsPort)
	assert.Equal(t, int64(300), cfg.FeeBps)
	assert.Equal(t, "retain", cfg.NoWinnerPolicy)
	assert.Equal(t, "escrow_game_events", cfg.TopicGameEvents)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.False(t, cfg.SingleGame)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "wallet-service")
	t.Setenv("FEE_BPS", "250")
	t.Setenv("NO_WINNER_POLICY", "refund")
	t.Setenv("CACHE_TTL", "5s")
	t.Setenv("SINGLE_GAME", "true")
	t.Setenv("SINGLE_GAME_TEAM_A", "FLA")
	t.Setenv("HTTP_PORT_WALLET", "9000")

	cfg := Load()
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, int64(250), cfg.FeeBps)
	assert.Equal(t, "refund", cfg.NoWinnerPolicy)
	assert.Equal(t, 5*time.Second, cfg.CacheTTL)
	assert.True(t, cfg.SingleGame)
	assert.Equal(t, "FLA", cfg.SingleGameTeamA)
}

func TestLoadWalletServices(t *testing.T) {
	t.Setenv("SERVICE_NAME", "wallet-service")
	t.Setenv("WALLET_SERVICES", "escrow-service, operator,,")

	cfg := Load()
	assert.Equal(t, []string{"escrow-service", "operator"}, cfg.WalletServices)
	assert.NotEmpty(t, cfg.WalletJWTSecret)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")
	t.Setenv("FEE_BPS", "three percent")
	t.Setenv("SINGLE_GAME", "maybe")

	cfg := Load()
	assert.Equal(t, int64(300), cfg.FeeBps)
	assert.False(t, cfg.SingleGame)
	assert.Equal(t, "8080", cfg.HTTPPort)
}

func TestLoadForDefaultService(t *testing.T) {
	cfg := LoadFor("audit-worker")
	if _, set := os.LookupEnv("SERVICE_NAME"); set {
		t.Skip("SERVICE_NAME set in environment")
	}
	assert.Equal(t, "audit-worker", cfg.ServiceName)
	assert.Equal(t, "", cfg.HTTPPort)
	assert.Equal(t, "9097", cfg.MetricsPort)
}
