package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_PORT", "SERVER_READ_TIMEOUT", "SERVER_SHUTDOWN_TIMEOUT", "SERVER_ALLOWED_ORIGINS",
		"JWT_SECRET", "AUTH_ALLOW_DEV_HEADER", "LEDGER_DSN", "GRAPH_URI",
		"REFERRAL_PERCENTAGES", "REFERRAL_PROMOTION_THRESHOLD", "REFERRAL_FALLBACK_CODE",
		"STAKING_MIN_TOKENS", "FLUID_STACK_NOTICE_DAYS", "ICO_PRICE_INR", "REWARDS_CONFIG_FILE",
		"REFERRAL_ACTIVE_WINDOW_DAYS", "REFERRAL_FANOUT_WORKERS", "GRAPH_MAX_CONNECTIONS", "LEDGER_MAX_CONNECTIONS",
		"PAYMENT_WEBHOOK_SECRET", "PRICE_RELOAD_INTERVAL", "WALLET_MIN_REFERRAL_REDEEM",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaultPort, cfg.HTTP.Port)
	assert.Equal(t, defaultShutdownTimeout, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "icorewards", cfg.Auth.Issuer)
	assert.True(t, cfg.Ledger.AutoMigrate)
	assert.Equal(t, DefaultRewards(), cfg.Rewards)
	assert.Equal(t, 10.0, cfg.Rewards.MinReferralRedeemINR)
	assert.Empty(t, cfg.Payments.WebhookSecret)
	assert.Equal(t, time.Minute, cfg.Pricing.ReloadInterval)
}

func TestLoadRequiresSecretUnlessDevHeader(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.ErrorIs(t, err, ErrMissingJWTSecret)

	t.Setenv("AUTH_ALLOW_DEV_HEADER", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Auth.AllowDevUserHeader)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_READ_TIMEOUT", "3s")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("REFERRAL_FALLBACK_CODE", " ico000000 ")
	t.Setenv("FLUID_STACK_NOTICE_DAYS", "0")
	t.Setenv("ICO_PRICE_INR", "12.5")
	t.Setenv("LEDGER_MAX_CONNECTIONS", " 25 ")
	t.Setenv("PAYMENT_WEBHOOK_SECRET", "gateway")
	t.Setenv("PRICE_RELOAD_INTERVAL", "0s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins())
	assert.Equal(t, "ICO000000", cfg.Rewards.FallbackReferralCode)
	assert.Zero(t, cfg.Rewards.FluidNoticeDays)
	assert.Equal(t, 12.5, cfg.Rewards.TokenPriceINR)
	assert.Equal(t, 25, cfg.Ledger.MaxConnections)
	assert.Equal(t, "gateway", cfg.Payments.WebhookSecret)
	assert.Zero(t, cfg.Pricing.ReloadInterval)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"SERVER_PORT":          "70000",
		"SERVER_READ_TIMEOUT":  "soon",
		"REFERRAL_PERCENTAGES": "5,15,10",
		"ICO_PRICE_INR":        "0",
		"STAKING_MIN_TOKENS":   "many",

		"FLUID_STACK_NOTICE_DAYS":      "abc",
		"REFERRAL_PROMOTION_THRESHOLD": "eight",
		"REFERRAL_ACTIVE_WINDOW_DAYS":  "30d",
		"GRAPH_MAX_CONNECTIONS":        "lots",
		"PRICE_RELOAD_INTERVAL":        "hourly",
		"WALLET_MIN_REFERRAL_REDEEM":   "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("JWT_SECRET", "s3cret")
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestRewardsFileOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
referral_percentages: [10, 10, 10, 5, 5, 3, 2, 1, 1]
promotion_threshold: 4
token_symbol: RWD
`), 0o600))
	t.Setenv("REWARDS_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 10, 10, 5, 5, 3, 2, 1, 1}, cfg.Rewards.ReferralPercentages)
	assert.Equal(t, 4, cfg.Rewards.PromotionThreshold)
	assert.Equal(t, "RWD", cfg.Rewards.TokenSymbol)
	assert.Equal(t, 30, cfg.Rewards.FluidNoticeDays)
}

func TestRewardsOverlayRejectsBadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	require.NoError(t, os.WriteFile(path, []byte("promotion_threshold: [nope"), 0o600))
	t.Setenv("REWARDS_CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}
