package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("PI_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessExpiry)
	assert.Equal(t, "https://api.minepi.com", cfg.PiAPIURL)
	assert.Equal(t, 3, cfg.PiMaxRetries)
	assert.Equal(t, "@every 10m", cfg.ReconcileSchedule)
	assert.Equal(t, DefaultGame().MaxLevel, cfg.MaxLevel)
	assert.Equal(t, int64(1000), cfg.LevelUpExperienceBase)
	assert.Equal(t, "9.99", cfg.PremiumPrice.String())
	assert.Equal(t, "10", cfg.WelcomeBonus.String())
	assert.Equal(t, 24*time.Hour, cfg.QuestExpiry)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_LEVEL", "100")
	t.Setenv("PREMIUM_PRICE", "4.50")
	t.Setenv("PI_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.MaxLevel)
	assert.Equal(t, "4.5", cfg.PremiumPrice.String())
	assert.Equal(t, 5*time.Second, cfg.PiTimeout)
}

func TestValidateRequiresSecrets(t *testing.T) {
	cfg := &Config{Game: DefaultGame()}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "DB_PASSWORD")
	assert.Contains(t, err.Error(), "PI_API_KEY")
}

func TestValidateRejectsBadGameConstants(t *testing.T) {
	cfg := &Config{JWTSecret: "s", DBPassword: "p", PiAPIKey: "k", Game: DefaultGame()}
	cfg.MaxLevel = 0
	assert.Error(t, cfg.Validate())
}

func TestAdminPiUIDList(t *testing.T) {
	cfg := &Config{AdminPiUIDs: " a, b ,,c"}
	assert.Equal(t, []string{"a", "b", "c"}, cfg.AdminPiUIDList())
}
