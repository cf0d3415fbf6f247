package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreInternallyConsistent(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.validate())
	assert.Less(t, cfg.Thresholds.HeadsUpMax, cfg.Thresholds.ActionableBaseThreshold)
	assert.Less(t, cfg.Thresholds.ActionableBaseThreshold, cfg.Thresholds.HighConvictionMin)
	assert.Negative(t, cfg.Thresholds.RiskOnAdj)
	assert.Positive(t, cfg.Thresholds.RiskOffAdj)
}

func TestLoadAppliesYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stream_market: test.market
thresholds:
  min_liquidity_actionable: 200000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test.market", cfg.StreamMarket)
	assert.Equal(t, 200000.0, cfg.Thresholds.MinLiquidityActionable)
	assert.Equal(t, 500000.0, cfg.Thresholds.MinVolumeActionable, "untouched defaults survive")
}

func TestLoadEnvBeatsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("redis_url: redis://yaml:6379\n"), 0o644))
	t.Setenv("REDIS_URL", "redis://env:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis://env:6379", cfg.RedisURL)
}

func TestLoadRejectsInvertedBands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
thresholds:
  headsup_max: 80
  actionable_base_threshold: 70
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "headsup_max")
}

func TestSecretFileIndirection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("bot-token-from-file\n"), 0o600))
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_BOT_TOKEN_FILE", path)

	assert.Equal(t, "bot-token-from-file", secretEnv("TELEGRAM_BOT_TOKEN"))
}

func TestSecretPrefersDirectEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "direct")
	t.Setenv("TELEGRAM_BOT_TOKEN_FILE", "/nonexistent")

	assert.Equal(t, "direct", secretEnv("TELEGRAM_BOT_TOKEN"))
}
