package loreconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "loreforge", cfg.Name)
	assert.Equal(t, 12, cfg.Travel.BaseSpeed)
	assert.Equal(t, "data/world/reputation_rules.json", cfg.Reputation.RulesPath)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "loreforge.yaml")
	cfg := DefaultConfig()
	cfg.Travel.BaseSpeed = 20
	cfg.Retrieval.MaxLimit = 99
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, loaded.Travel.BaseSpeed)
	assert.Equal(t, 99, loaded.Retrieval.MaxLimit)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unterminated"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnvOverridesTakesPrecedence(t *testing.T) {
	t.Setenv("LOREFORGE_LOG_LEVEL", "debug")
	t.Setenv("LOREFORGE_DEBUG", "true")
	t.Setenv("MEMORY_EMBED_MODE", "local-model")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.DebugMode)
	assert.Equal(t, "local-model", cfg.Embedding.ForcedMode)
}

func TestValidateRejectsInconsistentRetrievalLimits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retrieval.DefaultLimit = 50
	cfg.Retrieval.MaxLimit = 10
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownEmbeddingProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}

func TestDefaultStackMaxFallsBackWhenUnset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trade.DefaultStackMax = 0
	assert.Equal(t, 99, cfg.DefaultStackMax())
}
