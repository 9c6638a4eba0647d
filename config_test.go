package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENROUTER_API_KEY")
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sk-or-test", cfg.APIKey)
	assert.Equal(t, defaultAPIURL, cfg.APIURL)
	assert.Equal(t, defaultCouncilModels, cfg.CouncilModels)
	assert.Equal(t, defaultChairmanModel, cfg.ChairmanModel)
	assert.Equal(t, defaultTitleModel, cfg.TitleModel)
	assert.Equal(t, defaultQueryTimeout, cfg.QueryTimeout)
	assert.Equal(t, defaultTitleTimeout, cfg.TitleTimeout)
	assert.Equal(t, defaultDataDir, cfg.DataDir)
	assert.Equal(t, defaultListenAddr, cfg.ListenAddr)
	assert.False(t, cfg.AuthEnabled)
	assert.Empty(t, cfg.CORSAllowedOrigins)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
	t.Setenv("COUNCIL_MODELS", "a/one, b/two ,c/three")
	t.Setenv("CHAIRMAN_MODEL", "b/two")
	t.Setenv("MODEL_QUERY_TIMEOUT", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://example.com,https://app.example.com")
	t.Setenv("DATA_DIR", "/tmp/council-data")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"a/one", "b/two", "c/three"}, cfg.CouncilModels)
	assert.Equal(t, "b/two", cfg.ChairmanModel)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, []string{"https://example.com", "https://app.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "/tmp/council-data", cfg.DataDir)
}

func TestLoadConfigInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
	t.Setenv("MODEL_QUERY_TIMEOUT", "not-a-duration")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultQueryTimeout, cfg.QueryTimeout)
}

func TestLoadConfigAuthRequiresKeys(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
	t.Setenv("API_AUTH_ENABLED", "true")
	t.Setenv("API_KEYS", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEYS")
}

func TestLoadConfigAuthWithKeys(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
	t.Setenv("API_AUTH_ENABLED", "true")
	t.Setenv("API_KEYS", "key-one,key-two")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.AuthEnabled)
	assert.Equal(t, []string{"key-one", "key-two"}, cfg.APIKeys)
}
