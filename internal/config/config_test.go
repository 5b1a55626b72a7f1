package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.xai-community.dev", cfg.APIURL)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "file", cfg.SessionStore)
	assert.Equal(t, 24*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, 24, cfg.SessionMaxRefresh)
	assert.Equal(t, time.Minute, cfg.SessionCheckEvery)
	assert.Equal(t, 60*time.Second, cfg.SessionRefreshSkew)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_DefaultSessionFile(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(cfg.SessionFile, "xai-community/session.json"),
		"unexpected session file path %q", cfg.SessionFile)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("XAI_API_URL", "http://localhost:8000")
	t.Setenv("XAI_SESSION_FILE", "/tmp/session.json")
	t.Setenv("XAI_SESSION_MAX_AGE", "12h")
	t.Setenv("XAI_SESSION_MAX_REFRESHES", "5")
	t.Setenv("XAI_CACHE_TTL", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, "/tmp/session.json", cfg.SessionFile)
	assert.Equal(t, 12*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, 5, cfg.SessionMaxRefresh)
	assert.Equal(t, 10*time.Second, cfg.CacheTTL)
}

func TestLoad_RejectsRelativeAPIURL(t *testing.T) {
	t.Setenv("XAI_API_URL", "not-a-url")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XAI_API_URL must be an absolute URL")
}

func TestLoad_RejectsUnknownSessionStore(t *testing.T) {
	t.Setenv("XAI_SESSION_STORE", "magnetic-tape")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XAI_SESSION_STORE must be")
}

func TestLoad_RedisStoreRequiresURL(t *testing.T) {
	t.Setenv("XAI_SESSION_STORE", "redis")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XAI_REDIS_URL is required")
}

func TestLoad_RedisStoreWithURL(t *testing.T) {
	t.Setenv("XAI_SESSION_STORE", "redis")
	t.Setenv("XAI_REDIS_URL", "redis://localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.SessionStore)
}

func TestLoad_SessionKeyValidation(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr string
	}{
		{"not hex", "zz" + strings.Repeat("ab", 31), "must be valid hex"},
		{"too short", strings.Repeat("ab", 16), "32 bytes"},
		{"too long", strings.Repeat("ab", 48), "32 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XAI_SESSION_KEY", tt.key)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ValidSessionKey(t *testing.T) {
	t.Setenv("XAI_SESSION_KEY", strings.Repeat("ab", 32))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ab", 32), cfg.SessionKey)
}

func TestLoad_RejectsZeroMaxRefreshes(t *testing.T) {
	t.Setenv("XAI_SESSION_MAX_REFRESHES", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XAI_SESSION_MAX_REFRESHES must be at least 1")
}
