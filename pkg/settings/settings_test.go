package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434/v1", s.LLM.BaseURL)
	assert.Equal(t, "llama3", s.LLM.Model)
	assert.Equal(t, 60*time.Second, s.LLM.Timeout)
	assert.Nil(t, s.LLM.Temperature)
	assert.Equal(t, 15*time.Second, s.Dispatch.Timeout)
	assert.Equal(t, 5, s.Dispatch.PlaceLimit)
	assert.Equal(t, "0.0.0.0", s.Server.Host)
	assert.Equal(t, 8000, s.Server.Port)
	assert.True(t, s.Server.Debug)
	assert.Equal(t, []string{"*"}, s.Server.CORSOrigins)
	assert.Equal(t, 10, s.Server.SearchLimit)
	assert.False(t, s.CacheEnabled())
	assert.False(t, s.MapsConfigured())
	assert.True(t, s.LLMConfigured())
}

func TestLegacyEnvironmentNames(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", "maps-key")
	t.Setenv("LLM_MODEL", "mistral")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("DEBUG", "false")

	v, err := New()
	require.NoError(t, err)
	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "maps-key", s.Maps.APIKey)
	assert.Equal(t, "mistral", s.LLM.Model)
	assert.Equal(t, 9000, s.Server.Port)
	assert.False(t, s.Server.Debug)
}

func TestPrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("LLM_MODEL", "mistral")
	t.Setenv("WAYPOINT_LLM_MODEL", "qwen")
	t.Setenv("WAYPOINT_DISPATCH_PLACE_LIMIT", "3")
	t.Setenv("WAYPOINT_CACHE_TTL", "90s")

	v, err := New()
	require.NoError(t, err)
	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "qwen", s.LLM.Model)
	assert.Equal(t, 3, s.Dispatch.PlaceLimit)
	assert.Equal(t, 90*time.Second, s.Cache.TTL)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "waypoint.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: gpt-4o-mini
  temperature: 0.3
server:
  port: 8080
  cors-origins: [https://example.com]
cache:
  redis-addr: localhost:6379
  ttl: 5m
`), 0o600))

	v, err := New()
	require.NoError(t, err)
	require.NoError(t, ReadConfigFile(v, path))
	s, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", s.LLM.Model)
	require.NotNil(t, s.LLM.Temperature)
	assert.InDelta(t, 0.3, *s.LLM.Temperature, 1e-9)
	assert.Equal(t, 8080, s.Server.Port)
	assert.Equal(t, []string{"https://example.com"}, s.Server.CORSOrigins)
	assert.True(t, s.CacheEnabled())
	assert.Equal(t, 5*time.Minute, s.Cache.TTL)
}

func TestMissingConfigFileIsFine(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	v, err := New()
	require.NoError(t, err)
	require.NoError(t, ReadConfigFile(v, ""))
}

func TestValidate(t *testing.T) {
	v, err := New()
	require.NoError(t, err)
	v.Set("llm.model", "")
	v.Set("server.port", 70000)
	v.Set("dispatch.place-limit", 0)

	_, err = Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.model")
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "dispatch.place-limit")
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LLM_MODEL=from-dotenv\nWAYPOINT_TEST_ONLY_KEY=hello\n"), 0o600))
	t.Setenv("LLM_MODEL", "from-env")
	t.Setenv("WAYPOINT_TEST_ONLY_KEY", "")
	os.Unsetenv("WAYPOINT_TEST_ONLY_KEY")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-env", os.Getenv("LLM_MODEL"))
	assert.Equal(t, "hello", os.Getenv("WAYPOINT_TEST_ONLY_KEY"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestMaskedHidesSecrets(t *testing.T) {
	s := &Settings{
		LLM:   LLMSettings{APIKey: "sk-123", Model: "llama3"},
		Maps:  MapsSettings{APIKey: "maps-key"},
		Cache: CacheSettings{RedisPassword: ""},
	}
	m := s.Masked()
	assert.Equal(t, "****", m.LLM.APIKey)
	assert.Equal(t, "****", m.Maps.APIKey)
	assert.Equal(t, "", m.Cache.RedisPassword)
	assert.Equal(t, "sk-123", s.LLM.APIKey)
}
