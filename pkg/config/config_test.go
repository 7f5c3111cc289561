package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8711", settings.Gateway.BaseURL)
	assert.Equal(t, 60*time.Second, settings.Gateway.Timeout)
	assert.Equal(t, "info", settings.Log.Level)
	assert.Equal(t, ":8711", settings.Server.ListenAddr)
	assert.Equal(t, "gpt-4o-mini", settings.Server.OpenAIModel)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loom.yaml")
	content := `
gateway:
  base_url: https://canvas.example.com
identity:
  user_id: ada
  display_name: Ada Lovelace
  email: ada@example.com
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://canvas.example.com", settings.Gateway.BaseURL)
	assert.Equal(t, "ada", settings.Identity.UserID)
	assert.Equal(t, "Ada Lovelace", settings.Identity.DisplayName)
	assert.Equal(t, "debug", settings.Log.Level)

	// defaults still apply for keys the file omits
	assert.Equal(t, ":8711", settings.Server.ListenAddr)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LOOM_GATEWAY_BASE_URL", "http://env-wins:9000")
	t.Setenv("LOOM_LOG_LEVEL", "trace")

	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://env-wins:9000", settings.Gateway.BaseURL)
	assert.Equal(t, "trace", settings.Log.Level)
}

func TestLoadBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "loom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway: [not a map"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
