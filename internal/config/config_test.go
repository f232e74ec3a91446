package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8001", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 60, cfg.Poll.MaxRetries)
	assert.Equal(t, StorageDir, cfg.Storage.Backend)
}

func TestLoadProjectBeforeGlobal(t *testing.T) {
	project := writeFile(t, t.TempDir(), "base_url: http://project:9000\n")
	global := writeFile(t, t.TempDir(), "base_url: http://global:9000\npoll:\n  max_retries: 5\n")

	cfg, err := load(project, global)
	require.NoError(t, err)
	assert.Equal(t, "http://project:9000", cfg.BaseURL)
	// files are not merged
	assert.Equal(t, 60, cfg.Poll.MaxRetries)

	cfg, err = load(filepath.Join(t.TempDir(), "none.yaml"), global)
	require.NoError(t, err)
	assert.Equal(t, "http://global:9000", cfg.BaseURL)
	assert.Equal(t, 5, cfg.Poll.MaxRetries)
}

func TestLoadYAMLDurations(t *testing.T) {
	path := writeFile(t, t.TempDir(), "poll:\n  interval: 250ms\nrequest_timeout: 5s\n")
	cfg, err := load(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
}

func TestEnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "base_url: http://file:1\n")
	t.Setenv("BING4_BASE_URL", "http://env:2")
	t.Setenv("BING4_POLL_INTERVAL", "2s")
	t.Setenv("BING4_POLL_MAX_RETRIES", "7")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BING4_STORAGE_BACKEND", "minio")
	t.Setenv("BING4_MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("BING4_MINIO_USE_SSL", "true")

	cfg, err := load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env:2", cfg.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 7, cfg.Poll.MaxRetries)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StorageMinio, cfg.Storage.Backend)
	assert.Equal(t, "localhost:9000", cfg.Storage.Minio.Endpoint)
	assert.True(t, cfg.Storage.Minio.UseSSL)
	assert.Equal(t, "pixel-images", cfg.Storage.Minio.Bucket)
}

func TestInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("BING4_POLL_MAX_RETRIES", "lots")
	t.Setenv("BING4_POLL_INTERVAL", "soon")

	cfg, err := load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Poll.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Poll.Interval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"relative url", "base_url: localhost:8001\n", "base_url"},
		{"zero interval", "poll:\n  interval: 0s\n", "poll.interval"},
		{"negative retries", "poll:\n  max_retries: -1\n", "poll.max_retries"},
		{"unknown backend", "storage:\n  backend: ftp\n", "storage.backend"},
		{"minio without endpoint", "storage:\n  backend: minio\n", "storage.minio.endpoint"},
		{"bad yaml", "poll: [\n", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.body)
			_, err := load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.BaseURL = "http://saved:1"
	cfg.Poll.Interval = 3 * time.Second

	require.NoError(t, save(cfg, path))
	got, err := load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://saved:1", got.BaseURL)
	assert.Equal(t, 3*time.Second, got.Poll.Interval)
}

func TestPaths(t *testing.T) {
	cfg := &Config{DataDir: "/tmp/x"}
	assert.Equal(t, "/tmp/x/logs/bing4.log", cfg.LogPath())
	assert.Equal(t, "/tmp/x/local.db", cfg.LocalDBPath())
}

func TestSaveDefaultToGlobal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := SaveDefaultToGlobal(false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".bing4", "config.yaml"), path)

	got, err := load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8001", got.BaseURL)

	_, err = SaveDefaultToGlobal(false)
	assert.ErrorContains(t, err, "already exists")

	_, err = SaveDefaultToGlobal(true)
	assert.NoError(t, err)
}
