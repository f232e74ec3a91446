package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vipguy/Bing4/internal/mockapi"
)

// setupEnv isolates config and local state and returns the mock backend URL
func setupEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("BING4_DATA_DIR", filepath.Join(home, "data"))
	t.Setenv("BING4_POLL_INTERVAL", "1ms")
	t.Setenv("BING4_BASE_URL", "")
	t.Setenv("LOG_LEVEL", "")

	srv := httptest.NewServer(mockapi.New(mockapi.Options{
		StepsPerFetch: 2,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, baseURL string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--base-url", baseURL))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

var createdRe = regexp.MustCompile(`Created session (\S+)`)

func createdID(t *testing.T, out string) string {
	t.Helper()
	m := createdRe.FindStringSubmatch(out)
	require.Len(t, m, 2, "no session id in %q", out)
	return m[1]
}

func TestStylesCommand(t *testing.T) {
	url := setupEnv(t)
	out, err := run(t, url, "styles")
	require.NoError(t, err)
	assert.Contains(t, out, "watercolor")
	assert.Contains(t, out, "chibi")
}

func TestPingCommand(t *testing.T) {
	url := setupEnv(t)
	out, err := run(t, url, "ping")
	require.NoError(t, err)
	assert.Contains(t, out, mockapi.Banner)
}

func TestPingUnreachable(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "http://127.0.0.1:1", "ping")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unreachable")
}

func TestGenerateWait(t *testing.T) {
	url := setupEnv(t)
	out, err := run(t, url, "generate", "a red fox",
		"-s", "cartoon,anime", "-n", "2", "--cookie", "_U=abc", "--wait")
	require.NoError(t, err)

	assert.Contains(t, out, "(4 images)")
	assert.Contains(t, out, "4/4")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "cartoon, anime")
}

func TestGenerateValidation(t *testing.T) {
	url := setupEnv(t)

	_, err := run(t, url, "generate", "   ")
	require.Error(t, err)
	assert.Equal(t, "Please enter a prompt", err.Error())

	_, err = run(t, url, "generate", "a cat", "-n", "5")
	require.Error(t, err)
	assert.Equal(t, "Images per style must be between 1 and 4", err.Error())
}

func TestGenerateUsesStoredDefaults(t *testing.T) {
	url := setupEnv(t)
	_, err := run(t, url, "settings", "set", "images-per-style", "3")
	require.NoError(t, err)

	out, err := run(t, url, "generate", "a cat", "--cookie", "_U=abc")
	require.NoError(t, err)
	assert.Contains(t, out, "(3 images)")
}

func TestBatchCommand(t *testing.T) {
	url := setupEnv(t)
	file := filepath.Join(t.TempDir(), "prompts.txt")
	require.NoError(t, os.WriteFile(file, []byte("a cat\n\n  a dog  \n"), 0o644))

	out, err := run(t, url, "batch", file, "-n", "1", "--cookie", "_U=abc", "--wait")
	require.NoError(t, err)

	assert.Contains(t, out, "Uploaded: prompts.txt (2 prompts)")
	assert.Contains(t, out, "1 style per prompt")
	assert.Contains(t, out, "Total: 2 images")
	assert.Contains(t, out, "Created 2 sessions")
	assert.Contains(t, out, "a dog")
}

func TestBatchRejectsUnsupportedFile(t *testing.T) {
	url := setupEnv(t)
	file := filepath.Join(t.TempDir(), "prompts.md")
	require.NoError(t, os.WriteFile(file, []byte("a cat\n"), 0o644))

	_, err := run(t, url, "batch", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Only .txt and .csv files are supported")
}

func TestSessionsAndWatch(t *testing.T) {
	url := setupEnv(t)

	out, err := run(t, url, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "No generation sessions yet")

	out, err = run(t, url, "generate", "an owl", "-n", "2", "--cookie", "_U=abc")
	require.NoError(t, err)
	id := createdID(t, out)

	out, err = run(t, url, "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "an owl")
	assert.Contains(t, out, "No styles")

	out, err = run(t, url, "watch", id)
	require.NoError(t, err)
	assert.Contains(t, out, "2/2")
	assert.Contains(t, out, "completed")

	_, err = run(t, url, "watch", "missing")
	require.Error(t, err)
	assert.Equal(t, "session missing not found", err.Error())

	_, err = run(t, url, "download", "missing")
	require.Error(t, err)
	assert.Equal(t, "session missing not found", err.Error())
}

func TestDownloadCommand(t *testing.T) {
	url := setupEnv(t)
	out, err := run(t, url, "generate", "a cat", "-n", "2", "--cookie", "_U=abc", "--wait")
	require.NoError(t, err)
	id := createdID(t, out)

	dir := t.TempDir()
	out, err = run(t, url, "download", id, "--dir", dir)
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "pixel_image_*.png"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Contains(t, out, dir)
	assert.NotContains(t, out, "already saved")

	// a second run finds both images in the ledger and leaves the files alone
	for _, f := range files {
		require.NoError(t, os.WriteFile(f, []byte("kept"), 0o644))
	}
	out, err = run(t, url, "download", id, "--dir", dir)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "already saved"))
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))

	out, err = run(t, url, "download", id, "--dir", dir, "--force")
	require.NoError(t, err)
	assert.NotContains(t, out, "already saved")
	data, err = os.ReadFile(files[0])
	require.NoError(t, err)
	assert.NotEqual(t, "kept", string(data))

	out, err = run(t, url, "downloads", id)
	require.NoError(t, err)
	assert.Contains(t, out, files[0])
	assert.Contains(t, out, "2 images")

	out, err = run(t, url, "downloads", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "No downloads recorded for other")
}

func TestTestCookieCommand(t *testing.T) {
	url := setupEnv(t)

	// The stored default "_U=" carries no value
	out, err := run(t, url, "test-cookie")
	assert.ErrorIs(t, err, errInvalidCookie)
	assert.Contains(t, out, "✗ Cookie is invalid or expired")

	out, err = run(t, url, "test-cookie", "--cookie", "_U=abc")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Cookie is valid")
}

func TestTestCookieUnreachableBackend(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "http://127.0.0.1:1", "test-cookie", "--cookie", "_U=abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errInvalidCookie)
	assert.Contains(t, out, "✗ Cookie test failed")
	assert.NotContains(t, out, "invalid or expired")
}

func TestSettingsCommand(t *testing.T) {
	url := setupEnv(t)

	_, err := run(t, url, "settings", "set", "auth-cookie", "_U=secretvalue")
	require.NoError(t, err)
	_, err = run(t, url, "settings", "set", "storage-path", "/srv/images")
	require.NoError(t, err)

	out, err := run(t, url, "settings")
	require.NoError(t, err)
	assert.Contains(t, out, "_U=••••••••alue")
	assert.NotContains(t, out, "secretvalue")
	assert.Contains(t, out, "/srv/images")

	_, err = run(t, url, "settings", "set", "images-per-style", "9")
	assert.Error(t, err)
	_, err = run(t, url, "settings", "set", "colour", "blue")
	assert.ErrorContains(t, err, "unknown setting")
}

func TestConfigCommands(t *testing.T) {
	url := setupEnv(t)

	out, err := run(t, url, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(".bing4", "config.yaml"))

	_, err = run(t, url, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	out, err = run(t, url, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "base_url:")
	assert.Contains(t, out, "interval: 1ms")
}

func TestMockServerLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runMockServer(ctx, &mockServerOptions{addr: "127.0.0.1:0", steps: 1}, ready)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-errCh:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/api/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"_U=", "_U="},
		{"_U=abc", "_U=abc"},
		{"_U=abcdefgh", "_U=••••••••efgh"},
		{"plainsecret", "••••••••cret"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, maskSecret(tt.in), tt.in)
	}
}

func TestSplitStyles(t *testing.T) {
	got := splitStyles([]string{"anime, noir", "", " sketch "})
	assert.Equal(t, []string{"anime", "noir", "sketch"}, got)
	assert.Nil(t, splitStyles(nil))
}
