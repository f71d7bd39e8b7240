package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gulperrors "github.com/ligustah/gulp/internal/errors"
)

// capture redirects the CLI output streams for the duration of the test and
// keeps the user's cache directory out of reach.
func capture(t *testing.T) (out, errOut *bytes.Buffer) {
	t.Helper()
	out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	t.Cleanup(func() { stdout, stderr = prevOut, prevErr })

	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)
	t.Setenv("HOME", cache)
	for _, k := range []string{"GULP_DIRECTORY", "GULP_MIRROR", "GULP_HISTORY", "GULP_LIMIT_RATE", "GULP_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	return out, errOut
}

func fileServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/llama.gguf":
			w.Header().Set("Content-Length", "11")
			w.Write([]byte("hello world"))
		case "/agent":
			w.Write([]byte(r.UserAgent()))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunUsage(t *testing.T) {
	_, errOut := capture(t)
	assert.Equal(t, ExitInvalidArgs, run(nil))
	assert.Contains(t, errOut.String(), "Usage: gulp")

	assert.Equal(t, ExitSuccess, run([]string{"help"}))
	assert.Equal(t, ExitInvalidArgs, run([]string{"frobnicate"}))
	assert.Contains(t, errOut.String(), "Unknown command: frobnicate")
}

func TestRunVersion(t *testing.T) {
	out, _ := capture(t)
	assert.Equal(t, ExitSuccess, run([]string{"version"}))
	assert.Equal(t, "gulp dev\n", out.String())
}

func TestGet(t *testing.T) {
	out, _ := capture(t)
	server := fileServer(t)
	dir := filepath.Join(t.TempDir(), "downloads")
	hist := filepath.Join(t.TempDir(), "history.db")
	url := server.URL + "/models/llama.gguf"

	code := run([]string{"get", "-d", dir, "-quiet", "-history", hist, "-name", "llama", url})
	require.Equal(t, ExitSuccess, code)

	path := filepath.Join(dir, "llama.gguf")
	assert.Contains(t, out.String(), fmt.Sprintf("Downloaded '%s' => '%s'", url, path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))

	out.Reset()
	require.Equal(t, ExitSuccess, run([]string{"history", "-history", hist}))
	assert.Contains(t, out.String(), url)
	assert.Contains(t, out.String(), "llama")
}

func TestGetFlagsAfterURL(t *testing.T) {
	capture(t)
	server := fileServer(t)
	dir := t.TempDir()

	code := run([]string{"get", server.URL + "/models/llama.gguf", "-f", "report.bin", "-d", dir, "-quiet", "-no-history"})
	require.Equal(t, ExitSuccess, code)
	assert.FileExists(t, filepath.Join(dir, "report.bin"))
	assert.NoFileExists(t, filepath.Join(dir, "llama.gguf"))
}

func TestGetUserAgent(t *testing.T) {
	capture(t)
	server := fileServer(t)
	dir := t.TempDir()

	require.Equal(t, ExitSuccess, run([]string{"get", "-d", dir, "-quiet", "-no-history", server.URL + "/agent"}))
	got, err := os.ReadFile(filepath.Join(dir, "agent"))
	require.NoError(t, err)
	assert.Equal(t, "gulp/dev", string(got))
}

func TestGetProgressOutput(t *testing.T) {
	_, errOut := capture(t)
	server := fileServer(t)

	code := run([]string{"get", "-d", t.TempDir(), "-no-history", server.URL + "/models/llama.gguf"})
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, errOut.String(), "[gulp]")
	assert.Contains(t, errOut.String(), "llama.gguf")
}

func TestGetErrorWithoutProgressLine(t *testing.T) {
	_, errOut := capture(t)
	server := fileServer(t)

	code := run([]string{"get", "-d", t.TempDir(), "-no-history", server.URL + "/missing.bin"})
	require.Equal(t, ExitHTTPStatus, code)
	assert.True(t, strings.HasPrefix(errOut.String(), "Error: "), "got %q", errOut.String())
}

func TestGetNoHistory(t *testing.T) {
	capture(t)
	server := fileServer(t)
	hist := filepath.Join(t.TempDir(), "history.db")

	code := run([]string{"get", "-d", t.TempDir(), "-quiet", "-history", hist, "-no-history", server.URL + "/models/llama.gguf"})
	require.Equal(t, ExitSuccess, code)
	assert.NoFileExists(t, hist)
}

func TestGetErrors(t *testing.T) {
	server := fileServer(t)
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL + "/x.bin"
	closed.Close()

	occupied := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(occupied, []byte("x"), 0o644))

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"missing url", []string{}, ExitInvalidArgs},
		{"two urls", []string{server.URL + "/a", server.URL + "/b"}, ExitInvalidArgs},
		{"unsupported scheme", []string{"ftp://example.com/file"}, ExitInvalidArgs},
		{"unsafe filename", []string{"-f", "../escape", server.URL + "/models/llama.gguf"}, ExitInvalidArgs},
		{"bad limit", []string{"-limit-rate", "fast", server.URL + "/models/llama.gguf"}, ExitInvalidArgs},
		{"bad log level", []string{"-log-level", "chatty", server.URL + "/models/llama.gguf"}, ExitInvalidArgs},
		{"unknown flag", []string{"-bogus", server.URL}, ExitInvalidArgs},
		{"not found", []string{server.URL + "/missing.bin"}, ExitHTTPStatus},
		{"connection refused", []string{closedURL}, ExitNetworkError},
		{"directory is a file", []string{"-d", filepath.Join(occupied, "sub"), server.URL + "/models/llama.gguf"}, ExitFilesystemError},
		{"mirror scheme", []string{"-mirror", "nosuch://bucket", server.URL + "/models/llama.gguf"}, ExitMirrorError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture(t)
			args := append([]string{"get", "-quiet", "-no-history"}, tt.args...)
			if !slices.Contains(tt.args, "-d") {
				args = append(args, "-d", t.TempDir())
			}
			assert.Equal(t, tt.want, run(args))
		})
	}
}

func TestGetMirrorToFileBucket(t *testing.T) {
	out, errOut := capture(t)
	server := fileServer(t)
	bucketDir := t.TempDir()

	code := run([]string{"get", "-d", t.TempDir(), "-quiet", "-no-history",
		"-mirror", "file://" + filepath.ToSlash(bucketDir), server.URL + "/models/llama.gguf"})
	require.Equal(t, ExitSuccess, code, errOut.String())
	assert.Contains(t, out.String(), "Downloaded")

	got, err := os.ReadFile(filepath.Join(bucketDir, "llama.gguf"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
	assert.FileExists(t, filepath.Join(bucketDir, "llama.gguf.sha256"))
}

func TestGetConfigFile(t *testing.T) {
	capture(t)
	server := fileServer(t)
	dir := filepath.Join(t.TempDir(), "from-config")
	cfgPath := filepath.Join(t.TempDir(), "gulp.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf("directory: %s\nquiet: true\nno_history: true\n", dir)), 0o644))

	require.Equal(t, ExitSuccess, run([]string{"get", "-config", cfgPath, server.URL + "/models/llama.gguf"}))
	assert.FileExists(t, filepath.Join(dir, "llama.gguf"))

	assert.Equal(t, ExitInvalidArgs, run([]string{"get", "-config", filepath.Join(t.TempDir(), "missing.yaml"), server.URL}))
}

func TestHistoryEmpty(t *testing.T) {
	_, errOut := capture(t)
	hist := filepath.Join(t.TempDir(), "none.db")
	assert.Equal(t, ExitSuccess, run([]string{"history", "-history", hist}))
	assert.Contains(t, errOut.String(), "No downloads recorded")
	assert.NoFileExists(t, hist)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{gulperrors.NewInvalidInputError("parse", "x", gulperrors.ErrInvalidURL), ExitInvalidArgs},
		{gulperrors.NewNetworkError("get", "x", assert.AnError), ExitNetworkError},
		{gulperrors.NewHTTPStatusError("get", "x", 503), ExitHTTPStatus},
		{gulperrors.NewFilesystemError("write", "x", assert.AnError), ExitFilesystemError},
		{gulperrors.NewCanceledError("read", "x", assert.AnError), ExitCanceled},
		{assert.AnError, ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(strings.ToLower(string(gulperrors.KindOf(tt.err))), func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
