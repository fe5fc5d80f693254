package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLevel(t *testing.T) {
	t.Helper()
	prevLevel := GetLevel()
	prevDefault := slog.Default()
	t.Cleanup(func() {
		SetLevel(prevLevel)
		slog.SetDefault(prevDefault)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" Warn ", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetup_NonTerminalWritesJSON(t *testing.T) {
	restoreLevel(t)
	SetLevel(slog.LevelInfo)

	var buf bytes.Buffer
	logger := Setup(&buf)
	logger.Debug("hidden")
	logger.Info("visible", "poller", "downloads")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record), buf.String())
	assert.Equal(t, "visible", record["msg"])
	assert.Equal(t, "downloads", record["poller"])
	assert.Same(t, logger, slog.Default())
}

func TestLevelIsRuntimeAdjustable(t *testing.T) {
	restoreLevel(t)
	SetLevel(slog.LevelInfo)

	var buf bytes.Buffer
	logger := Setup(&buf)
	logger.Debug("first")
	assert.Zero(t, buf.Len())

	SetLevel(slog.LevelDebug)
	logger.Debug("second")
	assert.Contains(t, buf.String(), "second")
}

func TestCycleLevel(t *testing.T) {
	restoreLevel(t)

	SetLevel(slog.LevelDebug)
	assert.Equal(t, slog.LevelInfo, CycleLevel())
	assert.Equal(t, slog.LevelWarn, CycleLevel())
	assert.Equal(t, slog.LevelError, CycleLevel())
	assert.Equal(t, slog.LevelDebug, CycleLevel())
}

func TestOpenFile_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "tankobon.log")
	f, err := OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteString("hello\n")
	require.NoError(t, err)
	assert.False(t, isTerminal(f))
}

func TestHTTPMiddleware_PassesThroughStatus(t *testing.T) {
	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
