package logger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/insights/infrastructure/logger"
)

func readLog(t *testing.T, format string, write func(logger.Logger)) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "out.log")
	l, err := logger.New(logger.Config{Level: "debug", Format: format, OutputPaths: []string{path}})
	require.NoError(t, err)

	write(l)
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	out := readLog(t, logger.FormatJSON, func(l logger.Logger) {
		l.With(logger.String("service", "insights")).Info("started",
			logger.Int("port", 8097),
			logger.Float64("current_total", 12.5),
			logger.Bool("filtered", true),
		)
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.Equal(t, "started", entry["msg"])
	assert.Equal(t, "insights", entry["service"])
	assert.InDelta(t, 8097, entry["port"], 0)
	assert.InDelta(t, 12.5, entry["current_total"], 1e-9)
	assert.Equal(t, true, entry["filtered"])
}

func TestNew_Console(t *testing.T) {
	t.Parallel()

	out := readLog(t, logger.FormatConsole, func(l logger.Logger) {
		l.Warn("circuit opened", logger.String("resource", "runReport:1"))
	})

	assert.False(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "circuit opened")
	assert.Contains(t, out, "runReport:1")
}

func TestNew_LevelFilters(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.log")
	l, err := logger.New(logger.Config{Level: "error", OutputPaths: []string{path}})
	require.NoError(t, err)

	l.Info("dropped")
	l.Error("kept")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}
