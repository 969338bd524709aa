package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeStripsInjection(t *testing.T) {
	assert.Equal(t, "450 busy  forged log line", Sanitize("450 busy\r\nforged log line"))
	assert.Equal(t, "plain reason", Sanitize("plain reason"))
	assert.Equal(t, "tab\tkept", Sanitize("tab\tkept"))
	assert.Equal(t, "bell", Sanitize("bell\x07"))
}

func TestStringToLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := StringToLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := StringToLevel("verbose")
	assert.Error(t, err)
}

func TestLevelRoundTrip(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "error"} {
		level, err := StringToLevel(name)
		require.NoError(t, err)
		assert.Equal(t, name, LevelToString(level))
	}
}

func TestLevelManager(t *testing.T) {
	m := GetLevelManager()
	old := m.GetLevel()
	defer m.SetLevel(old)

	m.SetLevel(slog.LevelDebug)
	assert.Equal(t, slog.LevelDebug, m.GetLevel())
}
