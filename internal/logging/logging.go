package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"unicode"
)

// Config configures the process-wide logger.
type Config struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
	File   string `toml:"file"`   // optional log file, in addition to stdout
}

// Sanitize normalizes a message to a single line and strips control
// characters. Reason strings quoted from remote SMTP servers pass through
// here before they reach the log, so a hostile server cannot inject forged
// log records.
func Sanitize(msg string) string {
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.ReplaceAll(msg, "\n", " ")

	var b strings.Builder
	for _, r := range msg {
		if r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StringToLevel converts a config string to an slog level.
func StringToLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.New("invalid log level: " + levelStr)
	}
}

// LevelToString converts an slog level to its config string.
func LevelToString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return "info"
	}
}

// LevelManager allows runtime log level adjustment.
type LevelManager struct {
	mu    sync.RWMutex
	level slog.Level
}

var globalLevelManager = &LevelManager{level: slog.LevelInfo}

// GetLevelManager returns the global level manager.
func GetLevelManager() *LevelManager {
	return globalLevelManager
}

// SetLevel sets the current log level.
func (m *LevelManager) SetLevel(level slog.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = level
	slog.SetLogLoggerLevel(level)
}

// GetLevel returns the current log level.
func (m *LevelManager) GetLevel() slog.Level {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level
}

// Init installs the process-wide slog default logger according to the
// configuration. Should be called early in startup; on a bad level it falls
// back to info rather than failing the process.
func Init(cfg Config) {
	level, err := StringToLevel(cfg.Level)
	if err != nil {
		slog.Warn("invalid log level in config, defaulting to info",
			"configured_level", cfg.Level)
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			slog.Warn("failed to open log file, logging to stdout only",
				"file", cfg.File,
				"error", err)
		} else {
			out = io.MultiWriter(os.Stdout, f)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
	globalLevelManager.SetLevel(level)
}
