package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/seantiz/chatbridge/internal/bridge"
)

const (
	defaultListenAddr   = ":8000"
	defaultDBPath       = "chatbridge.db"
	defaultPollWait     = time.Second
	defaultDefaultModel = "claude-sonnet-4-20250514"

	envListenAddr        = "CHATBRIDGE_LISTEN_ADDR"
	envDBPath            = "CHATBRIDGE_DB_PATH"
	envLogLevel          = "CHATBRIDGE_LOG_LEVEL"
	envStartTimeout      = "CHATBRIDGE_START_TIMEOUT"
	envIdleTimeout       = "CHATBRIDGE_IDLE_TIMEOUT"
	envCompletionTimeout = "CHATBRIDGE_COMPLETION_TIMEOUT"
	envPollWait          = "CHATBRIDGE_POLL_WAIT"
	envDefaultModel      = "CHATBRIDGE_DEFAULT_MODEL"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr   string
	DBPath       string
	LogLevel     slog.Level
	Timeouts     bridge.Timeouts
	PollWait     time.Duration
	DefaultModel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:   defaultListenAddr,
		DBPath:       defaultDBPath,
		LogLevel:     slog.LevelInfo,
		Timeouts:     bridge.DefaultTimeouts(),
		PollWait:     defaultPollWait,
		DefaultModel: defaultDefaultModel,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envDefaultModel); v != "" {
		cfg.DefaultModel = v
	}

	cfg.Timeouts.Start = parseDuration(os.Getenv(envStartTimeout), cfg.Timeouts.Start)
	cfg.Timeouts.Idle = parseDuration(os.Getenv(envIdleTimeout), cfg.Timeouts.Idle)
	cfg.Timeouts.Completion = parseDuration(os.Getenv(envCompletionTimeout), cfg.Timeouts.Completion)
	cfg.PollWait = parseDuration(os.Getenv(envPollWait), cfg.PollWait)

	return cfg
}

// parseDuration parses a duration string, falling back to def on empty or
// invalid input.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
