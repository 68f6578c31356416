package logger

import (
	"log/slog"
	"strings"
)

type Backend string

const (
	BackendStd Backend = "std" // text, для локальной разработки
	BackendZap Backend = "zap" // JSON через slog-zap
)

type Config struct {
	Service    string
	Version    string
	InstanceID string

	Level   slog.Level
	Env     Env
	Backend Backend // пусто: std в dev, zap в stage/prod
	Debug   bool

	// zap sampling, в секунду
	SampleInitial    int
	SampleThereafter int

	AddSource bool
}

// ParseLevel понимает debug/info/warn/error, всё остальное — info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) effectiveLevel() slog.Level {
	if c.Debug && c.Level == 0 {
		return slog.LevelDebug
	}
	return c.Level
}
