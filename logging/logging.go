package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelNone suppresses all output; it sits above slog.LevelError.
const LevelNone = slog.Level(16)

// ParseLevel maps a --verbose-log-level value onto a slog level.
// Unknown values fall back to warn.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "none":
		return LevelNone
	case "error":
		return slog.LevelError
	case "warn":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// Setup builds the module logger writing to stderr with the module prefix.
// confPath is the loaded configuration file, or empty for "no-conf".
func Setup(moduleName, confPath string, level slog.Level) *slog.Logger {
	return SetupWriter(os.Stderr, moduleName, confPath, level)
}

// SetupWriter is Setup with an explicit destination, for tests.
func SetupWriter(w io.Writer, moduleName, confPath string, level slog.Level) *slog.Logger {
	if confPath == "" {
		confPath = "no-conf"
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			// Wall-clock prefixes are noise when many modules interleave
			// on one terminal; the module prefix is the anchor.
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}
	handler := slog.NewTextHandler(w, opts)
	return slog.New(handler).With("module", moduleName+"("+confPath+")")
}
