package internal

import (
	"io"
	"log/slog"
	"os"
)

var Logger *slog.Logger

// VerboseMode is set by SetLogLevel("debug") and disables spinners so log
// records are not overwritten.
var VerboseMode bool

var logOutput io.Writer = os.Stdout

func init() {
	Logger = slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func SetLogLevel(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	VerboseMode = logLevel == slog.LevelDebug

	Logger = slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// SetLogOutput redirects Logger to w, keeping the given level.
func SetLogOutput(w io.Writer, level string) {
	logOutput = w
	SetLogLevel(level)
}
