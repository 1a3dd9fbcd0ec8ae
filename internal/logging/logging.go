package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

func Setup(level string) {
	SetupWriter(os.Stdout, level)
}

// SetupWriter installs a JSON logger writing to w as the slog default.
func SetupWriter(w io.Writer, level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})

	slog.SetDefault(slog.New(handler).With("service", "surveillance"))
}

func Fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
