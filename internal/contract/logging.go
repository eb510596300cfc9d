package contract

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogging builds the process logger: text on stderr, plus JSON lines in
// cfg.LogFile when set. The returned function closes the log file.
func SetupLogging(cfg *Config, stderr io.Writer) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	console := slog.NewTextHandler(stderr, opts)

	if cfg.LogFile == "" {
		logger := slog.New(console)
		slog.SetDefault(logger)
		return logger, func() error { return nil }, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	fileOpts := &slog.HandlerOptions{Level: slog.LevelDebug}
	logger := slog.New(slogmulti.Fanout(
		console,
		slog.NewJSONHandler(f, fileOpts),
	))
	slog.SetDefault(logger)
	return logger, f.Close, nil
}
