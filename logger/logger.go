package logger

import (
	"io"
	"log/slog"
	"os"
)

// New builds the process logger. With a log file, records are JSON at debug
// level; otherwise text on stderr at info, or debug when asked.
func New(logFile string, debug bool) (*slog.Logger, io.Closer, error) {
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		handler := slog.NewJSONHandler(file, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
		return slog.New(handler), file, nil
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler), nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Discard drops everything; handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
