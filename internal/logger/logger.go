// Package logger is the process-wide log sink. The terminal UI owns stdout,
// so everything is written to a file under the assistant home; Init a no-op
// sink when no path is configured (tests, one-shot commands).
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu   sync.Mutex
	log  = slog.New(slog.NewTextHandler(io.Discard, nil))
	file *os.File
)

// Init points the logger at the given file, creating it if needed. Debug
// enables debug-level records.
func Init(path string, debug bool) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
	}
	file = f
	log = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return nil
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
	log = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return log
}

func Debugf(format string, args ...any) {
	current().Debug(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...any) {
	current().Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...any) {
	current().Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...any) {
	current().Error(fmt.Sprintf(format, args...))
}
