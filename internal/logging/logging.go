// Package logging builds the daemon's slog logger.
package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is the daemon logger plus the writer it logs to, which is shared
// with the HTTP access log and the standard library logger.
type Logger struct {
	*slog.Logger
	Out  io.Writer
	file *os.File
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// New returns a text logger writing to stdout and, when file is non-empty,
// appending to file as well.
func New(level, file string, stdout io.Writer) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	l := &Logger{Out: stdout}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		l.Out = io.MultiWriter(stdout, f)
	}

	l.Logger = slog.New(slog.NewTextHandler(l.Out, &slog.HandlerOptions{Level: lvl}))

	// Keep anything still using the standard logger in the same stream.
	log.SetOutput(l.Out)
	return l, nil
}
