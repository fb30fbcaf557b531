package logging

// Leveled logging for modmaster. Errors always reach stderr; lower levels go
// to stdout only when verbose output is enabled, and everything is mirrored
// to the log file when one is configured. Device workers log through child
// loggers carrying a [device] prefix.

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents the logging level.
type Level int

const (
	LevelSilent Level = iota
	LevelError
	LevelInfo
	LevelVerbose
	LevelDebug
)

// ParseLevel converts a level name ("error", "info", "verbose", "debug",
// "silent") to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent":
		return LevelSilent, nil
	case "error":
		return LevelError, nil
	case "info", "":
		return LevelInfo, nil
	case "verbose":
		return LevelVerbose, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// sink holds the shared outputs behind a Logger and its children.
type sink struct {
	mu      sync.Mutex
	level   Level
	file    *os.File
	fileLog *log.Logger
	stdout  *log.Logger
	stderr  *log.Logger
}

// Logger provides leveled logging. The zero value is not usable; create one
// with NewLogger and derive per-device loggers with WithPrefix.
type Logger struct {
	s      *sink
	prefix string
}

// NewLogger creates a logger at the given level, optionally mirroring to a
// file (empty path disables the file).
func NewLogger(level Level, logFile string) (*Logger, error) {
	s := &sink{
		level:  level,
		stdout: log.New(os.Stdout, "", 0),
		stderr: log.New(os.Stderr, "", 0),
	}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		s.file = file
		s.fileLog = log.New(file, "", log.LstdFlags)
	}
	return &Logger{s: s}, nil
}

// NewTestLogger creates a silent logger for tests.
func NewTestLogger() *Logger {
	return &Logger{s: &sink{
		level:  LevelSilent,
		stdout: log.New(io.Discard, "", 0),
		stderr: log.New(io.Discard, "", 0),
	}}
}

// WithPrefix returns a child logger whose messages carry a [prefix] tag.
// The child shares the parent's outputs and level.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{s: l.s, prefix: prefix}
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.s.file != nil {
		return l.s.file.Close()
	}
	return nil
}

// SetLevel changes the logging level.
func (l *Logger) SetLevel(level Level) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.level = level
}

// Error logs an error message.
func (l *Logger) Error(format string, v ...interface{}) {
	l.write(LevelError, "ERROR: "+format, v...)
}

// Info logs an info message.
func (l *Logger) Info(format string, v ...interface{}) {
	l.write(LevelInfo, "INFO: "+format, v...)
}

// Verbose logs a verbose message.
func (l *Logger) Verbose(format string, v ...interface{}) {
	l.write(LevelVerbose, "VERBOSE: "+format, v...)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.write(LevelDebug, "DEBUG: "+format, v...)
}

func (l *Logger) write(level Level, format string, v ...interface{}) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.s.level < level {
		return
	}

	msg := fmt.Sprintf(format, v...)
	if l.prefix != "" {
		msg = "[" + l.prefix + "] " + msg
	}

	if l.s.fileLog != nil {
		l.s.fileLog.Println(msg)
	}
	if level == LevelError {
		l.s.stderr.Println(msg)
	} else if l.s.level >= LevelVerbose || level <= LevelInfo {
		l.s.stdout.Println(msg)
	}
}
