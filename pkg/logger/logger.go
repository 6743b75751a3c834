// Package logger provides a leveled logging interface and implementation
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the logging interface
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
}

// Level represents logging levels
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Options controls where log lines go.
type Options struct {
	Level string
	// File enables rotated file output in addition to stdout/stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type logger struct {
	level   Level
	loggers map[Level]*log.Logger
	mu      sync.RWMutex
}

// New creates a logger configured from LOG_LEVEL and LOG_FILE.
func New() Logger {
	return NewWithOptions(Options{
		Level: os.Getenv("LOG_LEVEL"),
		File:  os.Getenv("LOG_FILE"),
	})
}

// NewWithOptions creates a logger from explicit options.
func NewWithOptions(opts Options) Logger {
	var out, errOut io.Writer = os.Stdout, os.Stderr
	if opts.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     orDefault(opts.MaxAgeDays, 7),
		}
		out = io.MultiWriter(os.Stdout, rotated)
		errOut = io.MultiWriter(os.Stderr, rotated)
	}
	return newLogger(ParseLevel(opts.Level), out, errOut)
}

// NewWriter creates a logger that sends every level to w.
func NewWriter(level string, w io.Writer) Logger {
	return newLogger(ParseLevel(level), w, w)
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return newLogger(LevelError+1, io.Discard, io.Discard)
}

func newLogger(level Level, out, errOut io.Writer) *logger {
	return &logger{
		level: level,
		loggers: map[Level]*log.Logger{
			LevelDebug: log.New(out, "[DEBUG] ", log.LstdFlags|log.Lshortfile),
			LevelInfo:  log.New(out, "[INFO] ", log.LstdFlags),
			LevelWarn:  log.New(out, "[WARN] ", log.LstdFlags),
			LevelError: log.New(errOut, "[ERROR] ", log.LstdFlags|log.Lshortfile),
		},
	}
}

// ParseLevel converts a string log level to a Level, defaulting to info.
func ParseLevel(levelStr string) Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (l *logger) shouldLog(level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level
}

func (l *logger) output(level Level, msg string) {
	if !l.shouldLog(level) {
		return
	}

	l.mu.RLock()
	lg := l.loggers[level]
	l.mu.RUnlock()

	lg.Output(4, msg)
}

// Debug logs a debug message
func (l *logger) Debug(v ...interface{}) {
	l.output(LevelDebug, fmt.Sprint(v...))
}

// Debugf logs a formatted debug message
func (l *logger) Debugf(format string, v ...interface{}) {
	l.output(LevelDebug, fmt.Sprintf(format, v...))
}

// Info logs an info message
func (l *logger) Info(v ...interface{}) {
	l.output(LevelInfo, fmt.Sprint(v...))
}

// Infof logs a formatted info message
func (l *logger) Infof(format string, v ...interface{}) {
	l.output(LevelInfo, fmt.Sprintf(format, v...))
}

// Warn logs a warning message
func (l *logger) Warn(v ...interface{}) {
	l.output(LevelWarn, fmt.Sprint(v...))
}

// Warnf logs a formatted warning message
func (l *logger) Warnf(format string, v ...interface{}) {
	l.output(LevelWarn, fmt.Sprintf(format, v...))
}

// Error logs an error message
func (l *logger) Error(v ...interface{}) {
	l.output(LevelError, fmt.Sprint(v...))
}

// Errorf logs a formatted error message
func (l *logger) Errorf(format string, v ...interface{}) {
	l.output(LevelError, fmt.Sprintf(format, v...))
}

// Fatal logs an error message and exits
func (l *logger) Fatal(v ...interface{}) {
	l.output(LevelError, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted error message and exits
func (l *logger) Fatalf(format string, v ...interface{}) {
	l.output(LevelError, fmt.Sprintf(format, v...))
	os.Exit(1)
}
