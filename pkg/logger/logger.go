package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/killallgit/canvaschat/pkg/config"
	"github.com/sirupsen/logrus"
)

// Logger provides a unified logging interface backed by logrus
type Logger struct {
	log  *logrus.Logger
	file *os.File
}

var defaultLogger atomic.Pointer[Logger]

// Init initializes the logger with configuration from global config
func Init() error {
	if defaultLogger.Load() != nil {
		return nil // Already initialized
	}

	settings := config.Get().Logging
	logger, err := New(settings.Level, config.ResolvePath(settings.LogFile), settings.Preserve)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defaultLogger.Store(logger)
	return nil
}

// New creates a Logger writing to logFile. With preserve the file is
// appended to, otherwise it is truncated.
func New(level, logFile string, preserve bool) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if preserve {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(logFile, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := NewWithWriter(file, level)
	logger.file = file
	logger.log.AddHook(&stderrHook{out: os.Stderr})
	return logger, nil
}

// NewWithWriter creates a Logger writing to w. It does not own w.
func NewWithWriter(w io.Writer, level string) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(parseLevel(level))
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006/01/02 15:04:05",
	})
	return &Logger{log: l}
}

// SetDefault installs l as the package-level logger. Passing nil silences
// the package functions again.
func SetDefault(l *Logger) {
	defaultLogger.Store(l)
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// parseLevel converts a string level to a logrus level
func parseLevel(levelStr string) logrus.Level {
	switch levelStr {
	case "warning":
		return logrus.WarnLevel
	case "":
		return logrus.InfoLevel
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

// Package-level convenience functions using the default logger

// Debug logs a debug message using the default logger
func Debug(format string, args ...interface{}) {
	if l := defaultLogger.Load(); l != nil {
		l.Debug(format, args...)
	}
}

// Info logs an info message using the default logger
func Info(format string, args ...interface{}) {
	if l := defaultLogger.Load(); l != nil {
		l.Info(format, args...)
	}
}

// Warn logs a warning message using the default logger
func Warn(format string, args ...interface{}) {
	if l := defaultLogger.Load(); l != nil {
		l.Warn(format, args...)
	}
}

// Error logs an error message using the default logger
func Error(format string, args ...interface{}) {
	if l := defaultLogger.Load(); l != nil {
		l.Error(format, args...)
	}
}

// Close closes the default logger
func Close() error {
	l := defaultLogger.Swap(nil)
	var err error
	if l != nil {
		err = l.Close()
	}
	if cerr := closeHistory(); err == nil {
		err = cerr
	}
	return err
}

// ComponentLogger tags every entry with a component name and structured
// key/value pairs.
type ComponentLogger struct {
	component string
}

// WithComponent returns a logger for one component. It resolves the default
// logger on each call, so it is safe to create before Init.
func WithComponent(name string) *ComponentLogger {
	return &ComponentLogger{component: name}
}

func (c *ComponentLogger) entry(keyvals []interface{}) *logrus.Entry {
	l := defaultLogger.Load()
	if l == nil {
		return nil
	}
	fields := logrus.Fields{"component": c.component}
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if i+1 < len(keyvals) {
			fields[key] = keyvals[i+1]
		} else {
			fields[key] = "(missing)"
		}
	}
	return l.log.WithFields(fields)
}

// Debug logs msg with key/value pairs
func (c *ComponentLogger) Debug(msg string, keyvals ...interface{}) {
	if e := c.entry(keyvals); e != nil {
		e.Debug(msg)
	}
}

// Info logs msg with key/value pairs
func (c *ComponentLogger) Info(msg string, keyvals ...interface{}) {
	if e := c.entry(keyvals); e != nil {
		e.Info(msg)
	}
}

// Warn logs msg with key/value pairs
func (c *ComponentLogger) Warn(msg string, keyvals ...interface{}) {
	if e := c.entry(keyvals); e != nil {
		e.Warn(msg)
	}
}

// Error logs msg with key/value pairs
func (c *ComponentLogger) Error(msg string, keyvals ...interface{}) {
	if e := c.entry(keyvals); e != nil {
		e.Error(msg)
	}
}

// stderrHook mirrors errors to stderr so they are visible without the log file
type stderrHook struct {
	out io.Writer
}

func (h *stderrHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
}

func (h *stderrHook) Fire(e *logrus.Entry) error {
	_, err := fmt.Fprintf(h.out, "[%s] %s\n", e.Level.String(), e.Message)
	return err
}
