package rtlog

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Level names accepted by rtconfig's LOG_LEVEL setting.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config configures a logger built by New.
type Config struct {
	Level  Level
	Format string // "json" or "text"
}

// New builds a logrus.Logger routed through OutputSplitter, configured
// per cfg.
func New(cfg Config) *logrus.Logger {
	logger := logrus.New()

	switch cfg.Level {
	case LevelDebug:
		logger.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		logger.SetLevel(logrus.WarnLevel)
	case LevelError:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	}

	logger.SetOutput(&OutputSplitter{})
	return logger
}

// WithOperation wraps fn with start/end log entries and duration timing,
// the pattern used to bracket transaction commits and replica calls.
func WithOperation(entry *logrus.Entry, operation string, fn func() error) error {
	start := time.Now()
	entry = entry.WithField("operation", operation)
	entry.Debug("operation started")

	err := fn()
	entry = entry.WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		entry.WithError(err).Error("operation failed")
		return err
	}
	entry.Debug("operation completed")
	return nil
}

// LogPanic recovers a panic, logs its value in a "panic" field, and
// re-panics so the caller's own recovery (if any) still sees it.
func LogPanic(entry *logrus.Entry) {
	if r := recover(); r != nil {
		entry.WithField("panic", fmt.Sprintf("%v", r)).Error("panic recovered")
		panic(r)
	}
}
