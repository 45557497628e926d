// Package logger writes iossim's diagnostic log file.
//
// Until Init is called every entry is discarded, so packages can log
// unconditionally. User-facing output never goes through here.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	mu      sync.RWMutex
	current = discard()
	logFile *os.File
)

func discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Init opens (appending) the log file at logPath, creating its directory.
// Verbose enables debug entries, including every external command run.
func Init(logPath string, verbose bool) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //#nosec G304 -- user-selected log path
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	l := logrus.New()
	l.SetOutput(f)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		TimestampFormat: "15:04:05.000000",
	})
	l.SetLevel(logrus.InfoLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	current = l
	return nil
}

// Close flushes and closes the log file. Later entries are discarded.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	current = discard()
}

func get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Info logs an info message.
func Info(format string, v ...interface{}) { get().Infof(format, v...) }

// Debug logs a debug message.
func Debug(format string, v ...interface{}) { get().Debugf(format, v...) }

// Warn logs a warning message.
func Warn(format string, v ...interface{}) { get().Warnf(format, v...) }

// Error logs an error message.
func Error(format string, v ...interface{}) { get().Errorf(format, v...) }

// Exec records one external tool invocation with its command line and
// elapsed time. A non-zero status is logged as a warning, a command that
// could not start as an error.
func Exec(argv []string, elapsed time.Duration, status int, err error) {
	entry := get().WithFields(logrus.Fields{
		"cmd":     strings.Join(argv, " "),
		"elapsed": elapsed.Round(time.Millisecond),
	})
	switch {
	case err == nil:
		entry.Debug("exec")
	case status > 0:
		entry.WithField("status", status).Warn("exec failed")
	default:
		entry.WithError(err).Error("exec could not start")
	}
}

// GetWriter returns the log file, or io.Discard before Init.
func GetWriter() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	if logFile != nil {
		return logFile
	}
	return io.Discard
}
