// Package logger is the process-wide file logger. Nothing is written until
// Init or SetOutput is called.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelPrefix = map[Level]string{
	LevelDebug: "[DEBUG] ",
	LevelInfo:  "[INFO] ",
	LevelWarn:  "[WARN] ",
	LevelError: "[ERROR] ",
}

var (
	globalLogger *log.Logger
	logFile      *os.File
	output       io.Writer = io.Discard
	minLevel               = LevelInfo
	mu           sync.Mutex
)

// Init directs the global logger to the file at logPath.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //#nosec G302 -- log file
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	output = f
	globalLogger = log.New(f, "", log.Ltime|log.Lmicroseconds)
	return nil
}

// SetOutput directs the global logger to w. Used by tests and the CLI's
// --verbose mode.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if w == nil {
		w = io.Discard
	}
	output = w
	globalLogger = log.New(w, "", log.Ltime|log.Lmicroseconds)
}

// SetLevel drops messages below l.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	output = io.Discard
	globalLogger = nil
}

func logf(l Level, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil && l >= minLevel {
		globalLogger.Printf(levelPrefix[l]+format, v...)
	}
}

// Info logs an info message.
func Info(format string, v ...interface{}) { logf(LevelInfo, format, v...) }

// Debug logs a debug message.
func Debug(format string, v ...interface{}) { logf(LevelDebug, format, v...) }

// Warn logs a warning message.
func Warn(format string, v ...interface{}) { logf(LevelWarn, format, v...) }

// Error logs an error message.
func Error(format string, v ...interface{}) { logf(LevelError, format, v...) }

// GetWriter returns the current destination, io.Discard if none.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}
