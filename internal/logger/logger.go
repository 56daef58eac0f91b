package logger

import (
	"sync"
)

// Log levels accepted by Get and SetLevel.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	// globalLogger holds the process-wide logger instance.
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide logger configured with the provided level.
// The first call initializes the logger; later calls ignore the level and
// return the existing instance. Use SetLevel to change verbosity afterwards.
func Get(level string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(level)
	})
	return globalLogger
}

// Nop returns a logger that discards everything. Tests and optional
// collaborators use it instead of nil checks.
func Nop() *Logger {
	return newNopLogger()
}
