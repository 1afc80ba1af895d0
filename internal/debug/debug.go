// Package debug writes diagnostic output when SDLC_DEBUG is set or the
// command runs with --verbose.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.Mutex
	enabled = os.Getenv("SDLC_DEBUG") != ""
	out     io.Writer = os.Stderr
	logFile *lumberjack.Logger
)

// Enabled reports whether debug output is on
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// SetVerbose turns debug output on or off. SDLC_DEBUG keeps it on.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = v || os.Getenv("SDLC_DEBUG") != ""
}

// SetOutput redirects debug output; nil restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
}

// SetLogFile mirrors every message, enabled or not, into a rotating log file.
// An empty path closes any open log.
func SetLogFile(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		if err := logFile.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		logFile = nil
	}
	if path == "" {
		return nil
	}
	logFile = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return nil
}

// Logf prints a formatted message when debug output is enabled.
func Logf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		fmt.Fprintf(logFile, format, args...)
	}
	if enabled {
		fmt.Fprintf(out, format, args...)
	}
}

// Close flushes and closes the log file, if any
func Close() error {
	return SetLogFile("")
}
