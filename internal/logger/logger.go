// Package logger is a small leveled façade over the standard log package.
// Output goes to stderr by default; a file sink can be attached at startup.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

var (
	out = log.New(os.Stderr, "", log.Ldate|log.Ltime)

	// DebugEnabled gates Debugf output.
	DebugEnabled = false

	logFile *os.File
)

// Init configures logging. When logPath is non-empty, output is appended to
// that file instead of stderr.
func Init(debug bool, logPath string) error {
	DebugEnabled = debug

	if logPath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = f
	out = log.New(f, "", log.Ldate|log.Ltime|log.Lshortfile)

	return nil
}

// Close closes the log file if one was attached.
func Close() {
	if logFile != nil {
		logFile.Close()
	}
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	out = log.New(w, "", 0)
}

func Infof(format string, v ...any) {
	out.Printf("[INFO] "+format, v...)
}

func Warnf(format string, v ...any) {
	out.Printf("[WARN] "+format, v...)
}

func Errorf(format string, v ...any) {
	out.Printf("[ERROR] "+format, v...)
}

// Debugf logs only when debug mode is enabled.
func Debugf(format string, v ...any) {
	if DebugEnabled {
		out.Printf("[DEBUG] "+format, v...)
	}
}
