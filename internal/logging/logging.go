package logging

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Verbosity controls how much progress output is printed
type Verbosity int

const (
	VerbositySilent Verbosity = 0
	VerbosityNormal Verbosity = 1
	VerbosityUltra  Verbosity = 2
)

// Valid reports whether v is one of the supported levels
func (v Verbosity) Valid() bool {
	return v >= VerbositySilent && v <= VerbosityUltra
}

// Logger provides verbosity gated console output
type Logger struct {
	verbosity Verbosity
	out       io.Writer
	errOut    io.Writer
}

// NewLogger creates a logger writing to stdout and stderr
func NewLogger(verbosity Verbosity) *Logger {
	return NewLoggerWithWriters(verbosity, os.Stdout, os.Stderr)
}

// NewLoggerWithWriters creates a logger with explicit writers
func NewLoggerWithWriters(verbosity Verbosity, out, errOut io.Writer) *Logger {
	return &Logger{verbosity: verbosity, out: out, errOut: errOut}
}

// Discard returns a logger that prints nothing
func Discard() *Logger {
	return NewLoggerWithWriters(VerbositySilent, io.Discard, io.Discard)
}

// Verbosity returns the configured level
func (l *Logger) Verbosity() Verbosity {
	return l.verbosity
}

// Enabled reports whether messages at level v are printed
func (l *Logger) Enabled(v Verbosity) bool {
	return l.verbosity >= v
}

// Info logs a progress message (verbosity >= 1)
func (l *Logger) Info(format string, args ...interface{}) {
	if l.Enabled(VerbosityNormal) {
		fmt.Fprintf(l.out, format+"\n", args...)
	}
}

// Debug logs per-item confirmations (verbosity >= 2)
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.Enabled(VerbosityUltra) {
		fmt.Fprintf(l.out, format+"\n", args...)
	}
}

// Error logs an error message regardless of verbosity
func (l *Logger) Error(format string, args ...interface{}) {
	fmt.Fprintf(l.errOut, format+"\n", args...)
}

// Result prints the final verdict regardless of verbosity
func (l *Logger) Result(format string, args ...interface{}) {
	fmt.Fprintf(l.out, format+"\n", args...)
}

// PrintSummary prints a summary of the comparison
func (l *Logger) PrintSummary(dirs, files int, bytesHashed int64, duration time.Duration) {
	if !l.Enabled(VerbosityNormal) {
		return
	}

	fmt.Fprintln(l.out)
	fmt.Fprintln(l.out, "=== Summary ===")
	fmt.Fprintf(l.out, "Directories: %d\n", dirs)
	fmt.Fprintf(l.out, "Files: %d (%s hashed per tree)\n", files, formatBytes(bytesHashed))
	fmt.Fprintf(l.out, "Duration: %s\n", duration.Round(time.Millisecond))
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
