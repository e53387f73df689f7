// Package logger provides process-wide logging for ragline.
// Debug, Info and Warn messages are printed only in verbose mode so that
// users can follow the embedding and query pipelines. Errors are always
// printed. Structured events go through Get, which exposes the underlying
// phuslu logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/phuslu/log"
)

var (
	mu      sync.RWMutex
	verbose bool
	sink    = &syncWriter{w: os.Stderr}
	current = newLogger(sink, false)
)

// syncWriter serialises writes to an underlying writer. Log events and
// section headers share one, so lines never interleave.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func newLogger(w *syncWriter, v bool) *log.Logger {
	level := log.ErrorLevel
	if v {
		level = log.DebugLevel
	}
	return &log.Logger{
		Level: level,
		Writer: &log.ConsoleWriter{
			Writer:    w,
			Formatter: format,
		},
	}
}

// format renders "[LEVEL] message key=value ..." lines.
func format(w io.Writer, a *log.FormatterArgs) (int, error) {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(strings.ToUpper(a.Level))
	b.WriteString("] ")
	b.WriteString(a.Message)
	for _, kv := range a.KeyValues {
		b.WriteString(" ")
		b.WriteString(kv.Key)
		b.WriteString("=")
		b.WriteString(kv.Value)
	}
	b.WriteString("\n")
	return io.WriteString(w, b.String())
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	current = newLogger(sink, v)
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	sink = &syncWriter{w: w}
	current = newLogger(sink, verbose)
}

// Get returns the active logger for structured events.
func Get() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	Get().Debug().Msgf(format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	Get().Info().Msgf(format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	Get().Warn().Msgf(format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	Get().Error().Msgf(format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(sink, "\n=== %s ===\n", name)
	}
}
