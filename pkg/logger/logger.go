package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Level represents the logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelSilent:
		return "SILENT"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a configuration value such as "warn" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "silent", "off", "none":
		return LevelSilent, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger provides structured logging with configurable levels
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
	SetLevel(level Level)
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value any
}

// F is a convenience function for creating fields
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

var levelStyles = map[Level]lipgloss.Style{
	LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")),
	LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true),
	LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true),
}

// sink is shared between a logger and the children made by WithFields so
// that lines from both never interleave.
type sink struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

// standardLogger implements Logger interface
type standardLogger struct {
	level  *Level
	sink   *sink
	fields []Field
}

// NewLogger creates a new logger with the specified level and output.
// A nil writer means stderr; stdout is reserved for graph output.
func NewLogger(level Level, out io.Writer) Logger {
	if out == nil {
		out = os.Stderr
	}
	lvl := level
	return &standardLogger{
		level:  &lvl,
		sink:   &sink{out: out, color: isTerminal(out)},
		fields: make([]Field, 0),
	}
}

// NewDefaultLogger creates a logger with Warn level writing to stderr
func NewDefaultLogger() Logger {
	return NewLogger(LevelWarn, os.Stderr)
}

// NewSilentLogger creates a logger that outputs nothing
func NewSilentLogger() Logger {
	return NewLogger(LevelSilent, io.Discard)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetLevel sets the minimum logging level. Children created with
// WithFields share the level.
func (l *standardLogger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	*l.level = level
}

// WithFields returns a new logger with additional fields
func (l *standardLogger) WithFields(fields ...Field) Logger {
	newFields := make([]Field, len(l.fields)+len(fields))
	copy(newFields, l.fields)
	copy(newFields[len(l.fields):], fields)

	return &standardLogger{
		level:  l.level,
		sink:   l.sink,
		fields: newFields,
	}
}

// Debug logs a debug message
func (l *standardLogger) Debug(msg string, fields ...Field) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message
func (l *standardLogger) Info(msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message
func (l *standardLogger) Warn(msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message
func (l *standardLogger) Error(msg string, fields ...Field) {
	l.log(LevelError, msg, fields...)
}

func (l *standardLogger) log(level Level, msg string, fields ...Field) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if level < *l.level {
		return
	}

	tag := "[" + level.String() + "]"
	if l.sink.color {
		tag = levelStyles[level].Render(tag)
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	b.WriteByte(' ')
	b.WriteString(tag)
	b.WriteByte(' ')
	b.WriteString(msg)

	if len(l.fields)+len(fields) > 0 {
		b.WriteString(" |")
		for _, field := range l.fields {
			fmt.Fprintf(&b, " %s=%v", field.Key, field.Value)
		}
		for _, field := range fields {
			fmt.Fprintf(&b, " %s=%v", field.Key, field.Value)
		}
	}
	b.WriteByte('\n')

	_, _ = io.WriteString(l.sink.out, b.String())
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = NewDefaultLogger()
)

// SetDefault sets the global default logger
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default returns the global default logger
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Convenience functions using the default logger
func Debug(msg string, fields ...Field) {
	Default().Debug(msg, fields...)
}

func Info(msg string, fields ...Field) {
	Default().Info(msg, fields...)
}

func Warn(msg string, fields ...Field) {
	Default().Warn(msg, fields...)
}

func Error(msg string, fields ...Field) {
	Default().Error(msg, fields...)
}
