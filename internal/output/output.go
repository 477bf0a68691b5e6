// Package output prints styled status messages for the weaver CLI.
//
// Messages go to stderr by default so they never mix with a graph written
// to stdout.
package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	mu          sync.Mutex
	out         io.Writer = os.Stderr
	verboseMode bool
)

// SetWriter redirects every message to w and returns the previous writer.
func SetWriter(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

// SetVerbose enables or disables Verbose messages.
func SetVerbose(v bool) {
	mu.Lock()
	verboseMode = v
	mu.Unlock()
}

func emit(style lipgloss.Style, msg string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(out, style.Render(msg))
}

// Success prints a completed operation in green.
//
// Example:
//
//	output.Success("Wrote include graph to deps.dot")
func Success(msg string) {
	emit(successStyle, "✓ "+msg)
}

// Info prints a status update in cyan.
func Info(msg string) {
	emit(infoStyle, msg)
}

// Step prints an indented sub-item in gray.
func Step(msg string) {
	emit(stepStyle, "   "+msg)
}

// Verbose prints msg only when verbose mode is on.
func Verbose(msg string) {
	mu.Lock()
	on := verboseMode
	mu.Unlock()
	if on {
		emit(stepStyle, "🔍 "+msg)
	}
}
