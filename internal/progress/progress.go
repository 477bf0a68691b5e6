// Package progress shows a terminal spinner while the include graph is
// being built.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// minInterval limits how often status updates reach the renderer.
const minInterval = 50 * time.Millisecond

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("green"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("red"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Spinner is a running spinner program
type Spinner struct {
	program *tea.Program
	done    chan struct{}

	mu   sync.Mutex
	last time.Time
}

// Start renders a spinner labelled message on w until Stop is called.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		program: tea.NewProgram(newModel(message), tea.WithOutput(w), tea.WithInput(nil), tea.WithoutSignalHandler()),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		// The spinner is cosmetic; a failing renderer must not fail the run.
		_, _ = s.program.Run()
	}()
	return s
}

// Update reports that files have been processed, the latest being path.
func (s *Spinner) Update(files int, path string) {
	s.mu.Lock()
	now := time.Now()
	if now.Sub(s.last) < minInterval {
		s.mu.Unlock()
		return
	}
	s.last = now
	s.mu.Unlock()

	s.program.Send(statusMsg{files: files, path: path})
}

// Stop renders the final state and waits for the spinner to exit.
func (s *Spinner) Stop(files int, err error) {
	s.program.Send(doneMsg{files: files, err: err})
	<-s.done
}

type statusMsg struct {
	files int
	path  string
}

type doneMsg struct {
	files int
	err   error
}

// model is the bubbletea model behind Spinner
type model struct {
	spinner spinner.Model
	message string
	files   int
	path    string
	done    bool
	err     error
}

func newModel(message string) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle
	return &model{spinner: s, message: message}
}

func (m *model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.files = msg.files
		m.path = msg.path
	case doneMsg:
		m.done = true
		m.files = msg.files
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		if !m.done {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *model) View() string {
	if m.done {
		if m.err != nil {
			return failStyle.Render(fmt.Sprintf("✗ %s failed after %d files", m.message, m.files)) + "\n"
		}
		return doneStyle.Render(fmt.Sprintf("✓ %s: %d files", m.message, m.files)) + "\n"
	}
	view := fmt.Sprintf("%s %s... %d files", m.spinner.View(), m.message, m.files)
	if m.path != "" {
		view += " " + statusStyle.Render(m.path)
	}
	return view
}
