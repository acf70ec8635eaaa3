package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/devx.go/devx"
	"github.com/sokinpui/devx.go/model"
)

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")) // Mauve
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))            // Green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))           // Red
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// --- Messages ---
type summaryMsg struct {
	model.Summary
}

type errorMsg struct{ err error }

func (e errorMsg) Error() string { return e.err.Error() }

// --- Model ---
type Model struct {
	ctx     context.Context
	cancel  context.CancelFunc
	app     *devx.App
	label   string
	spinner spinner.Model
	state   state
	summary summaryMsg
	err     error
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateError
)

// New returns a spinner that runs app until it finishes. label is shown next
// to the spinner.
func New(ctx context.Context, app *devx.App, label string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	if label == "" {
		label = "Processing..."
	}
	ctx, cancel := context.WithCancel(ctx)
	return Model{
		ctx:     ctx,
		cancel:  cancel,
		app:     app,
		label:   label,
		spinner: s,
		state:   stateProcessing,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runApp)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			m.state = stateError
			m.err = context.Canceled
			return m, tea.Quit
		}

	case summaryMsg:
		m.state = stateSummary
		m.summary = msg
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg.err
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case stateProcessing:
		return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
	case stateError:
		// The caller reports the error once the program has quit.
		return ""
	case stateSummary:
		return m.renderSummary()
	default:
		return ""
	}
}

// Summary returns what the run produced once the program has quit.
func (m Model) Summary() (model.Summary, error) {
	return m.summary.Summary, m.err
}

func (m *Model) renderSummary() string {
	var b strings.Builder

	if m.summary.Message != "" {
		b.WriteString(headerStyle.Render(m.summary.Message))
		b.WriteString("\n\n")
	}

	hasContent := false
	if len(m.summary.Modified) > 0 {
		hasContent = true
		b.WriteString(successStyle.Render("Modified:"))
		b.WriteString("\n")
		for _, f := range m.summary.Modified {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}
	if len(m.summary.Failed) > 0 {
		hasContent = true
		b.WriteString(errorStyle.Render("Failed:"))
		b.WriteString("\n")
		for _, f := range m.summary.Failed {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}
	if len(m.summary.Hunks) > 0 {
		hasContent = true
		b.WriteString(successStyle.Render("Hunks:"))
		b.WriteString("\n")
		for _, h := range m.summary.Hunks {
			b.WriteString(fmt.Sprintf("  %s:%d-%d %s %s\n",
				pathStyle.Render(h.Path), h.Start, h.End,
				addedStyle.Render(fmt.Sprintf("+%d", h.Added)),
				removedStyle.Render(fmt.Sprintf("-%d", h.Removed))))
		}
	}

	if !hasContent && m.summary.Message == "" && m.summary.Answer == "" && m.summary.Output == "" {
		b.WriteString(faintStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) runApp() tea.Msg {
	summary, err := m.app.Execute(m.ctx)
	if err != nil {
		return errorMsg{err}
	}
	return summaryMsg{
		Summary: summary,
	}
}

// Run shows the spinner on stderr while app executes.
func Run(ctx context.Context, app *devx.App, label string) (model.Summary, error) {
	p := tea.NewProgram(New(ctx, app, label), tea.WithOutput(os.Stderr), tea.WithContext(ctx))
	final, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return model.Summary{}, context.Canceled
	}
	if err != nil {
		return model.Summary{}, err
	}
	m, ok := final.(Model)
	if !ok {
		return model.Summary{}, context.Canceled
	}
	return m.Summary()
}
