// Package tui provides the interactive report viewer: a failure list with a
// scrollable pane showing each failure's reduced output.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/hansjm10/testsift/internal/output"
	"github.com/hansjm10/testsift/internal/report"
)

// KeyMap defines viewer keybindings.
type KeyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

var viewerKeys = KeyMap{
	Up:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "previous failure")),
	Down: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next failure")),
	Quit: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

const listWidth = 36

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	failNameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
	sectionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Model is the report viewer.
type Model struct {
	rep      *report.Report
	cursor   int
	width    int
	height   int
	vp       viewport.Model
	ready    bool
	quitting bool
}

// New creates a viewer over a reduced report.
func New(rep *report.Report) Model {
	return Model{rep: rep}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		bodyWidth := m.width - listWidth - 3
		if bodyWidth < 20 {
			bodyWidth = 20
		}
		bodyHeight := m.height - 4
		if bodyHeight < 3 {
			bodyHeight = 3
		}
		if !m.ready {
			m.vp = viewport.New(bodyWidth, bodyHeight)
			m.ready = true
		} else {
			m.vp.Width = bodyWidth
			m.vp.Height = bodyHeight
		}
		m.vp.SetContent(m.failureBody())
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, viewerKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, viewerKeys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.vp.SetContent(m.failureBody())
				m.vp.GotoTop()
			}
			return m, nil
		case key.Matches(msg, viewerKeys.Down):
			if m.cursor < len(m.rep.Failures)-1 {
				m.cursor++
				m.vp.SetContent(m.failureBody())
				m.vp.GotoTop()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

// failureBody renders the selected failure's reduced output, wrapped to the
// viewport width.
func (m Model) failureBody() string {
	if len(m.rep.Failures) == 0 {
		return dimStyle.Render("no failures in this report")
	}
	f := m.rep.Failures[m.cursor]

	var sb strings.Builder
	sb.WriteString(failNameStyle.Render(f.Message))
	sb.WriteString("\n")
	if f.Expected != "" || f.Actual != "" {
		fmt.Fprintf(&sb, "\nexpected: %s\nactual:   %s\n", f.Expected, f.Actual)
	}
	if f.StackTrace != "" {
		sb.WriteString("\n")
		sb.WriteString(f.StackTrace)
		sb.WriteString("\n")
	}
	if f.CodeContext != "" {
		sb.WriteString("\n")
		sb.WriteString(f.CodeContext)
		sb.WriteString("\n")
	}
	for _, sec := range f.Console {
		sb.WriteString("\n")
		sb.WriteString(sectionStyle.Render("── console." + sec.Category + " ──"))
		sb.WriteString("\n")
		sb.WriteString(sec.Content)
		sb.WriteString("\n")
	}

	width := m.vp.Width
	if width <= 0 {
		width = 80
	}
	return wordwrap.String(sb.String(), width)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := m.rep.Summary
	header := titleStyle.Render(fmt.Sprintf("testsift — %d failed / %d total", s.Failed, s.Total))

	var list strings.Builder
	if len(m.rep.Failures) == 0 {
		list.WriteString(dimStyle.Render("  (none)"))
	}
	for i, f := range m.rep.Failures {
		name := output.Truncate(f.Name, listWidth-4)
		if i == m.cursor {
			list.WriteString(selectedStyle.Render("▸ " + name))
		} else {
			list.WriteString("  " + name)
		}
		list.WriteString("\n")
	}

	body := ""
	if m.ready {
		body = m.vp.View()
	} else {
		body = m.failureBody()
	}

	columns := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(listWidth).Render(list.String()),
		" ",
		body)

	footer := dimStyle.Render("↑/↓ select failure · pgup/pgdn scroll · q quit")
	return header + "\n\n" + columns + "\n" + footer
}
