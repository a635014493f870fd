package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hansjm10/testsift/internal/report"
)

func testReport() *report.Report {
	return &report.Report{
		Summary: report.RunSummary{Total: 3, Failed: 2, Passed: 1},
		Failures: []report.Failure{
			{
				Name:    "TestLogin",
				Message: "Error: bad credentials",
				Console: []report.ConsoleSection{{Category: "error", Content: "auth rejected"}},
			},
			{
				Name:     "TestCheckout",
				Message:  "Error: total mismatch",
				Expected: "42",
				Actual:   "41",
			},
		},
	}
}

func TestViewListsFailures(t *testing.T) {
	m := New(testReport())

	view := m.View()
	if !strings.Contains(view, "TestLogin") || !strings.Contains(view, "TestCheckout") {
		t.Errorf("failure names missing from view:\n%s", view)
	}
	if !strings.Contains(view, "2 failed / 3 total") {
		t.Errorf("header totals missing:\n%s", view)
	}
	if !strings.Contains(view, "bad credentials") {
		t.Errorf("selected failure body missing:\n%s", view)
	}
}

func TestCursorMovesWithKeys(t *testing.T) {
	m := New(testReport())

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	m = next.(Model)
	if m.cursor != 1 {
		t.Fatalf("cursor = %d after down, want 1", m.cursor)
	}
	if !strings.Contains(m.View(), "expected: 42") {
		t.Error("body should follow the cursor")
	}

	// Down at the end stays put.
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	m = next.(Model)
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want clamped at 1", m.cursor)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	m = next.(Model)
	if m.cursor != 0 {
		t.Errorf("cursor = %d after up, want 0", m.cursor)
	}
}

func TestQuitKey(t *testing.T) {
	m := New(testReport())

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("quit should produce a command")
	}
	if next.(Model).View() != "" {
		t.Error("quitting view should be empty")
	}
}

func TestWindowSizeInitializesViewport(t *testing.T) {
	m := New(testReport())

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	if !m.ready {
		t.Fatal("viewport not initialized on resize")
	}
	if !strings.Contains(m.View(), "bad credentials") {
		t.Error("viewport content missing after resize")
	}
}

func TestEmptyReport(t *testing.T) {
	m := New(&report.Report{Summary: report.RunSummary{Total: 5, Passed: 5}})

	view := m.View()
	if !strings.Contains(view, "no failures") && !strings.Contains(view, "(none)") {
		t.Errorf("empty report should say so:\n%s", view)
	}
	// Cursor keys on an empty list must not panic.
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	_ = next.(Model).View()
}
