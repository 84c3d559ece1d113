// Package ui holds small bubbletea components shared by the TUI screens.
package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nightcrawler-video/nightcrawler/icon"
	"github.com/nightcrawler-video/nightcrawler/style"
)

// SnackbarLifetime is how long a notice stays on screen.
const SnackbarLifetime = 3 * time.Second

// Severity picks the colour and icon of a notice.
type Severity int

const (
	Info Severity = iota
	Success
	Failure
)

// NoticeMsg asks the snackbar to show Text.
type NoticeMsg struct {
	Text     string
	Severity Severity
}

// clearMsg hides the notice it was scheduled for, unless a newer one replaced it.
type clearMsg struct {
	seq int
}

// Model is a snackbar appended under the active screen.
type Model struct {
	notice NoticeMsg
	seq    int
}

// Notify returns a command that shows text in the snackbar.
func Notify(text string, severity Severity) tea.Cmd {
	return func() tea.Msg {
		return NoticeMsg{Text: text, Severity: severity}
	}
}

// Visible reports whether a notice is on screen.
func (m *Model) Visible() bool {
	return m.notice.Text != ""
}

// Text returns the notice on screen.
func (m *Model) Text() string {
	return m.notice.Text
}

func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case NoticeMsg:
		m.notice = msg
		m.seq++
		seq := m.seq
		return tea.Tick(SnackbarLifetime, func(time.Time) tea.Msg {
			return clearMsg{seq: seq}
		})
	case clearMsg:
		if msg.seq == m.seq {
			m.notice = NoticeMsg{}
		}
	}
	return nil
}

// View appends the notice to the last line of content.
func (m *Model) View(content string) string {
	if !m.Visible() {
		return content
	}

	var rendered string
	switch m.notice.Severity {
	case Success:
		rendered = style.Fg(style.SuccessColor)(icon.Get(icon.Success) + " " + m.notice.Text)
	case Failure:
		rendered = style.Fg(style.ErrorColor)(icon.Get(icon.Fail) + " " + m.notice.Text)
	default:
		rendered = style.Faint(m.notice.Text)
	}

	lines := strings.Split(content, "\n")
	lines[len(lines)-1] = lines[len(lines)-1] + "  " + rendered
	return strings.Join(lines, "\n")
}
