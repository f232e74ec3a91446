package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// DebugPanel keeps a rolling log of submit and poll events
type DebugPanel struct {
	enabled bool
	lines   []string
	buffer  int
	now     func() time.Time
}

// NewDebugPanel creates a new debug panel
func NewDebugPanel(enabled bool) DebugPanel {
	return DebugPanel{
		enabled: enabled,
		buffer:  100,
		now:     time.Now,
	}
}

func (d *DebugPanel) IsEnabled() bool {
	return d.enabled
}

// AddEvent appends "[kind] details" with a timestamp
func (d *DebugPanel) AddEvent(kind, details string) {
	if !d.enabled {
		return
	}
	line := d.now().Format("15:04:05.000") + " [" + kind + "]"
	if details != "" {
		line += " " + details
	}
	d.lines = append(d.lines, line)
	if len(d.lines) > d.buffer {
		d.lines = d.lines[len(d.lines)-d.buffer:]
	}
}

func (d *DebugPanel) Lines() []string {
	return d.lines
}

// Render draws the last lines that fit in height
func (d *DebugPanel) Render(width, height int) string {
	if !d.enabled {
		return ""
	}

	title := lipgloss.NewStyle().
		Foreground(ColorYellow).
		Bold(true).
		Render("DEBUG")

	contentHeight := height - 3
	if contentHeight < 1 {
		contentHeight = 1
	}

	start := 0
	if len(d.lines) > contentHeight {
		start = len(d.lines) - contentHeight
	}
	maxLen := width - 4
	if maxLen < 10 {
		maxLen = 10
	}
	var lines []string
	for _, line := range d.lines[start:] {
		lines = append(lines, truncate(line, maxLen))
	}

	return lipgloss.NewStyle().
		Width(width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorYellow).
		Padding(0, 1).
		Render(title + "\n" + strings.Join(lines, "\n"))
}
