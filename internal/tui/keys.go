package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the application
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	NextView key.Binding
	PrevView key.Binding
	Generate key.Binding
	Batch    key.Binding
	Gallery  key.Binding
	Settings key.Binding

	// Input
	Focus  key.Binding
	Escape key.Binding
	Enter  key.Binding

	// Styles and counts
	Toggle    key.Binding
	SelectAll key.Binding
	Clear     key.Binding
	More      key.Binding
	Fewer     key.Binding

	// Actions
	RunBatch   key.Binding
	Refresh    key.Binding
	Download   key.Binding
	Cancel     key.Binding
	TestCookie key.Binding
	Help       key.Binding
	Quit       key.Binding
	Interrupt  key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		NextView: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next view"),
		),
		PrevView: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous view"),
		),
		Generate: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "generate"),
		),
		Batch: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "batch"),
		),
		Gallery: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "gallery"),
		),
		Settings: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "settings"),
		),
		Focus: key.NewBinding(
			key.WithKeys("/", "i"),
			key.WithHelp("/", "edit"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back/unfocus"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "toggle style"),
		),
		SelectAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "all styles"),
		),
		Clear: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear styles"),
		),
		More: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "more images"),
		),
		Fewer: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "fewer images"),
		),
		RunBatch: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "generate batch"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Download: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "download"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "stop polling"),
		),
		TestCookie: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "test token"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp returns a short help string
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.NextView, k.Focus, k.Quit}
}

// FullHelp returns the full help string
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Generate, k.Batch, k.Gallery, k.Settings, k.NextView},
		{k.Up, k.Down, k.Toggle, k.SelectAll, k.Clear, k.More, k.Fewer},
		{k.Focus, k.Enter, k.RunBatch, k.Refresh, k.Download, k.Cancel, k.TestCookie},
		{k.Help, k.Escape, k.Quit},
	}
}
