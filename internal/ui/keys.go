package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	CycleLevel key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding

	// View switching
	ViewDownloads     key.Binding
	ViewNotifications key.Binding
	ViewLogs          key.Binding

	// Polling
	PollNow       key.Binding
	ResetPoller   key.Binding
	TogglePolling key.Binding

	// Download actions
	Retry  key.Binding
	Cancel key.Binding

	// Notification actions
	MarkRead    key.Binding
	MarkAllRead key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	// Logs
	ToggleFollow key.Binding
	CycleFilter  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "e"),
			key.WithHelp("e", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		CycleLevel: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Cycle log level"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next view"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous view"),
		),

		ViewDownloads: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Downloads"),
		),
		ViewNotifications: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "Notifications"),
		),
		ViewLogs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "Logs"),
		),

		PollNow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "Poll now"),
		),
		ResetPoller: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Reset poller"),
		),
		TogglePolling: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Toggle polling"),
		),

		Retry: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "Retry download"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Cancel download"),
		),

		MarkRead: key.NewBinding(
			key.WithKeys("m", "enter"),
			key.WithHelp("m", "Mark read"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "Mark all read"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),

		ToggleFollow: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Toggle follow"),
		),
		CycleFilter: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "Cycle level filter"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ViewDownloads, k.ViewNotifications, k.ViewLogs},
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.PollNow, k.ResetPoller, k.TogglePolling},
		{k.Retry, k.Cancel, k.MarkRead, k.MarkAllRead},
		{k.ToggleFollow, k.CycleFilter},
		{k.CycleTheme, k.CycleLevel, k.Help, k.Quit},
	}
}
