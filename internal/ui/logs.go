package ui

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/tankobon/internal/logging"
	"github.com/five82/tankobon/internal/logtail"
)

type logEntriesMsg struct {
	entries []logtail.Entry
	err     error
}

var filterLevels = []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}

// nextFilterLevel cycles DEBUG, INFO, WARN, ERROR and back.
func nextFilterLevel(current slog.Level) slog.Level {
	for i, l := range filterLevels {
		if l == current {
			return filterLevels[(i+1)%len(filterLevels)]
		}
	}
	return slog.LevelInfo
}

// refreshLogs reads the tail of the log file off the update loop.
func (m Model) refreshLogs() tea.Cmd {
	path, level := m.logPath, m.logs.minLevel
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		entries, err := logtail.ReadEntries(path, LogBufferLimit, level)
		return logEntriesMsg{entries: entries, err: err}
	}
}

// cycleLogLevel changes the level of the process logger, not the view filter.
func cycleLogLevel() tea.Cmd {
	level := logging.CycleLevel()
	slog.Info("log level changed", "level", level.String())
	return func() tea.Msg {
		return actionMsg{text: "log level " + level.String()}
	}
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logs.follow = !m.logs.follow
		if m.logs.follow {
			m.logs.viewport.GotoBottom()
			return m, m.refreshLogs()
		}
		return m, nil

	case key.Matches(msg, m.keys.CycleFilter):
		m.logs.minLevel = nextFilterLevel(m.logs.minLevel)
		return m, m.refreshLogs()

	case key.Matches(msg, m.keys.Top):
		m.logs.viewport.GotoTop()
		m.logs.follow = false

	case key.Matches(msg, m.keys.Bottom):
		m.logs.viewport.GotoBottom()
		m.logs.follow = true

	case key.Matches(msg, m.keys.Down):
		m.logs.viewport.ScrollDown(1)
		m.logs.follow = m.logs.viewport.AtBottom()

	case key.Matches(msg, m.keys.Up):
		m.logs.viewport.ScrollUp(1)
		m.logs.follow = false

	default:
		var cmd tea.Cmd
		m.logs.viewport, cmd = m.logs.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) resizeLogViewport() {
	w, h := m.width-4, m.height-4
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if m.logs.viewport.Width == 0 {
		m.logs.viewport = viewport.New(w, h)
	}
	m.logs.viewport.Width = w
	m.logs.viewport.Height = h
	m.refreshLogViewport()
}

func (m *Model) refreshLogViewport() {
	if m.logs.viewport.Width == 0 {
		return
	}
	m.logs.viewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))
	m.logs.viewport.SetContent(m.renderLogContent())
	if m.logs.follow {
		m.logs.viewport.GotoBottom()
	}
}

func (m Model) renderLogs() string {
	title := "Logs · " + m.logs.minLevel.String() + "+"
	if !m.logs.follow {
		title += " · paused"
	}
	return m.renderTitledBox(title, m.logs.viewport.View(), m.width, m.height-2, true)
}

func (m Model) renderLogContent() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.FocusBg)

	if m.logs.err != nil {
		return bg.Render("Cannot read "+m.logPath+": "+m.logs.err.Error(), styles.DangerText)
	}
	if len(m.logs.entries) == 0 {
		return bg.Render("No log entries yet", styles.MutedText)
	}

	width := m.logs.viewport.Width
	lines := make([]string, 0, len(m.logs.entries))
	for _, e := range m.logs.entries {
		lines = append(lines, m.formatLogEntry(e, width, styles, bg))
	}
	return strings.Join(lines, "\n")
}

func (m Model) formatLogEntry(e logtail.Entry, width int, styles Styles, bg BgStyle) string {
	if e.Time.IsZero() && e.Message == "" {
		return bg.Render(truncate(e.Raw, width), styles.MutedText)
	}

	parts := make([]string, 0, 5)
	if !e.Time.IsZero() {
		parts = append(parts, bg.Render(e.Time.Local().Format("15:04:05"), styles.FaintText))
	}
	parts = append(parts, bg.Render(padRight(levelLabel(e.Level), 5), levelStyle(e.Level, styles)))
	if e.Poller != "" {
		parts = append(parts, bg.Render("["+e.Poller+"]", styles.AccentText))
	}
	parts = append(parts, bg.Render(e.Message, styles.Text))
	if attrs := e.AttrString(); attrs != "" {
		parts = append(parts, bg.Render(truncate(attrs, maxInt(width/2, 20)), styles.MutedText))
	}
	return bg.Join(parts, " ")
}

func levelLabel(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func levelStyle(l slog.Level, styles Styles) lipgloss.Style {
	switch {
	case l >= slog.LevelError:
		return styles.DangerText
	case l >= slog.LevelWarn:
		return styles.WarningText
	case l >= slog.LevelInfo:
		return styles.InfoText
	default:
		return styles.FaintText
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
