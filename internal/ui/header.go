package ui

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/tankobon/internal/library"
	"github.com/five82/tankobon/internal/polling"
)

// renderHeader renders the status bar: connection, counts, and one
// indicator per poller.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	sep := bg.Spaces(2)

	parts := []string{bg.Render("tankobon", styles.Logo)}
	parts = append(parts, m.connectionStatus(styles, bg)...)

	if m.snapshot.DownloadsFeed.Loaded || m.snapshot.NotificationsFeed.Loaded {
		parts = append(parts, m.countsStatus(styles, bg))
	}

	for _, p := range m.pollers {
		parts = append(parts, m.pollerIndicator(p.Name(), m.pollState(p.Name()), styles, bg))
	}

	if ts := m.formatTimestamp(); ts != "" {
		parts = append(parts, bg.Render(ts, styles.MutedText))
	}

	if m.flash != "" {
		style := styles.InfoText
		if m.flashErr {
			style = styles.WarningText
		}
		parts = append(parts, bg.Render("!", style.Bold(true))+bg.Space()+bg.Render(truncate(m.flash, 60), style))
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		MaxWidth(m.width).
		Render(strings.Join(parts, sep))
}

// connectionStatus shows the server while it answers, the reason it does not
// once every feed is offline, and a connecting hint before the first reply.
func (m Model) connectionStatus(styles Styles, bg BgStyle) []string {
	dl, nt := m.snapshot.DownloadsFeed, m.snapshot.NotificationsFeed
	host := serverHost(m.serverURL)

	switch {
	case !dl.Loaded && !nt.Loaded && dl.LastError == nil && nt.LastError == nil:
		return []string{bg.Render("Connecting to "+host+"...", styles.WarningText.Bold(true))}

	case (dl.LastError != nil || !dl.Loaded) && (nt.LastError != nil || !nt.Loaded):
		err := dl.LastError
		if err == nil {
			err = nt.LastError
		}
		parts := []string{
			bg.Render("● "+classifyConnectionError(err), styles.DangerText),
			bg.Render(host, styles.MutedText),
		}
		if m.logPath != "" && m.width >= LayoutCompactWidth {
			parts = append(parts, bg.Render("logs", styles.FaintText)+bg.Space()+
				bg.Render(truncateMiddle(m.logPath, 40), styles.MutedText))
		}
		return parts

	default:
		return []string{bg.Render("● "+host, styles.SuccessText)}
	}
}

func (m Model) countsStatus(styles Styles, bg BgStyle) string {
	active, failed, unread := pendingCounts(m.snapshot)
	compact := m.width < LayoutCompactWidth

	failedStyle := styles.MutedText
	if failed > 0 {
		failedStyle = styles.DangerText
	}
	unreadStyle := styles.MutedText
	if unread > 0 {
		unreadStyle = styles.WarningText
	}
	activeStyle := styles.MutedText
	if active > 0 {
		activeStyle = styles.StatusText(string(library.StatusDownloading)).Background(bg.bg)
	}

	labels := [3]string{"Active:", "Failed:", "Unread:"}
	if compact {
		labels = [3]string{"A:", "F:", "U:"}
	}
	dot := bg.Space() + bg.Render("•", styles.FaintText) + bg.Space()
	return bg.Render(labels[0], styles.MutedText) + bg.Space() + bg.Render(fmt.Sprintf("%d", active), activeStyle) +
		dot + bg.Render(labels[1], styles.MutedText) + bg.Space() + bg.Render(fmt.Sprintf("%d", failed), failedStyle) +
		dot + bg.Render(labels[2], styles.MutedText) + bg.Space() + bg.Render(fmt.Sprintf("%d", unread), unreadStyle)
}

// pollerIndicator renders "name mode interval" coloured by mode.
func (m Model) pollerIndicator(name string, s polling.State, styles Styles, bg BgStyle) string {
	mode := string(s.Mode())
	return bg.Render(name, styles.MutedText) + bg.Space() +
		bg.Render(pollerLabel(s), styles.StatusText(mode).Bold(s.Mode() == polling.ModePaused))
}

// pollerLabel describes a poller state in a few characters.
func pollerLabel(s polling.State) string {
	mode := s.Mode()
	switch mode {
	case polling.ModeOff, polling.ModeStopped:
		return string(mode)
	case polling.ModePaused:
		return fmt.Sprintf("paused ×%d (r)", s.ConsecutiveErrors)
	case polling.ModeBackoff:
		return fmt.Sprintf("backoff %s ×%d", formatInterval(s.CurrentInterval), s.ConsecutiveErrors)
	default:
		return fmt.Sprintf("%s %s", mode, formatInterval(s.CurrentInterval))
	}
}

// formatTimestamp formats the newest successful fetch with a relative hint.
func (m Model) formatTimestamp() string {
	last := m.snapshot.LastUpdated()
	if last.IsZero() {
		return ""
	}
	return last.Local().Format("15:04:05") + " (" + formatAge(last, m.now()) + ")"
}

// classifyConnectionError returns a short description of the connection error.
func classifyConnectionError(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *library.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case 401, 403:
			return "UNAUTHORIZED"
		default:
			return fmt.Sprintf("HTTP %d", apiErr.Status)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "TIMEOUT"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"):
		return "TIMEOUT"
	default:
		return "ERROR"
	}
}

func serverHost(raw string) string {
	if raw == "" {
		return "server"
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}

// renderCommandBar renders the key hints for the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	pollLabel := "Polling"
	if name := m.view.pollerName(); name != "" {
		pollLabel = "Polling " + onOff(m.pollState(name).Enabled)
	}

	switch m.view {
	case ViewNotifications:
		commands = []cmd{
			{"Space", "Poll"},
			{"r", "Reset"},
			{"p", pollLabel},
			{"m", "Read"},
			{"M", "All read"},
			{"j/k", "Navigate"},
		}
	case ViewLogs:
		followLabel := "Pause"
		if !m.logs.follow {
			followLabel = "Follow"
		}
		commands = []cmd{
			{"f", followLabel},
			{"v", m.logs.minLevel.String() + "+"},
			{"L", "Level"},
			{"Space", "Poll all"},
			{"r", "Reset all"},
			{"j/k", "Scroll"},
		}
	default:
		commands = []cmd{
			{"Space", "Poll"},
			{"r", "Reset"},
			{"p", pollLabel},
			{"R", "Retry"},
			{"x", "Cancel"},
			{"j/k", "Navigate"},
		}
	}
	commands = append(commands, cmd{"Tab", "View"}, cmd{"?", "More"})

	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).MaxWidth(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}
