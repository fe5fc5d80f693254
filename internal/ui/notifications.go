package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tankobon/internal/library"
	"github.com/five82/tankobon/internal/state"
)

// sortNotifications returns a copy with unread first, then newest first.
func sortNotifications(items []library.Notification) []library.Notification {
	out := append([]library.Notification(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Read != out[j].Read {
			return !out[i].Read
		}
		ti, tj := out[i].ParsedCreatedAt(), out[j].ParsedCreatedAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m Model) sortedNotifications() []library.Notification {
	return sortNotifications(m.snapshot.Notifications)
}

func (m Model) handleNotificationsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.sortedNotifications()
	if m.moveCursor(msg, len(items)) {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.MarkRead):
		if len(items) == 0 {
			return m, nil
		}
		n := items[clampIndex(m.cursor[ViewNotifications], len(items))]
		if n.Read {
			return m, nil
		}
		return m, m.markReadCmd(fmt.Sprintf("marked #%d read", n.ID), n.ID)

	case key.Matches(msg, m.keys.MarkAllRead):
		if m.snapshot.UnreadNotifications() == 0 {
			m.setFlash("no unread notifications", nil)
			return m, nil
		}
		return m, m.markReadCmd("marked all read")
	}
	return m, nil
}

// markReadCmd acknowledges notifications on the server and, on success,
// mirrors the change in the store so the view updates before the next poll.
// No ids marks everything.
func (m Model) markReadCmd(text string, ids ...int64) tea.Cmd {
	if m.client == nil {
		return nil
	}
	ctx, client, store := m.ctx, m.client, m.store
	return func() tea.Msg {
		reqCtx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		err := client.MarkNotificationsRead(reqCtx, ids...)
		if err == nil {
			store.MarkNotificationsRead(ids...)
		}
		return actionMsg{text: text, err: err, poll: ViewNotifications.pollerName()}
	}
}

func (m Model) renderNotifications() string {
	items := m.sortedNotifications()
	height := m.height - 2
	title := fmt.Sprintf("Notifications · %d unread", m.snapshot.UnreadNotifications())
	if feed := m.snapshot.NotificationsFeed; feed.LastError != nil && feed.Loaded {
		title += " · stale"
	}

	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.FocusBg)
	inner := m.width - 2

	if len(items) == 0 {
		msg := "No notifications"
		if !m.snapshot.NotificationsFeed.Loaded {
			msg = "Waiting for the first notification list..."
		}
		return m.renderTitledBox(title, bg.Render(msg, styles.MutedText), m.width, height, true)
	}

	rows := height - 2
	cursor := clampIndex(m.cursor[ViewNotifications], len(items))
	start, end := visibleRange(cursor, len(items), rows)
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, m.formatNotificationRow(items[i], inner, i == cursor, styles, bg))
	}
	return m.renderTitledBox(title, strings.Join(lines, "\n"), m.width, height, true)
}

func kindLabel(k library.NotificationKind) string {
	if k == "" {
		return "Notice"
	}
	return titleCase(string(k))
}

func (m Model) formatNotificationRow(n library.Notification, width int, selected bool, styles Styles, bg BgStyle) string {
	marker := "●"
	if n.Read {
		marker = " "
	}
	kind := padRight(truncate(kindLabel(n.Kind), 15), 16)
	age := padRight(formatAge(n.ParsedCreatedAt(), m.now()), 8)
	titleWidth := minInt(maxInt(width/3, 16), 48)
	title := padRight(truncate(n.Title, titleWidth), titleWidth)
	bodyWidth := maxInt(width-2-16-titleWidth-8-4, 0)
	body := truncate(strings.Join(strings.Fields(n.Body), " "), bodyWidth)

	if selected {
		line := strings.Join([]string{marker, kind, title, age, body}, " ")
		return styles.Selected.Width(width).MaxWidth(width).Render(line)
	}

	textStyle := styles.Text
	if n.Read {
		textStyle = styles.MutedText
	}
	kindStyle := styles.InfoText
	if n.Kind == library.KindDownloadFailed {
		kindStyle = styles.DangerText
	}
	return bg.Join([]string{
		bg.Render(marker, styles.AccentText),
		bg.Render(kind, kindStyle),
		bg.Render(title, textStyle),
		bg.Render(age, styles.FaintText),
		bg.Render(body, styles.MutedText),
	}, " ")
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// pendingCounts summarises the snapshot for the header.
func pendingCounts(s state.Snapshot) (active, failed, unread int) {
	return s.ActiveDownloads(), s.FailedDownloads(), s.UnreadNotifications()
}
