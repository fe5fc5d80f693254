package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tankobon/internal/library"
)

// statusRank orders downloads: running first, then waiting, then the ones
// that need attention, then history.
func statusRank(s library.DownloadStatus) int {
	switch s.Normalize() {
	case library.StatusDownloading:
		return 0
	case library.StatusQueued:
		return 1
	case library.StatusFailed:
		return 2
	case library.StatusCancelled:
		return 3
	case library.StatusCompleted:
		return 4
	default:
		return 5
	}
}

// sortDownloads returns a copy ordered by status rank, then most recently
// updated, then newest ID.
func sortDownloads(items []library.Download) []library.Download {
	out := append([]library.Download(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := statusRank(out[i].Status), statusRank(out[j].Status)
		if ri != rj {
			return ri < rj
		}
		ti, tj := out[i].ParsedUpdatedAt(), out[j].ParsedUpdatedAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m Model) sortedDownloads() []library.Download {
	return sortDownloads(m.snapshot.Downloads)
}

func (m Model) selectedDownload() (library.Download, bool) {
	items := m.sortedDownloads()
	if len(items) == 0 {
		return library.Download{}, false
	}
	return items[clampIndex(m.cursor[ViewDownloads], len(items))], true
}

func composeTitle(d library.Download) string {
	title := strings.TrimSpace(d.MangaTitle)
	if title == "" {
		title = fmt.Sprintf("Manga #%d", d.MangaID)
	}
	chapter := strings.TrimSpace(d.ChapterTitle)
	if d.ChapterNumber > 0 {
		num := fmt.Sprintf("Ch. %g", d.ChapterNumber)
		if chapter == "" || strings.EqualFold(chapter, num) {
			chapter = num
		} else {
			chapter = num + " " + chapter
		}
	}
	if chapter == "" {
		return title
	}
	return title + " · " + chapter
}

func (m Model) handleDownloadsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.sortedDownloads()
	if m.moveCursor(msg, len(items)) {
		return m, nil
	}
	d, ok := m.selectedDownload()
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Retry):
		if !d.Status.IsFailed() && d.Status.Normalize() != library.StatusCancelled {
			m.setFlash(fmt.Sprintf("download #%d is %s, nothing to retry", d.ID, d.Status.Normalize()), nil)
			return m, nil
		}
		return m, m.downloadAction("retry", d.ID, m.client.RetryDownload)

	case key.Matches(msg, m.keys.Cancel):
		if !d.Status.IsActive() {
			m.setFlash(fmt.Sprintf("download #%d is %s, nothing to cancel", d.ID, d.Status.Normalize()), nil)
			return m, nil
		}
		return m, m.downloadAction("cancel", d.ID, m.client.CancelDownload)
	}
	return m, nil
}

func (m Model) downloadAction(verb string, id int64, call func(context.Context, int64) error) tea.Cmd {
	if m.client == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		reqCtx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		err := call(reqCtx, id)
		return actionMsg{
			text: fmt.Sprintf("%s download #%d", verb, id),
			err:  err,
			poll: ViewDownloads.pollerName(),
		}
	}
}

func (m Model) renderDownloads() string {
	items := m.sortedDownloads()
	height := m.height - 2
	title := fmt.Sprintf("Downloads · %d active · %d failed", m.snapshot.ActiveDownloads(), m.snapshot.FailedDownloads())
	if feed := m.snapshot.DownloadsFeed; feed.LastError != nil && feed.Loaded {
		title += " · stale"
	}

	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.FocusBg)
	inner := m.width - 2

	if len(items) == 0 {
		msg := "No downloads"
		if !m.snapshot.DownloadsFeed.Loaded {
			msg = "Waiting for the first download list..."
		}
		return m.renderTitledBox(title, bg.Render(msg, styles.MutedText), m.width, height, true)
	}

	rows := height - 2
	cursor := clampIndex(m.cursor[ViewDownloads], len(items))
	selected := items[cursor]
	detail := m.downloadDetail(selected)
	if detail != "" {
		rows--
	}

	start, end := visibleRange(cursor, len(items), rows)
	lines := make([]string, 0, end-start+1)
	for i := start; i < end; i++ {
		lines = append(lines, m.formatDownloadRow(items[i], inner, i == cursor, styles, bg))
	}
	for len(lines) < rows {
		lines = append(lines, "")
	}
	if detail != "" {
		lines = append(lines, bg.Render(truncate(detail, inner), styles.DangerText))
	}
	return m.renderTitledBox(title, strings.Join(lines, "\n"), m.width, height, true)
}

func (m Model) downloadDetail(d library.Download) string {
	if d.Status.IsFailed() && strings.TrimSpace(d.Error) != "" {
		return fmt.Sprintf("#%d failed: %s", d.ID, d.Error)
	}
	return ""
}

func (m Model) formatDownloadRow(d library.Download, width int, selected bool, styles Styles, bg BgStyle) string {
	status := string(d.Status.Normalize())
	showProgress := m.width >= LayoutProgressWidth
	showSource := m.width >= LayoutSourceWidth

	id := padRight(fmt.Sprintf("#%d", d.ID), 7)
	statusCol := padRight(status, 12)
	pct := padRight(fmt.Sprintf("%3.0f%%", d.Percent()), 5)
	pages := ""
	if d.PagesTotal > 0 {
		pages = fmt.Sprintf("%d/%d", d.PagesDone, d.PagesTotal)
	}
	pages = padRight(pages, 9)
	source := ""
	if showSource {
		source = padRight(truncate(d.Source, 14), 15)
	}
	age := padRight(formatAge(d.ParsedUpdatedAt(), m.now()), 8)

	fixed := 7 + 12 + 5 + 9 + 8 + len([]rune(source)) + 5
	barWidth := 0
	if showProgress {
		barWidth = m.bar.Width + 1
	}
	titleWidth := maxInt(width-fixed-barWidth, 10)
	title := padRight(truncate(composeTitle(d), titleWidth), titleWidth)

	if selected {
		line := strings.Join([]string{id, statusCol, title, pct, pages, source, age}, " ")
		return styles.Selected.Width(width).MaxWidth(width).Render(line)
	}

	parts := []string{
		bg.Render(id, styles.FaintText),
		bg.Render(statusCol, styles.StatusText(status)),
		bg.Render(title, styles.Text),
	}
	if showProgress {
		bar := bg.Spaces(m.bar.Width)
		if d.Status.IsActive() {
			bar = m.bar.ViewAs(d.Percent() / 100)
		}
		parts = append(parts, bar)
	}
	parts = append(parts,
		bg.Render(pct, styles.AccentText),
		bg.Render(pages, styles.MutedText),
	)
	if source != "" {
		parts = append(parts, bg.Render(source, styles.MutedText))
	}
	parts = append(parts, bg.Render(age, styles.FaintText))
	return bg.Join(parts, " ")
}
