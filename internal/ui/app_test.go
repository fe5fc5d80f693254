package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tankobon/internal/library"
	"github.com/five82/tankobon/internal/polling"
	"github.com/five82/tankobon/internal/prefs"
	"github.com/five82/tankobon/internal/state"
)

type fakePoller struct {
	name string

	mu      sync.Mutex
	state   polling.State
	pollNow int
	resets  int
}

func newFakePoller(name string) *fakePoller {
	return &fakePoller{name: name, state: polling.State{
		Enabled:         true,
		IsPolling:       true,
		CurrentInterval: 30 * time.Second,
		Strategy:        polling.DefaultStrategy(),
	}}
}

func (p *fakePoller) Name() string { return p.name }

func (p *fakePoller) Snapshot() polling.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *fakePoller) Subscribe() (<-chan polling.State, func()) {
	ch := make(chan polling.State, 1)
	ch <- p.Snapshot()
	return ch, func() {}
}

func (p *fakePoller) PollNow() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollNow++
}

func (p *fakePoller) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	p.state.ConsecutiveErrors = 0
	p.state.IsPolling = true
}

func (p *fakePoller) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Enabled = enabled
	p.state.IsPolling = enabled
}

func (p *fakePoller) counts() (pollNow, resets int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pollNow, p.resets
}

type fakeClient struct {
	mu        sync.Mutex
	retried   []int64
	cancelled []int64
	marked    [][]int64
	err       error
}

func (c *fakeClient) FetchDownloads(context.Context) ([]library.Download, error) { return nil, nil }

func (c *fakeClient) FetchNotifications(context.Context, bool) ([]library.Notification, error) {
	return nil, nil
}

func (c *fakeClient) RetryDownload(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retried = append(c.retried, id)
	return c.err
}

func (c *fakeClient) CancelDownload(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, id)
	return c.err
}

func (c *fakeClient) MarkNotificationsRead(_ context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marked = append(c.marked, ids)
	return c.err
}

type harness struct {
	model         Model
	store         *state.Store
	client        *fakeClient
	downloads     *fakePoller
	notifications *fakePoller
	prefsPath     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:         &state.Store{},
		client:        &fakeClient{},
		downloads:     newFakePoller("downloads"),
		notifications: newFakePoller("notifications"),
		prefsPath:     filepath.Join(t.TempDir(), "prefs.toml"),
	}
	h.model = New(context.Background(), Options{
		Store:     h.store,
		Client:    h.client,
		Pollers:   []Poller{h.downloads, h.notifications},
		Prefs:     prefs.Prefs{Theme: "Nightfox", View: "downloads"},
		PrefsPath: h.prefsPath,
		ServerURL: "http://127.0.0.1:4567",
	})
	return h
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

// sync pulls the current store snapshot into the model.
func (h *harness) sync() {
	h.send(fetchSnapshotCmd(h.store)())
}

func press(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSpacePollsTheCurrentViewsPoller(t *testing.T) {
	h := newHarness(t)

	cmd := h.send(press(" "))
	if cmd == nil {
		t.Fatal("space returned no command")
	}
	cmd()

	if n, _ := h.downloads.counts(); n != 1 {
		t.Fatalf("downloads PollNow calls = %d, want 1", n)
	}
	if n, _ := h.notifications.counts(); n != 0 {
		t.Fatalf("notifications PollNow calls = %d, want 0", n)
	}
}

func TestResetOnLogsViewResetsEveryPoller(t *testing.T) {
	h := newHarness(t)
	h.send(press("l"))
	if h.model.view != ViewLogs {
		t.Fatalf("view = %v, want logs", h.model.view)
	}

	h.send(press("r"))

	_, dl := h.downloads.counts()
	_, nt := h.notifications.counts()
	if dl != 1 || nt != 1 {
		t.Fatalf("resets = (%d, %d), want (1, 1)", dl, nt)
	}
}

func TestTogglePollingPersistsChoice(t *testing.T) {
	h := newHarness(t)

	h.send(press("p"))
	if h.downloads.Snapshot().Enabled {
		t.Fatal("downloads poller still enabled after toggle")
	}
	if got := h.model.pollState("downloads").Mode(); got != polling.ModeOff {
		t.Fatalf("header mode = %q, want off", got)
	}
	saved, err := prefs.Load(h.prefsPath)
	if err != nil {
		t.Fatalf("load prefs: %v", err)
	}
	if !saved.PollingDisabled("downloads") {
		t.Fatalf("prefs did not record downloads as disabled: %+v", saved)
	}

	h.send(press("p"))
	if !h.downloads.Snapshot().Enabled {
		t.Fatal("downloads poller not re-enabled")
	}
	saved, _ = prefs.Load(h.prefsPath)
	if saved.PollingDisabled("downloads") {
		t.Fatal("prefs still record downloads as disabled")
	}
}

func TestCancelActiveDownloadThenPolls(t *testing.T) {
	h := newHarness(t)
	h.store.UpdateDownloads([]library.Download{{ID: 7, Status: library.StatusDownloading}}, nil)
	h.sync()

	cmd := h.send(press("x"))
	if cmd == nil {
		t.Fatal("cancel returned no command")
	}
	msg := cmd()
	if len(h.client.cancelled) != 1 || h.client.cancelled[0] != 7 {
		t.Fatalf("cancelled = %v, want [7]", h.client.cancelled)
	}

	follow := h.send(msg)
	if follow == nil {
		t.Fatal("successful action did not schedule a poll")
	}
	follow()
	if n, _ := h.downloads.counts(); n != 1 {
		t.Fatalf("downloads PollNow calls = %d, want 1", n)
	}
	if !strings.Contains(h.model.flash, "cancel download #7") {
		t.Fatalf("flash = %q", h.model.flash)
	}
}

func TestCancelIgnoresFinishedDownload(t *testing.T) {
	h := newHarness(t)
	h.store.UpdateDownloads([]library.Download{{ID: 3, Status: library.StatusCompleted}}, nil)
	h.sync()

	if cmd := h.send(press("x")); cmd != nil {
		t.Fatal("cancel on a completed download returned a command")
	}
	if len(h.client.cancelled) != 0 {
		t.Fatalf("client called: %v", h.client.cancelled)
	}
}

func TestRetryUsesSortedSelection(t *testing.T) {
	h := newHarness(t)
	h.store.UpdateDownloads([]library.Download{
		{ID: 1, Status: library.StatusFailed},
		{ID: 2, Status: library.StatusDownloading},
	}, nil)
	h.sync()

	// Running downloads sort first, so the failed one is second.
	h.send(press("j"))
	cmd := h.send(press("R"))
	if cmd == nil {
		t.Fatal("retry returned no command")
	}
	cmd()
	if len(h.client.retried) != 1 || h.client.retried[0] != 1 {
		t.Fatalf("retried = %v, want [1]", h.client.retried)
	}
}

func TestFailedActionDoesNotPoll(t *testing.T) {
	h := newHarness(t)
	h.client.err = &library.APIError{Method: "POST", Path: "/api/v1/downloads/4/retry", Status: 409}
	h.store.UpdateDownloads([]library.Download{{ID: 4, Status: library.StatusFailed}}, nil)
	h.sync()

	msg := h.send(press("R"))()
	if follow := h.send(msg); follow != nil {
		t.Fatal("failed action scheduled a poll")
	}
	if !h.model.flashErr {
		t.Fatal("failed action not flagged as an error")
	}
}

func TestMarkAllReadUpdatesStore(t *testing.T) {
	h := newHarness(t)
	h.store.UpdateNotifications([]library.Notification{{ID: 1}, {ID: 2}, {ID: 3, Read: true}}, nil)
	h.send(press("n"))
	h.sync()

	cmd := h.send(press("M"))
	if cmd == nil {
		t.Fatal("mark all returned no command")
	}
	msg := cmd()
	if len(h.client.marked) != 1 || len(h.client.marked[0]) != 0 {
		t.Fatalf("marked = %v, want one call with no ids", h.client.marked)
	}
	if got := h.store.Snapshot().UnreadNotifications(); got != 0 {
		t.Fatalf("unread after mark all = %d", got)
	}
	if follow := h.send(msg); follow == nil {
		t.Fatal("mark all did not schedule a poll")
	}
}

func TestMarkReadSkipsReadNotification(t *testing.T) {
	h := newHarness(t)
	h.store.UpdateNotifications([]library.Notification{{ID: 3, Read: true}}, nil)
	h.send(press("n"))
	h.sync()

	if cmd := h.send(press("m")); cmd != nil {
		t.Fatal("mark read on a read notification returned a command")
	}
}

func TestPollerStateMsg(t *testing.T) {
	h := newHarness(t)
	ch := make(chan polling.State, 1)
	h.model.subs["downloads"] = ch

	next := polling.State{Enabled: true, ConsecutiveErrors: 3, MaxConsecutiveErrors: 3}
	if cmd := h.send(pollerStateMsg{name: "downloads", state: next}); cmd == nil {
		t.Fatal("state message did not re-arm the listener")
	}
	if got := h.model.pollState("downloads").Mode(); got != polling.ModePaused {
		t.Fatalf("mode = %q, want paused", got)
	}

	h.send(pollerStateMsg{name: "downloads", closed: true})
	if _, ok := h.model.subs["downloads"]; ok {
		t.Fatal("closed subscription still registered")
	}
}

func TestTabCyclesViewsAndLoadsLogs(t *testing.T) {
	h := newHarness(t)
	logPath := filepath.Join(t.TempDir(), "tankobon.log")
	line := `{"time":"2026-03-01T10:00:00Z","level":"WARN","msg":"fetch failed","poller":"downloads"}` + "\n"
	if err := os.WriteFile(logPath, []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}
	h.model.logPath = logPath
	h.send(tea.WindowSizeMsg{Width: 120, Height: 30})

	h.send(press("tab"))
	if h.model.view != ViewNotifications {
		t.Fatalf("view = %v, want notifications", h.model.view)
	}
	cmd := h.send(press("tab"))
	if h.model.view != ViewLogs || cmd == nil {
		t.Fatalf("view = %v (cmd nil: %v), want logs with a refresh", h.model.view, cmd == nil)
	}
	h.send(cmd())
	if len(h.model.logs.entries) != 1 || h.model.logs.entries[0].Message != "fetch failed" {
		t.Fatalf("entries = %+v", h.model.logs.entries)
	}

	saved, _ := prefs.Load(h.prefsPath)
	if saved.View != "logs" {
		t.Fatalf("saved view = %q, want logs", saved.View)
	}
}

func TestHelpClosesOnAnyKey(t *testing.T) {
	h := newHarness(t)
	h.send(press("?"))
	if !h.model.showHelp {
		t.Fatal("help not shown")
	}
	h.send(press(" "))
	if h.model.showHelp {
		t.Fatal("help still shown")
	}
	if n, _ := h.downloads.counts(); n != 0 {
		t.Fatal("key that closed help also polled")
	}
}

func TestViewRendersDownloads(t *testing.T) {
	h := newHarness(t)
	h.store.UpdateDownloads([]library.Download{
		{ID: 7, MangaTitle: "Yotsuba&!", ChapterNumber: 12, Status: library.StatusDownloading, PagesDone: 5, PagesTotal: 20},
	}, nil)
	h.sync()
	h.send(tea.WindowSizeMsg{Width: 140, Height: 20})

	out := h.model.View()
	for _, want := range []string{"tankobon", "Yotsuba&!", "downloads", "notifications"} {
		if !strings.Contains(out, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}
