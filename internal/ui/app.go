package ui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tankobon/internal/library"
	"github.com/five82/tankobon/internal/logtail"
	"github.com/five82/tankobon/internal/polling"
	"github.com/five82/tankobon/internal/prefs"
	"github.com/five82/tankobon/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewDownloads View = iota
	ViewNotifications
	ViewLogs
)

var viewNames = []string{"downloads", "notifications", "logs"}

func (v View) String() string {
	if v < 0 || int(v) >= len(viewNames) {
		return viewNames[0]
	}
	return viewNames[v]
}

func parseView(name string) View {
	for i, n := range viewNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return View(i)
		}
	}
	return ViewDownloads
}

// pollerName returns the poller that feeds v. The logs view has none.
func (v View) pollerName() string {
	switch v {
	case ViewDownloads:
		return "downloads"
	case ViewNotifications:
		return "notifications"
	default:
		return ""
	}
}

// Poller is the slice of polling.Controller the UI drives.
type Poller interface {
	Name() string
	Snapshot() polling.State
	Subscribe() (<-chan polling.State, func())
	PollNow()
	Reset()
	SetEnabled(enabled bool)
}

// Options configures the UI.
type Options struct {
	Store     *state.Store
	Client    library.Fetcher
	Pollers   []Poller
	Prefs     prefs.Prefs
	PrefsPath string
	LogPath   string
	ServerURL string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx       context.Context
	store     *state.Store
	client    library.Fetcher
	pollers   []Poller
	prefs     prefs.Prefs
	prefsPath string
	logPath   string
	serverURL string
	now       func() time.Time

	// UI state
	keys     keyMap
	theme    Theme
	view     View
	width    int
	height   int
	ready    bool
	showHelp bool
	bar      progress.Model

	// Data state
	snapshot    state.Snapshot
	lastUpdated time.Time
	polls       map[string]polling.State
	subs        map[string]<-chan polling.State
	cursor      map[View]int

	logs logState

	flash    string
	flashErr bool
	flashAt  time.Time
}

type logState struct {
	entries     []logtail.Entry
	err         error
	follow      bool
	minLevel    slog.Level
	lastRefresh time.Time
	viewport    viewport.Model
}

// New creates a model. Subscriptions are attached by Run.
func New(ctx context.Context, opts Options) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	store := opts.Store
	if store == nil {
		store = &state.Store{}
	}
	theme := GetTheme(opts.Prefs.Theme)

	polls := make(map[string]polling.State, len(opts.Pollers))
	for _, p := range opts.Pollers {
		polls[p.Name()] = p.Snapshot()
	}

	return Model{
		ctx:       ctx,
		store:     store,
		client:    opts.Client,
		pollers:   opts.Pollers,
		prefs:     opts.Prefs,
		prefsPath: opts.PrefsPath,
		logPath:   opts.LogPath,
		serverURL: opts.ServerURL,
		now:       time.Now,
		keys:      DefaultKeyMap(),
		theme:     theme,
		view:      parseView(opts.Prefs.View),
		bar:       newProgressBar(theme),
		polls:     polls,
		subs:      make(map[string]<-chan polling.State),
		cursor:    make(map[View]int),
		logs:      logState{follow: true, minLevel: slog.LevelInfo},
	}
}

func newProgressBar(t Theme) progress.Model {
	return progress.New(
		progress.WithSolidFill(t.StatusColors["downloading"]),
		progress.WithoutPercentage(),
		progress.WithWidth(12),
	)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(DefaultUIInterval),
		fetchSnapshotCmd(m.store),
	}
	for name, ch := range m.subs {
		cmds = append(cmds, listenCmd(name, ch))
	}
	if m.view == ViewLogs {
		cmds = append(cmds, m.refreshLogs())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeLogViewport()
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{fetchSnapshotCmd(m.store), tickCmd(DefaultUIInterval)}
		if m.view == ViewLogs && m.logs.follow && m.now().Sub(m.logs.lastRefresh) >= LogRefreshInterval {
			cmds = append(cmds, m.refreshLogs())
		}
		if m.flash != "" && m.now().Sub(m.flashAt) > FlashDuration {
			m.flash = ""
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.lastUpdated = m.now()
		m.clampCursors()
		return m, nil

	case pollerStateMsg:
		if msg.closed {
			delete(m.subs, msg.name)
			return m, nil
		}
		m.polls[msg.name] = msg.state
		next := []tea.Cmd{fetchSnapshotCmd(m.store)}
		if ch, ok := m.subs[msg.name]; ok {
			next = append(next, listenCmd(msg.name, ch))
		}
		return m, tea.Batch(next...)

	case actionMsg:
		m.setFlash(msg.text, msg.err)
		if msg.err != nil || msg.poll == "" {
			return m, nil
		}
		return m, pollNowCmd(m.pollersNamed(msg.poll))

	case logEntriesMsg:
		m.logs.lastRefresh = m.now()
		m.logs.err = msg.err
		if msg.err == nil {
			m.logs.entries = msg.entries
		}
		m.refreshLogViewport()
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	return b.String()
}

func (m Model) renderContent() string {
	switch m.view {
	case ViewNotifications:
		return m.renderNotifications()
	case ViewLogs:
		return m.renderLogs()
	default:
		return m.renderDownloads()
	}
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.bar = newProgressBar(m.theme)
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		m.refreshLogViewport()
		return m, nil

	case key.Matches(msg, m.keys.CycleLevel):
		return m, cycleLogLevel()

	case key.Matches(msg, m.keys.Tab):
		return m.setView(View((int(m.view) + 1) % len(viewNames)))

	case key.Matches(msg, m.keys.ShiftTab):
		return m.setView(View((int(m.view) + len(viewNames) - 1) % len(viewNames)))

	case key.Matches(msg, m.keys.ViewDownloads):
		return m.setView(ViewDownloads)

	case key.Matches(msg, m.keys.ViewNotifications):
		return m.setView(ViewNotifications)

	case key.Matches(msg, m.keys.ViewLogs):
		return m.setView(ViewLogs)

	case key.Matches(msg, m.keys.PollNow):
		return m, pollNowCmd(m.viewPollers())

	case key.Matches(msg, m.keys.ResetPoller):
		m.resetPollers()
		return m, nil

	case key.Matches(msg, m.keys.TogglePolling):
		m.togglePolling()
		return m, nil
	}

	switch m.view {
	case ViewDownloads:
		return m.handleDownloadsKey(msg)
	case ViewNotifications:
		return m.handleNotificationsKey(msg)
	case ViewLogs:
		return m.handleLogsKey(msg)
	}
	return m, nil
}

func (m Model) setView(v View) (tea.Model, tea.Cmd) {
	if v == m.view {
		return m, nil
	}
	m.view = v
	m.prefs.View = v.String()
	m.savePrefs()
	if v == ViewLogs {
		return m, m.refreshLogs()
	}
	return m, nil
}

// viewPollers returns the pollers that feed the current view, or all of them
// on the logs view.
func (m Model) viewPollers() []Poller {
	name := m.view.pollerName()
	if name == "" {
		return m.pollers
	}
	return m.pollersNamed(name)
}

func (m Model) pollersNamed(name string) []Poller {
	for _, p := range m.pollers {
		if p.Name() == name {
			return []Poller{p}
		}
	}
	return nil
}

func (m *Model) resetPollers() {
	ps := m.viewPollers()
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		p.Reset()
		m.polls[p.Name()] = p.Snapshot()
		names = append(names, p.Name())
	}
	if len(names) > 0 {
		m.setFlash("reset "+strings.Join(names, ", "), nil)
	}
}

// togglePolling flips the master switch of the current view's pollers and
// remembers the choice across restarts.
func (m *Model) togglePolling() {
	for _, p := range m.viewPollers() {
		enable := !m.pollState(p.Name()).Enabled
		p.SetEnabled(enable)
		m.polls[p.Name()] = p.Snapshot()
		m.prefs.SetPollingDisabled(p.Name(), !enable)
		m.setFlash(p.Name()+" polling "+onOff(enable), nil)
	}
	m.savePrefs()
}

func (m Model) pollState(name string) polling.State {
	if s, ok := m.polls[name]; ok {
		return s
	}
	for _, p := range m.pollers {
		if p.Name() == name {
			return p.Snapshot()
		}
	}
	return polling.State{}
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.setFlash("save prefs", err)
	}
}

func (m *Model) setFlash(text string, err error) {
	m.flash = text
	m.flashErr = err != nil
	if err != nil {
		m.flash = text + ": " + err.Error()
	}
	m.flashAt = m.now()
}

func (m *Model) clampCursors() {
	m.cursor[ViewDownloads] = clampIndex(m.cursor[ViewDownloads], len(m.snapshot.Downloads))
	m.cursor[ViewNotifications] = clampIndex(m.cursor[ViewNotifications], len(m.snapshot.Notifications))
}

// moveCursor applies navigation keys to the cursor of the current view.
func (m *Model) moveCursor(msg tea.KeyMsg, count int) bool {
	cur := m.cursor[m.view]
	switch {
	case key.Matches(msg, m.keys.Down):
		cur++
	case key.Matches(msg, m.keys.Up):
		cur--
	case key.Matches(msg, m.keys.Top):
		cur = 0
	case key.Matches(msg, m.keys.Bottom):
		cur = count - 1
	default:
		return false
	}
	m.cursor[m.view] = clampIndex(cur, count)
	return true
}

func clampIndex(i, count int) int {
	if count <= 0 || i < 0 {
		return 0
	}
	if i >= count {
		return count - 1
	}
	return i
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type pollerStateMsg struct {
	name   string
	state  polling.State
	closed bool
}

// actionMsg reports the outcome of a server action. A non-empty poll names
// the poller to refresh on success.
type actionMsg struct {
	text string
	err  error
	poll string
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// listenCmd waits for the next state from a subscription.
func listenCmd(name string, ch <-chan polling.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		return pollerStateMsg{name: name, state: s, closed: !ok}
	}
}

// pollNowCmd runs an immediate cycle on each poller. PollNow blocks for the
// duration of the fetch, so it runs off the update loop.
func pollNowCmd(ps []Poller) tea.Cmd {
	if len(ps) == 0 {
		return nil
	}
	return func() tea.Msg {
		for _, p := range ps {
			p.PollNow()
		}
		return nil
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, opts Options) error {
	m := New(ctx, opts)
	for _, p := range opts.Pollers {
		ch, unsubscribe := p.Subscribe()
		defer unsubscribe()
		m.subs[p.Name()] = ch
	}

	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
