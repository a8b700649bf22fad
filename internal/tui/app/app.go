package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/runtrace/runtrace/internal/session"
	"github.com/runtrace/runtrace/internal/tui/client"
	"github.com/runtrace/runtrace/internal/tui/theme"
	"github.com/runtrace/runtrace/internal/tui/views/achievements"
	"github.com/runtrace/runtrace/internal/tui/views/debug"
	"github.com/runtrace/runtrace/internal/tui/views/history"
	"github.com/runtrace/runtrace/internal/tui/views/report"
	"github.com/runtrace/runtrace/internal/tui/views/status"
	"github.com/runtrace/runtrace/internal/tui/views/summary"
	"github.com/runtrace/runtrace/internal/tui/views/trace"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayReport
	OverlayAchievements
	OverlayHistory
)

// Options configure the root model.
type Options struct {
	GoalM     float64 // goal distance for the progress bar; 0 hides it
	ExportDir string  // where exports are saved
}

// Messages produced by the model's own commands.
type (
	controlResultMsg struct {
		Action string
		Resp   *client.ControlResponse
		Err    error
	}
	runFetchedMsg struct {
		Run *session.Snapshot
		Err error
	}
	exportDoneMsg struct {
		Path string
		Err  error
	}
	recordsMsg struct {
		Records *client.Records
		Err     error
	}
	animFrameMsg struct{}
)

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options

	keys   KeyMap
	width  int
	height int

	run          session.Snapshot
	records      *client.Records
	achievements []client.AchievementUnlockedPayload
	notice       string

	overlay Overlay

	statusBar status.Model
	summary   summary.Model
	trace     trace.Model
	debugLog  debug.Model
	achPanel  achievements.Model
	history   history.Model

	connected  bool
	retryDelay time.Duration
	animating  bool
}

// New creates the root model.
func New(ws *client.WSClient, http *client.HTTPClient, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	return Model{
		ws:        ws,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		opts:      opts,
		keys:      DefaultKeyMap(),
		statusBar: status.New(),
		summary:   summary.New(opts.GoalM),
		trace:     trace.New(),
		debugLog:  debug.New(),
		achPanel:  achievements.New(),
		history:   history.New(http),
	}
}

// Init starts the WebSocket connection and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listen(0), m.statusBar.Tick, m.fetchRecords())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.statusBar, cmd = m.statusBar.Update(msg)
		return m, cmd

	case client.WSConnectedMsg:
		m.connected = true
		m.retryDelay = 0
		m.statusBar.Connected = true
		m.debugLog.Add(debug.KindWS, "connected")
		return m, m.readLoop()

	case client.WSRetryMsg:
		m.retryDelay = msg.Delay
		m.debugLog.Addf(debug.KindError, "dial: %v (next retry in %v)", msg.Err, msg.Delay)
		return m, m.listen(msg.Delay)

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.debugLog.Addf(debug.KindWS, "disconnected: %v", msg.Err)
		return m, m.listen(0)

	case client.WSSnapshotMsg:
		m.debugLog.Addf(debug.KindWS, "snapshot: %s, %d points", msg.Payload.Run.Phase, len(msg.Payload.Run.Points))
		cmd := m.setRun(msg.Payload.Run)
		return m, tea.Batch(m.readLoop(), cmd)

	case client.WSDeltaMsg:
		next, ok := m.run.Apply(msg.Payload)
		if msg.Gap || !ok {
			m.debugLog.Addf(debug.KindWS, "delta from %d does not apply, resyncing", msg.Payload.FromIndex)
			return m, tea.Batch(m.readLoop(), m.fetchRun())
		}
		if n := len(msg.Payload.Points); n > 0 {
			m.debugLog.Addf(debug.KindWS, "delta: +%d points", n)
		}
		cmd := m.setRun(next)
		return m, tea.Batch(m.readLoop(), cmd)

	case client.WSAchievementMsg:
		m.achievements = append(m.achievements, msg.Payload)
		if m.records != nil {
			m.records.Unlock(msg.Payload.ID, time.Now())
		}
		m.notice = fmt.Sprintf("Achievement unlocked: %s", msg.Payload.Name)
		m.debugLog.Addf(debug.KindAchievement, "%s (%s)", msg.Payload.Name, msg.Payload.Tier)
		return m, tea.Batch(m.readLoop(), m.fetchRecords())

	case client.WSErrorMsg:
		m.notice = msg.Payload.Message
		m.debugLog.Add(debug.KindError, msg.Payload.Message)
		return m, m.readLoop()

	case controlResultMsg:
		if msg.Err != nil {
			m.notice = msg.Err.Error()
			m.debugLog.Addf(debug.KindError, "%s: %v", msg.Action, msg.Err)
			return m, nil
		}
		m.debugLog.Addf(debug.KindControl, "%s: changed=%v", msg.Action, msg.Resp.Changed)
		m.notice = ""
		cmd := m.setRun(msg.Resp.Run)
		if msg.Action == "stop" && msg.Resp.Changed {
			m.overlay = OverlayReport
			cmd = tea.Batch(cmd, m.fetchRecords())
		}
		return m, cmd

	case runFetchedMsg:
		if msg.Err != nil {
			m.debugLog.Addf(debug.KindError, "resync: %v", msg.Err)
			return m, nil
		}
		cmd := m.setRun(*msg.Run)
		return m, cmd

	case exportDoneMsg:
		if msg.Err != nil {
			m.notice = "Export failed: " + msg.Err.Error()
			m.debugLog.Addf(debug.KindError, "export: %v", msg.Err)
			return m, nil
		}
		m.notice = "Saved " + msg.Path
		m.debugLog.Addf(debug.KindControl, "exported %s", msg.Path)
		return m, nil

	case recordsMsg:
		if msg.Err != nil {
			m.debugLog.Addf(debug.KindError, "records: %v", msg.Err)
			return m, nil
		}
		m.records = msg.Records
		return m, nil

	case history.LoadedMsg, history.RunLoadedMsg, history.DeletedMsg:
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		if d, ok := msg.(history.DeletedMsg); ok && d.Err == nil {
			m.debugLog.Addf(debug.KindControl, "deleted run %s", d.ID)
		}
		return m, cmd

	case animFrameMsg:
		if m.summary.Step() {
			m.animating = false
			return m, nil
		}
		return m, animFrame()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		if m.ws != nil {
			m.ws.Close()
		}
		return m, tea.Quit
	}

	if m.overlay == OverlayHistory {
		if key.Matches(msg, m.keys.Escape) && !m.history.Viewing() {
			m.overlay = OverlayNone
			return m, nil
		}
		var cmd tea.Cmd
		m.history, cmd = m.history.Update(msg)
		return m, cmd
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.debugLog.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.debugLog.ScrollDown(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.ErrorsOnly):
			m.debugLog.ToggleErrors()
		case m.overlay == OverlayAchievements:
			m.achPanel = m.achPanel.Update(msg)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Start):
		return m, m.control("start")

	case key.Matches(msg, m.keys.Pause):
		switch m.run.Phase {
		case session.Running:
			return m, m.control("pause")
		case session.Paused:
			return m, m.control("resume")
		}
		return m, nil

	case key.Matches(msg, m.keys.Stop):
		return m, m.control("stop")

	case key.Matches(msg, m.keys.Clear):
		return m, m.control("clear")

	case key.Matches(msg, m.keys.Export):
		return m, m.export("gpx")

	case key.Matches(msg, m.keys.ExportJSON):
		return m, m.export("json")

	case key.Matches(msg, m.keys.Resync):
		m.debugLog.Add(debug.KindControl, "resync requested")
		return m, m.fetchRun()

	case key.Matches(msg, m.keys.Report):
		m.overlay = OverlayReport
		return m, nil

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Achievements):
		m.overlay = OverlayAchievements
		return m, m.fetchRecords()

	case key.Matches(msg, m.keys.History):
		m.overlay = OverlayHistory
		cmd := m.history.Init()
		return m, cmd
	}

	return m, nil
}

// setRun replaces the displayed run and starts the goal bar animation when
// it has somewhere to go.
func (m *Model) setRun(run session.Snapshot) tea.Cmd {
	if h := run.Feed.Health; h != "" && h != m.run.Feed.Health {
		m.debugLog.Addf(debug.KindHealth, "%s feed %s", run.Feed.Name, h)
	}
	m.run = run
	m.statusBar.SetRun(run)
	m.trace.SetRun(run)
	needsFrames := m.summary.SetSummary(session.Summarize(run))
	if needsFrames && !m.animating {
		m.animating = true
		return animFrame()
	}
	return nil
}

func (m *Model) layout() {
	m.statusBar.Width = m.width - 2
	m.summary.Width = m.width - 2
	m.trace.Width = m.width
	used := 3 + 4 + 1
	if m.opts.GoalM > 0 {
		used++
	}
	m.trace.Height = max(m.height-used, 5)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if !m.connected {
		return m.renderDisconnected()
	}

	switch m.overlay {
	case OverlayDebug:
		return m.debugLog.View(m.width, m.height)
	case OverlayReport:
		r := report.Model{Run: m.run, Records: m.records, Achievements: m.achievements}
		return r.View(m.width, m.height)
	case OverlayAchievements:
		return m.achPanel.ViewOverlay(m.records, m.width, m.height)
	case OverlayHistory:
		return m.history.View(m.width, m.height)
	}

	footer := theme.StyleDimmed.Render(m.keys.helpLine())
	if m.notice != "" {
		footer = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("  " + m.notice)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		m.summary.View(),
		m.trace.View(),
		footer,
	)
}

func (m Model) renderDisconnected() string {
	retry := "Reconnecting..."
	if m.retryDelay > 0 {
		retry = fmt.Sprintf("Reconnecting (retry every %v)...", m.retryDelay)
	}
	panel := lipgloss.NewStyle().
		Padding(1, 4).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorDanger).
		Render(lipgloss.JoinVertical(lipgloss.Center,
			theme.StyleError.Bold(true).Render("DISCONNECTED"),
			"",
			theme.StyleDimmed.Render(retry),
			theme.StyleDimmed.Render("q:quit"),
		))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

// --- commands ---

func animFrame() tea.Cmd {
	return tea.Tick(time.Second/summary.FPS, func(time.Time) tea.Msg { return animFrameMsg{} })
}

func (m Model) listen(delay time.Duration) tea.Cmd {
	if m.ws == nil {
		return nil
	}
	return m.ws.Listen(m.ctx, delay)
}

func (m Model) readLoop() tea.Cmd {
	if m.ws == nil {
		return nil
	}
	return m.ws.ReadLoop(m.ctx)
}

func (m Model) control(action string) tea.Cmd {
	if m.http == nil {
		return nil
	}
	h := m.http
	return func() tea.Msg {
		resp, err := h.Control(action)
		return controlResultMsg{Action: action, Resp: resp, Err: err}
	}
}

func (m Model) fetchRun() tea.Cmd {
	if m.http == nil {
		return nil
	}
	h := m.http
	return func() tea.Msg {
		run, err := h.Run()
		return runFetchedMsg{Run: run, Err: err}
	}
}

func (m Model) fetchRecords() tea.Cmd {
	if m.http == nil {
		return nil
	}
	h := m.http
	return func() tea.Msg {
		rec, err := h.Records()
		return recordsMsg{Records: rec, Err: err}
	}
}

func (m Model) export(format string) tea.Cmd {
	if m.http == nil {
		return nil
	}
	h, dir := m.http, m.opts.ExportDir
	return func() tea.Msg {
		path, err := h.Export(format, dir)
		return exportDoneMsg{Path: path, Err: err}
	}
}
