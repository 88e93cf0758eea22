package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/tetherview/tetherview/internal/client"
	"github.com/tetherview/tetherview/internal/device"
	"github.com/tetherview/tetherview/internal/gallery"
	"github.com/tetherview/tetherview/internal/hub"
	"github.com/tetherview/tetherview/internal/logging"
	"github.com/tetherview/tetherview/internal/preview"
	"github.com/tetherview/tetherview/internal/probe"
	"github.com/tetherview/tetherview/internal/relay"
	"github.com/tetherview/tetherview/internal/theme"
	"github.com/tetherview/tetherview/internal/views/debug"
	galleryview "github.com/tetherview/tetherview/internal/views/gallery"
	"github.com/tetherview/tetherview/internal/views/help"
	previewview "github.com/tetherview/tetherview/internal/views/preview"
	"github.com/tetherview/tetherview/internal/views/settings"
	"github.com/tetherview/tetherview/internal/views/status"
)

const (
	tickInterval = time.Second
	flashFor     = 4 * time.Second
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlaySettings
	OverlayHelp
	OverlayQR
)

// SettingsSource reads camera settings for the settings overlay.
type SettingsSource interface {
	Settings(ctx context.Context) (*client.Settings, error)
	AvailableSettings(ctx context.Context) (map[string][]string, error)
}

// Deps are the collaborators the UI drives. Relay and Probe are optional.
type Deps struct {
	Controller  *device.Controller
	Mirror      *device.Mirror
	Loop        *preview.Loop
	Gallery     *gallery.Gallery
	Settings    SettingsSource
	Relay       *relay.Relay
	RelayURL    string
	Probe       *probe.Prober
	DownloadDir string
	Logger      *log.Logger
}

type tickMsg time.Time

type commandMsg struct {
	name string
	ok   bool
}

type galleryMsg struct {
	files []client.FileInfo
	err   error
}

type actionMsg struct {
	text string
	err  error
}

type settingsMsg struct {
	current   *client.Settings
	available map[string][]string
	err       error
}

// Model is the root Bubble Tea model.
type Model struct {
	deps   Deps
	bridge *Bridge
	feed   *FrameFeed
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time

	keys   KeyMap
	width  int
	height int

	overlay    Overlay
	busy       string
	flash      string
	flashErr   bool
	flashUntil time.Time
	qr         string

	spinner      spinner.Model
	statusBar    status.Model
	previewPanel previewview.Model
	galleryList  galleryview.Model
	debugLog     debug.Model
	settingsView settings.Model
	helpView     *help.Model
}

// New creates the root model and wires it to the hub. The returned model
// owns a context that is cancelled on quit.
func New(h *hub.Hub, deps Deps) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	bridge := NewBridge(ctx, 64)
	feed := NewFrameFeed(ctx)

	deps.Loop.Bind(bindDisplay(feed, deps.Relay))
	Wire(h, deps.Loop, deps.Gallery, bridge)

	keys := DefaultKeyMap()
	hv := help.New(keys.Bindings())

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorConnecting)

	gl := galleryview.New()
	gl.IsNew = deps.Gallery.IsNew

	sb := status.New()
	sb.Relay = deps.Relay != nil
	sb.Probing = deps.Probe != nil

	return Model{
		deps:         deps,
		bridge:       bridge,
		feed:         feed,
		ctx:          ctx,
		cancel:       cancel,
		now:          time.Now,
		keys:         keys,
		spinner:      sp,
		statusBar:    sb,
		previewPanel: previewview.New(),
		galleryList:  gl,
		debugLog:     debug.New(),
		settingsView: settings.New(),
		helpView:     &hv,
	}
}

func bindDisplay(feed *FrameFeed, r *relay.Relay) preview.Display {
	if r == nil {
		return feed
	}
	return preview.MultiDisplay{feed, r}
}

// Init starts the event and frame readers, the refresh tick and an initial
// capture listing.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.bridge.Wait(),
		m.feed.Wait(),
		m.spinner.Tick,
		tick(),
		m.refreshGallery(),
	)
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, m.bridge.Wait())

	case GalleryChangedMsg:
		return m, tea.Batch(m.refreshGallery(), m.bridge.Wait())

	case FrameMsg:
		m.previewPanel.Observe(msg.Info, msg.Art)
		return m, m.feed.Wait()

	case ClearedMsg:
		m.previewPanel.Clear()
		return m, m.feed.Wait()

	case tickMsg:
		m.sample()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.statusBar.Spinner = m.spinner.View()
		return m, cmd

	case commandMsg:
		m.busy = ""
		m.statusBar.Busy = ""
		m.debugLog.Add(debug.KindCommand, fmt.Sprintf("%s ok=%t", msg.name, msg.ok))
		m.sample()
		return m, nil

	case galleryMsg:
		if msg.err != nil {
			m.debugLog.Add(debug.KindError, msg.err.Error())
			return m, nil
		}
		m.galleryList.SetFiles(msg.files)
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.setFlash(msg.err.Error(), true)
			m.debugLog.Add(debug.KindError, msg.err.Error())
		} else if msg.text != "" {
			m.setFlash(msg.text, false)
			m.debugLog.Add(debug.KindCommand, msg.text)
		}
		return m, nil

	case settingsMsg:
		m.settingsView.Loading = false
		if msg.err != nil {
			m.settingsView.Err = client.ErrorDetail(msg.err)
			if m.settingsView.Err == "" {
				m.settingsView.Err = msg.err.Error()
			}
			return m, nil
		}
		m.settingsView.Err = ""
		m.settingsView.Current = msg.current
		m.settingsView.Available = msg.available
		return m, nil
	}

	return m, nil
}

func (m *Model) resize(w, h int) {
	m.width = w
	m.height = h
	m.statusBar.Width = w

	body := h - 6
	if body < 6 {
		body = 6
	}
	previewW := w * 3 / 5
	m.previewPanel.Width = previewW
	m.previewPanel.Height = body
	m.galleryList.Width = w - previewW - 2
	m.galleryList.Height = body
	m.feed.SetSize(max(previewW-2, 8), max(body-2, 4))
}

// sample copies live component state into the status bar.
func (m *Model) sample() {
	m.statusBar.Device = m.deps.Mirror.Read()
	m.statusBar.Stream = m.deps.Loop.Stats()
	if m.deps.Probe != nil {
		m.statusBar.Probe = m.deps.Probe.Last()
	}
	if m.deps.Relay != nil {
		m.statusBar.Viewers = m.deps.Relay.Viewers()
	}
	if !m.flashUntil.IsZero() && m.now().After(m.flashUntil) {
		m.flash = ""
		m.flashUntil = time.Time{}
	}
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
	m.flashUntil = m.now().Add(flashFor)
}

func (m *Model) handleEvent(ev hub.Event) tea.Cmd {
	switch ev.Name {
	case hub.Error:
		m.debugLog.Add(debug.KindError, ev.Text())
		m.setFlash(ev.Text(), true)
		return nil

	case hub.Degraded, hub.Recovered:
		m.debugLog.Add(debug.KindHealth, eventLine(ev))
		m.sample()
		return nil

	case hub.Status:
		if st, ok := ev.Payload.(client.DeviceState); ok {
			m.statusBar.Device = st
		}
		m.debugLog.Add(debug.KindEvent, eventLine(ev))
		return nil

	case hub.Disconnected:
		m.debugLog.Add(debug.KindEvent, eventLine(ev))
		m.galleryList.SetFiles(nil)
		m.sample()
		return nil

	case hub.Connected, hub.Captured:
		m.debugLog.Add(debug.KindEvent, eventLine(ev))
		m.sample()
		return m.refreshGallery()
	}

	m.debugLog.Add(debug.KindEvent, eventLine(ev))
	return nil
}

func eventLine(ev hub.Event) string {
	if t := ev.Text(); t != "" {
		return ev.Name + ": " + t
	}
	return ev.Name
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.debugLog.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.debugLog.ScrollDown(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Errors):
			m.debugLog.ToggleErrors()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Connect):
		return m.toggleConnection()

	case key.Matches(msg, m.keys.Capture):
		c := m.deps.Controller
		return m, m.command("capture", func(ctx context.Context) bool {
			return c.Capture(ctx, "")
		})

	case key.Matches(msg, m.keys.Snapshot):
		return m, m.snapshot()

	case key.Matches(msg, m.keys.Focus):
		loop := m.deps.Loop
		return m, m.command("autofocus", loop.AutoFocus)

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshGallery()

	case key.Matches(msg, m.keys.Up):
		m.galleryList.Up()
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.galleryList.Down()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		f, ok := m.galleryList.Current()
		if !ok {
			return m, nil
		}
		return m, m.deleteCapture(f.Filename)

	case key.Matches(msg, m.keys.Clear):
		return m, m.clearCaptures()

	case key.Matches(msg, m.keys.Download):
		f, ok := m.galleryList.Current()
		if !ok {
			return m, nil
		}
		return m, m.download(f.Filename)

	case key.Matches(msg, m.keys.Archive):
		return m, m.downloadAll()

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Settings):
		m.overlay = OverlaySettings
		m.settingsView.Loading = true
		return m, m.loadSettings()

	case key.Matches(msg, m.keys.QR):
		if m.deps.RelayURL == "" {
			m.setFlash("relay disabled (start with -relay)", true)
			return m, nil
		}
		qr, err := relay.QR(m.deps.RelayURL)
		if err != nil {
			m.setFlash(err.Error(), true)
			return m, nil
		}
		m.qr = qr
		m.overlay = OverlayQR
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil
	}

	return m, nil
}

func (m Model) toggleConnection() (tea.Model, tea.Cmd) {
	if m.busy != "" {
		return m, nil
	}
	c := m.deps.Controller
	if m.deps.Mirror.Read().Connected {
		m.busy = "disconnecting"
		m.statusBar.Busy = m.busy
		return m, m.command("disconnect", c.Disconnect)
	}
	m.busy = "connecting"
	m.statusBar.Busy = m.busy
	return m, m.command("connect", c.Connect)
}

// command runs a session command off the update loop. Its outcome reaches
// the UI through hub events; the result only clears the busy marker.
func (m Model) command(name string, fn func(context.Context) bool) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return commandMsg{name: name, ok: fn(ctx)}
	}
}

func (m Model) snapshot() tea.Cmd {
	ctx, loop := m.ctx, m.deps.Loop
	return func() tea.Msg {
		url, ok := loop.Snapshot(ctx)
		if !ok {
			return actionMsg{text: "snapshot failed (see log)"}
		}
		return actionMsg{text: "snapshot " + url}
	}
}

func (m Model) refreshGallery() tea.Cmd {
	ctx, g := m.ctx, m.deps.Gallery
	return func() tea.Msg {
		err := g.Refresh(ctx)
		return galleryMsg{files: g.Files(), err: err}
	}
}

func (m Model) deleteCapture(name string) tea.Cmd {
	ctx, g := m.ctx, m.deps.Gallery
	return func() tea.Msg {
		if err := g.Delete(ctx, name); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: "deleted " + name}
	}
}

func (m Model) clearCaptures() tea.Cmd {
	ctx, g := m.ctx, m.deps.Gallery
	return func() tea.Msg {
		n, err := g.Clear(ctx)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("deleted %d captures", n)}
	}
}

func (m Model) download(name string) tea.Cmd {
	ctx, g, dir := m.ctx, m.deps.Gallery, m.deps.DownloadDir
	return func() tea.Msg {
		path, err := g.Download(ctx, name, dir)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: "saved " + path}
	}
}

func (m Model) downloadAll() tea.Cmd {
	ctx, g, dir := m.ctx, m.deps.Gallery, m.deps.DownloadDir
	return func() tea.Msg {
		path, err := g.DownloadAll(ctx, dir)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: "saved " + path}
	}
}

func (m Model) loadSettings() tea.Cmd {
	ctx, src := m.ctx, m.deps.Settings
	return func() tea.Msg {
		if src == nil {
			return settingsMsg{err: fmt.Errorf("settings unavailable")}
		}
		cur, err := src.Settings(ctx)
		if err != nil {
			return settingsMsg{err: err}
		}
		avail, err := src.AvailableSettings(ctx)
		if err != nil {
			m.deps.Logger.Warn("available settings", "err", err)
		}
		return settingsMsg{current: cur, available: avail}
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{m.statusBar.View(), m.flashLine()}

	switch m.overlay {
	case OverlayDebug:
		sections = append(sections, m.debugLog.View(m.width, m.height-4))
	case OverlaySettings:
		sections = append(sections, m.settingsView.View(m.width))
	case OverlayHelp:
		sections = append(sections, m.helpView.View(m.width))
	case OverlayQR:
		sections = append(sections, m.qrView())
	default:
		left := lipgloss.NewStyle().Width(m.previewPanel.Width).Render(m.previewPanel.View(m.now()))
		right := m.galleryList.View()
		sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right))
	}

	sections = append(sections,
		theme.StyleDimmed.Render("  c:connect  space:capture  s:snapshot  f:focus  j/k:select  x:delete  o/O:download  d:log  t:settings  ?:help  q:quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) flashLine() string {
	if m.flash == "" {
		return ""
	}
	if m.flashErr {
		return theme.StyleError.Render("  " + m.flash)
	}
	return lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("  " + m.flash)
}

func (m Model) qrView() string {
	title := theme.StyleHeader.Render(" PREVIEW RELAY ")
	body := lipgloss.JoinVertical(lipgloss.Left,
		title, "", m.qr, m.deps.RelayURL, "",
		theme.StyleDimmed.Render(fmt.Sprintf("%d viewers  esc:close", m.statusBar.Viewers)))
	return theme.Panel(max(m.width-4, 30)).Render(body)
}

// Close cancels background commands. Safe to call more than once.
func (m Model) Close() {
	m.cancel()
}
