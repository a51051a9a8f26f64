// Package tui provides a Bubble Tea terminal user interface for media-downloader.
package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/handiism/media-downloader/internal/config"
	"github.com/handiism/media-downloader/internal/download"
	"github.com/handiism/media-downloader/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// maxLogs is how many log lines stay on screen.
const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateResolving
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logs      []LogEntry
	items     map[string]model.Progress
	report    *download.Report
	err       error

	// Download context
	ctx    context.Context
	cancel context.CancelFunc

	manager *download.Manager
	events  chan download.ProgressEvent

	// Download progress
	totalFiles      int32
	downloadedFiles int32
	totalBytes      int64
	receivedBytes   int64

	// Options
	playlist bool
	strict   bool
	verbose  bool

	// newManager builds the manager for a run. Tests replace it.
	newManager func(*config.Settings, func(download.ProgressEvent)) (*download.Manager, error)

	width  int
	height int
}

// NewModel creates a new TUI model around settings.
func NewModel(settings *config.Settings) Model {
	ti := textinput.New()
	ti.Placeholder = "https://example.com/watch/abc123"
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		logs:      make([]LogEntry, 0),
		items:     make(map[string]model.Progress),
		ctx:       ctx,
		cancel:    cancel,
		playlist:  settings.Output.ArchivePlaylist != "",
		strict:    settings.Output.StrictPlaylist,
	}
	m.newManager = func(s *config.Settings, onProgress func(download.ProgressEvent)) (*download.Manager, error) {
		return download.NewManager(s, onProgress)
	}
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg carries one manager event.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// DownloadDoneMsg is sent when the run finishes.
	DownloadDoneMsg struct {
		Report *download.Report
		Err    error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateResolving {
				m.cancel()
			}

		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				return m.start()
			}

		case "ctrl+l":
			if m.state == StateInput {
				m.playlist = !m.playlist
			}

		case "ctrl+s":
			if m.state == StateInput {
				m.strict = !m.strict
			}

		case "ctrl+o":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m = m.reset()
				return m, textinput.Blink
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		cmds = append(cmds, m.waitForEvent())
		if u := msg.Event.Update; u != nil {
			m.items[u.ItemID] = *u
			if m.state == StateResolving {
				m.state = StateDownloading
			}
			break
		}
		// Filter verbose messages if not in verbose mode
		if msg.Event.Level == download.LevelVerbose && !m.verbose {
			break
		}
		m.logs = append(m.logs, LogEntry{
			Message: msg.Event.Message,
			Level:   msg.Event.Level,
		})
		if len(m.logs) > maxLogs {
			m.logs = m.logs[len(m.logs)-maxLogs:]
		}

	case DownloadDoneMsg:
		m.report = msg.Report
		if m.manager != nil {
			m.receivedBytes, m.totalBytes, m.downloadedFiles, m.totalFiles = m.manager.GetProgress()
			_ = m.manager.Cleanup()
		}
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = errors.New("cancelled by user")
		case msg.Err != nil && (msg.Report == nil || msg.Report.Output == nil):
			m.state = StateError
			m.err = msg.Err
		default:
			// Strict mode still delivers the partial output
			m.err = msg.Err
			m.state = StateComplete
		}

	case TickMsg:
		if m.manager != nil && (m.state == StateDownloading || m.state == StateResolving) {
			m.receivedBytes, m.totalBytes, m.downloadedFiles, m.totalFiles = m.manager.GetProgress()
			cmds = append(cmds, m.progress.SetPercent(m.percent()), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// start creates the manager and launches the run.
func (m Model) start() (tea.Model, tea.Cmd) {
	settings := *m.settings
	settings.Output.StrictPlaylist = m.strict
	settings.Output.ArchivePlaylist = ""
	if m.playlist {
		settings.Output.ArchivePlaylist = "m3u"
	}

	events := make(chan download.ProgressEvent, 64)
	ctx := m.ctx
	manager, err := m.newManager(&settings, func(event download.ProgressEvent) {
		select {
		case events <- event:
		case <-ctx.Done():
		}
	})
	if err != nil {
		m.state = StateError
		m.err = err
		return m, nil
	}

	m.manager = manager
	m.events = events
	m.state = StateResolving
	return m, tea.Batch(m.runDownload(m.textInput.Value()), m.waitForEvent(), m.spinner.Tick, m.tickProgress())
}

func (m Model) reset() Model {
	m.state = StateInput
	m.logs = nil
	m.items = make(map[string]model.Progress)
	m.report = nil
	m.err = nil
	m.downloadedFiles = 0
	m.totalFiles = 0
	m.receivedBytes = 0
	m.totalBytes = 0
	m.manager = nil
	m.events = nil
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.textInput.SetValue("")
	m.textInput.Focus()
	return m
}

// percent is bytes-based when every size is known, file-based otherwise.
func (m Model) percent() float64 {
	if m.totalBytes > 0 && m.receivedBytes <= m.totalBytes {
		return float64(m.receivedBytes) / float64(m.totalBytes)
	}
	if m.totalFiles > 0 {
		return float64(m.downloadedFiles) / float64(m.totalFiles)
	}
	return 0
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// waitForEvent delivers the next manager event.
func (m Model) waitForEvent() tea.Cmd {
	events, ctx := m.events, m.ctx
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case event := <-events:
			return ProgressMsg{Event: event}
		case <-ctx.Done():
			return nil
		}
	}
}

// runDownload runs the pipeline in the background.
func (m Model) runDownload(url string) tea.Cmd {
	manager, ctx := m.manager, m.ctx
	return func() tea.Msg {
		report, err := manager.Run(ctx, download.Request{URL: url})
		return DownloadDoneMsg{Report: report, Err: err}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("🎬 Media Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download videos and playlists"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateResolving:
		b.WriteString(m.viewResolving())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func checkbox(on bool) string {
	if on {
		return "[×]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter video or playlist URL:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Add playlist listing to archives (ctrl+l)\n", checkbox(m.playlist)))
	b.WriteString(fmt.Sprintf("  %s Fail when any playlist item fails (ctrl+s)\n", checkbox(m.strict)))
	b.WriteString(fmt.Sprintf("  %s Verbose/debug output (ctrl+o)\n", checkbox(m.verbose)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.settings.Output.Dir)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewResolving() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Resolving..."))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	b.WriteString(m.renderItems())
	b.WriteString("\n")

	b.WriteString(m.progress.ViewAs(m.percent()))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Files: %d/%d | Active: %d | Downloaded: %s",
		m.downloadedFiles,
		m.totalFiles,
		m.activeItems(),
		humanize.IBytes(uint64(m.receivedBytes)),
	)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) activeItems() int {
	n := 0
	for _, p := range m.items {
		if p.State.IsActive() {
			n++
		}
	}
	return n
}

// renderItems lists per-item progress in title order.
func (m Model) renderItems() string {
	rows := make([]model.Progress, 0, len(m.items))
	for _, p := range m.items {
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Title < rows[j].Title })

	var b strings.Builder
	for _, p := range rows {
		status := fmt.Sprintf("%3d%%", p.Percent)
		switch {
		case p.State == model.StateFailed:
			status = errorStyle.Render("failed")
		case p.State == model.StateVerified && p.Phase == model.PhaseDone:
			status = successStyle.Render("done")
		case p.State == model.StateMerging:
			status = "merging"
		case p.Indeterminate:
			status = humanize.IBytes(uint64(p.Bytes))
		}
		b.WriteString(itemStyle.Render(fmt.Sprintf("  ♪ %s", p.Title)))
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(status))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	name, size := "", int64(0)
	if m.report != nil && m.report.Output != nil {
		name, size = m.report.Output.Path, m.report.Output.Size
	}
	failed := 0
	if m.report != nil {
		failed = len(m.report.Result.Failures)
	}

	box := boxStyle.Render(fmt.Sprintf(
		"✨ Download Complete!\n\n"+
			"Output: %s\n"+
			"Files: %d\n"+
			"Failed: %d\n"+
			"Size: %s",
		filepath.Base(name),
		m.downloadedFiles,
		failed,
		humanize.IBytes(uint64(size)),
	))
	b.WriteString(box)
	b.WriteString("\n")

	if m.report != nil {
		for _, f := range m.report.Result.Failures {
			b.WriteString(warningStyle.Render("! " + f.Error()))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • ctrl+l: playlist • ctrl+s: strict • ctrl+o: verbose • esc: quit"
	case StateResolving, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new download • q: quit"
	}
	return ""
}

// Run starts the TUI application.
func Run(settings *config.Settings) error {
	p := tea.NewProgram(NewModel(settings), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
