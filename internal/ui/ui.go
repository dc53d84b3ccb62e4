package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playexport/internal/models"
	"github.com/desertthunder/playexport/internal/services"
	"github.com/desertthunder/playexport/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	ConfirmView
	ExportView
	ResultView
)

// maxUnresolvedShown caps the unresolved list in the result view.
const maxUnresolvedShown = 10

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	view   ViewState
	source services.PlaylistSource
	engine *tasks.Engine
	opts   tasks.ExportOpts

	width        int
	height       int
	loading      bool
	playlistList list.Model
	trackList    list.Model
	selected     *models.PlaylistExport

	progressChan chan tasks.ProgressUpdate
	done         chan exportComplete
	update       tasks.ProgressUpdate
	state        models.ProgressState
	bar          progress.Model
	spinner      spinner.Model

	result *tasks.ExportResult
	err    error
	help   help.Model
	keys   keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, source services.PlaylistSource, engine *tasks.Engine, opts tasks.ExportOpts) *Model {
	ctx, cancel := context.WithCancel(ctx)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:          ctx,
		cancel:       cancel,
		view:         PlaylistListView,
		source:       source,
		engine:       engine,
		opts:         opts,
		loading:      true,
		playlistList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		trackList:    list.New(nil, list.NewDefaultDelegate(), 0, 0),
		bar:          progress.New(progress.WithGradient(spotifyGreen, youtubeRed)),
		spinner:      sp,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

// Init initializes the TUI by fetching playlists from Spotify.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchPlaylists())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		m.bar.Width = min(max(msg.Width-8, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ExportView:
			return m.handleExportKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsFetched)
		m.loading = false
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.playlistList = list.New(playlistItems(data.playlists), list.NewDefaultDelegate(), 0, 0)
		m.playlistList.Title = "Spotify Playlists"
		m.playlistList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgTracksFetched:
		data := msg.data.(tracksFetched)
		m.loading = false
		if data.err != nil {
			m.err = data.err
			m.view = PlaylistListView
			return m, nil
		}
		m.selected = data.playlist
		m.trackList = list.New(trackItems(data.playlist), list.NewDefaultDelegate(), 0, 0)
		m.trackList.Title = fmt.Sprintf("Tracks in '%s'", data.playlist.Playlist.Name)
		m.trackList.SetSize(m.width-4, m.height-8)
		m.view = TrackListView
		return m, nil

	case MsgProgressUpdate:
		m.update = msg.data.(tasks.ProgressUpdate)
		if state, ok := m.update.Data.(models.ProgressState); ok && !state.Idle() {
			m.state = state
		}
		return m, m.waitForProgress()

	case MsgTrackerTick:
		if m.view != ExportView {
			return m, nil
		}
		if state := msg.data.(models.ProgressState); !state.Idle() {
			m.state = state
		}
		return m, m.pollTracker()

	case MsgExportComplete:
		data := msg.data.(exportComplete)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		m.done = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.quit})
	}
	if m.loading {
		return fmt.Sprintf("%s Loading from Spotify...", m.spinner.View())
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case ExportView:
		return m.renderExport()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.playlistList, cmd = m.playlistList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.fetchTracks(pl.playlist.ID))
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.export):
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = ExportView
		return m, m.startExport()
	case key.Matches(msg, m.keys.report):
		m.opts.Report = !m.opts.Report
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = TrackListView
	}
	return m, nil
}

// handleExportKeys only allows canceling; the run ends through MsgExportComplete.
func (m *Model) handleExportKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) {
		m.cancel()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		if m.ctx.Err() != nil {
			return m, tea.Quit
		}
		m.view = PlaylistListView
		m.selected = nil
		m.result = nil
		m.err = nil
		m.state = models.ProgressState{}
		m.update = tasks.ProgressUpdate{}
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.source.GetPlaylists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchTracks(playlistID string) tea.Cmd {
	return func() tea.Msg {
		playlist, err := m.source.ExportPlaylist(m.ctx, playlistID)
		return tracksFetchedMsg(playlist, err)
	}
}

func (m *Model) startExport() tea.Cmd {
	progressChan := make(chan tasks.ProgressUpdate, 64)
	done := make(chan exportComplete, 1)
	m.progressChan = progressChan
	m.done = done

	export := m.selected
	go func() {
		result, err := m.engine.ExportFetched(m.ctx, progressChan, export, m.opts)
		done <- exportComplete{result: result, err: err}
	}()

	return tea.Batch(m.waitForProgress(), m.pollTracker())
}

// waitForProgress blocks for the next update, or the outcome once the export returns.
func (m *Model) waitForProgress() tea.Cmd {
	progressChan, done := m.progressChan, m.done
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case update := <-progressChan:
			return progressUpdateMsg(update)
		case outcome := <-done:
			return exportCompleteMsg(outcome.result, outcome.err)
		}
	}
}

func (m *Model) pollTracker() tea.Cmd {
	tracker := m.engine.Tracker()
	return tea.Tick(trackerInterval, func(time.Time) tea.Msg {
		return trackerTickMsg(tracker.Snapshot())
	})
}

func (m *Model) renderPlaylistList() string {
	helpView := m.help.ShortHelpView(m.keys.bindings(PlaylistListView))
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderTrackList() string {
	helpView := m.help.ShortHelpView(m.keys.bindings(TrackListView))
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	pl := m.selected.Playlist
	present := len(m.selected.Tracks())

	title := styles.title.Render(fmt.Sprintf("Export '%s' to CSV?", pl.Name))
	info := fmt.Sprintf("Playlist: %s\nTracks: %d (%d unavailable)\n", pl.Name, present, len(m.selected.Items)-present)
	if m.opts.OutputDir != "" {
		info += fmt.Sprintf("Output: %s\n", m.opts.OutputDir)
	}
	if m.opts.Report {
		info += "Report: markdown list of unresolved tracks\n"
	}
	helpView := m.help.ShortHelpView(m.keys.bindings(ConfirmView))
	return fmt.Sprintf("%s\n%s\n%s", title, styles.box.Render(strings.TrimSuffix(info, "\n")), helpView)
}

func (m *Model) renderExport() string {
	title := styles.title.Render(fmt.Sprintf("Exporting %s", m.selected.Playlist.Name))

	var phase string
	switch m.update.Phase {
	case tasks.FetchSource:
		phase = "Fetching playlist..."
	case tasks.ResolveTracks:
		phase = fmt.Sprintf("Resolving tracks (%d/%d)", m.state.Current, m.state.Total)
	case tasks.WriteExport:
		phase = "Writing CSV..."
	default:
		phase = "Starting..."
	}

	bar := m.bar.ViewAs(m.state.Percent())
	helpView := m.help.ShortHelpView(m.keys.bindings(ExportView))
	return fmt.Sprintf("%s\n%s %s\n\n%s\n%s\n\n%s", title, m.spinner.View(), phase, bar, styles.help.Render(m.update.Message), helpView)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView(m.keys.bindings(ResultView))

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Export failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	run := m.result.Run
	title := styles.ok.Render("✓ Export Complete!")
	present := run.Total - run.Skipped
	matched := styles.matchStyle(run.Matched, present).Render(fmt.Sprintf("%d/%d", run.Matched, present))
	info := fmt.Sprintf(
		"Playlist: %s\nMatched: %s\nUnresolved: %d\nSkipped: %d\nFile: %s",
		run.PlaylistName, matched, run.Unresolved, run.Skipped, run.FilePath,
	)
	if m.result.ReportPath != "" {
		info += "\nReport: " + m.result.ReportPath
	}

	var failed string
	if unresolved := m.result.Unresolved(); len(unresolved) > 0 {
		var b strings.Builder
		b.WriteString(styles.warn.Render(fmt.Sprintf("Could not find %d tracks:", len(unresolved))))
		for i, r := range unresolved {
			if i == maxUnresolvedShown {
				fmt.Fprintf(&b, "\n  … and %d more", len(unresolved)-maxUnresolvedShown)
				break
			}
			fmt.Fprintf(&b, "\n  • %s - %s", r.Track.PrimaryArtist(), r.Track.Title)
		}
		failed = "\n\n" + b.String()
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, styles.box.Render(info), failed, helpView)
}
