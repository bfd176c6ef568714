package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/services"
	"github.com/desertthunder/playsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	VideoListView ViewState = iota
	CandidateListView
	ConfirmView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	view   ViewState
	store  services.MediaStore
	engine *tasks.Engine

	width  int
	height int

	videoList     list.Model
	videos        []models.MediaItem
	candidateList list.Model
	selectedVideo *models.MediaItem
	selectedSong  *tasks.Candidate
	outcome       string
	searching     bool
	err           error

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, store services.MediaStore, engine *tasks.Engine) *Model {
	return &Model{
		ctx:    ctx,
		view:   VideoListView,
		store:  store,
		engine: engine,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init initializes the TUI by fetching unresolved videos from the cache.
func (m *Model) Init() tea.Cmd {
	return m.fetchVideos()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.videoList.Width() == 0 {
			m.videoList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.candidateList.Width() == 0 {
			m.candidateList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case VideoListView:
			return m.handleVideoListKeys(msg)
		case CandidateListView:
			return m.handleCandidateListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case videosFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.videos = msg.videos
		items := make([]list.Item, len(msg.videos))
		for i, video := range msg.videos {
			items[i] = videoItem{video: video}
		}
		m.videoList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.videoList.Title = "Unresolved Videos"
		m.videoList.SetSize(m.width-4, m.height-8)
		m.view = VideoListView
		return m, nil

	case candidatesFetchedMsg:
		m.searching = false
		if msg.err != nil {
			m.err = msg.err
			m.view = VideoListView
			return m, nil
		}
		if len(msg.candidates) == 0 {
			m.outcome = fmt.Sprintf("No song candidates found for %q", m.selectedVideo.Title)
			m.view = ResultView
			return m, nil
		}
		items := make([]list.Item, len(msg.candidates))
		for i, c := range msg.candidates {
			items[i] = candidateItem{candidate: c}
		}
		m.candidateList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.candidateList.Title = fmt.Sprintf("Replacements for '%s'", m.selectedVideo.Title)
		m.candidateList.SetSize(m.width-4, m.height-8)
		m.view = CandidateListView
		return m, nil

	case resolvedMsg:
		m.err = msg.err
		m.outcome = msg.outcome
		m.view = ResultView
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case VideoListView:
		return m.renderVideoList()
	case CandidateListView:
		return m.renderCandidateList()
	case ConfirmView:
		return m.renderConfirm()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleVideoListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		return m, m.fetchVideos()
	case "i":
		if selected, ok := m.videoList.SelectedItem().(videoItem); ok {
			return m, m.ignoreVideo(selected.video)
		}
	case "enter":
		if selected, ok := m.videoList.SelectedItem().(videoItem); ok {
			video := selected.video
			m.selectedVideo = &video
			m.searching = true
			return m, m.fetchCandidates(video)
		}
	}

	var cmd tea.Cmd
	m.videoList, cmd = m.videoList.Update(msg)
	return m, cmd
}

func (m *Model) handleCandidateListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = VideoListView
		return m, nil
	case "enter":
		if selected, ok := m.candidateList.SelectedItem().(candidateItem); ok {
			candidate := selected.candidate
			m.selectedSong = &candidate
			m.view = ConfirmView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.candidateList, cmd = m.candidateList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = CandidateListView
		return m, nil
	case "y":
		return m, m.confirmSubstitution()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.selectedVideo = nil
		m.selectedSong = nil
		m.outcome = ""
		m.err = nil
		return m, m.fetchVideos()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case VideoListView:
		m.videoList, cmd = m.videoList.Update(msg)
	case CandidateListView:
		m.candidateList, cmd = m.candidateList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchVideos() tea.Cmd {
	return func() tea.Msg {
		videos, err := m.store.ListMedia(m.ctx, services.MediaFilter{
			Category:   models.CategoryVideo,
			Unresolved: true,
		})
		return videosFetchedMsg{videos: videos, err: err}
	}
}

func (m *Model) fetchCandidates(video models.MediaItem) tea.Cmd {
	return func() tea.Msg {
		candidates, err := m.engine.SearchCandidates(m.ctx, video)
		return candidatesFetchedMsg{candidates: candidates, err: err}
	}
}

func (m *Model) confirmSubstitution() tea.Cmd {
	video, song := m.selectedVideo, m.selectedSong
	return func() tea.Msg {
		err := m.engine.ConfirmSubstitution(m.ctx, video.SourceID, song.Item.SourceID, services.MessageRef{})
		outcome := fmt.Sprintf("Resolved %q to %q", video.Title, song.Item.Title)
		return resolvedMsg{outcome: outcome, err: err}
	}
}

func (m *Model) ignoreVideo(video models.MediaItem) tea.Cmd {
	return func() tea.Msg {
		err := m.engine.IgnoreMedia(m.ctx, video.SourceID)
		outcome := fmt.Sprintf("Ignoring %q from now on", video.Title)
		return resolvedMsg{outcome: outcome, err: err}
	}
}

func (m *Model) renderVideoList() string {
	if len(m.videos) == 0 {
		return styles.ok.Render("No unresolved videos.") + "\n\n" +
			m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})
	}
	helpKeys := []key.Binding{m.keys.enter, m.keys.ignore, m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.videoList.View(), helpView)
}

func (m *Model) renderCandidateList() string {
	if m.searching {
		return styles.title.Render("Searching for candidates...")
	}
	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.candidateList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Replace '%s' with '%s'?", m.selectedVideo.Title, m.selectedSong.Item.Title))
	info := fmt.Sprintf("\nVideo: %s - %s\nSong:  %s - %s\n",
		m.selectedVideo.Artist, m.selectedVideo.Title,
		m.selectedSong.Item.Artist, m.selectedSong.Item.Title)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Failed: %v\n\nPress r to go back, q to quit", m.err))
	}

	title := styles.ok.Render("✓ " + m.outcome)
	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n\n%s", title, helpView)
}
