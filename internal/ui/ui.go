package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/multiverse/internal/formatter"
	"github.com/desertthunder/multiverse/internal/models"
	"github.com/desertthunder/multiverse/internal/services"
	"github.com/desertthunder/multiverse/internal/shared"
	"github.com/desertthunder/multiverse/internal/tasks"
)

const (
	columns          = 3
	defaultCardWidth = 28
	defaultRefresh   = 250 * time.Millisecond
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	GridView ViewState = iota
	AlbumView
)

// Backend is the part of the API client the TUI calls directly.
type Backend interface {
	FetchCredits(ctx context.Context, userID string) (int, error)
	GetAlbum(ctx context.Context, userID string) ([]models.AlbumTheme, error)
	TrackAction(userID, action string, metadata map[string]string)
}

// Options wires the TUI to a running grid.
type Options struct {
	Engine    *tasks.GenerationEngine // re-rolls go through the engine; nil disables r
	Grid      *tasks.Grid
	Backend   Backend
	UserID    string
	OutputDir string        // where s writes ready images
	Refresh   time.Duration // snapshot interval; defaults to 250ms
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	opts         Options
	view         ViewState
	width        int
	height       int
	slots        []models.SlotState
	credits      int
	creditsKnown bool
	albumList    list.Model
	rerolling    bool
	progressChan <-chan tasks.ProgressUpdate
	done         <-chan rerollResult
	progress     tasks.ProgressUpdate
	status       string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	if opts.Refresh <= 0 {
		opts.Refresh = defaultRefresh
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Model{
		ctx:   ctx,
		opts:  opts,
		view:  GridView,
		slots: opts.Grid.Snapshot(),
		help:  help.New(),
		keys:  newKeyMap(),
	}
}

// Init starts the snapshot ticker and fetches the credit balance.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.fetchCredits())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.albumList.Width() != 0 {
			m.albumList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case GridView:
			return m.handleGridKeys(msg)
		case AlbumView:
			return m.handleAlbumKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == AlbumView {
		var cmd tea.Cmd
		m.albumList, cmd = m.albumList.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgTick:
		m.slots = m.opts.Grid.Snapshot()
		return m, m.tick()

	case MsgCreditsFetched:
		res := msg.data.(creditsResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.credits, m.creditsKnown = res.credits, true

	case MsgAlbumFetched:
		res := msg.data.(albumResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.albumList = list.New(themeItems(res.themes), list.NewDefaultDelegate(), 0, 0)
		m.albumList.Title = "My Album"
		m.albumList.SetSize(max(m.width-4, 20), max(m.height-8, 20))
		m.view = AlbumView

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, waitForProgress(m.progressChan, m.done)

	case MsgRerollComplete:
		res := msg.data.(rerollResult)
		m.rerolling = false
		m.progressChan, m.done = nil, nil
		m.progress = tasks.ProgressUpdate{}
		switch {
		case errors.Is(res.err, shared.ErrCancelled):
			m.status = "Re-roll cancelled"
		case res.err != nil:
			m.err = res.err
		default:
			m.credits, m.creditsKnown = res.result.Credits, true
			m.status = fmt.Sprintf("Re-rolled into %s", res.result.Job.RequestID)
			m.slots = m.opts.Grid.Snapshot()
		}

	case MsgImagesSaved:
		res := msg.data.(savedResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.status = fmt.Sprintf("Saved %d images to %s", len(res.paths), m.opts.OutputDir)
		if m.opts.Backend != nil && len(res.paths) > 0 {
			m.opts.Backend.TrackAction(m.opts.UserID, services.ActionDownload,
				map[string]string{"count": fmt.Sprint(len(res.paths))})
		}
	}
	return m, nil
}

func (m *Model) handleGridKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.err, m.status = nil, ""
	case key.Matches(msg, m.keys.reroll):
		if m.rerolling || m.opts.Engine == nil {
			return m, nil
		}
		m.err, m.status = nil, ""
		return m, m.startReroll()
	case key.Matches(msg, m.keys.album):
		return m, m.fetchAlbum()
	case key.Matches(msg, m.keys.save):
		return m, m.saveImages()
	}
	return m, nil
}

func (m *Model) handleAlbumKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		if !m.albumList.SettingFilter() {
			m.view = GridView
			return m, nil
		}
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.albumList, cmd = m.albumList.Update(msg)
	return m, cmd
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) fetchCredits() tea.Cmd {
	if m.opts.Backend == nil {
		return nil
	}
	return func() tea.Msg {
		credits, err := m.opts.Backend.FetchCredits(m.ctx, m.opts.UserID)
		return creditsFetchedMsg(credits, err)
	}
}

func (m *Model) fetchAlbum() tea.Cmd {
	if m.opts.Backend == nil {
		return nil
	}
	return func() tea.Msg {
		themes, err := m.opts.Backend.GetAlbum(m.ctx, m.opts.UserID)
		return albumFetchedMsg(themes, err)
	}
}

func (m *Model) saveImages() tea.Cmd {
	states := m.opts.Grid.Snapshot()
	ready := 0
	for _, st := range states {
		if st.Phase == models.PhaseReady {
			ready++
		}
	}
	if ready == 0 {
		m.status = "No ready images yet"
		return nil
	}

	dir := m.opts.OutputDir
	return func() tea.Msg {
		paths, err := formatter.WriteSlotImages(dir, states)
		return imagesSavedMsg(paths, err)
	}
}

func (m *Model) startReroll() tea.Cmd {
	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan rerollResult, 1)
	m.rerolling = true
	m.progressChan, m.done = progress, done

	engine, ctx := m.opts.Engine, m.ctx
	go func() {
		result, err := engine.Reroll(ctx, progress)
		done <- rerollResult{result, err}
		close(progress)
	}()

	return waitForProgress(progress, done)
}

func waitForProgress(progress <-chan tasks.ProgressUpdate, done <-chan rerollResult) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			res := <-done
			return rerollCompleteMsg(res.result, res.err)
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case AlbumView:
		helpView := m.help.ShortHelpView([]key.Binding{m.keys.back})
		return fmt.Sprintf("%s\n\n%s", m.albumList.View(), helpView)
	default:
		return m.renderGrid()
	}
}

func (m *Model) renderGrid() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Multiverse"))
	b.WriteString("\n")
	b.WriteString(m.creditsLine())
	b.WriteString("\n\n")
	b.WriteString(renderCards(m.slots, m.cardWidth()))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v (esc to dismiss)", m.err)))
		b.WriteString("\n")
	case m.rerolling:
		b.WriteString(styles.warn.Render(fmt.Sprintf("Re-rolling: %s", m.progress.Message)))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(styles.ok.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) creditsLine() string {
	balance := "..."
	if m.creditsKnown {
		balance = fmt.Sprint(m.credits)
	}
	line := "Credits: " + balance
	if m.opts.Engine != nil {
		line += fmt.Sprintf(" (re-roll costs %d)", m.opts.Engine.RerollCost())
	}
	return styles.help.Render(line)
}

func (m *Model) cardWidth() int {
	if m.width <= 0 {
		return defaultCardWidth
	}
	return max(m.width/columns-4, 16)
}

func renderCards(slots []models.SlotState, width int) string {
	var rows []string
	for start := 0; start < len(slots); start += columns {
		end := min(start+columns, len(slots))
		cards := make([]string, 0, columns)
		for _, st := range slots[start:end] {
			cards = append(cards, renderCard(st, width))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCard(st models.SlotState, width int) string {
	theme := st.Result.ThemeName
	if theme == "" {
		theme = "-"
	}

	lines := []string{
		fmt.Sprintf("#%d %s", st.Number, theme),
		styles.Phase(st.Phase).Render(phaseLabel(st)),
	}
	if len(st.Bytes) > 0 {
		detail := fmt.Sprintf("%.1f KB", float64(len(st.Bytes))/1024)
		if st.Engine != "" {
			detail += " / " + st.Engine
		}
		lines = append(lines, detail)
	}
	return styles.card.Width(width).Render(strings.Join(lines, "\n"))
}

func phaseLabel(st models.SlotState) string {
	switch {
	case st.Phase == models.PhasePolling && st.Attempts > 0:
		return fmt.Sprintf("Polling (attempt %d)", st.Attempts)
	case st.Phase == models.PhaseReady && st.FromCache:
		return "Ready (cached)"
	case st.Phase == models.PhaseFailed && st.Err != nil:
		return "Failed: " + st.Err.Error()
	default:
		return st.Phase.String()
	}
}
