package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/trackx/internal/models"
	"github.com/desertthunder/trackx/internal/shared"
	"github.com/desertthunder/trackx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	QueryView ViewState = iota
	SearchView
	ResultView
)

const progressBuffer = 64

// Searcher runs one aggregation. Implemented by [tasks.Engine].
type Searcher interface {
	Aggregate(ctx context.Context, query string, progress chan<- tasks.ProgressUpdate) (*tasks.AggregateResult, error)
}

// Recorder stores finished searches. Implemented by repositories.Recorder.
type Recorder interface {
	Record(query string, result *tasks.AggregateResult, err error) (*models.SearchRecord, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	engine   Searcher
	recorder Recorder
	logger   *log.Logger
	open     func(string) error

	width  int
	height int

	input     textinput.Model
	spinner   spinner.Model
	trackList list.Model
	query     string
	updates   <-chan tasks.ProgressUpdate
	done      <-chan searchOutcome
	progress  tasks.ProgressUpdate
	result    *tasks.AggregateResult
	err       error
	status    string
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model. recorder may be nil.
func NewModel(ctx context.Context, engine Searcher, recorder Recorder, logger *log.Logger) *Model {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	input := textinput.New()
	input.Placeholder = "songs for a rainy afternoon"
	input.CharLimit = 200
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:      ctx,
		view:     QueryView,
		engine:   engine,
		recorder: recorder,
		logger:   logger,
		open:     shared.OpenBrowser,
		input:    input,
		spinner:  sp,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts the cursor blinking in the query input.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-8, 20)
		if m.view == ResultView {
			m.trackList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case QueryView:
			return m.handleQueryKeys(msg)
		case SearchView:
			if key.Matches(msg, m.keys.abort) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != SearchView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, waitForProgress(m.updates, m.done)

	case MsgSearchComplete:
		out := msg.data.(searchOutcome)
		m.updates, m.done = nil, nil
		m.finishSearch(out.result, out.err)
		return m, nil

	case MsgBrowserOpened:
		data := msg.data.(struct {
			url string
			err error
		})
		if data.err != nil {
			m.logger.Warn("failed to open browser", "url", data.url, "error", data.err)
			m.status = styles.err.Render(fmt.Sprintf("Could not open browser: %v", data.err))
		} else {
			m.status = styles.ok.Render("Opened " + shared.Truncate(data.url, 60))
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case QueryView:
		return m.renderQuery()
	case SearchView:
		return m.renderSearch()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleQueryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.abort):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		return m, tea.Quit
	case key.Matches(msg, m.keys.submit):
		query := strings.TrimSpace(m.input.Value())
		if query == "" {
			m.err = shared.ErrInvalidInput
			return m, nil
		}
		return m, m.startSearch(query)
	}

	m.err = nil
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart), key.Matches(msg, m.keys.back):
		m.reset()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.open):
		if t, ok := m.selectedTrack(); ok {
			return m, m.openURL(t.TrackURL, "track page")
		}
		return m, nil
	case key.Matches(msg, m.keys.preview):
		if t, ok := m.selectedTrack(); ok {
			return m, m.openURL(t.PreviewURL, "preview")
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case QueryView:
		m.input, cmd = m.input.Update(msg)
	case ResultView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) selectedTrack() (models.Track, bool) {
	selected := m.trackList.SelectedItem()
	if selected == nil {
		return models.Track{}, false
	}
	item, ok := selected.(trackItem)
	return item.track, ok
}

func (m *Model) reset() {
	m.view = QueryView
	m.result = nil
	m.err = nil
	m.status = ""
	m.progress = tasks.ProgressUpdate{}
	m.input.SetValue("")
	m.input.Focus()
}

// startSearch runs the aggregation in the background and streams its progress
// back into the update loop. The goroutine never writes model state.
func (m *Model) startSearch(query string) tea.Cmd {
	m.view = SearchView
	m.query = query
	m.err = nil
	m.status = ""
	m.progress = tasks.ProgressUpdate{Phase: tasks.Suggest, Message: "Asking for suggestions"}
	m.input.Blur()

	progress := make(chan tasks.ProgressUpdate, progressBuffer)
	done := make(chan searchOutcome, 1)

	m.updates, m.done = progress, done

	go func() {
		result, err := m.engine.Aggregate(m.ctx, query, progress)
		if m.recorder != nil && !errors.Is(err, context.Canceled) {
			if _, recErr := m.recorder.Record(query, result, err); recErr != nil {
				m.logger.Warn("failed to record search", "query", query, "error", recErr)
			}
		}
		done <- searchOutcome{result, err}
		close(progress)
	}()

	return tea.Batch(m.spinner.Tick, waitForProgress(progress, done))
}

// waitForProgress reads one update. Each progress message schedules the next read
// so updates arrive in order.
func waitForProgress(progress <-chan tasks.ProgressUpdate, done <-chan searchOutcome) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			out := <-done
			return searchCompleteMsg(out.result, out.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) finishSearch(result *tasks.AggregateResult, err error) {
	m.result = result
	m.err = err
	m.view = ResultView

	var tracks []models.Track
	if result != nil {
		tracks = result.Tracks
	}
	m.trackList = list.New(trackItems(tracks), list.NewDefaultDelegate(), 0, 0)
	m.trackList.Title = fmt.Sprintf("Results for '%s'", shared.Truncate(m.query, 40))
	m.trackList.SetShowHelp(false)
	m.trackList.SetSize(max(m.width-4, 20), max(m.height-8, 10))

	m.logger.Info("search finished", "query", m.query, "tracks", len(tracks), "status", tasks.StatusOf(err))
}

func (m *Model) openURL(url *string, what string) tea.Cmd {
	if url == nil || *url == "" {
		m.status = styles.warn.Render(fmt.Sprintf("No %s available for this track", what))
		return nil
	}
	target := *url
	open := m.open
	return func() tea.Msg {
		return browserOpenedMsg(target, open(target))
	}
}

func (m *Model) renderQuery() string {
	title := styles.title.Render("trackx")
	prompt := "What do you want to listen to?"

	var errLine string
	if m.err != nil {
		errLine = "\n" + styles.err.Render("Please enter a request.")
	}

	helpKeys := []key.Binding{m.keys.submit, m.keys.abort}
	return fmt.Sprintf("%s\n%s\n\n%s%s\n\n%s", title, prompt, m.input.View(), errLine, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderSearch() string {
	title := styles.title.Render(fmt.Sprintf("Searching for '%s'", shared.Truncate(m.query, 40)))

	var phase string
	switch m.progress.Phase {
	case tasks.Suggest:
		phase = "Asking for suggestions..."
	case tasks.Search:
		if m.progress.Total > 0 {
			phase = fmt.Sprintf("Searching catalog (%d/%d)", m.progress.Step, m.progress.Total)
		} else {
			phase = "Searching catalog..."
		}
	case tasks.Lookup:
		phase = "Fetching track details..."
	case tasks.Complete:
		phase = "Done"
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n%s %s\n%s", title, m.spinner.View(), styles.phase(m.progress.Phase, phase), styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	helpKeys := []key.Binding{m.keys.open, m.keys.preview, m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	switch {
	case errors.Is(m.err, shared.ErrNoMatches):
		msg := styles.warn.Render(fmt.Sprintf("No tracks found for '%s'.", m.query))
		return fmt.Sprintf("%s\n\n%s", msg, m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit}))
	case m.err != nil:
		msg := styles.err.Render(fmt.Sprintf("Search failed: %v", m.err))
		return fmt.Sprintf("%s\n\n%s", msg, m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit}))
	}

	summary := ""
	if m.result != nil {
		tally := m.result.SearchTally()
		summary = styles.ok.Render(fmt.Sprintf("✓ %d tracks from %d suggestions", len(m.result.Tracks), len(m.result.Candidates)))
		if tally.Failed > 0 {
			summary += " " + styles.warn.Render(fmt.Sprintf("(%d searches failed)", tally.Failed))
		}
	}

	out := fmt.Sprintf("%s\n\n%s", m.trackList.View(), summary)
	if m.status != "" {
		out += "\n" + m.status
	}
	return fmt.Sprintf("%s\n\n%s", out, helpView)
}
