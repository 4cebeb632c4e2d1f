package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"instancesearch/internal/domain"
	"instancesearch/internal/search"
	"instancesearch/internal/selectors"
	"instancesearch/internal/store"
)

// Options holds the collaborators and settings of the screen
type Options struct {
	Store      *store.Store
	Selector   *selectors.Selector
	Searcher   search.Searcher
	SearchOpts []search.Option
	Activity   *Activity
	Pager      Pager
	ShowIDs    bool
	Logger     *zap.Logger
}

// Model represents the UI state that does not live in the store
type Model struct {
	ctx      context.Context
	store    *store.Store
	selector *selectors.Selector
	searcher search.Searcher
	opts     []search.Option
	activity *Activity
	pager    Pager
	logger   *zap.Logger

	input    textinput.Model
	help     help.Model
	keys     keyMap
	spinner  spinner.Model
	styles   *Styles
	showIDs  bool
	showHelp bool
	spinning bool
	inPager  bool // rendering is paused while the pager owns the terminal
	width    int
	height   int

	lastTask *store.Task // most recent search, kept for tests and shutdown
}

// NewModel creates a new UI model
func NewModel(ctx context.Context, o Options) *Model {
	styles := NewStyles()

	ti := textinput.New()
	ti.Prompt = "Filter: "
	ti.PromptStyle = styles.Filter
	ti.Placeholder = "title contains..."
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	activity := o.Activity
	if activity == nil {
		activity = NewActivity()
	}
	selector := o.Selector
	if selector == nil {
		selector = selectors.NewSelector(selectors.PolicyServer)
	}

	m := &Model{
		ctx:      ctx,
		store:    o.Store,
		selector: selector,
		searcher: o.Searcher,
		opts:     o.SearchOpts,
		activity: activity,
		pager:    o.Pager,
		logger:   logger,
		input:    ti,
		help:     help.New(),
		keys:     defaultKeyMap(),
		spinner:  sp,
		styles:   styles,
		showIDs:  o.ShowIDs,
	}
	m.input.SetValue(o.Store.GetState().PartialNameFilter)
	return m
}

// Init starts the cursor blink
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(msg.Width-len(m.input.Prompt)-6, 10)
		return m, nil

	case StateChangedMsg:
		// Keep the input in step with filters set from outside the screen
		if f := m.store.GetState().PartialNameFilter; f != m.input.Value() {
			m.input.SetValue(f)
		}
		return m, m.syncSpinner()

	case listPagerMsg:
		m.inPager = false
		if msg.err != nil {
			// Pager failed: log only
			m.logger.Warn("List pager failed", zap.Error(msg.err))
		}
		return m, m.syncSpinner()

	case spinner.TickMsg:
		if m.activity.Pending() == 0 || m.inPager {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Pager):
		return m, m.openPager()

	case key.Matches(msg, m.keys.Refresh):
		m.search(m.refreshFilter())
		return m, m.syncSpinner()

	case key.Matches(msg, m.keys.Clear):
		m.input.SetValue("")
		m.applyFilter("")
		return m, m.syncSpinner()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != m.store.GetState().PartialNameFilter {
		m.applyFilter(v)
	}
	return m, tea.Batch(cmd, m.syncSpinner())
}

// applyFilter records the new search text and, when the server filters,
// starts a lookup for it
func (m *Model) applyFilter(filter string) {
	m.store.Dispatch(domain.NewChangeFilter(filter))
	if m.selector.Policy() == selectors.PolicyServer {
		m.search(filter)
	}
}

// refreshFilter is the filter sent to the lookup when the list is reloaded.
// The client policy filters locally, so it always reloads the full catalog.
func (m *Model) refreshFilter() string {
	if m.selector.Policy() == selectors.PolicyClient {
		return ""
	}
	return m.store.GetState().PartialNameFilter
}

func (m *Model) search(filter string) {
	if m.searcher == nil {
		return
	}
	result := m.store.Dispatch(search.ByFilter(m.ctx, m.searcher, filter, m.opts...))
	if task, ok := result.(*store.Task); ok {
		m.lastTask = task
	} else {
		m.logger.Warn("Search producer did not return a task", zap.String("filter", filter))
	}
}

// openPager returns a command that shows the whole visible list in the pager
func (m *Model) openPager() tea.Cmd {
	if m.pager == nil || m.inPager {
		return nil
	}
	s := m.store.GetState()
	content := renderPagerList(m.selector.Select(s), s.PartialNameFilter, m.showIDs)
	pager := m.pager

	m.inPager = true
	m.spinning = false
	return func() tea.Msg {
		return listPagerMsg{err: pager.ShowInPager(content)}
	}
}

// syncSpinner starts the spinner when a lookup is in flight
func (m *Model) syncSpinner() tea.Cmd {
	if m.activity.Pending() > 0 && !m.spinning && !m.inPager {
		m.spinning = true
		return m.spinner.Tick
	}
	return nil
}

// View renders the screen
func (m *Model) View() string {
	s := m.store.GetState()
	visible := m.selector.Select(s)

	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Instance search"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	limit := len(visible)
	if m.height > 0 {
		// title, input, status and help take about eight lines
		limit = min(limit, max(m.height-8, 1))
	}
	if len(visible) == 0 {
		b.WriteString(m.styles.Dim.Render("  No instances"))
		b.WriteString("\n")
	}
	for _, instance := range visible[:limit] {
		b.WriteString(m.renderInstance(instance, s.PartialNameFilter))
		b.WriteString("\n")
	}
	if limit < len(visible) {
		more := fmt.Sprintf("  ... %d more", len(visible)-limit)
		if m.pager != nil {
			more += fmt.Sprintf(" (%s to see all)", m.keys.Pager.Help().Key)
		}
		b.WriteString(m.styles.Dim.Render(more))
		b.WriteString("\n")
	}

	b.WriteString(m.renderStatus(s, len(visible)))
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render(m.help.View(m.keys)))

	return m.styles.Main.Render(b.String())
}

func (m *Model) renderInstance(instance domain.Instance, filter string) string {
	title := instance.Title
	if filter != "" {
		title = strings.ReplaceAll(title, filter, m.styles.Highlight.Render(filter))
	}
	line := m.styles.Instance.Render(title)
	if m.showIDs {
		line = lipgloss.JoinHorizontal(lipgloss.Top, m.styles.ID.Render(formatID(instance.ID)), "  ", line)
	}
	return line
}

func (m *Model) renderStatus(s *domain.State, visible int) string {
	var parts []string
	if m.activity.Pending() > 0 {
		parts = append(parts, m.styles.StatusLoading.Render(m.spinner.View()+" Searching..."))
	}
	if s.Failure != nil {
		parts = append(parts, m.styles.StatusError.Render(
			fmt.Sprintf("Search for %q failed: %s", s.Failure.Filter, s.Failure.Message)))
	}
	if visible == len(s.Instances) {
		parts = append(parts, fmt.Sprintf("%d instances", visible))
	} else {
		parts = append(parts, fmt.Sprintf("%d of %d instances", visible, len(s.Instances)))
	}
	return m.styles.Status.Render(strings.Join(parts, "  "))
}

// LastSearch returns the task of the most recent search started by the screen
func (m *Model) LastSearch() *store.Task {
	return m.lastTask
}
