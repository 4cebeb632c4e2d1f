package ui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"instancesearch/internal/domain"
	"instancesearch/internal/search"
	"instancesearch/internal/selectors"
	"instancesearch/internal/state"
	"instancesearch/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSearcher struct {
	mu      sync.Mutex
	calls   []string
	results map[string][]domain.Instance
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, filter string) ([]domain.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, filter)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[filter], nil
}

func (f *fakeSearcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestModel(t *testing.T, policy selectors.Policy, searcher search.Searcher) (*Model, *store.Store, *Activity) {
	t.Helper()
	activity := NewActivity()
	st := store.New(state.Reduce, domain.EmptyState(),
		store.WithMiddleware(store.ThunkMiddleware(), activity.Middleware()))
	m := NewModel(context.Background(), Options{
		Store:    st,
		Selector: selectors.NewSelector(policy),
		Searcher: searcher,
		Activity: activity,
		ShowIDs:  true,
	})
	return m, st, activity
}

func typeText(m *Model, text string) {
	for _, r := range text {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func waitLastSearch(t *testing.T, m *Model) {
	t.Helper()
	task := m.LastSearch()
	require.NotNil(t, task, "a search should have been started")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = task.Wait(ctx)
}

func TestTypingUnderServerPolicySearches(t *testing.T) {
	// Both lookups answer with the same list, so completion order does not matter
	research := []domain.Instance{{ID: 2, Title: "Research Methods"}}
	searcher := &fakeSearcher{results: map[string][]domain.Instance{
		"R":  research,
		"Re": research,
	}}
	m, st, activity := newTestModel(t, selectors.PolicyServer, searcher)

	typeText(m, "Re")
	waitLastSearch(t, m)
	require.Eventually(t, func() bool {
		return len(searcher.Calls()) == 2 && activity.Pending() == 0 && len(st.GetState().Instances) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "Re", st.GetState().PartialNameFilter)
	assert.ElementsMatch(t, []string{"R", "Re"}, searcher.Calls(), "one lookup per edit")

	view := m.View()
	assert.Contains(t, view, "Research Methods")
	assert.Contains(t, view, "1 instances")
}

func TestTypingUnderClientPolicyFiltersLocally(t *testing.T) {
	searcher := &fakeSearcher{}
	m, st, _ := newTestModel(t, selectors.PolicyClient, searcher)
	st.Dispatch(domain.NewReplaceInstances([]domain.Instance{
		{ID: 1, Title: "Library Education"},
		{ID: 2, Title: "Research Methods"},
	}))

	typeText(m, "Lib")

	assert.Empty(t, searcher.Calls(), "the client policy does not look up per keystroke")
	assert.Equal(t, "Lib", st.GetState().PartialNameFilter)

	view := m.View()
	assert.Contains(t, view, "Education")
	assert.NotContains(t, view, "Research Methods")
	assert.Contains(t, view, "1 of 2 instances")
}

func TestRefreshUnderClientPolicyReloadsCatalog(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]domain.Instance{
		"": {{ID: 1, Title: "Library Education"}},
	}}
	m, st, _ := newTestModel(t, selectors.PolicyClient, searcher)
	st.Dispatch(domain.NewChangeFilter("Lib"))

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	waitLastSearch(t, m)

	assert.Equal(t, []string{""}, searcher.Calls())
	assert.Len(t, st.GetState().Instances, 1)
}

func TestEscapeClearsFilter(t *testing.T) {
	searcher := &fakeSearcher{}
	m, st, _ := newTestModel(t, selectors.PolicyServer, searcher)
	typeText(m, "x")
	waitLastSearch(t, m)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	waitLastSearch(t, m)

	assert.Equal(t, "", st.GetState().PartialNameFilter)
	assert.Equal(t, "", m.input.Value())
	assert.Equal(t, []string{"x", ""}, searcher.Calls())
}

func TestFailureIsShown(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	m, st, _ := newTestModel(t, selectors.PolicyServer, searcher)
	st.Dispatch(domain.NewReplaceInstances([]domain.Instance{{ID: 1, Title: "Library Education"}}))

	typeText(m, "L")
	waitLastSearch(t, m)

	view := m.View()
	assert.Contains(t, view, `Search for "L" failed: connection refused`)
	assert.Contains(t, view, "Library Education", "the last good list stays on screen")
}

func TestExternalFilterChangeUpdatesInput(t *testing.T) {
	m, st, _ := newTestModel(t, selectors.PolicyServer, nil)

	st.Dispatch(domain.NewChangeFilter("from elsewhere"))
	m.Update(StateChangedMsg{})

	assert.Equal(t, "from elsewhere", m.input.Value())
}

func TestQuitAndHelpKeys(t *testing.T) {
	m, _, _ := newTestModel(t, selectors.PolicyServer, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyF1})
	assert.Nil(t, cmd)
	assert.True(t, m.help.ShowAll)
	assert.Contains(t, m.View(), "clear filter")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestActivityCountsInFlightLookups(t *testing.T) {
	activity := NewActivity()
	changes := 0
	activity.OnChange(func() { changes++ })

	st := store.New(state.Reduce, domain.EmptyState(), store.WithMiddleware(activity.Middleware()))

	st.Dispatch(domain.NewRequestInstances("a"))
	st.Dispatch(domain.NewRequestInstances("b"))
	assert.Equal(t, 2, activity.Pending())

	st.Dispatch(domain.NewReceiveInstances("a", nil))
	st.Dispatch(domain.NewFetchFailed("b", errors.New("x")))
	assert.Equal(t, 0, activity.Pending())

	st.Dispatch(domain.NewReceiveInstances("late", nil))
	assert.Equal(t, 0, activity.Pending(), "the count never goes negative")
	assert.Equal(t, 5, changes)
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func TestConnectForwardsChanges(t *testing.T) {
	activity := NewActivity()
	st := store.New(state.Reduce, domain.EmptyState(), store.WithMiddleware(activity.Middleware()))
	sender := &recordingSender{}

	stop := Connect(sender, st, activity)
	st.Dispatch(domain.NewChangeFilter("a"))
	st.Dispatch(domain.NewRequestInstances("a"))

	require.Eventually(t, func() bool { return sender.count() >= 1 }, time.Second, 5*time.Millisecond)
	stop()

	sent := sender.count()
	st.Dispatch(domain.NewChangeFilter("b"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, sent, sender.count(), "nothing is forwarded after stop")
	assert.IsType(t, StateChangedMsg{}, sender.msgs[0])
}

type fakePager struct {
	contents []string
	err      error
}

func (f *fakePager) ShowInPager(content string) error {
	f.contents = append(f.contents, content)
	return f.err
}

func newPagerModel(t *testing.T, pager Pager, logger *zap.Logger) (*Model, *store.Store) {
	t.Helper()
	st := store.New(state.Reduce, domain.EmptyState(), store.WithMiddleware(store.ThunkMiddleware()))
	m := NewModel(context.Background(), Options{
		Store:    st,
		Selector: selectors.NewSelector(selectors.PolicyServer),
		Pager:    pager,
		ShowIDs:  true,
		Logger:   logger,
	})
	st.Dispatch(domain.NewReplaceInstances([]domain.Instance{
		{ID: 1, Title: "Library Education"},
		{ID: 2, Title: "Research Methods"},
		{ID: 3, Title: "Cataloging Rules"},
		{ID: 4, Title: "Serials Control"},
		{Title: "Untitled Storage Record"},
	}))
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	return m, st
}

func TestPagerKeyShowsWholeList(t *testing.T) {
	pager := &fakePager{}
	m, _ := newPagerModel(t, pager, nil)

	assert.Contains(t, m.View(), "more (ctrl+o to see all)", "the screen only fits part of the list")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	require.NotNil(t, cmd)
	assert.True(t, m.inPager)

	msg := cmd()
	require.Len(t, pager.contents, 1)
	content := pager.contents[0]
	assert.Contains(t, content, "5 instances")
	assert.Contains(t, content, "       1  Library Education")
	assert.Contains(t, content, "       4  Serials Control")
	assert.Contains(t, content, "          Untitled Storage Record", "ids that did not parse are blank")

	m.Update(msg)
	assert.False(t, m.inPager)
	assert.Empty(t, m.input.Value(), "the key is not typed into the filter")
}

func TestPagerKeyIgnoredWhileOpen(t *testing.T) {
	m, _ := newPagerModel(t, &fakePager{}, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	require.NotNil(t, cmd)
	_, again := m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Nil(t, again)
}

func TestPagerFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	m, _ := newPagerModel(t, &fakePager{err: errors.New("no tty")}, zap.New(core))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	require.NotNil(t, cmd)
	m.Update(cmd())

	assert.False(t, m.inPager)
	assert.Equal(t, 1, logs.FilterMessage("List pager failed").Len())
}

func TestPagerKeyWithoutPager(t *testing.T) {
	m, _ := newPagerModel(t, nil, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	assert.Nil(t, cmd)
	assert.False(t, m.inPager)
	assert.NotContains(t, m.View(), "ctrl+o to see all")
}

func TestBlankIDsAndPromptStyle(t *testing.T) {
	m, st, _ := newTestModel(t, selectors.PolicyServer, nil)
	st.Dispatch(domain.NewReplaceInstances([]domain.Instance{{Title: "Untitled Storage Record"}}))

	view := m.View()
	assert.Contains(t, view, "Untitled Storage Record")
	assert.NotContains(t, view, "0  Untitled", "an id that did not parse is not shown as 0")
	assert.Equal(t, m.styles.Filter, m.input.PromptStyle)
}
