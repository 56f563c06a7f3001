package grid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaioWing/harbor-console/internal/domain"
)

type testRow struct {
	ID     string `json:"id"`
	Paused bool   `json:"paused"`
}

type scriptedFetcher struct {
	mu      sync.Mutex
	pages   []*domain.Page
	errs    []error
	queries []domain.PageQuery
}

func (f *scriptedFetcher) FetchPage(_ context.Context, q domain.PageQuery) (*domain.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.pages) == 0 {
		return nil, errors.New("no scripted page")
	}
	p := f.pages[0]
	if len(f.pages) > 1 {
		f.pages = f.pages[1:]
	}
	return p, nil
}

func pageOf(rows ...testRow) *domain.Page {
	p := &domain.Page{Data: []json.RawMessage{}, RecordsTotal: len(rows), RecordsFiltered: len(rows)}
	for _, r := range rows {
		b, _ := json.Marshal(r)
		p.Data = append(p.Data, b)
	}
	return p
}

func rowsWithIDs(ids ...string) []testRow {
	out := make([]testRow, len(ids))
	for i, id := range ids {
		out[i] = testRow{ID: id}
	}
	return out
}

type recorder struct {
	mu         sync.Mutex
	selections [][]string
	errs       []error
	refreshes  int
}

func (r *recorder) observer() ObserverFuncs[testRow] {
	return ObserverFuncs[testRow]{
		SelectionChanged: func(s Selection[testRow]) {
			r.mu.Lock()
			r.selections = append(r.selections, s.IDs)
			r.mu.Unlock()
		},
		Refreshed: func(State[testRow]) {
			r.mu.Lock()
			r.refreshes++
			r.mu.Unlock()
		},
		RefreshError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

var testColumns = []Column{
	{Title: "ID", Data: "id", Searchable: true, Orderable: true},
	{Title: "Paused", Data: "paused", Render: RenderDot("success", "light")},
	{Title: "Model", Data: "hardware.model", Name: "hardware__model", Field: "hw_model", Orderable: true},
}

func newTestGrid(t *testing.T, f Fetcher, extra func(*Config[testRow])) (*Synchronizer[testRow], *recorder) {
	t.Helper()
	rec := &recorder{}
	cfg := Config[testRow]{
		View:     "rollouts",
		Endpoint: "/ui/bff/rollouts",
		Columns:  testColumns,
		ID:       func(r testRow) string { return r.ID },
		Fetcher:  f,
		Observer: rec.observer(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Gates: []Gate[testRow]{
			{Name: "delete", Enabled: AnySelected[testRow]},
			{Name: "rename", Enabled: ExactlyOne[testRow]},
			{Name: "select_all", Enabled: NotAllSelected[testRow]},
			{Name: "resume", Enabled: AnyRow(func(r testRow) bool { return r.Paused })},
			{Name: "pause", Enabled: AnyRow(func(r testRow) bool { return !r.Paused })},
		},
	}
	if extra != nil {
		extra(&cfg)
	}
	g, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(g.Close)
	return g, rec
}

func TestNew_ValidatesConfig(t *testing.T) {
	_, err := New(Config[testRow]{View: "x", Endpoint: "/x", Columns: testColumns, Fetcher: &scriptedFetcher{}})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New(Config[testRow]{View: "x", Endpoint: "/x", ID: func(r testRow) string { return r.ID }, Fetcher: &scriptedFetcher{}})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRefresh_SelectionShrinksToSurvivingRows(t *testing.T) {
	f := &scriptedFetcher{pages: []*domain.Page{
		pageOf(rowsWithIDs("a", "b", "c", "d")...),
		pageOf(rowsWithIDs("a", "c", "d", "e")...),
	}}
	g, rec := newTestGrid(t, f, nil)
	ctx := context.Background()

	require.NoError(t, g.Refresh(ctx, true))
	g.Select("a", "b", "c")
	require.Equal(t, []string{"a", "b", "c"}, g.Selection().IDs)

	require.NoError(t, g.Refresh(ctx, true))
	assert.Equal(t, []string{"a", "c"}, g.Selection().IDs)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.selections, 2)
	assert.Equal(t, []string{"a", "c"}, rec.selections[1])
}

func TestRefresh_SelectionIsIntersection(t *testing.T) {
	cases := []struct {
		before []string
		next   []string
		want   []string
	}{
		{before: []string{"1", "2"}, next: []string{"1", "2", "3"}, want: []string{"1", "2"}},
		{before: []string{"1", "2"}, next: []string{"3"}, want: []string{}},
		{before: nil, next: []string{"1"}, want: []string{}},
		{before: []string{"2"}, next: []string{"3", "2", "1"}, want: []string{"2"}},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			f := &scriptedFetcher{pages: []*domain.Page{
				pageOf(rowsWithIDs("1", "2", "3")...),
				pageOf(rowsWithIDs(tc.next...)...),
			}}
			g, _ := newTestGrid(t, f, nil)
			require.NoError(t, g.Refresh(context.Background(), true))
			g.Select(tc.before...)

			require.NoError(t, g.Refresh(context.Background(), true))
			assert.Empty(t, cmp.Diff(tc.want, g.Selection().IDs))
		})
	}
}

func TestRefresh_WithoutPreserveClearsSelection(t *testing.T) {
	f := &scriptedFetcher{pages: []*domain.Page{pageOf(rowsWithIDs("a", "b")...)}}
	g, _ := newTestGrid(t, f, nil)

	require.NoError(t, g.Refresh(context.Background(), true))
	g.SelectAll()
	require.NoError(t, g.Refresh(context.Background(), false))
	assert.Empty(t, g.Selection().IDs)
}

func TestRefresh_KeepsScrollForNonEmptyResult(t *testing.T) {
	f := &scriptedFetcher{pages: []*domain.Page{
		pageOf(rowsWithIDs("a", "b")...),
		pageOf(rowsWithIDs("c")...),
		pageOf(),
	}}
	g, _ := newTestGrid(t, f, nil)
	ctx := context.Background()

	require.NoError(t, g.Refresh(ctx, true))
	g.SetScrollOffset(340)

	require.NoError(t, g.Refresh(ctx, true))
	assert.Equal(t, 340, g.ScrollOffset())

	require.NoError(t, g.Refresh(ctx, true))
	assert.Equal(t, 0, g.ScrollOffset())
}

func TestRefresh_FailureLeavesStateUntouched(t *testing.T) {
	f := &scriptedFetcher{
		pages: []*domain.Page{pageOf(testRow{ID: "a"}, testRow{ID: "b", Paused: true})},
		errs:  []error{nil, errors.New("connection reset")},
	}
	g, rec := newTestGrid(t, f, nil)
	ctx := context.Background()

	require.NoError(t, g.Refresh(ctx, true))
	g.Select("b")
	g.SetScrollOffset(12)
	before := g.State()

	err := g.Refresh(ctx, true)
	require.Error(t, err)

	after := g.State()
	assert.Empty(t, cmp.Diff(before, after))
	rec.mu.Lock()
	assert.Len(t, rec.errs, 1)
	rec.mu.Unlock()
}

func TestRefresh_DecodeFailureLeavesStateUntouched(t *testing.T) {
	f := &scriptedFetcher{pages: []*domain.Page{
		pageOf(rowsWithIDs("a", "b")...),
		{Data: []json.RawMessage{json.RawMessage(`{"id":"c"}`), json.RawMessage(`{"id":`)}},
	}}
	g, _ := newTestGrid(t, f, nil)
	ctx := context.Background()

	require.NoError(t, g.Refresh(ctx, true))
	g.Select("a")
	before := g.State()

	require.Error(t, g.Refresh(ctx, true))
	assert.Empty(t, cmp.Diff(before, g.State()))
}

func TestRefresh_RowWithoutIDFails(t *testing.T) {
	f := &scriptedFetcher{pages: []*domain.Page{pageOf(testRow{ID: ""})}}
	g, _ := newTestGrid(t, f, nil)
	require.Error(t, g.Refresh(context.Background(), true))
}

func TestRefresh_DuplicateIDKeepsEveryRow(t *testing.T) {
	f := &scriptedFetcher{pages: []*domain.Page{pageOf(
		testRow{ID: "a"},
		testRow{ID: "b"},
		testRow{ID: "a", Paused: true},
	)}}
	g, _ := newTestGrid(t, f, nil)
	require.NoError(t, g.Refresh(context.Background(), true))

	assert.Equal(t, []string{"a", "b", "a"}, g.State().IDs)
	assert.Len(t, g.Cells(), 3)

	g.SelectAll()
	assert.Equal(t, []string{"a", "b"}, g.Selection().IDs)
	assert.Equal(t, []string{"a", "b"}, g.Command().IDs)
	assert.False(t, g.Gate("select_all"))
	// the first occurrence of "a" is not paused
	assert.False(t, g.Gate("resume"))
}

// blockingFetcher holds the first call until release is closed.
type blockingFetcher struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *blockingFetcher) FetchPage(_ context.Context, q domain.PageQuery) (*domain.Page, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if n == 1 {
		close(f.started)
		<-f.release
		return pageOf(rowsWithIDs("old")...), nil
	}
	return pageOf(rowsWithIDs("new")...), nil
}

func TestRefresh_StaleResponseDiscarded(t *testing.T) {
	f := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
	g, _ := newTestGrid(t, f, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- g.Refresh(ctx, true) }()
	<-f.started

	require.NoError(t, g.Refresh(ctx, true))
	close(f.release)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"new"}, g.State().IDs)
}

func TestSelect_IgnoresUnknownIDs(t *testing.T) {
	f := &scriptedFetcher{pages: []*domain.Page{pageOf(rowsWithIDs("a")...)}}
	g, rec := newTestGrid(t, f, nil)
	require.NoError(t, g.Refresh(context.Background(), true))

	g.Select("zzz")
	assert.Empty(t, g.Selection().IDs)
	rec.mu.Lock()
	assert.Empty(t, rec.selections)
	rec.mu.Unlock()

	g.Toggle("a")
	assert.Equal(t, []string{"a"}, g.Selection().IDs)
	g.Toggle("a")
	assert.Empty(t, g.Selection().IDs)
}

func TestGates(t *testing.T) {
	f := &scriptedFetcher{pages: []*domain.Page{pageOf(
		testRow{ID: "1", Paused: true},
		testRow{ID: "2"},
		testRow{ID: "3"},
	)}}
	g, _ := newTestGrid(t, f, nil)
	require.NoError(t, g.Refresh(context.Background(), true))

	assert.Equal(t, map[string]bool{
		"delete": false, "rename": false, "select_all": true, "resume": false, "pause": false,
	}, g.Gates())

	g.Select("1")
	assert.Equal(t, map[string]bool{
		"delete": true, "rename": true, "select_all": true, "resume": true, "pause": false,
	}, g.Gates())

	g.Select("2")
	assert.Equal(t, map[string]bool{
		"delete": true, "rename": false, "select_all": true, "resume": true, "pause": true,
	}, g.Gates())

	g.SelectAll()
	assert.False(t, g.Gate("select_all"))
	assert.False(t, g.Gate("unknown"))

	g.SelectNone()
	assert.False(t, g.Gate("delete"))
	assert.True(t, g.Command().Empty())
}

func TestSetParams_ValidatesAndPersists(t *testing.T) {
	store := &memStore{}
	f := &scriptedFetcher{pages: []*domain.Page{pageOf(rowsWithIDs("a")...)}}
	g, _ := newTestGrid(t, f, func(c *Config[testRow]) {
		c.Store = store
		c.RefreshDelay = time.Hour
	})
	ctx := context.Background()

	require.ErrorIs(t, g.SetOrder(ctx, 1, domain.SortAsc), domain.ErrInvalidInput)
	require.ErrorIs(t, g.SetColumnSearch(ctx, 2, "rpi"), domain.ErrInvalidInput)
	require.ErrorIs(t, g.SetPage(ctx, -1, 10), domain.ErrInvalidInput)

	require.NoError(t, g.SetOrder(ctx, 2, domain.SortDesc))
	require.NoError(t, g.SetColumnSearch(ctx, 0, "abc"))
	require.NoError(t, g.SetPage(ctx, 20, 50))

	want := domain.PageParams{
		Start:        20,
		Length:       50,
		Order:        []domain.OrderSpec{{Column: 2, Dir: domain.SortDesc}},
		ColumnSearch: map[int]string{0: "abc"},
	}
	assert.Empty(t, cmp.Diff(want, g.Params()))
	assert.Empty(t, cmp.Diff(want, store.saved["rollouts"]))

	require.NoError(t, g.Refresh(ctx, true))
	q := f.queries[len(f.queries)-1]
	assert.Equal(t, "/ui/bff/rollouts", q.Endpoint)
	assert.Equal(t, "hardware__model", q.Columns[2].Name)
	assert.Equal(t, "id", q.Columns[0].Name)
	assert.Empty(t, cmp.Diff(want, q.Params))
}

func TestNew_LoadsSavedParams(t *testing.T) {
	store := &memStore{saved: map[string]domain.PageParams{
		"rollouts": {Start: 10, Length: 25, Search: "beta"},
	}}
	g, _ := newTestGrid(t, &scriptedFetcher{}, func(c *Config[testRow]) { c.Store = store })
	assert.Equal(t, 25, g.Params().Length)
	assert.Equal(t, "beta", g.Params().Search)

	bad := &memStore{saved: map[string]domain.PageParams{
		"rollouts": {Length: 10, Order: []domain.OrderSpec{{Column: 9, Dir: domain.SortAsc}}},
	}}
	g2, _ := newTestGrid(t, &scriptedFetcher{}, func(c *Config[testRow]) {
		c.Store = bad
		c.InitialParams = domain.PageParams{Length: 100}
	})
	assert.Equal(t, 100, g2.Params().Length)
}

func TestRefreshSoon_AppliesAfterDelay(t *testing.T) {
	f := &scriptedFetcher{pages: []*domain.Page{pageOf(rowsWithIDs("a")...)}}
	refreshed := make(chan struct{}, 1)
	g, _ := newTestGrid(t, f, func(c *Config[testRow]) {
		c.RefreshDelay = 5 * time.Millisecond
		c.Observer = ObserverFuncs[testRow]{Refreshed: func(State[testRow]) {
			select {
			case refreshed <- struct{}{}:
			default:
			}
		}}
	})

	g.RefreshSoon()
	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a refresh after the delay")
	}
	assert.Equal(t, []string{"a"}, g.State().IDs)
}

func TestStart_FetchesImmediatelyAndCloseStops(t *testing.T) {
	f := &scriptedFetcher{pages: []*domain.Page{pageOf(rowsWithIDs("a")...)}}
	refreshed := make(chan struct{}, 1)
	g, _ := newTestGrid(t, f, func(c *Config[testRow]) {
		c.PollInterval = time.Hour
		c.Observer = ObserverFuncs[testRow]{Refreshed: func(State[testRow]) {
			select {
			case refreshed <- struct{}{}:
			default:
			}
		}}
	})

	g.Start(context.Background())
	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected first fetch on start")
	}

	g.Close()
	require.ErrorIs(t, g.Refresh(context.Background(), true), domain.ErrClosed)
	g.Close()
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	f := &scriptedFetcher{pages: []*domain.Page{pageOf(rowsWithIDs("a")...)}}
	g, _ := newTestGrid(t, f, nil)

	calls := 0
	unsub := g.Subscribe(ObserverFuncs[testRow]{Refreshed: func(State[testRow]) { calls++ }})
	require.NoError(t, g.Refresh(context.Background(), true))
	unsub()
	require.NoError(t, g.Refresh(context.Background(), true))
	assert.Equal(t, 1, calls)
}

func TestCells(t *testing.T) {
	f := &scriptedFetcher{pages: []*domain.Page{{Data: []json.RawMessage{
		json.RawMessage(`{"id":"r1","paused":true,"hw_model":"rpi4"}`),
		json.RawMessage(`{"id":"r2","paused":false,"hw_model":null}`),
	}}}}
	g, _ := newTestGrid(t, f, nil)
	require.NoError(t, g.Refresh(context.Background(), true))

	assert.Equal(t, []string{"ID", "Paused", "Model"}, g.Headers())
	want := [][]Cell{
		{{Text: "r1"}, {Text: "●", Class: "success"}, {Text: "rpi4"}},
		{{Text: "r2"}, {Text: "●", Class: "light"}, {Text: "-"}},
	}
	assert.Empty(t, cmp.Diff(want, g.Cells()))
}

type memStore struct {
	saved map[string]domain.PageParams
}

func (m *memStore) Load(_ context.Context, view string) (domain.PageParams, bool, error) {
	p, ok := m.saved[view]
	return p, ok, nil
}

func (m *memStore) Save(_ context.Context, view string, p domain.PageParams) error {
	if m.saved == nil {
		m.saved = map[string]domain.PageParams{}
	}
	m.saved[view] = p.Clone()
	return nil
}
