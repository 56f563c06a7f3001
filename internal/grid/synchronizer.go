package grid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/CaioWing/harbor-console/internal/domain"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultRefreshDelay = 50 * time.Millisecond
	DefaultPageLength   = 10
)

// Fetcher loads one page of rows from the backend.
type Fetcher interface {
	FetchPage(ctx context.Context, q domain.PageQuery) (*domain.Page, error)
}

// ParamStore persists paging parameters between sessions of a view.
type ParamStore interface {
	Load(ctx context.Context, view string) (domain.PageParams, bool, error)
	Save(ctx context.Context, view string, params domain.PageParams) error
}

type Config[R any] struct {
	View          string
	Endpoint      string
	Columns       []Column
	InitialParams domain.PageParams
	// ID returns the stable identifier of a row.
	ID func(R) string
	// Decode overrides json.Unmarshal for row payloads.
	Decode       func(json.RawMessage) (R, error)
	Fetcher      Fetcher
	PollInterval time.Duration
	RefreshDelay time.Duration
	Gates        []Gate[R]
	Store        ParamStore
	Observer     Observer[R]
	Logger       *slog.Logger
}

// State is a snapshot of a grid.
type State[R any] struct {
	View            string            `json:"view"`
	Rows            []R               `json:"rows"`
	IDs             []string          `json:"ids"`
	Selected        []string          `json:"selected"`
	ScrollOffset    int               `json:"scroll_offset"`
	Params          domain.PageParams `json:"params"`
	RecordsTotal    int               `json:"records_total"`
	RecordsFiltered int               `json:"records_filtered"`
	LastRefresh     time.Time         `json:"last_refresh"`
}

// Synchronizer keeps one paginated, multi-select view consistent with the
// backend across background refreshes. Each mounted view owns its own.
type Synchronizer[R any] struct {
	cfg  Config[R]
	refs []domain.ColumnRef
	log  *slog.Logger

	mu          sync.Mutex
	rows        []R
	raw         []json.RawMessage
	ids         []string
	index       map[string]int
	selected    map[string]struct{}
	scroll      int
	params      domain.PageParams
	total       int
	filtered    int
	lastRefresh time.Time
	seq         int
	applied     int
	subs        []subscription[R]
	nextSub     int
	closed      bool
	bg          context.Context
	cancel      context.CancelFunc
	soon        *time.Timer
	wg          sync.WaitGroup
}

// New builds a synchronizer from cfg. Saved parameters, when a Store is
// configured and has some, replace InitialParams.
func New[R any](cfg Config[R]) (*Synchronizer[R], error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("grid %s: fetcher is required: %w", cfg.View, domain.ErrInvalidInput)
	}
	if cfg.ID == nil {
		return nil, fmt.Errorf("grid %s: row id function is required: %w", cfg.View, domain.ErrInvalidInput)
	}
	if len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("grid %s: at least one column is required: %w", cfg.View, domain.ErrInvalidInput)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("grid %s: endpoint is required: %w", cfg.View, domain.ErrInvalidInput)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RefreshDelay <= 0 {
		cfg.RefreshDelay = DefaultRefreshDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Decode == nil {
		cfg.Decode = func(raw json.RawMessage) (R, error) {
			var r R
			err := json.Unmarshal(raw, &r)
			return r, err
		}
	}

	s := &Synchronizer[R]{
		cfg:      cfg,
		log:      cfg.Logger.With("view", cfg.View),
		index:    map[string]int{},
		selected: map[string]struct{}{},
		params:   cfg.InitialParams.Clone(),
		bg:       context.Background(),
	}
	if s.params.Length <= 0 {
		s.params.Length = DefaultPageLength
	}
	for _, c := range cfg.Columns {
		s.refs = append(s.refs, c.ref())
	}
	if cfg.Observer != nil {
		s.Subscribe(cfg.Observer)
	}

	if cfg.Store != nil {
		saved, ok, err := cfg.Store.Load(context.Background(), cfg.View)
		switch {
		case err != nil:
			s.log.Warn("failed to load saved grid state", "err", err)
		case ok:
			if err := s.validateParams(saved); err != nil {
				s.log.Warn("discarding invalid saved grid state", "err", err)
			} else {
				s.params = saved.Clone()
			}
		}
	}
	return s, nil
}

func (s *Synchronizer[R]) View() string      { return s.cfg.View }
func (s *Synchronizer[R]) Columns() []Column { return s.cfg.Columns }

type subscription[R any] struct {
	id int
	o  Observer[R]
}

// Subscribe adds an observer and returns a function removing it.
func (s *Synchronizer[R]) Subscribe(o Observer[R]) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription[R]{id: id, o: o})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// notifiers must be called with s.mu held.
func (s *Synchronizer[R]) notifiers() observers[R] {
	out := make(observers[R], 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub.o)
	}
	return out
}

// Start performs the first fetch immediately and then polls until ctx is
// cancelled or Close is called.
func (s *Synchronizer[R]) Start(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.bg = ctx
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()
}

// Run refreshes now and then on every poll tick. Call in a goroutine.
func (s *Synchronizer[R]) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.log.Debug("grid polling started", "interval", s.cfg.PollInterval)
	s.Refresh(ctx, true)

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("grid polling stopped")
			return
		case <-ticker.C:
			s.Refresh(ctx, true)
		}
	}
}

// RefreshSoon schedules a single refresh after the refresh delay. Used
// after mutations so their effect shows before the next poll tick.
func (s *Synchronizer[R]) RefreshSoon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.soon != nil {
		s.soon.Stop()
	}
	ctx := s.bg
	s.soon = time.AfterFunc(s.cfg.RefreshDelay, func() {
		s.Refresh(ctx, true)
	})
}

// Refresh fetches the current page and replaces the rows wholesale. With
// preserveSelection the new selection is the old one intersected with the
// returned ids; otherwise it is cleared. On failure nothing changes.
func (s *Synchronizer[R]) Refresh(ctx context.Context, preserveSelection bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrClosed
	}
	s.seq++
	seq := s.seq
	q := domain.PageQuery{
		Endpoint: s.cfg.Endpoint,
		Draw:     seq,
		Columns:  s.refs,
		Params:   s.params.Clone(),
	}
	s.mu.Unlock()

	page, err := s.cfg.Fetcher.FetchPage(ctx, q)
	if err != nil {
		return s.refreshFailed(err)
	}

	rows := make([]R, 0, len(page.Data))
	ids := make([]string, 0, len(page.Data))
	raws := make([]json.RawMessage, 0, len(page.Data))
	index := make(map[string]int, len(page.Data))
	for i, raw := range page.Data {
		r, err := s.cfg.Decode(raw)
		if err != nil {
			return s.refreshFailed(fmt.Errorf("decode row %d: %w", i, err))
		}
		id := s.cfg.ID(r)
		if id == "" {
			return s.refreshFailed(fmt.Errorf("row %d has no identifier", i))
		}
		// A repeated id stays visible; selection and gates use its first row.
		if _, dup := index[id]; dup {
			s.log.Warn("duplicate row id in page", "id", id)
		} else {
			index[id] = len(rows)
		}
		rows = append(rows, r)
		ids = append(ids, id)
		raws = append(raws, raw)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrClosed
	}
	if seq < s.applied {
		s.mu.Unlock()
		s.log.Debug("discarding stale refresh", "seq", seq, "applied", s.applied)
		return nil
	}

	before := s.selected
	scroll := s.scroll
	next := make(map[string]struct{}, len(before))
	if preserveSelection {
		for id := range before {
			if _, ok := index[id]; ok {
				next[id] = struct{}{}
			}
		}
	}

	s.rows = rows
	s.ids = ids
	s.index = index
	s.raw = raws
	s.selected = next
	if len(rows) == 0 {
		scroll = 0
	}
	s.scroll = scroll
	s.total = page.RecordsTotal
	s.filtered = page.RecordsFiltered
	s.lastRefresh = time.Now()
	s.applied = seq

	changed := !sameSet(before, next)
	st := s.stateLocked()
	sel := s.selectionLocked()
	notify := s.notifiers()
	s.mu.Unlock()

	notify.OnRefreshed(st)
	if changed {
		notify.OnSelectionChanged(sel)
	}
	return nil
}

func (s *Synchronizer[R]) refreshFailed(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	s.log.Warn("grid refresh failed", "err", err)
	s.mu.Lock()
	notify := s.notifiers()
	s.mu.Unlock()
	notify.OnRefreshError(err)
	return fmt.Errorf("refresh %s: %w", s.cfg.View, err)
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// Close stops polling and pending refreshes. Later calls are no-ops.
func (s *Synchronizer[R]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.soon != nil {
		s.soon.Stop()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Synchronizer[R]) State() State[R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Synchronizer[R]) stateLocked() State[R] {
	return State[R]{
		View:            s.cfg.View,
		Rows:            append([]R(nil), s.rows...),
		IDs:             append([]string(nil), s.ids...),
		Selected:        s.selectedIDsLocked(),
		ScrollOffset:    s.scroll,
		Params:          s.params.Clone(),
		RecordsTotal:    s.total,
		RecordsFiltered: s.filtered,
		LastRefresh:     s.lastRefresh,
	}
}

// selectedIDsLocked lists the selection in row order.
func (s *Synchronizer[R]) selectedIDsLocked() []string {
	out := make([]string, 0, len(s.selected))
	for i, id := range s.ids {
		if _, ok := s.selected[id]; ok && s.index[id] == i {
			out = append(out, id)
		}
	}
	return out
}

func (s *Synchronizer[R]) selectionLocked() Selection[R] {
	ids := s.selectedIDsLocked()
	rows := make([]R, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, s.rows[s.index[id]])
	}
	return Selection[R]{IDs: ids, Rows: rows, Visible: len(s.index)}
}

func (s *Synchronizer[R]) Selection() Selection[R] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectionLocked()
}

// Command captures the current selection for a bulk action.
func (s *Synchronizer[R]) Command() domain.SelectionCommand {
	return s.Selection().Command()
}

// Gates evaluates every configured control against the current selection.
func (s *Synchronizer[R]) Gates() map[string]bool {
	sel := s.Selection()
	out := make(map[string]bool, len(s.cfg.Gates))
	for _, g := range s.cfg.Gates {
		out[g.Name] = g.Enabled(sel)
	}
	return out
}

// Gate reports whether the named control is enabled.
func (s *Synchronizer[R]) Gate(name string) bool {
	sel := s.Selection()
	for _, g := range s.cfg.Gates {
		if g.Name == name {
			return g.Enabled(sel)
		}
	}
	return false
}

func (s *Synchronizer[R]) updateSelection(fn func()) {
	s.mu.Lock()
	before := make(map[string]struct{}, len(s.selected))
	for k := range s.selected {
		before[k] = struct{}{}
	}
	fn()
	changed := !sameSet(before, s.selected)
	sel := s.selectionLocked()
	notify := s.notifiers()
	s.mu.Unlock()

	if changed {
		notify.OnSelectionChanged(sel)
	}
}

// Select adds visible rows to the selection; unknown ids are ignored.
func (s *Synchronizer[R]) Select(ids ...string) {
	s.updateSelection(func() {
		for _, id := range ids {
			if _, ok := s.index[id]; ok {
				s.selected[id] = struct{}{}
			}
		}
	})
}

func (s *Synchronizer[R]) Deselect(ids ...string) {
	s.updateSelection(func() {
		for _, id := range ids {
			delete(s.selected, id)
		}
	})
}

func (s *Synchronizer[R]) Toggle(id string) {
	s.updateSelection(func() {
		if _, ok := s.selected[id]; ok {
			delete(s.selected, id)
			return
		}
		if _, ok := s.index[id]; ok {
			s.selected[id] = struct{}{}
		}
	})
}

func (s *Synchronizer[R]) SelectAll() {
	s.updateSelection(func() {
		for _, id := range s.ids {
			s.selected[id] = struct{}{}
		}
	})
}

func (s *Synchronizer[R]) SelectNone() {
	s.updateSelection(func() {
		s.selected = map[string]struct{}{}
	})
}

func (s *Synchronizer[R]) SetScrollOffset(offset int) {
	if offset < 0 {
		offset = 0
	}
	s.mu.Lock()
	s.scroll = offset
	s.mu.Unlock()
}

func (s *Synchronizer[R]) ScrollOffset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scroll
}

func (s *Synchronizer[R]) Params() domain.PageParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params.Clone()
}

func (s *Synchronizer[R]) validateParams(p domain.PageParams) error {
	if p.Start < 0 || p.Length <= 0 {
		return fmt.Errorf("page window %d+%d: %w", p.Start, p.Length, domain.ErrInvalidInput)
	}
	for _, o := range p.Order {
		if o.Column < 0 || o.Column >= len(s.cfg.Columns) || !s.cfg.Columns[o.Column].Orderable {
			return fmt.Errorf("column %d is not orderable: %w", o.Column, domain.ErrInvalidInput)
		}
		if o.Dir != domain.SortAsc && o.Dir != domain.SortDesc {
			return fmt.Errorf("sort direction %q: %w", o.Dir, domain.ErrInvalidInput)
		}
	}
	for col, term := range p.ColumnSearch {
		if term == "" {
			continue
		}
		if col < 0 || col >= len(s.cfg.Columns) || !s.cfg.Columns[col].Searchable {
			return fmt.Errorf("column %d is not searchable: %w", col, domain.ErrInvalidInput)
		}
	}
	return nil
}

// SetParams replaces the paging parameters, saves them and schedules a
// refresh. The selection is reconciled by that refresh like any other.
func (s *Synchronizer[R]) SetParams(ctx context.Context, p domain.PageParams) error {
	if err := s.validateParams(p); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrClosed
	}
	s.params = p.Clone()
	s.mu.Unlock()

	if s.cfg.Store != nil {
		if err := s.cfg.Store.Save(ctx, s.cfg.View, p); err != nil {
			s.log.Warn("failed to save grid state", "err", err)
		}
	}
	s.RefreshSoon()
	return nil
}

func (s *Synchronizer[R]) SetPage(ctx context.Context, start, length int) error {
	p := s.Params()
	p.Start, p.Length = start, length
	return s.SetParams(ctx, p)
}

func (s *Synchronizer[R]) SetOrder(ctx context.Context, column int, dir domain.SortDir) error {
	p := s.Params()
	p.Order = []domain.OrderSpec{{Column: column, Dir: dir}}
	return s.SetParams(ctx, p)
}

func (s *Synchronizer[R]) SetSearch(ctx context.Context, term string) error {
	p := s.Params()
	p.Search = term
	p.Start = 0
	return s.SetParams(ctx, p)
}

func (s *Synchronizer[R]) SetColumnSearch(ctx context.Context, column int, term string) error {
	p := s.Params()
	if p.ColumnSearch == nil {
		p.ColumnSearch = map[int]string{}
	}
	if term == "" {
		delete(p.ColumnSearch, column)
	} else {
		p.ColumnSearch[column] = term
	}
	p.Start = 0
	return s.SetParams(ctx, p)
}

// Headers lists the titles of visible columns.
func (s *Synchronizer[R]) Headers() []string {
	var out []string
	for _, c := range s.cfg.Columns {
		if !c.Hidden {
			out = append(out, c.Title)
		}
	}
	return out
}

// Cells renders the visible columns of every current row.
func (s *Synchronizer[R]) Cells() [][]Cell {
	s.mu.Lock()
	raws := append([]json.RawMessage(nil), s.raw...)
	s.mu.Unlock()

	out := make([][]Cell, 0, len(raws))
	for _, raw := range raws {
		var row map[string]interface{}
		if err := json.Unmarshal(raw, &row); err != nil {
			row = nil
		}
		cells := make([]Cell, 0, len(s.cfg.Columns))
		for _, c := range s.cfg.Columns {
			if c.Hidden {
				continue
			}
			cells = append(cells, c.render(Lookup(row, c.field())))
		}
		out = append(out, cells)
	}
	return out
}
