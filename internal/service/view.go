package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/CaioWing/harbor-console/internal/domain"
	"github.com/CaioWing/harbor-console/internal/grid"
)

// Mutator sends a bulk mutation to the backend.
type Mutator interface {
	Mutate(ctx context.Context, method, path string, body interface{}) error
}

// ActionRequest is one bulk action fired from a view.
type ActionRequest struct {
	Name      string
	Actor     string
	IPAddress string
	Input     json.RawMessage
}

// Snapshot is the type-independent rendering of a view.
type Snapshot struct {
	View            string            `json:"view"`
	Headers         []string          `json:"headers"`
	Cells           [][]grid.Cell     `json:"cells"`
	IDs             []string          `json:"ids"`
	Selected        []string          `json:"selected"`
	ScrollOffset    int               `json:"scroll_offset"`
	Params          domain.PageParams `json:"params"`
	RecordsTotal    int               `json:"records_total"`
	RecordsFiltered int               `json:"records_filtered"`
	LastRefresh     time.Time         `json:"last_refresh"`
	Gates           map[string]bool   `json:"gates"`
	Actions         []string          `json:"actions"`
}

// View is what the console surface needs from a resource grid regardless
// of its row type.
type View interface {
	Name() string
	Snapshot() Snapshot
	Select(ids ...string)
	Deselect(ids ...string)
	SelectAll()
	SelectNone()
	SetScrollOffset(offset int)
	SetParams(ctx context.Context, p domain.PageParams) error
	Refresh(ctx context.Context) error
	RefreshSoon()
	Do(ctx context.Context, req ActionRequest) error
	// Watch calls fn after every refresh attempt with its error, nil on
	// success, and returns a function that stops the calls.
	Watch(fn func(err error)) func()
	Start(ctx context.Context)
	Close()
}

// action builds the backend call for one named bulk action. gate, when set,
// must be enabled for the action to run.
type action struct {
	gate  string
	build func(cmd domain.SelectionCommand, input json.RawMessage) (method string, body interface{}, err error)
}

type resourceView[R any] struct {
	name     string
	endpoint string
	grid     *grid.Synchronizer[R]
	actions  map[string]action
	mutator  Mutator
	audit    *AuditService
	log      *slog.Logger
}

// ViewDeps are shared by every resource view.
type ViewDeps struct {
	Fetcher      grid.Fetcher
	Mutator      Mutator
	Store        grid.ParamStore
	Audit        *AuditService
	PollInterval time.Duration
	RefreshDelay time.Duration
	PageLength   int
	Logger       *slog.Logger
}

func newResourceView[R any](deps ViewDeps, cfg grid.Config[R], actions map[string]action) (*resourceView[R], error) {
	cfg.Fetcher = deps.Fetcher
	cfg.Store = deps.Store
	cfg.PollInterval = deps.PollInterval
	cfg.RefreshDelay = deps.RefreshDelay
	cfg.Logger = deps.Logger
	if cfg.InitialParams.Length == 0 {
		cfg.InitialParams.Length = deps.PageLength
	}

	g, err := grid.New(cfg)
	if err != nil {
		return nil, err
	}
	return &resourceView[R]{
		name:     cfg.View,
		endpoint: cfg.Endpoint,
		grid:     g,
		actions:  actions,
		mutator:  deps.Mutator,
		audit:    deps.Audit,
		log:      deps.Logger.With("view", cfg.View),
	}, nil
}

func (v *resourceView[R]) Name() string { return v.name }

// Grid exposes the typed synchronizer.
func (v *resourceView[R]) Grid() *grid.Synchronizer[R] { return v.grid }

func (v *resourceView[R]) Snapshot() Snapshot {
	st := v.grid.State()
	return Snapshot{
		View:            v.name,
		Headers:         v.grid.Headers(),
		Cells:           v.grid.Cells(),
		IDs:             st.IDs,
		Selected:        st.Selected,
		ScrollOffset:    st.ScrollOffset,
		Params:          st.Params,
		RecordsTotal:    st.RecordsTotal,
		RecordsFiltered: st.RecordsFiltered,
		LastRefresh:     st.LastRefresh,
		Gates:           v.grid.Gates(),
		Actions:         v.actionNames(),
	}
}

func (v *resourceView[R]) actionNames() []string {
	names := make([]string, 0, len(v.actions))
	for name := range v.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *resourceView[R]) Select(ids ...string)       { v.grid.Select(ids...) }
func (v *resourceView[R]) Deselect(ids ...string)     { v.grid.Deselect(ids...) }
func (v *resourceView[R]) SelectAll()                 { v.grid.SelectAll() }
func (v *resourceView[R]) SelectNone()                { v.grid.SelectNone() }
func (v *resourceView[R]) SetScrollOffset(offset int) { v.grid.SetScrollOffset(offset) }
func (v *resourceView[R]) RefreshSoon()               { v.grid.RefreshSoon() }
func (v *resourceView[R]) Start(ctx context.Context)  { v.grid.Start(ctx) }
func (v *resourceView[R]) Close()                     { v.grid.Close() }

func (v *resourceView[R]) Watch(fn func(err error)) func() {
	return v.grid.Subscribe(grid.ObserverFuncs[R]{
		Refreshed:    func(grid.State[R]) { fn(nil) },
		RefreshError: fn,
	})
}

func (v *resourceView[R]) SetParams(ctx context.Context, p domain.PageParams) error {
	return v.grid.SetParams(ctx, p)
}

func (v *resourceView[R]) Refresh(ctx context.Context) error {
	return v.grid.Refresh(ctx, true)
}

// Do runs a bulk action against the selection captured at call time. The
// grid is refreshed shortly afterwards whether or not the backend accepted
// the mutation.
func (v *resourceView[R]) Do(ctx context.Context, req ActionRequest) error {
	a, ok := v.actions[req.Name]
	if !ok {
		return fmt.Errorf("%s action %q: %w", v.name, req.Name, domain.ErrNotFound)
	}
	if a.gate != "" && !v.grid.Gate(a.gate) {
		return fmt.Errorf("%s action %q is not enabled for the current selection: %w", v.name, req.Name, domain.ErrInvalidInput)
	}

	cmd := v.grid.Command()
	method, body, err := a.build(cmd, req.Input)
	if err != nil {
		return err
	}

	err = v.mutator.Mutate(ctx, method, v.endpoint, body)
	v.grid.RefreshSoon()
	if err != nil {
		v.log.Warn("bulk action failed", "action", req.Name, "count", len(cmd.IDs), "err", err)
		return fmt.Errorf("%s %s: %w", v.name, req.Name, err)
	}

	v.log.Info("bulk action applied", "action", req.Name, "count", len(cmd.IDs))
	v.audit.RecordAction(ctx, Actor{Name: req.Actor, IP: req.IPAddress}, v.name, req.Name, cmd, method)
	return nil
}

// decodeInput unmarshals an optional action payload.
func decodeInput(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
