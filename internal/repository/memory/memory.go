// Package memory holds repositories used when the console runs without a
// database. Nothing survives a restart.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CaioWing/harbor-console/internal/domain"
)

type AuditRepo struct {
	mu      sync.RWMutex
	entries []*domain.AuditEntry
	limit   int
}

// NewAuditRepo keeps at most limit entries, dropping the oldest. A limit of
// zero keeps everything.
func NewAuditRepo(limit int) *AuditRepo {
	return &AuditRepo{limit: limit}
}

func (r *AuditRepo) Create(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()
	cp := *entry
	r.entries = append(r.entries, &cp)
	if r.limit > 0 && len(r.entries) > r.limit {
		r.entries = r.entries[len(r.entries)-r.limit:]
	}
	return nil
}

func (r *AuditRepo) List(_ context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}

	r.mu.RLock()
	var matched []*domain.AuditEntry
	for _, e := range r.entries {
		if f.Actor != nil && e.Actor != *f.Actor {
			continue
		}
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		if f.View != nil && e.View != *f.View {
			continue
		}
		if f.Target != nil && !slices.Contains(e.TargetIDs, *f.Target) {
			continue
		}
		if f.Since != nil && e.CreatedAt.Before(*f.Since) {
			continue
		}
		if f.Until != nil && !e.CreatedAt.Before(*f.Until) {
			continue
		}
		cp := *e
		matched = append(matched, &cp)
	}
	r.mu.RUnlock()

	asc := f.SortOrder == "asc"
	sort.SliceStable(matched, func(i, j int) bool {
		if asc {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (f.Page - 1) * f.PerPage
	if start > total {
		start = total
	}
	end := start + f.PerPage
	if end > total {
		end = total
	}

	page := matched[start:end]
	if page == nil {
		page = []*domain.AuditEntry{}
	}
	return page, total, nil
}

type ViewStateRepo struct {
	mu     sync.RWMutex
	states map[string]*domain.ViewState
	now    func() time.Time
}

func NewViewStateRepo() *ViewStateRepo {
	return &ViewStateRepo{
		states: make(map[string]*domain.ViewState),
		now:    time.Now,
	}
}

func (r *ViewStateRepo) Get(_ context.Context, view string) (*domain.ViewState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.states[view]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *st
	cp.Params = st.Params.Clone()
	return &cp, nil
}

func (r *ViewStateRepo) Upsert(_ context.Context, st *domain.ViewState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st.SavedAt = r.now()
	cp := *st
	cp.Params = st.Params.Clone()
	r.states[st.View] = &cp
	return nil
}

func (r *ViewStateRepo) Delete(_ context.Context, view string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, view)
	return nil
}
