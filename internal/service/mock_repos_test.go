package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CaioWing/harbor-console/internal/domain"
	"github.com/CaioWing/harbor-console/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mock Audit Repository ---

type mockAuditRepo struct {
	mu         sync.RWMutex
	entries    []*domain.AuditEntry
	err        error
	lastFilter domain.AuditFilter
}

func newMockAuditRepo() *mockAuditRepo {
	return &mockAuditRepo{}
}

func (m *mockAuditRepo) Create(_ context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) List(_ context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = f
	out := append([]*domain.AuditEntry(nil), m.entries...)
	return out, len(out), nil
}

func (m *mockAuditRepo) actions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// --- Mock View State Repository ---

type mockViewStateRepo struct {
	mu      sync.RWMutex
	states  map[string]*domain.ViewState
	deleted []string
}

func newMockViewStateRepo() *mockViewStateRepo {
	return &mockViewStateRepo{states: make(map[string]*domain.ViewState)}
}

func (m *mockViewStateRepo) Get(_ context.Context, view string) (*domain.ViewState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[view]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (m *mockViewStateRepo) Upsert(_ context.Context, st *domain.ViewState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st.SavedAt.IsZero() {
		st.SavedAt = time.Now()
	}
	cp := *st
	m.states[st.View] = &cp
	return nil
}

func (m *mockViewStateRepo) Delete(_ context.Context, view string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, view)
	m.deleted = append(m.deleted, view)
	return nil
}

// --- Mock File Store ---

type mockFileStore struct {
	mu      sync.RWMutex
	files   map[string][]byte
	mtimes  map[string]time.Time
	deleted []string
}

func newMockFileStore() *mockFileStore {
	return &mockFileStore{
		files:  make(map[string][]byte),
		mtimes: make(map[string]time.Time),
	}
}

func (m *mockFileStore) put(name string, data []byte, mtime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	m.mtimes[name] = mtime
}

func (m *mockFileStore) Save(name string, reader io.Reader) (storage.StagedFile, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return storage.StagedFile{}, err
	}
	now := time.Now()
	m.put(name, data, now)
	return storage.StagedFile{Name: name, Size: int64(len(data)), ModTime: now}, nil
}

type memBlob struct {
	*bytes.Reader
	name string
}

func (b *memBlob) Name() string { return b.name }
func (b *memBlob) Close() error { return nil }

func (m *mockFileStore) Open(name string) (storage.Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &memBlob{Reader: bytes.NewReader(data), name: name}, nil
}

func (m *mockFileStore) List() ([]storage.StagedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []storage.StagedFile
	for name, data := range m.files {
		out = append(out, storage.StagedFile{Name: name, Size: int64(len(data)), ModTime: m.mtimes[name]})
	}
	return out, nil
}

func (m *mockFileStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	delete(m.mtimes, name)
	m.deleted = append(m.deleted, name)
	return nil
}

// --- Mock Backend ---

type mutation struct {
	Method string
	Path   string
	Body   string
}

// mockBackend serves fixed pages per endpoint and records mutations.
type mockBackend struct {
	mu        sync.Mutex
	pages     map[string][]interface{}
	mutations []mutation
	mutateErr error
}

func newMockBackend() *mockBackend {
	return &mockBackend{pages: make(map[string][]interface{})}
}

func (m *mockBackend) setRows(endpoint string, rows ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[endpoint] = rows
}

func (m *mockBackend) FetchPage(_ context.Context, q domain.PageQuery) (*domain.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.pages[q.Endpoint]
	page := &domain.Page{Data: []json.RawMessage{}, Draw: q.Draw, RecordsTotal: len(rows), RecordsFiltered: len(rows)}
	for _, r := range rows {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		page.Data = append(page.Data, b)
	}
	return page, nil
}

func (m *mockBackend) Mutate(_ context.Context, method, path string, body interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations = append(m.mutations, mutation{Method: method, Path: path, Body: string(b)})
	return m.mutateErr
}

func (m *mockBackend) lastMutation() (mutation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.mutations) == 0 {
		return mutation{}, false
	}
	return m.mutations[len(m.mutations)-1], true
}

func (m *mockBackend) DownloadURL(id string) string {
	return "http://backend/ui/bff/download/" + id
}
