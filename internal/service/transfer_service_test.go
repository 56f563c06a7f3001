package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/CaioWing/harbor-console/internal/client"
	"github.com/CaioWing/harbor-console/internal/domain"
	"github.com/CaioWing/harbor-console/internal/transfer"
)

type fakeTransport struct {
	mu        sync.Mutex
	chunks    []client.ChunkRequest
	importErr error
	block     chan struct{}
}

func (f *fakeTransport) UploadChunk(_ context.Context, c client.ChunkRequest) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c.Data = append([]byte(nil), c.Data...)
	f.chunks = append(f.chunks, c)
	return nil
}

func (f *fakeTransport) ImportURL(_ context.Context, _ string) error {
	return f.importErr
}

func newTestTransferService(t *testing.T, tr *fakeTransport, store *mockFileStore, audit *mockAuditRepo) *TransferService {
	t.Helper()
	banners := &Banners{}
	ctrl := transfer.New(tr,
		transfer.WithChunkSize(4),
		transfer.WithObserver(banners),
		transfer.WithLogger(testLogger()),
		transfer.WithAfterFunc(func(_ time.Duration, f func()) { f() }),
	)
	return NewTransferService(context.Background(), ctrl, store, banners, NewAuditService(audit, testLogger()), testLogger())
}

func TestTransferService_UploadStaged(t *testing.T) {
	tr := &fakeTransport{}
	store := newMockFileStore()
	store.put("fw.swu", []byte("0123456789"), time.Now())
	audit := newMockAuditRepo()
	svc := newTestTransferService(t, tr, store, audit)

	if err := svc.UploadStaged("admin", "127.0.0.1", "fw.swu"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Wait()

	if len(tr.chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(tr.chunks))
	}
	if !tr.chunks[0].Init || !tr.chunks[2].Done {
		t.Fatal("expected init on first chunk and done on last")
	}
	if svc.InUse("fw.swu") {
		t.Fatal("expected staged file to be released")
	}
	if got := audit.actions(); len(got) != 1 || got[0] != "software.upload" {
		t.Fatalf("expected software.upload audit entry, got %v", got)
	}
	if st := svc.Status(); st.Busy || st.Session.Status != domain.TransferIdle {
		t.Fatalf("expected idle controller after settle, got %+v", st)
	}
}

func TestTransferService_UploadStagedMissingOrEmpty(t *testing.T) {
	store := newMockFileStore()
	store.put("empty.swu", nil, time.Now())
	svc := newTestTransferService(t, &fakeTransport{}, store, newMockAuditRepo())

	if err := svc.UploadStaged("admin", "", "nope.swu"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.UploadStaged("admin", "", "empty.swu"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTransferService_RejectsWhileBusy(t *testing.T) {
	tr := &fakeTransport{block: make(chan struct{})}
	store := newMockFileStore()
	store.put("fw.swu", []byte("0123"), time.Now())
	svc := newTestTransferService(t, tr, store, newMockAuditRepo())

	if err := svc.UploadStaged("admin", "", "fw.swu"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for !svc.Status().Busy && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !svc.InUse("fw.swu") {
		t.Fatal("expected staged file to be marked in use")
	}
	if err := svc.ImportURL("admin", "", "https://example.com/fw.swu"); !errors.Is(err, domain.ErrTransferBusy) {
		t.Fatalf("expected ErrTransferBusy, got %v", err)
	}

	close(tr.block)
	svc.Wait()
}

func TestTransferService_SecondStartIsRejectedImmediately(t *testing.T) {
	tr := &fakeTransport{block: make(chan struct{})}
	store := newMockFileStore()
	store.put("a.swu", []byte("0123"), time.Now())
	store.put("b.swu", []byte("4567"), time.Now())
	audit := newMockAuditRepo()
	svc := newTestTransferService(t, tr, store, audit)

	if err := svc.UploadStaged("admin", "", "a.swu"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.UploadStaged("admin", "", "b.swu"); !errors.Is(err, domain.ErrTransferBusy) {
		t.Fatalf("expected ErrTransferBusy for second upload, got %v", err)
	}
	if err := svc.ImportURL("admin", "", "https://example.com/fw.swu"); !errors.Is(err, domain.ErrTransferBusy) {
		t.Fatalf("expected ErrTransferBusy for import, got %v", err)
	}
	if !svc.Status().Busy {
		t.Fatal("expected busy status right after start")
	}
	if !svc.InUse("a.swu") || svc.InUse("b.swu") {
		t.Fatal("expected only a.swu to be protected while uploading")
	}

	close(tr.block)
	svc.Wait()

	if svc.InUse("a.swu") {
		t.Fatal("expected a.swu to be released after the upload")
	}
	if got := audit.actions(); len(got) != 1 || got[0] != "software.upload" {
		t.Fatalf("expected a single software.upload audit entry, got %v", got)
	}
}

func TestTransferService_ImportBanners(t *testing.T) {
	tr := &fakeTransport{}
	svc := newTestTransferService(t, tr, newMockFileStore(), newMockAuditRepo())

	if err := svc.ImportURL("admin", "", "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	if err := svc.ImportURL("admin", "", "https://example.com/fw.swu"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Wait()
	if st := svc.Status(); st.Notice != transfer.ImportNotice || st.Warning != "" {
		t.Fatalf("expected success notice, got %+v", st)
	}

	tr.importErr = &client.APIError{Status: http.StatusBadRequest, Detail: "unreachable url", HasDetail: true}
	if err := svc.ImportURL("admin", "", "https://example.com/gone.swu"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.Wait()
	if st := svc.Status(); st.Warning != "unreachable url" || st.Notice != "" {
		t.Fatalf("expected warning banner only, got %+v", st)
	}
}
