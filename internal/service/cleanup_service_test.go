package service

import (
	"context"
	"testing"
	"time"

	"github.com/CaioWing/harbor-console/internal/domain"
)

func TestCleanupService_RemovesExpiredFiles(t *testing.T) {
	store := newMockFileStore()
	now := time.Now()
	store.put("old.swu", []byte("a"), now.Add(-48*time.Hour))
	store.put("busy.swu", []byte("b"), now.Add(-48*time.Hour))
	store.put("fresh.swu", []byte("c"), now.Add(-time.Minute))

	audit := newMockAuditRepo()
	svc := NewCleanupService(store, 24*time.Hour, func(name string) bool { return name == "busy.swu" }, NewAuditService(audit, testLogger()), testLogger())
	svc.now = func() time.Time { return now }

	removed := svc.RunCleanup(context.Background())
	if removed != 1 {
		t.Fatalf("expected 1 removed file, got %d", removed)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "old.swu" {
		t.Fatalf("expected old.swu to be deleted, got %v", store.deleted)
	}
	if got := audit.actions(); len(got) != 1 || got[0] != "staging.expire" {
		t.Fatalf("expected one staging.expire audit entry, got %v", got)
	}
	if e := audit.entries[0]; e.ActorType != domain.ActorSystem || len(e.TargetIDs) != 1 || e.TargetIDs[0] != "old.swu" {
		t.Fatalf("expected system entry targeting old.swu, got %+v", e)
	}
}

func TestCleanupService_SchedulerStopsOnCancel(t *testing.T) {
	svc := NewCleanupService(newMockFileStore(), time.Hour, nil, nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartScheduler(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
