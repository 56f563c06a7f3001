package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/CaioWing/harbor-console/internal/storage"
)

// CleanupService removes staged upload files once they are older than the
// retention period.
type CleanupService struct {
	store     storage.FileStore
	retention time.Duration
	inUse     func(name string) bool
	audit     *AuditService
	now       func() time.Time
	log       *slog.Logger
}

// NewCleanupService skips files for which inUse reports true. inUse and
// audit may be nil.
func NewCleanupService(store storage.FileStore, retention time.Duration, inUse func(string) bool, audit *AuditService, log *slog.Logger) *CleanupService {
	if inUse == nil {
		inUse = func(string) bool { return false }
	}
	return &CleanupService{
		store:     store,
		retention: retention,
		inUse:     inUse,
		audit:     audit,
		now:       time.Now,
		log:       log,
	}
}

// StartScheduler runs cleanup at the specified interval. Call in a goroutine.
func (s *CleanupService) StartScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("cleanup scheduler started", "interval", interval, "retention", s.retention)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("cleanup scheduler stopped")
			return
		case <-ticker.C:
			s.RunCleanup(ctx)
		}
	}
}

// RunCleanup deletes every staged file last modified before now minus the
// retention, and returns how many were removed.
func (s *CleanupService) RunCleanup(ctx context.Context) int {
	files, err := s.store.List()
	if err != nil {
		s.log.Warn("cleanup: failed to list staged files", "err", err)
		return 0
	}

	threshold := s.now().Add(-s.retention)
	var removed []string
	for _, f := range files {
		if ctx.Err() != nil {
			break
		}
		if !f.ModTime.Before(threshold) || s.inUse(f.Name) {
			continue
		}
		if err := s.store.Delete(f.Name); err != nil {
			s.log.Warn("cleanup: failed to delete staged file", "name", f.Name, "err", err)
			continue
		}
		removed = append(removed, f.Name)
	}

	s.audit.RecordCleanup(context.WithoutCancel(ctx), removed, s.retention)
	s.log.Info("cleanup completed", "removed", len(removed))
	return len(removed)
}
