package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CaioWing/harbor-console/internal/domain"
)

// ViewStateService persists grid paging parameters. State saved before the
// cutoff was written by an incompatible column layout and is dropped.
type ViewStateService struct {
	repo   domain.ViewStateRepository
	cutoff time.Time
	log    *slog.Logger
}

func NewViewStateService(repo domain.ViewStateRepository, cutoff time.Time, log *slog.Logger) *ViewStateService {
	return &ViewStateService{repo: repo, cutoff: cutoff, log: log}
}

func (s *ViewStateService) Load(ctx context.Context, view string) (domain.PageParams, bool, error) {
	st, err := s.repo.Get(ctx, view)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.PageParams{}, false, nil
		}
		return domain.PageParams{}, false, fmt.Errorf("load view state: %w", err)
	}

	if st.SavedAt.Before(s.cutoff) {
		s.log.Info("discarding outdated view state", "view", view, "saved_at", st.SavedAt)
		if err := s.repo.Delete(ctx, view); err != nil {
			s.log.Warn("failed to delete outdated view state", "view", view, "err", err)
		}
		return domain.PageParams{}, false, nil
	}
	return st.Params, true, nil
}

func (s *ViewStateService) Save(ctx context.Context, view string, params domain.PageParams) error {
	if err := s.repo.Upsert(ctx, &domain.ViewState{View: view, Params: params}); err != nil {
		return fmt.Errorf("save view state: %w", err)
	}
	return nil
}

// Reset forgets the saved state of a view.
func (s *ViewStateService) Reset(ctx context.Context, view string) error {
	return s.repo.Delete(ctx, view)
}
