package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CaioWing/harbor-console/internal/domain"
)

type ViewStateRepo struct {
	pool *pgxpool.Pool
}

func NewViewStateRepo(pool *pgxpool.Pool) *ViewStateRepo {
	return &ViewStateRepo{pool: pool}
}

func (r *ViewStateRepo) Get(ctx context.Context, view string) (*domain.ViewState, error) {
	st := &domain.ViewState{}
	var paramsJSON []byte
	err := r.pool.QueryRow(ctx, `
		SELECT view, params, saved_at FROM view_state WHERE view = $1
	`, view).Scan(&st.View, &paramsJSON, &st.SavedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get view state: %w", err)
	}
	if err := json.Unmarshal(paramsJSON, &st.Params); err != nil {
		return nil, fmt.Errorf("decode view state %s: %w", view, err)
	}
	return st, nil
}

func (r *ViewStateRepo) Upsert(ctx context.Context, st *domain.ViewState) error {
	paramsJSON, err := json.Marshal(st.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO view_state (view, params, saved_at)
		VALUES ($1, $2, now())
		ON CONFLICT (view) DO UPDATE SET params = EXCLUDED.params, saved_at = EXCLUDED.saved_at
		RETURNING saved_at
	`, st.View, paramsJSON).Scan(&st.SavedAt)
	if err != nil {
		return fmt.Errorf("upsert view state: %w", err)
	}
	return nil
}

func (r *ViewStateRepo) Delete(ctx context.Context, view string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM view_state WHERE view = $1`, view); err != nil {
		return fmt.Errorf("delete view state: %w", err)
	}
	return nil
}
