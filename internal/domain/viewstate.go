package domain

import (
	"context"
	"time"
)

// ViewState is the persisted paging state of one grid, keyed by view name.
type ViewState struct {
	View    string     `json:"view"`
	Params  PageParams `json:"params"`
	SavedAt time.Time  `json:"saved_at"`
}

type ViewStateRepository interface {
	Get(ctx context.Context, view string) (*ViewState, error)
	Upsert(ctx context.Context, state *ViewState) error
	Delete(ctx context.Context, view string) error
}
