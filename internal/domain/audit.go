package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	ActorOperator = "operator"
	ActorSystem   = "system"
)

// AuditEntry records one operator action issued through the console.
type AuditEntry struct {
	ID        uuid.UUID              `json:"id"`
	Actor     string                 `json:"actor"`
	ActorType string                 `json:"actor_type"` // operator, system
	Action    string                 `json:"action"`     // e.g. devices.force_update, software.upload
	View      string                 `json:"view"`       // devices, software, rollouts, users
	TargetIDs []string               `json:"target_ids"`
	Details   map[string]interface{} `json:"details,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type AuditFilter struct {
	Actor     *string
	Action    *string
	View      *string
	Target    *string // matches any of TargetIDs
	Since     *time.Time
	Until     *time.Time
	Page      int
	PerPage   int
	SortOrder string
}

type AuditRepository interface {
	Create(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]*AuditEntry, int, error)
}
