package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/CaioWing/harbor-console/internal/domain"
)

const auditColumns = `id, actor, actor_type, action, view, target_ids, details, ip_address, created_at`

type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	targets := entry.TargetIDs
	if targets == nil {
		targets = []string{}
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO audit_log (actor, actor_type, action, view, target_ids, details, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, entry.Actor, entry.ActorType, entry.Action, entry.View, targets, details, entry.IPAddress).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry %s: %w", entry.Action, err)
	}
	return nil
}

// auditWhere renders the filter as a WHERE clause with positional args.
func auditWhere(f domain.AuditFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Actor != nil {
		add("actor = $%d", *f.Actor)
	}
	if f.Action != nil {
		add("action = $%d", *f.Action)
	}
	if f.View != nil {
		add("view = $%d", *f.View)
	}
	if f.Target != nil {
		add("$%d = ANY(target_ids)", *f.Target)
	}
	if f.Since != nil {
		add("created_at >= $%d", *f.Since)
	}
	if f.Until != nil {
		add("created_at < $%d", *f.Until)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// List expects a filter already normalised by the audit service.
func (r *AuditRepo) List(ctx context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, int, error) {
	where, args := auditWhere(f)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	dir := "DESC"
	if f.SortOrder == "asc" {
		dir = "ASC"
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM audit_log %s ORDER BY created_at %s LIMIT $%d OFFSET $%d`,
		auditColumns, where, dir, n+1, n+2)
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanAuditEntry)
	if err != nil {
		return nil, 0, fmt.Errorf("scan audit entries: %w", err)
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	return entries, total, nil
}

func scanAuditEntry(row pgx.CollectableRow) (*domain.AuditEntry, error) {
	e := &domain.AuditEntry{}
	var details []byte
	if err := row.Scan(
		&e.ID, &e.Actor, &e.ActorType, &e.Action, &e.View,
		&e.TargetIDs, &details, &e.IPAddress, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(details, &e.Details); err != nil {
		e.Details = map[string]interface{}{}
	}
	return e, nil
}
