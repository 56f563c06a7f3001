package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/CaioWing/harbor-console/internal/domain"
)

// Actor identifies who issued an audited operation.
type Actor struct {
	Name string
	IP   string
}

// SystemActor marks entries written by background jobs.
var SystemActor = Actor{Name: "console"}

// AuditService turns console operations into audit entries. Writes never
// fail the operation being recorded; a nil service records nothing.
type AuditService struct {
	repo domain.AuditRepository
	log  *slog.Logger
}

func NewAuditService(repo domain.AuditRepository, log *slog.Logger) *AuditService {
	return &AuditService{repo: repo, log: log}
}

// RecordAction records a bulk action a view sent to the backend for the
// selection in cmd.
func (s *AuditService) RecordAction(ctx context.Context, actor Actor, view, action string, cmd domain.SelectionCommand, method string) {
	s.write(ctx, actor, &domain.AuditEntry{
		Action:    view + "." + action,
		View:      view,
		TargetIDs: cmd.IDs,
		Details:   map[string]interface{}{"method": method, "count": len(cmd.IDs)},
	})
}

// RecordTransfer records the outcome of an upload or a remote import.
func (s *AuditService) RecordTransfer(ctx context.Context, actor Actor, kind domain.SourceKind, source string, err error) {
	action := "software.upload"
	if kind == domain.SourceRemoteURL {
		action = "software.import"
	}
	details := map[string]interface{}{"kind": string(kind), "outcome": string(domain.TransferCompleted)}
	if err != nil {
		details["outcome"] = string(domain.TransferFailed)
		details["error"] = err.Error()
	}
	s.write(ctx, actor, &domain.AuditEntry{
		Action:    action,
		View:      "software",
		TargetIDs: []string{source},
		Details:   details,
	})
}

// RecordRequest records a console-local change such as staging a file or
// saving view parameters.
func (s *AuditService) RecordRequest(ctx context.Context, actor Actor, action, view string, details map[string]interface{}, targets ...string) {
	s.write(ctx, actor, &domain.AuditEntry{
		Action:    action,
		View:      view,
		TargetIDs: targets,
		Details:   details,
	})
}

// RecordCleanup records staged files removed by the retention job.
func (s *AuditService) RecordCleanup(ctx context.Context, removed []string, retention time.Duration) {
	if len(removed) == 0 {
		return
	}
	s.write(ctx, SystemActor, &domain.AuditEntry{
		Action:    "staging.expire",
		View:      "software",
		TargetIDs: removed,
		Details:   map[string]interface{}{"retention": retention.String()},
	})
}

func (s *AuditService) write(ctx context.Context, actor Actor, entry *domain.AuditEntry) {
	if s == nil {
		return
	}
	entry.Actor = actor.Name
	entry.IPAddress = actor.IP
	entry.ActorType = domain.ActorOperator
	if actor == SystemActor {
		entry.ActorType = domain.ActorSystem
	}
	if entry.TargetIDs == nil {
		entry.TargetIDs = []string{}
	}
	if entry.Details == nil {
		entry.Details = map[string]interface{}{}
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Warn("failed to write audit entry", "action", entry.Action, "targets", len(entry.TargetIDs), "err", err)
	}
}

// List validates the filter before handing it to the repository.
func (s *AuditService) List(ctx context.Context, f domain.AuditFilter) ([]*domain.AuditEntry, int, error) {
	switch f.SortOrder {
	case "", "asc", "desc":
	default:
		return nil, 0, fmt.Errorf("audit order %q: %w", f.SortOrder, domain.ErrInvalidInput)
	}
	if f.Since != nil && f.Until != nil && f.Until.Before(*f.Since) {
		return nil, 0, fmt.Errorf("audit window ends before it starts: %w", domain.ErrInvalidInput)
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
	return s.repo.List(ctx, f)
}
