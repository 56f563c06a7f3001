package management

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/CaioWing/harbor-console/internal/api/response"
	"github.com/CaioWing/harbor-console/internal/domain"
	"github.com/CaioWing/harbor-console/internal/service"
)

type AuditHandler struct {
	auditSvc *service.AuditService
}

func NewAuditHandler(auditSvc *service.AuditService) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc}
}

// List answers GET /audit. Query: actor, action, view, target (one affected
// id), since/until (RFC 3339), order (asc|desc), page, per_page.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilter(r.URL.Query())
	if err != nil {
		response.FromError(w, err)
		return
	}
	filter.Page, filter.PerPage = response.ParsePagination(r)

	entries, total, err := h.auditSvc.List(r.Context(), filter)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Paginated(w, http.StatusOK, entries, filter.Page, filter.PerPage, total)
}

func auditFilter(q url.Values) (domain.AuditFilter, error) {
	f := domain.AuditFilter{
		Actor:     optional(q, "actor"),
		Action:    optional(q, "action"),
		View:      optional(q, "view"),
		Target:    optional(q, "target"),
		SortOrder: q.Get("order"),
	}
	var err error
	if f.Since, err = optionalTime(q, "since"); err != nil {
		return f, err
	}
	if f.Until, err = optionalTime(q, "until"); err != nil {
		return f, err
	}
	return f, nil
}

func optional(q url.Values, key string) *string {
	if v := q.Get(key); v != "" {
		return &v
	}
	return nil
}

func optionalTime(q url.Values, key string) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC 3339: %w", key, domain.ErrInvalidInput)
	}
	return &t, nil
}
