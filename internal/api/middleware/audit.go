package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/CaioWing/harbor-console/internal/service"
)

// AuditLog records console-local mutations. Bulk actions and transfers are
// audited by their services, which know the affected ids.
func AuditLog(auditSvc *service.AuditService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			// Only audit mutating requests that succeeded
			if r.Method == http.MethodGet || r.Method == http.MethodOptions {
				return
			}
			if rw.status >= 400 {
				return
			}

			action, view := classifyRequest(r.Method, r.URL.Path)
			if action == "" {
				return
			}

			var targets []string
			if name := chi.URLParam(r, "name"); name != "" {
				targets = append(targets, name)
			}
			actor := service.Actor{Name: User(r), IP: r.RemoteAddr}
			details := map[string]interface{}{"method": r.Method, "path": r.URL.Path, "status": rw.status}
			auditSvc.RecordRequest(r.Context(), actor, action, view, details, targets...)
		})
	}
}

func classifyRequest(method, path string) (action, view string) {
	p := strings.TrimPrefix(path, "/api/v1/console/")

	switch {
	case strings.HasPrefix(p, "staging/") && method == http.MethodPut:
		return "staging.save", "software"
	case strings.HasPrefix(p, "staging/") && method == http.MethodDelete:
		return "staging.delete", "software"
	case strings.HasPrefix(p, "views/") && strings.HasSuffix(p, "/params") && method == http.MethodPut:
		return "views.params", strings.Split(strings.TrimPrefix(p, "views/"), "/")[0]
	default:
		return "", ""
	}
}
