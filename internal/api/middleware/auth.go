package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/CaioWing/harbor-console/internal/api/response"
	"github.com/CaioWing/harbor-console/internal/auth"
)

type contextKey string

const UserKey contextKey = "user"

// OperatorAuth requires a console session token, taken from the
// Authorization header or, for websocket upgrades, the token query
// parameter.
func OperatorAuth(jwtMgr *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.URL.Query().Get("token")
			if header := r.Header.Get("Authorization"); header != "" {
				token = strings.TrimPrefix(header, "Bearer ")
				if token == header {
					response.Error(w, http.StatusUnauthorized, "invalid authorization format")
					return
				}
			}
			if token == "" {
				response.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			claims, err := jwtMgr.Validate(token)
			if err != nil {
				response.Error(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserKey, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// User returns the authenticated operator, or "anonymous".
func User(r *http.Request) string {
	if u, ok := r.Context().Value(UserKey).(string); ok && u != "" {
		return u
	}
	return "anonymous"
}
