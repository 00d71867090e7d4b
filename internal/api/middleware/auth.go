package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/supportlens/supportlens/internal/api"
	"github.com/supportlens/supportlens/internal/domain"
)

type contextKey string

const RoleKey contextKey = "role"

// AuthValidator resolves a bearer token to the role it carries.
type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (domain.Role, error)
}

// APIKeyAuth authenticates requests with a Bearer API key and stores the
// resolved role in the request context.
func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			role, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			ctx := context.WithValue(r.Context(), RoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose key does not carry the admin role.
// It must run after APIKeyAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := GetRole(r.Context())
		if !role.CanManageKnowledgeBase() {
			api.Error(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAgent rejects requests whose key cannot work tickets. Both agent and
// admin keys pass. It must run after APIKeyAuth.
func RequireAgent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := GetRole(r.Context())
		if !role.CanWorkTickets() {
			api.Error(w, http.StatusForbidden, "agent role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetRole returns the authenticated role from context.
func GetRole(ctx context.Context) domain.Role {
	role, _ := ctx.Value(RoleKey).(domain.Role)
	return role
}
