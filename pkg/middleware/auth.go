package middleware

import (
	"net/http"

	"github.com/orgdeck/orgdeck/pkg/auth"
	"github.com/orgdeck/orgdeck/pkg/contextkeys"
	"github.com/orgdeck/orgdeck/pkg/httputil"
)

// AuthMiddleware authenticates requests that need an identity but no
// permission flag (logout, accepting an invitation, creating the first
// organization). Routes needing a flag go through the rbac gate instead.
type AuthMiddleware struct {
	verifier auth.Verifier
	users    *auth.UserStore
}

// NewAuthMiddleware creates authentication middleware
func NewAuthMiddleware(verifier auth.Verifier, users *auth.UserStore) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, users: users}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := auth.ExtractBearer(r.Header.Get("Authorization"))
		if credential == "" {
			httputil.WriteUnauthorized(w, "No authentication token provided")
			return
		}

		userID, err := m.verifier.Verify(r.Context(), credential)
		if err != nil {
			httputil.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		user, err := m.users.GetUserByID(r.Context(), userID)
		if err != nil {
			httputil.WriteUnauthorized(w, "User not found")
			return
		}

		ctx := contextkeys.WithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
