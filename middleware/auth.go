package middleware

import (
	"context"
	"log"
	"net/http"

	"tour-booking-api/models"
	"tour-booking-api/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

// SessionResolver turns a request into the identity its session cookie
// represents. A nil user means anonymous.
type SessionResolver interface {
	ResolveUser(r *http.Request) (*models.SessionUser, error)
}

// RequireAdmin gates the admin proxy surface. The resolved user lands in
// the request context for downstream handlers.
func RequireAdmin(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.ResolveUser(r)
			if err != nil {
				log.Printf("Session resolution failed from %s: %v", r.RemoteAddr, err)
				utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to verify session")
				return
			}
			if user == nil {
				utils.SendErrorResponse(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !user.IsAdmin() {
				log.Printf("Non-admin user %s attempted to access admin endpoint %s", user.Email, r.URL.Path)
				utils.SendErrorResponse(w, http.StatusForbidden, "This endpoint requires an admin account")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserFromContext returns the user placed by RequireAdmin, or nil.
func GetUserFromContext(ctx context.Context) *models.SessionUser {
	user, _ := ctx.Value(UserContextKey).(*models.SessionUser)
	return user
}
