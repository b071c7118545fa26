package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-booking-api/models"
)

type staticResolver struct {
	user *models.SessionUser
	err  error
}

func (r *staticResolver) ResolveUser(*http.Request) (*models.SessionUser, error) {
	return r.user, r.err
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name       string
		resolver   *staticResolver
		wantStatus int
		wantNext   bool
	}{
		{
			name:       "anonymous gets 401",
			resolver:   &staticResolver{},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "customer gets 403",
			resolver:   &staticResolver{user: &models.SessionUser{Email: "c@example.com", Role: models.RoleCustomer}},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "admin passes through",
			resolver:   &staticResolver{user: &models.SessionUser{Email: "a@example.com", Role: models.RoleAdmin}},
			wantStatus: http.StatusOK,
			wantNext:   true,
		},
		{
			name:       "resolver failure gets 500",
			resolver:   &staticResolver{err: errors.New("backend unreachable")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var nextCalled bool
			var ctxUser *models.SessionUser
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				ctxUser = GetUserFromContext(r.Context())
			})

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/admin/tours", nil)
			RequireAdmin(tt.resolver)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantNext, nextCalled)
			if tt.wantNext {
				require.NotNil(t, ctxUser)
				assert.Equal(t, "a@example.com", ctxUser.Email)
			}
		})
	}
}

func TestGetUserFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, GetUserFromContext(req.Context()))
}
