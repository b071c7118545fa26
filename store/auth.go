package store

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tour-booking-api/backend"
	"tour-booking-api/models"
)

const sessionCacheTTL = time.Minute

// AuthStore caches the identity the backend reports for a session cookie.
// The cache is per session and short-lived; Invalidate drops it on logout.
type AuthStore struct {
	mu        sync.Mutex
	backend   *backend.Client
	user      *models.SessionUser
	fetchedAt time.Time
}

func NewAuthStore(bc *backend.Client) *AuthStore {
	return &AuthStore{backend: bc}
}

// FetchSession returns the current user, hitting the backend session
// endpoint when the cache is cold. A nil user with nil error means
// anonymous.
func (s *AuthStore) FetchSession(ctx context.Context, cookie string) (*models.SessionUser, error) {
	s.mu.Lock()
	if s.user != nil && time.Since(s.fetchedAt) < sessionCacheTTL {
		user := *s.user
		s.mu.Unlock()
		return &user, nil
	}
	s.mu.Unlock()

	if cookie == "" {
		return nil, nil
	}

	var user models.SessionUser
	err := s.backend.DoJSON(ctx, http.MethodGet, "/api/auth/session", nil, cookie, nil, &user)
	if err != nil {
		if apiErr, ok := err.(*backend.APIError); ok && apiErr.StatusCode == http.StatusUnauthorized {
			s.Invalidate()
			return nil, nil
		}
		return nil, err
	}

	s.mu.Lock()
	s.user = &user
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	out := user
	return &out, nil
}

// Prime seeds the cache from a locally validated session token, skipping a
// backend round-trip.
func (s *AuthStore) Prime(user *models.SessionUser) {
	if user == nil {
		return
	}
	s.mu.Lock()
	u := *user
	s.user = &u
	s.fetchedAt = time.Now()
	s.mu.Unlock()
}

func (s *AuthStore) Invalidate() {
	s.mu.Lock()
	s.user = nil
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}
