package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"tour-booking-api/config"
	"tour-booking-api/models"
	"tour-booking-api/services/auth"
	"tour-booking-api/store"
)

const sessionName = "booking-session"

// SessionManager resolves the browser session cookie into the per-session
// store bundle and the caller's identity. Identity comes from the
// backend-issued session JWT when present, with the backend session
// endpoint as fallback.
type SessionManager struct {
	cookies *sessions.CookieStore
	stores  *store.Manager
	jwt     *auth.JWTService
}

type RequestContext struct {
	Session *store.Session
	Ident   store.Identity
	User    *models.SessionUser
}

func NewSessionManager(cfg *config.Config, stores *store.Manager, jwtService *auth.JWTService) *SessionManager {
	cookieStore := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		Domain:   cfg.Session.Domain,
		MaxAge:   cfg.Session.MaxAge,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{
		cookies: cookieStore,
		stores:  stores,
		jwt:     jwtService,
	}
}

// Context loads (or creates) the browser session and returns its store
// bundle plus the request identity.
func (sm *SessionManager) Context(w http.ResponseWriter, r *http.Request) (*RequestContext, error) {
	session, err := sm.cookies.Get(r, sessionName)
	if err != nil {
		// A tampered cookie gets a fresh session rather than an error.
		session, _ = sm.cookies.New(r, sessionName)
	}

	sid, ok := session.Values["sid"].(string)
	if !ok || sid == "" {
		sid = uuid.New().String()
		session.Values["sid"] = sid
		if err := session.Save(r, w); err != nil {
			return nil, err
		}
	}

	bundle := sm.stores.Session(sid)

	user := sm.jwt.UserFromRequest(r)
	if user != nil {
		bundle.Auth.Prime(user)
	} else if cookie := r.Header.Get("Cookie"); cookie != "" {
		// Backend-side sessions without a readable JWT still count.
		user, _ = bundle.Auth.FetchSession(r.Context(), cookie)
	}

	return &RequestContext{
		Session: bundle,
		Ident: store.Identity{
			Authenticated: user != nil,
			Cookie:        r.Header.Get("Cookie"),
		},
		User: user,
	}, nil
}

// ResolveUser implements middleware.SessionResolver.
func (sm *SessionManager) ResolveUser(r *http.Request) (*models.SessionUser, error) {
	if user := sm.jwt.UserFromRequest(r); user != nil {
		return user, nil
	}

	cookie := r.Header.Get("Cookie")
	if cookie == "" {
		return nil, nil
	}

	session, err := sm.cookies.Get(r, sessionName)
	if err != nil {
		return nil, nil
	}
	sid, ok := session.Values["sid"].(string)
	if !ok || sid == "" {
		return nil, nil
	}
	return sm.stores.Session(sid).Auth.FetchSession(r.Context(), cookie)
}
