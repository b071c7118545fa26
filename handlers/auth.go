package handlers

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"strings"

	"tour-booking-api/backend"
	"tour-booking-api/models"
	"tour-booking-api/store"
	"tour-booking-api/utils"
)

type AuthHandler struct {
	sessions *SessionManager
	backend  *backend.Client
}

func NewAuthHandler(sm *SessionManager, bc *backend.Client) *AuthHandler {
	return &AuthHandler{sessions: sm, backend: bc}
}

// Login proxies credentials to the backend and re-emits its Set-Cookie
// headers verbatim so the session cookie lands on this domain. On success
// the anonymous cart is merged into the now-authenticated backend cart.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.backend.Do(r.Context(), http.MethodPost, "/api/auth/login", nil, rc.Ident.Cookie, bytes.NewReader(body))
	if err != nil {
		status, msg := backend.ErrorStatusAndMessage(err)
		utils.SendErrorResponse(w, status, msg)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := backend.NormalizeError(resp)
		utils.SendErrorResponse(w, apiErr.StatusCode, apiErr.Message)
		return
	}

	setCookies := resp.Header.Values("Set-Cookie")
	for _, c := range setCookies {
		w.Header().Add("Set-Cookie", c)
	}

	// Identity changed: drop the cached anonymous session and merge the
	// local cart under the fresh backend cookies.
	rc.Session.Auth.Invalidate()
	ident := store.Identity{
		Authenticated: true,
		Cookie:        cookieHeaderFromSetCookies(setCookies, rc.Ident.Cookie),
	}
	if _, err := rc.Session.Cart.MergeToRemote(r.Context(), ident); err != nil {
		log.Printf("Cart merge after login failed: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// Logout proxies to the backend and re-emits its cookie-clearing headers.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	resp, err := h.backend.Do(r.Context(), http.MethodPost, "/api/auth/logout", nil, rc.Ident.Cookie, nil)
	if err != nil {
		status, msg := backend.ErrorStatusAndMessage(err)
		utils.SendErrorResponse(w, status, msg)
		return
	}
	defer resp.Body.Close()

	for _, c := range resp.Header.Values("Set-Cookie") {
		w.Header().Add("Set-Cookie", c)
	}

	rc.Session.Auth.Invalidate()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := backend.NormalizeError(resp)
		utils.SendErrorResponse(w, apiErr.StatusCode, apiErr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// Session reports the identity the current cookies resolve to; null data
// means anonymous.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessions.ResolveUser(r)
	if err != nil {
		status, msg := backend.ErrorStatusAndMessage(err)
		utils.SendErrorResponse(w, status, msg)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   user,
	})
}

// cookieHeaderFromSetCookies folds freshly issued cookies over the caller's
// existing Cookie header so the very next backend call carries the new
// session.
func cookieHeaderFromSetCookies(setCookies []string, existing string) string {
	pairs := map[string]string{}
	var order []string

	add := func(name, value string) {
		if _, seen := pairs[name]; !seen {
			order = append(order, name)
		}
		pairs[name] = value
	}

	for _, part := range strings.Split(existing, ";") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 && kv[0] != "" {
			add(kv[0], kv[1])
		}
	}
	for _, sc := range setCookies {
		first := strings.SplitN(sc, ";", 2)[0]
		kv := strings.SplitN(strings.TrimSpace(first), "=", 2)
		if len(kv) == 2 && kv[0] != "" {
			add(kv[0], kv[1])
		}
	}

	var out []string
	for _, name := range order {
		out = append(out, name+"="+pairs[name])
	}
	return strings.Join(out, "; ")
}
