package handlers

import (
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"tour-booking-api/backend"
	"tour-booking-api/utils"
)

// ProxyHandler forwards a request to the backend path-for-path: cookie
// header, query string and body pass through unmodified, backend errors are
// normalized into the uniform envelope. No business logic, retries or
// caching live here.
type ProxyHandler struct {
	backend *backend.Client
}

func NewProxyHandler(bc *backend.Client) *ProxyHandler {
	return &ProxyHandler{backend: bc}
}

// Forward returns a handler proxying to pathTemplate, with {name}
// placeholders filled from the route vars.
func (p *ProxyHandler) Forward(pathTemplate string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := pathTemplate
		for name, value := range mux.Vars(r) {
			path = strings.ReplaceAll(path, "{"+name+"}", value)
		}

		var body io.Reader
		if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
			body = r.Body
		}

		resp, err := p.backend.Do(r.Context(), r.Method, path, r.URL.Query(), r.Header.Get("Cookie"), body)
		if err != nil {
			status, msg := backend.ErrorStatusAndMessage(err)
			utils.SendErrorResponse(w, status, msg)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			apiErr := backend.NormalizeError(resp)
			utils.SendErrorResponse(w, apiErr.StatusCode, apiErr.Message)
			return
		}

		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(resp.StatusCode)
		if _, err := io.Copy(w, resp.Body); err != nil {
			log.Printf("Error streaming backend response for %s %s: %v", r.Method, path, err)
		}
	}
}
