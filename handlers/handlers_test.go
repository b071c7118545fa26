package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"tour-booking-api/backend"
	"tour-booking-api/config"
	"tour-booking-api/database"
	"tour-booking-api/models"
	"tour-booking-api/queue"
	"tour-booking-api/services/auth"
	"tour-booking-api/storage"
	"tour-booking-api/store"
)

// fakeQueue records enqueued jobs instead of touching Redis.
type fakeQueue struct {
	mu   sync.Mutex
	jobs []fakeJob
}

type fakeJob struct {
	Type  queue.JobType
	Data  map[string]interface{}
	Delay time.Duration
}

func (f *fakeQueue) Enqueue(ctx context.Context, jobType queue.JobType, data map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, fakeJob{Type: jobType, Data: data})
	return nil
}

func (f *fakeQueue) EnqueueIn(ctx context.Context, jobType queue.JobType, data map[string]interface{}, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, fakeJob{Type: jobType, Data: data, Delay: delay})
	return nil
}

func (f *fakeQueue) all() []fakeJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeJob(nil), f.jobs...)
}

// fakeDrafts is an in-memory DraftStore.
type fakeDrafts struct {
	mu     sync.Mutex
	drafts map[string]models.CheckoutDraft
}

func newFakeDrafts() *fakeDrafts {
	return &fakeDrafts{drafts: make(map[string]models.CheckoutDraft)}
}

func (f *fakeDrafts) SaveCheckoutDraft(ctx context.Context, draft models.CheckoutDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts[draft.DraftID] = draft
	return nil
}

func (f *fakeDrafts) GetCheckoutDraft(ctx context.Context, draftID string) (*models.CheckoutDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	draft, ok := f.drafts[draftID]
	if !ok {
		return nil, database.ErrDraftNotFound
	}
	return &draft, nil
}

func (f *fakeDrafts) DeleteCheckoutDraft(ctx context.Context, draftID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, draftID)
	return nil
}

// testEnv wires the handlers against a fake booking backend and carries the
// browser session cookie between requests.
type testEnv struct {
	t          *testing.T
	router     *mux.Router
	backendMux *http.ServeMux
	queue      *fakeQueue
	drafts     *fakeDrafts
	cookies    map[string]*http.Cookie
}

const testJWTSecret = "test-jwt-secret"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backendMux := http.NewServeMux()
	// Anonymous by default; tests override by registering their own handler
	// before the first request.
	backendMux.HandleFunc("/api/auth/session", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "not authenticated"})
	})
	ts := httptest.NewServer(backendMux)
	t.Cleanup(ts.Close)

	bc := backend.NewClient(ts.URL)
	stores := store.NewManager(bc, storage.NewMemory(), time.Hour)
	t.Cleanup(stores.Close)

	cfg := &config.Config{
		Session: config.SessionConfig{Secret: "test-session-secret", MaxAge: 3600},
	}
	sm := NewSessionManager(cfg, stores, auth.NewJWTService(testJWTSecret))

	q := &fakeQueue{}
	drafts := newFakeDrafts()

	cartHandler := NewCartHandler(sm)
	checkoutHandler := NewCheckoutHandler(sm, bc, drafts, q)
	paymentHandler := NewPaymentHandler(sm, q)
	authHandler := NewAuthHandler(sm, bc)
	proxyHandler := NewProxyHandler(bc)

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cart", cartHandler.GetCart).Methods("GET")
	api.HandleFunc("/cart", cartHandler.AddItem).Methods("POST")
	api.HandleFunc("/cart/items", cartHandler.AddItem).Methods("POST")
	api.HandleFunc("/cart/items/{id}", cartHandler.RemoveItem).Methods("DELETE")
	api.HandleFunc("/checkout", checkoutHandler.GetCheckout).Methods("GET")
	api.HandleFunc("/checkout/contact", checkoutHandler.UpdateContact).Methods("PUT")
	api.HandleFunc("/checkout/participants/{index}", checkoutHandler.UpdateParticipant).Methods("PUT")
	api.HandleFunc("/checkout/participants/{index}/copy-first", checkoutHandler.CopyFromFirstParticipant).Methods("POST")
	api.HandleFunc("/checkout/payment-method", checkoutHandler.SelectPaymentMethod).Methods("PUT")
	api.HandleFunc("/checkout/step/next", checkoutHandler.NextStep).Methods("POST")
	api.HandleFunc("/checkout/step/prev", checkoutHandler.PrevStep).Methods("POST")
	api.HandleFunc("/checkout/draft", checkoutHandler.SaveDraft).Methods("POST")
	api.HandleFunc("/checkout/draft/{id}", checkoutHandler.LoadDraft).Methods("GET")
	api.HandleFunc("/checkout/draft/{id}", checkoutHandler.DeleteDraft).Methods("DELETE")
	api.HandleFunc("/checkout/submit", checkoutHandler.Submit).Methods("POST")
	api.HandleFunc("/payments", paymentHandler.Initialize).Methods("POST")
	api.HandleFunc("/payments/confirm", paymentHandler.Confirm).Methods("GET")
	api.HandleFunc("/payments/{id}/status", paymentHandler.Status).Methods("GET")
	api.HandleFunc("/payments/{id}/poll", paymentHandler.StartPolling).Methods("POST")
	api.HandleFunc("/payments/{id}/poll", paymentHandler.StopPolling).Methods("DELETE")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST")
	api.HandleFunc("/auth/session", authHandler.Session).Methods("GET")
	api.HandleFunc("/tours", proxyHandler.Forward("/api/tours")).Methods("GET")
	api.HandleFunc("/tours/{id}", proxyHandler.Forward("/api/tours/{id}")).Methods("GET")

	return &testEnv{
		t:          t,
		router:     router,
		backendMux: backendMux,
		queue:      q,
		drafts:     drafts,
		cookies:    make(map[string]*http.Cookie),
	}
}

// do performs one request, carrying accumulated cookies like a browser.
func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal request body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rdr)
	for _, c := range e.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(e.cookies, c.Name)
			continue
		}
		e.cookies[c.Name] = c
	}
	return rec
}

func (e *testEnv) decode(rec *httptest.ResponseRecorder, out interface{}) {
	e.t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		e.t.Fatalf("decode response: %v", err)
	}
}

// apiEnvelope mirrors the wire envelope with a raw Data payload.
type apiEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) envelope(rec *httptest.ResponseRecorder) apiEnvelope {
	e.t.Helper()
	var env apiEnvelope
	e.decode(rec, &env)
	return env
}

func jsonUnmarshal(raw json.RawMessage, out interface{}) error {
	return json.Unmarshal(raw, out)
}
