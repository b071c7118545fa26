// Package store holds the per-session state machines: cart, checkout wizard,
// payment session and identity cache. State objects are explicit and
// constructor-injected, never ambient; handlers obtain them through Manager.
package store

import (
	"log"
	"sync"
	"time"

	"tour-booking-api/backend"
	"tour-booking-api/storage"
)

// Identity carries what a request knows about its caller. Cookie is the raw
// Cookie header, forwarded to the backend for session propagation.
type Identity struct {
	Authenticated bool
	Cookie        string
}

// Session bundles the state machines for one browser session.
type Session struct {
	ID       string
	Cart     *CartStore
	Checkout *CheckoutStore
	Payment  *PaymentStore
	Auth     *AuthStore

	lastSeen time.Time
}

// Manager hands out Session bundles keyed by session id and evicts idle
// ones. Payment pollers are stopped on eviction so no goroutine outlives
// its session.
type Manager struct {
	mu       sync.Mutex
	backend  *backend.Client
	storage  storage.Store
	sessions map[string]*Session
	maxIdle  time.Duration
	done     chan struct{}
	once     sync.Once
}

func NewManager(bc *backend.Client, st storage.Store, maxIdle time.Duration) *Manager {
	if maxIdle <= 0 {
		maxIdle = 2 * time.Hour
	}
	m := &Manager{
		backend:  bc,
		storage:  st,
		sessions: make(map[string]*Session),
		maxIdle:  maxIdle,
		done:     make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Session returns the bundle for id, creating and restoring it on first use.
func (m *Manager) Session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		s.lastSeen = time.Now()
		return s
	}

	s := &Session{
		ID:       id,
		Cart:     NewCartStore(m.backend, m.storage, id),
		Checkout: NewCheckoutStore(m.storage, id),
		Payment:  NewPaymentStore(m.backend),
		Auth:     NewAuthStore(m.backend),
		lastSeen: time.Now(),
	}
	m.sessions[id] = s
	return s
}

// ExpirePayment marks the named payment for a session expired if it is
// still pending. A missing session means the bundle was already evicted;
// nothing to do then.
func (m *Manager) ExpirePayment(sessionID, paymentID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return s.Payment.MarkExpired(paymentID)
}

func (m *Manager) janitor() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-m.maxIdle)
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			s.Payment.StopPolling()
			delete(m.sessions, id)
		}
	}
}

// Close stops the janitor and every active payment poller.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.done) })

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Payment.StopPolling()
		delete(m.sessions, id)
	}
	log.Println("Session manager closed")
}
