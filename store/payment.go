package store

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"tour-booking-api/backend"
	"tour-booking-api/models"
)

const DefaultPollInterval = 5 * time.Second

// PaymentStore wraps payment initialization against the backend and tracks
// one current payment session. Asynchronous providers (PIX) are confirmed by
// polling; redirect providers (Transbank) by a callback token exchange. At
// most one poller runs at a time and it stops itself on the first terminal
// status. In-flight status fetches are not cancelled, so a stale response
// can still land after a newer one; the id match is the only guard.
type PaymentStore struct {
	mu         sync.Mutex
	backend    *backend.Client
	current    *models.PaymentSession
	processing bool
	pollStop   chan struct{}
	pollDone   chan struct{}
}

func NewPaymentStore(bc *backend.Client) *PaymentStore {
	return &PaymentStore{backend: bc}
}

// Current returns a copy of the stored payment session, or nil.
func (s *PaymentStore) Current() *models.PaymentSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}

func (s *PaymentStore) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// InitializePayment creates a payment session at the backend and stores the
// full provider response as the current payment.
func (s *PaymentStore) InitializePayment(ctx context.Context, ident Identity, req models.PaymentInitRequest) (*models.PaymentSession, error) {
	s.mu.Lock()
	s.processing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.processing = false
		s.mu.Unlock()
	}()

	var session models.PaymentSession
	if err := s.backend.DoJSON(ctx, http.MethodPost, "/api/payments", nil, ident.Cookie, req, &session); err != nil {
		_, msg := backend.ErrorStatusAndMessage(err)
		log.Printf("Payment initialization failed for booking %s: %s", req.BookingID, msg)
		return nil, err
	}

	s.mu.Lock()
	s.current = &session
	s.mu.Unlock()

	out := session
	return &out, nil
}

// GetPaymentStatus fetches the current status for paymentID and patches the
// stored session only when the id matches, so a stale poll can never
// clobber an unrelated in-flight payment.
func (s *PaymentStore) GetPaymentStatus(ctx context.Context, ident Identity, paymentID string) (models.PaymentStatus, error) {
	var resp models.PaymentStatusResponse
	if err := s.backend.DoJSON(ctx, http.MethodGet, "/api/payments/"+paymentID+"/status", nil, ident.Cookie, nil, &resp); err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.current != nil && s.current.PaymentID == resp.PaymentID {
		s.current.Status = resp.Status
	}
	s.mu.Unlock()

	return resp.Status, nil
}

// StartPolling begins a recurring status check for paymentID. Any existing
// poller is stopped first; the new one stops itself once it observes a
// terminal status.
func (s *PaymentStore) StartPolling(ident Identity, paymentID string, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	s.mu.Lock()
	s.stopPollingLocked()
	stop := make(chan struct{})
	done := make(chan struct{})
	s.pollStop = stop
	s.pollDone = done
	s.mu.Unlock()

	go s.pollLoop(ident, paymentID, interval, stop, done)
}

func (s *PaymentStore) pollLoop(ident Identity, paymentID string, interval time.Duration, stop chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			status, err := s.GetPaymentStatus(ctx, ident, paymentID)
			cancel()

			if err != nil {
				log.Printf("Payment status poll failed for %s: %v", paymentID, err)
				continue
			}
			if status.IsTerminal() {
				log.Printf("Payment %s reached terminal status %s, stopping poll", paymentID, status)
				s.mu.Lock()
				// Deregister only this poller: StartPolling may already
				// have installed a replacement.
				if s.pollStop == stop {
					s.pollStop = nil
					s.pollDone = nil
				}
				s.mu.Unlock()
				return
			}
		}
	}
}

// StopPolling cancels the active poller, if any. Idempotent.
func (s *PaymentStore) StopPolling() {
	s.mu.Lock()
	stop := s.pollStop
	done := s.pollDone
	s.pollStop = nil
	s.pollDone = nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	if done != nil {
		<-done
	}
}

// IsPolling reports whether a poller is currently registered.
func (s *PaymentStore) IsPolling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollStop != nil
}

// ConfirmPayment exchanges a provider callback token for the final session
// state (redirect-based providers). The result replaces the current payment
// when ids match, or when no payment is stored at all (the redirect may
// land on a fresh session).
func (s *PaymentStore) ConfirmPayment(ctx context.Context, ident Identity, token string) (*models.PaymentSession, error) {
	query := url.Values{"token": {token}}
	var session models.PaymentSession
	if err := s.backend.DoJSON(ctx, http.MethodGet, "/api/payments/confirm", query, ident.Cookie, nil, &session); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.current == nil || s.current.PaymentID == session.PaymentID {
		s.current = &session
	}
	s.mu.Unlock()

	out := session
	return &out, nil
}

// IsPIX: QR-code-based instant payment flow.
func (s *PaymentStore) IsPIX() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.QRCode != ""
}

// IsTransbank: redirect flow, payment URL without a QR code.
func (s *PaymentStore) IsTransbank() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.PaymentURL != "" && s.current.QRCode == ""
}

// MarkExpired flips a still-pending session with a matching id to EXPIRED
// and stops the poller. Sessions already in a terminal status are left
// alone, so a payment completed just before its deadline stays completed.
func (s *PaymentStore) MarkExpired(paymentID string) bool {
	s.mu.Lock()
	if s.current == nil || s.current.PaymentID != paymentID || s.current.Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	s.current.Status = models.PaymentStatusExpired
	s.mu.Unlock()

	s.StopPolling()
	return true
}

// PaymentExpired reports whether the stored session's expiry is in the past.
func (s *PaymentStore) PaymentExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.ExpiresAt != nil && s.current.ExpiresAt.Before(time.Now())
}

func (s *PaymentStore) stopPollingLocked() {
	if s.pollStop == nil {
		return
	}
	close(s.pollStop)
	s.pollStop = nil
	s.pollDone = nil
}
