package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tour-booking-api/backend"
	"tour-booking-api/models"
	"tour-booking-api/queue"
	"tour-booking-api/utils"
)

type PaymentHandler struct {
	sessions *SessionManager
	queue    JobEnqueuer
}

func NewPaymentHandler(sm *SessionManager, q JobEnqueuer) *PaymentHandler {
	return &PaymentHandler{sessions: sm, queue: q}
}

type paymentView struct {
	*models.PaymentSession
	IsPIX       bool `json:"is_pix"`
	IsTransbank bool `json:"is_transbank"`
	Expired     bool `json:"expired"`
}

func (h *PaymentHandler) viewOf(rc *RequestContext) *paymentView {
	p := rc.Session.Payment
	current := p.Current()
	if current == nil {
		return nil
	}
	return &paymentView{
		PaymentSession: current,
		IsPIX:          p.IsPIX(),
		IsTransbank:    p.IsTransbank(),
		Expired:        p.PaymentExpired(),
	}
}

// Initialize creates a payment session at the backend for a booking.
func (h *PaymentHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	var req models.PaymentInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding payment request: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.BookingID == "" || req.Provider == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "booking_id and provider are required")
		return
	}

	session, err := rc.Session.Payment.InitializePayment(r.Context(), rc.Ident, req)
	if err != nil {
		status, msg := backend.ErrorStatusAndMessage(err)
		utils.SendErrorResponse(w, status, msg)
		return
	}

	// Providers that hand out a deadline get a delayed job that flips the
	// session to EXPIRED if it is still pending by then.
	if session.ExpiresAt != nil {
		delay := time.Until(*session.ExpiresAt)
		if delay < 0 {
			delay = 0
		}
		if err := h.queue.EnqueueIn(r.Context(), queue.JobTypePaymentExpiry, map[string]interface{}{
			"session_id": rc.Session.ID,
			"payment_id": session.PaymentID,
		}, delay); err != nil {
			log.Printf("Failed to schedule expiry for payment %s: %v", session.PaymentID, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.APIResponse{
		Status:  "success",
		Message: "Payment initialized",
		Data:    h.viewOf(rc),
	})
}

// Status fetches the provider status for one payment. When the check
// observes the transition into COMPLETED, the receipt email is enqueued.
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	paymentID := mux.Vars(r)["id"]
	before := rc.Session.Payment.Current()

	status, err := rc.Session.Payment.GetPaymentStatus(r.Context(), rc.Ident, paymentID)
	if err != nil {
		statusCode, msg := backend.ErrorStatusAndMessage(err)
		utils.SendErrorResponse(w, statusCode, msg)
		return
	}

	if status == models.PaymentStatusCompleted &&
		before != nil && before.PaymentID == paymentID && before.Status != models.PaymentStatusCompleted {
		h.enqueueReceipt(r.Context(), rc)
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data: models.PaymentStatusResponse{
			PaymentID: paymentID,
			Status:    status,
		},
	})
}

// StartPolling begins the recurring status check used by QR-code flows.
func (h *PaymentHandler) StartPolling(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	var req struct {
		IntervalMs int `json:"interval_ms"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	paymentID := mux.Vars(r)["id"]
	rc.Session.Payment.StartPolling(rc.Ident, paymentID, time.Duration(req.IntervalMs)*time.Millisecond)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(models.APIResponse{
		Status:  "success",
		Message: "Polling started",
	})
}

func (h *PaymentHandler) StopPolling(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	rc.Session.Payment.StopPolling()
	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Polling stopped",
	})
}

// Confirm exchanges a redirect-provider callback token for final status.
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "token is required")
		return
	}

	session, err := rc.Session.Payment.ConfirmPayment(r.Context(), rc.Ident, token)
	if err != nil {
		status, msg := backend.ErrorStatusAndMessage(err)
		utils.SendErrorResponse(w, status, msg)
		return
	}

	if session.Status == models.PaymentStatusCompleted {
		h.enqueueReceipt(r.Context(), rc)
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   h.viewOf(rc),
	})
}

func (h *PaymentHandler) enqueueReceipt(ctx context.Context, rc *RequestContext) {
	current := rc.Session.Payment.Current()
	if current == nil {
		return
	}
	to := rc.Session.Checkout.Contact(ctx).Email
	if to == "" && rc.User != nil {
		to = rc.User.Email
	}
	if to == "" {
		log.Printf("No recipient known for payment receipt %s, skipping", current.PaymentID)
		return
	}

	if err := h.queue.Enqueue(ctx, queue.JobTypePaymentReceipt, map[string]interface{}{
		"to":      to,
		"payment": *current,
	}); err != nil {
		log.Printf("Failed to enqueue payment receipt for %s: %v", current.PaymentID, err)
	}
}
