package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"tour-booking-api/backend"
	"tour-booking-api/database"
	"tour-booking-api/models"
	"tour-booking-api/queue"
	"tour-booking-api/services/email"
	"tour-booking-api/store"
	"tour-booking-api/utils"
)

// DraftStore persists checkout drafts for cross-device resume.
type DraftStore interface {
	SaveCheckoutDraft(ctx context.Context, draft models.CheckoutDraft) error
	GetCheckoutDraft(ctx context.Context, draftID string) (*models.CheckoutDraft, error)
	DeleteCheckoutDraft(ctx context.Context, draftID string) error
}

// JobEnqueuer pushes background jobs onto the queue, immediately or after
// a delay.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, jobType queue.JobType, data map[string]interface{}) error
	EnqueueIn(ctx context.Context, jobType queue.JobType, data map[string]interface{}, delay time.Duration) error
}

type CheckoutHandler struct {
	sessions *SessionManager
	backend  *backend.Client
	db       DraftStore
	queue    JobEnqueuer
}

func NewCheckoutHandler(sm *SessionManager, bc *backend.Client, db DraftStore, q JobEnqueuer) *CheckoutHandler {
	return &CheckoutHandler{sessions: sm, backend: bc, db: db, queue: q}
}

type checkoutView struct {
	Step          int                           `json:"step"`
	Contact       models.ContactForm            `json:"contact"`
	Participants  []models.Participant          `json:"participants"`
	PaymentMethod models.PaymentMethodSelection `json:"payment_method"`
	PartySize     int                           `json:"party_size"`
	StepOneValid  bool                          `json:"step_one_valid"`
	StepTwoValid  bool                          `json:"step_two_valid"`
}

func (h *CheckoutHandler) view(ctx context.Context, rc *RequestContext) checkoutView {
	co := rc.Session.Checkout
	contact := co.Contact(ctx)
	contact.Password = ""
	contact.PasswordConfirm = ""
	return checkoutView{
		Step:          co.Step(ctx),
		Contact:       contact,
		Participants:  co.Participants(ctx),
		PaymentMethod: co.PaymentMethod(ctx),
		PartySize:     rc.Session.Cart.TotalParticipants(ctx),
		StepOneValid:  co.StepOneValid(ctx, rc.Ident.Authenticated),
		StepTwoValid:  co.StepTwoValid(ctx),
	}
}

func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   h.view(r.Context(), rc),
	})
}

func (h *CheckoutHandler) UpdateContact(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	var form models.ContactForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		log.Printf("Error decoding contact form: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rc.Session.Checkout.UpdateContact(r.Context(), form)
	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   h.view(r.Context(), rc),
	})
}

func (h *CheckoutHandler) UpdateParticipant(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid participant index")
		return
	}

	var patch store.ParticipantPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		log.Printf("Error decoding participant patch: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := rc.Session.Checkout.UpdateParticipant(r.Context(), index, patch); err != nil {
		status, msg := backend.ErrorStatusAndMessage(err)
		utils.SendErrorResponse(w, status, msg)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   h.view(r.Context(), rc),
	})
}

func (h *CheckoutHandler) CopyFromFirstParticipant(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid participant index")
		return
	}

	rc.Session.Checkout.CopyFromFirstParticipant(r.Context(), index)
	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   h.view(r.Context(), rc),
	})
}

func (h *CheckoutHandler) NextStep(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	partySize := rc.Session.Cart.TotalParticipants(r.Context())
	step, err := rc.Session.Checkout.NextStep(r.Context(), rc.Ident, partySize)
	if err != nil {
		status, msg := backend.ErrorStatusAndMessage(err)
		utils.SendErrorResponse(w, status, msg)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   map[string]int{"step": step},
	})
}

func (h *CheckoutHandler) PrevStep(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	step := rc.Session.Checkout.PrevStep(r.Context())
	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   map[string]int{"step": step},
	})
}

func (h *CheckoutHandler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	var sel models.PaymentMethodSelection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if sel.Provider == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "provider is required")
		return
	}

	rc.Session.Checkout.SelectPaymentMethod(r.Context(), sel)
	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   h.view(r.Context(), rc),
	})
}

// SaveDraft snapshots the wizard server-side and hands back a draft id the
// client can use to resume on another device.
func (h *CheckoutHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	draft := rc.Session.Checkout.Draft(r.Context())
	draft.DraftID = uuid.New().String()

	if err := h.db.SaveCheckoutDraft(r.Context(), draft); err != nil {
		log.Printf("Error saving checkout draft: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to save draft")
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Draft saved",
		Data:    map[string]string{"draft_id": draft.DraftID},
	})
}

func (h *CheckoutHandler) LoadDraft(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	draftID := mux.Vars(r)["id"]
	draft, err := h.db.GetCheckoutDraft(r.Context(), draftID)
	if err == database.ErrDraftNotFound {
		utils.SendErrorResponse(w, http.StatusNotFound, "Draft not found")
		return
	}
	if err != nil {
		log.Printf("Error loading checkout draft %s: %v", draftID, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to load draft")
		return
	}

	rc.Session.Checkout.LoadDraft(r.Context(), *draft)
	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Draft restored",
		Data:    h.view(r.Context(), rc),
	})
}

func (h *CheckoutHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	draftID := mux.Vars(r)["id"]
	if err := h.db.DeleteCheckoutDraft(r.Context(), draftID); err != nil {
		log.Printf("Error deleting checkout draft %s: %v", draftID, err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to delete draft")
		return
	}
	utils.SendSuccessResponse(w, models.APIResponse{Status: "success", Message: "Draft deleted"})
}

// Submit forwards the completed checkout to the backend as a booking. All
// gates run again server-side: step validity, party size match and the
// anti-double-submit latch.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	ctx := r.Context()
	co := rc.Session.Checkout
	cart := rc.Session.Cart.Cart(ctx)
	partySize := rc.Session.Cart.TotalParticipants(ctx)

	if len(cart.Items) == 0 {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Cart is empty")
		return
	}
	if !co.StepOneValid(ctx, rc.Ident.Authenticated) {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Contact details are incomplete")
		return
	}
	if !co.StepTwoValid(ctx) {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Participant details are incomplete")
		return
	}
	participants := co.Participants(ctx)
	if len(participants) != partySize {
		utils.SendErrorResponse(w, http.StatusBadRequest, "Participant count does not match cart")
		return
	}
	if co.PaymentMethod(ctx).Provider == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "No payment method selected")
		return
	}

	if !co.CanSubmitNow() {
		// Double click, not an error the user needs to see.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(models.APIResponse{
			Status:  "accepted",
			Message: "Submission already in progress",
		})
		return
	}

	submission := models.BookingSubmission{
		CartID:        cart.CartID,
		Items:         cart.Items,
		Contact:       co.Contact(ctx),
		Participants:  participants,
		PaymentMethod: co.PaymentMethod(ctx),
	}

	var confirmation models.BookingConfirmation
	if err := h.backend.DoJSON(ctx, http.MethodPost, "/api/bookings", nil, rc.Ident.Cookie, submission, &confirmation); err != nil {
		status, msg := backend.ErrorStatusAndMessage(err)
		utils.SendErrorResponse(w, status, msg)
		return
	}

	contact := co.Contact(ctx)
	emailData := email.BookingEmailData{
		BookingID:    confirmation.BookingID,
		ContactName:  contact.FullName,
		Items:        cart.Items,
		Participants: participants,
		Total:        confirmation.Total,
		Currency:     confirmation.Currency,
	}
	if err := h.queue.Enqueue(ctx, queue.JobTypeBookingConfirmation, map[string]interface{}{
		"to":      contact.Email,
		"booking": emailData,
	}); err != nil {
		// Booking went through; the email can be replayed from the queue.
		log.Printf("Failed to enqueue booking confirmation for %s: %v", confirmation.BookingID, err)
	}

	rc.Session.Cart.Clear(ctx)
	co.Reset(ctx)

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Booking created",
		Data:    confirmation,
	})
}
