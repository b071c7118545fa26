package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"tour-booking-api/backend"
	"tour-booking-api/models"
	"tour-booking-api/utils"
)

type CartHandler struct {
	sessions *SessionManager
}

func NewCartHandler(sm *SessionManager) *CartHandler {
	return &CartHandler{sessions: sm}
}

// GetCart returns the session cart, refreshing from the backend for
// authenticated sessions (anonymous carts are locally authoritative).
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		log.Printf("Error establishing session: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	cart, err := rc.Session.Cart.FetchCart(r.Context(), rc.Ident)
	if err != nil {
		status, msg := backend.ErrorStatusAndMessage(err)
		utils.SendErrorResponse(w, status, msg)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status: "success",
		Data:   cart,
	})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		log.Printf("Error establishing session: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	var req models.AddCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding request body: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ScheduleID == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "schedule_id is required")
		return
	}

	cart, err := rc.Session.Cart.AddItem(r.Context(), rc.Ident, req)
	if err != nil {
		status, msg := backend.ErrorStatusAndMessage(err)
		utils.SendErrorResponse(w, status, msg)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.APIResponse{
		Status:  "success",
		Message: "Added to cart",
		Data:    cart,
	})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	rc, err := h.sessions.Context(w, r)
	if err != nil {
		log.Printf("Error establishing session: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	itemID := mux.Vars(r)["id"]
	cart, err := rc.Session.Cart.RemoveItem(r.Context(), rc.Ident, itemID)
	if err != nil {
		status, msg := backend.ErrorStatusAndMessage(err)
		utils.SendErrorResponse(w, status, msg)
		return
	}

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Removed from cart",
		Data:    cart,
	})
}
