package store

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"tour-booking-api/backend"
	"tour-booking-api/models"
	"tour-booking-api/storage"
)

// CartStore is the dual-mode cart. Anonymous sessions keep a local cart with
// display-only totals; authenticated sessions treat the backend as the
// source of truth and replace local state with the canonical cart on every
// mutation. The mode is an explicit tag on the cart, not inferred from item
// id prefixes.
type CartStore struct {
	mu        sync.Mutex
	backend   *backend.Client
	storage   storage.Store
	sessionID string
	restored  bool
	cart      models.Cart
}

func NewCartStore(bc *backend.Client, st storage.Store, sessionID string) *CartStore {
	return &CartStore{
		backend:   bc,
		storage:   st,
		sessionID: sessionID,
		cart: models.Cart{
			Mode:  models.CartModeLocal,
			Items: []models.CartItem{},
		},
	}
}

// Cart returns a copy of the current cart, restoring a persisted anonymous
// cart on first access.
func (s *CartStore) Cart(ctx context.Context) models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	return s.snapshotLocked()
}

// AddItem adds a schedule booking. Authenticated: POST to the backend cart
// and adopt its canonical state. Anonymous: append a locally-tagged item and
// recompute the displayed total.
func (s *CartStore) AddItem(ctx context.Context, ident Identity, req models.AddCartItemRequest) (models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)

	if ident.Authenticated {
		var remote models.Cart
		if err := s.backend.DoJSON(ctx, http.MethodPost, "/api/cart/items", nil, ident.Cookie, req, &remote); err != nil {
			return s.snapshotLocked(), err
		}
		s.adoptRemoteLocked(remote)
		return s.snapshotLocked(), nil
	}

	if req.NumParticipants <= 0 {
		return s.snapshotLocked(), &backend.APIError{StatusCode: http.StatusBadRequest, Message: "number of participants must be positive"}
	}

	item := models.CartItem{
		ItemID:              fmt.Sprintf("local-%d", time.Now().UnixNano()),
		ScheduleID:          req.ScheduleID,
		TourID:              req.TourID,
		TourName:            req.TourName,
		StartDatetime:       req.StartDatetime,
		NumParticipants:     req.NumParticipants,
		PricePerParticipant: req.PricePerParticipant,
		ItemTotal:           req.PricePerParticipant * int64(req.NumParticipants),
		DurationHours:       req.DurationHours,
	}
	s.cart.Items = append(s.cart.Items, item)
	s.recomputeTotalLocked()
	s.persistLocked(ctx)
	return s.snapshotLocked(), nil
}

// RemoveItem removes one cart item. Server-assigned ids on an authenticated
// session delete backend-side; everything else is filtered locally.
func (s *CartStore) RemoveItem(ctx context.Context, ident Identity, itemID string) (models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)

	if ident.Authenticated && s.cart.Mode == models.CartModeRemote {
		var remote models.Cart
		if err := s.backend.DoJSON(ctx, http.MethodDelete, "/api/cart/items/"+itemID, nil, ident.Cookie, nil, &remote); err != nil {
			return s.snapshotLocked(), err
		}
		s.adoptRemoteLocked(remote)
		return s.snapshotLocked(), nil
	}

	filtered := s.cart.Items[:0]
	for _, item := range s.cart.Items {
		if item.ItemID != itemID {
			filtered = append(filtered, item)
		}
	}
	s.cart.Items = filtered
	s.recomputeTotalLocked()
	s.persistLocked(ctx)
	return s.snapshotLocked(), nil
}

// FetchCart refreshes from the backend. For anonymous sessions local state
// is authoritative and this is a no-op. A failed fetch clears the cart
// rather than serving stale remote state.
func (s *CartStore) FetchCart(ctx context.Context, ident Identity) (models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)

	if !ident.Authenticated {
		return s.snapshotLocked(), nil
	}

	var remote models.Cart
	if err := s.backend.DoJSON(ctx, http.MethodGet, "/api/cart", nil, ident.Cookie, nil, &remote); err != nil {
		log.Printf("Cart fetch failed for session %s, clearing cart: %v", s.sessionID, err)
		s.cart = models.Cart{Mode: models.CartModeRemote, Items: []models.CartItem{}}
		return s.snapshotLocked(), err
	}
	s.adoptRemoteLocked(remote)
	return s.snapshotLocked(), nil
}

// TotalParticipants is the checkout party size.
func (s *CartStore) TotalParticipants(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)

	total := 0
	for _, item := range s.cart.Items {
		total += item.NumParticipants
	}
	return total
}

// MergeToRemote pushes a locally built cart to the backend after login and
// adopts the canonical result. Items that fail to post are logged and
// dropped; the backend cart wins.
func (s *CartStore) MergeToRemote(ctx context.Context, ident Identity) (models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)

	if !ident.Authenticated {
		return s.snapshotLocked(), nil
	}

	local := s.cart.Items
	if s.cart.Mode != models.CartModeLocal {
		local = nil
	}

	var remote models.Cart
	for _, item := range local {
		req := models.AddCartItemRequest{
			ScheduleID:          item.ScheduleID,
			TourID:              item.TourID,
			TourName:            item.TourName,
			StartDatetime:       item.StartDatetime,
			NumParticipants:     item.NumParticipants,
			PricePerParticipant: item.PricePerParticipant,
			DurationHours:       item.DurationHours,
		}
		if err := s.backend.DoJSON(ctx, http.MethodPost, "/api/cart/items", nil, ident.Cookie, req, &remote); err != nil {
			log.Printf("Cart merge: failed to push item %s for session %s: %v", item.ItemID, s.sessionID, err)
		}
	}

	if err := s.backend.DoJSON(ctx, http.MethodGet, "/api/cart", nil, ident.Cookie, nil, &remote); err != nil {
		return s.snapshotLocked(), err
	}
	s.adoptRemoteLocked(remote)
	if err := s.storage.Delete(ctx, storage.SessionKey(s.sessionID, storage.KeyAnonymousCart)); err != nil {
		log.Printf("Failed to drop merged local cart for session %s: %v", s.sessionID, err)
	}
	return s.snapshotLocked(), nil
}

// Clear wipes in-memory and persisted cart state (post-checkout).
func (s *CartStore) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart = models.Cart{Mode: s.cart.Mode, Items: []models.CartItem{}}
	s.restored = true
	if err := s.storage.Delete(ctx, storage.SessionKey(s.sessionID, storage.KeyAnonymousCart)); err != nil {
		log.Printf("Failed to clear persisted cart for session %s: %v", s.sessionID, err)
	}
}

func (s *CartStore) adoptRemoteLocked(remote models.Cart) {
	remote.Mode = models.CartModeRemote
	if remote.Items == nil {
		remote.Items = []models.CartItem{}
	}
	s.cart = remote
}

func (s *CartStore) recomputeTotalLocked() {
	var total int64
	for _, item := range s.cart.Items {
		total += item.ItemTotal
	}
	s.cart.CartTotal = total
}

func (s *CartStore) snapshotLocked() models.Cart {
	out := s.cart
	out.Items = append([]models.CartItem(nil), s.cart.Items...)
	return out
}

func (s *CartStore) restoreLocked(ctx context.Context) {
	if s.restored {
		return
	}
	s.restored = true

	var saved models.Cart
	err := s.storage.Get(ctx, storage.SessionKey(s.sessionID, storage.KeyAnonymousCart), &saved)
	if err == storage.ErrNotFound {
		return
	}
	if err != nil {
		log.Printf("Failed to restore cart for session %s: %v", s.sessionID, err)
		return
	}
	if saved.Mode == models.CartModeLocal {
		if saved.Items == nil {
			saved.Items = []models.CartItem{}
		}
		s.cart = saved
	}
}

func (s *CartStore) persistLocked(ctx context.Context) {
	if s.cart.Mode != models.CartModeLocal {
		return
	}
	if err := s.storage.Set(ctx, storage.SessionKey(s.sessionID, storage.KeyAnonymousCart), s.cart); err != nil {
		log.Printf("Failed to persist cart for session %s: %v", s.sessionID, err)
	}
}
