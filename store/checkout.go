package store

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"tour-booking-api/backend"
	"tour-booking-api/models"
	"tour-booking-api/storage"
)

const (
	minPhoneLen    = 6
	minPasswordLen = 8

	// Minimum gap between accepted submits. An in-process latch against
	// double clicks, nothing more.
	submitDebounce = 3 * time.Second
)

// CheckoutStore is the 3-step wizard state machine (contact → participants →
// payment). Every mutation persists through the storage port; password
// fields never leave memory.
type CheckoutStore struct {
	mu        sync.Mutex
	storage   storage.Store
	sessionID string
	restored  bool

	step          int
	contact       models.ContactForm
	participants  []models.Participant
	paymentMethod models.PaymentMethodSelection
	lastSubmitAt  time.Time

	now func() time.Time
}

func NewCheckoutStore(st storage.Store, sessionID string) *CheckoutStore {
	return &CheckoutStore{
		storage:      st,
		sessionID:    sessionID,
		step:         models.CheckoutStepContact,
		participants: []models.Participant{},
		now:          time.Now,
	}
}

// ParticipantPatch carries the fields of a partial participant update. Nil
// means "leave unchanged".
type ParticipantPatch struct {
	FullName            *string `json:"full_name,omitempty"`
	DocumentID          *string `json:"document_id,omitempty"`
	Nationality         *string `json:"nationality,omitempty"`
	DateOfBirth         *string `json:"date_of_birth,omitempty"`
	PickupAddress       *string `json:"pickup_address,omitempty"`
	SpecialRequirements *string `json:"special_requirements,omitempty"`
	Phone               *string `json:"phone,omitempty"`
	PhoneCountryCode    *string `json:"phone_country_code,omitempty"`
}

func (s *CheckoutStore) Step(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	return s.step
}

func (s *CheckoutStore) Contact(ctx context.Context) models.ContactForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	return s.contact
}

func (s *CheckoutStore) Participants(ctx context.Context) []models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	return append([]models.Participant(nil), s.participants...)
}

func (s *CheckoutStore) PaymentMethod(ctx context.Context) models.PaymentMethodSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	return s.paymentMethod
}

// UpdateContact replaces the contact form and persists it with credentials
// stripped.
func (s *CheckoutStore) UpdateContact(ctx context.Context, form models.ContactForm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)

	s.contact = form
	s.persistContactLocked(ctx)
}

// SelectPaymentMethod records the provider/method pair chosen on step 3.
func (s *CheckoutStore) SelectPaymentMethod(ctx context.Context, sel models.PaymentMethodSelection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	s.paymentMethod = sel
}

// NextStep advances the wizard. The current step must validate, and leaving
// step 1 materializes the participants array to the party size.
func (s *CheckoutStore) NextStep(ctx context.Context, ident Identity, partySize int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)

	if s.step >= models.CheckoutStepPayment {
		return s.step, &backend.APIError{StatusCode: http.StatusConflict, Message: "already at the last checkout step"}
	}

	switch s.step {
	case models.CheckoutStepContact:
		if !s.stepOneValidLocked(ident.Authenticated) {
			return s.step, &backend.APIError{StatusCode: http.StatusBadRequest, Message: "contact details are incomplete"}
		}
		s.initializeParticipantsLocked(ctx, partySize)
	case models.CheckoutStepParticipants:
		if !s.stepTwoValidLocked() {
			return s.step, &backend.APIError{StatusCode: http.StatusBadRequest, Message: "participant details are incomplete"}
		}
	}

	s.step++
	s.persistStepLocked(ctx)
	return s.step, nil
}

// PrevStep moves back one step, bounded at step 1.
func (s *CheckoutStore) PrevStep(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)

	if s.step > models.CheckoutStepContact {
		s.step--
		s.persistStepLocked(ctx)
	}
	return s.step
}

// InitializeParticipants sizes the participants array to count. Idempotent:
// an already-correct array is untouched. On growth from empty, participant 0
// is prefilled from the contact form.
func (s *CheckoutStore) InitializeParticipants(ctx context.Context, count int) []models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	s.initializeParticipantsLocked(ctx, count)
	return append([]models.Participant(nil), s.participants...)
}

func (s *CheckoutStore) initializeParticipantsLocked(ctx context.Context, count int) {
	if count < 0 {
		count = 0
	}
	if len(s.participants) == count {
		return
	}

	if len(s.participants) > count {
		s.participants = s.participants[:count]
	} else {
		wasEmpty := len(s.participants) == 0
		for len(s.participants) < count {
			s.participants = append(s.participants, models.Participant{})
		}
		if wasEmpty && count > 0 {
			s.participants[0].FullName = s.contact.FullName
			s.participants[0].Phone = s.contact.Phone
			s.participants[0].PhoneCountryCode = s.contact.PhoneCountryCode
		}
	}
	s.persistParticipantsLocked(ctx)
}

// UpdateParticipant merges patch fields into the participant at index and
// persists the whole array.
func (s *CheckoutStore) UpdateParticipant(ctx context.Context, index int, patch ParticipantPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)

	if index < 0 || index >= len(s.participants) {
		return &backend.APIError{StatusCode: http.StatusBadRequest, Message: "participant index out of range"}
	}

	p := &s.participants[index]
	if patch.FullName != nil {
		p.FullName = *patch.FullName
	}
	if patch.DocumentID != nil {
		p.DocumentID = *patch.DocumentID
	}
	if patch.Nationality != nil {
		p.Nationality = *patch.Nationality
	}
	if patch.DateOfBirth != nil {
		p.DateOfBirth = *patch.DateOfBirth
	}
	if patch.PickupAddress != nil {
		p.PickupAddress = *patch.PickupAddress
	}
	if patch.SpecialRequirements != nil {
		p.SpecialRequirements = *patch.SpecialRequirements
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.PhoneCountryCode != nil {
		p.PhoneCountryCode = *patch.PhoneCountryCode
	}

	s.persistParticipantsLocked(ctx)
	return nil
}

// CopyFromFirstParticipant copies pickup address, special requirements and
// phone country code from participant 0 into index. Index 0 and
// out-of-range targets are no-ops.
func (s *CheckoutStore) CopyFromFirstParticipant(ctx context.Context, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)

	if index <= 0 || index >= len(s.participants) || len(s.participants) == 0 {
		return
	}

	first := s.participants[0]
	s.participants[index].PickupAddress = first.PickupAddress
	s.participants[index].SpecialRequirements = first.SpecialRequirements
	s.participants[index].PhoneCountryCode = first.PhoneCountryCode
	s.persistParticipantsLocked(ctx)
}

// StepOneValid gates the contact step: email, full name, phone of at least
// 6 characters, and for anonymous sessions a password of at least 8
// characters matching its confirmation.
func (s *CheckoutStore) StepOneValid(ctx context.Context, authenticated bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	return s.stepOneValidLocked(authenticated)
}

func (s *CheckoutStore) stepOneValidLocked(authenticated bool) bool {
	c := s.contact
	if strings.TrimSpace(c.Email) == "" || strings.TrimSpace(c.FullName) == "" {
		return false
	}
	if len(c.Phone) < minPhoneLen {
		return false
	}
	if !authenticated {
		if len(c.Password) < minPasswordLen || c.Password != c.PasswordConfirm {
			return false
		}
	}
	return true
}

// StepTwoValid gates the participants step: every participant needs a full
// name, document id and nationality.
func (s *CheckoutStore) StepTwoValid(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)
	return s.stepTwoValidLocked()
}

func (s *CheckoutStore) stepTwoValidLocked() bool {
	if len(s.participants) == 0 {
		return false
	}
	for _, p := range s.participants {
		if strings.TrimSpace(p.FullName) == "" ||
			strings.TrimSpace(p.DocumentID) == "" ||
			strings.TrimSpace(p.Nationality) == "" {
			return false
		}
	}
	return true
}

// CanSubmitNow is the anti-double-submit latch. A call within 3 seconds of
// the previous accepted call is rejected with a warning; otherwise the
// timestamp is recorded and the call accepted.
func (s *CheckoutStore) CanSubmitNow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.lastSubmitAt.IsZero() && now.Sub(s.lastSubmitAt) < submitDebounce {
		log.Printf("Warning: duplicate checkout submit rejected for session %s", s.sessionID)
		return false
	}
	s.lastSubmitAt = now
	return true
}

// Draft snapshots the wizard for server-side draft persistence. Credentials
// are stripped.
func (s *CheckoutStore) Draft(ctx context.Context) models.CheckoutDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restoreLocked(ctx)

	contact := s.contact
	contact.Password = ""
	contact.PasswordConfirm = ""
	return models.CheckoutDraft{
		Step:          s.step,
		Contact:       contact,
		Participants:  append([]models.Participant(nil), s.participants...),
		PaymentMethod: s.paymentMethod,
	}
}

// LoadDraft replaces the wizard state from a stored draft.
func (s *CheckoutStore) LoadDraft(ctx context.Context, draft models.CheckoutDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restored = true

	step := draft.Step
	if step < models.CheckoutStepContact || step > models.CheckoutStepPayment {
		step = models.CheckoutStepContact
	}
	s.step = step
	s.contact = draft.Contact
	s.contact.Password = ""
	s.contact.PasswordConfirm = ""
	s.participants = append([]models.Participant(nil), draft.Participants...)
	if s.participants == nil {
		s.participants = []models.Participant{}
	}
	s.paymentMethod = draft.PaymentMethod

	s.persistContactLocked(ctx)
	s.persistParticipantsLocked(ctx)
	s.persistStepLocked(ctx)
}

// Reset wipes in-memory and persisted wizard state (post-checkout).
func (s *CheckoutStore) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.restored = true
	s.step = models.CheckoutStepContact
	s.contact = models.ContactForm{}
	s.participants = []models.Participant{}
	s.paymentMethod = models.PaymentMethodSelection{}

	for _, key := range []string{storage.KeyCheckoutContact, storage.KeyCheckoutParticipants, storage.KeyCheckoutStep} {
		if err := s.storage.Delete(ctx, storage.SessionKey(s.sessionID, key)); err != nil {
			log.Printf("Failed to clear checkout key %s for session %s: %v", key, s.sessionID, err)
		}
	}
}

func (s *CheckoutStore) restoreLocked(ctx context.Context) {
	if s.restored {
		return
	}
	s.restored = true

	var contact models.ContactForm
	if err := s.storage.Get(ctx, storage.SessionKey(s.sessionID, storage.KeyCheckoutContact), &contact); err == nil {
		contact.Password = ""
		contact.PasswordConfirm = ""
		s.contact = contact
	} else if err != storage.ErrNotFound {
		log.Printf("Failed to restore checkout contact for session %s: %v", s.sessionID, err)
	}

	var participants []models.Participant
	if err := s.storage.Get(ctx, storage.SessionKey(s.sessionID, storage.KeyCheckoutParticipants), &participants); err == nil {
		s.participants = participants
	} else if err != storage.ErrNotFound {
		log.Printf("Failed to restore checkout participants for session %s: %v", s.sessionID, err)
	}

	var step int
	if err := s.storage.Get(ctx, storage.SessionKey(s.sessionID, storage.KeyCheckoutStep), &step); err == nil {
		if step >= models.CheckoutStepContact && step <= models.CheckoutStepPayment {
			s.step = step
		}
	} else if err != storage.ErrNotFound {
		log.Printf("Failed to restore checkout step for session %s: %v", s.sessionID, err)
	}
}

func (s *CheckoutStore) persistContactLocked(ctx context.Context) {
	persisted := s.contact
	persisted.Password = ""
	persisted.PasswordConfirm = ""
	if err := s.storage.Set(ctx, storage.SessionKey(s.sessionID, storage.KeyCheckoutContact), persisted); err != nil {
		log.Printf("Failed to persist checkout contact for session %s: %v", s.sessionID, err)
	}
}

func (s *CheckoutStore) persistParticipantsLocked(ctx context.Context) {
	if err := s.storage.Set(ctx, storage.SessionKey(s.sessionID, storage.KeyCheckoutParticipants), s.participants); err != nil {
		log.Printf("Failed to persist checkout participants for session %s: %v", s.sessionID, err)
	}
}

func (s *CheckoutStore) persistStepLocked(ctx context.Context) {
	if err := s.storage.Set(ctx, storage.SessionKey(s.sessionID, storage.KeyCheckoutStep), s.step); err != nil {
		log.Printf("Failed to persist checkout step for session %s: %v", s.sessionID, err)
	}
}
