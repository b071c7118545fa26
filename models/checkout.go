package models

const (
	CheckoutStepContact      = 1
	CheckoutStepParticipants = 2
	CheckoutStepPayment      = 3
)

// ContactForm holds step 1 of the checkout wizard. Password fields are only
// used when the session is anonymous (new-account creation at checkout) and
// must never be written to persistent storage.
type ContactForm struct {
	Email            string `json:"email"`
	FullName         string `json:"full_name"`
	Phone            string `json:"phone"`
	PhoneCountryCode string `json:"phone_country_code"`
	Password         string `json:"password,omitempty"`
	PasswordConfirm  string `json:"password_confirm,omitempty"`
}

// Participant is one booked seat. The wizard keeps exactly one entry per
// participant counted across all cart items.
type Participant struct {
	FullName            string `json:"full_name"`
	DocumentID          string `json:"document_id"`
	Nationality         string `json:"nationality"`
	DateOfBirth         string `json:"date_of_birth"`
	PickupAddress       string `json:"pickup_address"`
	SpecialRequirements string `json:"special_requirements"`
	Phone               string `json:"phone"`
	PhoneCountryCode    string `json:"phone_country_code"`
}

type PaymentMethodSelection struct {
	Provider string `json:"provider"`
	Method   string `json:"method"`
}

// CheckoutDraft is the persisted shape of an in-progress checkout, used for
// resumability. Credentials are stripped before it is ever saved.
type CheckoutDraft struct {
	DraftID       string                 `json:"draft_id"`
	Step          int                    `json:"step"`
	Contact       ContactForm            `json:"contact"`
	Participants  []Participant          `json:"participants"`
	PaymentMethod PaymentMethodSelection `json:"payment_method"`
}

// BookingConfirmation is the backend's answer to a booking submission. The
// total here is the server-computed one and supersedes any client math.
type BookingConfirmation struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Total     int64  `json:"total"`
	Currency  string `json:"currency"`
}

// BookingSubmission is what gets forwarded to the backend on final submit.
// Amounts are intentionally absent: the backend computes the authoritative
// total from the schedule prices, never from the client cart.
type BookingSubmission struct {
	CartID        string                 `json:"cart_id,omitempty"`
	Items         []CartItem             `json:"items"`
	Contact       ContactForm            `json:"contact"`
	Participants  []Participant          `json:"participants"`
	PaymentMethod PaymentMethodSelection `json:"payment_method"`
}
