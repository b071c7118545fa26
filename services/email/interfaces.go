package email

import "tour-booking-api/models"

type EmailSender interface {
	SendEmail(to, subject, body string) error
	SendBookingConfirmation(to string, booking BookingEmailData) error
	SendPaymentReceipt(to string, payment models.PaymentSession) error
}

// BookingEmailData is everything the confirmation template renders.
type BookingEmailData struct {
	BookingID    string
	ContactName  string
	Items        []models.CartItem
	Participants []models.Participant
	Total        int64
	Currency     string
}
