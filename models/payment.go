package models

import "time"

// PaymentSession is the full provider response from payment initialization.
// Provider-specific fields are sparse: PIX-style providers set QRCode,
// redirect-based providers (Transbank) set PaymentURL and Token.
type PaymentSession struct {
	PaymentID    string        `json:"payment_id"`
	Provider     string        `json:"provider"`
	Method       string        `json:"method"`
	Amount       int64         `json:"amount"`
	Currency     string        `json:"currency"`
	Status       PaymentStatus `json:"status"`
	QRCode       string        `json:"qr_code,omitempty"`
	QRCodeBase64 string        `json:"qr_code_base64,omitempty"`
	PaymentURL   string        `json:"payment_url,omitempty"`
	Token        string        `json:"token,omitempty"`
	ExpiresAt    *time.Time    `json:"expires_at,omitempty"`
}

type PaymentInitRequest struct {
	BookingID string `json:"booking_id"`
	Provider  string `json:"provider"`
	Method    string `json:"method"`
	ReturnURL string `json:"return_url,omitempty"`
}

type PaymentStatusResponse struct {
	PaymentID string        `json:"payment_id"`
	Status    PaymentStatus `json:"status"`
}
