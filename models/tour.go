package models

// Tour and TourSchedule are backend-owned resources. This service only
// carries them opaquely through the proxy layer and into cart items, so the
// shapes here cover the fields the cart and email templates actually read.
type Tour struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	DurationHours float64 `json:"duration_hours"`
	BasePrice     int64   `json:"base_price"`
	Currency      string  `json:"currency"`
}

type TourSchedule struct {
	ID                  string `json:"id"`
	TourID              string `json:"tour_id"`
	StartDatetime       string `json:"start_datetime"`
	AvailableSeats      int    `json:"available_seats"`
	PricePerParticipant int64  `json:"price_per_participant"`
}
