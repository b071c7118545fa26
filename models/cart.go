package models

// CartMode says who owns the cart contents. A local cart belongs to an
// anonymous session and its totals are display-only; a remote cart mirrors
// the backend's canonical state and is replaced wholesale on every mutation.
type CartMode string

const (
	CartModeLocal  CartMode = "local"
	CartModeRemote CartMode = "remote"
)

type CartItem struct {
	ItemID              string  `json:"item_id"`
	ScheduleID          string  `json:"schedule_id"`
	TourID              string  `json:"tour_id"`
	TourName            string  `json:"tour_name"`
	StartDatetime       string  `json:"start_datetime"`
	NumParticipants     int     `json:"num_participants"`
	PricePerParticipant int64   `json:"price_per_participant"`
	ItemTotal           int64   `json:"item_total"`
	DurationHours       float64 `json:"duration_hours"`
}

type Cart struct {
	CartID    string     `json:"cart_id,omitempty"`
	Mode      CartMode   `json:"mode"`
	Items     []CartItem `json:"items"`
	CartTotal int64      `json:"cart_total"`
}

type AddCartItemRequest struct {
	ScheduleID          string  `json:"schedule_id"`
	TourID              string  `json:"tour_id"`
	TourName            string  `json:"tour_name"`
	StartDatetime       string  `json:"start_datetime"`
	NumParticipants     int     `json:"num_participants"`
	PricePerParticipant int64   `json:"price_per_participant"`
	DurationHours       float64 `json:"duration_hours"`
}
