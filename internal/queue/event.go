// Package queue defines message payloads exchanged over the message
// broker and the background consumer that processes them.
package queue

// Queue names used on the broker.  Downstream consumers (email, QR
// generation, analytics) bind to these; the engine only publishes.
const (
	ReservationConfirmedQueue = "reservation.confirmed"
	ReservationCancelledQueue = "reservation.cancelled"
)

// ReservationConfirmedEvent is published when a reservation is
// confirmed.  It carries enough information for downstream consumers
// to send tickets or QR codes without querying the primary database.
type ReservationConfirmedEvent struct {
	ReservationID     uint64   `json:"reservation_id"`
	ReservationNumber string   `json:"reservation_number"`
	UserID            string   `json:"user_id"`
	Username          string   `json:"username"`
	Phone             string   `json:"phone"`
	MovieID           uint64   `json:"movie_id"`
	CinemaID          uint64   `json:"cinema_id"`
	ShowtimeID        uint64   `json:"showtime_id"`
	ShowDate          string   `json:"show_date"`
	StartAt           string   `json:"start_at"`
	SeatLabels        []string `json:"seats"`
	FinalTotalCents   int64    `json:"final_total_cents"`
	ConfirmedAt       string   `json:"confirmed_at"`
}

// ReservationCancelledEvent is published when a reservation is
// cancelled or refunded, so refund processors and notification
// consumers can react without polling.
type ReservationCancelledEvent struct {
	ReservationID     uint64   `json:"reservation_id"`
	ReservationNumber string   `json:"reservation_number"`
	UserID            string   `json:"user_id"`
	ShowtimeID        uint64   `json:"showtime_id"`
	SeatLabels        []string `json:"seats"`
	Reason            string   `json:"reason,omitempty"`
	RefundAmountCents int64    `json:"refund_amount_cents"`
	CancelledAt       string   `json:"cancelled_at"`
}
