package model

import (
	"fmt"
	"time"
)

// ReservationStatus enumerates the lifecycle states of a reservation.
// PENDING is a time-bounded hold; CONFIRMED is paid; CANCELLED covers
// both explicit cancellation and lapsed holds; COMPLETED means the
// patron checked in; REFUNDED closes the money trail.  COMPLETED and
// REFUNDED are terminal.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusCancelled ReservationStatus = "CANCELLED"
	StatusCompleted ReservationStatus = "COMPLETED"
	StatusRefunded  ReservationStatus = "REFUNDED"
)

// PaymentStatus tracks the money side of a reservation.  The engine
// only records the flag; actual gateway integration happens upstream.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentPartial  PaymentStatus = "PARTIAL"
)

// Hold and check-in timing rules.  A pending reservation keeps its
// seats for HoldTTL; check-in opens CheckinWindow before the show
// start and closes CheckinWindow after it.
const (
	HoldTTL       = 15 * time.Minute
	CheckinWindow = 30 * time.Minute
)

// Reservation binds a user, a showtime, a seat set and pricing to a
// lifecycle status.  It is created in PENDING state by the booking
// coordinator and mutated only through the lifecycle methods below;
// terminal records are retained for audit, never deleted.
//
// Invariants: Seats is non-empty, at most MaxSeatsPerReservation and
// pairwise-unique; FinalTotalCents == TotalCents - DiscountCents +
// TaxCents after every mutation; ExpiresAt is non-nil exactly while
// Status == PENDING.
type Reservation struct {
	ID                uint64            `json:"id"`
	ReservationNumber string            `json:"reservation_number"`
	MovieID           uint64            `json:"movie_id"`
	CinemaID          uint64            `json:"cinema_id"`
	ShowtimeID        uint64            `json:"showtime_id"`
	UserID            string            `json:"user_id"`
	Username          string            `json:"username"`
	Phone             string            `json:"phone"`
	ShowDate          time.Time         `json:"show_date"`
	StartAt           string            `json:"start_at"` // "HH:MM"
	Seats             []SeatRef         `json:"seats"`
	TicketPriceCents  int64             `json:"ticket_price_cents"`
	DiscountCents     int64             `json:"discount_cents"`
	TaxCents          int64             `json:"tax_cents"`
	TotalCents        int64             `json:"total_cents"`
	FinalTotalCents   int64             `json:"final_total_cents"`
	Status            ReservationStatus `json:"status"`
	PaymentStatus     PaymentStatus     `json:"payment_status"`
	Checkin           bool              `json:"checkin"`
	CheckinTime       *time.Time        `json:"checkin_time,omitempty"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
	ConfirmedAt       *time.Time        `json:"confirmed_at,omitempty"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	CancelReason      string            `json:"cancel_reason,omitempty"`
	RefundedAt        *time.Time        `json:"refunded_at,omitempty"`
	RefundAmountCents int64             `json:"refund_amount_cents"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewReservation builds a pending reservation for the given showtime
// and seat set.  The seat set is validated against the per-reservation
// rules, totals are computed from len(seats) x ticket price, and the
// hold expiry is stamped at now + HoldTTL.  The caller supplies the
// generated reservation number.
func NewReservation(number string, st *Showtime, seats []SeatRef, userID, username, phone, startAt string, now time.Time) (*Reservation, error) {
	if err := ValidateSeatRefs(seats); err != nil {
		return nil, err
	}
	if startAt != "" && !st.HasStartTime(startAt) {
		return nil, &ValidationError{Reason: fmt.Sprintf("start time %q is not scheduled for this showtime", startAt)}
	}
	if startAt == "" && len(st.StartTimes) > 0 {
		startAt = st.StartTimes[0]
	}
	exp := now.Add(HoldTTL)
	r := &Reservation{
		ReservationNumber: number,
		MovieID:           st.MovieID,
		CinemaID:          st.CinemaID,
		ShowtimeID:        st.ID,
		UserID:            userID,
		Username:          username,
		Phone:             phone,
		ShowDate:          st.ShowDate,
		StartAt:           startAt,
		Seats:             seats,
		TicketPriceCents:  st.PriceCents,
		Status:            StatusPending,
		PaymentStatus:     PaymentPending,
		ExpiresAt:         &exp,
	}
	r.RecomputeTotals()
	return r, nil
}

// RecomputeTotals re-derives TotalCents and FinalTotalCents from the
// seat count, ticket price, discount and tax.  It must be called after
// any change to those inputs.
func (r *Reservation) RecomputeTotals() {
	r.TotalCents = int64(len(r.Seats)) * r.TicketPriceCents
	r.FinalTotalCents = r.TotalCents - r.DiscountCents + r.TaxCents
}

// IsExpired reports whether a pending hold has lapsed.  Reservations
// in any other status never report expired.
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == StatusPending && r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// IsTerminal reports whether no further lifecycle transition is
// expected.  CANCELLED is not terminal because a refund may still be
// pending against it.
func (r *Reservation) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusRefunded
}

// ShowStart combines the reservation's show date and start slot into
// an absolute instant (UTC).  A missing or malformed slot falls back
// to the bare date.
func (r *Reservation) ShowStart() time.Time {
	var hh, mm int
	if _, err := fmt.Sscanf(r.StartAt, "%d:%d", &hh, &mm); err != nil {
		return r.ShowDate
	}
	d := r.ShowDate
	return time.Date(d.Year(), d.Month(), d.Day(), hh, mm, 0, 0, time.UTC)
}

// Confirm moves a pending reservation to CONFIRMED, marks it paid and
// clears the hold expiry.  It returns *InvalidStateError from any
// status other than PENDING and ErrExpired when the hold has already
// lapsed (the caller should leave expiry to the sweep).
func (r *Reservation) Confirm(now time.Time) error {
	if r.Status != StatusPending {
		return &InvalidStateError{From: r.Status, Requested: "confirm"}
	}
	if r.IsExpired(now) {
		return ErrExpired
	}
	r.Status = StatusConfirmed
	r.PaymentStatus = PaymentPaid
	r.ConfirmedAt = &now
	r.ExpiresAt = nil
	return nil
}

// Cancel moves a pending or confirmed reservation to CANCELLED.  When
// the reservation had been confirmed and paid, the payment flag flips
// to REFUNDED and the full final total is stamped as the refund
// amount.  Any other starting status is rejected.
func (r *Reservation) Cancel(reason string, now time.Time) error {
	if r.Status != StatusPending && r.Status != StatusConfirmed {
		return &InvalidStateError{From: r.Status, Requested: "cancel"}
	}
	wasPaid := r.Status == StatusConfirmed && r.PaymentStatus == PaymentPaid
	r.Status = StatusCancelled
	r.CancelledAt = &now
	r.CancelReason = reason
	r.ExpiresAt = nil
	if wasPaid {
		r.PaymentStatus = PaymentRefunded
		r.RefundAmountCents = r.FinalTotalCents
	}
	return nil
}

// Refund moves a cancelled or confirmed reservation to REFUNDED.  A
// nil amount refunds the full final total.
func (r *Reservation) Refund(amount *int64, now time.Time) error {
	if r.Status != StatusCancelled && r.Status != StatusConfirmed {
		return &InvalidStateError{From: r.Status, Requested: "refund"}
	}
	refund := r.FinalTotalCents
	if amount != nil {
		refund = *amount
	}
	r.Status = StatusRefunded
	r.PaymentStatus = PaymentRefunded
	r.RefundedAt = &now
	r.RefundAmountCents = refund
	r.ExpiresAt = nil
	return nil
}

// PerformCheckin completes a confirmed reservation when the patron
// arrives.  Check-in is valid exactly once, only from CONFIRMED, and
// only inside [show start - CheckinWindow, show start + CheckinWindow].
// Too early returns ErrNotYetOpen, too late ErrExpired, a repeat
// attempt *InvalidStateError.
func (r *Reservation) PerformCheckin(now time.Time) error {
	if r.Status != StatusConfirmed || r.Checkin {
		return &InvalidStateError{From: r.Status, Requested: "checkin"}
	}
	start := r.ShowStart()
	if now.Before(start.Add(-CheckinWindow)) {
		return ErrNotYetOpen
	}
	if now.After(start.Add(CheckinWindow)) {
		return ErrExpired
	}
	r.Checkin = true
	r.CheckinTime = &now
	r.Status = StatusCompleted
	return nil
}
