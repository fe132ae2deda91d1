package model

import "fmt"

// Seat types distinguish pricing/comfort tiers within a cinema.  The
// values are stored verbatim in the seat template table.
const (
	SeatTypeRegular = "REGULAR"
	SeatTypePremium = "PREMIUM"
	SeatTypeVIP     = "VIP"
)

// Seat set constraints enforced at hold time.  A single reservation
// may claim at most MaxSeatsPerReservation seats; rows run A–Z and
// seat numbers 1..MaxSeatNumber.
const (
	MaxSeatsPerReservation = 10
	MaxSeatNumber          = 50
)

// SeatRef identifies a physical seat by its position in the grid.
// It is the unit of exchange between callers, the seat template and
// the per-showing ledger.  Row is a single upper-case letter.
type SeatRef struct {
	Row    string `json:"row"`
	Number uint32 `json:"number"`
}

// Label renders the seat in the familiar "A12" form.
func (s SeatRef) Label() string { return fmt.Sprintf("%s%d", s.Row, s.Number) }

// Seat describes one physical seat in a cinema's template.  IsAvailable
// is the template default state (admin can block a seat entirely);
// per-showing occupancy lives in the showtime ledger, never here.
type Seat struct {
	Row         string `json:"row"`
	Number      uint32 `json:"number"`
	IsAvailable bool   `json:"is_available"`
	SeatType    string `json:"seat_type"`
}

// Ref returns the seat's grid reference.
func (s Seat) Ref() SeatRef { return SeatRef{Row: s.Row, Number: s.Number} }

// validRef reports whether a seat reference falls inside the allowed
// grid (row A–Z, number 1..MaxSeatNumber).
func validRef(ref SeatRef) bool {
	if len(ref.Row) != 1 || ref.Row[0] < 'A' || ref.Row[0] > 'Z' {
		return false
	}
	return ref.Number >= 1 && ref.Number <= MaxSeatNumber
}

// ValidateSeatRefs checks a requested seat set against the rules that
// apply to every reservation: non-empty, at most MaxSeatsPerReservation
// entries, no duplicates and every reference inside the seat grid.  It
// returns a *ValidationError describing the first violation found.
func ValidateSeatRefs(refs []SeatRef) error {
	if len(refs) == 0 {
		return &ValidationError{Reason: "at least one seat is required"}
	}
	if len(refs) > MaxSeatsPerReservation {
		return &ValidationError{Reason: fmt.Sprintf("at most %d seats per reservation", MaxSeatsPerReservation)}
	}
	seen := make(map[SeatRef]struct{}, len(refs))
	for _, ref := range refs {
		if !validRef(ref) {
			return &ValidationError{Reason: fmt.Sprintf("seat %s is outside the seat grid", ref.Label())}
		}
		if _, dup := seen[ref]; dup {
			return &ValidationError{Reason: fmt.Sprintf("seat %s requested more than once", ref.Label())}
		}
		seen[ref] = struct{}{}
	}
	return nil
}
