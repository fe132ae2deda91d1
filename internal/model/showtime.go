package model

import "time"

// Showtime schedules a movie in a cinema over a date range with one
// or more daily start times.  Its reserved-seat ledger is the single
// authoritative record of which seats are taken for this showing;
// AvailableSeatsCount is the derived counter kept equal to the
// cinema's total minus the ledger length.
//
// Showtimes are created by admin scheduling and mutated only through
// the booking coordinator's reserve/release operations.  A showtime
// is never deleted while active reservations still reference it.
type Showtime struct {
	ID                  uint64    `json:"id"`
	MovieID             uint64    `json:"movie_id"`
	CinemaID            uint64    `json:"cinema_id"`
	ShowDate            time.Time `json:"show_date"`
	EndDate             time.Time `json:"end_date"`
	StartTimes          []string  `json:"start_times"` // "HH:MM" slots
	PriceCents          int64     `json:"price_cents"`
	AvailableSeatsCount int       `json:"available_seats"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ReservedSeat is one ledger entry: a seat claimed for this showing by
// a reservation.  Entries exist only while the owning reservation is
// in a non-released state (pending/confirmed/completed).
type ReservedSeat struct {
	Row           string `json:"row"`
	Number        uint32 `json:"number"`
	ReservationID uint64 `json:"reservation_id"`
}

// IsAvailable reports whether this showing can accept new holds: it
// must be active and its run must not have ended before now.
func (s *Showtime) IsAvailable(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	// EndDate is a calendar date; the showing remains bookable
	// through the end of that day.
	return !now.After(s.EndDate.Add(24 * time.Hour))
}

// HasStartTime reports whether the given "HH:MM" slot is one of the
// showing's scheduled start times.
func (s *Showtime) HasStartTime(startAt string) bool {
	for _, t := range s.StartTimes {
		if t == startAt {
			return true
		}
	}
	return false
}

// ConflictingSeats returns the subset of the requested references that
// already appear in the ledger.  The coordinator calls this inside the
// hold transaction after locking the showtime row; the ledger table's
// unique key backs it up against anything that slips past.
func ConflictingSeats(ledger []ReservedSeat, refs []SeatRef) []SeatRef {
	taken := make(map[SeatRef]struct{}, len(ledger))
	for _, e := range ledger {
		taken[SeatRef{Row: e.Row, Number: e.Number}] = struct{}{}
	}
	var conflicting []SeatRef
	for _, ref := range refs {
		if _, ok := taken[ref]; ok {
			conflicting = append(conflicting, ref)
		}
	}
	return conflicting
}

// AvailableSeats computes the set difference of the cinema's template
// against the current ledger: every template-available seat that no
// active reservation has claimed for this showing.  The result is a
// display snapshot; writes always re-validate against the ledger at
// commit time instead of trusting it.
func AvailableSeats(cinema *Cinema, ledger []ReservedSeat) []Seat {
	taken := make(map[SeatRef]struct{}, len(ledger))
	for _, e := range ledger {
		taken[SeatRef{Row: e.Row, Number: e.Number}] = struct{}{}
	}
	free := make([]Seat, 0, len(cinema.Seats))
	for _, seat := range cinema.Seats {
		if !seat.IsAvailable {
			continue
		}
		if _, ok := taken[seat.Ref()]; ok {
			continue
		}
		free = append(free, seat)
	}
	return free
}
