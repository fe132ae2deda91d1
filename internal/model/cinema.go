package model

import "time"

// Cinema is the aggregate root owning the canonical seat template for
// a venue.  SeatsAvailable and TotalSeats are derived counts that are
// recomputed whenever the template changes; TicketPriceCents is the
// default price applied when a showtime does not override it.
//
// The seat template answers "which seats exist and are they usable at
// all"; which seats are taken for a particular showing is tracked by
// the showtime's seat ledger, not here.  BookSeats/ReleaseSeats flip
// template-level availability and exist for admin edits and venues
// that run a single standing showing.
type Cinema struct {
	ID               uint64    `json:"id"`
	Name             string    `json:"name"`
	City             string    `json:"city"`
	Seats            []Seat    `json:"seats"`
	SeatsAvailable   int       `json:"seats_available"`
	TotalSeats       int       `json:"total_seats"`
	TicketPriceCents int64     `json:"ticket_price_cents"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RecomputeSeatCounts refreshes the derived TotalSeats and
// SeatsAvailable counters from the seat slice.  Call after any
// mutation of Seats.
func (c *Cinema) RecomputeSeatCounts() {
	c.TotalSeats = len(c.Seats)
	avail := 0
	for _, s := range c.Seats {
		if s.IsAvailable {
			avail++
		}
	}
	c.SeatsAvailable = avail
}

// GetSeat returns the template seat at the given position, or nil when
// no such seat exists in this cinema.
func (c *Cinema) GetSeat(row string, number uint32) *Seat {
	for i := range c.Seats {
		if c.Seats[i].Row == row && c.Seats[i].Number == number {
			return &c.Seats[i]
		}
	}
	return nil
}

// AvailableSeatsByType returns every template-available seat of the
// requested type.
func (c *Cinema) AvailableSeatsByType(seatType string) []Seat {
	out := make([]Seat, 0)
	for _, s := range c.Seats {
		if s.IsAvailable && s.SeatType == seatType {
			out = append(out, s)
		}
	}
	return out
}

// HasSeats reports whether every requested reference exists in the
// template, returning the references that do not.  The coordinator
// uses this at hold time to reject seats outside the venue.
func (c *Cinema) HasSeats(refs []SeatRef) (missing []SeatRef) {
	for _, ref := range refs {
		if c.GetSeat(ref.Row, ref.Number) == nil {
			missing = append(missing, ref)
		}
	}
	return missing
}

// BookSeats flips the requested template seats to unavailable as a
// single all-or-nothing operation.  If any requested seat is missing
// from the template or already unavailable, nothing is mutated and a
// *SeatUnavailableError carrying the conflicting references is
// returned.  On success the booked seats are returned and the derived
// counters are recomputed.
func (c *Cinema) BookSeats(refs []SeatRef) ([]Seat, error) {
	var conflicting []SeatRef
	idx := make([]int, 0, len(refs))
	for _, ref := range refs {
		found := -1
		for i := range c.Seats {
			if c.Seats[i].Row == ref.Row && c.Seats[i].Number == ref.Number {
				found = i
				break
			}
		}
		if found < 0 || !c.Seats[found].IsAvailable {
			conflicting = append(conflicting, ref)
			continue
		}
		idx = append(idx, found)
	}
	if len(conflicting) > 0 {
		return nil, &SeatUnavailableError{Conflicting: conflicting}
	}
	booked := make([]Seat, 0, len(idx))
	for _, i := range idx {
		c.Seats[i].IsAvailable = false
		booked = append(booked, c.Seats[i])
	}
	c.RecomputeSeatCounts()
	return booked, nil
}

// ReleaseSeats flips matching template seats back to available and
// returns the seats it touched.  Seats that are already available (or
// absent from the template) are skipped, making the call idempotent.
func (c *Cinema) ReleaseSeats(refs []SeatRef) []Seat {
	released := make([]Seat, 0, len(refs))
	for _, ref := range refs {
		for i := range c.Seats {
			if c.Seats[i].Row == ref.Row && c.Seats[i].Number == ref.Number {
				if !c.Seats[i].IsAvailable {
					c.Seats[i].IsAvailable = true
					released = append(released, c.Seats[i])
				}
				break
			}
		}
	}
	if len(released) > 0 {
		c.RecomputeSeatCounts()
	}
	return released
}
