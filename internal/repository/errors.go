// Package repository implements MySQL persistence for the seat
// reservation engine.  It defines sentinel error values reused across
// repositories so that higher layers can distinguish failure
// scenarios without string matching.  Expected domain outcomes
// (unavailable seats, invalid transitions) are not represented here;
// those are typed values in the model package.
package repository

import "errors"

// ErrCinemaNotFound is returned when a cinema ID does not exist.
var ErrCinemaNotFound = errors.New("cinema not found")

// ErrShowtimeNotFound is returned when a showtime ID does not exist.
var ErrShowtimeNotFound = errors.New("showtime not found")

// ErrReservationNotFound is returned when a reservation ID or number
// does not exist.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as a ledger insert colliding with the
// unique seat key.  The booking coordinator translates this into a
// seat-unavailable outcome after re-reading the ledger.
var ErrConflict = errors.New("conflict")
