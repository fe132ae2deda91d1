// Package model defines the core aggregates of the seat reservation
// engine (cinemas with their seat templates, showtimes with their
// per-showing seat ledgers, and reservations with their lifecycle
// state machine) together with the typed domain outcomes returned by
// operations on them.  These error values represent expected business
// results, not infrastructure failures; callers should branch on them
// with errors.Is / errors.As rather than treating them as fatal.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrExpired is returned when a pending reservation has passed its
// expiration timestamp and can no longer be confirmed, or when a
// check-in is attempted after the check-in window has closed.
var ErrExpired = errors.New("reservation expired")

// ErrNotYetOpen is returned when a check-in is attempted before the
// check-in window has opened.
var ErrNotYetOpen = errors.New("check-in not yet open")

// SeatUnavailableError reports that one or more requested seats are
// already held or booked (or do not exist in the cinema's seat
// template).  Conflicting carries the offending seat references so
// callers can tell the user exactly which seats to reselect.
type SeatUnavailableError struct {
	Conflicting []SeatRef
}

func (e *SeatUnavailableError) Error() string {
	labels := make([]string, 0, len(e.Conflicting))
	for _, ref := range e.Conflicting {
		labels = append(labels, ref.Label())
	}
	return fmt.Sprintf("seats unavailable: %s", strings.Join(labels, ","))
}

// InvalidStateError reports a lifecycle transition attempted from a
// status that does not permit it.  From is the reservation's current
// status and Requested names the attempted transition.
type InvalidStateError struct {
	From      ReservationStatus
	Requested string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid transition %q from status %s", e.Requested, e.From)
}

// ValidationError reports a malformed request (empty seat set, more
// than the allowed number of seats, duplicate seats, or references
// outside the seat grid).  It is a caller error, never a bug.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }
