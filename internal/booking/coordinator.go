// Package booking implements the coordinator that keeps the
// per-showtime seat ledger and the reservation records consistent.
// Every multi-aggregate operation here runs inside a single database
// transaction; the store's row locks and the ledger's unique seat key
// are the serialization points, never application-level mutexes, so
// any number of process instances can run these operations
// concurrently.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/Fuad208/MovieStore1-sub000/internal/model"
	"github.com/Fuad208/MovieStore1-sub000/internal/repository"
)

// holdRetries bounds how often a hold is retried after the storage
// layer reports a write conflict (deadlock, lock timeout or a
// duplicate ledger key from a concurrent winner) before the caller is
// told the seats are unavailable.
const holdRetries = 3

// sweepBatchLimit caps how many expired holds one sweep pass picks
// up.  The sweep runs periodically, so a large backlog drains over a
// few passes instead of one long-running scan.
const sweepBatchLimit = 500

// Coordinator orchestrates seat holds and the reservation lifecycle
// across the cinema catalog, the showtime ledger and the reservation
// store.  It is safe for concurrent use.
type Coordinator struct {
	db           *sql.DB
	cinemas      *repository.CinemaRepo
	showtimes    *repository.ShowtimeRepo
	reservations *repository.ReservationRepo
	now          func() time.Time
}

// NewCoordinator constructs a Coordinator.  All repositories must be
// bound to the same database handle, which is used for transactions
// that span them.
func NewCoordinator(db *sql.DB, cinemas *repository.CinemaRepo, showtimes *repository.ShowtimeRepo, reservations *repository.ReservationRepo) *Coordinator {
	if db == nil || cinemas == nil || showtimes == nil || reservations == nil {
		panic("nil dependency passed to NewCoordinator")
	}
	return &Coordinator{
		db:           db,
		cinemas:      cinemas,
		showtimes:    showtimes,
		reservations: reservations,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the coordinator's time source.  Tests use this
// to pin expiry and check-in windows.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// HoldRequest carries the caller-supplied inputs for CreateHold.  The
// user fields are opaque to the engine; identity is validated
// upstream.  Discount and tax default to zero when the caller tracks
// neither.
type HoldRequest struct {
	ShowtimeID    uint64
	Seats         []model.SeatRef
	UserID        string
	Username      string
	Phone         string
	StartAt       string // "HH:MM"; empty picks the showtime's first slot
	DiscountCents int64
	TaxCents      int64
}

// newReservationNumber generates the externally visible booking
// reference.  Uniqueness is additionally enforced by the column's
// unique index.
func newReservationNumber() string {
	return "RSV-" + uuid.NewString()
}

// CreateHold validates seat availability against the showtime ledger
// and, in one transaction, appends the ledger entries and creates a
// PENDING reservation expiring after model.HoldTTL.  When any
// requested seat is already taken the call fails with
// *model.SeatUnavailableError carrying the conflicting seats and
// nothing is written.
//
// Two concurrent holds for overlapping seats are serialized by the
// showtime row lock; if the storage layer still reports a write
// conflict the whole operation is retried from the top a bounded
// number of times and then surfaces as seats-unavailable.
func (c *Coordinator) CreateHold(ctx context.Context, req HoldRequest) (*model.Reservation, error) {
	if err := model.ValidateSeatRefs(req.Seats); err != nil {
		return nil, err
	}
	st, err := c.showtimes.GetByID(ctx, req.ShowtimeID)
	if err != nil {
		return nil, err
	}
	cinema, err := c.cinemas.GetByID(ctx, st.CinemaID)
	if err != nil {
		return nil, err
	}
	if missing := cinema.HasSeats(req.Seats); len(missing) > 0 {
		return nil, &model.SeatUnavailableError{Conflicting: missing}
	}
	var lastErr error
	for attempt := 0; attempt < holdRetries; attempt++ {
		res, err := c.tryHold(ctx, req)
		if err == nil {
			return res, nil
		}
		if !retryableConflict(err) {
			return nil, err
		}
		lastErr = err
	}
	log.Printf("booking: hold on showtime %d gave up after %d conflicts: %v", req.ShowtimeID, holdRetries, lastErr)
	return nil, &model.SeatUnavailableError{Conflicting: req.Seats}
}

// tryHold performs one transactional attempt of CreateHold.
func (c *Coordinator) tryHold(ctx context.Context, req HoldRequest) (*model.Reservation, error) {
	now := c.now()
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin hold tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	// Lock the showtime row; every ledger mutation for this showing
	// queues behind this lock.
	st, err := c.showtimes.GetForUpdateTx(ctx, tx, req.ShowtimeID)
	if err != nil {
		return nil, err
	}
	if !st.IsAvailable(now) {
		return nil, &model.ValidationError{Reason: "showtime is not open for booking"}
	}
	ledger, err := c.showtimes.LedgerTx(ctx, tx, st.ID)
	if err != nil {
		return nil, err
	}
	if conflicting := model.ConflictingSeats(ledger, req.Seats); len(conflicting) > 0 {
		return nil, &model.SeatUnavailableError{Conflicting: conflicting}
	}
	res, err := model.NewReservation(newReservationNumber(), st, req.Seats, req.UserID, req.Username, req.Phone, req.StartAt, now)
	if err != nil {
		return nil, err
	}
	if req.DiscountCents != 0 || req.TaxCents != 0 {
		res.DiscountCents = req.DiscountCents
		res.TaxCents = req.TaxCents
		res.RecomputeTotals()
	}
	if err := c.reservations.CreateTx(ctx, tx, res); err != nil {
		return nil, err
	}
	if err := c.showtimes.ReserveSeatsTx(ctx, tx, st.ID, res.ID, req.Seats); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

// retryableConflict reports whether the error is a storage-level
// write conflict worth retrying: a MySQL deadlock (1213), lock wait
// timeout (1205) or duplicate ledger key (1062) from a concurrent
// transaction that won the same seats.
func retryableConflict(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1062, 1205, 1213:
			return true
		}
	}
	return false
}

// mutate loads a reservation under a row lock, applies fn to it and
// persists the result, all in one transaction.  fn returning an error
// aborts with nothing written.  extra, when non-nil, runs inside the
// same transaction after the state update (seat release and similar
// companions that must commit atomically with the status change).
func (c *Coordinator) mutate(ctx context.Context, id uint64, fn func(*model.Reservation) error, extra func(*sql.Tx, *model.Reservation) error) (*model.Reservation, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := c.reservations.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(res); err != nil {
		return nil, err
	}
	if err := c.reservations.UpdateStateTx(ctx, tx, res); err != nil {
		return nil, err
	}
	if extra != nil {
		if err := extra(tx, res); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

// Confirm finalises a pending hold after payment succeeded: status
// becomes CONFIRMED, payment PAID and the expiry is cleared.  A hold
// that already lapsed returns model.ErrExpired; any other status
// returns *model.InvalidStateError.
func (c *Coordinator) Confirm(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
	now := c.now()
	return c.mutate(ctx, reservationID, func(res *model.Reservation) error {
		return res.Confirm(now)
	}, nil)
}

// Cancel cancels a pending or confirmed reservation and releases its
// ledger seats in the same transaction.  A paid reservation gets its
// payment flagged refunded with the full final total stamped as the
// refund amount.
func (c *Coordinator) Cancel(ctx context.Context, reservationID uint64, reason string) (*model.Reservation, error) {
	now := c.now()
	return c.mutate(ctx, reservationID, func(res *model.Reservation) error {
		return res.Cancel(reason, now)
	}, func(tx *sql.Tx, res *model.Reservation) error {
		_, err := c.showtimes.ReleaseSeatsTx(ctx, tx, res.ShowtimeID, res.ID)
		return err
	})
}

// ProcessRefund closes the money trail on a cancelled or confirmed
// reservation.  A nil amount refunds the full final total.  Seats are
// released in the same transaction; for a reservation that was
// cancelled first this is a no-op since release is idempotent.
func (c *Coordinator) ProcessRefund(ctx context.Context, reservationID uint64, amount *int64, reason string) (*model.Reservation, error) {
	now := c.now()
	return c.mutate(ctx, reservationID, func(res *model.Reservation) error {
		if err := res.Refund(amount, now); err != nil {
			return err
		}
		if reason != "" && res.CancelReason == "" {
			res.CancelReason = reason
		}
		return nil
	}, func(tx *sql.Tx, res *model.Reservation) error {
		_, err := c.showtimes.ReleaseSeatsTx(ctx, tx, res.ShowtimeID, res.ID)
		return err
	})
}

// PerformCheckin marks a confirmed reservation as attended.  Valid
// exactly once and only inside the window of model.CheckinWindow
// either side of the show start; too early returns
// model.ErrNotYetOpen, too late model.ErrExpired.
func (c *Coordinator) PerformCheckin(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
	now := c.now()
	return c.mutate(ctx, reservationID, func(res *model.Reservation) error {
		return res.PerformCheckin(now)
	}, nil)
}

// ExpireSweep cancels every pending reservation whose hold lapsed
// before now and releases its seats, one transaction per reservation
// so a single failure never aborts the batch.  Each transaction
// re-reads the reservation under lock and re-checks that it is still
// an expired PENDING hold, so a reservation confirmed a moment before
// the sweep reaches it is left alone.  It returns the number of
// reservations expired; collected per-reservation failures are joined
// into the returned error.
func (c *Coordinator) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	ids, err := c.reservations.ListExpiredPending(ctx, now, sweepBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("list expired holds: %w", err)
	}
	count := 0
	var failures []error
	for _, id := range ids {
		expired, err := c.expireOne(ctx, id, now)
		if err != nil {
			failures = append(failures, fmt.Errorf("reservation %d: %w", id, err))
			continue
		}
		if expired {
			count++
		}
	}
	return count, errors.Join(failures...)
}

// expireOne expires a single hold in its own transaction.  Returns
// false when the reservation was confirmed, cancelled or already
// swept between candidate listing and the row lock.
func (c *Coordinator) expireOne(ctx context.Context, id uint64, now time.Time) (bool, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := c.reservations.GetForUpdateTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return false, nil
		}
		return false, err
	}
	if !res.IsExpired(now) {
		// Confirmed or otherwise moved on since the candidate scan.
		return false, nil
	}
	if err := res.Cancel("Expired", now); err != nil {
		return false, nil
	}
	if err := c.reservations.UpdateStateTx(ctx, tx, res); err != nil {
		return false, err
	}
	if _, err := c.showtimes.ReleaseSeatsTx(ctx, tx, res.ShowtimeID, res.ID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

// GetReservation loads a reservation by ID.
func (c *Coordinator) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return c.reservations.GetByID(ctx, id)
}

// FindByUser returns a user's reservations, optionally filtered by
// status, newest first.
func (c *Coordinator) FindByUser(ctx context.Context, userID string, status *model.ReservationStatus) ([]model.Reservation, error) {
	return c.reservations.ListByUser(ctx, userID, status)
}

// FindUpcoming returns pending/confirmed reservations for shows from
// today onward, for one user or, with a nil userID, for everyone.
func (c *Coordinator) FindUpcoming(ctx context.Context, userID *string) ([]model.Reservation, error) {
	return c.reservations.ListUpcoming(ctx, userID, c.now())
}

// FindByDateRange returns reservations created inside [start, end),
// optionally filtered by status.
func (c *Coordinator) FindByDateRange(ctx context.Context, start, end time.Time, status *model.ReservationStatus) ([]model.Reservation, error) {
	return c.reservations.ListByDateRange(ctx, start, end, status)
}

// Statistics aggregates reservation counts and revenue over [start, end).
func (c *Coordinator) Statistics(ctx context.Context, start, end time.Time) (*repository.BookingStatistics, error) {
	return c.reservations.Statistics(ctx, start, end)
}

// AvailableSeats returns the display snapshot of free seats for a
// showing: the cinema template minus the current ledger.  Snapshots
// are never the basis for a write decision; CreateHold re-validates
// inside its transaction.
func (c *Coordinator) AvailableSeats(ctx context.Context, showtimeID uint64) ([]model.Seat, error) {
	st, err := c.showtimes.GetByID(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	cinema, err := c.cinemas.GetByID(ctx, st.CinemaID)
	if err != nil {
		return nil, err
	}
	ledger, err := c.showtimes.Ledger(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	return model.AvailableSeats(cinema, ledger), nil
}
