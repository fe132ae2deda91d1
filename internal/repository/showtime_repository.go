package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/Fuad208/MovieStore1-sub000/internal/model"
)

// ShowtimeRepo provides access to the showtimes table and the
// per-showing seat ledger in showtime_reserved_seats.  The ledger is
// the authoritative record of occupancy for a showing: one row per
// (showtime, row, seat) claimed by an active reservation, protected
// by UNIQUE(showtime_id, row_label, seat_number).
//
// Reserve/release methods are Tx-scoped because they only make sense
// inside the booking coordinator's transactions; a ledger change and
// its reservation change must commit together or not at all.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo returns a new ShowtimeRepo bound to the given database.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

// DB exposes the underlying handle for transaction control.
func (r *ShowtimeRepo) DB() *sql.DB { return r.db }

// startTimes are persisted as a comma-joined "HH:MM" list.
func joinStartTimes(ts []string) string { return strings.Join(ts, ",") }
func splitStartTimes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Create inserts a showtime.  The generated ID is populated on the
// passed model.  available_seats starts at the cinema's total seat
// count; the caller supplies it on the model.
func (r *ShowtimeRepo) Create(ctx context.Context, st *model.Showtime) error {
	const q = `INSERT INTO showtimes (movie_id, cinema_id, show_date, end_date, start_times, price_cents, available_seats, is_active)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		st.MovieID, st.CinemaID, st.ShowDate, st.EndDate,
		joinStartTimes(st.StartTimes), st.PriceCents, st.AvailableSeatsCount, st.IsActive,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	st.ID = uint64(id)
	return nil
}

func scanShowtime(row *sql.Row) (*model.Showtime, error) {
	var st model.Showtime
	var startTimes string
	err := row.Scan(
		&st.ID, &st.MovieID, &st.CinemaID, &st.ShowDate, &st.EndDate,
		&startTimes, &st.PriceCents, &st.AvailableSeatsCount, &st.IsActive,
		&st.CreatedAt, &st.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowtimeNotFound
	}
	if err != nil {
		return nil, err
	}
	st.StartTimes = splitStartTimes(startTimes)
	return &st, nil
}

const showtimeColumns = `id, movie_id, cinema_id, show_date, end_date, start_times, price_cents, available_seats, is_active, created_at, updated_at`

// GetByID loads a showtime by ID.  Returns ErrShowtimeNotFound when
// it does not exist.
func (r *ShowtimeRepo) GetByID(ctx context.Context, id uint64) (*model.Showtime, error) {
	return scanShowtime(r.db.QueryRowContext(ctx,
		`SELECT `+showtimeColumns+` FROM showtimes WHERE id = ?`, id))
}

// GetForUpdateTx loads a showtime inside a transaction with a row
// lock.  Locking the showtime row is the serialization point for all
// ledger mutations of that showing: two concurrent holds for the same
// showtime queue behind this SELECT ... FOR UPDATE.
func (r *ShowtimeRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Showtime, error) {
	return scanShowtime(tx.QueryRowContext(ctx,
		`SELECT `+showtimeColumns+` FROM showtimes WHERE id = ? FOR UPDATE`, id))
}

// Ledger returns the current reserved-seat entries for a showtime as
// an eventually-consistent snapshot for display.  Write decisions must
// use LedgerTx inside a transaction instead.
func (r *ShowtimeRepo) Ledger(ctx context.Context, showtimeID uint64) ([]model.ReservedSeat, error) {
	return r.ledger(ctx, r.db.QueryContext, showtimeID)
}

// LedgerTx returns the reserved-seat entries within a transaction,
// reflecting any locks held by it.
func (r *ShowtimeRepo) LedgerTx(ctx context.Context, tx *sql.Tx, showtimeID uint64) ([]model.ReservedSeat, error) {
	return r.ledger(ctx, tx.QueryContext, showtimeID)
}

type queryFunc func(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

func (r *ShowtimeRepo) ledger(ctx context.Context, query queryFunc, showtimeID uint64) ([]model.ReservedSeat, error) {
	const q = `SELECT row_label, seat_number, reservation_id
	           FROM showtime_reserved_seats
	           WHERE showtime_id = ?
	           ORDER BY row_label, seat_number`
	rows, err := query(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ledger := make([]model.ReservedSeat, 0)
	for rows.Next() {
		var e model.ReservedSeat
		if err := rows.Scan(&e.Row, &e.Number, &e.ReservationID); err != nil {
			return nil, err
		}
		ledger = append(ledger, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ledger, nil
}

// ReserveSeatsTx appends ledger entries for each seat and decrements
// the showtime's available_seats counter by len(refs), all within the
// provided transaction.  The caller must already have validated that
// none of the seats appear in the ledger; the unique key is the final
// guard and surfaces as a duplicate-key error if a concurrent
// transaction won the race.
func (r *ShowtimeRepo) ReserveSeatsTx(ctx context.Context, tx *sql.Tx, showtimeID, reservationID uint64, refs []model.SeatRef) error {
	if len(refs) == 0 {
		return nil
	}
	query := `INSERT INTO showtime_reserved_seats (showtime_id, row_label, seat_number, reservation_id) VALUES `
	args := make([]interface{}, 0, len(refs)*4)
	for i, ref := range refs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, showtimeID, ref.Row, ref.Number, reservationID)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	const dec = `UPDATE showtimes SET available_seats = available_seats - ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, dec, len(refs), showtimeID)
	return err
}

// ReleaseSeatsTx removes every ledger entry owned by the given
// reservation and increments the showtime's available_seats counter
// accordingly.  When the reservation owns no entries the call is a
// no-op, making release idempotent.  It returns the seat references
// that were freed.
func (r *ShowtimeRepo) ReleaseSeatsTx(ctx context.Context, tx *sql.Tx, showtimeID, reservationID uint64) ([]model.SeatRef, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT row_label, seat_number FROM showtime_reserved_seats WHERE showtime_id = ? AND reservation_id = ?`,
		showtimeID, reservationID,
	)
	if err != nil {
		return nil, err
	}
	var freed []model.SeatRef
	for rows.Next() {
		var ref model.SeatRef
		if scanErr := rows.Scan(&ref.Row, &ref.Number); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		freed = append(freed, ref)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(freed) == 0 {
		return []model.SeatRef{}, nil
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM showtime_reserved_seats WHERE showtime_id = ? AND reservation_id = ?`,
		showtimeID, reservationID,
	); err != nil {
		return nil, err
	}
	const inc = `UPDATE showtimes SET available_seats = available_seats + ? WHERE id = ?`
	if _, err = tx.ExecContext(ctx, inc, len(freed), showtimeID); err != nil {
		return nil, err
	}
	return freed, nil
}
