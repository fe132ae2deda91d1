package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/Fuad208/MovieStore1-sub000/internal/model"
)

// ReservationRepo provides persistence for reservations and their
// seat sets.  Seats booked under a reservation live in the
// reservation_seats table.  Lifecycle mutations happen on the model
// and are persisted whole through UpdateStateTx; rows are never
// deleted, terminal states are retained for audit.  All timestamps
// are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle for transaction control.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

const reservationColumns = `id, reservation_number, movie_id, cinema_id, showtime_id,
	user_id, username, phone, show_date, start_at,
	ticket_price_cents, discount_cents, tax_cents, total_cents, final_total_cents,
	status, payment_status, checkin, checkin_time,
	expires_at, confirmed_at, cancelled_at, cancel_reason, refunded_at, refund_amount_cents,
	created_at, updated_at`

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var res model.Reservation
	var checkinTime, expiresAt, confirmedAt, cancelledAt, refundedAt sql.NullTime
	var cancelReason sql.NullString
	err := row.Scan(
		&res.ID, &res.ReservationNumber, &res.MovieID, &res.CinemaID, &res.ShowtimeID,
		&res.UserID, &res.Username, &res.Phone, &res.ShowDate, &res.StartAt,
		&res.TicketPriceCents, &res.DiscountCents, &res.TaxCents, &res.TotalCents, &res.FinalTotalCents,
		&res.Status, &res.PaymentStatus, &res.Checkin, &checkinTime,
		&expiresAt, &confirmedAt, &cancelledAt, &cancelReason, &refundedAt, &res.RefundAmountCents,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if checkinTime.Valid {
		t := checkinTime.Time
		res.CheckinTime = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		res.ExpiresAt = &t
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		res.ConfirmedAt = &t
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		res.CancelledAt = &t
	}
	if refundedAt.Valid {
		t := refundedAt.Time
		res.RefundedAt = &t
	}
	if cancelReason.Valid {
		res.CancelReason = cancelReason.String
	}
	return &res, nil
}

// CreateTx inserts a new reservation and its seat rows within the
// scope of an existing transaction.  It populates the generated ID on
// the provided model.  The caller must commit or roll back.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations
	           (reservation_number, movie_id, cinema_id, showtime_id, user_id, username, phone,
	            show_date, start_at, ticket_price_cents, discount_cents, tax_cents, total_cents, final_total_cents,
	            status, payment_status, checkin, expires_at, refund_amount_cents)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		res.ReservationNumber, res.MovieID, res.CinemaID, res.ShowtimeID, res.UserID, res.Username, res.Phone,
		res.ShowDate, res.StartAt, res.TicketPriceCents, res.DiscountCents, res.TaxCents, res.TotalCents, res.FinalTotalCents,
		res.Status, res.PaymentStatus, res.Checkin, nullTime(res.ExpiresAt), res.RefundAmountCents,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	if len(res.Seats) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_seats (reservation_id, row_label, seat_number) VALUES `
	args := make([]interface{}, 0, len(res.Seats)*3)
	for i, ref := range res.Seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, res.ID, ref.Row, ref.Number)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// GetByID loads a reservation and its seats.  Returns
// ErrReservationNotFound when it does not exist.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	if res.Seats, err = r.seats(ctx, r.db.QueryContext, res.ID); err != nil {
		return nil, err
	}
	return res, nil
}

// GetForUpdateTx loads a reservation with a row lock inside the
// provided transaction.  Lifecycle operations lock the reservation
// row first so that confirm, cancel and the expiry sweep serialize on
// the same record instead of overwriting each other.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	if res.Seats, err = r.seats(ctx, tx.QueryContext, res.ID); err != nil {
		return nil, err
	}
	return res, nil
}

func (r *ReservationRepo) seats(ctx context.Context, query queryFunc, reservationID uint64) ([]model.SeatRef, error) {
	const q = `SELECT row_label, seat_number FROM reservation_seats
	           WHERE reservation_id = ? ORDER BY row_label, seat_number`
	rows, err := query(ctx, q, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.SeatRef
	for rows.Next() {
		var ref model.SeatRef
		if err := rows.Scan(&ref.Row, &ref.Number); err != nil {
			return nil, err
		}
		seats = append(seats, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// UpdateStateTx persists the mutable lifecycle fields of a
// reservation within a transaction.  The seat set and identity fields
// never change after creation and are not written here.
func (r *ReservationRepo) UpdateStateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `UPDATE reservations SET
	           status = ?, payment_status = ?, checkin = ?, checkin_time = ?,
	           expires_at = ?, confirmed_at = ?, cancelled_at = ?, cancel_reason = ?,
	           refunded_at = ?, refund_amount_cents = ?,
	           discount_cents = ?, tax_cents = ?, total_cents = ?, final_total_cents = ?
	           WHERE id = ?`
	var reason interface{}
	if res.CancelReason != "" {
		reason = res.CancelReason
	}
	_, err := tx.ExecContext(ctx, q,
		res.Status, res.PaymentStatus, res.Checkin, nullTime(res.CheckinTime),
		nullTime(res.ExpiresAt), nullTime(res.ConfirmedAt), nullTime(res.CancelledAt), reason,
		nullTime(res.RefundedAt), res.RefundAmountCents,
		res.DiscountCents, res.TaxCents, res.TotalCents, res.FinalTotalCents,
		res.ID,
	)
	return err
}

// ListExpiredPending returns the IDs of pending reservations whose
// hold expired before the given instant.  The sweep uses this as its
// candidate list and re-checks each row's status inside its own
// transaction before acting.
func (r *ReservationRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	const q = `SELECT id FROM reservations
	           WHERE status = ? AND expires_at IS NOT NULL AND expires_at < ?
	           ORDER BY expires_at LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, model.StatusPending, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListByUser returns a user's reservations, newest first, optionally
// filtered by status.  Seat sets are populated in a single follow-up
// query.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID string, status *model.ReservationStatus) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = ?`
	args := []interface{}{userID}
	if status != nil {
		q += ` AND status = ?`
		args = append(args, *status)
	}
	q += ` ORDER BY created_at DESC`
	return r.list(ctx, q, args...)
}

// ListUpcoming returns reservations whose show date is today or later
// and whose status still entitles the holder to attend (pending or
// confirmed).  A nil userID returns upcoming reservations across all
// users.
func (r *ReservationRepo) ListUpcoming(ctx context.Context, userID *string, now time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE show_date >= ? AND status IN (?, ?)`
	args := []interface{}{now.UTC().Truncate(24 * time.Hour), model.StatusPending, model.StatusConfirmed}
	if userID != nil {
		q += ` AND user_id = ?`
		args = append(args, *userID)
	}
	q += ` ORDER BY show_date, start_at`
	return r.list(ctx, q, args...)
}

// ListByDateRange returns reservations created inside [start, end),
// optionally filtered by status, oldest first.
func (r *ReservationRepo) ListByDateRange(ctx context.Context, start, end time.Time, status *model.ReservationStatus) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
	      WHERE created_at >= ? AND created_at < ?`
	args := []interface{}{start.UTC(), end.UTC()}
	if status != nil {
		q += ` AND status = ?`
		args = append(args, *status)
	}
	q += ` ORDER BY created_at`
	return r.list(ctx, q, args...)
}

func (r *ReservationRepo) list(ctx context.Context, query string, args ...interface{}) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make([]model.Reservation, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		res.Seats = []model.SeatRef{}
		index[res.ID] = len(results)
		results = append(results, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return results, nil
	}
	// Populate seats for all reservations in one query.
	ids := make([]interface{}, 0, len(results))
	placeholders := make([]string, 0, len(results))
	for _, res := range results {
		ids = append(ids, res.ID)
		placeholders = append(placeholders, "?")
	}
	seatQuery := `SELECT reservation_id, row_label, seat_number
	              FROM reservation_seats
	              WHERE reservation_id IN (` + strings.Join(placeholders, ",") + `)
	              ORDER BY reservation_id, row_label, seat_number`
	srows, err := r.db.QueryContext(ctx, seatQuery, ids...)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var rid uint64
		var ref model.SeatRef
		if err := srows.Scan(&rid, &ref.Row, &ref.Number); err != nil {
			return nil, err
		}
		if idx, ok := index[rid]; ok {
			results[idx].Seats = append(results[idx].Seats, ref)
		}
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// StatusCount aggregates reservations and revenue for one status.
type StatusCount struct {
	Count        int64 `json:"count"`
	RevenueCents int64 `json:"revenue_cents"`
}

// BookingStatistics summarises reservation activity over a period.
// Revenue counts final totals of confirmed and completed reservations
// only; cancelled and refunded money is reported separately.
type BookingStatistics struct {
	TotalReservations int64                  `json:"total_reservations"`
	RevenueCents      int64                  `json:"revenue_cents"`
	RefundedCents     int64                  `json:"refunded_cents"`
	SeatsSold         int64                  `json:"seats_sold"`
	ByStatus          map[string]StatusCount `json:"by_status"`
}

// Statistics aggregates reservation counts, revenue, refunds and
// seats sold for reservations created inside [start, end).
func (r *ReservationRepo) Statistics(ctx context.Context, start, end time.Time) (*BookingStatistics, error) {
	const q = `SELECT r.status, COUNT(*), COALESCE(SUM(r.final_total_cents), 0),
	                  COALESCE(SUM(r.refund_amount_cents), 0),
	                  COALESCE(SUM((SELECT COUNT(*) FROM reservation_seats s WHERE s.reservation_id = r.id)), 0)
	           FROM reservations r
	           WHERE r.created_at >= ? AND r.created_at < ?
	           GROUP BY r.status`
	rows, err := r.db.QueryContext(ctx, q, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := &BookingStatistics{ByStatus: make(map[string]StatusCount)}
	for rows.Next() {
		var status string
		var count, revenue, refunded, seats int64
		if err := rows.Scan(&status, &count, &revenue, &refunded, &seats); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = StatusCount{Count: count, RevenueCents: revenue}
		stats.TotalReservations += count
		switch model.ReservationStatus(status) {
		case model.StatusConfirmed, model.StatusCompleted:
			stats.RevenueCents += revenue
			stats.SeatsSold += seats
		case model.StatusCancelled, model.StatusRefunded:
			stats.RefundedCents += refunded
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}
