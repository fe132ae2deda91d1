package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Fuad208/MovieStore1-sub000/internal/model"
)

// CinemaRepo provides access to the cinemas table and the per-cinema
// seat template in cinema_seats.  The template is the catalog of
// physical seats for a venue; per-showing occupancy is tracked by the
// showtime ledger, not here.  All timestamps are stored in UTC.
type CinemaRepo struct {
	db *sql.DB
}

// NewCinemaRepo returns a new CinemaRepo bound to the given database.
func NewCinemaRepo(db *sql.DB) *CinemaRepo { return &CinemaRepo{db: db} }

// DB exposes the underlying handle so orchestration code can open
// transactions spanning multiple repositories.
func (r *CinemaRepo) DB() *sql.DB { return r.db }

// Create inserts a cinema together with its seat template in one
// transaction.  The generated ID and derived seat counters are
// populated on the passed model.  Seat uniqueness per (row, number)
// is enforced by the cinema_seats unique key.
func (r *CinemaRepo) Create(ctx context.Context, c *model.Cinema) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	c.RecomputeSeatCounts()
	const q = `INSERT INTO cinemas (name, city, ticket_price_cents, total_seats, seats_available) VALUES (?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, c.Name, c.City, c.TicketPriceCents, c.TotalSeats, c.SeatsAvailable)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	if len(c.Seats) > 0 {
		query := `INSERT INTO cinema_seats (cinema_id, row_label, seat_number, seat_type, is_available) VALUES `
		args := make([]interface{}, 0, len(c.Seats)*5)
		for i, s := range c.Seats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			args = append(args, c.ID, s.Row, s.Number, s.SeatType, s.IsAvailable)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID loads a cinema and its full seat template.  It returns
// ErrCinemaNotFound when no cinema with the given ID exists.  Seats
// are ordered by row then number for deterministic output.
func (r *CinemaRepo) GetByID(ctx context.Context, id uint64) (*model.Cinema, error) {
	const q = `SELECT id, name, city, ticket_price_cents, total_seats, seats_available, created_at, updated_at
	           FROM cinemas WHERE id = ?`
	var c model.Cinema
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&c.ID, &c.Name, &c.City, &c.TicketPriceCents, &c.TotalSeats, &c.SeatsAvailable,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCinemaNotFound
	}
	if err != nil {
		return nil, err
	}
	const seatQ = `SELECT row_label, seat_number, seat_type, is_available
	               FROM cinema_seats WHERE cinema_id = ?
	               ORDER BY row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, seatQ, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.Row, &s.Number, &s.SeatType, &s.IsAvailable); err != nil {
			return nil, err
		}
		c.Seats = append(c.Seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &c, nil
}

// SeatTemplate returns only the seat list for a cinema, used when the
// caller does not need the cinema header row.
func (r *CinemaRepo) SeatTemplate(ctx context.Context, cinemaID uint64) ([]model.Seat, error) {
	const q = `SELECT row_label, seat_number, seat_type, is_available
	           FROM cinema_seats WHERE cinema_id = ?
	           ORDER BY row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, q, cinemaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.Row, &s.Number, &s.SeatType, &s.IsAvailable); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// SetSeatAvailabilityTx flips template availability for the given seat
// references as part of an enclosing transaction and refreshes the
// cinema's seats_available counter from the table in the same unit.
// Releasing a seat that is already available is a no-op, which keeps
// release idempotent.
func (r *CinemaRepo) SetSeatAvailabilityTx(ctx context.Context, tx *sql.Tx, cinemaID uint64, refs []model.SeatRef, available bool) error {
	if len(refs) == 0 {
		return nil
	}
	query := `UPDATE cinema_seats SET is_available = ? WHERE cinema_id = ? AND (`
	args := []interface{}{available, cinemaID}
	for i, ref := range refs {
		if i > 0 {
			query += " OR "
		}
		query += "(row_label = ? AND seat_number = ?)"
		args = append(args, ref.Row, ref.Number)
	}
	query += ")"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	const recount = `UPDATE cinemas c
	                 SET c.seats_available = (SELECT COUNT(*) FROM cinema_seats s WHERE s.cinema_id = c.id AND s.is_available = 1)
	                 WHERE c.id = ?`
	_, err := tx.ExecContext(ctx, recount, cinemaID)
	return err
}
