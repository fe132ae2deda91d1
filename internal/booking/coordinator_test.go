package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fuad208/MovieStore1-sub000/internal/model"
	"github.com/Fuad208/MovieStore1-sub000/internal/repository"
)

var frozenNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestCoordinator(t *testing.T) (*Coordinator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	coord := NewCoordinator(db,
		repository.NewCinemaRepo(db),
		repository.NewShowtimeRepo(db),
		repository.NewReservationRepo(db),
	).WithClock(func() time.Time { return frozenNow })
	return coord, mock
}

var showtimeCols = []string{
	"id", "movie_id", "cinema_id", "show_date", "end_date", "start_times",
	"price_cents", "available_seats", "is_active", "created_at", "updated_at",
}

func showtimeRow() *sqlmock.Rows {
	return sqlmock.NewRows(showtimeCols).AddRow(
		int64(7), int64(3), int64(1),
		time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
		"14:00,19:30", int64(1500), int64(48), true, frozenNow, frozenNow,
	)
}

func expectCinemaLookup(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`FROM cinemas WHERE id = \?`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "city", "ticket_price_cents", "total_seats", "seats_available", "created_at", "updated_at",
		}).AddRow(int64(1), "Grand Central", "Springfield", int64(1500), int64(4), int64(4), frozenNow, frozenNow))
	mock.ExpectQuery(`FROM cinema_seats WHERE cinema_id = \?`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"row_label", "seat_number", "seat_type", "is_available"}).
			AddRow("A", int64(1), model.SeatTypeRegular, true).
			AddRow("A", int64(2), model.SeatTypeRegular, true).
			AddRow("B", int64(1), model.SeatTypeVIP, true).
			AddRow("B", int64(2), model.SeatTypeVIP, true))
}

var reservationCols = []string{
	"id", "reservation_number", "movie_id", "cinema_id", "showtime_id",
	"user_id", "username", "phone", "show_date", "start_at",
	"ticket_price_cents", "discount_cents", "tax_cents", "total_cents", "final_total_cents",
	"status", "payment_status", "checkin", "checkin_time",
	"expires_at", "confirmed_at", "cancelled_at", "cancel_reason", "refunded_at", "refund_amount_cents",
	"created_at", "updated_at",
}

// reservationRow renders a stored reservation for the lock query.
func reservationRow(status model.ReservationStatus, payment model.PaymentStatus, expiresAt *time.Time) *sqlmock.Rows {
	var exp interface{}
	if expiresAt != nil {
		exp = expiresAt.UTC()
	}
	return sqlmock.NewRows(reservationCols).AddRow(
		int64(42), "RSV-test", int64(3), int64(1), int64(7),
		"u-1", "alice", "555-0100",
		time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), "19:30",
		int64(1500), int64(0), int64(0), int64(3000), int64(3000),
		string(status), string(payment), false, nil,
		exp, nil, nil, nil, nil, int64(0),
		frozenNow, frozenNow,
	)
}

func expectReservationLock(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
		WithArgs(int64(42)).
		WillReturnRows(rows)
	mock.ExpectQuery(`FROM reservation_seats`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"row_label", "seat_number"}).
			AddRow("A", int64(1)).
			AddRow("A", int64(2)))
}

func expectSeatRelease(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`FROM showtime_reserved_seats WHERE showtime_id = \? AND reservation_id = \?`).
		WithArgs(int64(7), int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"row_label", "seat_number"}).
			AddRow("A", int64(1)).
			AddRow("A", int64(2)))
	mock.ExpectExec(`DELETE FROM showtime_reserved_seats`).
		WithArgs(int64(7), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE showtimes SET available_seats = available_seats \+ \?`).
		WithArgs(2, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func holdRequest() HoldRequest {
	return HoldRequest{
		ShowtimeID: 7,
		Seats:      []model.SeatRef{{Row: "A", Number: 1}, {Row: "A", Number: 2}},
		UserID:     "u-1",
		Username:   "alice",
		Phone:      "555-0100",
		StartAt:    "19:30",
	}
}

// expectHoldTx sets up one transactional hold attempt up to the ledger
// read; the caller adds the write expectations (or their failure).
func expectHoldTx(mock sqlmock.Sqlmock, ledger *sqlmock.Rows) {
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM showtimes WHERE id = \? FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(showtimeRow())
	mock.ExpectQuery(`FROM showtime_reserved_seats`).
		WithArgs(int64(7)).
		WillReturnRows(ledger)
}

func expectHoldWrites(mock sqlmock.Sqlmock) {
	mock.ExpectExec(`INSERT INTO reservations`).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(`INSERT INTO reservation_seats`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO showtime_reserved_seats`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE showtimes SET available_seats = available_seats - \?`).
		WithArgs(2, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func emptyLedger() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"row_label", "seat_number", "reservation_id"})
}

func TestCreateHold(t *testing.T) {
	t.Run("writes ledger and pending reservation", func(t *testing.T) {
		coord, mock := newTestCoordinator(t)
		mock.ExpectQuery(`FROM showtimes WHERE id = \?`).
			WithArgs(int64(7)).
			WillReturnRows(showtimeRow())
		expectCinemaLookup(mock)
		expectHoldTx(mock, emptyLedger())
		expectHoldWrites(mock)
		mock.ExpectCommit()

		res, err := coord.CreateHold(context.Background(), holdRequest())
		require.NoError(t, err)
		assert.Equal(t, uint64(42), res.ID)
		assert.Equal(t, model.StatusPending, res.Status)
		require.NotNil(t, res.ExpiresAt)
		assert.Equal(t, frozenNow.Add(model.HoldTTL), *res.ExpiresAt)
		assert.Equal(t, int64(3000), res.FinalTotalCents)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ledger conflict writes nothing", func(t *testing.T) {
		coord, mock := newTestCoordinator(t)
		mock.ExpectQuery(`FROM showtimes WHERE id = \?`).
			WithArgs(int64(7)).
			WillReturnRows(showtimeRow())
		expectCinemaLookup(mock)
		taken := sqlmock.NewRows([]string{"row_label", "seat_number", "reservation_id"}).
			AddRow("A", int64(2), int64(99))
		expectHoldTx(mock, taken)
		mock.ExpectRollback()

		_, err := coord.CreateHold(context.Background(), holdRequest())
		var unavailable *model.SeatUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, []model.SeatRef{{Row: "A", Number: 2}}, unavailable.Conflicting)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("seat outside template rejected before any transaction", func(t *testing.T) {
		coord, mock := newTestCoordinator(t)
		mock.ExpectQuery(`FROM showtimes WHERE id = \?`).
			WithArgs(int64(7)).
			WillReturnRows(showtimeRow())
		expectCinemaLookup(mock)

		req := holdRequest()
		req.Seats = []model.SeatRef{{Row: "Z", Number: 40}}
		_, err := coord.CreateHold(context.Background(), req)
		var unavailable *model.SeatUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, []model.SeatRef{{Row: "Z", Number: 40}}, unavailable.Conflicting)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate ledger key retries and succeeds", func(t *testing.T) {
		coord, mock := newTestCoordinator(t)
		mock.ExpectQuery(`FROM showtimes WHERE id = \?`).
			WithArgs(int64(7)).
			WillReturnRows(showtimeRow())
		expectCinemaLookup(mock)

		// First attempt loses the unique-key race on the ledger.
		expectHoldTx(mock, emptyLedger())
		mock.ExpectExec(`INSERT INTO reservations`).
			WillReturnResult(sqlmock.NewResult(41, 1))
		mock.ExpectExec(`INSERT INTO reservation_seats`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`INSERT INTO showtime_reserved_seats`).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "duplicate entry"})
		mock.ExpectRollback()

		// Second attempt goes through.
		expectHoldTx(mock, emptyLedger())
		expectHoldWrites(mock)
		mock.ExpectCommit()

		res, err := coord.CreateHold(context.Background(), holdRequest())
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, res.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid seat set fails without touching the store", func(t *testing.T) {
		coord, mock := newTestCoordinator(t)
		req := holdRequest()
		req.Seats = nil
		_, err := coord.CreateHold(context.Background(), req)
		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConfirm(t *testing.T) {
	t.Run("pending hold confirms", func(t *testing.T) {
		coord, mock := newTestCoordinator(t)
		exp := frozenNow.Add(5 * time.Minute)
		mock.ExpectBegin()
		expectReservationLock(mock, reservationRow(model.StatusPending, model.PaymentPending, &exp))
		mock.ExpectExec(`UPDATE reservations SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		res, err := coord.Confirm(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, res.Status)
		assert.Equal(t, model.PaymentPaid, res.PaymentStatus)
		assert.Nil(t, res.ExpiresAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lapsed hold rolls back untouched", func(t *testing.T) {
		coord, mock := newTestCoordinator(t)
		exp := frozenNow.Add(-time.Minute)
		mock.ExpectBegin()
		expectReservationLock(mock, reservationRow(model.StatusPending, model.PaymentPending, &exp))
		mock.ExpectRollback()

		_, err := coord.Confirm(context.Background(), 42)
		assert.ErrorIs(t, err, model.ErrExpired)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown reservation", func(t *testing.T) {
		coord, mock := newTestCoordinator(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows(reservationCols))
		mock.ExpectRollback()

		_, err := coord.Confirm(context.Background(), 42)
		assert.ErrorIs(t, err, repository.ErrReservationNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCancel(t *testing.T) {
	t.Run("confirmed reservation refunds and releases seats", func(t *testing.T) {
		coord, mock := newTestCoordinator(t)
		mock.ExpectBegin()
		expectReservationLock(mock, reservationRow(model.StatusConfirmed, model.PaymentPaid, nil))
		mock.ExpectExec(`UPDATE reservations SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectSeatRelease(mock)
		mock.ExpectCommit()

		res, err := coord.Cancel(context.Background(), 42, "show moved")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, res.Status)
		assert.Equal(t, model.PaymentRefunded, res.PaymentStatus)
		assert.Equal(t, int64(3000), res.RefundAmountCents)
		assert.Equal(t, "show moved", res.CancelReason)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("completed reservation rejects cancel", func(t *testing.T) {
		coord, mock := newTestCoordinator(t)
		mock.ExpectBegin()
		expectReservationLock(mock, reservationRow(model.StatusCompleted, model.PaymentPaid, nil))
		mock.ExpectRollback()

		_, err := coord.Cancel(context.Background(), 42, "")
		var serr *model.InvalidStateError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, model.StatusCompleted, serr.From)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProcessRefund(t *testing.T) {
	coord, mock := newTestCoordinator(t)
	mock.ExpectBegin()
	expectReservationLock(mock, reservationRow(model.StatusCancelled, model.PaymentRefunded, nil))
	mock.ExpectExec(`UPDATE reservations SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Seats were already released at cancel time; release is idempotent
	// and finds nothing to free.
	mock.ExpectQuery(`FROM showtime_reserved_seats WHERE showtime_id = \? AND reservation_id = \?`).
		WithArgs(int64(7), int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"row_label", "seat_number"}))
	mock.ExpectCommit()

	partial := int64(1200)
	res, err := coord.ProcessRefund(context.Background(), 42, &partial, "goodwill")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefunded, res.Status)
	assert.Equal(t, int64(1200), res.RefundAmountCents)
	assert.Equal(t, "goodwill", res.CancelReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPerformCheckin(t *testing.T) {
	// Show starts 19:30; pin the clock just inside the window.
	coord, mock := newTestCoordinator(t)
	coord.WithClock(func() time.Time {
		return time.Date(2026, 3, 14, 19, 10, 0, 0, time.UTC)
	})
	mock.ExpectBegin()
	expectReservationLock(mock, reservationRow(model.StatusConfirmed, model.PaymentPaid, nil))
	mock.ExpectExec(`UPDATE reservations SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := coord.PerformCheckin(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, res.Checkin)
	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireSweep(t *testing.T) {
	t.Run("expires lapsed holds and skips ones that moved on", func(t *testing.T) {
		coord, mock := newTestCoordinator(t)
		mock.ExpectQuery(`SELECT id FROM reservations`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)).AddRow(int64(42)))

		// First candidate is still a lapsed pending hold.
		exp := frozenNow.Add(-time.Minute)
		mock.ExpectBegin()
		expectReservationLock(mock, reservationRow(model.StatusPending, model.PaymentPending, &exp))
		mock.ExpectExec(`UPDATE reservations SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectSeatRelease(mock)
		mock.ExpectCommit()

		// Second candidate was confirmed between the scan and the lock.
		mock.ExpectBegin()
		expectReservationLock(mock, reservationRow(model.StatusConfirmed, model.PaymentPaid, nil))
		mock.ExpectRollback()

		count, err := coord.ExpireSweep(context.Background(), frozenNow)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a failing candidate does not abort the batch", func(t *testing.T) {
		coord, mock := newTestCoordinator(t)
		mock.ExpectQuery(`SELECT id FROM reservations`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)).AddRow(int64(42)))

		mock.ExpectBegin()
		mock.ExpectQuery(`FROM reservations WHERE id = \? FOR UPDATE`).
			WithArgs(int64(42)).
			WillReturnError(errors.New("lock wait timeout"))
		mock.ExpectRollback()

		exp := frozenNow.Add(-time.Minute)
		mock.ExpectBegin()
		expectReservationLock(mock, reservationRow(model.StatusPending, model.PaymentPending, &exp))
		mock.ExpectExec(`UPDATE reservations SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectSeatRelease(mock)
		mock.ExpectCommit()

		count, err := coord.ExpireSweep(context.Background(), frozenNow)
		require.Error(t, err)
		assert.Equal(t, 1, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRetryableConflict(t *testing.T) {
	assert.True(t, retryableConflict(&mysql.MySQLError{Number: 1062}))
	assert.True(t, retryableConflict(&mysql.MySQLError{Number: 1205}))
	assert.True(t, retryableConflict(&mysql.MySQLError{Number: 1213}))
	assert.False(t, retryableConflict(&mysql.MySQLError{Number: 1064}))
	assert.False(t, retryableConflict(errors.New("plain")))
	assert.False(t, retryableConflict(nil))
}
