package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func testShowtime() *Showtime {
	return &Showtime{
		ID:         7,
		MovieID:    3,
		CinemaID:   1,
		ShowDate:   time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
		StartTimes: []string{"14:00", "19:30"},
		PriceCents: 1500,
		IsActive:   true,
	}
}

func newPending(t *testing.T, seats []SeatRef) *Reservation {
	t.Helper()
	r, err := NewReservation("RSV-1", testShowtime(), seats, "u-1", "alice", "555-0100", "19:30", testNow)
	require.NoError(t, err)
	return r
}

func TestNewReservation(t *testing.T) {
	seats := []SeatRef{{Row: "A", Number: 1}, {Row: "A", Number: 2}}

	t.Run("pending hold with expiry and totals", func(t *testing.T) {
		r := newPending(t, seats)
		assert.Equal(t, StatusPending, r.Status)
		assert.Equal(t, PaymentPending, r.PaymentStatus)
		require.NotNil(t, r.ExpiresAt)
		assert.Equal(t, testNow.Add(HoldTTL), *r.ExpiresAt)
		assert.Equal(t, int64(3000), r.TotalCents)
		assert.Equal(t, int64(3000), r.FinalTotalCents)
		assert.Equal(t, "19:30", r.StartAt)
	})

	t.Run("empty start time defaults to first slot", func(t *testing.T) {
		r, err := NewReservation("RSV-2", testShowtime(), seats, "u-1", "alice", "", "", testNow)
		require.NoError(t, err)
		assert.Equal(t, "14:00", r.StartAt)
	})

	t.Run("unscheduled start time rejected", func(t *testing.T) {
		_, err := NewReservation("RSV-3", testShowtime(), seats, "u-1", "alice", "", "09:00", testNow)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("invalid seat set rejected", func(t *testing.T) {
		_, err := NewReservation("RSV-4", testShowtime(), nil, "u-1", "alice", "", "19:30", testNow)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestRecomputeTotals(t *testing.T) {
	r := newPending(t, []SeatRef{{Row: "B", Number: 5}, {Row: "B", Number: 6}})
	r.DiscountCents = 500
	r.TaxCents = 300
	r.RecomputeTotals()
	assert.Equal(t, int64(3000), r.TotalCents)
	assert.Equal(t, int64(2800), r.FinalTotalCents)
}

func TestConfirm(t *testing.T) {
	seats := []SeatRef{{Row: "A", Number: 1}}

	t.Run("pending confirms and clears expiry", func(t *testing.T) {
		r := newPending(t, seats)
		require.NoError(t, r.Confirm(testNow.Add(time.Minute)))
		assert.Equal(t, StatusConfirmed, r.Status)
		assert.Equal(t, PaymentPaid, r.PaymentStatus)
		assert.Nil(t, r.ExpiresAt)
		require.NotNil(t, r.ConfirmedAt)
	})

	t.Run("lapsed hold returns expired", func(t *testing.T) {
		r := newPending(t, seats)
		err := r.Confirm(testNow.Add(HoldTTL + time.Second))
		assert.ErrorIs(t, err, ErrExpired)
		assert.Equal(t, StatusPending, r.Status)
	})

	t.Run("double confirm rejected", func(t *testing.T) {
		r := newPending(t, seats)
		require.NoError(t, r.Confirm(testNow))
		var serr *InvalidStateError
		require.ErrorAs(t, r.Confirm(testNow), &serr)
		assert.Equal(t, StatusConfirmed, serr.From)
	})
}

func TestCancel(t *testing.T) {
	seats := []SeatRef{{Row: "A", Number: 1}, {Row: "A", Number: 2}}

	t.Run("pending cancels without refund", func(t *testing.T) {
		r := newPending(t, seats)
		require.NoError(t, r.Cancel("changed plans", testNow))
		assert.Equal(t, StatusCancelled, r.Status)
		assert.Equal(t, PaymentPending, r.PaymentStatus)
		assert.Zero(t, r.RefundAmountCents)
		assert.Equal(t, "changed plans", r.CancelReason)
		assert.Nil(t, r.ExpiresAt)
	})

	t.Run("paid reservation records full refund", func(t *testing.T) {
		r := newPending(t, seats)
		require.NoError(t, r.Confirm(testNow))
		require.NoError(t, r.Cancel("show moved", testNow.Add(time.Hour)))
		assert.Equal(t, StatusCancelled, r.Status)
		assert.Equal(t, PaymentRefunded, r.PaymentStatus)
		assert.Equal(t, r.FinalTotalCents, r.RefundAmountCents)
	})

	t.Run("terminal states reject cancel", func(t *testing.T) {
		r := newPending(t, seats)
		require.NoError(t, r.Cancel("", testNow))
		var serr *InvalidStateError
		require.ErrorAs(t, r.Cancel("", testNow), &serr)
	})
}

func TestRefund(t *testing.T) {
	seats := []SeatRef{{Row: "C", Number: 3}}

	t.Run("nil amount refunds full total", func(t *testing.T) {
		r := newPending(t, seats)
		require.NoError(t, r.Confirm(testNow))
		require.NoError(t, r.Refund(nil, testNow.Add(time.Hour)))
		assert.Equal(t, StatusRefunded, r.Status)
		assert.Equal(t, PaymentRefunded, r.PaymentStatus)
		assert.Equal(t, r.FinalTotalCents, r.RefundAmountCents)
		require.NotNil(t, r.RefundedAt)
	})

	t.Run("partial amount recorded as given", func(t *testing.T) {
		r := newPending(t, seats)
		require.NoError(t, r.Confirm(testNow))
		require.NoError(t, r.Cancel("", testNow))
		partial := int64(700)
		require.NoError(t, r.Refund(&partial, testNow))
		assert.Equal(t, int64(700), r.RefundAmountCents)
	})

	t.Run("pending rejects refund", func(t *testing.T) {
		r := newPending(t, seats)
		var serr *InvalidStateError
		require.ErrorAs(t, r.Refund(nil, testNow), &serr)
	})
}

func TestPerformCheckin(t *testing.T) {
	seats := []SeatRef{{Row: "D", Number: 9}}
	// Show starts 2026-03-14 19:30 UTC.
	start := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

	confirmed := func(t *testing.T) *Reservation {
		r := newPending(t, seats)
		require.NoError(t, r.Confirm(testNow))
		return r
	}

	t.Run("inside window completes", func(t *testing.T) {
		r := confirmed(t)
		require.NoError(t, r.PerformCheckin(start.Add(-10*time.Minute)))
		assert.True(t, r.Checkin)
		assert.Equal(t, StatusCompleted, r.Status)
		require.NotNil(t, r.CheckinTime)
	})

	t.Run("window boundaries", func(t *testing.T) {
		r := confirmed(t)
		require.NoError(t, r.PerformCheckin(start.Add(-CheckinWindow)))

		r = confirmed(t)
		require.NoError(t, r.PerformCheckin(start.Add(CheckinWindow)))
	})

	t.Run("too early", func(t *testing.T) {
		r := confirmed(t)
		err := r.PerformCheckin(start.Add(-CheckinWindow - time.Minute))
		assert.ErrorIs(t, err, ErrNotYetOpen)
		assert.False(t, r.Checkin)
	})

	t.Run("too late", func(t *testing.T) {
		r := confirmed(t)
		err := r.PerformCheckin(start.Add(CheckinWindow + time.Minute))
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("repeat check-in rejected", func(t *testing.T) {
		r := confirmed(t)
		require.NoError(t, r.PerformCheckin(start))
		var serr *InvalidStateError
		require.ErrorAs(t, r.PerformCheckin(start), &serr)
	})

	t.Run("pending cannot check in", func(t *testing.T) {
		r := newPending(t, seats)
		var serr *InvalidStateError
		require.ErrorAs(t, r.PerformCheckin(start), &serr)
	})
}

func TestExpiryAndTerminal(t *testing.T) {
	seats := []SeatRef{{Row: "A", Number: 1}}

	r := newPending(t, seats)
	assert.False(t, r.IsExpired(testNow.Add(HoldTTL-time.Second)))
	assert.True(t, r.IsExpired(testNow.Add(HoldTTL+time.Second)))

	require.NoError(t, r.Confirm(testNow))
	assert.False(t, r.IsExpired(testNow.Add(24*time.Hour)))
	assert.False(t, r.IsTerminal())

	require.NoError(t, r.Refund(nil, testNow))
	assert.True(t, r.IsTerminal())
}

func TestShowStart(t *testing.T) {
	r := newPending(t, []SeatRef{{Row: "A", Number: 1}})
	assert.Equal(t, time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC), r.ShowStart())

	r.StartAt = "not-a-time"
	assert.Equal(t, r.ShowDate, r.ShowStart())
}
