package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Fuad208/MovieStore1-sub000/internal/booking"
	"github.com/Fuad208/MovieStore1-sub000/internal/model"
	"github.com/Fuad208/MovieStore1-sub000/internal/queue"
	queuepub "github.com/Fuad208/MovieStore1-sub000/internal/service"
)

// CreateHold handles POST /v1/reservations.  It places a time-bounded
// hold on the requested seats and returns the pending reservation with
// its expiry.  Seat conflicts return 409 with the conflicting labels.
func (h *BookingHandler) CreateHold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		ShowtimeID    uint64          `json:"showtime_id"`
		Seats         []model.SeatRef `json:"seats"`
		StartAt       string          `json:"start_at"`
		DiscountCents int64           `json:"discount_cents"`
		TaxCents      int64           `json:"tax_cents"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ShowtimeID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "showtime_id is required"})
	}
	if len(body.Seats) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats is required"})
	}
	if body.DiscountCents < 0 || body.TaxCents < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "discount and tax must not be negative"})
	}

	res, err := h.Coordinator.CreateHold(c.Request().Context(), booking.HoldRequest{
		ShowtimeID:    body.ShowtimeID,
		Seats:         body.Seats,
		UserID:        userID,
		Username:      getStringClaim(c, "username"),
		Phone:         getStringClaim(c, "phone"),
		StartAt:       body.StartAt,
		DiscountCents: body.DiscountCents,
		TaxCents:      body.TaxCents,
	})
	if err != nil {
		return respondDomainError(c, err)
	}

	h.invalidateSnapshots(c.Request().Context())
	return c.JSON(http.StatusCreated, echo.Map{"item": res})
}

// Confirm handles POST /v1/reservations/:id/confirm.  It finalises a
// pending hold, marks it paid and publishes a confirmation event for
// downstream ticket delivery.  An already-lapsed hold returns 410.
func (h *BookingHandler) Confirm(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Coordinator.Confirm(c.Request().Context(), id)
	if err != nil {
		return respondDomainError(c, err)
	}

	h.publishConfirmed(res)
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Cancel handles POST /v1/reservations/:id/cancel.  It cancels a
// pending or confirmed reservation, releases the seats and publishes a
// cancellation event.  A paid reservation records the full refund.
func (h *BookingHandler) Cancel(c echo.Context) error {
	if _, err := getUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	res, err := h.Coordinator.Cancel(c.Request().Context(), id, body.Reason)
	if err != nil {
		return respondDomainError(c, err)
	}

	h.invalidateSnapshots(c.Request().Context())
	h.publishCancelled(res)
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// ProcessRefund handles POST /v1/reservations/:id/refund.  Staff only.
// It moves a cancelled or confirmed reservation to REFUNDED, recording
// either the requested partial amount or the full final total.
func (h *BookingHandler) ProcessRefund(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		AmountCents *int64 `json:"amount_cents"`
		Reason      string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.AmountCents != nil && *body.AmountCents < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_cents must not be negative"})
	}
	res, err := h.Coordinator.ProcessRefund(c.Request().Context(), id, body.AmountCents, body.Reason)
	if err != nil {
		return respondDomainError(c, err)
	}

	h.invalidateSnapshots(c.Request().Context())
	h.publishCancelled(res)
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// PerformCheckin handles POST /v1/reservations/:id/checkin.  Staff
// only.  Check-in is valid once per reservation within the window
// around the show start; too early returns 409, too late 410.
func (h *BookingHandler) PerformCheckin(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Coordinator.PerformCheckin(c.Request().Context(), id)
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// ExpireSweep handles POST /v1/reservations/sweep.  Staff only.  It
// runs one expiry pass over lapsed pending holds and reports how many
// were released.  The same pass also runs periodically in the
// background worker; the endpoint exists for operational use.
func (h *BookingHandler) ExpireSweep(c echo.Context) error {
	count, err := h.Coordinator.ExpireSweep(c.Request().Context(), time.Now().UTC())
	if err != nil {
		// Partial progress still counts; report both.
		log.Printf("expire sweep finished with errors: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":   "sweep finished with errors",
			"expired": count,
		})
	}
	if count > 0 {
		h.invalidateSnapshots(c.Request().Context())
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": count})
}

// publishConfirmed emits a reservation.confirmed event.  Delivery is
// best-effort; a broker failure must never fail the booking.
func (h *BookingHandler) publishConfirmed(res *model.Reservation) {
	confirmedAt := ""
	if res.ConfirmedAt != nil {
		confirmedAt = res.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	evt := queue.ReservationConfirmedEvent{
		ReservationID:     res.ID,
		ReservationNumber: res.ReservationNumber,
		UserID:            res.UserID,
		Username:          res.Username,
		Phone:             res.Phone,
		MovieID:           res.MovieID,
		CinemaID:          res.CinemaID,
		ShowtimeID:        res.ShowtimeID,
		ShowDate:          res.ShowDate.UTC().Format("2006-01-02"),
		StartAt:           res.StartAt,
		SeatLabels:        seatLabels(res.Seats),
		FinalTotalCents:   res.FinalTotalCents,
		ConfirmedAt:       confirmedAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := queuepub.PublishReservationConfirmed(ctx, evt); err != nil {
			log.Printf("publish reservation.confirmed failed for %s: %v", res.ReservationNumber, err)
		}
	}()
}

// publishCancelled emits a reservation.cancelled event for refund and
// notification consumers.
func (h *BookingHandler) publishCancelled(res *model.Reservation) {
	cancelledAt := ""
	if res.CancelledAt != nil {
		cancelledAt = res.CancelledAt.UTC().Format(time.RFC3339)
	}
	evt := queue.ReservationCancelledEvent{
		ReservationID:     res.ID,
		ReservationNumber: res.ReservationNumber,
		UserID:            res.UserID,
		ShowtimeID:        res.ShowtimeID,
		SeatLabels:        seatLabels(res.Seats),
		Reason:            res.CancelReason,
		RefundAmountCents: res.RefundAmountCents,
		CancelledAt:       cancelledAt,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := queuepub.PublishReservationCancelled(ctx, evt); err != nil {
			log.Printf("publish reservation.cancelled failed for %s: %v", res.ReservationNumber, err)
		}
	}()
}
