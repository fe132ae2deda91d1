package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AvailableSeats handles GET /v1/showtimes/:id/seats.  It returns the
// seat snapshot for a showtime: the cinema's seat grid minus seats
// currently held or confirmed on the ledger.  The response is served
// through the Redis cache with a short TTL; booking mutations
// invalidate it, so the snapshot is advisory and never older than the
// TTL.  The true availability check happens inside the hold
// transaction.
func (h *BookingHandler) AvailableSeats(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	seats, err := h.Coordinator.AvailableSeats(c.Request().Context(), id)
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"showtime_id": id,
		"available":   len(seats),
		"seats":       seats,
	})
}
