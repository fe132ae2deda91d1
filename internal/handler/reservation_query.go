package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Fuad208/MovieStore1-sub000/internal/model"
)

// GetReservation handles GET /v1/reservations/:id.  Customers can only
// read their own reservations; staff can read any.
func (h *BookingHandler) GetReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Coordinator.GetReservation(c.Request().Context(), id)
	if err != nil {
		return respondDomainError(c, err)
	}
	role := getStringClaim(c, "role")
	if res.UserID != userID && role != "STAFF" && role != "ADMIN" {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// ListMyReservations handles GET /v1/my-reservations.  An optional
// ?status= query narrows by lifecycle status.  Returns an empty array
// when the user has no reservations.
func (h *BookingHandler) ListMyReservations(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	status, err := statusFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}
	items, err := h.Coordinator.FindByUser(c.Request().Context(), userID, status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListUpcoming handles GET /v1/reservations/upcoming.  Customers see
// their own upcoming confirmed reservations; staff may pass ?user_id=
// to inspect another account or omit it to list across all users.
func (h *BookingHandler) ListUpcoming(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	scope := &userID
	role := getStringClaim(c, "role")
	if role == "STAFF" || role == "ADMIN" {
		if q := c.QueryParam("user_id"); q != "" {
			scope = &q
		} else {
			scope = nil
		}
	}
	items, err := h.Coordinator.FindUpcoming(c.Request().Context(), scope)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListByDateRange handles GET /v1/reservations.  Staff only.  Requires
// ?start= and ?end= dates (YYYY-MM-DD) and accepts an optional
// ?status= filter.  The range covers creation dates, end inclusive.
func (h *BookingHandler) ListByDateRange(c echo.Context) error {
	start, end, err := dateRange(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	status, err := statusFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}
	items, err := h.Coordinator.FindByDateRange(c.Request().Context(), start, end, status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Statistics handles GET /v1/reservations/statistics.  Staff only.  It
// aggregates per-status counts, revenue and refunds over reservations
// created inside the range given by ?start= and ?end=.
func (h *BookingHandler) Statistics(c echo.Context) error {
	start, end, err := dateRange(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	stats, err := h.Coordinator.Statistics(c.Request().Context(), start, end)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load statistics"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": stats})
}

// statusFilter parses the optional ?status= query into a typed status.
func statusFilter(c echo.Context) (*model.ReservationStatus, error) {
	raw := c.QueryParam("status")
	if raw == "" {
		return nil, nil
	}
	s := model.ReservationStatus(raw)
	switch s {
	case model.StatusPending, model.StatusConfirmed, model.StatusCancelled,
		model.StatusCompleted, model.StatusRefunded:
		return &s, nil
	}
	return nil, echo.ErrBadRequest
}

// dateRange parses the required ?start= and ?end= queries.  The end
// date is inclusive, so the range extends to the end of that day.
func dateRange(c echo.Context) (time.Time, time.Time, error) {
	start, err := parseDateParam(c.QueryParam("start"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start is required as YYYY-MM-DD")
	}
	end, err := parseDateParam(c.QueryParam("end"))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end is required as YYYY-MM-DD")
	}
	end = end.Add(24*time.Hour - time.Nanosecond)
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end must not precede start")
	}
	return start, end, nil
}
