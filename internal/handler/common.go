// Package handler defines the HTTP handlers for the booking engine.
// Handlers translate between the JSON surface and the booking
// coordinator: they bind and validate request bodies, call the
// coordinator, map domain errors to HTTP status codes and publish
// lifecycle events after a successful mutation.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Fuad208/MovieStore1-sub000/internal/booking"
	"github.com/Fuad208/MovieStore1-sub000/internal/config"
	"github.com/Fuad208/MovieStore1-sub000/internal/middleware"
	"github.com/Fuad208/MovieStore1-sub000/internal/model"
	"github.com/Fuad208/MovieStore1-sub000/internal/repository"
)

// BookingHandler serves all reservation lifecycle and read endpoints.
// All methods assume JWT authentication and role validation already
// happened in middleware; methods return 401 when the user id cannot
// be extracted from the context.
type BookingHandler struct {
	Coordinator *booking.Coordinator
	CacheCfg    config.CacheConfig
	Redis       *redis.Client // nil disables cache invalidation
}

// NewBookingHandler constructs a BookingHandler.  The coordinator must
// be non-nil; the Redis client may be nil when response caching is
// disabled.
func NewBookingHandler(coord *booking.Coordinator, cacheCfg config.CacheConfig, rdb *redis.Client) *BookingHandler {
	if coord == nil {
		panic("nil coordinator passed to NewBookingHandler")
	}
	return &BookingHandler{Coordinator: coord, CacheCfg: cacheCfg, Redis: rdb}
}

// getUserID extracts the user_id claim set by the JWT middleware.
func getUserID(c echo.Context) (string, error) {
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("invalid user_id in context")
}

// getStringClaim returns a string claim from the context or "".
func getStringClaim(c echo.Context, key string) string {
	s, _ := c.Get(key).(string)
	return s
}

// paramID parses a numeric :id path parameter.
func paramID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// respondDomainError maps coordinator and repository errors onto the
// HTTP surface.  Seat conflicts carry the conflicting seat labels so
// clients can re-render the seat map without a second round trip.
func respondDomainError(c echo.Context, err error) error {
	var unavailable *model.SeatUnavailableError
	if errors.As(err, &unavailable) {
		labels := make([]string, 0, len(unavailable.Conflicting))
		for _, ref := range unavailable.Conflicting {
			labels = append(labels, ref.Label())
		}
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "seats unavailable",
			"unavailable": labels,
		})
	}
	var invalid *model.ValidationError
	if errors.As(err, &invalid) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": invalid.Reason})
	}
	var state *model.InvalidStateError
	if errors.As(err, &state) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":  "invalid state transition",
			"status": string(state.From),
		})
	}
	switch {
	case errors.Is(err, model.ErrExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": "expired"})
	case errors.Is(err, model.ErrNotYetOpen):
		return c.JSON(http.StatusConflict, echo.Map{"error": "check-in window not open yet"})
	case errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, repository.ErrShowtimeNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
	case errors.Is(err, repository.ErrCinemaNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "cinema not found"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

// invalidateSnapshots drops cached seat availability responses after a
// booking mutation so the next read reflects the new ledger state.
func (h *BookingHandler) invalidateSnapshots(ctx context.Context) {
	middleware.InvalidateCache(ctx, h.CacheCfg, h.Redis)
}

// seatLabels renders a seat set for event payloads and responses.
func seatLabels(refs []model.SeatRef) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.Label())
	}
	return out
}

// parseDateParam parses a YYYY-MM-DD query parameter in UTC.
func parseDateParam(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}
