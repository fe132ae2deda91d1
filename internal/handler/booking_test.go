package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fuad208/MovieStore1-sub000/internal/booking"
	"github.com/Fuad208/MovieStore1-sub000/internal/config"
	"github.com/Fuad208/MovieStore1-sub000/internal/model"
	"github.com/Fuad208/MovieStore1-sub000/internal/repository"
)

// newTestHandler builds a handler over a mocked database.  Tests here
// cover request validation and error mapping; paths that reach the
// store are exercised in the booking package.
func newTestHandler(t *testing.T) *BookingHandler {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	coord := booking.NewCoordinator(db,
		repository.NewCinemaRepo(db),
		repository.NewShowtimeRepo(db),
		repository.NewReservationRepo(db),
	)
	return NewBookingHandler(coord, config.CacheConfig{}, nil)
}

func newContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestCreateHoldValidation(t *testing.T) {
	h := newTestHandler(t)

	t.Run("missing identity", func(t *testing.T) {
		c, rec := newContext(t, http.MethodPost, "/v1/reservations", `{"showtime_id":7,"seats":[{"row":"A","number":1}]}`)
		require.NoError(t, h.CreateHold(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing showtime", func(t *testing.T) {
		c, rec := newContext(t, http.MethodPost, "/v1/reservations", `{"seats":[{"row":"A","number":1}]}`)
		c.Set("user_id", "u-1")
		require.NoError(t, h.CreateHold(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty seat set", func(t *testing.T) {
		c, rec := newContext(t, http.MethodPost, "/v1/reservations", `{"showtime_id":7,"seats":[]}`)
		c.Set("user_id", "u-1")
		require.NoError(t, h.CreateHold(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative discount", func(t *testing.T) {
		c, rec := newContext(t, http.MethodPost, "/v1/reservations",
			`{"showtime_id":7,"seats":[{"row":"A","number":1}],"discount_cents":-100}`)
		c.Set("user_id", "u-1")
		require.NoError(t, h.CreateHold(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPathIDValidation(t *testing.T) {
	h := newTestHandler(t)
	for _, raw := range []string{"abc", "0", "-1"} {
		c, rec := newContext(t, http.MethodPost, "/v1/reservations/"+raw+"/confirm", "")
		c.Set("user_id", "u-1")
		c.SetParamNames("id")
		c.SetParamValues(raw)
		require.NoError(t, h.Confirm(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "id=%s", raw)
	}
}

func TestRespondDomainError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"seat conflict", &model.SeatUnavailableError{Conflicting: []model.SeatRef{{Row: "A", Number: 1}}}, http.StatusConflict},
		{"validation", &model.ValidationError{Reason: "bad seats"}, http.StatusBadRequest},
		{"invalid state", &model.InvalidStateError{From: model.StatusCancelled, Requested: "confirm"}, http.StatusConflict},
		{"expired", model.ErrExpired, http.StatusGone},
		{"checkin not open", model.ErrNotYetOpen, http.StatusConflict},
		{"reservation missing", repository.ErrReservationNotFound, http.StatusNotFound},
		{"showtime missing", repository.ErrShowtimeNotFound, http.StatusNotFound},
		{"cinema missing", repository.ErrCinemaNotFound, http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newContext(t, http.MethodGet, "/", "")
			require.NoError(t, respondDomainError(c, tc.err))
			assert.Equal(t, tc.code, rec.Code)
		})
	}

	t.Run("conflicting seats listed in body", func(t *testing.T) {
		c, rec := newContext(t, http.MethodGet, "/", "")
		err := &model.SeatUnavailableError{Conflicting: []model.SeatRef{{Row: "B", Number: 7}}}
		require.NoError(t, respondDomainError(c, err))
		assert.Contains(t, rec.Body.String(), "B7")
	})
}

func TestStatusFilter(t *testing.T) {
	t.Run("empty means no filter", func(t *testing.T) {
		c, _ := newContext(t, http.MethodGet, "/v1/my-reservations", "")
		status, err := statusFilter(c)
		require.NoError(t, err)
		assert.Nil(t, status)
	})

	t.Run("valid status", func(t *testing.T) {
		c, _ := newContext(t, http.MethodGet, "/v1/my-reservations?status=CONFIRMED", "")
		status, err := statusFilter(c)
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.Equal(t, model.StatusConfirmed, *status)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		c, _ := newContext(t, http.MethodGet, "/v1/my-reservations?status=BOOKED", "")
		_, err := statusFilter(c)
		assert.Error(t, err)
	})
}

func TestDateRange(t *testing.T) {
	t.Run("valid inclusive range", func(t *testing.T) {
		c, _ := newContext(t, http.MethodGet, "/v1/reservations?start=2026-03-01&end=2026-03-31", "")
		start, end, err := dateRange(c)
		require.NoError(t, err)
		assert.Equal(t, "2026-03-01", start.Format("2006-01-02"))
		assert.Equal(t, "2026-03-31", end.Format("2006-01-02"))
		assert.True(t, end.After(start))
	})

	t.Run("missing start", func(t *testing.T) {
		c, _ := newContext(t, http.MethodGet, "/v1/reservations?end=2026-03-31", "")
		_, _, err := dateRange(c)
		assert.Error(t, err)
	})

	t.Run("end before start", func(t *testing.T) {
		c, _ := newContext(t, http.MethodGet, "/v1/reservations?start=2026-03-31&end=2026-03-01", "")
		_, _, err := dateRange(c)
		assert.Error(t, err)
	})
}
