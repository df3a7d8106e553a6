package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinohaus/seat-booking/internal/booking"
	"github.com/kinohaus/seat-booking/internal/config"
	"github.com/kinohaus/seat-booking/internal/handler"
	"github.com/kinohaus/seat-booking/internal/model"
	"github.com/kinohaus/seat-booking/internal/payment"
	"github.com/kinohaus/seat-booking/internal/router"
	"github.com/kinohaus/seat-booking/internal/store"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*echo.Echo, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	m.SeedShow(&model.Show{
		ID:                1,
		MovieRef:          "mv-100",
		TheaterRef:        "th-1",
		ScreenNumber:      1,
		StartsAt:          time.Now().UTC().Add(2 * time.Hour),
		EndsAt:            time.Now().UTC().Add(4 * time.Hour),
		TotalSeats:        10,
		AvailableSeats:    10,
		BasePriceCents:    1500,
		PremiumPriceCents: 2500,
		Status:            model.ShowStatusActive,
	})
	svc := booking.NewService(m, m, m, payment.NewSandbox(), nil, nil, booking.Config{
		HoldTTL:       time.Minute,
		PaymentWindow: time.Minute,
	})

	e := echo.New()
	router.RegisterRoutes(e, handler.NewShowHandler(svc))
	router.RegisterBooking(e, handler.NewReservationHandler(svc), testSecret,
		config.RateLimitConfig{Enabled: false}, nil)
	return e, m
}

func mintToken(t *testing.T, userID uint64, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":    userID,
		"role":   role,
		"active": true,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAvailability_Public(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(e, http.MethodGet, "/v1/shows/1/availability", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var av booking.Availability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &av))
	assert.Equal(t, uint64(1), av.ShowID)
	assert.Equal(t, uint32(10), av.AvailableSeats)
}

func TestAvailability_UnknownShow(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(e, http.MethodGet, "/v1/shows/99/availability", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHold_RequiresToken(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/v1/shows/1/hold", "", `{"seat_labels":["A1"]}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHold_RejectsUnknownRole(t *testing.T) {
	e, _ := newTestServer(t)
	token := mintToken(t, 1, "GUEST")
	rec := doJSON(e, http.MethodPost, "/v1/shows/1/hold", token, `{"seat_labels":["A1"]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHold_ContendedSeatsListed(t *testing.T) {
	e, _ := newTestServer(t)

	rec := doJSON(e, http.MethodPost, "/v1/shows/1/hold", mintToken(t, 1, "CUSTOMER"),
		`{"seat_labels":["A1","A2"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(e, http.MethodPost, "/v1/shows/1/hold", mintToken(t, 2, "CUSTOMER"),
		`{"seat_labels":["A1","B1"]}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Unavailable []string `json:"unavailable"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"A1"}, resp.Unavailable)
}

func TestHold_EmptySeatList(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/v1/shows/1/hold", mintToken(t, 1, "CUSTOMER"),
		`{"seat_labels":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingFlow_OverHTTP(t *testing.T) {
	e, m := newTestServer(t)
	token := mintToken(t, 1, "CUSTOMER")

	rec := doJSON(e, http.MethodPost, "/v1/shows/1/hold", token, `{"seat_labels":["A1","A2"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(e, http.MethodPost, "/v1/shows/1/confirm", token, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var b model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, model.BookingStatusConfirmed, b.Status)
	assert.Equal(t, uint32(3690), b.TotalCents)

	show, err := m.GetShow(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), show.AvailableSeats)

	// List and fetch the booking back.
	rec = doJSON(e, http.MethodGet, "/v1/bookings", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listResp struct {
		Bookings []model.Booking `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Bookings, 1)

	rec = doJSON(e, http.MethodPost, "/v1/bookings/1/cancel", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	show, err = m.GetShow(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), show.AvailableSeats)

	// Cancelling again still succeeds, with an explanation.
	rec = doJSON(e, http.MethodPost, "/v1/bookings/1/cancel", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelResp struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelResp))
	assert.Contains(t, cancelResp.Message, "already cancelled")
}

func TestConfirm_WithoutHold(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/v1/shows/1/confirm", mintToken(t, 1, "CUSTOMER"), "")
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestGetBooking_ForeignOwner(t *testing.T) {
	e, _ := newTestServer(t)
	owner := mintToken(t, 1, "CUSTOMER")

	rec := doJSON(e, http.MethodPost, "/v1/shows/1/hold", owner, `{"seat_labels":["A1"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(e, http.MethodPost, "/v1/shows/1/confirm", owner, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(e, http.MethodGet, "/v1/bookings/1", mintToken(t, 2, "CUSTOMER"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(e, http.MethodGet, "/v1/bookings/1", mintToken(t, 9, "ADMIN"), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReleaseHold_OverHTTP(t *testing.T) {
	e, _ := newTestServer(t)
	token := mintToken(t, 1, "CUSTOMER")

	rec := doJSON(e, http.MethodPost, "/v1/shows/1/hold", token, `{"seat_labels":["A1","A2"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(e, http.MethodDelete, "/v1/shows/1/hold", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Released int `json:"released"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Released)
}

func TestDeactivatedAccountRejected(t *testing.T) {
	e, _ := newTestServer(t)
	claims := jwt.MapClaims{
		"sub":    uint64(1),
		"role":   "CUSTOMER",
		"active": false,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec := doJSON(e, http.MethodPost, "/v1/shows/1/hold", signed, `{"seat_labels":["A1"]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
