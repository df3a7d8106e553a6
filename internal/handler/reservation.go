package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kinohaus/seat-booking/internal/booking"
	"github.com/kinohaus/seat-booking/internal/model"
)

// ReservationHandler serves the write side of the four step booking
// flow: hold, release, confirm and cancel, plus booking lookups.
type ReservationHandler struct {
	svc *booking.Service
}

func NewReservationHandler(svc *booking.Service) *ReservationHandler {
	return &ReservationHandler{svc: svc}
}

type holdRequest struct {
	SeatLabels []string `json:"seat_labels"`
	TTLSeconds int      `json:"ttl_seconds"`
}

// Hold places exclusive holds on the requested seats.
func (h *ReservationHandler) Hold(c echo.Context) error {
	act, err := actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req holdRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(req.SeatLabels) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_labels is required"})
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	res, err := h.svc.HoldSeats(c.Request().Context(), act, showID, req.SeatLabels, ttl)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ReleaseHold drops every hold the caller has on the show.
func (h *ReservationHandler) ReleaseHold(c echo.Context) error {
	act, err := actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	released, err := h.svc.ReleaseHold(c.Request().Context(), act, showID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// Confirm converts the caller's active holds into a paid booking.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	act, err := actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	b, err := h.svc.ConfirmBooking(c.Request().Context(), act, showID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Cancel cancels a booking.  Cancelling an already cancelled booking
// is a no-op that still succeeds, so clients can retry safely.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	act, err := actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	b, err := h.svc.CancelBooking(c.Request().Context(), act, bookingID)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"booking": b})
	case errors.Is(err, model.ErrAlreadyCancelled):
		return c.JSON(http.StatusOK, echo.Map{
			"booking": b,
			"message": "booking was already cancelled",
		})
	case errors.Is(err, model.ErrAlreadyTerminal):
		return c.JSON(http.StatusOK, echo.Map{
			"booking": b,
			"message": "booking is already in a terminal state",
		})
	}
	return respondError(c, err)
}

// Get returns a single booking to its owner or an admin.
func (h *ReservationHandler) Get(c echo.Context) error {
	act, err := actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	b, err := h.svc.GetBooking(c.Request().Context(), act, bookingID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// List returns the caller's bookings, newest first.
func (h *ReservationHandler) List(c echo.Context) error {
	act, err := actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.svc.ListBookings(c.Request().Context(), act)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}
