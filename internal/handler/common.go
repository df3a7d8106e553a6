// Package handler implements the HTTP surface of the reservation
// core.  Handlers translate between the wire format and the
// orchestrator, and map the domain error taxonomy onto HTTP status
// codes.  JWT authentication and role validation happen in middleware
// before any handler here runs.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kinohaus/seat-booking/internal/booking"
	"github.com/kinohaus/seat-booking/internal/model"
)

// getUserID extracts the user_id claim from the context and converts
// it to uint64.  The JWT middleware stores the raw claim value, whose
// concrete type depends on how the identity provider encoded it.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// actor builds the orchestrator-level caller identity from the
// request context.
func actor(c echo.Context) (booking.Actor, error) {
	id, err := getUserID(c)
	if err != nil {
		return booking.Actor{}, err
	}
	role, _ := c.Get("role").(string)
	return booking.Actor{ID: id, Role: role}, nil
}

// pathID parses the named path parameter as a positive integer.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// respondError maps a domain error onto the HTTP response.  Booking
// lifecycle no-ops (already cancelled / already terminal) are handled
// by the cancel handler itself and never reach here.
func respondError(c echo.Context, err error) error {
	if seats, ok := model.Unavailable(err); ok {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "some seats are unavailable",
			"unavailable": seats,
		})
	}
	switch {
	case errors.Is(err, model.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, model.ErrNotAuthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, model.ErrExpired), errors.Is(err, model.ErrHoldExpired):
		return c.JSON(http.StatusGone, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "concurrent update, please retry"})
	case errors.Is(err, model.ErrInsufficientCapacity):
		return c.JSON(http.StatusConflict, echo.Map{"error": "insufficient capacity"})
	case errors.Is(err, model.ErrShowInactive):
		return c.JSON(http.StatusConflict, echo.Map{"error": "show is not accepting bookings"})
	case errors.Is(err, model.ErrPaymentFailed):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment failed"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
