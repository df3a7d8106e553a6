package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kinohaus/seat-booking/internal/booking"
)

// ShowHandler serves the read side of the seat map.
type ShowHandler struct {
	svc *booking.Service
}

func NewShowHandler(svc *booking.Service) *ShowHandler {
	return &ShowHandler{svc: svc}
}

// Availability returns the current seat counts and per-seat occupancy
// for a show.  The response may come from the short-lived cache; it is
// advisory only and never a substitute for the checks done at hold and
// confirm time.
func (h *ShowHandler) Availability(c echo.Context) error {
	showID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	av, err := h.svc.GetShowAvailability(c.Request().Context(), showID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, av)
}
