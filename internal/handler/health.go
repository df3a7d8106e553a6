package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports that the service is up.  Load balancers and
// monitoring probes hit this endpoint, so it stays dependency free.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
