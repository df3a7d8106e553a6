package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// userKey returns a stable identifier for the current request's user,
// used as part of rate-limit keys.  Anonymous requests map to "guest".
func userKey(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case nil:
		return "guest"
	case string:
		if v == "" {
			return "guest"
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}
