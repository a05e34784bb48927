package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// GetLimit reads the "limit" query parameter. Missing or non-positive values
// yield def; values above max are clamped.
func GetLimit(c echo.Context, def, max int) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}
