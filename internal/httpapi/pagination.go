package httpapi

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// pageParams reads the page/limit query params. Out-of-range values reject
// the whole request rather than being clamped.
func pageParams(c echo.Context) (page, limit int, err error) {
	page = defaultPage
	if raw := c.QueryParam("page"); raw != "" {
		v, convErr := strconv.Atoi(raw)
		if convErr != nil || v < 1 {
			return 0, 0, &ValidationError{Messages: []string{"page must be a positive integer"}}
		}
		page = v
	}

	limit = defaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		v, convErr := strconv.Atoi(raw)
		if convErr != nil || v < 1 || v > maxLimit {
			return 0, 0, &ValidationError{Messages: []string{fmt.Sprintf("limit must be between 1 and %d", maxLimit)}}
		}
		limit = v
	}
	return page, limit, nil
}
