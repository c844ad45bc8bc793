package http

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Pagination bounds.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ParsePagination reads page/limit query params. Out-of-range values are
// coerced to defaults; non-numeric values are errors.
func ParsePagination(c *fiber.Ctx) (page, limit int, err error) {
	page, limit = 1, DefaultLimit

	if v := c.Query("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("invalid page value: %w", err)
		}
	}

	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("invalid limit value: %w", err)
		}
	}

	if page < 1 {
		page = 1
	}

	if limit <= 0 {
		limit = DefaultLimit
	}

	return page, min(limit, MaxLimit), nil
}
