package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CoachHub/internal/pkg/apperr"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// respondError writes err as JSON. Unexpected errors are logged and hidden.
func respondError(c *fiber.Ctx, err error) error {
	status := apperr.StatusCode(err)
	if status == fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Internal server error",
		})
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   apperr.Code(err),
		"message": err.Error(),
	})
}

// paramID parses a positive numeric path parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.BadRequest("invalid %s %q", name, raw)
	}
	return uint(id), nil
}

// pagination reads offset/limit query parameters with sane bounds.
func pagination(c *fiber.Ctx) (offset, limit int) {
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit = c.QueryInt("limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}
