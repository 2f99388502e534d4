package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: NotFound("subscription %d not found", 1), want: fiber.StatusNotFound},
		{err: Conflict("dup"), want: fiber.StatusConflict},
		{err: BadRequest("bad"), want: fiber.StatusBadRequest},
		{err: InvalidRole("role"), want: fiber.StatusBadRequest},
		{err: Unauthorized("who"), want: fiber.StatusUnauthorized},
		{err: Forbidden("no"), want: fiber.StatusForbidden},
		{err: errors.New("db down"), want: fiber.StatusInternalServerError},
		{err: fmt.Errorf("wrapped: %w", Conflict("dup")), want: fiber.StatusConflict},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(tt.err), tt.err.Error())
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("create: %w", NotFound("user %d not found", 3))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Equal(t, "not_found", Code(err))
	assert.Equal(t, "internal_server_error", Code(errors.New("x")))
}
