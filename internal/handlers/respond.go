package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"storefront/internal/apperrors"
)

// respondError maps a domain error to its status code and JSON body.
// Unknown errors are logged and masked as internal.
func respondError(c *fiber.Ctx, err error) error {
	status := apperrors.HTTPStatus(err)
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(apperrors.ToResponse(err))
}
