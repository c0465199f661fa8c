package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JRChen0927/SimuAgent/pkg/apperror"
	"github.com/JRChen0927/SimuAgent/pkg/logger"
)

// respondError maps service errors to JSON responses. Typed errors carry
// their own status; anything else is a 500 with a generic message.
func respondError(c *fiber.Ctx, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus() >= fiber.StatusInternalServerError {
			logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(appErr.HTTPStatus()).JSON(fiber.Map{
			"error": appErr.Message,
		})
	}

	logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

func parseIDParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil {
		return 0, apperror.Validation("Invalid %s", name)
	}
	return id, nil
}
