package routes

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/idmint/idmint/internal/apperr"
	"github.com/idmint/idmint/internal/middleware"
)

// ErrorHandler renders handler errors as plain-text bodies with the status
// of their apperr kind. Internal causes are logged, never returned.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, msg := apperr.Status(err), apperr.Message(err)
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status, msg = fe.Code, fe.Message
		}

		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("request_id", middleware.RequestIDFrom(c)),
				slog.Int("status", status),
				slog.Any("error", err),
			)
		}

		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(status).SendString(msg)
	}
}
