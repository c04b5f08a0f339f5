package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Audit writes one structured record per request. The principal is read after
// the handler chain ran, so routes behind PrincipalAuth are attributed.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("route", c.Route().Path),
			slog.String("path", c.Path()),
			slog.Duration("duration", time.Since(start)),
		}
		if id := RequestIDOf(c); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if p, ok := Principal(c); ok {
			attrs = append(attrs, slog.String("principal", string(p)))
		}

		status := c.Response().StatusCode()
		if err != nil {
			// the app error handler has not run yet; report the status it will write
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
			attrs = append(attrs, slog.Int("status", status), slog.Any("error", err))
			logger.Warn("request failed", attrs...)
			return err
		}

		attrs = append(attrs, slog.Int("status", status))
		logger.Info("request completed", attrs...)
		return nil
	}
}
