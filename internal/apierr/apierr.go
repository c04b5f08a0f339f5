package apierr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
	"github.com/congo-pay/emoney-ledger/internal/middleware"
)

// From maps a ledger error to the HTTP error returned to clients.
func From(err error) error {
	if err == nil {
		return nil
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	return fiber.NewError(Status(err), err.Error())
}

// Status returns the HTTP status code for err.
func Status(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateOperation), errors.Is(err, ledger.ErrWrongStatus):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrUnauthorized), errors.Is(err, ledger.ErrComplianceRejected):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrMissingOperationID),
		errors.Is(err, ledger.ErrInvalidAddress),
		errors.Is(err, ledger.ErrInvalidExpiration),
		errors.Is(err, ledger.ErrAmountOverflow):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Handler renders errors as JSON bodies. Internal errors are logged and
// replaced by a generic message.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := http.StatusInternalServerError
		msg := "internal error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		}
		if code >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed",
				slog.String("path", c.Path()),
				slog.String("request_id", middleware.RequestIDOf(c)),
				slog.Any("error", err),
			)
		}
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
}
