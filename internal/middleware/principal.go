package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/congo-pay/emoney-ledger/internal/access"
	"github.com/congo-pay/emoney-ledger/internal/ledger"
)

const (
	principalHeader = "X-Principal"
	apiKeyHeader    = "X-Api-Key"
	principalLocal  = "principal"
)

// Authenticator verifies the API key presented for an address.
type Authenticator interface {
	Authenticate(ctx context.Context, addr ledger.Address, apiKey string) (access.Principal, error)
}

// PrincipalAuth resolves the calling principal from the X-Principal and
// X-Api-Key headers. Repeated failures for the same address are throttled by
// limiter when one is given.
func PrincipalAuth(auth Authenticator, limiter *FailureLimiter, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		addr := strings.TrimSpace(c.Get(principalHeader))
		key := c.Get(apiKeyHeader)
		if addr == "" || key == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing principal credentials")
		}

		subject := addr + "|" + c.IP()
		if limiter.Blocked(c.UserContext(), subject) {
			return fiber.NewError(http.StatusTooManyRequests, "too many failed attempts, try again later")
		}

		p, err := auth.Authenticate(c.UserContext(), ledger.Address(addr), key)
		if err != nil {
			if !errors.Is(err, access.ErrInvalidCredentials) {
				logger.Error("principal lookup failed", slog.String("principal", addr), slog.Any("error", err))
				return fiber.NewError(http.StatusInternalServerError, "authentication unavailable")
			}
			limiter.Fail(c.UserContext(), subject)
			return fiber.NewError(http.StatusUnauthorized, "invalid principal credentials")
		}

		SetPrincipal(c, p.Address)
		return c.Next()
	}
}

// Principal returns the authenticated caller of the request.
func Principal(c *fiber.Ctx) (ledger.Address, bool) {
	addr, ok := c.Locals(principalLocal).(ledger.Address)
	return addr, ok && addr != ""
}

// SetPrincipal records addr as the caller of the request. addr is copied
// since it may alias a request buffer and ends up in ledger keys.
func SetPrincipal(c *fiber.Ctx, addr ledger.Address) {
	c.Locals(principalLocal, ledger.Address(utils.CopyString(string(addr))))
}

// Caller returns the authenticated caller or an unauthorized error.
func Caller(c *fiber.Ctx) (ledger.Address, error) {
	addr, ok := Principal(c)
	if !ok {
		return "", fiber.NewError(http.StatusUnauthorized, "unauthenticated")
	}
	return addr, nil
}
