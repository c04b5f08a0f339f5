package holds

import (
	"math"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/emoney-ledger/internal/apierr"
	"github.com/congo-pay/emoney-ledger/internal/ledger"
	"github.com/congo-pay/emoney-ledger/internal/middleware"
)

// Handler exposes HTTP endpoints for direct holds.
type Handler struct {
	ledger *ledger.Engine
}

// NewHandler constructs a hold handler.
func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{ledger: engine}
}

// Create orders a hold on the caller's or a delegating wallet's funds.
func (h *Handler) Create(c *fiber.Ctx) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	ttl, err := secondsToDuration(req.TimeToExpirationSeconds)
	if err != nil {
		return err
	}

	in := ledger.HoldInput{
		OperationID:      req.OperationID,
		From:             ledger.Address(req.From),
		To:               ledger.Address(req.To),
		Notary:           ledger.NoNotary(),
		Amount:           req.Amount,
		TimeToExpiration: ttl,
	}
	if req.Notary != "" {
		in.Notary = ledger.NotaryOf(ledger.Address(req.Notary))
	}
	if req.Expiration != nil {
		in.Expiration = *req.Expiration
	}

	var hold ledger.Hold
	if in.From == "" || in.From == caller {
		hold, err = h.ledger.Hold(c.UserContext(), caller, in)
	} else {
		hold, err = h.ledger.HoldFrom(c.UserContext(), caller, in)
	}
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(hold))
}

// Get returns a hold by issuer and operation id.
func (h *Handler) Get(c *fiber.Ctx) error {
	hold, err := h.ledger.RetrieveHold(ledger.Address(c.Params("issuer")), c.Params("operationId"))
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(hold))
}

// Execute settles a hold as its notary or an operator.
func (h *Handler) Execute(c *fiber.Ctx) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	hold, err := h.ledger.ExecuteHold(c.UserContext(), caller, ledger.Address(c.Params("issuer")), c.Params("operationId"))
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(hold))
}

// Release unlocks a hold without moving funds.
func (h *Handler) Release(c *fiber.Ctx) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	hold, err := h.ledger.ReleaseHold(c.UserContext(), caller, ledger.Address(c.Params("issuer")), c.Params("operationId"))
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(hold))
}

// Renew changes the expiration of a hold.
func (h *Handler) Renew(c *fiber.Ctx) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	var req RenewRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	issuer := ledger.Address(c.Params("issuer"))
	opID := c.Params("operationId")

	var hold ledger.Hold
	if req.Expiration != nil {
		hold, err = h.ledger.RenewHoldUntil(c.UserContext(), caller, issuer, opID, *req.Expiration)
	} else {
		ttl, convErr := secondsToDuration(req.TimeToExpirationSeconds)
		if convErr != nil {
			return convErr
		}
		hold, err = h.ledger.RenewHold(c.UserContext(), caller, issuer, opID, ttl)
	}
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(hold))
}

// maxTTLSeconds is the longest relative expiration a time.Duration can hold.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

func secondsToDuration(s int64) (time.Duration, error) {
	if s < 0 {
		return 0, fiber.NewError(http.StatusBadRequest, "time_to_expiration_seconds must not be negative")
	}
	if s > maxTTLSeconds {
		return 0, fiber.NewError(http.StatusBadRequest, "time_to_expiration_seconds is too large")
	}
	return time.Duration(s) * time.Second, nil
}
