package payout

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/emoney-ledger/internal/apierr"
	"github.com/congo-pay/emoney-ledger/internal/ledger"
	"github.com/congo-pay/emoney-ledger/internal/middleware"
)

// Handler exposes HTTP endpoints for the payout (burn) workflow.
type Handler struct {
	ledger *ledger.Engine
}

// NewHandler constructs a payout handler.
func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{ledger: engine}
}

// Order records a payout request and locks the amount on the wallet.
func (h *Handler) Order(c *fiber.Ctx) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	var req OrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	wallet := ledger.Address(req.Wallet)
	if wallet == "" {
		wallet = caller
	}
	p, err := h.ledger.OrderPayout(c.UserContext(), caller, ledger.PayoutInput{
		OperationID:  req.OperationID,
		Wallet:       wallet,
		Amount:       req.Amount,
		Instructions: req.Instructions,
	})
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(p))
}

// Get returns a payout request by orderer and operation id.
func (h *Handler) Get(c *fiber.Ctx) error {
	p, err := h.ledger.RetrievePayout(ledger.Address(c.Params("orderer")), c.Params("operationId"))
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(p))
}

func (h *Handler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, h.ledger.CancelPayout)
}

func (h *Handler) Process(c *fiber.Ctx) error {
	return h.transition(c, h.ledger.ProcessPayout)
}

// Suspense moves the held funds to the suspense account.
func (h *Handler) Suspense(c *fiber.Ctx) error {
	return h.transition(c, h.ledger.PutFundsInSuspense)
}

// Execute burns the funds parked in suspense.
func (h *Handler) Execute(c *fiber.Ctx) error {
	return h.transition(c, h.ledger.ExecutePayout)
}

// Reject releases the hold and closes the request.
func (h *Handler) Reject(c *fiber.Ctx) error {
	var req RejectRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return h.transition(c, func(ctx context.Context, caller, orderer ledger.Address, opID string) (ledger.Payout, error) {
		return h.ledger.RejectPayout(ctx, caller, orderer, opID, req.Reason)
	})
}

func (h *Handler) transition(c *fiber.Ctx, fn func(ctx context.Context, caller, orderer ledger.Address, opID string) (ledger.Payout, error)) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	p, err := fn(c.UserContext(), caller, ledger.Address(c.Params("orderer")), c.Params("operationId"))
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(p))
}
