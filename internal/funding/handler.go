package funding

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/emoney-ledger/internal/apierr"
	"github.com/congo-pay/emoney-ledger/internal/ledger"
	"github.com/congo-pay/emoney-ledger/internal/middleware"
)

// Handler exposes HTTP endpoints for the funding (mint) workflow.
type Handler struct {
	ledger *ledger.Engine
}

// NewHandler constructs a funding handler.
func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{ledger: engine}
}

// Order records a funding request.
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
	f, err := h.ledger.OrderFunding(c.UserContext(), caller, ledger.FundingInput{
		OperationID:  req.OperationID,
		Wallet:       wallet,
		Amount:       req.Amount,
		Instructions: req.Instructions,
	})
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(f))
}

// Get returns a funding request by orderer and operation id.
func (h *Handler) Get(c *fiber.Ctx) error {
	f, err := h.ledger.RetrieveFunding(ledger.Address(c.Params("orderer")), c.Params("operationId"))
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(f))
}

// Cancel withdraws an ordered request.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, h.ledger.CancelFunding)
}

// Process marks a request as being worked on by an operator.
func (h *Handler) Process(c *fiber.Ctx) error {
	return h.transition(c, h.ledger.ProcessFunding)
}

// Execute mints the requested amount.
func (h *Handler) Execute(c *fiber.Ctx) error {
	return h.transition(c, h.ledger.ExecuteFunding)
}

// Reject closes a request without minting.
func (h *Handler) Reject(c *fiber.Ctx) error {
	var req RejectRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return h.transition(c, func(ctx context.Context, caller, orderer ledger.Address, opID string) (ledger.Funding, error) {
		return h.ledger.RejectFunding(ctx, caller, orderer, opID, req.Reason)
	})
}

type transitionFunc func(ctx context.Context, caller, orderer ledger.Address, opID string) (ledger.Funding, error)

func (h *Handler) transition(c *fiber.Ctx, fn transitionFunc) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	f, err := fn(c.UserContext(), caller, ledger.Address(c.Params("orderer")), c.Params("operationId"))
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(f))
}
