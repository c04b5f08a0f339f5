package clearing

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/emoney-ledger/internal/apierr"
	"github.com/congo-pay/emoney-ledger/internal/ledger"
	"github.com/congo-pay/emoney-ledger/internal/middleware"
)

// Handler exposes HTTP endpoints for clearable transfers.
type Handler struct {
	ledger *ledger.Engine
}

// NewHandler constructs a clearable transfer handler.
func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{ledger: engine}
}

// Order records a clearable transfer and locks the amount on the payer.
func (h *Handler) Order(c *fiber.Ctx) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	var req OrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	from := ledger.Address(req.From)
	if from == "" {
		from = caller
	}
	ct, err := h.ledger.OrderClearableTransfer(c.UserContext(), caller, ledger.ClearableTransferInput{
		OperationID: req.OperationID,
		From:        from,
		To:          ledger.Address(req.To),
		Amount:      req.Amount,
	})
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(ct))
}

// Get returns a clearable transfer by orderer and operation id.
func (h *Handler) Get(c *fiber.Ctx) error {
	ct, err := h.ledger.RetrieveClearableTransfer(ledger.Address(c.Params("orderer")), c.Params("operationId"))
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(ct))
}

func (h *Handler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, h.ledger.CancelClearableTransfer)
}

func (h *Handler) Process(c *fiber.Ctx) error {
	return h.transition(c, h.ledger.ProcessClearableTransfer)
}

// Execute clears the transfer and moves the held funds.
func (h *Handler) Execute(c *fiber.Ctx) error {
	return h.transition(c, h.ledger.ExecuteClearableTransfer)
}

func (h *Handler) Reject(c *fiber.Ctx) error {
	var req RejectRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return h.transition(c, func(ctx context.Context, caller, orderer ledger.Address, opID string) (ledger.ClearableTransfer, error) {
		return h.ledger.RejectClearableTransfer(ctx, caller, orderer, opID, req.Reason)
	})
}

func (h *Handler) transition(c *fiber.Ctx, fn func(ctx context.Context, caller, orderer ledger.Address, opID string) (ledger.ClearableTransfer, error)) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	ct, err := fn(c.UserContext(), caller, ledger.Address(c.Params("orderer")), c.Params("operationId"))
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(ct))
}
