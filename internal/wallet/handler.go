package wallet

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/emoney-ledger/internal/apierr"
	"github.com/congo-pay/emoney-ledger/internal/ledger"
	"github.com/congo-pay/emoney-ledger/internal/middleware"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type overdraftRequest struct {
	Limit uint64 `json:"limit"`
}

type interestEngineRequest struct {
	Engine string `json:"engine"`
}

type interestRequest struct {
	Amount uint64 `json:"amount"`
}

type accountResponse struct {
	Address        string    `json:"address"`
	Balance        uint64    `json:"balance"`
	OverdraftLimit uint64    `json:"overdraft_limit"`
	Drawn          uint64    `json:"drawn_amount"`
	OnHold         uint64    `json:"balance_on_hold"`
	Available      uint64    `json:"available_funds"`
	Net            int64     `json:"net_balance"`
	InterestEngine string    `json:"interest_engine,omitempty"`
	AsOf           time.Time `json:"as_of"`
}

type totalsResponse struct {
	Supply       uint64    `json:"total_supply"`
	SupplyOnHold uint64    `json:"total_supply_on_hold"`
	Drawn        uint64    `json:"total_drawn_amount"`
	AsOf         time.Time `json:"as_of"`
}

func toAccountResponse(v View) accountResponse {
	return accountResponse{
		Address:        string(v.Address),
		Balance:        v.Balance,
		OverdraftLimit: v.OverdraftLimit,
		Drawn:          v.Drawn,
		OnHold:         v.OnHold,
		Available:      v.Available,
		Net:            v.Net,
		InterestEngine: string(v.InterestEngine),
		AsOf:           v.AsOf,
	}
}

// Account returns the ledger position of a wallet.
func (h *Handler) Account(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(toAccountResponse(h.service.View(ledger.Address(c.Params("address")))))
}

// Totals returns the ledger aggregates.
func (h *Handler) Totals(c *fiber.Ctx) error {
	t := h.service.Totals()
	return c.Status(http.StatusOK).JSON(totalsResponse{
		Supply:       t.Supply,
		SupplyOnHold: t.SupplyOnHold,
		Drawn:        t.Drawn,
		AsOf:         t.AsOf,
	})
}

// Transfer moves funds from the caller to another wallet.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	view, err := h.service.Transfer(c.UserContext(), caller, ledger.Address(req.To), req.Amount)
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusCreated).JSON(toAccountResponse(view))
}

// SetOverdraftLimit changes a wallet's overdraft limit.
func (h *Handler) SetOverdraftLimit(c *fiber.Ctx) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	var req overdraftRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	view, err := h.service.SetOverdraftLimit(c.UserContext(), caller, ledger.Address(c.Params("address")), req.Limit)
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toAccountResponse(view))
}

// SetInterestEngine registers a wallet's interest engine.
func (h *Handler) SetInterestEngine(c *fiber.Ctx) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	var req interestEngineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	view, err := h.service.SetInterestEngine(c.UserContext(), caller, ledger.Address(c.Params("address")), ledger.Address(req.Engine))
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toAccountResponse(view))
}

// ChargeInterest debits interest from a wallet.
func (h *Handler) ChargeInterest(c *fiber.Ctx) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	var req interestRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	view, err := h.service.ChargeInterest(c.UserContext(), caller, ledger.Address(c.Params("address")), req.Amount)
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(toAccountResponse(view))
}

// Approve grants the delegate in the path an approval class of the caller.
func (h *Handler) Approve(c *fiber.Ctx) error {
	return h.setApproval(c, true)
}

// Revoke withdraws an approval granted by the caller.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	return h.setApproval(c, false)
}

func (h *Handler) setApproval(c *fiber.Ctx, granted bool) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	class, err := ledger.ParseApprovalClass(c.Params("class"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	delegate := ledger.Address(c.Params("delegate"))
	if granted {
		err = h.service.Approve(c.UserContext(), caller, class, delegate)
	} else {
		err = h.service.Revoke(c.UserContext(), caller, class, delegate)
	}
	if err != nil {
		return apierr.From(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"owner":    caller,
		"class":    class,
		"delegate": delegate,
		"approved": granted,
	})
}

// Approval reports whether the delegate may act for the caller.
func (h *Handler) Approval(c *fiber.Ctx) error {
	caller, err := middleware.Caller(c)
	if err != nil {
		return err
	}
	class, err := ledger.ParseApprovalClass(c.Params("class"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	delegate := ledger.Address(c.Params("delegate"))
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"owner":    caller,
		"class":    class,
		"delegate": delegate,
		"approved": h.service.IsApproved(class, caller, delegate),
	})
}
