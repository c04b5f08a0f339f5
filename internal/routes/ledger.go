package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/emoney-ledger/internal/clearing"
	"github.com/congo-pay/emoney-ledger/internal/funding"
	"github.com/congo-pay/emoney-ledger/internal/holds"
	"github.com/congo-pay/emoney-ledger/internal/payout"
	"github.com/congo-pay/emoney-ledger/internal/wallet"
)

// RegisterAccountRoutes wires account views, transfers and approvals.
func RegisterAccountRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/accounts/:address", h.Account)
	r.Put("/accounts/:address/overdraft", h.SetOverdraftLimit)
	r.Put("/accounts/:address/interest-engine", h.SetInterestEngine)
	r.Post("/accounts/:address/interest", h.ChargeInterest)
	r.Post("/transfers", h.Transfer)
	r.Get("/totals", h.Totals)
	r.Put("/approvals/:class/:delegate", h.Approve)
	r.Delete("/approvals/:class/:delegate", h.Revoke)
	r.Get("/approvals/:class/:delegate", h.Approval)
}

// RegisterHoldRoutes wires direct hold endpoints.
func RegisterHoldRoutes(r fiber.Router, h *holds.Handler) {
	g := r.Group("/holds")
	g.Post("", h.Create)
	g.Get("/:issuer/:operationId", h.Get)
	g.Post("/:issuer/:operationId/execute", h.Execute)
	g.Post("/:issuer/:operationId/release", h.Release)
	g.Post("/:issuer/:operationId/renew", h.Renew)
}

// RegisterFundingRoutes wires the mint workflow.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	g := r.Group("/fundings")
	g.Post("", h.Order)
	g.Get("/:orderer/:operationId", h.Get)
	g.Post("/:orderer/:operationId/cancel", h.Cancel)
	g.Post("/:orderer/:operationId/process", h.Process)
	g.Post("/:orderer/:operationId/execute", h.Execute)
	g.Post("/:orderer/:operationId/reject", h.Reject)
}

// RegisterPayoutRoutes wires the burn workflow.
func RegisterPayoutRoutes(r fiber.Router, h *payout.Handler) {
	g := r.Group("/payouts")
	g.Post("", h.Order)
	g.Get("/:orderer/:operationId", h.Get)
	g.Post("/:orderer/:operationId/cancel", h.Cancel)
	g.Post("/:orderer/:operationId/process", h.Process)
	g.Post("/:orderer/:operationId/suspense", h.Suspense)
	g.Post("/:orderer/:operationId/execute", h.Execute)
	g.Post("/:orderer/:operationId/reject", h.Reject)
}

// RegisterClearingRoutes wires clearable transfers.
func RegisterClearingRoutes(r fiber.Router, h *clearing.Handler) {
	g := r.Group("/clearable-transfers")
	g.Post("", h.Order)
	g.Get("/:orderer/:operationId", h.Get)
	g.Post("/:orderer/:operationId/cancel", h.Cancel)
	g.Post("/:orderer/:operationId/process", h.Process)
	g.Post("/:orderer/:operationId/execute", h.Execute)
	g.Post("/:orderer/:operationId/reject", h.Reject)
}
