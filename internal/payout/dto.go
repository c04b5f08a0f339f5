package payout

import (
	"time"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
)

// OrderRequest asks for Amount to be burned from Wallet. Wallet defaults to
// the caller.
type OrderRequest struct {
	OperationID  string `json:"operation_id"`
	Wallet       string `json:"wallet,omitempty"`
	Amount       uint64 `json:"amount"`
	Instructions string `json:"instructions,omitempty"`
}

// RejectRequest carries the operator's reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Response represents a payout request in API responses.
type Response struct {
	Orderer      string    `json:"orderer"`
	OperationID  string    `json:"operation_id"`
	Wallet       string    `json:"wallet"`
	Amount       uint64    `json:"amount"`
	Instructions string    `json:"instructions,omitempty"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toResponse(f ledger.Payout) Response {
	return Response{
		Orderer:      string(f.Orderer),
		OperationID:  f.OperationID,
		Wallet:       string(f.Wallet),
		Amount:       f.Amount,
		Instructions: f.Instructions,
		Status:       string(f.Status),
		Reason:       f.Reason,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}
