package clearing

import (
	"time"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
)

// OrderRequest asks for Amount to move From To once an operator clears it.
// From defaults to the caller.
type OrderRequest struct {
	OperationID string `json:"operation_id"`
	From        string `json:"from,omitempty"`
	To          string `json:"to"`
	Amount      uint64 `json:"amount"`
}

// RejectRequest carries the operator's reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Response represents a clearable transfer in API responses.
type Response struct {
	Orderer     string    `json:"orderer"`
	OperationID string    `json:"operation_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Amount      uint64    `json:"amount"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toResponse(ct ledger.ClearableTransfer) Response {
	return Response{
		Orderer:     string(ct.Orderer),
		OperationID: ct.OperationID,
		From:        string(ct.From),
		To:          string(ct.To),
		Amount:      ct.Amount,
		Status:      string(ct.Status),
		Reason:      ct.Reason,
		CreatedAt:   ct.CreatedAt,
		UpdatedAt:   ct.UpdatedAt,
	}
}
