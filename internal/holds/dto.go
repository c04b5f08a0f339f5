package holds

import (
	"time"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
)

// CreateRequest orders a hold. From defaults to the caller; a different From
// requires a hold approval from that wallet.
type CreateRequest struct {
	OperationID             string     `json:"operation_id"`
	From                    string     `json:"from,omitempty"`
	To                      string     `json:"to"`
	Notary                  string     `json:"notary,omitempty"`
	Amount                  uint64     `json:"amount"`
	TimeToExpirationSeconds int64      `json:"time_to_expiration_seconds,omitempty"`
	Expiration              *time.Time `json:"expiration,omitempty"`
}

// RenewRequest sets a new expiration. Both fields empty makes the hold
// non-expiring.
type RenewRequest struct {
	TimeToExpirationSeconds int64      `json:"time_to_expiration_seconds,omitempty"`
	Expiration              *time.Time `json:"expiration,omitempty"`
}

// Response represents a hold in API responses.
type Response struct {
	Issuer      string     `json:"issuer"`
	OperationID string     `json:"operation_id"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	Notary      string     `json:"notary,omitempty"`
	Amount      uint64     `json:"amount"`
	Expiration  *time.Time `json:"expiration,omitempty"`
	Status      string     `json:"status"`
	Origin      string     `json:"origin"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toResponse(h ledger.Hold) Response {
	resp := Response{
		Issuer:      string(h.Issuer),
		OperationID: h.OperationID,
		From:        string(h.From),
		To:          string(h.To),
		Amount:      h.Amount,
		Status:      string(h.Status),
		Origin:      string(h.Origin),
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
	}
	if notary, ok := h.Notary.Address(); ok {
		resp.Notary = string(notary)
	}
	if h.Expires {
		exp := h.Expiration
		resp.Expiration = &exp
	}
	return resp
}
