package ledger

import (
	"fmt"
	"time"
)

func newRequest(orderer Address, operationID string, amount uint64, now time.Time) Request {
	return Request{
		Orderer:     orderer,
		OperationID: operationID,
		Amount:      amount,
		Status:      StatusOrdered,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func validateOrder(orderer Address, operationID string, amount uint64) error {
	if err := orderer.validate(); err != nil {
		return err
	}
	if operationID == "" {
		return ErrMissingOperationID
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (r Request) require(allowed ...RequestStatus) error {
	for _, s := range allowed {
		if r.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: request %s is %s", ErrWrongStatus, r.Key(), r.Status)
}

func (r Request) requireOrderer(caller Address) error {
	if caller != r.Orderer {
		return fmt.Errorf("%w: only %s may cancel request %s", ErrUnauthorized, r.Orderer, r.Key())
	}
	return nil
}

func (r *Request) moveTo(status RequestStatus, now time.Time) {
	r.Status = status
	r.UpdatedAt = now
}

func (r Request) eventAttrs() map[string]string {
	attrs := map[string]string{"amount": formatAmount(r.Amount)}
	if r.Reason != "" {
		attrs["reason"] = r.Reason
	}
	return attrs
}
