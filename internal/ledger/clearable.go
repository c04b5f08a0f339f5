package ledger

import (
	"context"
	"fmt"
)

// ClearableTransferInput orders Amount to move From -> To once cleared.
type ClearableTransferInput struct {
	OperationID string
	From        Address
	To          Address
	Amount      uint64
}

func (t *txn) clearableTransfer(key OperationKey) (ClearableTransfer, error) {
	ct, ok := t.transfers.get(key)
	if !ok {
		return ClearableTransfer{}, fmt.Errorf("%w: clearable transfer %s", ErrNotFound, key)
	}
	return ct, nil
}

func (t *txn) putClearableTransfer(ct ClearableTransfer, event string) {
	t.transfers.put(ct.Key(), ct)
	attrs := ct.eventAttrs()
	attrs["from"] = string(ct.From)
	attrs["to"] = string(ct.To)
	t.emit(event, ct.Key(), string(ct.Status), attrs)
}

// OrderClearableTransfer records the request and locks the amount on From
// with a hold towards the final destination.
func (e *Engine) OrderClearableTransfer(ctx context.Context, caller Address, in ClearableTransferInput) (ClearableTransfer, error) {
	if err := validateOrder(caller, in.OperationID, in.Amount); err != nil {
		return ClearableTransfer{}, err
	}
	if err := in.From.validate(); err != nil {
		return ClearableTransfer{}, err
	}
	if err := in.To.validate(); err != nil {
		return ClearableTransfer{}, err
	}

	var ordered ClearableTransfer
	err := e.update(ctx, "order_clearable_transfer", func(tx *txn) error {
		key := OperationKey{Issuer: caller, OperationID: in.OperationID}
		if _, exists := tx.transfers.get(key); exists {
			return fmt.Errorf("%w: clearable transfer %s", ErrDuplicateOperation, key)
		}
		if err := tx.requireOrderer(caller, in.From, ApprovalClearableTransfer); err != nil {
			return err
		}
		if err := e.checkCompliance(ctx, KindClearableTransfer, in.Amount, in.From, in.To); err != nil {
			return err
		}
		if _, err := tx.createHold(holdSpec{
			key:    key,
			from:   in.From,
			to:     in.To,
			notary: NoNotary(),
			amount: in.Amount,
			origin: OriginClearableTransfer,
		}, true); err != nil {
			return err
		}
		ordered = ClearableTransfer{
			Request: newRequest(caller, in.OperationID, in.Amount, tx.now),
			From:    in.From,
			To:      in.To,
		}
		tx.putClearableTransfer(ordered, "clearable_transfer.ordered")
		return nil
	})
	return ordered, err
}

// CancelClearableTransfer releases the hold of an ordered request. Only the
// orderer may cancel.
func (e *Engine) CancelClearableTransfer(ctx context.Context, caller, orderer Address, operationID string) (ClearableTransfer, error) {
	var cancelled ClearableTransfer
	err := e.update(ctx, "cancel_clearable_transfer", func(tx *txn) error {
		ct, err := tx.clearableTransfer(OperationKey{Issuer: orderer, OperationID: operationID})
		if err != nil {
			return err
		}
		if err := ct.requireOrderer(caller); err != nil {
			return err
		}
		if err := ct.require(StatusOrdered); err != nil {
			return err
		}
		h, err := tx.orderedHold(ct.Key())
		if err != nil {
			return err
		}
		tx.releaseHold(h, HoldReleasedByNotary)
		ct.moveTo(StatusCancelled, tx.now)
		tx.putClearableTransfer(ct, "clearable_transfer.cancelled")
		cancelled = ct
		return nil
	})
	return cancelled, err
}

func (e *Engine) ProcessClearableTransfer(ctx context.Context, caller, orderer Address, operationID string) (ClearableTransfer, error) {
	var processed ClearableTransfer
	err := e.update(ctx, "process_clearable_transfer", func(tx *txn) error {
		if err := e.requireRole(ctx, caller, RoleOperator); err != nil {
			return err
		}
		ct, err := tx.clearableTransfer(OperationKey{Issuer: orderer, OperationID: operationID})
		if err != nil {
			return err
		}
		if err := ct.require(StatusOrdered); err != nil {
			return err
		}
		ct.moveTo(StatusInProcess, tx.now)
		tx.putClearableTransfer(ct, "clearable_transfer.in_process")
		processed = ct
		return nil
	})
	return processed, err
}

// ExecuteClearableTransfer executes the hold, moving funds straight to the
// destination. Both parties are screened again at settlement.
func (e *Engine) ExecuteClearableTransfer(ctx context.Context, caller, orderer Address, operationID string) (ClearableTransfer, error) {
	var executed ClearableTransfer
	err := e.update(ctx, "execute_clearable_transfer", func(tx *txn) error {
		if err := e.requireRole(ctx, caller, RoleOperator); err != nil {
			return err
		}
		ct, err := tx.clearableTransfer(OperationKey{Issuer: orderer, OperationID: operationID})
		if err != nil {
			return err
		}
		if err := ct.require(StatusOrdered, StatusInProcess); err != nil {
			return err
		}
		h, err := tx.orderedHold(ct.Key())
		if err != nil {
			return err
		}
		if err := e.checkCompliance(ctx, KindExecuteHold, h.Amount, h.From, h.To); err != nil {
			return err
		}
		if _, err := tx.executeHold(h, HoldExecutedByNotary); err != nil {
			return err
		}
		ct.moveTo(StatusExecuted, tx.now)
		tx.putClearableTransfer(ct, "clearable_transfer.executed")
		executed = ct
		return nil
	})
	return executed, err
}

func (e *Engine) RejectClearableTransfer(ctx context.Context, caller, orderer Address, operationID, reason string) (ClearableTransfer, error) {
	var rejected ClearableTransfer
	err := e.update(ctx, "reject_clearable_transfer", func(tx *txn) error {
		if err := e.requireRole(ctx, caller, RoleOperator); err != nil {
			return err
		}
		ct, err := tx.clearableTransfer(OperationKey{Issuer: orderer, OperationID: operationID})
		if err != nil {
			return err
		}
		if err := ct.require(StatusOrdered, StatusInProcess); err != nil {
			return err
		}
		h, err := tx.orderedHold(ct.Key())
		if err != nil {
			return err
		}
		tx.releaseHold(h, HoldReleasedByNotary)
		ct.Reason = reason
		ct.moveTo(StatusRejected, tx.now)
		tx.putClearableTransfer(ct, "clearable_transfer.rejected")
		rejected = ct
		return nil
	})
	return rejected, err
}
