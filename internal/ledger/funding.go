package ledger

import (
	"context"
	"fmt"
)

// FundingInput orders Amount to be minted into Wallet.
type FundingInput struct {
	OperationID  string
	Wallet       Address
	Amount       uint64
	Instructions string
}

func (t *txn) funding(key OperationKey) (Funding, error) {
	f, ok := t.fundings.get(key)
	if !ok {
		return Funding{}, fmt.Errorf("%w: funding %s", ErrNotFound, key)
	}
	return f, nil
}

func (t *txn) putFunding(f Funding, event string) {
	t.fundings.put(f.Key(), f)
	attrs := f.eventAttrs()
	attrs["wallet"] = string(f.Wallet)
	t.emit(event, f.Key(), string(f.Status), attrs)
}

// OrderFunding records a funding request. No funds are locked: funding
// creates money once executed.
func (e *Engine) OrderFunding(ctx context.Context, caller Address, in FundingInput) (Funding, error) {
	if err := validateOrder(caller, in.OperationID, in.Amount); err != nil {
		return Funding{}, err
	}
	if err := in.Wallet.validate(); err != nil {
		return Funding{}, err
	}

	var ordered Funding
	err := e.update(ctx, "order_funding", func(tx *txn) error {
		key := OperationKey{Issuer: caller, OperationID: in.OperationID}
		if _, exists := tx.fundings.get(key); exists {
			return fmt.Errorf("%w: funding %s", ErrDuplicateOperation, key)
		}
		if err := tx.requireOrderer(caller, in.Wallet, ApprovalFunding); err != nil {
			return err
		}
		if err := e.checkCompliance(ctx, KindFunding, in.Amount, in.Wallet, caller); err != nil {
			return err
		}
		ordered = Funding{
			Request:      newRequest(caller, in.OperationID, in.Amount, tx.now),
			Wallet:       in.Wallet,
			Instructions: in.Instructions,
		}
		tx.putFunding(ordered, "funding.ordered")
		return nil
	})
	return ordered, err
}

// CancelFunding withdraws an ordered request. Only the orderer may cancel.
func (e *Engine) CancelFunding(ctx context.Context, caller, orderer Address, operationID string) (Funding, error) {
	var cancelled Funding
	err := e.update(ctx, "cancel_funding", func(tx *txn) error {
		f, err := tx.funding(OperationKey{Issuer: orderer, OperationID: operationID})
		if err != nil {
			return err
		}
		if err := f.requireOrderer(caller); err != nil {
			return err
		}
		if err := f.require(StatusOrdered); err != nil {
			return err
		}
		f.moveTo(StatusCancelled, tx.now)
		tx.putFunding(f, "funding.cancelled")
		cancelled = f
		return nil
	})
	return cancelled, err
}

// ProcessFunding marks an ordered request as being worked on, which blocks
// cancellation.
func (e *Engine) ProcessFunding(ctx context.Context, caller, orderer Address, operationID string) (Funding, error) {
	var processed Funding
	err := e.update(ctx, "process_funding", func(tx *txn) error {
		if err := e.requireRole(ctx, caller, RoleOperator); err != nil {
			return err
		}
		f, err := tx.funding(OperationKey{Issuer: orderer, OperationID: operationID})
		if err != nil {
			return err
		}
		if err := f.require(StatusOrdered); err != nil {
			return err
		}
		f.moveTo(StatusInProcess, tx.now)
		tx.putFunding(f, "funding.in_process")
		processed = f
		return nil
	})
	return processed, err
}

// ExecuteFunding credits the wallet. This is the only path that mints.
func (e *Engine) ExecuteFunding(ctx context.Context, caller, orderer Address, operationID string) (Funding, error) {
	var executed Funding
	err := e.update(ctx, "execute_funding", func(tx *txn) error {
		if err := e.requireRole(ctx, caller, RoleOperator); err != nil {
			return err
		}
		f, err := tx.funding(OperationKey{Issuer: orderer, OperationID: operationID})
		if err != nil {
			return err
		}
		if err := f.require(StatusOrdered, StatusInProcess); err != nil {
			return err
		}
		if err := tx.credit(f.Wallet, f.Amount); err != nil {
			return err
		}
		f.moveTo(StatusExecuted, tx.now)
		tx.putFunding(f, "funding.executed")
		executed = f
		return nil
	})
	return executed, err
}

// RejectFunding closes the request without any balance effect.
func (e *Engine) RejectFunding(ctx context.Context, caller, orderer Address, operationID, reason string) (Funding, error) {
	var rejected Funding
	err := e.update(ctx, "reject_funding", func(tx *txn) error {
		if err := e.requireRole(ctx, caller, RoleOperator); err != nil {
			return err
		}
		f, err := tx.funding(OperationKey{Issuer: orderer, OperationID: operationID})
		if err != nil {
			return err
		}
		if err := f.require(StatusOrdered, StatusInProcess); err != nil {
			return err
		}
		f.Reason = reason
		f.moveTo(StatusRejected, tx.now)
		tx.putFunding(f, "funding.rejected")
		rejected = f
		return nil
	})
	return rejected, err
}
