package ledger

import (
	"context"
	"fmt"
)

// PayoutInput orders Amount to be burned from Wallet.
type PayoutInput struct {
	OperationID  string
	Wallet       Address
	Amount       uint64
	Instructions string
}

func (t *txn) payout(key OperationKey) (Payout, error) {
	p, ok := t.payouts.get(key)
	if !ok {
		return Payout{}, fmt.Errorf("%w: payout %s", ErrNotFound, key)
	}
	return p, nil
}

func (t *txn) putPayout(p Payout, event string) {
	t.payouts.put(p.Key(), p)
	attrs := p.eventAttrs()
	attrs["wallet"] = string(p.Wallet)
	t.emit(event, p.Key(), string(p.Status), attrs)
}

// OrderPayout records a payout request and locks its amount on the wallet
// with a hold towards the suspense account that only the workflow settles.
func (e *Engine) OrderPayout(ctx context.Context, caller Address, in PayoutInput) (Payout, error) {
	if err := validateOrder(caller, in.OperationID, in.Amount); err != nil {
		return Payout{}, err
	}
	if err := in.Wallet.validate(); err != nil {
		return Payout{}, err
	}

	var ordered Payout
	err := e.update(ctx, "order_payout", func(tx *txn) error {
		key := OperationKey{Issuer: caller, OperationID: in.OperationID}
		if _, exists := tx.payouts.get(key); exists {
			return fmt.Errorf("%w: payout %s", ErrDuplicateOperation, key)
		}
		if err := tx.requireOrderer(caller, in.Wallet, ApprovalPayout); err != nil {
			return err
		}
		if err := e.checkCompliance(ctx, KindPayout, in.Amount, in.Wallet, caller); err != nil {
			return err
		}
		if _, err := tx.createHold(holdSpec{
			key:    key,
			from:   in.Wallet,
			to:     SuspenseAccount,
			notary: NoNotary(),
			amount: in.Amount,
			origin: OriginPayout,
		}, true); err != nil {
			return err
		}
		ordered = Payout{
			Request:      newRequest(caller, in.OperationID, in.Amount, tx.now),
			Wallet:       in.Wallet,
			Instructions: in.Instructions,
		}
		tx.putPayout(ordered, "payout.ordered")
		return nil
	})
	return ordered, err
}

// CancelPayout releases the hold of an ordered payout. Only the orderer may cancel.
func (e *Engine) CancelPayout(ctx context.Context, caller, orderer Address, operationID string) (Payout, error) {
	var cancelled Payout
	err := e.update(ctx, "cancel_payout", func(tx *txn) error {
		p, err := tx.payout(OperationKey{Issuer: orderer, OperationID: operationID})
		if err != nil {
			return err
		}
		if err := p.requireOrderer(caller); err != nil {
			return err
		}
		if err := p.require(StatusOrdered); err != nil {
			return err
		}
		h, err := tx.orderedHold(p.Key())
		if err != nil {
			return err
		}
		tx.releaseHold(h, HoldReleasedByNotary)
		p.moveTo(StatusCancelled, tx.now)
		tx.putPayout(p, "payout.cancelled")
		cancelled = p
		return nil
	})
	return cancelled, err
}

// ProcessPayout marks an ordered payout as being worked on. Funds stay locked.
func (e *Engine) ProcessPayout(ctx context.Context, caller, orderer Address, operationID string) (Payout, error) {
	var processed Payout
	err := e.update(ctx, "process_payout", func(tx *txn) error {
		if err := e.requireRole(ctx, caller, RoleOperator); err != nil {
			return err
		}
		p, err := tx.payout(OperationKey{Issuer: orderer, OperationID: operationID})
		if err != nil {
			return err
		}
		if err := p.require(StatusOrdered); err != nil {
			return err
		}
		p.moveTo(StatusInProcess, tx.now)
		tx.putPayout(p, "payout.in_process")
		processed = p
		return nil
	})
	return processed, err
}

// PutFundsInSuspense executes the payout hold, moving the amount from the
// wallet into the suspense account and drawing overdraft if needed. The
// wallet is screened again since funds leave it here.
func (e *Engine) PutFundsInSuspense(ctx context.Context, caller, orderer Address, operationID string) (Payout, error) {
	var suspended Payout
	err := e.update(ctx, "put_funds_in_suspense", func(tx *txn) error {
		if err := e.requireRole(ctx, caller, RoleOperator); err != nil {
			return err
		}
		p, err := tx.payout(OperationKey{Issuer: orderer, OperationID: operationID})
		if err != nil {
			return err
		}
		if err := p.require(StatusOrdered, StatusInProcess); err != nil {
			return err
		}
		h, err := tx.orderedHold(p.Key())
		if err != nil {
			return err
		}
		if err := e.checkCompliance(ctx, KindExecuteHold, h.Amount, h.From); err != nil {
			return err
		}
		if _, err := tx.executeHold(h, HoldExecutedByNotary); err != nil {
			return err
		}
		p.moveTo(StatusFundsInSuspense, tx.now)
		tx.putPayout(p, "payout.funds_in_suspense")
		suspended = p
		return nil
	})
	return suspended, err
}

// ExecutePayout burns the suspended amount.
func (e *Engine) ExecutePayout(ctx context.Context, caller, orderer Address, operationID string) (Payout, error) {
	var executed Payout
	err := e.update(ctx, "execute_payout", func(tx *txn) error {
		if err := e.requireRole(ctx, caller, RoleOperator); err != nil {
			return err
		}
		p, err := tx.payout(OperationKey{Issuer: orderer, OperationID: operationID})
		if err != nil {
			return err
		}
		if err := p.require(StatusFundsInSuspense); err != nil {
			return err
		}
		if err := tx.debit(SuspenseAccount, p.Amount, true); err != nil {
			return err
		}
		p.moveTo(StatusExecuted, tx.now)
		tx.putPayout(p, "payout.executed")
		executed = p
		return nil
	})
	return executed, err
}

// RejectPayout releases the hold of a payout whose funds are not yet in
// suspense.
func (e *Engine) RejectPayout(ctx context.Context, caller, orderer Address, operationID, reason string) (Payout, error) {
	var rejected Payout
	err := e.update(ctx, "reject_payout", func(tx *txn) error {
		if err := e.requireRole(ctx, caller, RoleOperator); err != nil {
			return err
		}
		p, err := tx.payout(OperationKey{Issuer: orderer, OperationID: operationID})
		if err != nil {
			return err
		}
		if err := p.require(StatusOrdered, StatusInProcess); err != nil {
			return err
		}
		h, err := tx.orderedHold(p.Key())
		if err != nil {
			return err
		}
		tx.releaseHold(h, HoldReleasedByNotary)
		p.Reason = reason
		p.moveTo(StatusRejected, tx.now)
		tx.putPayout(p, "payout.rejected")
		rejected = p
		return nil
	})
	return rejected, err
}
