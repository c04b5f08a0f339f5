package ledger

import (
	"context"
	"fmt"
)

// Approve lets delegate order class operations on behalf of owner.
func (e *Engine) Approve(ctx context.Context, owner Address, class ApprovalClass, delegate Address) error {
	return e.setApproval(ctx, owner, class, delegate, true)
}

// Revoke withdraws a previous approval.
func (e *Engine) Revoke(ctx context.Context, owner Address, class ApprovalClass, delegate Address) error {
	return e.setApproval(ctx, owner, class, delegate, false)
}

func (e *Engine) setApproval(ctx context.Context, owner Address, class ApprovalClass, delegate Address, granted bool) error {
	if err := owner.validate(); err != nil {
		return err
	}
	if err := delegate.validate(); err != nil {
		return err
	}
	if _, err := ParseApprovalClass(string(class)); err != nil {
		return err
	}
	name := "approval.revoked"
	if granted {
		name = "approval.granted"
	}
	return e.update(ctx, name, func(tx *txn) error {
		a := Approval{Class: class, Owner: owner, Delegate: delegate}
		tx.approvals.put(a, granted)
		tx.emit(name, OperationKey{Issuer: owner}, "", map[string]string{
			"class":    string(class),
			"delegate": string(delegate),
		})
		return nil
	})
}

// requireOrderer checks that orderer is owner or approved by owner for class.
func (t *txn) requireOrderer(orderer, owner Address, class ApprovalClass) error {
	if orderer == owner {
		return nil
	}
	if granted, _ := t.approvals.get(Approval{Class: class, Owner: owner, Delegate: orderer}); granted {
		return nil
	}
	return fmt.Errorf("%w: %s is not approved for %s operations on %s", ErrUnauthorized, orderer, class, owner)
}
