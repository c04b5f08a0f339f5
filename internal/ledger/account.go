package ledger

import (
	"context"
	"fmt"
)

// credit adds amount to wallet, repaying any drawn overdraft first.
func (t *txn) credit(wallet Address, amount uint64) error {
	acc := t.account(wallet)
	if acc.Drawn > 0 {
		return t.restoreOverdraft(acc, amount)
	}
	balance, err := checkedAdd(acc.Balance, amount)
	if err != nil {
		return err
	}
	supply, err := checkedAdd(t.totals.Supply, amount)
	if err != nil {
		return err
	}
	acc.Balance = balance
	t.totals.Supply = supply
	t.putAccount(acc)
	return nil
}

// restoreOverdraft applies amount to the drawn overdraft and puts the rest,
// if any, on the balance.
func (t *txn) restoreOverdraft(acc Account, amount uint64) error {
	repaid := min(acc.Drawn, amount)
	rest := amount - repaid
	balance, err := checkedAdd(acc.Balance, rest)
	if err != nil {
		return err
	}
	supply, err := checkedAdd(t.totals.Supply, rest)
	if err != nil {
		return err
	}
	acc.Drawn -= repaid
	acc.Balance = balance
	t.totals.Drawn -= repaid
	t.totals.Supply = supply
	t.putAccount(acc)
	return nil
}

// debit removes amount from wallet, drawing on the overdraft once the balance
// is exhausted. With enforceLimit unset the draw may exceed the limit.
func (t *txn) debit(wallet Address, amount uint64, enforceLimit bool) error {
	acc := t.account(wallet)
	if acc.Balance >= amount {
		acc.Balance -= amount
		t.totals.Supply -= amount
		t.putAccount(acc)
		return nil
	}

	draw := amount - acc.Balance
	drawn, err := checkedAdd(acc.Drawn, draw)
	if err != nil {
		return err
	}
	if enforceLimit && drawn > acc.OverdraftLimit {
		return fmt.Errorf("%w: %s would draw %d over limit %d", ErrInsufficientFunds, wallet, drawn, acc.OverdraftLimit)
	}
	totalDrawn, err := checkedAdd(t.totals.Drawn, draw)
	if err != nil {
		return err
	}
	t.totals.Supply -= acc.Balance
	t.totals.Drawn = totalDrawn
	acc.Balance = 0
	acc.Drawn = drawn
	t.putAccount(acc)
	return nil
}

func (t *txn) requireAvailable(wallet Address, amount uint64) error {
	if available := t.account(wallet).Available(); available < amount {
		return fmt.Errorf("%w: %s has %d available, needs %d", ErrInsufficientFunds, wallet, available, amount)
	}
	return nil
}

// Transfer moves amount from caller to the payee. The caller may draw on its
// overdraft but never on funds locked by holds.
func (e *Engine) Transfer(ctx context.Context, caller, to Address, amount uint64) error {
	if err := caller.validate(); err != nil {
		return err
	}
	if err := to.validate(); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	return e.update(ctx, "transfer", func(tx *txn) error {
		if err := e.checkCompliance(ctx, KindTransfer, amount, caller, to); err != nil {
			return err
		}
		if err := tx.requireAvailable(caller, amount); err != nil {
			return err
		}
		if err := tx.debit(caller, amount, true); err != nil {
			return err
		}
		if err := tx.credit(to, amount); err != nil {
			return err
		}
		tx.emit("transfer", OperationKey{Issuer: caller}, "", map[string]string{
			"from":   string(caller),
			"to":     string(to),
			"amount": formatAmount(amount),
		})
		return nil
	})
}

// SetOverdraftLimit changes wallet's unsecured overdraft line. A limit below
// the current draw is accepted and only prevents further drawing.
func (e *Engine) SetOverdraftLimit(ctx context.Context, caller, wallet Address, limit uint64) error {
	if err := wallet.validate(); err != nil {
		return err
	}
	return e.update(ctx, "set_overdraft_limit", func(tx *txn) error {
		if err := e.requireRole(ctx, caller, RoleRiskControl); err != nil {
			return err
		}
		acc := tx.account(wallet)
		acc.OverdraftLimit = limit
		tx.putAccount(acc)
		tx.emit("overdraft.limit_set", OperationKey{Issuer: caller}, "", map[string]string{
			"wallet": string(wallet),
			"limit":  formatAmount(limit),
		})
		return nil
	})
}

// SetInterestEngine registers the only party allowed to charge interest on
// wallet. An empty engine clears the registration.
func (e *Engine) SetInterestEngine(ctx context.Context, caller, wallet, engine Address) error {
	if err := wallet.validate(); err != nil {
		return err
	}
	if engine != "" {
		if err := engine.validate(); err != nil {
			return err
		}
	}
	return e.update(ctx, "set_interest_engine", func(tx *txn) error {
		if err := e.requireRole(ctx, caller, RoleRiskControl); err != nil {
			return err
		}
		acc := tx.account(wallet)
		acc.InterestEngine = engine
		tx.putAccount(acc)
		tx.emit("interest.engine_set", OperationKey{Issuer: caller}, "", map[string]string{
			"wallet": string(wallet),
			"engine": string(engine),
		})
		return nil
	})
}

// ChargeInterest debits amount from wallet without any limit check. Only the
// wallet's registered interest engine may call it.
func (e *Engine) ChargeInterest(ctx context.Context, caller, wallet Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	return e.update(ctx, "charge_interest", func(tx *txn) error {
		acc := tx.account(wallet)
		if acc.InterestEngine == "" || acc.InterestEngine != caller {
			return fmt.Errorf("%w: %s is not the interest engine of %s", ErrUnauthorized, caller, wallet)
		}
		if err := tx.debit(wallet, amount, false); err != nil {
			return err
		}
		tx.emit("interest.charged", OperationKey{Issuer: caller}, "", map[string]string{
			"wallet": string(wallet),
			"amount": formatAmount(amount),
		})
		return nil
	})
}
