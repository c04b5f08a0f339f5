package ledger

import (
	"context"
	"fmt"
	"time"
)

// HoldInput describes a direct hold. Expiration, when set, wins over
// TimeToExpiration; a zero TimeToExpiration creates a hold that never expires.
type HoldInput struct {
	OperationID      string
	From             Address
	To               Address
	Notary           Notary
	Amount           uint64
	TimeToExpiration time.Duration
	Expiration       time.Time
}

type holdSpec struct {
	key        OperationKey
	from       Address
	to         Address
	notary     Notary
	amount     uint64
	expires    bool
	expiration time.Time
	origin     HoldOrigin
}

func resolveExpiration(now time.Time, ttl time.Duration, at time.Time) (bool, time.Time, error) {
	if !at.IsZero() {
		if !at.After(now) {
			return false, time.Time{}, fmt.Errorf("%w: %s is not in the future", ErrInvalidExpiration, at.Format(time.RFC3339))
		}
		return true, at.UTC(), nil
	}
	switch {
	case ttl < 0:
		return false, time.Time{}, fmt.Errorf("%w: negative duration", ErrInvalidExpiration)
	case ttl == 0:
		return false, time.Time{}, nil
	default:
		return true, now.Add(ttl), nil
	}
}

// createHold locks spec.amount on the payer. checkFunds makes the lock fail
// when the payer's available funds do not cover it.
func (t *txn) createHold(spec holdSpec, checkFunds bool) (Hold, error) {
	if spec.key.OperationID == "" {
		return Hold{}, ErrMissingOperationID
	}
	if spec.amount == 0 {
		return Hold{}, ErrInvalidAmount
	}
	if _, exists := t.holds.get(spec.key); exists {
		return Hold{}, fmt.Errorf("%w: hold %s", ErrDuplicateOperation, spec.key)
	}
	if checkFunds {
		if err := t.requireAvailable(spec.from, spec.amount); err != nil {
			return Hold{}, err
		}
	}

	acc := t.account(spec.from)
	onHold, err := checkedAdd(acc.OnHold, spec.amount)
	if err != nil {
		return Hold{}, err
	}
	supplyOnHold, err := checkedAdd(t.totals.SupplyOnHold, spec.amount)
	if err != nil {
		return Hold{}, err
	}
	acc.OnHold = onHold
	t.totals.SupplyOnHold = supplyOnHold
	t.putAccount(acc)

	h := Hold{
		Issuer:      spec.key.Issuer,
		OperationID: spec.key.OperationID,
		From:        spec.from,
		To:          spec.to,
		Notary:      spec.notary,
		Amount:      spec.amount,
		Expires:     spec.expires,
		Expiration:  spec.expiration,
		Status:      HoldOrdered,
		Origin:      spec.origin,
		CreatedAt:   t.now,
		UpdatedAt:   t.now,
	}
	t.holds.put(spec.key, h)
	t.emit("hold.created", spec.key, string(h.Status), map[string]string{
		"from":   string(h.From),
		"to":     string(h.To),
		"notary": h.Notary.String(),
		"amount": formatAmount(h.Amount),
		"origin": string(h.Origin),
	})
	return h, nil
}

func (t *txn) orderedHold(key OperationKey) (Hold, error) {
	h, ok := t.holds.get(key)
	if !ok {
		return Hold{}, fmt.Errorf("%w: hold %s", ErrNotFound, key)
	}
	if h.Status != HoldOrdered {
		return Hold{}, fmt.Errorf("%w: hold %s is %s", ErrWrongStatus, key, h.Status)
	}
	return h, nil
}

func (t *txn) unlock(h Hold) {
	acc := t.account(h.From)
	acc.OnHold -= h.Amount
	t.totals.SupplyOnHold -= h.Amount
	t.putAccount(acc)
}

// executeHold unlocks the amount, debits the payer and credits the payee.
func (t *txn) executeHold(h Hold, status HoldStatus) (Hold, error) {
	t.unlock(h)
	if err := t.debit(h.From, h.Amount, true); err != nil {
		return Hold{}, err
	}
	if err := t.credit(h.To, h.Amount); err != nil {
		return Hold{}, err
	}
	h.Status = status
	h.UpdatedAt = t.now
	t.holds.put(h.Key(), h)
	t.emit("hold.executed", h.Key(), string(status), map[string]string{
		"from":   string(h.From),
		"to":     string(h.To),
		"amount": formatAmount(h.Amount),
	})
	return h, nil
}

// releaseHold unlocks the amount without moving funds.
func (t *txn) releaseHold(h Hold, status HoldStatus) Hold {
	t.unlock(h)
	h.Status = status
	h.UpdatedAt = t.now
	t.holds.put(h.Key(), h)
	t.emit("hold.released", h.Key(), string(status), map[string]string{
		"from":   string(h.From),
		"amount": formatAmount(h.Amount),
	})
	return h
}

// Hold locks funds of the caller in favour of in.To.
func (e *Engine) Hold(ctx context.Context, caller Address, in HoldInput) (Hold, error) {
	in.From = caller
	return e.directHold(ctx, caller, in)
}

// HoldFrom locks funds of in.From. The caller must be in.From or approved by
// it for hold operations.
func (e *Engine) HoldFrom(ctx context.Context, caller Address, in HoldInput) (Hold, error) {
	return e.directHold(ctx, caller, in)
}

func (e *Engine) directHold(ctx context.Context, caller Address, in HoldInput) (Hold, error) {
	for _, addr := range []Address{caller, in.From, in.To} {
		if err := addr.validate(); err != nil {
			return Hold{}, err
		}
	}
	if notary, ok := in.Notary.Address(); ok {
		if err := notary.validate(); err != nil {
			return Hold{}, err
		}
	}

	var created Hold
	err := e.update(ctx, "hold", func(tx *txn) error {
		if err := tx.requireOrderer(caller, in.From, ApprovalHold); err != nil {
			return err
		}
		expires, expiration, err := resolveExpiration(tx.now, in.TimeToExpiration, in.Expiration)
		if err != nil {
			return err
		}
		if err := e.checkCompliance(ctx, KindHold, in.Amount, in.From, in.To); err != nil {
			return err
		}
		created, err = tx.createHold(holdSpec{
			key:        OperationKey{Issuer: caller, OperationID: in.OperationID},
			from:       in.From,
			to:         in.To,
			notary:     in.Notary,
			amount:     in.Amount,
			expires:    expires,
			expiration: expiration,
			origin:     OriginDirect,
		}, e.directHoldFundsCheck)
		return err
	})
	return created, err
}

func (t *txn) directOrderedHold(key OperationKey) (Hold, error) {
	h, err := t.orderedHold(key)
	if err != nil {
		return Hold{}, err
	}
	if h.Origin != OriginDirect {
		return Hold{}, fmt.Errorf("%w: hold %s is managed by its %s request", ErrUnauthorized, key, h.Origin)
	}
	return h, nil
}

// ExecuteHold settles a hold. The notary executes as ExecutedByNotary, an
// operator as ExecutedByOperator. Expiration does not block execution.
func (e *Engine) ExecuteHold(ctx context.Context, caller, issuer Address, operationID string) (Hold, error) {
	var executed Hold
	err := e.update(ctx, "execute_hold", func(tx *txn) error {
		h, err := tx.directOrderedHold(OperationKey{Issuer: issuer, OperationID: operationID})
		if err != nil {
			return err
		}
		var status HoldStatus
		switch {
		case h.Notary.Is(caller):
			status = HoldExecutedByNotary
		case e.auth.HasRole(ctx, caller, RoleOperator):
			status = HoldExecutedByOperator
		default:
			return fmt.Errorf("%w: %s may not execute hold %s", ErrUnauthorized, caller, h.Key())
		}
		if err := e.checkCompliance(ctx, KindExecuteHold, h.Amount, h.From, h.To); err != nil {
			return err
		}
		executed, err = tx.executeHold(h, status)
		return err
	})
	return executed, err
}

// ReleaseHold unlocks a hold without moving funds. The notary, an operator or
// the payee may release it at any time; anyone may once it has expired.
func (e *Engine) ReleaseHold(ctx context.Context, caller, issuer Address, operationID string) (Hold, error) {
	var released Hold
	err := e.update(ctx, "release_hold", func(tx *txn) error {
		h, err := tx.directOrderedHold(OperationKey{Issuer: issuer, OperationID: operationID})
		if err != nil {
			return err
		}
		var status HoldStatus
		switch {
		case h.Notary.Is(caller):
			status = HoldReleasedByNotary
		case e.auth.HasRole(ctx, caller, RoleOperator):
			status = HoldReleasedByOperator
		case caller == h.To:
			status = HoldReleasedByPayee
		case h.Expired(tx.now):
			status = HoldReleasedOnExpiration
		default:
			return fmt.Errorf("%w: %s may not release hold %s", ErrUnauthorized, caller, h.Key())
		}
		released = tx.releaseHold(h, status)
		return nil
	})
	return released, err
}

// RenewHold sets the expiration to now + timeToExpiration. Only the issuer may
// renew, including after expiration. A zero duration removes the expiration.
func (e *Engine) RenewHold(ctx context.Context, caller, issuer Address, operationID string, timeToExpiration time.Duration) (Hold, error) {
	return e.renew(ctx, caller, issuer, operationID, timeToExpiration, time.Time{})
}

// RenewHoldUntil sets an absolute expiration.
func (e *Engine) RenewHoldUntil(ctx context.Context, caller, issuer Address, operationID string, expiration time.Time) (Hold, error) {
	if expiration.IsZero() {
		return Hold{}, fmt.Errorf("%w: expiration is required", ErrInvalidExpiration)
	}
	return e.renew(ctx, caller, issuer, operationID, 0, expiration)
}

func (e *Engine) renew(ctx context.Context, caller, issuer Address, operationID string, ttl time.Duration, at time.Time) (Hold, error) {
	var renewed Hold
	err := e.update(ctx, "renew_hold", func(tx *txn) error {
		h, err := tx.directOrderedHold(OperationKey{Issuer: issuer, OperationID: operationID})
		if err != nil {
			return err
		}
		if caller != h.Issuer {
			return fmt.Errorf("%w: only %s may renew hold %s", ErrUnauthorized, h.Issuer, h.Key())
		}
		expires, expiration, err := resolveExpiration(tx.now, ttl, at)
		if err != nil {
			return err
		}
		h.Expires = expires
		h.Expiration = expiration
		h.UpdatedAt = tx.now
		tx.holds.put(h.Key(), h)
		attrs := map[string]string{"expires": "false"}
		if expires {
			attrs = map[string]string{"expires": "true", "expiration": expiration.Format(time.RFC3339)}
		}
		tx.emit("hold.renewed", h.Key(), string(h.Status), attrs)
		renewed = h
		return nil
	})
	return renewed, err
}
