package ledger

// Account returns the ledger record for wallet. Unknown wallets read as zero.
func (e *Engine) Account(wallet Address) Account {
	var acc Account
	e.read(func(s *state) {
		acc = s.accounts[wallet]
	})
	acc.Address = wallet
	return acc
}

func (e *Engine) BalanceOf(wallet Address) uint64 {
	return e.Account(wallet).Balance
}

func (e *Engine) OverdraftLimit(wallet Address) uint64 {
	return e.Account(wallet).OverdraftLimit
}

func (e *Engine) DrawnAmount(wallet Address) uint64 {
	return e.Account(wallet).Drawn
}

// BalanceOnHold is the sum of ordered holds paid by wallet.
func (e *Engine) BalanceOnHold(wallet Address) uint64 {
	return e.Account(wallet).OnHold
}

// AvailableFunds is balance + overdraftLimit - drawn - balanceOnHold.
func (e *Engine) AvailableFunds(wallet Address) uint64 {
	return e.Account(wallet).Available()
}

// NetBalanceOf is balance - drawn; negative exactly when an overdraft is drawn.
func (e *Engine) NetBalanceOf(wallet Address) int64 {
	return e.Account(wallet).Net()
}

// Totals returns the running aggregates.
func (e *Engine) Totals() Totals {
	var t Totals
	e.read(func(s *state) {
		t = s.totals
	})
	return t
}

func (e *Engine) TotalSupply() uint64 {
	return e.Totals().Supply
}

func (e *Engine) TotalSupplyOnHold() uint64 {
	return e.Totals().SupplyOnHold
}

func (e *Engine) TotalDrawnAmount() uint64 {
	return e.Totals().Drawn
}

// RetrieveHold returns the hold keyed by (issuer, operationID).
func (e *Engine) RetrieveHold(issuer Address, operationID string) (Hold, error) {
	var (
		h  Hold
		ok bool
	)
	e.read(func(s *state) {
		h, ok = s.holds[OperationKey{Issuer: issuer, OperationID: operationID}]
	})
	if !ok {
		return Hold{}, ErrNotFound
	}
	return h, nil
}

func (e *Engine) RetrieveFunding(orderer Address, operationID string) (Funding, error) {
	var (
		f  Funding
		ok bool
	)
	e.read(func(s *state) {
		f, ok = s.fundings[OperationKey{Issuer: orderer, OperationID: operationID}]
	})
	if !ok {
		return Funding{}, ErrNotFound
	}
	return f, nil
}

func (e *Engine) RetrievePayout(orderer Address, operationID string) (Payout, error) {
	var (
		p  Payout
		ok bool
	)
	e.read(func(s *state) {
		p, ok = s.payouts[OperationKey{Issuer: orderer, OperationID: operationID}]
	})
	if !ok {
		return Payout{}, ErrNotFound
	}
	return p, nil
}

func (e *Engine) RetrieveClearableTransfer(orderer Address, operationID string) (ClearableTransfer, error) {
	var (
		ct ClearableTransfer
		ok bool
	)
	e.read(func(s *state) {
		ct, ok = s.transfers[OperationKey{Issuer: orderer, OperationID: operationID}]
	})
	if !ok {
		return ClearableTransfer{}, ErrNotFound
	}
	return ct, nil
}

// IsApproved reports whether delegate may order class operations for owner.
func (e *Engine) IsApproved(class ApprovalClass, owner, delegate Address) bool {
	var ok bool
	e.read(func(s *state) {
		ok = s.approvals[Approval{Class: class, Owner: owner, Delegate: delegate}]
	})
	return ok
}
