package wallet

import (
	"context"
	"time"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
)

// Service exposes account views and account-level operations of the ledger.
type Service struct {
	ledger *ledger.Engine
	now    func() time.Time
}

// NewService builds a wallet service instance.
func NewService(engine *ledger.Engine) *Service {
	return &Service{ledger: engine, now: func() time.Time { return time.Now().UTC() }}
}

// View returns the wallet's balances. Unknown wallets read as zero.
func (s *Service) View(addr ledger.Address) View {
	acc := s.ledger.Account(addr)
	return View{
		Address:        addr,
		Balance:        acc.Balance,
		OverdraftLimit: acc.OverdraftLimit,
		Drawn:          acc.Drawn,
		OnHold:         acc.OnHold,
		Available:      acc.Available(),
		Net:            acc.Net(),
		InterestEngine: acc.InterestEngine,
		AsOf:           s.now(),
	}
}

// Totals returns the ledger aggregates.
func (s *Service) Totals() Totals {
	t := s.ledger.Totals()
	return Totals{Supply: t.Supply, SupplyOnHold: t.SupplyOnHold, Drawn: t.Drawn, AsOf: s.now()}
}

// Transfer moves amount from caller to to and returns the caller's new view.
func (s *Service) Transfer(ctx context.Context, caller, to ledger.Address, amount uint64) (View, error) {
	if err := s.ledger.Transfer(ctx, caller, to, amount); err != nil {
		return View{}, err
	}
	return s.View(caller), nil
}

// SetOverdraftLimit changes the wallet's limit and returns its new view.
func (s *Service) SetOverdraftLimit(ctx context.Context, caller, addr ledger.Address, limit uint64) (View, error) {
	if err := s.ledger.SetOverdraftLimit(ctx, caller, addr, limit); err != nil {
		return View{}, err
	}
	return s.View(addr), nil
}

// SetInterestEngine registers the party allowed to charge interest on addr.
func (s *Service) SetInterestEngine(ctx context.Context, caller, addr, engine ledger.Address) (View, error) {
	if err := s.ledger.SetInterestEngine(ctx, caller, addr, engine); err != nil {
		return View{}, err
	}
	return s.View(addr), nil
}

// ChargeInterest debits amount from addr on behalf of its interest engine.
func (s *Service) ChargeInterest(ctx context.Context, caller, addr ledger.Address, amount uint64) (View, error) {
	if err := s.ledger.ChargeInterest(ctx, caller, addr, amount); err != nil {
		return View{}, err
	}
	return s.View(addr), nil
}

// Approve lets delegate order class operations on the caller's behalf.
func (s *Service) Approve(ctx context.Context, caller ledger.Address, class ledger.ApprovalClass, delegate ledger.Address) error {
	return s.ledger.Approve(ctx, caller, class, delegate)
}

// Revoke withdraws a previous approval.
func (s *Service) Revoke(ctx context.Context, caller ledger.Address, class ledger.ApprovalClass, delegate ledger.Address) error {
	return s.ledger.Revoke(ctx, caller, class, delegate)
}

// IsApproved reports whether delegate may act for owner on class.
func (s *Service) IsApproved(class ledger.ApprovalClass, owner, delegate ledger.Address) bool {
	return s.ledger.IsApproved(class, owner, delegate)
}
