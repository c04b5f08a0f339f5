package ledger

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// state is the committed ledger. It is only mutated by txn.apply.
type state struct {
	accounts  map[Address]Account
	holds     map[OperationKey]Hold
	fundings  map[OperationKey]Funding
	payouts   map[OperationKey]Payout
	transfers map[OperationKey]ClearableTransfer
	approvals map[Approval]bool
	totals    Totals
}

func newState() *state {
	return &state{
		accounts:  make(map[Address]Account),
		holds:     make(map[OperationKey]Hold),
		fundings:  make(map[OperationKey]Funding),
		payouts:   make(map[OperationKey]Payout),
		transfers: make(map[OperationKey]ClearableTransfer),
		approvals: make(map[Approval]bool),
	}
}

// overlay stages writes over a committed map until the transaction commits.
type overlay[K comparable, V any] struct {
	base  map[K]V
	dirty map[K]V
}

func newOverlay[K comparable, V any](base map[K]V) overlay[K, V] {
	return overlay[K, V]{base: base, dirty: make(map[K]V)}
}

func (o *overlay[K, V]) get(k K) (V, bool) {
	if v, ok := o.dirty[k]; ok {
		return v, true
	}
	v, ok := o.base[k]
	return v, ok
}

func (o *overlay[K, V]) put(k K, v V) {
	o.dirty[k] = v
}

func (o *overlay[K, V]) values() []V {
	out := make([]V, 0, len(o.dirty))
	for _, v := range o.dirty {
		out = append(out, v)
	}
	return out
}

func (o *overlay[K, V]) apply() {
	for k, v := range o.dirty {
		o.base[k] = v
	}
}

// txn collects every effect of one operation. Nothing reaches the committed
// state unless the whole operation succeeds and the store accepts the
// changeset.
type txn struct {
	ctx       context.Context
	now       time.Time
	accounts  overlay[Address, Account]
	holds     overlay[OperationKey, Hold]
	fundings  overlay[OperationKey, Funding]
	payouts   overlay[OperationKey, Payout]
	transfers overlay[OperationKey, ClearableTransfer]
	approvals overlay[Approval, bool]
	totals    Totals
	events    []Event
}

func newTxn(ctx context.Context, s *state, now time.Time) *txn {
	return &txn{
		ctx:       ctx,
		now:       now,
		accounts:  newOverlay(s.accounts),
		holds:     newOverlay(s.holds),
		fundings:  newOverlay(s.fundings),
		payouts:   newOverlay(s.payouts),
		transfers: newOverlay(s.transfers),
		approvals: newOverlay(s.approvals),
		totals:    s.totals,
	}
}

func (t *txn) account(addr Address) Account {
	acc, ok := t.accounts.get(addr)
	if !ok {
		acc = Account{Address: addr}
	}
	return acc
}

func (t *txn) putAccount(acc Account) {
	t.accounts.put(acc.Address, acc)
}

func (t *txn) emit(name string, key OperationKey, status string, attrs map[string]string) {
	t.events = append(t.events, Event{
		ID:          uuid.New(),
		Name:        name,
		Issuer:      key.Issuer,
		OperationID: key.OperationID,
		Status:      status,
		Attributes:  attrs,
		At:          t.now,
	})
}

func (t *txn) changeset() Changeset {
	cs := Changeset{
		Accounts:           t.accounts.values(),
		Holds:              t.holds.values(),
		Fundings:           t.fundings.values(),
		Payouts:            t.payouts.values(),
		ClearableTransfers: t.transfers.values(),
		Events:             t.events,
	}
	for a, granted := range t.approvals.dirty {
		cs.Approvals = append(cs.Approvals, ApprovalChange{Approval: a, Granted: granted})
	}
	return cs
}

func (t *txn) apply(s *state) {
	t.accounts.apply()
	t.holds.apply()
	t.fundings.apply()
	t.payouts.apply()
	t.transfers.apply()
	t.approvals.apply()
	s.totals = t.totals
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}
