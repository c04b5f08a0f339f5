package ledger

import (
	"context"
	"sync"
)

// Snapshot is the full persisted ledger, used to restore an Engine.
type Snapshot struct {
	Accounts           []Account
	Holds              []Hold
	Fundings           []Funding
	Payouts            []Payout
	ClearableTransfers []ClearableTransfer
	Approvals          []Approval
}

// ApprovalChange records a grant or a revocation.
type ApprovalChange struct {
	Approval Approval
	Granted  bool
}

// Changeset is every record touched by one operation plus the events it
// produced. A Store must apply it atomically.
type Changeset struct {
	Accounts           []Account
	Holds              []Hold
	Fundings           []Funding
	Payouts            []Payout
	ClearableTransfers []ClearableTransfer
	Approvals          []ApprovalChange
	Events             []Event
}

// Empty reports whether the changeset carries nothing to persist.
func (c Changeset) Empty() bool {
	return len(c.Accounts) == 0 && len(c.Holds) == 0 && len(c.Fundings) == 0 &&
		len(c.Payouts) == 0 && len(c.ClearableTransfers) == 0 &&
		len(c.Approvals) == 0 && len(c.Events) == 0
}

// Store persists committed ledger state.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Commit(ctx context.Context, cs Changeset) error
}

// MemoryStore keeps committed state in process. It is the default store and
// lets tests restore a second engine from the first one's commits.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[Address]Account
	holds     map[OperationKey]Hold
	fundings  map[OperationKey]Funding
	payouts   map[OperationKey]Payout
	transfers map[OperationKey]ClearableTransfer
	approvals map[Approval]struct{}
	events    []Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[Address]Account),
		holds:     make(map[OperationKey]Hold),
		fundings:  make(map[OperationKey]Funding),
		payouts:   make(map[OperationKey]Payout),
		transfers: make(map[OperationKey]ClearableTransfer),
		approvals: make(map[Approval]struct{}),
	}
}

func (m *MemoryStore) Load(_ context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var snap Snapshot
	for _, acc := range m.accounts {
		snap.Accounts = append(snap.Accounts, acc)
	}
	for _, h := range m.holds {
		snap.Holds = append(snap.Holds, h)
	}
	for _, f := range m.fundings {
		snap.Fundings = append(snap.Fundings, f)
	}
	for _, p := range m.payouts {
		snap.Payouts = append(snap.Payouts, p)
	}
	for _, ct := range m.transfers {
		snap.ClearableTransfers = append(snap.ClearableTransfers, ct)
	}
	for a := range m.approvals {
		snap.Approvals = append(snap.Approvals, a)
	}
	return snap, nil
}

func (m *MemoryStore) Commit(ctx context.Context, cs Changeset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, acc := range cs.Accounts {
		m.accounts[acc.Address] = acc
	}
	for _, h := range cs.Holds {
		m.holds[h.Key()] = h
	}
	for _, f := range cs.Fundings {
		m.fundings[f.Key()] = f
	}
	for _, p := range cs.Payouts {
		m.payouts[p.Key()] = p
	}
	for _, ct := range cs.ClearableTransfers {
		m.transfers[ct.Key()] = ct
	}
	for _, change := range cs.Approvals {
		if change.Granted {
			m.approvals[change.Approval] = struct{}{}
		} else {
			delete(m.approvals, change.Approval)
		}
	}
	m.events = append(m.events, cs.Events...)
	return nil
}

// Events returns every committed event in commit order.
func (m *MemoryStore) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
