package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/congo-pay/emoney-ledger/internal/logging"
)

// Engine is the consolidated ledger and hold engine. Every mutating call is
// serialized and either fully applies or leaves no trace.
type Engine struct {
	mu         sync.RWMutex
	st         *state
	store      Store
	auth       Authorizer
	compliance Compliance
	sink       EventSink
	logger     *slog.Logger
	clock      func() time.Time

	directHoldFundsCheck bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithAuthorizer sets the role predicate. Without one no caller holds a role.
func WithAuthorizer(auth Authorizer) Option {
	return func(e *Engine) {
		if auth != nil {
			e.auth = auth
		}
	}
}

// WithCompliance sets the compliance predicate. Without one every operation passes.
func WithCompliance(c Compliance) Option {
	return func(e *Engine) {
		if c != nil {
			e.compliance = c
		}
	}
}

// WithEventSink sets where committed events are published.
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDirectHoldFundsCheck controls whether Hold and HoldFrom require the
// payer's available funds to cover the amount. Workflow holds always check.
func WithDirectHoldFundsCheck(enabled bool) Option {
	return func(e *Engine) { e.directHoldFundsCheck = enabled }
}

// NewEngine restores the ledger from store and returns a ready engine.
func NewEngine(ctx context.Context, store Store, opts ...Option) (*Engine, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	e := &Engine{
		st:                   newState(),
		store:                store,
		auth:                 noRoles{},
		compliance:           allowAll{},
		logger:               logging.Discard(),
		clock:                time.Now,
		directHoldFundsCheck: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger snapshot: %w", err)
	}
	e.restore(snap)
	return e, nil
}

func (e *Engine) restore(snap Snapshot) {
	s := newState()
	for _, acc := range snap.Accounts {
		s.accounts[acc.Address] = acc
		s.totals.Supply = satAdd(s.totals.Supply, acc.Balance)
		s.totals.Drawn = satAdd(s.totals.Drawn, acc.Drawn)
		s.totals.SupplyOnHold = satAdd(s.totals.SupplyOnHold, acc.OnHold)
	}
	for _, h := range snap.Holds {
		s.holds[h.Key()] = h
	}
	for _, f := range snap.Fundings {
		s.fundings[f.Key()] = f
	}
	for _, p := range snap.Payouts {
		s.payouts[p.Key()] = p
	}
	for _, ct := range snap.ClearableTransfers {
		s.transfers[ct.Key()] = ct
	}
	for _, a := range snap.Approvals {
		s.approvals[a] = true
	}
	e.st = s
}

// update runs fn against a staged transaction and commits its effects.
func (e *Engine) update(ctx context.Context, op string, fn func(tx *txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx := newTxn(ctx, e.st, e.clock().UTC())
	if err := fn(tx); err != nil {
		e.logger.Debug("ledger operation rejected", slog.String("operation", op), slog.Any("error", err))
		return err
	}

	if err := e.store.Commit(ctx, tx.changeset()); err != nil {
		e.logger.Error("ledger commit failed", slog.String("operation", op), slog.Any("error", err))
		return fmt.Errorf("commit %s: %w", op, err)
	}
	tx.apply(e.st)

	for _, ev := range tx.events {
		e.logger.Debug("ledger event",
			slog.String("event", ev.Name),
			slog.String("issuer", string(ev.Issuer)),
			slog.String("operation_id", ev.OperationID),
			slog.String("status", ev.Status),
		)
		if e.sink == nil {
			continue
		}
		if err := e.sink.Publish(ctx, ev); err != nil {
			e.logger.Warn("publish ledger event", slog.String("event", ev.Name), slog.Any("error", err))
		}
	}
	return nil
}

func (e *Engine) read(fn func(s *state)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.st)
}

func (e *Engine) requireRole(ctx context.Context, caller Address, role Role) error {
	if !e.auth.HasRole(ctx, caller, role) {
		return fmt.Errorf("%w: %s lacks role %s", ErrUnauthorized, caller, role)
	}
	return nil
}

func (e *Engine) checkCompliance(ctx context.Context, kind OperationKind, amount uint64, parties ...Address) error {
	code := e.compliance.Check(ctx, ComplianceRequest{Kind: kind, Parties: parties, Amount: amount})
	if code != ComplianceSuccess {
		return &ComplianceError{Kind: kind, Code: code}
	}
	return nil
}
