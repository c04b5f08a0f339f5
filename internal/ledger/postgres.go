package ledger

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const (
	requestFunding           = "funding"
	requestPayout            = "payout"
	requestClearableTransfer = "clearable_transfer"
)

// PostgresStore persists the ledger in PostgreSQL. Each changeset is written
// in a single database transaction.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the ledger tables when they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

// Load reads the whole ledger.
func (s *PostgresStore) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Accounts, err = s.loadAccounts(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Holds, err = s.loadHolds(ctx); err != nil {
		return Snapshot{}, err
	}
	if err := s.loadRequests(ctx, &snap); err != nil {
		return Snapshot{}, err
	}
	if snap.Approvals, err = s.loadApprovals(ctx); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *PostgresStore) loadAccounts(ctx context.Context) ([]Account, error) {
	const query = `
        SELECT address, balance::text, overdraft_limit::text, drawn::text, on_hold::text, interest_engine
        FROM ledger_accounts`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var acc Account
		var balance, limit, drawn, onHold, engine string
		if err := rows.Scan(&acc.Address, &balance, &limit, &drawn, &onHold, &engine); err != nil {
			return nil, err
		}
		if acc.Balance, err = parseAmount(balance); err != nil {
			return nil, err
		}
		if acc.OverdraftLimit, err = parseAmount(limit); err != nil {
			return nil, err
		}
		if acc.Drawn, err = parseAmount(drawn); err != nil {
			return nil, err
		}
		if acc.OnHold, err = parseAmount(onHold); err != nil {
			return nil, err
		}
		acc.InterestEngine = Address(engine)
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadHolds(ctx context.Context) ([]Hold, error) {
	const query = `
        SELECT issuer, operation_id, payer, payee, notary, amount::text, expiration,
               status, origin, created_at, updated_at
        FROM ledger_holds`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load holds: %w", err)
	}
	defer rows.Close()

	var out []Hold
	for rows.Next() {
		var (
			h          Hold
			notary     *string
			amount     string
			expiration *time.Time
		)
		if err := rows.Scan(&h.Issuer, &h.OperationID, &h.From, &h.To, &notary, &amount, &expiration,
			&h.Status, &h.Origin, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		if h.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if notary != nil {
			h.Notary = NotaryOf(Address(*notary))
		}
		if expiration != nil {
			h.Expires = true
			h.Expiration = expiration.UTC()
		}
		h.CreatedAt = h.CreatedAt.UTC()
		h.UpdatedAt = h.UpdatedAt.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadRequests(ctx context.Context, snap *Snapshot) error {
	const query = `
        SELECT kind, orderer, operation_id, payer, payee, amount::text, status, reason,
               instructions, created_at, updated_at
        FROM ledger_requests`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("load requests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, amount, instructions string
			payer, payee               Address
			r                          Request
		)
		if err := rows.Scan(&kind, &r.Orderer, &r.OperationID, &payer, &payee, &amount, &r.Status,
			&r.Reason, &instructions, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return err
		}
		if r.Amount, err = parseAmount(amount); err != nil {
			return err
		}
		r.CreatedAt = r.CreatedAt.UTC()
		r.UpdatedAt = r.UpdatedAt.UTC()
		switch kind {
		case requestFunding:
			snap.Fundings = append(snap.Fundings, Funding{Request: r, Wallet: payee, Instructions: instructions})
		case requestPayout:
			snap.Payouts = append(snap.Payouts, Payout{Request: r, Wallet: payer, Instructions: instructions})
		case requestClearableTransfer:
			snap.ClearableTransfers = append(snap.ClearableTransfers, ClearableTransfer{Request: r, From: payer, To: payee})
		default:
			return fmt.Errorf("unknown request kind %q for %s", kind, r.Key())
		}
	}
	return rows.Err()
}

func (s *PostgresStore) loadApprovals(ctx context.Context) ([]Approval, error) {
	rows, err := s.db.Query(ctx, `SELECT class, owner, delegate FROM ledger_approvals`)
	if err != nil {
		return nil, fmt.Errorf("load approvals: %w", err)
	}
	defer rows.Close()

	var out []Approval
	for rows.Next() {
		var a Approval
		if err := rows.Scan(&a.Class, &a.Owner, &a.Delegate); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Commit writes the changeset atomically.
func (s *PostgresStore) Commit(ctx context.Context, cs Changeset) error {
	if cs.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, acc := range cs.Accounts {
		if err := upsertAccount(ctx, tx, acc); err != nil {
			return err
		}
	}
	for _, h := range cs.Holds {
		if err := upsertHold(ctx, tx, h); err != nil {
			return err
		}
	}
	for _, f := range cs.Fundings {
		if err := upsertRequest(ctx, tx, requestFunding, f.Request, "", f.Wallet, f.Instructions); err != nil {
			return err
		}
	}
	for _, p := range cs.Payouts {
		if err := upsertRequest(ctx, tx, requestPayout, p.Request, p.Wallet, "", p.Instructions); err != nil {
			return err
		}
	}
	for _, ct := range cs.ClearableTransfers {
		if err := upsertRequest(ctx, tx, requestClearableTransfer, ct.Request, ct.From, ct.To, ""); err != nil {
			return err
		}
	}
	for _, change := range cs.Approvals {
		if err := writeApproval(ctx, tx, change); err != nil {
			return err
		}
	}
	for _, ev := range cs.Events {
		if _, err := tx.Exec(ctx, `INSERT INTO ledger_events (id, name, issuer, operation_id, status, attributes, occurred_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ev.ID, ev.Name, string(ev.Issuer), ev.OperationID, ev.Status, ev.Attributes, ev.At); err != nil {
			return fmt.Errorf("insert event %s: %w", ev.Name, err)
		}
	}

	return tx.Commit(ctx)
}

func upsertAccount(ctx context.Context, tx pgx.Tx, acc Account) error {
	const query = `
        INSERT INTO ledger_accounts (address, balance, overdraft_limit, drawn, on_hold, interest_engine)
        VALUES ($1, $2::text::numeric, $3::text::numeric, $4::text::numeric, $5::text::numeric, $6)
        ON CONFLICT (address) DO UPDATE SET
            balance = EXCLUDED.balance,
            overdraft_limit = EXCLUDED.overdraft_limit,
            drawn = EXCLUDED.drawn,
            on_hold = EXCLUDED.on_hold,
            interest_engine = EXCLUDED.interest_engine`
	_, err := tx.Exec(ctx, query, string(acc.Address), formatAmount(acc.Balance), formatAmount(acc.OverdraftLimit),
		formatAmount(acc.Drawn), formatAmount(acc.OnHold), string(acc.InterestEngine))
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", acc.Address, err)
	}
	return nil
}

func upsertHold(ctx context.Context, tx pgx.Tx, h Hold) error {
	const query = `
        INSERT INTO ledger_holds (issuer, operation_id, payer, payee, notary, amount, expiration, status, origin, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9, $10, $11)
        ON CONFLICT (issuer, operation_id) DO UPDATE SET
            expiration = EXCLUDED.expiration,
            status = EXCLUDED.status,
            updated_at = EXCLUDED.updated_at`
	var notary *string
	if addr, ok := h.Notary.Address(); ok {
		v := string(addr)
		notary = &v
	}
	var expiration *time.Time
	if h.Expires {
		expiration = &h.Expiration
	}
	_, err := tx.Exec(ctx, query, string(h.Issuer), h.OperationID, string(h.From), string(h.To), notary,
		formatAmount(h.Amount), expiration, string(h.Status), string(h.Origin), h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert hold %s: %w", h.Key(), err)
	}
	return nil
}

func upsertRequest(ctx context.Context, tx pgx.Tx, kind string, r Request, payer, payee Address, instructions string) error {
	const query = `
        INSERT INTO ledger_requests (kind, orderer, operation_id, payer, payee, amount, status, reason, instructions, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9, $10, $11)
        ON CONFLICT (kind, orderer, operation_id) DO UPDATE SET
            status = EXCLUDED.status,
            reason = EXCLUDED.reason,
            updated_at = EXCLUDED.updated_at`
	_, err := tx.Exec(ctx, query, kind, string(r.Orderer), r.OperationID, string(payer), string(payee),
		formatAmount(r.Amount), string(r.Status), r.Reason, instructions, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert %s %s: %w", kind, r.Key(), err)
	}
	return nil
}

func writeApproval(ctx context.Context, tx pgx.Tx, change ApprovalChange) error {
	a := change.Approval
	var err error
	if change.Granted {
		_, err = tx.Exec(ctx, `INSERT INTO ledger_approvals (class, owner, delegate) VALUES ($1, $2, $3)
            ON CONFLICT DO NOTHING`, string(a.Class), string(a.Owner), string(a.Delegate))
	} else {
		_, err = tx.Exec(ctx, `DELETE FROM ledger_approvals WHERE class = $1 AND owner = $2 AND delegate = $3`,
			string(a.Class), string(a.Owner), string(a.Delegate))
	}
	if err != nil {
		return fmt.Errorf("write approval %s/%s/%s: %w", a.Class, a.Owner, a.Delegate, err)
	}
	return nil
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}
