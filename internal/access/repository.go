package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
)

var (
	ErrPrincipalExists   = errors.New("principal exists")
	ErrPrincipalNotFound = errors.New("principal not found")
)

// Repository persists principals.
type Repository interface {
	Create(ctx context.Context, p Principal) error
	FindByAddress(ctx context.Context, addr ledger.Address) (Principal, error)
	UpdateRoles(ctx context.Context, addr ledger.Address, roles []ledger.Role) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed principal repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the principals table when missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS principals (
        id         UUID PRIMARY KEY,
        address    TEXT NOT NULL UNIQUE,
        key_hash   BYTEA NOT NULL,
        roles      TEXT[] NOT NULL DEFAULT '{}',
        created_at TIMESTAMPTZ NOT NULL
    )`)
	if err != nil {
		return fmt.Errorf("migrate principals: %w", err)
	}
	return nil
}

// Create inserts a new principal.
func (r *PostgresRepository) Create(ctx context.Context, p Principal) error {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, `INSERT INTO principals (id, address, key_hash, roles, created_at)
        VALUES ($1, $2, $3, $4, $5) ON CONFLICT (address) DO NOTHING`,
		id, string(p.Address), p.KeyHash, roleNames(p.Roles), p.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPrincipalExists
	}
	return nil
}

// FindByAddress fetches a principal by its ledger address.
func (r *PostgresRepository) FindByAddress(ctx context.Context, addr ledger.Address) (Principal, error) {
	row := r.db.QueryRow(ctx, `SELECT id, address, key_hash, roles, created_at FROM principals WHERE address = $1`, string(addr))
	var (
		id        uuid.UUID
		address   string
		roles     []string
		createdAt time.Time
		p         Principal
	)
	if err := row.Scan(&id, &address, &p.KeyHash, &roles, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Principal{}, ErrPrincipalNotFound
		}
		return Principal{}, err
	}
	p.ID = id.String()
	p.Address = ledger.Address(address)
	p.CreatedAt = createdAt.UTC()
	for _, role := range roles {
		p.Roles = append(p.Roles, ledger.Role(role))
	}
	return p, nil
}

// UpdateRoles replaces the roles granted to addr.
func (r *PostgresRepository) UpdateRoles(ctx context.Context, addr ledger.Address, roles []ledger.Role) error {
	cmd, err := r.db.Exec(ctx, `UPDATE principals SET roles = $1 WHERE address = $2`, roleNames(roles), string(addr))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func roleNames(roles []ledger.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
