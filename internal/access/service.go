package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
)

const minKeyLength = 8

// ErrInvalidCredentials hides whether the address or the key was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service registers principals, checks their API keys and answers role
// queries for the ledger engine.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new access service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Register stores a principal with a hashed API key.
func (s *Service) Register(ctx context.Context, reg Registration) (Principal, error) {
	if strings.TrimSpace(string(reg.Address)) == "" {
		return Principal{}, errors.New("address is required")
	}
	if len(reg.APIKey) < minKeyLength {
		return Principal{}, fmt.Errorf("API key must be at least %d characters", minKeyLength)
	}
	for _, role := range reg.Roles {
		if err := validateRole(role); err != nil {
			return Principal{}, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.APIKey), bcrypt.DefaultCost)
	if err != nil {
		return Principal{}, err
	}

	p := Principal{
		ID:        uuid.New().String(),
		Address:   reg.Address,
		KeyHash:   hash,
		Roles:     append([]ledger.Role(nil), reg.Roles...),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Principal{}, err
	}
	return p, nil
}

// Authenticate verifies the API key presented for addr.
func (s *Service) Authenticate(ctx context.Context, addr ledger.Address, apiKey string) (Principal, error) {
	p, err := s.repo.FindByAddress(ctx, addr)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, err
	}
	if err := bcrypt.CompareHashAndPassword(p.KeyHash, []byte(apiKey)); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	return p, nil
}

// Grant replaces the roles of an existing principal.
func (s *Service) Grant(ctx context.Context, addr ledger.Address, roles ...ledger.Role) error {
	for _, role := range roles {
		if err := validateRole(role); err != nil {
			return err
		}
	}
	return s.repo.UpdateRoles(ctx, addr, roles)
}

// HasRole implements ledger.Authorizer. Lookup failures deny the role.
func (s *Service) HasRole(ctx context.Context, addr ledger.Address, role ledger.Role) bool {
	p, err := s.repo.FindByAddress(ctx, addr)
	if err != nil {
		if !errors.Is(err, ErrPrincipalNotFound) && s.logger != nil {
			s.logger.Warn("role lookup failed", slog.String("address", string(addr)), slog.Any("error", err))
		}
		return false
	}
	return p.HasRole(role)
}

// Seed registers every principal that does not exist yet.
func (s *Service) Seed(ctx context.Context, regs []Registration) error {
	for _, reg := range regs {
		if _, err := s.Register(ctx, reg); err != nil {
			if errors.Is(err, ErrPrincipalExists) {
				continue
			}
			return fmt.Errorf("seed principal %s: %w", reg.Address, err)
		}
		if s.logger != nil {
			s.logger.Info("principal seeded", slog.String("address", string(reg.Address)), slog.Int("roles", len(reg.Roles)))
		}
	}
	return nil
}

// ParseRegistrations reads the comma-separated address:apikey[:role+role]
// list used by the PRINCIPALS environment variable.
func ParseRegistrations(list string) ([]Registration, error) {
	var regs []Registration
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid principal entry %q", entry)
		}
		reg := Registration{Address: ledger.Address(parts[0]), APIKey: parts[1]}
		if len(parts) == 3 && parts[2] != "" {
			for _, role := range strings.Split(parts[2], "+") {
				reg.Roles = append(reg.Roles, ledger.Role(role))
			}
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

func validateRole(role ledger.Role) error {
	switch role {
	case ledger.RoleOperator, ledger.RoleRiskControl:
		return nil
	default:
		return fmt.Errorf("unknown role %q", role)
	}
}
