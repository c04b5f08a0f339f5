package access

import (
	"time"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
)

// Principal is a caller allowed to use the API under a ledger address.
type Principal struct {
	ID        string
	Address   ledger.Address
	KeyHash   []byte
	Roles     []ledger.Role
	CreatedAt time.Time
}

// HasRole reports whether the principal was granted role.
func (p Principal) HasRole(role ledger.Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Registration request structure.
type Registration struct {
	Address ledger.Address
	APIKey  string
	Roles   []ledger.Role
}
