package wallet

import (
	"time"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
)

// View is a point-in-time snapshot of a wallet's ledger position.
type View struct {
	Address        ledger.Address
	Balance        uint64
	OverdraftLimit uint64
	Drawn          uint64
	OnHold         uint64
	Available      uint64
	Net            int64
	InterestEngine ledger.Address
	AsOf           time.Time
}

// Totals is a point-in-time snapshot of the ledger aggregates.
type Totals struct {
	Supply       uint64
	SupplyOnHold uint64
	Drawn        uint64
	AsOf         time.Time
}
