package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Address identifies an account or a party.
type Address string

const reservedPrefix = "suspense:"

// SuspenseAccount parks payout funds between the hold execution and the burn.
// Addresses with the reserved prefix cannot be supplied by callers.
const SuspenseAccount Address = reservedPrefix + "payout"

func (a Address) validate() error {
	if strings.TrimSpace(string(a)) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if strings.HasPrefix(string(a), reservedPrefix) {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidAddress, a)
	}
	return nil
}

// OperationKey identifies holds and workflow requests. Different issuers may
// reuse the same operation id.
type OperationKey struct {
	Issuer      Address
	OperationID string
}

func (k OperationKey) String() string {
	return string(k.Issuer) + "/" + k.OperationID
}

// Account is the per-wallet ledger record.
type Account struct {
	Address        Address
	Balance        uint64
	OverdraftLimit uint64
	Drawn          uint64
	OnHold         uint64
	InterestEngine Address
}

// Available is balance + overdraftLimit - drawn - onHold, floored at zero.
func (a Account) Available() uint64 {
	capacity := satAdd(a.Balance, a.OverdraftLimit)
	used := satAdd(a.Drawn, a.OnHold)
	if used >= capacity {
		return 0
	}
	return capacity - used
}

// Net is balance - drawn. Balance and drawn are never both positive.
func (a Account) Net() int64 {
	if a.Drawn > 0 {
		return -clampInt64(a.Drawn)
	}
	return clampInt64(a.Balance)
}

// Totals are the running aggregates maintained with every mutation.
type Totals struct {
	Supply       uint64
	SupplyOnHold uint64
	Drawn        uint64
}

// HoldStatus is the lifecycle state of a hold.
type HoldStatus string

const (
	HoldNonexistent          HoldStatus = "nonexistent"
	HoldOrdered              HoldStatus = "ordered"
	HoldExecutedByNotary     HoldStatus = "executed_by_notary"
	HoldExecutedByOperator   HoldStatus = "executed_by_operator"
	HoldReleasedByNotary     HoldStatus = "released_by_notary"
	HoldReleasedByPayee      HoldStatus = "released_by_payee"
	HoldReleasedByOperator   HoldStatus = "released_by_operator"
	HoldReleasedOnExpiration HoldStatus = "released_on_expiration"
)

// Terminal reports whether no further transition is possible.
func (s HoldStatus) Terminal() bool {
	return s != HoldOrdered && s != HoldNonexistent
}

// Notary is the optional party allowed to execute or release a hold.
type Notary struct {
	addr Address
	set  bool
}

// NotaryOf returns a notary bound to addr.
func NotaryOf(addr Address) Notary {
	return Notary{addr: addr, set: true}
}

// NoNotary returns the notary used by holds only an operator may settle.
func NoNotary() Notary {
	return Notary{}
}

// Address returns the notary address and whether one is set.
func (n Notary) Address() (Address, bool) {
	return n.addr, n.set
}

// Is reports whether addr is this hold's notary.
func (n Notary) Is(addr Address) bool {
	return n.set && n.addr == addr
}

func (n Notary) String() string {
	if !n.set {
		return "none"
	}
	return string(n.addr)
}

// HoldOrigin records which component created a hold.
type HoldOrigin string

const (
	OriginDirect            HoldOrigin = "direct"
	OriginPayout            HoldOrigin = "payout"
	OriginClearableTransfer HoldOrigin = "clearable_transfer"
)

// Hold locks Amount of From's available funds until it is executed towards To
// or released.
type Hold struct {
	Issuer      Address
	OperationID string
	From        Address
	To          Address
	Notary      Notary
	Amount      uint64
	Expires     bool
	Expiration  time.Time
	Status      HoldStatus
	Origin      HoldOrigin
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Key returns the (issuer, operation id) identity of the hold.
func (h Hold) Key() OperationKey {
	return OperationKey{Issuer: h.Issuer, OperationID: h.OperationID}
}

// Expired reports whether the hold may be released by anyone at now.
func (h Hold) Expired(now time.Time) bool {
	return h.Expires && !now.Before(h.Expiration)
}

// RequestStatus is the lifecycle state of a funding, payout or clearable
// transfer request.
type RequestStatus string

const (
	StatusNonexistent     RequestStatus = "nonexistent"
	StatusOrdered         RequestStatus = "ordered"
	StatusInProcess       RequestStatus = "in_process"
	StatusFundsInSuspense RequestStatus = "funds_in_suspense"
	StatusExecuted        RequestStatus = "executed"
	StatusRejected        RequestStatus = "rejected"
	StatusCancelled       RequestStatus = "cancelled"
)

// Terminal reports whether the request can no longer change.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusExecuted, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// Request holds the fields shared by every workflow request.
type Request struct {
	Orderer     Address
	OperationID string
	Amount      uint64
	Status      RequestStatus
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Key returns the (orderer, operation id) identity of the request.
func (r Request) Key() OperationKey {
	return OperationKey{Issuer: r.Orderer, OperationID: r.OperationID}
}

// Funding is a request to mint Amount into Wallet.
type Funding struct {
	Request
	Wallet       Address
	Instructions string
}

// Payout is a request to burn Amount from Wallet. Its hold shares its key.
type Payout struct {
	Request
	Wallet       Address
	Instructions string
}

// ClearableTransfer is a request to move Amount from From to To once cleared
// by an operator. Its hold shares its key.
type ClearableTransfer struct {
	Request
	From Address
	To   Address
}

// ApprovalClass names the action a delegate may order on an owner's behalf.
type ApprovalClass string

const (
	ApprovalHold              ApprovalClass = "hold"
	ApprovalFunding           ApprovalClass = "funding"
	ApprovalPayout            ApprovalClass = "payout"
	ApprovalClearableTransfer ApprovalClass = "clearable_transfer"
)

// ParseApprovalClass validates a class name.
func ParseApprovalClass(s string) (ApprovalClass, error) {
	switch c := ApprovalClass(s); c {
	case ApprovalHold, ApprovalFunding, ApprovalPayout, ApprovalClearableTransfer:
		return c, nil
	default:
		return "", fmt.Errorf("unknown approval class %q", s)
	}
}

// Approval is one (class, owner, delegate) relation.
type Approval struct {
	Class    ApprovalClass
	Owner    Address
	Delegate Address
}

// Event describes a committed state transition.
type Event struct {
	ID          uuid.UUID
	Name        string
	Issuer      Address
	OperationID string
	Status      string
	Attributes  map[string]string
	At          time.Time
}

func satAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
