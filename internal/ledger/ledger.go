package ledger

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds occurs when a lock or debit would exceed the wallet's
	// available funds or its overdraft limit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateOperation indicates the issuer already used the operation id.
	ErrDuplicateOperation = errors.New("duplicate operation")

	// ErrNotFound indicates the referenced hold or request does not exist.
	ErrNotFound = errors.New("not found")

	// ErrWrongStatus indicates the transition is not allowed from the current status.
	ErrWrongStatus = errors.New("wrong status")

	// ErrUnauthorized indicates the caller lacks the required role or relationship.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrComplianceRejected indicates the compliance predicate did not return success.
	ErrComplianceRejected = errors.New("compliance rejected")

	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrMissingOperationID = errors.New("operation id is required")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidExpiration  = errors.New("invalid expiration")
	ErrAmountOverflow     = errors.New("amount overflow")
)

// Role names a privileged capability checked through the Authorizer.
type Role string

const (
	// RoleOperator advances workflow requests and may execute or release any direct hold.
	RoleOperator Role = "operator"
	// RoleRiskControl sets overdraft limits and registers interest engines.
	RoleRiskControl Role = "risk_control"
)

// Authorizer answers whether an address holds a role.
type Authorizer interface {
	HasRole(ctx context.Context, addr Address, role Role) bool
}

// OperationKind classifies a compliance check.
type OperationKind string

const (
	KindTransfer          OperationKind = "transfer"
	KindHold              OperationKind = "hold"
	KindExecuteHold       OperationKind = "execute_hold"
	KindFunding           OperationKind = "funding"
	KindPayout            OperationKind = "payout"
	KindClearableTransfer OperationKind = "clearable_transfer"
)

// ComplianceCode mirrors a standardized status code space. Only
// ComplianceSuccess lets an operation proceed.
type ComplianceCode uint8

const (
	ComplianceSuccess    ComplianceCode = 0x01
	ComplianceDisallowed ComplianceCode = 0x10
)

// ComplianceRequest describes the parties and amount of a mutating operation.
type ComplianceRequest struct {
	Kind    OperationKind
	Parties []Address
	Amount  uint64
}

// Compliance evaluates whether an operation may run.
type Compliance interface {
	Check(ctx context.Context, req ComplianceRequest) ComplianceCode
}

// ComplianceError carries the code returned by a failed compliance check.
type ComplianceError struct {
	Kind OperationKind
	Code ComplianceCode
}

func (e *ComplianceError) Error() string {
	return fmt.Sprintf("compliance rejected %s: code 0x%02x", e.Kind, uint8(e.Code))
}

// Is reports ErrComplianceRejected as the matching sentinel.
func (e *ComplianceError) Is(target error) bool {
	return target == ErrComplianceRejected
}

// EventSink receives one event per committed state transition. Delivery is
// best effort and never affects the outcome of the operation.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

type allowAll struct{}

func (allowAll) Check(context.Context, ComplianceRequest) ComplianceCode { return ComplianceSuccess }

type noRoles struct{}

func (noRoles) HasRole(context.Context, Address, Role) bool { return false }
