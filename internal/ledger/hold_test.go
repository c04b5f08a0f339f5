package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHold_OperationIDsAreScopedByIssuer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.mint(t, "alice", 1000)
	h.mint(t, "bob", 1000)

	_, err := h.Hold(ctx, "alice", HoldInput{OperationID: "OP", To: "carol", Amount: 100})
	require.NoError(t, err)
	_, err = h.Hold(ctx, "bob", HoldInput{OperationID: "OP", To: "carol", Amount: 200})
	require.NoError(t, err)

	a, err := h.RetrieveHold("alice", "OP")
	require.NoError(t, err)
	b, err := h.RetrieveHold("bob", "OP")
	require.NoError(t, err)
	require.Equal(t, uint64(100), a.Amount)
	require.Equal(t, uint64(200), b.Amount)

	_, err = h.Hold(ctx, "alice", HoldInput{OperationID: "OP", To: "carol", Amount: 1})
	require.ErrorIs(t, err, ErrDuplicateOperation)
	require.Equal(t, uint64(100), h.BalanceOnHold("alice"))
	require.Equal(t, uint64(300), h.TotalSupplyOnHold())
	requireConsistent(t, h.Engine)
}

func TestHold_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.mint(t, "alice", 1000)

	cases := []struct {
		name string
		in   HoldInput
		want error
	}{
		{"zero amount", HoldInput{OperationID: "H", To: "bob"}, ErrInvalidAmount},
		{"missing operation id", HoldInput{To: "bob", Amount: 1}, ErrMissingOperationID},
		{"empty payee", HoldInput{OperationID: "H", Amount: 1}, ErrInvalidAddress},
		{"reserved payee", HoldInput{OperationID: "H", To: SuspenseAccount, Amount: 1}, ErrInvalidAddress},
		{"negative ttl", HoldInput{OperationID: "H", To: "bob", Amount: 1, TimeToExpiration: -time.Second}, ErrInvalidExpiration},
		{"past expiration", HoldInput{OperationID: "H", To: "bob", Amount: 1, Expiration: h.clock.Now().Add(-time.Minute)}, ErrInvalidExpiration},
		{"above available", HoldInput{OperationID: "H", To: "bob", Amount: 1001}, ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Hold(ctx, "alice", tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Zero(t, h.BalanceOnHold("alice"))
}

func TestHold_ExecuteRequiresNotaryOrOperator(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.mint(t, "alice", 1000)

	_, err := h.Hold(ctx, "alice", HoldInput{OperationID: "H1", To: "bob", Notary: NotaryOf("notary"), Amount: 400})
	require.NoError(t, err)

	_, err = h.ExecuteHold(ctx, "bob", "alice", "H1")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = h.ExecuteHold(ctx, "alice", "alice", "H1")
	require.ErrorIs(t, err, ErrUnauthorized)

	executed, err := h.ExecuteHold(ctx, operator, "alice", "H1")
	require.NoError(t, err)
	require.Equal(t, HoldExecutedByOperator, executed.Status)

	_, err = h.ExecuteHold(ctx, "notary", "alice", "H1")
	require.ErrorIs(t, err, ErrWrongStatus)
	_, err = h.ReleaseHold(ctx, "notary", "alice", "H1")
	require.ErrorIs(t, err, ErrWrongStatus)
	_, err = h.ExecuteHold(ctx, "notary", "alice", "missing")
	require.ErrorIs(t, err, ErrNotFound)

	stored, err := h.RetrieveHold("alice", "H1")
	require.NoError(t, err)
	require.Equal(t, HoldExecutedByOperator, stored.Status)
}

func TestHold_ReleaseAuthority(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.mint(t, "alice", 1000)

	create := func(opID string) {
		t.Helper()
		_, err := h.Hold(ctx, "alice", HoldInput{OperationID: opID, To: "bob", Notary: NotaryOf("notary"), Amount: 100, TimeToExpiration: time.Hour})
		require.NoError(t, err)
	}
	create("by-notary")
	create("by-operator")
	create("by-payee")
	create("by-anyone")

	_, err := h.ReleaseHold(ctx, "stranger", "alice", "by-anyone")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = h.ReleaseHold(ctx, "alice", "alice", "by-anyone")
	require.ErrorIs(t, err, ErrUnauthorized, "the payer cannot release its own hold")

	released, err := h.ReleaseHold(ctx, "notary", "alice", "by-notary")
	require.NoError(t, err)
	require.Equal(t, HoldReleasedByNotary, released.Status)
	released, err = h.ReleaseHold(ctx, operator, "alice", "by-operator")
	require.NoError(t, err)
	require.Equal(t, HoldReleasedByOperator, released.Status)
	released, err = h.ReleaseHold(ctx, "bob", "alice", "by-payee")
	require.NoError(t, err)
	require.Equal(t, HoldReleasedByPayee, released.Status)

	h.clock.Advance(time.Hour)
	released, err = h.ReleaseHold(ctx, "stranger", "alice", "by-anyone")
	require.NoError(t, err)
	require.Equal(t, HoldReleasedOnExpiration, released.Status)

	require.Zero(t, h.BalanceOnHold("alice"))
	require.Equal(t, uint64(1000), h.BalanceOf("alice"))
	require.Zero(t, h.BalanceOf("bob"))
	requireConsistent(t, h.Engine)
}

func TestHold_ExpirationDoesNotBlockExecution(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.mint(t, "alice", 1000)

	expiration := h.clock.Now().Add(30 * time.Minute)
	_, err := h.Hold(ctx, "alice", HoldInput{OperationID: "H1", To: "bob", Notary: NotaryOf("notary"), Amount: 250, Expiration: expiration})
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	hold, err := h.RetrieveHold("alice", "H1")
	require.NoError(t, err)
	require.True(t, hold.Expired(h.clock.Now()))
	require.Equal(t, uint64(250), h.BalanceOnHold("alice"), "expired holds stay locked until released")

	executed, err := h.ExecuteHold(ctx, "notary", "alice", "H1")
	require.NoError(t, err)
	require.Equal(t, HoldExecutedByNotary, executed.Status)
	require.Equal(t, uint64(250), h.BalanceOf("bob"))
}

func TestHold_RenewByIssuerOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.mint(t, "alice", 1000)

	_, err := h.Hold(ctx, "alice", HoldInput{OperationID: "H1", To: "bob", Amount: 100, TimeToExpiration: time.Minute})
	require.NoError(t, err)
	h.clock.Advance(5 * time.Minute)

	_, err = h.RenewHold(ctx, "bob", "alice", "H1", time.Hour)
	require.ErrorIs(t, err, ErrUnauthorized)

	renewed, err := h.RenewHold(ctx, "alice", "alice", "H1", time.Hour)
	require.NoError(t, err)
	require.True(t, renewed.Expires)
	require.Equal(t, h.clock.Now().Add(time.Hour), renewed.Expiration)
	require.Equal(t, HoldOrdered, renewed.Status)
	require.Equal(t, uint64(100), renewed.Amount)

	_, err = h.ReleaseHold(ctx, "stranger", "alice", "H1")
	require.ErrorIs(t, err, ErrUnauthorized, "renewal closes the expiry window")

	until := h.clock.Now().Add(24 * time.Hour)
	renewed, err = h.RenewHoldUntil(ctx, "alice", "alice", "H1", until)
	require.NoError(t, err)
	require.Equal(t, until, renewed.Expiration)

	renewed, err = h.RenewHold(ctx, "alice", "alice", "H1", 0)
	require.NoError(t, err)
	require.False(t, renewed.Expires)

	_, err = h.RenewHoldUntil(ctx, "alice", "alice", "H1", h.clock.Now())
	require.ErrorIs(t, err, ErrInvalidExpiration)
	_, err = h.RenewHold(ctx, "alice", "alice", "missing", time.Hour)
	require.ErrorIs(t, err, ErrNotFound)

	require.Equal(t, []string{"hold.created", "hold.renewed", "hold.renewed", "hold.renewed"}, h.sink.names()[2:])
}

func TestHold_FromRequiresApproval(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.mint(t, "owner", 1000)

	in := HoldInput{OperationID: "H1", From: "owner", To: "shop", Amount: 300}
	_, err := h.HoldFrom(ctx, "delegate", in)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, h.Approve(ctx, "owner", ApprovalHold, "delegate"))
	require.True(t, h.IsApproved(ApprovalHold, "owner", "delegate"))
	require.False(t, h.IsApproved(ApprovalPayout, "owner", "delegate"))

	hold, err := h.HoldFrom(ctx, "delegate", in)
	require.NoError(t, err)
	require.Equal(t, Address("delegate"), hold.Issuer)
	require.Equal(t, Address("owner"), hold.From)
	require.Equal(t, uint64(300), h.BalanceOnHold("owner"))

	_, err = h.RenewHold(ctx, "owner", "delegate", "H1", time.Hour)
	require.ErrorIs(t, err, ErrUnauthorized, "only the issuer renews")

	require.NoError(t, h.Revoke(ctx, "owner", ApprovalHold, "delegate"))
	require.False(t, h.IsApproved(ApprovalHold, "owner", "delegate"))
	_, err = h.HoldFrom(ctx, "delegate", HoldInput{OperationID: "H2", From: "owner", To: "shop", Amount: 1})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestHold_FailedExecutionKeepsHoldOrdered(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithDirectHoldFundsCheck(false))
	h.mint(t, "alice", 100)

	_, err := h.Hold(ctx, "alice", HoldInput{OperationID: "H1", To: "bob", Notary: NotaryOf("notary"), Amount: 500})
	require.NoError(t, err, "speculative holds skip the funds check")
	require.Equal(t, uint64(500), h.BalanceOnHold("alice"))
	require.Zero(t, h.AvailableFunds("alice"))

	before := h.Account("alice")
	_, err = h.ExecuteHold(ctx, "notary", "alice", "H1")
	require.ErrorIs(t, err, ErrInsufficientFunds)

	hold, err := h.RetrieveHold("alice", "H1")
	require.NoError(t, err)
	require.Equal(t, HoldOrdered, hold.Status)
	require.Equal(t, before, h.Account("alice"))
	require.Zero(t, h.BalanceOf("bob"))
	requireConsistent(t, h.Engine)
}

func TestHold_WorkflowHoldsAreNotDirectlySettable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.mint(t, "alice", 1000)

	_, err := h.OrderPayout(ctx, "alice", PayoutInput{OperationID: "P1", Wallet: "alice", Amount: 100})
	require.NoError(t, err)
	_, err = h.OrderClearableTransfer(ctx, "alice", ClearableTransferInput{OperationID: "C1", From: "alice", To: "bob", Amount: 100})
	require.NoError(t, err)

	for _, opID := range []string{"P1", "C1"} {
		_, err = h.ExecuteHold(ctx, operator, "alice", opID)
		require.ErrorIs(t, err, ErrUnauthorized)
		_, err = h.ReleaseHold(ctx, operator, "alice", opID)
		require.ErrorIs(t, err, ErrUnauthorized)
		_, err = h.RenewHold(ctx, "alice", "alice", opID, time.Hour)
		require.ErrorIs(t, err, ErrUnauthorized)
	}
	require.Equal(t, uint64(200), h.BalanceOnHold("alice"))
}

func TestHold_ComplianceGatesCreationAndExecution(t *testing.T) {
	ctx := context.Background()
	deny := denyList{}
	h := newHarness(t, WithCompliance(deny))
	h.mint(t, "alice", 1000)

	deny["sanctioned"] = true
	_, err := h.Hold(ctx, "alice", HoldInput{OperationID: "H1", To: "sanctioned", Amount: 100})
	require.ErrorIs(t, err, ErrComplianceRejected)
	var cerr *ComplianceError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, ComplianceDisallowed, cerr.Code)
	require.Equal(t, KindHold, cerr.Kind)

	_, err = h.Hold(ctx, "alice", HoldInput{OperationID: "H2", To: "bob", Amount: 100})
	require.NoError(t, err)
	deny["bob"] = true
	_, err = h.ExecuteHold(ctx, operator, "alice", "H2")
	require.ErrorIs(t, err, ErrComplianceRejected)

	released, err := h.ReleaseHold(ctx, operator, "alice", "H2")
	require.NoError(t, err, "release only unlocks and is never blocked by compliance")
	require.Equal(t, HoldReleasedByOperator, released.Status)
}
