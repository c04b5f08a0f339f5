package clearing

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/emoney-ledger/internal/apierr"
	"github.com/congo-pay/emoney-ledger/internal/ledger"
	"github.com/congo-pay/emoney-ledger/internal/logging"
	"github.com/congo-pay/emoney-ledger/internal/middleware"
)

type operators struct{}

func (operators) HasRole(_ context.Context, addr ledger.Address, role ledger.Role) bool {
	return addr == "ops" && role == ledger.RoleOperator
}

func newTestApp(t *testing.T) (*fiber.App, *ledger.Engine) {
	t.Helper()
	engine, err := ledger.NewEngine(context.Background(), nil, ledger.WithAuthorizer(operators{}))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	h := NewHandler(engine)
	app := fiber.New(fiber.Config{Immutable: true, ErrorHandler: apierr.Handler(logging.Discard())})
	app.Use(func(c *fiber.Ctx) error {
		middleware.SetPrincipal(c, ledger.Address(c.Get("X-Principal")))
		return c.Next()
	})
	app.Post("/clearable-transfers", h.Order)
	app.Get("/clearable-transfers/:orderer/:operationId", h.Get)
	app.Post("/clearable-transfers/:orderer/:operationId/cancel", h.Cancel)
	app.Post("/clearable-transfers/:orderer/:operationId/process", h.Process)
	app.Post("/clearable-transfers/:orderer/:operationId/execute", h.Execute)
	app.Post("/clearable-transfers/:orderer/:operationId/reject", h.Reject)

	ctx := context.Background()
	if _, err := engine.OrderFunding(ctx, "alice", ledger.FundingInput{OperationID: "seed", Wallet: "alice", Amount: 1_000}); err != nil {
		t.Fatalf("order funding: %v", err)
	}
	if _, err := engine.ExecuteFunding(ctx, "ops", "alice", "seed"); err != nil {
		t.Fatalf("execute funding: %v", err)
	}
	return app, engine
}

func call(t *testing.T, app *fiber.App, method, path, principal string, body any) (int, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Principal", principal)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out Response
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestClearableTransferLifecycleOverHTTP(t *testing.T) {
	app, engine := newTestApp(t)

	status, ct := call(t, app, http.MethodPost, "/clearable-transfers", "alice", OrderRequest{OperationID: "C1", To: "bob", Amount: 250})
	if status != http.StatusCreated || ct.From != "alice" || ct.Status != string(ledger.StatusOrdered) {
		t.Fatalf("unexpected order response %d %+v", status, ct)
	}
	if engine.BalanceOnHold("alice") != 250 {
		t.Fatalf("expected 250 held, got %d", engine.BalanceOnHold("alice"))
	}

	if status, _ := call(t, app, http.MethodPost, "/clearable-transfers/alice/C1/execute", "alice", nil); status != http.StatusForbidden {
		t.Fatalf("only operators clear, got %d", status)
	}
	if status, ct = call(t, app, http.MethodPost, "/clearable-transfers/alice/C1/process", "ops", nil); status != http.StatusOK || ct.Status != string(ledger.StatusInProcess) {
		t.Fatalf("unexpected process response %d %+v", status, ct)
	}
	if status, ct = call(t, app, http.MethodPost, "/clearable-transfers/alice/C1/execute", "ops", nil); status != http.StatusOK || ct.Status != string(ledger.StatusExecuted) {
		t.Fatalf("unexpected execute response %d %+v", status, ct)
	}
	if engine.BalanceOf("alice") != 750 || engine.BalanceOf("bob") != 250 || engine.BalanceOnHold("alice") != 0 {
		t.Fatalf("unexpected balances alice=%d bob=%d", engine.BalanceOf("alice"), engine.BalanceOf("bob"))
	}
	if status, ct = call(t, app, http.MethodGet, "/clearable-transfers/alice/C1", "bob", nil); status != http.StatusOK || ct.To != "bob" {
		t.Fatalf("unexpected get response %d %+v", status, ct)
	}
}

func TestClearableTransferRejectAndCancelOverHTTP(t *testing.T) {
	app, engine := newTestApp(t)

	call(t, app, http.MethodPost, "/clearable-transfers", "alice", OrderRequest{OperationID: "C2", To: "bob", Amount: 100})
	status, ct := call(t, app, http.MethodPost, "/clearable-transfers/alice/C2/reject", "ops", nil)
	if status != http.StatusOK || ct.Status != string(ledger.StatusRejected) {
		t.Fatalf("unexpected reject response %d %+v", status, ct)
	}

	call(t, app, http.MethodPost, "/clearable-transfers", "alice", OrderRequest{OperationID: "C3", To: "bob", Amount: 100})
	if status, ct = call(t, app, http.MethodPost, "/clearable-transfers/alice/C3/cancel", "alice", nil); status != http.StatusOK || ct.Status != string(ledger.StatusCancelled) {
		t.Fatalf("unexpected cancel response %d %+v", status, ct)
	}
	if engine.BalanceOnHold("alice") != 0 || engine.BalanceOf("bob") != 0 {
		t.Fatalf("expected no movement, onHold=%d bob=%d", engine.BalanceOnHold("alice"), engine.BalanceOf("bob"))
	}

	if status, _ := call(t, app, http.MethodPost, "/clearable-transfers", "bob", OrderRequest{OperationID: "C4", From: "alice", To: "bob", Amount: 1}); status != http.StatusForbidden {
		t.Fatalf("ordering from another wallet needs approval, got %d", status)
	}
}
