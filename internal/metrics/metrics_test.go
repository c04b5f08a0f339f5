package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
	"github.com/congo-pay/emoney-ledger/internal/logging"
)

type operators struct{}

func (operators) HasRole(_ context.Context, addr ledger.Address, role ledger.Role) bool {
	return addr == "ops" && role == ledger.RoleOperator
}

func TestMetricsTrackEngine(t *testing.T) {
	ctx := context.Background()
	m := New(logging.Discard())
	engine, err := ledger.NewEngine(ctx, nil, ledger.WithAuthorizer(operators{}), ledger.WithEventSink(m))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	if err := m.Track(engine); err != nil {
		t.Fatalf("track: %v", err)
	}

	if _, err := engine.OrderFunding(ctx, "alice", ledger.FundingInput{OperationID: "F1", Wallet: "alice", Amount: 300}); err != nil {
		t.Fatalf("order: %v", err)
	}
	if _, err := engine.ExecuteFunding(ctx, "ops", "alice", "F1"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := engine.Hold(ctx, "alice", ledger.HoldInput{OperationID: "H1", To: "bob", Notary: ledger.NotaryOf("ops"), Amount: 120}); err != nil {
		t.Fatalf("hold: %v", err)
	}

	if got := testutil.ToFloat64(m.events.WithLabelValues("funding.ordered")); got != 1 {
		t.Fatalf("expected 1 funding.ordered event, got %v", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("hold.created")); got != 1 {
		t.Fatalf("expected 1 hold.created event, got %v", got)
	}

	expected := `
# HELP ledger_total_supply Sum of all positive balances.
# TYPE ledger_total_supply gauge
ledger_total_supply 300
# HELP ledger_total_supply_on_hold Sum of amounts locked by ordered holds.
# TYPE ledger_total_supply_on_hold gauge
ledger_total_supply_on_hold 120
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "ledger_total_supply", "ledger_total_supply_on_hold"); err != nil {
		t.Fatalf("unexpected gauges: %v", err)
	}

	if err := m.Track(engine); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestMetricsHandler(t *testing.T) {
	m := New(nil)
	_ = m.Publish(context.Background(), ledger.Event{Name: "payout.executed"})

	app := fiber.New()
	app.Get("/metrics", m.Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `ledger_events_total{name="payout.executed"} 1`) {
		t.Fatalf("missing event counter in output:\n%s", body)
	}
}

func TestMetricsExposeRuntimeCollectors(t *testing.T) {
	m := New(logging.Discard())
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "go_goroutines" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected go runtime metrics to be registered")
	}
}
