package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/emoney-ledger/internal/config"
	"github.com/congo-pay/emoney-ledger/internal/logging"
)

var keys = map[string]string{
	"ops":   "operator-key",
	"alice": "alice-key-1",
	"bob":   "bob-key-123",
}

type client struct {
	t   *testing.T
	app *fiber.App
}

func (c client) do(method, path, principal string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if principal != "" {
		req.Header.Set("X-Principal", principal)
		req.Header.Set("X-Api-Key", keys[principal])
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	resp, err := c.app.Test(req, 10_000)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func setupApp(t *testing.T, mode string) (client, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})

	cfg := config.Config{
		AppName:              "test",
		AppEnv:               "test",
		IdempotencyTTL:       time.Minute,
		ComplianceMode:       mode,
		ComplianceWhitelist:  []string{"alice", "bob", "ops"},
		Principals:           "ops:operator-key:operator,alice:alice-key-1,bob:bob-key-123",
		DirectHoldFundsCheck: true,
		EventsChannel:        "test:events",
		AuthMaxFailures:      5,
	}
	logger := logging.Discard()
	app := fiber.New(AppConfig("test", logger))
	if _, err := Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logger}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	return client{t: t, app: app}, mr, cache
}

func TestSetupRequiresBackendsOutsideDevelopment(t *testing.T) {
	app := fiber.New(AppConfig("test", logging.Discard()))
	if _, err := Setup(app, Deps{Cfg: config.Config{AppEnv: "production"}, Logger: logging.Discard()}); err == nil {
		t.Fatal("expected error without database in production")
	}
}

func TestSetupRejectsMutableApp(t *testing.T) {
	app := fiber.New()
	_, err := Setup(app, Deps{Cfg: config.Config{AppEnv: "test"}, Logger: logging.Discard()})
	if err == nil || !strings.Contains(err.Error(), "Immutable") {
		t.Fatalf("expected immutable requirement, got %v", err)
	}
}

func TestEndToEndHoldSettlement(t *testing.T) {
	c, _, cache := setupApp(t, config.ComplianceAllowAll)

	sub := cache.Subscribe(context.Background(), "test:events")
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if status, _ := c.do(http.MethodGet, "/api/v1/accounts/alice", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", status)
	}

	if status, body := c.do(http.MethodPost, "/api/v1/fundings", "alice", fiber.Map{"operation_id": "F1", "amount": 1000}); status != http.StatusCreated {
		t.Fatalf("order funding: %d %v", status, body)
	}
	if status, body := c.do(http.MethodPost, "/api/v1/fundings/alice/F1/execute", "ops", nil); status != http.StatusOK {
		t.Fatalf("execute funding: %d %v", status, body)
	}

	if status, body := c.do(http.MethodPost, "/api/v1/holds", "alice", fiber.Map{
		"operation_id": "H1", "to": "bob", "notary": "ops", "amount": 400,
	}); status != http.StatusCreated {
		t.Fatalf("hold: %d %v", status, body)
	}
	_, acct := c.do(http.MethodGet, "/api/v1/accounts/alice", "alice", nil)
	if acct["balance_on_hold"].(float64) != 400 || acct["available_funds"].(float64) != 600 {
		t.Fatalf("unexpected alice account %v", acct)
	}

	if status, body := c.do(http.MethodPost, "/api/v1/holds/alice/H1/execute", "ops", nil); status != http.StatusOK || body["status"] != "executed_by_notary" {
		t.Fatalf("execute hold: %d %v", status, body)
	}
	_, acct = c.do(http.MethodGet, "/api/v1/accounts/bob", "bob", nil)
	if acct["balance"].(float64) != 400 {
		t.Fatalf("expected bob to hold 400, got %v", acct)
	}
	_, totals := c.do(http.MethodGet, "/api/v1/totals", "bob", nil)
	if totals["total_supply"].(float64) != 1000 || totals["total_supply_on_hold"].(float64) != 0 {
		t.Fatalf("unexpected totals %v", totals)
	}

	select {
	case msg := <-sub.Channel():
		if !strings.Contains(msg.Payload, `"funding.ordered"`) {
			t.Fatalf("expected first event to be funding.ordered, got %s", msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ledger event")
	}

	resp, err := c.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	payload, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(payload), "ledger_total_supply 1000") {
		t.Fatalf("expected supply gauge in metrics output:\n%s", payload)
	}

	resp, err = c.app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected healthy service, got %d", resp.StatusCode)
	}
}

func TestEndToEndIdempotentReplay(t *testing.T) {
	c, _, _ := setupApp(t, config.ComplianceAllowAll)

	send := func() (int, string) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/fundings", strings.NewReader(`{"operation_id":"F9","amount":5}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set("X-Principal", "alice")
		req.Header.Set("X-Api-Key", keys["alice"])
		req.Header.Set("Idempotency-Key", "fixed-key")
		resp, err := c.app.Test(req, 10_000)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	status, first := send()
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, first)
	}
	status, second := send()
	if status != http.StatusCreated || second != first {
		t.Fatalf("expected replayed response, got %d: %s", status, second)
	}
}

func TestEndToEndComplianceWhitelist(t *testing.T) {
	c, mr, _ := setupApp(t, config.ComplianceWhitelist)

	if !mr.Exists("compliance:whitelist") {
		t.Fatal("expected whitelist to be seeded into redis")
	}
	if status, body := c.do(http.MethodPost, "/api/v1/fundings", "alice", fiber.Map{"operation_id": "F1", "amount": 100}); status != http.StatusCreated {
		t.Fatalf("order funding: %d %v", status, body)
	}
	c.do(http.MethodPost, "/api/v1/fundings/alice/F1/execute", "ops", nil)

	if status, body := c.do(http.MethodPost, "/api/v1/transfers", "alice", fiber.Map{"to": "mallory", "amount": 10}); status != http.StatusForbidden {
		t.Fatalf("expected compliance rejection, got %d %v", status, body)
	}
	if status, body := c.do(http.MethodPost, "/api/v1/transfers", "alice", fiber.Map{"to": "bob", "amount": 10}); status != http.StatusCreated {
		t.Fatalf("expected whitelisted transfer to pass, got %d %v", status, body)
	}
}
