package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
	"github.com/congo-pay/emoney-ledger/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *int, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		SetPrincipal(c, ledger.Address(c.Get(principalHeader)))
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))

	calls := 0
	handler := func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": calls})
	}
	app.Post("/holds", handler)
	app.Post("/transfers", handler)
	app.Post("/fail", func(c *fiber.Ctx) error {
		calls++
		return fiber.NewError(fiber.StatusUnprocessableEntity, "insufficient funds")
	})

	return app, &calls, mr
}

type response struct {
	status   int
	body     string
	replayed bool
}

func post(t *testing.T, app *fiber.App, path, principal, key, body string) response {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(principalHeader, principal)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return response{status: resp.StatusCode, body: string(raw), replayed: resp.Header.Get(replayHeader) == "true"}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, _, _ := setupTestApp(t)

	if r := post(t, app, "/holds", "alice", "", "{}"); r.status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, r.status)
	}
}

func TestIdempotencyReplaysRecordedResponse(t *testing.T) {
	app, calls, _ := setupTestApp(t)

	first := post(t, app, "/holds", "alice", "abc123", `{"amount":1}`)
	if first.status != fiber.StatusCreated || first.replayed {
		t.Fatalf("unexpected first response %+v", first)
	}

	second := post(t, app, "/holds", "alice", "abc123", `{"amount":1}`)
	if second.status != fiber.StatusCreated || second.body != first.body || !second.replayed {
		t.Fatalf("expected replay of %+v, got %+v", first, second)
	}
	if *calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", *calls)
	}
}

func TestIdempotencyKeysArePerPrincipal(t *testing.T) {
	app, calls, _ := setupTestApp(t)

	post(t, app, "/holds", "alice", "k1", "{}")
	if r := post(t, app, "/holds", "bob", "k1", "{}"); r.status != fiber.StatusCreated || r.replayed {
		t.Fatalf("expected bob's request to run, got %+v", r)
	}
	if *calls != 2 {
		t.Fatalf("expected two handler calls, got %d", *calls)
	}
}

func TestIdempotencyRejectsKeyReuse(t *testing.T) {
	app, _, _ := setupTestApp(t)

	post(t, app, "/holds", "alice", "k2", `{"amount":1}`)
	if r := post(t, app, "/transfers", "alice", "k2", `{"amount":1}`); r.status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on another route, got %d", r.status)
	}
	if r := post(t, app, "/holds", "alice", "k2", `{"amount":2}`); r.status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422 with another body, got %d", r.status)
	}
}

func TestIdempotencyInFlightAndFailedRequests(t *testing.T) {
	app, calls, mr := setupTestApp(t)

	if err := mr.Set(idempotencyPrefix+"alice:busy", inFlight); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if r := post(t, app, "/holds", "alice", "busy", "{}"); r.status != fiber.StatusConflict {
		t.Fatalf("expected 409 while in flight, got %d", r.status)
	}

	post(t, app, "/fail", "alice", "retry", "{}")
	if mr.Exists(idempotencyPrefix + "alice:retry") {
		t.Fatal("failed request must release its key")
	}
	post(t, app, "/fail", "alice", "retry", "{}")
	if *calls != 2 {
		t.Fatalf("expected the failed request to run again, ran %d times", *calls)
	}
}
