package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inFlight             = "__in_flight__"
	replayHeader         = "Idempotent-Replayed"
	redisOpTimeout       = 2 * time.Second
)

// replay is the recorded outcome of a ledger mutation.
type replay struct {
	Route       string `json:"route"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type replayStore struct {
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func (s replayStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

// reserve claims key for this request. It returns the recorded replay when
// the key was already used, or (nil, true) when the claim succeeded.
func (s replayStore) reserve(key string) (*replay, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	claimed, err := s.cache.SetNX(ctx, key, inFlight, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if claimed {
		return nil, true, nil
	}

	raw, err := s.cache.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if string(raw) == inFlight {
		return nil, false, nil
	}
	var r replay
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false, err
	}
	return &r, false, nil
}

func (s replayStore) record(key string, r replay) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()
	return s.cache.Set(ctx, key, payload, s.ttl).Err()
}

func (s replayStore) forget(key string) {
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("idempotency key cleanup failed", slog.String("key", key), slog.Any("error", err))
	}
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Idempotency makes mutating requests safe to retry. The first response for a
// principal's Idempotency-Key is recorded and replayed for later requests with
// the same key. Reusing a key on another route or with another body is
// rejected. It must run after PrincipalAuth.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	store := replayStore{cache: cache, ttl: ttl, logger: logger}
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method == fiber.MethodGet || method == fiber.MethodHead || method == fiber.MethodOptions {
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		caller, _ := Principal(c)
		cacheKey := idempotencyPrefix + string(caller) + ":" + key
		route := method + " " + c.Path()
		digest := fingerprint(c.Body())

		prior, claimed, err := store.reserve(cacheKey)
		if err != nil {
			logger.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}
		if !claimed {
			if prior == nil {
				return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key is still in progress")
			}
			if prior.Route != route {
				return fiber.NewError(fiber.StatusUnprocessableEntity, "Idempotency-Key already used for "+prior.Route)
			}
			if prior.Fingerprint != digest {
				return fiber.NewError(fiber.StatusUnprocessableEntity, "Idempotency-Key already used with a different body")
			}
			if prior.ContentType != "" {
				c.Set(fiber.HeaderContentType, prior.ContentType)
			}
			c.Set(replayHeader, "true")
			return c.Status(prior.Status).Send(prior.Body)
		}

		if err := c.Next(); err != nil {
			// failed mutations leave nothing behind, so the client may retry
			store.forget(cacheKey)
			return err
		}

		r := replay{
			Route:       route,
			Fingerprint: digest,
			Status:      c.Response().StatusCode(),
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		if err := store.record(cacheKey, r); err != nil {
			logger.Error("idempotency record failed", slog.String("key", key), slog.Any("error", err))
			store.forget(cacheKey)
		}
		return nil
	}
}
