package compliance

import (
	"context"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
)

const (
	// CodeNotWhitelisted is returned when a party is missing from the whitelist.
	CodeNotWhitelisted = ledger.ComplianceDisallowed
	// CodeCheckUnavailable is returned when the whitelist could not be consulted.
	CodeCheckUnavailable ledger.ComplianceCode = 0x20

	defaultWhitelistKey = "compliance:whitelist"
)

// AllowAll lets every operation through.
type AllowAll struct{}

func (AllowAll) Check(context.Context, ledger.ComplianceRequest) ledger.ComplianceCode {
	return ledger.ComplianceSuccess
}

// Whitelist passes an operation only when every party is whitelisted.
type Whitelist struct {
	mu      sync.RWMutex
	members map[ledger.Address]struct{}
}

// NewWhitelist builds an in-memory whitelist seeded with addrs.
func NewWhitelist(addrs ...ledger.Address) *Whitelist {
	w := &Whitelist{members: make(map[ledger.Address]struct{}, len(addrs))}
	for _, a := range addrs {
		w.members[a] = struct{}{}
	}
	return w
}

func (w *Whitelist) Add(addr ledger.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.members[addr] = struct{}{}
}

func (w *Whitelist) Remove(addr ledger.Address) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.members, addr)
}

func (w *Whitelist) Check(_ context.Context, req ledger.ComplianceRequest) ledger.ComplianceCode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, p := range req.Parties {
		if _, ok := w.members[p]; !ok {
			return CodeNotWhitelisted
		}
	}
	return ledger.ComplianceSuccess
}

// RedisWhitelist keeps whitelisted addresses in a Redis set so that several
// ledger instances share one list.
type RedisWhitelist struct {
	cache  *redis.Client
	key    string
	logger *slog.Logger
}

// NewRedisWhitelist uses the set stored at key, or a default key when empty.
func NewRedisWhitelist(cache *redis.Client, key string, logger *slog.Logger) *RedisWhitelist {
	if key == "" {
		key = defaultWhitelistKey
	}
	return &RedisWhitelist{cache: cache, key: key, logger: logger}
}

func (w *RedisWhitelist) Add(ctx context.Context, addrs ...ledger.Address) error {
	if len(addrs) == 0 {
		return nil
	}
	members := make([]any, 0, len(addrs))
	for _, a := range addrs {
		members = append(members, string(a))
	}
	return w.cache.SAdd(ctx, w.key, members...).Err()
}

func (w *RedisWhitelist) Remove(ctx context.Context, addr ledger.Address) error {
	return w.cache.SRem(ctx, w.key, string(addr)).Err()
}

// Check fails closed: a Redis error rejects the operation.
func (w *RedisWhitelist) Check(ctx context.Context, req ledger.ComplianceRequest) ledger.ComplianceCode {
	if len(req.Parties) == 0 {
		return ledger.ComplianceSuccess
	}
	members := make([]any, 0, len(req.Parties))
	for _, p := range req.Parties {
		members = append(members, string(p))
	}
	found, err := w.cache.SMIsMember(ctx, w.key, members...).Result()
	if err != nil {
		if w.logger != nil {
			w.logger.Error("compliance whitelist lookup failed", slog.String("kind", string(req.Kind)), slog.Any("error", err))
		}
		return CodeCheckUnavailable
	}
	for _, ok := range found {
		if !ok {
			return CodeNotWhitelisted
		}
	}
	return ledger.ComplianceSuccess
}
