package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
)

// DefaultChannel is the Redis pub/sub channel ledger events are published on.
const DefaultChannel = "ledger:events"

// Message is the JSON payload published for each committed ledger event.
type Message struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Issuer      string            `json:"issuer"`
	OperationID string            `json:"operation_id"`
	Status      string            `json:"status"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	At          time.Time         `json:"at"`
}

// NewMessage converts a ledger event into its wire form.
func NewMessage(ev ledger.Event) Message {
	return Message{
		ID:          ev.ID.String(),
		Name:        ev.Name,
		Issuer:      string(ev.Issuer),
		OperationID: ev.OperationID,
		Status:      ev.Status,
		Attributes:  ev.Attributes,
		At:          ev.At.UTC(),
	}
}

// LoggerNotifier writes committed events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging event sink.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Publish implements ledger.EventSink.
func (n *LoggerNotifier) Publish(ctx context.Context, ev ledger.Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "ledger event",
		slog.String("event", ev.Name),
		slog.String("issuer", string(ev.Issuer)),
		slog.String("operation_id", ev.OperationID),
		slog.String("status", ev.Status),
	)
	return nil
}

// RedisPublisher publishes events as JSON on a Redis channel.
type RedisPublisher struct {
	cache   *redis.Client
	channel string
}

// NewRedisPublisher builds a publisher. An empty channel selects DefaultChannel.
func NewRedisPublisher(cache *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{cache: cache, channel: channel}
}

// Publish implements ledger.EventSink.
func (p *RedisPublisher) Publish(ctx context.Context, ev ledger.Event) error {
	payload, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return err
	}
	if err := p.cache.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Name, err)
	}
	return nil
}

// Fanout delivers each event to every sink and joins their errors.
type Fanout []ledger.EventSink

// Publish implements ledger.EventSink.
func (f Fanout) Publish(ctx context.Context, ev ledger.Event) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
