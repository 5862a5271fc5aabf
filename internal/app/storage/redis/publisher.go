// Package redis fans committed exchange events out over Redis pub/sub and
// keeps a bounded history list next to the channel.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/system"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

// Publisher implements events.Recorder on a Redis client.
type Publisher struct {
	client     *redis.Client
	ownsClient bool
	channel    string
	history    int64
	log        *logger.Logger
}

var (
	_ events.Recorder = (*Publisher)(nil)
	_ system.Service  = (*Publisher)(nil)
)

// NewPublisher publishes on channel and keeps the newest history events;
// history <= 0 disables the list.
func NewPublisher(client *redis.Client, channel string, history int64, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewDefault("redis-publisher")
	}
	return &Publisher{client: client, channel: channel, history: history, log: log}
}

// Dial creates a client for addr owned by the publisher.
func Dial(addr, channel string, history int64, log *logger.Logger) *Publisher {
	p := NewPublisher(redis.NewClient(&redis.Options{Addr: addr}), channel, history, log)
	p.ownsClient = true
	return p
}

func (p *Publisher) Name() string { return "redis-publisher" }

// Start checks connectivity.
func (p *Publisher) Start(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	p.log.WithField("channel", p.channel).Info("event publisher connected")
	return nil
}

func (p *Publisher) Stop(ctx context.Context) error {
	if !p.ownsClient {
		return nil
	}
	return p.client.Close()
}

// HistoryKey is the list holding recent events.
func (p *Publisher) HistoryKey() string {
	return p.channel + ":history"
}

// Record publishes ev and appends it to the history list in one
// transaction.
func (p *Publisher) Record(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, p.channel, payload)
	if p.history > 0 {
		pipe.RPush(ctx, p.HistoryKey(), payload)
		pipe.LTrim(ctx, p.HistoryKey(), -p.history, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event %s: %w", ev.ID, err)
	}
	return nil
}

// Recent returns up to n events from the history list, oldest first.
func (p *Publisher) Recent(ctx context.Context, n int64) ([]events.Event, error) {
	if n <= 0 {
		return []events.Event{}, nil
	}
	raw, err := p.client.LRange(ctx, p.HistoryKey(), -n, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read event history: %w", err)
	}
	out := make([]events.Event, 0, len(raw))
	for _, item := range raw {
		var ev events.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("decode event history: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}
