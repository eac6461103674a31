// Package events delivers controller notifications (low token balance,
// failed background summarization) to whoever renders them in the chat.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Type names an event.
type Type string

const (
	LowBalance          Type = "low_balance"
	SummarizationFailed Type = "summarization_failed"
)

// Event is a notification. Data carries type-specific fields.
type Event struct {
	Type   Type           `json:"type"`
	UserID string         `json:"user_id,omitempty"`
	ChatID string         `json:"chat_id,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
	At     time.Time      `json:"at"`
}

// Notifier publishes events. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Log writes events to a zerolog logger.
type Log struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (l Log) Notify(_ context.Context, e Event) error {
	l.Logger.Info().
		Str("event", string(e.Type)).
		Str("user_id", e.UserID).
		Str("chat_id", e.ChatID).
		Fields(e.Data).
		Msg("event")
	return nil
}

// publisher is the part of a go-redis client used here.
type publisher interface {
	Publish(ctx context.Context, channel string, message any) *goredis.IntCmd
}

// Redis publishes JSON-encoded events on a pub/sub channel.
type Redis struct {
	Client  publisher
	Channel string
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr, channel string) (*Redis, *goredis.Client, error) {
	if channel == "" {
		channel = "groupchat.events"
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{Client: rdb, Channel: channel}, rdb, nil
}

// Notify implements Notifier.
func (r *Redis) Notify(ctx context.Context, e Event) error {
	if r == nil || r.Client == nil {
		return errors.New("redis notifier not initialized")
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.Client.Publish(ctx, r.Channel, raw).Err()
}

// Memory records events in process.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Notify implements Notifier.
func (m *Memory) Notify(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
