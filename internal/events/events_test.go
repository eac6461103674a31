package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) *goredis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return goredis.NewIntResult(1, f.err)
}

func TestRedis_PublishesJSON(t *testing.T) {
	fp := &fakePublisher{}
	r := &Redis{Client: fp, Channel: "events"}
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	err := r.Notify(context.Background(), Event{Type: LowBalance, UserID: "u1", Data: map[string]any{"remaining": 10}, At: at})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if fp.channel != "events" {
		t.Fatalf("channel = %q", fp.channel)
	}
	var got Event
	if err := json.Unmarshal(fp.payload, &got); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if got.Type != LowBalance || got.UserID != "u1" || !got.At.Equal(at) {
		t.Fatalf("unexpected payload: %+v", got)
	}

	fp.err = errors.New("down")
	if err := r.Notify(context.Background(), Event{Type: LowBalance}); err == nil {
		t.Fatalf("expected publish error to surface")
	}
	var nilRedis *Redis
	if err := nilRedis.Notify(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error from nil notifier")
	}
}

func TestLog_WritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	l := Log{Logger: zerolog.New(&buf)}
	_ = l.Notify(context.Background(), Event{Type: SummarizationFailed, ChatID: "c1", Data: map[string]any{"error": "x"}})
	out := buf.String()
	if !strings.Contains(out, `"event":"summarization_failed"`) || !strings.Contains(out, `"chat_id":"c1"`) {
		t.Fatalf("unexpected log line: %s", out)
	}
}

type failing struct{}

func (failing) Notify(context.Context, Event) error { return errors.New("nope") }

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	mem := &Memory{}
	err := Multi{mem, nil, failing{}}.Notify(context.Background(), Event{Type: LowBalance})
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if len(mem.Events()) != 1 {
		t.Fatalf("memory notifier should still receive the event")
	}
}
