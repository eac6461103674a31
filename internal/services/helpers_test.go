package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
	"github.com/tbourn/go-groupchat-backend/internal/events"
	"github.com/tbourn/go-groupchat-backend/internal/llm"
	"github.com/tbourn/go-groupchat-backend/internal/repo"
	"github.com/tbourn/go-groupchat-backend/internal/tokens"
)

// ---------- test helpers ----------

// newSvcDB opens a migrated file-backed database private to the test on a
// single connection.
func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := newPooledSvcDB(t)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	return db
}

// newPooledSvcDB keeps the production pool from repo.OpenSQLite, so
// concurrent callers really contend for the database.
func newPooledSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "svc.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// failWrites fails as many updates of table as the returned counter holds.
func failWrites(t *testing.T, db *gorm.DB, table string) *atomic.Int32 {
	t.Helper()
	var remaining atomic.Int32
	name := "test:fail_" + table
	err := db.Callback().Update().Before("gorm:update").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		if remaining.Load() > 0 && remaining.Add(-1) >= 0 {
			_ = tx.AddError(errors.New("injected write failure on " + table))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	return &remaining
}

// fakeLLM is a scripted llm.Provider.
type fakeLLM struct {
	mu       sync.Mutex
	Reply    string
	In, Out  int
	Reported bool
	Err      error
	calls    []fakeCall
}

type fakeCall struct {
	System string
	Msgs   []llm.Message
}

func (f *fakeLLM) Send(_ context.Context, system string, msgs []llm.Message) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{System: system, Msgs: append([]llm.Message(nil), msgs...)})
	if f.Err != nil {
		return nil, f.Err
	}
	return &llm.Response{Text: f.Reply, InputTokens: f.In, OutputTokens: f.Out, UsageReported: f.Reported}, nil
}

func (f *fakeLLM) Calls() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.calls...)
}

type countingDispatcher struct{ n atomic.Int32 }

func (d *countingDispatcher) Wake() { d.n.Add(1) }

type harness struct {
	db     *gorm.DB
	llm    *fakeLLM
	events *events.Memory
	wake   *countingDispatcher

	ledger *Ledger
	store  *SummaryStore
	orch   *Orchestrator
	asm    *Assembler
	chats  *ChatService
	msgs   *MessageService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOn(t, newSvcDB(t))
}

func newHarnessOn(t *testing.T, db *gorm.DB) *harness {
	t.Helper()
	h := &harness{
		db:     db,
		llm:    &fakeLLM{Reply: "ok", In: 100, Out: 20, Reported: true},
		events: &events.Memory{},
		wake:   &countingDispatcher{},
	}
	log := zerolog.Nop()
	est := tokens.Estimator{CharsPerToken: 4}
	policy := DefaultSummaryPolicy()

	h.ledger = NewLedger(db, h.events, log, 100000, 1000, 5*time.Minute)
	h.ledger.SettleBackoff = time.Millisecond
	h.store = &SummaryStore{DB: db}
	h.orch = &Orchestrator{
		DB:           db,
		Store:        h.store,
		Ledger:       h.ledger,
		LLM:          h.llm,
		Notifier:     h.events,
		Estimator:    est,
		Policy:       policy,
		Dispatcher:   h.wake,
		Log:          log,
		SystemUserID: "system",
		Timeout:      time.Second,
	}
	h.asm = &Assembler{
		DB:        db,
		Selector:  &Selector{DB: db, DefaultLimit: DefaultContextMessages},
		Store:     h.store,
		Policy:    policy,
		Estimator: est,
	}
	h.chats = NewChatService(db)
	h.msgs = &MessageService{
		DB:              db,
		Chats:           h.chats,
		Assembler:       h.asm,
		Ledger:          h.ledger,
		Orchestrator:    h.orch,
		LLM:             h.llm,
		Estimator:       est,
		Log:             log,
		AssistantUserID: "assistant",
		SystemUserID:    "system",
		Timeout:         time.Second,
	}
	return h
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// seedChat creates a chat owned by alice holding n user messages one second
// apart; message i has ID fmt.Sprintf("m%02d", i+1).
func (h *harness) seedChat(t *testing.T, n int) (*domain.Chat, []domain.Message) {
	t.Helper()
	return h.seedChatWithPrefix(t, "m", n)
}

// seedChatWithPrefix is seedChat with a different message ID prefix, for
// tests that need more than one chat.
func (h *harness) seedChatWithPrefix(t *testing.T, prefix string, n int) (*domain.Chat, []domain.Message) {
	t.Helper()
	c, err := h.chats.Create(context.Background(), "alice", "Team")
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	return c, h.addMessages(t, c.ID, prefix, 0, n)
}

// addMessages appends n user messages numbered from+1..from+n.
func (h *harness) addMessages(t *testing.T, chatID, prefix string, from, n int) []domain.Message {
	t.Helper()
	out := make([]domain.Message, 0, n)
	for i := from; i < from+n; i++ {
		m := domain.Message{
			ID:        fmt.Sprintf("%s%02d", prefix, i+1),
			ChatID:    chatID,
			AuthorID:  "alice",
			Kind:      domain.KindUser,
			Content:   fmt.Sprintf("message number %d", i+1),
			CreatedAt: t0.Add(time.Duration(i) * time.Second),
		}
		if err := repo.CreateMessage(context.Background(), h.db, &m); err != nil {
			t.Fatalf("seed message: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func (h *harness) state(t *testing.T, chatID string) *domain.ChatContextState {
	t.Helper()
	st, err := repo.GetContextState(context.Background(), h.db, chatID)
	if err != nil {
		t.Fatalf("context state: %v", err)
	}
	return st
}
