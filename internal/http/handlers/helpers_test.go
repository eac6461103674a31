package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
	"github.com/tbourn/go-groupchat-backend/internal/http/middleware"
	"github.com/tbourn/go-groupchat-backend/internal/services"
)

// ---------- stubs ----------

type stubChats struct {
	members  map[string]bool // "chatID/userID"
	created  []string        // titles
	settings domain.ContextSettings
	updated  *domain.ContextSettings
	err      error
}

func (s *stubChats) Create(_ context.Context, ownerID, title string) (*domain.Chat, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, title)
	return &domain.Chat{ID: testChatID, OwnerID: ownerID, Title: title}, nil
}

func (s *stubChats) ListPage(_ context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	return []domain.Chat{{ID: testChatID, OwnerID: userID, Title: "Trip"}}, 41, nil
}

func (s *stubChats) IsMember(_ context.Context, chatID, userID string) (bool, error) {
	return s.members[chatID+"/"+userID], nil
}

func (s *stubChats) AddMember(_ context.Context, adminID, chatID, userID, role string) (*domain.ChatMember, error) {
	if s.err != nil {
		return nil, s.err
	}
	if role == "" {
		role = domain.RoleMember
	}
	return &domain.ChatMember{ChatID: chatID, UserID: userID, Role: role}, nil
}

func (s *stubChats) GetSettings(_ context.Context, userID, chatID string) (domain.ContextSettings, error) {
	if !s.members[chatID+"/"+userID] {
		return domain.ContextSettings{}, services.ErrChatNotFound
	}
	return s.settings, nil
}

func (s *stubChats) UpdateSettings(_ context.Context, adminID, chatID string, mode domain.ContextMode, useSummary bool) (domain.ContextSettings, error) {
	if s.err != nil {
		return domain.ContextSettings{}, s.err
	}
	if !mode.Valid() {
		return domain.ContextSettings{}, services.ErrInvalidSettings
	}
	out := domain.ContextSettings{ChatID: chatID, Mode: mode, UseSummary: useSummary}
	s.updated = &out
	return out, nil
}

type remembered struct{ user, chat, key, msg string }

type stubMessages struct {
	posted     []string
	remembered []remembered
	replayed   []string
	result     *services.PostResult
	err        error
}

func (s *stubMessages) Post(_ context.Context, userID, chatID, content string) (*services.PostResult, error) {
	s.posted = append(s.posted, content)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &services.PostResult{Message: &domain.Message{ID: "msg-1", ChatID: chatID, AuthorID: userID, Content: content}}, nil
}

func (s *stubMessages) ListPage(_ context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
	return []domain.Message{{ID: "msg-1", ChatID: chatID, Content: "hi"}}, 1, nil
}

func (s *stubMessages) Remember(_ context.Context, userID, chatID, key, messageID string) error {
	s.remembered = append(s.remembered, remembered{userID, chatID, key, messageID})
	return nil
}

func (s *stubMessages) Replay(_ context.Context, userID, chatID, messageID string) (*services.PostResult, error) {
	s.replayed = append(s.replayed, messageID)
	return &services.PostResult{
		Message: &domain.Message{ID: messageID, ChatID: chatID, AuthorID: userID},
		Reply:   &domain.Message{ID: "reply-1", ChatID: chatID, Kind: domain.KindAssistant},
	}, nil
}

type stubContext struct {
	preview *services.ContextPreview
	limit   int
}

func (s *stubContext) Preview(_ context.Context, chatID string, maxMessages int) (*services.ContextPreview, error) {
	s.limit = maxMessages
	return s.preview, nil
}

type stubSummaries struct {
	sum      *domain.Summary
	err      error
	history  []domain.Summary
	asked    int
	callerID string
}

func (s *stubSummaries) ForceSummarize(_ context.Context, chatID, userID string) (*domain.Summary, error) {
	s.callerID = userID
	return s.sum, s.err
}

func (s *stubSummaries) History(_ context.Context, chatID string, limit int) ([]domain.Summary, error) {
	s.asked = limit
	return s.history, nil
}

type stubBalances struct{ err error }

func (s stubBalances) Balance(_ context.Context, userID string) (*services.Balance, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.Balance{UserID: userID, Period: "2025-06", Quota: 1000, Used: 40, Remaining: 960}, nil
}

// ---------- harness ----------

const testChatID = "0b8f5a52-6a57-4c4e-9d3e-3f1d1c2b7a10"

type env struct {
	r       *gin.Engine
	chats   *stubChats
	msgs    *stubMessages
	ctx     *stubContext
	sums    *stubSummaries
	replays map[string]string // idempotency key -> message id
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	e := &env{
		chats: &stubChats{
			members:  map[string]bool{testChatID + "/alice": true},
			settings: domain.ContextSettings{ChatID: testChatID, Mode: domain.ModeAllMessages, UseSummary: true},
		},
		msgs:    &stubMessages{},
		ctx:     &stubContext{preview: &services.ContextPreview{Rendered: "alice: hi"}},
		sums:    &stubSummaries{},
		replays: map[string]string{},
	}
	h := New(Deps{
		Chats:     e.chats,
		Messages:  e.msgs,
		Context:   e.ctx,
		Summaries: e.sums,
		History:   e.sums,
		Balances:  stubBalances{},
		Stats: func(context.Context, string) (int64, *time.Time, error) {
			ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
			return 1, &ts, nil
		},
		MaxMessages:    25,
		MaxPromptRunes: 20,
	})

	r := gin.New()
	r.Use(
		middleware.Identity(),
		middleware.Idempotency(middleware.IdempotencyOptions{}, func(_ context.Context, _, _, key string, _ time.Time) (string, error) {
			return e.replays[key], nil
		}),
	)
	r.POST("/chats", h.CreateChat)
	r.GET("/chats", h.ListChats)
	r.POST("/chats/:id/members", h.AddMember)
	r.GET("/chats/:id/settings", h.GetSettings)
	r.PUT("/chats/:id/settings", h.UpdateSettings)
	r.GET("/chats/:id/messages", h.ListMessages)
	r.POST("/chats/:id/messages", h.PostMessage)
	r.GET("/chats/:id/context", h.GetContext)
	r.POST("/chats/:id/summaries", h.ForceSummary)
	r.GET("/chats/:id/summaries", h.ListSummaries)
	r.GET("/me/balance", h.GetBalance)
	e.r = r
	return e
}

func (e *env) do(t *testing.T, method, path, user, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.HeaderUserID, user)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status=%d want %d body=%s", w.Code, status, w.Body.String())
	}
	if code == "" {
		return
	}
	if er := decode[ErrorResponse](t, w); er.Code != code {
		t.Fatalf("code=%q want %q", er.Code, code)
	}
}
