package services

import (
	"context"
	"strings"
	"testing"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
)

func TestChatService_Create(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c, err := h.chats.Create(ctx, "alice", "   Trip \n\t planning  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Title != "Trip planning" || c.OwnerID != "alice" {
		t.Fatalf("chat = %+v", c)
	}
	if ok, _ := h.chats.IsMember(ctx, c.ID, "alice"); !ok {
		t.Fatalf("owner must be a member")
	}

	blank, _ := h.chats.Create(ctx, "alice", "")
	if blank.Title != defaultTitleNew {
		t.Fatalf("default title = %q", blank.Title)
	}

	h.chats.TitleMaxLen = 5
	long, _ := h.chats.Create(ctx, "alice", strings.Repeat("x", 20))
	if long.Title != "xxxxx" {
		t.Fatalf("clipped title = %q", long.Title)
	}
}

func TestChatService_Membership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, _ := h.chats.Create(ctx, "alice", "Team")

	if _, err := h.chats.Get(ctx, "bob", c.ID); err != ErrChatNotFound {
		t.Fatalf("non-member Get: %v", err)
	}
	if _, err := h.chats.AddMember(ctx, "bob", c.ID, "carol", ""); err != ErrChatNotFound {
		t.Fatalf("non-member AddMember: %v", err)
	}
	if _, err := h.chats.AddMember(ctx, "alice", c.ID, "bob", "owner"); err != ErrInvalidMember {
		t.Fatalf("bad role: %v", err)
	}
	m, err := h.chats.AddMember(ctx, "alice", c.ID, "bob", "")
	if err != nil || m.Role != domain.RoleMember {
		t.Fatalf("AddMember = %+v, %v", m, err)
	}
	if _, err := h.chats.AddMember(ctx, "bob", c.ID, "carol", ""); err != ErrForbidden {
		t.Fatalf("member adding members: %v", err)
	}
	if _, err := h.chats.Get(ctx, "bob", c.ID); err != nil {
		t.Fatalf("member Get: %v", err)
	}
}

func TestChatService_Settings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, _ := h.chats.Create(ctx, "alice", "Team")
	h.chats.AddMember(ctx, "alice", c.ID, "bob", domain.RoleMember)

	s, err := h.chats.GetSettings(ctx, "bob", c.ID)
	if err != nil || s.Mode != domain.ModeAllMessages || !s.UseSummary {
		t.Fatalf("defaults = %+v, %v", s, err)
	}
	if _, err := h.chats.UpdateSettings(ctx, "alice", c.ID, "sometimes", true); err != ErrInvalidSettings {
		t.Fatalf("invalid mode: %v", err)
	}
	if _, err := h.chats.UpdateSettings(ctx, "bob", c.ID, domain.ModeNone, true); err != ErrForbidden {
		t.Fatalf("member update: %v", err)
	}
	if _, err := h.chats.UpdateSettings(ctx, "alice", c.ID, domain.ModeCommandOnly, false); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	s, _ = h.chats.GetSettings(ctx, "bob", c.ID)
	if s.Mode != domain.ModeCommandOnly || s.UseSummary {
		t.Fatalf("settings = %+v", s)
	}
}

func TestChatService_ListPage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		h.chats.Create(ctx, "alice", "A")
	}
	shared, _ := h.chats.Create(ctx, "bob", "B")
	h.chats.AddMember(ctx, "bob", shared.ID, "alice", "")

	items, total, err := h.chats.ListPage(ctx, "alice", 1, 3)
	if err != nil || total != 4 || len(items) != 3 {
		t.Fatalf("ListPage = %d items, total %d, %v", len(items), total, err)
	}
	items, total, _ = h.chats.ListPage(ctx, "nobody", 0, 0)
	if total != 0 || len(items) != 0 {
		t.Fatalf("empty ListPage = %+v, %d", items, total)
	}
}

func TestChatService_AutoTitleKeepsCustomTitles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, _ := h.chats.Create(ctx, "alice", "Budget")

	if err := h.chats.AutoTitle(ctx, c.ID, "quarterly numbers review"); err != nil {
		t.Fatalf("AutoTitle: %v", err)
	}
	got, _ := h.chats.Get(ctx, "alice", c.ID)
	if got.Title != "Budget" {
		t.Fatalf("title = %q", got.Title)
	}
}
