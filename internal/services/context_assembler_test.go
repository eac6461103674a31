package services

import (
	"context"
	"strings"
	"testing"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
)

func ids(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestAssembler_ModeNoneIsEmpty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, _ := h.seedChat(t, 30)
	if _, err := h.chats.UpdateSettings(ctx, "alice", c.ID, domain.ModeNone, true); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	res, err := h.asm.Assemble(ctx, c.ID, 50)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Messages) != 0 || res.Summary != nil || res.TokenEstimate != 0 || res.NeedsNewSummary {
		t.Fatalf("result = %+v", res)
	}
}

func TestAssembler_SummaryRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, _ := h.seedChat(t, 25)

	res, err := h.asm.Assemble(ctx, c.ID, 50)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Messages) != 25 || res.Summary != nil || !res.NeedsNewSummary {
		t.Fatalf("before summary: %d messages, summary %v, needs %v", len(res.Messages), res.Summary, res.NeedsNewSummary)
	}

	h.llm.Reply = "planning recap"
	if _, err := h.orch.ForceSummarize(ctx, c.ID, "alice"); err != nil {
		t.Fatalf("ForceSummarize: %v", err)
	}

	res, err = h.asm.Assemble(ctx, c.ID, 50)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if res.Summary == nil || res.Summary.WatermarkMessageID != "m15" {
		t.Fatalf("summary = %+v", res.Summary)
	}
	got := ids(res.Messages)
	if len(got) != 10 || got[0] != "m16" || got[9] != "m25" {
		t.Fatalf("messages = %v", got)
	}
	if res.NeedsNewSummary {
		t.Fatalf("10 unsummarized messages must not need a new summary")
	}

	want := h.asm.Estimator.Estimate(res.Summary.Text)
	for _, m := range res.Messages {
		want += h.asm.Estimator.Estimate(m.Content)
	}
	if res.TokenEstimate != want {
		t.Fatalf("TokenEstimate = %d, want %d", res.TokenEstimate, want)
	}
}

func TestAssembler_SmallWindowIgnoresSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, _ := h.seedChat(t, 25)
	if _, err := h.store.Append(ctx, AppendInput{ChatID: c.ID, Text: "s", CoveredCount: 15, WatermarkMessageID: "m15"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	res, err := h.asm.Assemble(ctx, c.ID, 12)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if res.Summary != nil || len(res.Messages) != 12 || res.Messages[0].ID != "m14" {
		t.Fatalf("result = %v, summary %v", ids(res.Messages), res.Summary)
	}
}

func TestAssembler_FullyCoveredFallsBackToTail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, _ := h.seedChat(t, 25)
	if _, err := h.store.Append(ctx, AppendInput{ChatID: c.ID, Text: "everything", CoveredCount: 25, WatermarkMessageID: "m25"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	res, err := h.asm.Assemble(ctx, c.ID, 50)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	got := ids(res.Messages)
	if res.Summary == nil || len(got) != 10 || got[0] != "m16" || got[9] != "m25" {
		t.Fatalf("messages = %v, summary %v", got, res.Summary)
	}
}

func TestAssembler_SummaryDisabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, _ := h.seedChat(t, 25)
	h.store.Append(ctx, AppendInput{ChatID: c.ID, Text: "s", CoveredCount: 15, WatermarkMessageID: "m15"})
	if _, err := h.chats.UpdateSettings(ctx, "alice", c.ID, domain.ModeAllMessages, false); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	res, err := h.asm.Assemble(ctx, c.ID, 50)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if res.Summary != nil || len(res.Messages) != 25 || res.NeedsNewSummary {
		t.Fatalf("result = %+v", res)
	}
}

func TestAssembler_Preview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c, _ := h.seedChat(t, 3)

	p, err := h.asm.Preview(ctx, c.ID, 50)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	for _, want := range []string{"Context mode: all_messages", "Messages (3):", "alice: message number 3", "Estimated tokens:"} {
		if !strings.Contains(p.Rendered, want) {
			t.Fatalf("rendered preview missing %q:\n%s", want, p.Rendered)
		}
	}
}
