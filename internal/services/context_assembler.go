// Package services – Assembler
//
// Assembler builds the context handed to the assistant: the chat's settings
// pick the message window, and the latest rolling summary replaces the part
// of the window it already covers.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
	"github.com/tbourn/go-groupchat-backend/internal/observability"
	"github.com/tbourn/go-groupchat-backend/internal/repo"
	"github.com/tbourn/go-groupchat-backend/internal/tokens"
)

// AssemblyResult is the context for one assistant call.
type AssemblyResult struct {
	Mode            domain.ContextMode `json:"mode"`
	Messages        []domain.Message   `json:"messages"`
	Summary         *domain.Summary    `json:"summary,omitempty"`
	TokenEstimate   int                `json:"token_estimate"`
	NeedsNewSummary bool               `json:"needs_new_summary"`
}

// ContextPreview is an AssemblyResult with a readable rendering.
type ContextPreview struct {
	AssemblyResult
	Rendered string `json:"rendered"`
}

// Assembler combines Selector, SummaryStore and the summary policy.
type Assembler struct {
	DB        *gorm.DB
	Selector  *Selector
	Store     *SummaryStore
	Policy    SummaryPolicy
	Estimator tokens.Estimator
}

// Assemble returns the context of chatID for the next assistant call.
func (a *Assembler) Assemble(ctx context.Context, chatID string, maxMessages int) (*AssemblyResult, error) {
	ctx, span := otel.Tracer("services/Assembler").Start(ctx, "Assemble",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("context.max_messages", maxMessages),
		),
	)
	defer span.End()

	settings, err := repo.GetSettings(ctx, a.DB, chatID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res := &AssemblyResult{Mode: settings.Mode, Messages: []domain.Message{}}
	if settings.Mode == domain.ModeNone {
		return res, nil
	}

	window, err := a.Selector.Select(ctx, chatID, settings.Mode, maxMessages)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res.Messages = window

	if settings.UseSummary {
		latest, err := a.Store.Latest(ctx, chatID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if latest != nil && len(window) > a.Policy.MinCorpus {
			res.Summary = latest
			res.Messages = a.afterWatermark(window, latest)
		}

		var (
			at *time.Time
			id string
		)
		if latest != nil {
			at, id = &latest.WatermarkCreatedAt, latest.WatermarkMessageID
		}
		n, err := repo.CountMessagesAfter(ctx, a.DB, chatID, at, id)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		res.NeedsNewSummary = a.Policy.ShouldSummarize(n)
	}

	for _, m := range res.Messages {
		res.TokenEstimate += a.Estimator.Estimate(m.Content)
	}
	if res.Summary != nil {
		res.TokenEstimate += a.Estimator.Estimate(res.Summary.Text)
	}
	observability.ContextTokens(res.TokenEstimate)
	span.SetAttributes(
		attribute.Int("context.messages", len(res.Messages)),
		attribute.Int("context.tokens", res.TokenEstimate),
		attribute.Bool("context.summary", res.Summary != nil),
	)
	return res, nil
}

// afterWatermark drops the messages covered by sum. When nothing remains,
// the newest RetainTail window messages are kept so the assistant still
// sees the latest turns.
func (a *Assembler) afterWatermark(window []domain.Message, sum *domain.Summary) []domain.Message {
	out := make([]domain.Message, 0, len(window))
	for _, m := range window {
		if !sum.Covers(m) {
			out = append(out, m)
		}
	}
	if len(out) > 0 {
		return out
	}
	tail := min(max(a.Policy.RetainTail, 0), len(window))
	return append(out, window[len(window)-tail:]...)
}

// Preview assembles the context and renders it as text.
func (a *Assembler) Preview(ctx context.Context, chatID string, maxMessages int) (*ContextPreview, error) {
	res, err := a.Assemble(ctx, chatID, maxMessages)
	if err != nil {
		return nil, err
	}
	return &ContextPreview{AssemblyResult: *res, Rendered: Render(res)}, nil
}

// Render formats an assembly for display in the chat.
func Render(res *AssemblyResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Context mode: %s\n", res.Mode)
	if res.Mode == domain.ModeNone {
		b.WriteString("No prior messages are sent to the assistant.\n")
		return b.String()
	}
	if res.Summary != nil {
		fmt.Fprintf(&b, "Summary v%d (%d messages):\n%s\n", res.Summary.Version, res.Summary.CoveredMessageCount, res.Summary.Text)
	}
	fmt.Fprintf(&b, "Messages (%d):\n", len(res.Messages))
	for _, m := range res.Messages {
		who := m.AuthorID
		if m.Kind != domain.KindUser {
			who = string(m.Kind)
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.CreatedAt.Format(time.RFC3339), who, m.Content)
	}
	fmt.Fprintf(&b, "Estimated tokens: %d", res.TokenEstimate)
	if res.NeedsNewSummary {
		b.WriteString(" (summary pending)")
	}
	b.WriteString("\n")
	return b.String()
}
