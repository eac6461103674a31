// Package services – SummaryStore
//
// SummaryStore persists the rolling summaries of a chat as an append-only,
// versioned sequence. Versions come from the per-chat counter in
// chat_context_state, incremented inside the insert transaction; the unique
// (chat_id, version) index backs it up.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
	"github.com/tbourn/go-groupchat-backend/internal/repo"
)

// AppendInput is a new summary to record.
type AppendInput struct {
	ChatID             string
	Text               string
	CoveredCount       int
	WatermarkMessageID string
	TokensSpent        int
}

// SummaryStore reads and appends chat summaries.
type SummaryStore struct {
	DB *gorm.DB
}

// Latest returns the authoritative summary of chatID, or nil when the chat
// has none.
func (s *SummaryStore) Latest(ctx context.Context, chatID string) (*domain.Summary, error) {
	ctx, span := otel.Tracer("services/SummaryStore").Start(ctx, "Latest",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	sum, err := repo.LatestSummary(ctx, s.DB, chatID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return sum, nil
}

// Append stores in as the next version of the chat's summary. The watermark
// must name a message of the chat and must not move behind the current
// latest watermark.
func (s *SummaryStore) Append(ctx context.Context, in AppendInput) (*domain.Summary, error) {
	ctx, span := otel.Tracer("services/SummaryStore").Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("chat.id", in.ChatID),
			attribute.String("summary.watermark", in.WatermarkMessageID),
		),
	)
	defer span.End()

	var out *domain.Summary
	err := repo.Transaction(ctx, s.DB, func(tx *gorm.DB) error {
		if err := repo.EnsureContextState(ctx, tx, in.ChatID); err != nil {
			return err
		}
		version, err := repo.NextSummaryVersion(ctx, tx, in.ChatID)
		if err != nil {
			return err
		}

		wm, err := repo.GetMessage(ctx, tx, in.ChatID, in.WatermarkMessageID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: watermark %s is not a message of chat %s", ErrInvariantViolation, in.WatermarkMessageID, in.ChatID)
		}
		if err != nil {
			return err
		}

		prev, err := repo.LatestSummary(ctx, tx, in.ChatID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
		case err != nil:
			return err
		case wm.ID != prev.WatermarkMessageID && !wm.After(prev.WatermarkCreatedAt, prev.WatermarkMessageID):
			return fmt.Errorf("%w: watermark %s rewinds past %s", ErrInvariantViolation, wm.ID, prev.WatermarkMessageID)
		case in.CoveredCount < prev.CoveredMessageCount:
			return fmt.Errorf("%w: covered count %d below %d", ErrInvariantViolation, in.CoveredCount, prev.CoveredMessageCount)
		}

		sum := &domain.Summary{
			ID:                  uuid.NewString(),
			ChatID:              in.ChatID,
			Version:             version,
			Text:                in.Text,
			CoveredMessageCount: in.CoveredCount,
			WatermarkMessageID:  wm.ID,
			WatermarkCreatedAt:  wm.CreatedAt,
			TokensSpent:         in.TokensSpent,
			CreatedAt:           time.Now().UTC(),
		}
		if err := repo.InsertSummary(ctx, tx, sum); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return fmt.Errorf("%w: version %d of chat %s already exists", ErrInvariantViolation, version, in.ChatID)
			}
			return err
		}
		out = sum
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("summary.version", out.Version))
	return out, nil
}

// Prune keeps the keep highest versions of the chat's summaries. The
// latest version always survives.
func (s *SummaryStore) Prune(ctx context.Context, chatID string, keep int) (int64, error) {
	ctx, span := otel.Tracer("services/SummaryStore").Start(ctx, "Prune",
		trace.WithAttributes(attribute.String("chat.id", chatID), attribute.Int("summary.keep", keep)),
	)
	defer span.End()
	return repo.PruneSummaries(ctx, s.DB, chatID, keep)
}

// History lists summaries newest first.
func (s *SummaryStore) History(ctx context.Context, chatID string, limit int) ([]domain.Summary, error) {
	ctx, span := otel.Tracer("services/SummaryStore").Start(ctx, "History",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()
	return repo.ListSummaries(ctx, s.DB, chatID, limit)
}
