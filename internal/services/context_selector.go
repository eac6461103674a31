package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
	"github.com/tbourn/go-groupchat-backend/internal/repo"
)

// DefaultContextMessages bounds the window when no limit is given.
const DefaultContextMessages = 50

// Selector picks the chronological message window sent to the assistant.
type Selector struct {
	DB           *gorm.DB
	DefaultLimit int
}

// Select returns at most limit messages of chatID qualifying under mode,
// oldest first. Mode none selects nothing.
func (s *Selector) Select(ctx context.Context, chatID string, mode domain.ContextMode, limit int) ([]domain.Message, error) {
	ctx, span := otel.Tracer("services/Selector").Start(ctx, "Select",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("context.mode", string(mode)),
			attribute.Int("context.limit", limit),
		),
	)
	defer span.End()

	if limit <= 0 {
		limit = s.DefaultLimit
	}
	if limit <= 0 {
		limit = DefaultContextMessages
	}

	switch mode {
	case domain.ModeNone:
		return []domain.Message{}, nil
	case domain.ModeCommandOnly, domain.ModeAllMessages:
	default:
		return nil, ErrInvalidSettings
	}

	msgs, err := repo.ListRecentMessages(ctx, s.DB, chatID, mode == domain.ModeCommandOnly, limit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("context.selected", len(msgs)))
	return msgs, nil
}
