// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains repository functions for messages.
//
// Messages are append-only and totally ordered per chat by
// (created_at, id); every listing here honours that order.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
)

const (
	orderAsc  = "created_at ASC, id ASC"
	orderDesc = "created_at DESC, id DESC"
	afterCond = "(created_at > ? OR (created_at = ? AND id > ?))"
)

// CreateMessage inserts m, assigning an ID and UTC timestamp when missing.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(m).Error
}

// GetMessage returns a message of chatID by id, or ErrNotFound.
func GetMessage(ctx context.Context, db *gorm.DB, chatID, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("chat_id = ? AND id = ?", chatID, id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListRecentMessages returns up to limit of the newest messages of a chat in
// chronological order. With commandOnly set, only assistant replies and
// user commands qualify.
func ListRecentMessages(ctx context.Context, db *gorm.DB, chatID string, commandOnly bool, limit int) ([]domain.Message, error) {
	q := db.WithContext(ctx).Where("chat_id = ?", chatID)
	if commandOnly {
		q = q.Where("(kind = ? OR (kind = ? AND is_command = ?))", domain.KindAssistant, domain.KindUser, true)
	}
	var out []domain.Message
	if err := q.Order(orderDesc).Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ListMessagesAfter returns the messages strictly after the position
// (at, id) in chronological order. A nil at means "from the beginning".
func ListMessagesAfter(ctx context.Context, db *gorm.DB, chatID string, at *time.Time, id string) ([]domain.Message, error) {
	q := db.WithContext(ctx).Where("chat_id = ?", chatID)
	if at != nil {
		q = q.Where(afterCond, *at, *at, id)
	}
	var out []domain.Message
	err := q.Order(orderAsc).Find(&out).Error
	return out, err
}

// CountMessagesAfter counts messages strictly after (at, id); a nil at
// counts the whole chat.
func CountMessagesAfter(ctx context.Context, db *gorm.DB, chatID string, at *time.Time, id string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("chat_id = ?", chatID)
	if at != nil {
		q = q.Where(afterCond, *at, *at, id)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// CountMessages returns the total number of messages in a chat.
func CountMessages(ctx context.Context, db *gorm.DB, chatID string) (int64, error) {
	return CountMessagesAfter(ctx, db, chatID, nil, "")
}

// ListMessagesPage returns a chronological page of a chat's messages.
func ListMessagesPage(ctx context.Context, db *gorm.DB, chatID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order(orderAsc).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MessagesStats returns the number of messages in a chat and the timestamp
// of the newest one (nil when empty). Used for ETag generation.
func MessagesStats(ctx context.Context, db *gorm.DB, chatID string) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("chat_id = ?", chatID)
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	// Avoid MAX() -> TEXT in SQLite.
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order(orderDesc).Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// NextReply returns the first assistant or system message after m in its
// chat, or ErrNotFound when none follows yet.
func NextReply(ctx context.Context, db *gorm.DB, m *domain.Message) (*domain.Message, error) {
	var out domain.Message
	err := db.WithContext(ctx).
		Where("chat_id = ? AND kind IN ?", m.ChatID, []domain.MessageKind{domain.KindAssistant, domain.KindSystem}).
		Where(afterCond, m.CreatedAt, m.CreatedAt, m.ID).
		Order(orderAsc).
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}
