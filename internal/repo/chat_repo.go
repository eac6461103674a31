// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for chats, their
// members and per-chat context settings.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only
// persistence and query composition.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateChat inserts a chat owned by ownerID together with the owner's
// admin membership and default context settings.
func CreateChat(ctx context.Context, db *gorm.DB, ownerID, title string) (*domain.Chat, error) {
	now := time.Now().UTC()
	c := &domain.Chat{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		if err := tx.Create(&domain.ChatMember{ChatID: c.ID, UserID: ownerID, Role: domain.RoleAdmin, CreatedAt: now}).Error; err != nil {
			return err
		}
		s := domain.DefaultContextSettings(c.ID)
		s.UpdatedAt = now
		return tx.Create(&s).Error
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetChat fetches a single chat by its ID, or ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// memberChats scopes chats to those userID belongs to.
func memberChats(db *gorm.DB, userID string) *gorm.DB {
	return db.Model(&domain.Chat{}).
		Joins("JOIN chat_members cm ON cm.chat_id = chats.id").
		Where("cm.user_id = ?", userID)
}

// UpdateChatTitle sets the title of a chat, or returns ErrNotFound.
func UpdateChatTitle(ctx context.Context, db *gorm.DB, id, title string) error {
	res := db.WithContext(ctx).Model(&domain.Chat{}).
		Where("id = ?", id).
		Updates(map[string]any{"title": title, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountChats returns the number of chats userID is a member of.
func CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := memberChats(db.WithContext(ctx), userID).Count(&total).Error
	return total, err
}

// ListChatsPage returns a page of the chats userID belongs to, most recently
// created first.
func ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	var out []domain.Chat
	err := memberChats(db.WithContext(ctx), userID).
		Order("chats.created_at DESC, chats.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// AddMember inserts or updates a membership.
func AddMember(ctx context.Context, db *gorm.DB, chatID, userID, role string) (*domain.ChatMember, error) {
	m := &domain.ChatMember{ChatID: chatID, UserID: userID, Role: role, CreatedAt: time.Now().UTC()}
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(m).Error
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMember returns the membership of userID in chatID, or ErrNotFound.
func GetMember(ctx context.Context, db *gorm.DB, chatID, userID string) (*domain.ChatMember, error) {
	var m domain.ChatMember
	err := db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetSettings returns the context settings of a chat, falling back to the
// defaults when none were stored.
func GetSettings(ctx context.Context, db *gorm.DB, chatID string) (domain.ContextSettings, error) {
	var s domain.ContextSettings
	err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DefaultContextSettings(chatID), nil
	}
	return s, err
}

// SaveSettings upserts the context settings of a chat.
func SaveSettings(ctx context.Context, db *gorm.DB, s domain.ContextSettings) error {
	s.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"mode", "use_summary", "updated_at"}),
	}).Create(&s).Error
}
