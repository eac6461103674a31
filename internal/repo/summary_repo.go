package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
)

// LatestSummary returns the highest-version summary of a chat, or
// ErrNotFound when the chat was never summarized.
func LatestSummary(ctx context.Context, db *gorm.DB, chatID string) (*domain.Summary, error) {
	var s domain.Summary
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("version DESC").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// InsertSummary stores a new summary row.
func InsertSummary(ctx context.Context, db *gorm.DB, s *domain.Summary) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// ListSummaries returns up to limit summaries of a chat, newest first.
func ListSummaries(ctx context.Context, db *gorm.DB, chatID string, limit int) ([]domain.Summary, error) {
	var out []domain.Summary
	q := db.WithContext(ctx).Where("chat_id = ?", chatID).Order("version DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// PruneSummaries deletes every summary of a chat except the keep highest
// versions and returns the number of rows removed.
func PruneSummaries(ctx context.Context, db *gorm.DB, chatID string, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	var cutoff []int64
	err := db.WithContext(ctx).Model(&domain.Summary{}).
		Where("chat_id = ?", chatID).
		Order("version DESC").
		Offset(keep-1).
		Limit(1).
		Pluck("version", &cutoff).Error
	if err != nil || len(cutoff) == 0 {
		return 0, err
	}
	res := db.WithContext(ctx).
		Where("chat_id = ? AND version < ?", chatID, cutoff[0]).
		Delete(&domain.Summary{})
	return res.RowsAffected, res.Error
}

// EnsureContextState creates the control row of a chat if it is missing.
func EnsureContextState(ctx context.Context, db *gorm.DB, chatID string) error {
	st := &domain.ChatContextState{ChatID: chatID, JobState: domain.JobIdle, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(st).Error
}

// GetContextState returns the control row of a chat, or ErrNotFound.
func GetContextState(ctx context.Context, db *gorm.DB, chatID string) (*domain.ChatContextState, error) {
	var st domain.ChatContextState
	if err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&st).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

// NextSummaryVersion atomically increments and returns the per-chat summary
// sequence. It must run inside a transaction; the increment holds the row
// until commit so concurrent callers serialize.
func NextSummaryVersion(ctx context.Context, tx *gorm.DB, chatID string) (int64, error) {
	res := tx.WithContext(ctx).Model(&domain.ChatContextState{}).
		Where("chat_id = ?", chatID).
		Updates(map[string]any{
			"summary_version": gorm.Expr("summary_version + 1"),
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	var v []int64
	err := tx.WithContext(ctx).Model(&domain.ChatContextState{}).
		Where("chat_id = ?", chatID).
		Pluck("summary_version", &v).Error
	if err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, ErrNotFound
	}
	return v[0], nil
}
