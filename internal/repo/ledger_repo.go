package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
)

// EnsureAccount creates the account of userID for period with quota if it
// does not exist yet. Existing accounts are left untouched.
func EnsureAccount(ctx context.Context, db *gorm.DB, userID, period string, quota int64) error {
	now := time.Now().UTC()
	a := &domain.TokenAccount{
		ID:        uuid.NewString(),
		UserID:    userID,
		Period:    period,
		Quota:     quota,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "period"}},
		DoNothing: true,
	}).Create(a).Error
}

// GetAccount returns the account of userID for period, or ErrNotFound.
func GetAccount(ctx context.Context, db *gorm.DB, userID, period string) (*domain.TokenAccount, error) {
	var a domain.TokenAccount
	err := db.WithContext(ctx).
		Where("user_id = ? AND period = ?", userID, period).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// TryReserve adds amount to the reserved balance if the account stays within
// quota. The check and the increment are one statement, so two overlapping
// calls can never both pass on the same remaining balance.
func TryReserve(ctx context.Context, db *gorm.DB, userID, period string, amount int64) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.TokenAccount{}).
		Where("user_id = ? AND period = ? AND used + reserved + ? <= quota", userID, period, amount).
		Updates(map[string]any{
			"reserved":   gorm.Expr("reserved + ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ApplyUsage charges used tokens and releases a prior reservation.
func ApplyUsage(ctx context.Context, db *gorm.DB, userID, period string, used, release int64) error {
	res := db.WithContext(ctx).Model(&domain.TokenAccount{}).
		Where("user_id = ? AND period = ?", userID, period).
		Updates(map[string]any{
			"used":       gorm.Expr("used + ?", used),
			"reserved":   gorm.Expr("CASE WHEN reserved >= ? THEN reserved - ? ELSE 0 END", release, release),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateReservation inserts a reservation and returns ErrDuplicate when the
// call id is already known.
func CreateReservation(ctx context.Context, db *gorm.DB, r *domain.TokenReservation) error {
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetReservation returns the reservation for callID, or ErrNotFound.
func GetReservation(ctx context.Context, db *gorm.DB, callID string) (*domain.TokenReservation, error) {
	var r domain.TokenReservation
	if err := forUpdate(db.WithContext(ctx)).Where("call_id = ?", callID).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// SettleReservation moves a reservation from status from to to, recording
// usage. It reports false when another caller settled it first.
func SettleReservation(ctx context.Context, db *gorm.DB, callID, from, to string, input, output int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.TokenReservation{}).
		Where("call_id = ? AND status = ?", callID, from).
		Updates(map[string]any{
			"status":        to,
			"input_tokens":  input,
			"output_tokens": output,
			"settled_at":    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecordPendingUsage stores usage on an open reservation so the watchdog
// charges it instead of releasing the reservation empty-handed. A call that
// never reserved gets an open zero-amount row carrying the usage.
func RecordPendingUsage(ctx context.Context, db *gorm.DB, r *domain.TokenReservation) error {
	res := db.WithContext(ctx).Model(&domain.TokenReservation{}).
		Where("call_id = ? AND status = ?", r.CallID, domain.ReservationReserved).
		Updates(map[string]any{
			"input_tokens":  r.InputTokens,
			"output_tokens": r.OutputTokens,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	row := *r
	row.Status = domain.ReservationReserved
	row.Amount = 0
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// ListExpiredReservations returns up to limit reservations still open past
// their expiry.
func ListExpiredReservations(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.TokenReservation, error) {
	var out []domain.TokenReservation
	err := db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", domain.ReservationReserved, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CategoryUsage is the reconciled usage of one cost category.
type CategoryUsage struct {
	Category string
	Tokens   int64
}

// UsageByCategory sums reconciled tokens of userID in period per category.
func UsageByCategory(ctx context.Context, db *gorm.DB, userID, period string) ([]CategoryUsage, error) {
	var out []CategoryUsage
	err := db.WithContext(ctx).Model(&domain.TokenReservation{}).
		Select("category, SUM(input_tokens + output_tokens) AS tokens").
		Where("user_id = ? AND period = ? AND status = ?", userID, period, domain.ReservationReconciled).
		Group("category").
		Order("category").
		Scan(&out).Error
	return out, err
}
