package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-groupchat-backend/internal/domain"
)

// ScheduleSummarization moves a chat from idle to scheduled. It reports
// false when a job is already scheduled or running.
func ScheduleSummarization(ctx context.Context, db *gorm.DB, chatID, jobID string, baseVersion int64, triggeredBy string, now time.Time) (bool, error) {
	return transition(ctx, db, chatID, domain.JobIdle, "", map[string]any{
		"job_state":    domain.JobScheduled,
		"job_id":       jobID,
		"base_version": baseVersion,
		"triggered_by": triggeredBy,
		"scheduled_at": now,
		"started_at":   nil,
		"updated_at":   now,
	})
}

// StartScheduled moves the scheduled job jobID to summarizing.
func StartScheduled(ctx context.Context, db *gorm.DB, chatID, jobID string, now time.Time) (bool, error) {
	return transition(ctx, db, chatID, domain.JobScheduled, jobID, map[string]any{
		"job_state":  domain.JobSummarizing,
		"started_at": now,
		"updated_at": now,
	})
}

// StartImmediate moves a chat from idle straight to summarizing, used by
// forced runs.
func StartImmediate(ctx context.Context, db *gorm.DB, chatID, jobID string, baseVersion int64, triggeredBy string, now time.Time) (bool, error) {
	return transition(ctx, db, chatID, domain.JobIdle, "", map[string]any{
		"job_state":    domain.JobSummarizing,
		"job_id":       jobID,
		"base_version": baseVersion,
		"triggered_by": triggeredBy,
		"scheduled_at": now,
		"started_at":   now,
		"updated_at":   now,
	})
}

// FinishSummarization returns the job jobID to idle, recording failure.
func FinishSummarization(ctx context.Context, db *gorm.DB, chatID, jobID string, failure error, now time.Time) (bool, error) {
	updates := map[string]any{
		"job_state":    domain.JobIdle,
		"job_id":       "",
		"scheduled_at": nil,
		"started_at":   nil,
		"updated_at":   now,
		"last_error":   "",
		"attempts":     0,
	}
	if failure != nil {
		updates["last_error"] = failure.Error()
		updates["attempts"] = gorm.Expr("attempts + 1")
	}
	return transition(ctx, db, chatID, domain.JobSummarizing, jobID, updates)
}

// ClaimNextScheduled claims the oldest scheduled chat and marks it
// summarizing. It returns nil when nothing is waiting.
func ClaimNextScheduled(ctx context.Context, db *gorm.DB, now time.Time) (*domain.ChatContextState, error) {
	var claimed *domain.ChatContextState
	err := Transaction(ctx, db, func(tx *gorm.DB) error {
		var st domain.ChatContextState
		err := skipLocked(tx).
			Where("job_state = ?", domain.JobScheduled).
			Order("scheduled_at ASC").
			First(&st).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ok, err := StartScheduled(ctx, tx, st.ChatID, st.JobID, now)
		if err != nil || !ok {
			return err
		}
		st.JobState = domain.JobSummarizing
		st.StartedAt = &now
		claimed = &st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ResetStaleJobs returns jobs stuck in scheduled or summarizing since before
// cutoff to idle, so a later trigger can retry.
func ResetStaleJobs(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Model(&domain.ChatContextState{}).
		Where("job_state IN ? AND updated_at < ?", []domain.JobState{domain.JobScheduled, domain.JobSummarizing}, cutoff).
		Updates(map[string]any{
			"job_state":    domain.JobIdle,
			"job_id":       "",
			"scheduled_at": nil,
			"started_at":   nil,
			"last_error":   "stale job reset",
			"attempts":     gorm.Expr("attempts + 1"),
			"updated_at":   now,
		})
	return res.RowsAffected, res.Error
}

// transition is the compare-and-swap on the job state; an empty jobID
// matches any job.
func transition(ctx context.Context, db *gorm.DB, chatID string, from domain.JobState, jobID string, updates map[string]any) (bool, error) {
	q := db.WithContext(ctx).Model(&domain.ChatContextState{}).
		Where("chat_id = ? AND job_state = ?", chatID, from)
	if jobID != "" {
		q = q.Where("job_id = ?", jobID)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
