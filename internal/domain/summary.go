package domain

import "time"

// Summary records that every message of a chat up to and including the
// watermark message is condensed into Text. Summaries are never mutated;
// the one with the highest Version is authoritative.
type Summary struct {
	ID                  string    `json:"id"                    gorm:"type:char(36);primaryKey"`
	ChatID              string    `json:"chat_id"               gorm:"type:char(36);not null;uniqueIndex:ux_summary_chat_version,priority:1"`
	Version             int64     `json:"version"               gorm:"not null;uniqueIndex:ux_summary_chat_version,priority:2,sort:desc"`
	Text                string    `json:"text"                  gorm:"type:text;not null"`
	CoveredMessageCount int       `json:"covered_message_count" gorm:"not null"`
	WatermarkMessageID  string    `json:"watermark_message_id"  gorm:"type:char(36);not null"`
	WatermarkCreatedAt  time.Time `json:"watermark_created_at"  gorm:"not null"`
	TokensSpent         int       `json:"tokens_spent"          gorm:"not null;default:0"`
	CreatedAt           time.Time `json:"created_at"`
}

// TableName returns the database table name for Summary.
func (Summary) TableName() string { return "summaries" }

// Covers reports whether m is at or before the watermark.
func (s *Summary) Covers(m Message) bool {
	return !m.After(s.WatermarkCreatedAt, s.WatermarkMessageID)
}

// JobState is the summarization state of a chat.
type JobState string

const (
	JobIdle        JobState = "idle"
	JobScheduled   JobState = "scheduled"
	JobSummarizing JobState = "summarizing"
)

// ChatContextState is the persisted per-chat control row. SummaryVersion is
// the per-chat sequence used to number summaries; JobState is the
// at-most-one-in-flight flag for summarization.
type ChatContextState struct {
	ChatID         string     `gorm:"type:char(36);primaryKey"`
	SummaryVersion int64      `gorm:"not null;default:0"`
	JobState       JobState   `gorm:"type:varchar(16);not null;default:'idle';index:idx_ctx_job,priority:1"`
	JobID          string     `gorm:"type:varchar(36)"`
	BaseVersion    int64      `gorm:"not null;default:0"`
	TriggeredBy    string     `gorm:"type:varchar(64)"`
	ScheduledAt    *time.Time `gorm:"index:idx_ctx_job,priority:2"`
	StartedAt      *time.Time
	Attempts       int    `gorm:"not null;default:0"`
	LastError      string `gorm:"type:text"`
	UpdatedAt      time.Time
}

// TableName returns the database table name for ChatContextState.
func (ChatContextState) TableName() string { return "chat_context_state" }
