package domain

import "time"

// Idempotency remembers the message a POST produced for a given
// Idempotency-Key, keyed by (user_id, chat_id, key), so a retried request
// replays the original result instead of posting twice.
type Idempotency struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_chat_key,priority:1"`
	ChatID    string    `gorm:"type:varchar(36);not null;uniqueIndex:ux_user_chat_key,priority:2"`
	Key       string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_user_chat_key,priority:3"`
	MessageID string    `gorm:"type:varchar(36);not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
