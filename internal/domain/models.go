// Package domain defines the persistence models for group chats, their
// members and messages, per-chat context settings, rolling summaries and
// the per-user token ledger. These types are mapped with GORM and shared
// across the repository and service layers.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// MessageKind identifies who produced a message.
type MessageKind string

const (
	KindUser      MessageKind = "user"
	KindAssistant MessageKind = "assistant"
	KindSystem    MessageKind = "system"
)

// ContextMode controls which prior messages are offered to the assistant.
type ContextMode string

const (
	// ModeNone makes every assistant call stateless.
	ModeNone ContextMode = "none"
	// ModeCommandOnly keeps assistant replies and user commands.
	ModeCommandOnly ContextMode = "command_only"
	// ModeAllMessages keeps every message in the chat.
	ModeAllMessages ContextMode = "all_messages"
)

// Valid reports whether m is one of the known modes.
func (m ContextMode) Valid() bool {
	switch m {
	case ModeNone, ModeCommandOnly, ModeAllMessages:
		return true
	}
	return false
}

// Member roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Chat represents a conversation shared by a group of members.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - OwnerID: user that created the chat; always an admin member.
//   - Title: human-readable chat title.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type Chat struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	OwnerID   string         `json:"owner_id"   gorm:"type:varchar(64);not null;index"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null;default:'New chat'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// ChatMember grants a user access to a chat.
type ChatMember struct {
	ChatID    string    `json:"chat_id"    gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);primaryKey;index:idx_member_user"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null;default:'member';check:role IN ('admin','member')"`
	CreatedAt time.Time `json:"created_at"`

	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMember.
func (ChatMember) TableName() string { return "chat_members" }

// Message is a single, immutable utterance within a chat. Messages are
// totally ordered per chat by (CreatedAt, ID).
//
// Fields:
//   - AuthorID: user that wrote it; the injected assistant/system identities
//     author assistant and system messages.
//   - Kind: user, assistant or system (enforced by DB constraint).
//   - IsCommand / Command / CommandArg: set once at ingestion when the text
//     starts with a recognised slash command; CommandArg is the text after
//     the command word.
type Message struct {
	ID         string      `json:"id"                    gorm:"type:char(36);primaryKey"`
	ChatID     string      `json:"chat_id"               gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	AuthorID   string      `json:"author_id"             gorm:"type:varchar(64);not null"`
	Kind       MessageKind `json:"kind"                  gorm:"type:varchar(16);not null;check:kind IN ('user','assistant','system')"`
	Content    string      `json:"content"               gorm:"type:text;not null"`
	IsCommand  bool        `json:"is_command"            gorm:"not null;default:false"`
	Command    CommandKind `json:"command,omitempty"     gorm:"type:varchar(16)"`
	CommandArg string      `json:"command_arg,omitempty" gorm:"type:text"`
	CreatedAt  time.Time   `json:"created_at"            gorm:"index:idx_chat_msgs,priority:2"`

	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// After reports whether m sorts strictly after the position (at, id).
func (m Message) After(at time.Time, id string) bool {
	if m.CreatedAt.Equal(at) {
		return m.ID > id
	}
	return m.CreatedAt.After(at)
}

// ContextSettings is the per-chat policy read on every assembly.
type ContextSettings struct {
	ChatID     string      `json:"chat_id"     gorm:"type:char(36);primaryKey"`
	Mode       ContextMode `json:"mode"        gorm:"type:varchar(16);not null"`
	UseSummary bool        `json:"use_summary" gorm:"not null"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// TableName returns the database table name for ContextSettings.
func (ContextSettings) TableName() string { return "context_settings" }

// DefaultContextSettings is applied to chats that never stored settings.
func DefaultContextSettings(chatID string) ContextSettings {
	return ContextSettings{ChatID: chatID, Mode: ModeAllMessages, UseSummary: true}
}
