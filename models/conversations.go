package models

import (
	"encoding/json"
	"time"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation model. A conversation is owned exclusively by one owner and is
// created lazily on the first message when no id is supplied.
type Conversation struct {
	ID        string    `gorm:"primaryKey;not null" json:"id"`
	OwnerID   string    `gorm:"index;not null" json:"owner_id"`
	CreatedAt time.Time `gorm:"default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:current_timestamp" json:"updated_at"`
}

// Message model. Messages within a conversation are totally ordered by
// creation time. ToolCalls holds the audit records of tool invocations made
// while producing an assistant message; it is empty for user messages.
type Message struct {
	ID             string          `gorm:"primaryKey;not null" json:"id"`
	ConversationID string          `gorm:"index;not null" json:"conversation_id"`
	OwnerID        string          `gorm:"index;not null" json:"owner_id"`
	Role           string          `gorm:"not null" json:"role"`
	Content        string          `gorm:"not null" json:"content"`
	ToolCalls      json.RawMessage `gorm:"type:json" json:"tool_calls,omitempty"`
	CreatedAt      time.Time       `gorm:"default:current_timestamp" json:"created_at"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;references:ID" json:"-"`
}
