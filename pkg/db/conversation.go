// Database models for chat conversations
package db

import "time"

// Conversation represents a chat thread owned by one user.
type Conversation struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"index;size:64;not null"`
	ThreadID  string    `json:"thread_id" gorm:"index;size:64;not null"`
	Title     string    `json:"title" gorm:"size:200;default:'New Chat'"`
	ModelID   string    `json:"model_id,omitempty" gorm:"size:100"`
	Status    string    `json:"status" gorm:"size:20;default:'active'"` // active, archived
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Conversation status
const (
	ConversationStatusActive   = "active"
	ConversationStatusArchived = "archived"
)
