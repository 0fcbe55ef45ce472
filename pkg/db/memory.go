// Database models for the memory system
package db

import "time"

// MemoryType defines the type of memory content
type MemoryType string

const (
	MemoryTypeFact        MemoryType = "fact"        // Factual information
	MemoryTypePreference  MemoryType = "preference"  // User preferences
	MemoryTypeInstruction MemoryType = "instruction" // User instructions/rules
	MemoryTypeSummary     MemoryType = "summary"     // Conversation summary
)

// MemorySourceType defines the source of a memory
type MemorySourceType string

const (
	MemorySourceConversation MemorySourceType = "conversation" // Extracted from conversation
	MemorySourceTool         MemorySourceType = "tool"         // Stored via agent tool
	MemorySourceUser         MemorySourceType = "user"         // Manually added by user
)

// Memory represents a piece of stored knowledge scoped to one user.
type Memory struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	UserID string `json:"user_id" gorm:"index:idx_memory_user_key,unique;size:64;not null"`

	Type     MemoryType `json:"type" gorm:"index;size:30;not null"`
	Key      string     `json:"key" gorm:"index:idx_memory_user_key,unique;size:200"`
	Content  string     `json:"content" gorm:"type:text;not null"`
	Metadata JSONMap    `json:"metadata,omitempty" gorm:"type:json"`

	SourceType MemorySourceType `json:"source_type,omitempty" gorm:"size:30"`
	SourceID   *string          `json:"source_id,omitempty" gorm:"size:36"`

	Tags StringArray `json:"tags,omitempty" gorm:"type:json"`

	Importance  int        `json:"importance" gorm:"default:50"`
	AccessCount int        `json:"access_count" gorm:"default:0"`
	LastAccess  *time.Time `json:"last_access,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for Memory
func (Memory) TableName() string {
	return "memories"
}

// CreateMemoryRequest is the input for storing a memory.
type CreateMemoryRequest struct {
	Type       MemoryType       `json:"type"`
	Key        string           `json:"key"`
	Content    string           `json:"content"`
	Metadata   JSONMap          `json:"metadata,omitempty"`
	Tags       []string         `json:"tags,omitempty"`
	Importance int              `json:"importance,omitempty"`
	SourceType MemorySourceType `json:"source_type,omitempty"`
	SourceID   *string          `json:"source_id,omitempty"`
}

// MemorySearchResult is one semantic search hit.
type MemorySearchResult struct {
	Memory     Memory  `json:"memory"`
	Similarity float32 `json:"similarity"`
}
