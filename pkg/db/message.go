// Database models for chat messages
package db

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Message represents a chat message (OpenAI-compatible format).
// One Message.ID = one complete message visible to the user.
type Message struct {
	ID             string `json:"id" gorm:"primaryKey;size:36"`
	ConversationID string `json:"conversation_id" gorm:"index;size:36;not null"`

	// Branch support - enables message tree structure
	ParentID *string `json:"parent_id,omitempty" gorm:"index;size:36"` // Parent message ID (nil for root messages)

	// Core fields
	Role    string `json:"role" gorm:"size:20;not null"` // user, assistant, system, tool
	Content string `json:"content" gorm:"type:text"`

	// Agent attribution: which agent in the supervisor tree produced this
	AgentName string `json:"agent_name,omitempty" gorm:"size:100;index"`
	RunID     string `json:"run_id,omitempty" gorm:"index;size:36"`

	// Tool call fields
	ToolCalls  ToolCallArray `json:"tool_calls,omitempty" gorm:"type:json"`
	ToolCallID string        `json:"tool_call_id,omitempty" gorm:"size:100"`

	// Status and metadata
	Status       string      `json:"status" gorm:"size:20;default:'completed'"` // pending, streaming, completed, error
	FinishReason string      `json:"finish_reason,omitempty" gorm:"size:20"`    // stop, tool_calls, length, error
	Usage        *TokenUsage `json:"usage,omitempty" gorm:"type:text"`          // JSON

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (*Message) TableName() string {
	return "messages"
}

// Message status
const (
	MessageStatusPending   = "pending"
	MessageStatusStreaming = "streaming"
	MessageStatusCompleted = "completed"
	MessageStatusError     = "error"
)

// TokenUsage records token accounting for one message.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Value implements driver.Valuer for TokenUsage
func (u *TokenUsage) Value() (driver.Value, error) {
	if u == nil {
		return nil, nil
	}
	return json.Marshal(u)
}

// Scan implements sql.Scanner for TokenUsage
func (u *TokenUsage) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, u)
}

// ToolCallRecord is one tool call stored on an assistant message.
type ToolCallRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string
}

// ToolCallArray is a slice of tool calls stored as JSON
type ToolCallArray []ToolCallRecord

// Value implements driver.Valuer for ToolCallArray
func (a ToolCallArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for ToolCallArray
func (a *ToolCallArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	bytes, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, a)
}

// StringArray is a slice of strings stored as JSON
type StringArray []string

// Value implements driver.Valuer for StringArray
func (s StringArray) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for StringArray
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, s)
}

// JSONMap is a map stored as JSON
type JSONMap map[string]interface{}

// Value implements driver.Valuer for JSONMap
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONMap
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, err := toBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, m)
}

func toBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("type assertion to []byte or string failed")
	}
}
