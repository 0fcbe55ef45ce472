// Chat store - persistence for conversations and messages
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cadenza-chat/cadenza/pkg/db"
	"github.com/cadenza-chat/cadenza/pkg/utils"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNoMessages           = errors.New("no messages provided")
	ErrModelNotConfigured   = errors.New("model not configured")
)

// ChatStoreService handles conversation and message persistence. All lookups
// are scoped by user id so one user can never read another's threads.
type ChatStoreService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewChatStoreService creates a new chat store on top of an open database.
func NewChatStoreService(database *gorm.DB) *ChatStoreService {
	return &ChatStoreService{
		db:     database,
		logger: utils.GetLogger(),
	}
}

// ========== Conversation Management ==========

// CreateConversation creates a new conversation owned by userID.
func (s *ChatStoreService) CreateConversation(userID, threadID, title, modelID string) (*db.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id required")
	}
	if title == "" {
		title = "New Chat"
	}
	if threadID == "" {
		threadID = uuid.New().String()
	}

	conv := &db.Conversation{
		ID:       uuid.New().String(),
		UserID:   userID,
		ThreadID: threadID,
		Title:    title,
		ModelID:  modelID,
		Status:   db.ConversationStatusActive,
	}
	if err := s.db.Create(conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID, scoped to its owner.
func (s *ChatStoreService) GetConversation(userID, id string) (*db.Conversation, error) {
	var conv db.Conversation
	if err := s.db.First(&conv, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// GetConversationByThread retrieves the conversation bound to a thread.
func (s *ChatStoreService) GetConversationByThread(userID, threadID string) (*db.Conversation, error) {
	var conv db.Conversation
	if err := s.db.First(&conv, "thread_id = ? AND user_id = ?", threadID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// ListConversations lists a user's conversations, newest first.
func (s *ChatStoreService) ListConversations(userID, status string, limit, offset int) ([]db.Conversation, bool, error) {
	if limit <= 0 {
		limit = 20
	}

	var conversations []db.Conversation
	query := s.db.Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	// Fetch one more to check if there are more results
	if err := query.Order("updated_at DESC").Limit(limit + 1).Offset(offset).Find(&conversations).Error; err != nil {
		return nil, false, err
	}

	hasMore := len(conversations) > limit
	if hasMore {
		conversations = conversations[:limit]
	}
	return conversations, hasMore, nil
}

// UpdateConversation updates a conversation's title, status or model.
func (s *ChatStoreService) UpdateConversation(userID, id, title, status, modelID string) (*db.Conversation, error) {
	conv, err := s.GetConversation(userID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if title != "" {
		updates["title"] = title
	}
	if status != "" {
		updates["status"] = status
	}
	if modelID != "" {
		updates["model_id"] = modelID
	}

	if len(updates) > 0 {
		updates["updated_at"] = time.Now()
		if err := s.db.Model(conv).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetConversation(userID, id)
}

// DeleteConversation deletes a conversation and its messages.
func (s *ChatStoreService) DeleteConversation(userID, id string) error {
	if _, err := s.GetConversation(userID, id); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&db.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Conversation{}, "id = ?", id).Error
	})
}

// TouchConversation bumps a conversation's updated_at.
func (s *ChatStoreService) TouchConversation(id string) {
	s.db.Model(&db.Conversation{}).Where("id = ?", id).Update("updated_at", time.Now())
}

// ========== Message Management ==========

// GetMessages retrieves all messages for a conversation, oldest first.
func (s *ChatStoreService) GetMessages(conversationID string) ([]db.Message, error) {
	var messages []db.Message
	if err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessage retrieves a single message
func (s *ChatStoreService) GetMessage(id string) (*db.Message, error) {
	var msg db.Message
	if err := s.db.First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

// SaveMessage saves a message to the database
func (s *ChatStoreService) SaveMessage(msg *db.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	return s.db.Save(msg).Error
}

// UpdateMessageStatus updates the status of a message
func (s *ChatStoreService) UpdateMessageStatus(id, status, finishReason string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if finishReason != "" {
		updates["finish_reason"] = finishReason
	}
	return s.db.Model(&db.Message{}).Where("id = ?", id).Updates(updates).Error
}

// AppendMessageContent appends content to an existing message (for streaming)
func (s *ChatStoreService) AppendMessageContent(id, content string) error {
	return s.db.Model(&db.Message{}).
		Where("id = ?", id).
		Update("content", gorm.Expr("COALESCE(content, '') || ?", content)).
		Update("updated_at", time.Now()).
		Error
}

// SearchMessages finds a user's messages whose content matches a keyword,
// newest first. The join keeps the search inside the user's own conversations.
func (s *ChatStoreService) SearchMessages(userID, keyword string, limit int) ([]db.Message, error) {
	if limit <= 0 {
		limit = 20
	}

	var messages []db.Message
	err := s.db.Model(&db.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.user_id = ? AND messages.content LIKE ?", userID, "%"+keyword+"%").
		Order("messages.created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ========== History conversion ==========

// SchemaHistory converts a conversation's stored messages into the schema
// messages a chat model consumes. Empty messages are skipped; a tool call
// whose result was never recorded is dropped so providers do not reject the
// history.
func (s *ChatStoreService) SchemaHistory(conversationID string) ([]*schema.Message, error) {
	messages, err := s.GetMessages(conversationID)
	if err != nil {
		return nil, err
	}

	// Map tool_call_id -> has result, for pairing validation.
	toolResults := make(map[string]bool)
	for _, msg := range messages {
		if msg.Role == string(schema.Tool) && msg.ToolCallID != "" {
			toolResults[msg.ToolCallID] = true
		}
	}

	history := make([]*schema.Message, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		if converted := s.toSchemaMessage(msg, toolResults); converted != nil {
			history = append(history, converted)
		}
	}
	return history, nil
}

func (s *ChatStoreService) toSchemaMessage(msg *db.Message, toolResults map[string]bool) *schema.Message {
	switch schema.RoleType(msg.Role) {
	case schema.User, schema.System:
		if msg.Content == "" {
			return nil
		}
		return &schema.Message{
			Role:    schema.RoleType(msg.Role),
			Content: msg.Content,
		}

	case schema.Assistant:
		var toolCalls []schema.ToolCall
		for _, tc := range msg.ToolCalls {
			if !toolResults[tc.ID] {
				s.logger.Debug("skipping tool call without result", "tool_call_id", tc.ID, "tool", tc.Name)
				continue
			}
			toolCalls = append(toolCalls, schema.ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: schema.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		if msg.Content == "" && len(toolCalls) == 0 {
			return nil
		}
		return &schema.Message{
			Role:      schema.Assistant,
			Content:   msg.Content,
			ToolCalls: toolCalls,
		}

	case schema.Tool:
		if msg.ToolCallID == "" {
			return nil
		}
		return &schema.Message{
			Role:       schema.Tool,
			ToolCallID: msg.ToolCallID,
			Content:    msg.Content,
		}
	}
	return nil
}
