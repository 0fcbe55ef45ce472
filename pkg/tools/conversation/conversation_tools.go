// Conversation tools - let agents browse the user's chat history
package conversation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	toolutils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/cadenza-chat/cadenza/pkg/tools"
)

// Tool IDs
const (
	ToolIDConversationList    tools.ToolID = "conversation_list"
	ToolIDConversationHistory tools.ToolID = "conversation_history"
	ToolIDConversationSearch  tools.ToolID = "conversation_search"
)

func init() {
	tools.Register(tools.ToolDefinition{
		ID:          ToolIDConversationList,
		Name:        "conversation_list",
		Description: "List the user's conversations.",
		Category:    tools.CategoryConversation,
		Dangerous:   false,
	}, newConversationListTool)

	tools.Register(tools.ToolDefinition{
		ID:          ToolIDConversationHistory,
		Name:        "conversation_history",
		Description: "Read the messages of one conversation.",
		Category:    tools.CategoryConversation,
		Dangerous:   false,
	}, newConversationHistoryTool)

	tools.Register(tools.ToolDefinition{
		ID:          ToolIDConversationSearch,
		Name:        "conversation_search",
		Description: "Search the user's past messages by keyword.",
		Category:    tools.CategoryConversation,
		Dangerous:   false,
	}, newConversationSearchTool)
}

// ========== Conversation List Tool ==========

type conversationListInput struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type conversationSummary struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

func newConversationListTool(tc *tools.ToolContext) tool.InvokableTool {
	chatStore := tc.ChatStore
	userID := tc.UserID()

	return toolutils.NewTool(&schema.ToolInfo{
		Name: "conversation_list",
		Desc: "List the user's conversations, newest first.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"status": {
				Type: schema.String,
				Desc: "Filter by status",
				Enum: []string{"active", "archived"},
			},
			"limit": {
				Type: schema.Integer,
				Desc: "Maximum conversations to return. Default: 20",
			},
		}),
	}, func(ctx context.Context, input *conversationListInput) (string, error) {
		if chatStore == nil {
			return "", fmt.Errorf("chat store not available")
		}

		conversations, hasMore, err := chatStore.ListConversations(userID, input.Status, input.Limit, 0)
		if err != nil {
			return "", fmt.Errorf("list failed: %w", err)
		}

		summaries := make([]conversationSummary, len(conversations))
		for i, conv := range conversations {
			summaries[i] = conversationSummary{
				ID:        conv.ID,
				ThreadID:  conv.ThreadID,
				Title:     conv.Title,
				Status:    conv.Status,
				UpdatedAt: conv.UpdatedAt.Format("2006-01-02 15:04:05"),
			}
		}

		return formatJSON(map[string]interface{}{
			"conversations": summaries,
			"count":         len(summaries),
			"has_more":      hasMore,
		}), nil
	})
}

// ========== Conversation History Tool ==========

type conversationHistoryInput struct {
	ConversationID string `json:"conversation_id"`
	Limit          int    `json:"limit,omitempty"`
}

type historyMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	AgentName string `json:"agent_name,omitempty"`
	CreatedAt string `json:"created_at"`
}

func newConversationHistoryTool(tc *tools.ToolContext) tool.InvokableTool {
	chatStore := tc.ChatStore
	userID := tc.UserID()

	return toolutils.NewTool(&schema.ToolInfo{
		Name: "conversation_history",
		Desc: "Read the messages of one of the user's conversations, oldest first.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"conversation_id": {
				Type:     schema.String,
				Desc:     "The conversation to read",
				Required: true,
			},
			"limit": {
				Type: schema.Integer,
				Desc: "Maximum messages to return, counted from the end. Default: 50",
			},
		}),
	}, func(ctx context.Context, input *conversationHistoryInput) (string, error) {
		if chatStore == nil {
			return "", fmt.Errorf("chat store not available")
		}

		// Ownership check before reading any messages.
		if _, err := chatStore.GetConversation(userID, input.ConversationID); err != nil {
			return "", fmt.Errorf("conversation not found")
		}

		messages, err := chatStore.GetMessages(input.ConversationID)
		if err != nil {
			return "", fmt.Errorf("read failed: %w", err)
		}

		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}
		if len(messages) > limit {
			messages = messages[len(messages)-limit:]
		}

		history := make([]historyMessage, 0, len(messages))
		for _, msg := range messages {
			if msg.Content == "" {
				continue
			}
			history = append(history, historyMessage{
				Role:      msg.Role,
				Content:   msg.Content,
				AgentName: msg.AgentName,
				CreatedAt: msg.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		return formatJSON(map[string]interface{}{
			"conversation_id": input.ConversationID,
			"messages":        history,
			"count":           len(history),
		}), nil
	})
}

// ========== Conversation Search Tool ==========

type conversationSearchInput struct {
	Keyword string `json:"keyword"`
	Limit   int    `json:"limit,omitempty"`
}

type searchHit struct {
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

func newConversationSearchTool(tc *tools.ToolContext) tool.InvokableTool {
	chatStore := tc.ChatStore
	userID := tc.UserID()

	return toolutils.NewTool(&schema.ToolInfo{
		Name: "conversation_search",
		Desc: "Search the user's past messages for a keyword, newest first.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"keyword": {
				Type:     schema.String,
				Desc:     "Text to search for",
				Required: true,
			},
			"limit": {
				Type: schema.Integer,
				Desc: "Maximum matches to return. Default: 20",
			},
		}),
	}, func(ctx context.Context, input *conversationSearchInput) (string, error) {
		if chatStore == nil {
			return "", fmt.Errorf("chat store not available")
		}
		if input.Keyword == "" {
			return "", fmt.Errorf("keyword is required")
		}

		messages, err := chatStore.SearchMessages(userID, input.Keyword, input.Limit)
		if err != nil {
			return "", fmt.Errorf("search failed: %w", err)
		}

		hits := make([]searchHit, len(messages))
		for i, msg := range messages {
			content := msg.Content
			if len(content) > 500 {
				content = content[:500] + "..."
			}
			hits[i] = searchHit{
				ConversationID: msg.ConversationID,
				Role:           msg.Role,
				Content:        content,
				CreatedAt:      msg.CreatedAt.Format("2006-01-02 15:04:05"),
			}
		}

		return formatJSON(map[string]interface{}{
			"keyword": input.Keyword,
			"matches": hits,
			"count":   len(hits),
		}), nil
	})
}

func formatJSON(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}
