package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cadenza-chat/cadenza/pkg/event"
	"github.com/cadenza-chat/cadenza/pkg/service"
	"github.com/cadenza-chat/cadenza/pkg/utils"
)

// ConversationHandler serves the conversation CRUD routes. Every operation is
// scoped to the authenticated user.
type ConversationHandler struct {
	chatStore *service.ChatStoreService
	logger    *slog.Logger
}

func NewConversationHandler(chatStore *service.ChatStoreService) *ConversationHandler {
	return &ConversationHandler{
		chatStore: chatStore,
		logger:    utils.GetLogger(),
	}
}

// List returns the user's conversations, newest first.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := UserID(c)
	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	conversations, hasMore, err := h.chatStore.ListConversations(userID, status, limit, offset)
	if err != nil {
		h.logger.Error("failed to list conversations", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "Failed to list conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 200, "data": conversations, "has_more": hasMore})
}

// Create creates a conversation.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req struct {
		Title    string `json:"title"`
		ThreadID string `json:"thread_id"`
		ModelID  string `json:"model_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "Invalid request format"})
		return
	}

	userID := UserID(c)
	conv, err := h.chatStore.CreateConversation(userID, req.ThreadID, req.Title, req.ModelID)
	if err != nil {
		h.logger.Error("failed to create conversation", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "Failed to create conversation"})
		return
	}

	event.Emit(event.ConversationCreatedEvent{ConversationID: conv.ID, UserID: userID})
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": conv})
}

// Get returns one conversation.
func (h *ConversationHandler) Get(c *gin.Context) {
	conv, err := h.chatStore.GetConversation(UserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": "Conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "Failed to get conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": conv})
}

// Update changes a conversation's title, status or model.
func (h *ConversationHandler) Update(c *gin.Context) {
	var req struct {
		Title   string `json:"title"`
		Status  string `json:"status"`
		ModelID string `json:"model_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "Invalid request format"})
		return
	}

	conv, err := h.chatStore.UpdateConversation(UserID(c), c.Param("id"), req.Title, req.Status, req.ModelID)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": "Conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "Failed to update conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": conv})
}

// Delete removes a conversation and its messages.
func (h *ConversationHandler) Delete(c *gin.Context) {
	userID := UserID(c)
	id := c.Param("id")

	if err := h.chatStore.DeleteConversation(userID, id); err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": "Conversation not found"})
			return
		}
		h.logger.Error("failed to delete conversation", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "Failed to delete conversation"})
		return
	}

	event.Emit(event.ConversationDeletedEvent{ConversationID: id})
	c.JSON(http.StatusOK, gin.H{"code": 200, "message": "Deleted successfully"})
}

// Messages returns a conversation's messages, oldest first.
func (h *ConversationHandler) Messages(c *gin.Context) {
	// Ownership check before reading messages.
	conv, err := h.chatStore.GetConversation(UserID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": "Conversation not found"})
		return
	}

	messages, err := h.chatStore.GetMessages(conv.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "Failed to get messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": messages})
}
