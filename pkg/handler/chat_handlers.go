// HTTP chat surface: POST /api/chat streams the supervisor's reply over SSE.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cadenza-chat/cadenza/pkg/api"
	"github.com/cadenza-chat/cadenza/pkg/event"
	"github.com/cadenza-chat/cadenza/pkg/execution"
	"github.com/cadenza-chat/cadenza/pkg/supervisor"
	"github.com/cadenza-chat/cadenza/pkg/tools"
	"github.com/cadenza-chat/cadenza/pkg/utils"
	"github.com/cadenza-chat/cadenza/pkg/ws"
)

// httpBridge satisfies the factory's bridge requirement for HTTP-origin
// executions. There is no connection to route to; lifecycle events still
// reach in-process listeners through the global emitter.
type httpBridge struct{}

func (httpBridge) SendLifecycleEvent(ctx context.Context, clientID string, ev event.Event) error {
	return nil
}

// ChatHandler serves the HTTP chat route on top of the core supervisor
// factory.
type ChatHandler struct {
	state  *ws.AppState
	logger *slog.Logger
}

func NewChatHandler(state *ws.AppState) *ChatHandler {
	return &ChatHandler{
		state:  state,
		logger: utils.GetLogger(),
	}
}

// HandleChat runs one chat turn and streams deltas as SSE events.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "Invalid request format"})
		return
	}
	if req.Message.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "message": "Message content required"})
		return
	}

	userID := UserID(c)
	chatStore := h.state.Primary.ChatStore

	conv, err := h.resolveConversation(userID, &req)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": 404, "message": "Conversation not found"})
		return
	}

	session := execution.NewRequestSession(h.state.DB.Session(&gorm.Session{NewDB: true}))
	execCtx, err := execution.NewContext(userID, conv.ThreadID, "", "", session)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": err.Error()})
		return
	}

	toolIDs := make([]tools.ToolID, 0, len(req.ToolIDs))
	for _, id := range req.ToolIDs {
		toolIDs = append(toolIDs, tools.ToolID(id))
	}
	if len(toolIDs) == 0 {
		toolIDs = ws.DefaultToolIDs
	}

	// The HTTP path exercises deferred wiring: tools are resolved on the
	// supervisor's first run.
	agent, err := supervisor.Create(supervisor.Options{
		Execution: execCtx,
		Bridge:    httpBridge{},
		ModelID:   req.ModelID,
		Wiring:    supervisor.PendingWiring(toolIDs...),
		ChatStore: chatStore,
		Memory:    h.state.Primary.Memory,
	})
	if err != nil {
		h.logger.Error("failed to create supervisor", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "message": "Failed to create supervisor"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	flush := func(name string, payload interface{}) {
		c.SSEvent(name, payload)
		c.Writer.Flush()
	}

	final, err := agent.Run(c.Request.Context(), &supervisor.RunRequest{
		ConversationID: conv.ID,
		Content:        req.Message.Content,
		ModelID:        req.ModelID,
	}, func(delta *supervisor.ChatDelta) {
		flush("delta", delta)
	})
	if err != nil {
		h.logger.Error("chat run failed", "user_id", userID, "conversation_id", conv.ID, "error", err)
		flush("error", api.ErrorPayload{Message: err.Error()})
		return
	}

	flush("done", api.ChatResponse{
		ConversationID: conv.ID,
		MessageID:      final.ID,
		RunID:          execCtx.RunID,
	})
}

// resolveConversation finds the target conversation or creates one for a
// fresh thread.
func (h *ChatHandler) resolveConversation(userID string, req *api.ChatRequest) (conv *conversationRef, err error) {
	chatStore := h.state.Primary.ChatStore

	if req.ConversationID != "" {
		c, err := chatStore.GetConversation(userID, req.ConversationID)
		if err != nil {
			return nil, err
		}
		return &conversationRef{ID: c.ID, ThreadID: c.ThreadID}, nil
	}
	if req.ThreadID != "" {
		if c, err := chatStore.GetConversationByThread(userID, req.ThreadID); err == nil {
			return &conversationRef{ID: c.ID, ThreadID: c.ThreadID}, nil
		}
	}

	created, err := chatStore.CreateConversation(userID, req.ThreadID, "", req.ModelID)
	if err != nil {
		return nil, err
	}
	event.Emit(event.ConversationCreatedEvent{ConversationID: created.ID, UserID: userID})
	return &conversationRef{ID: created.ID, ThreadID: created.ThreadID}, nil
}

type conversationRef struct {
	ID       string
	ThreadID string
}
