// WebSocket chat surface: one supervisor per incoming message, cleanup on
// disconnect.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/cadenza-chat/cadenza/pkg/api"
	"github.com/cadenza-chat/cadenza/pkg/event"
	"github.com/cadenza-chat/cadenza/pkg/supervisor"
	"github.com/cadenza-chat/cadenza/pkg/tools"
	"github.com/cadenza-chat/cadenza/pkg/utils"
	"github.com/cadenza-chat/cadenza/pkg/ws"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// WSChatHandler upgrades chat WebSocket connections and drives the
// per-message supervisor lifecycle.
type WSChatHandler struct {
	upgrader *websocket.Upgrader
	factory  *ws.ConnectionFactory

	// presence is nil when no redis address is configured.
	presence *ws.PresenceStore

	pongWait   time.Duration
	pingPeriod time.Duration

	logger *slog.Logger
}

func NewWSChatHandler(upgrader *websocket.Upgrader, factory *ws.ConnectionFactory, presence *ws.PresenceStore) *WSChatHandler {
	return &WSChatHandler{
		upgrader:   upgrader,
		factory:    factory,
		presence:   presence,
		pongWait:   wsPongWait,
		pingPeriod: wsPingPeriod,
		logger:     utils.GetLogger(),
	}
}

// HandleChatWS serves GET /api/ws.
func (h *WSChatHandler) HandleChatWS(c *gin.Context) {
	userID := UserID(c)
	threadID := c.Query("thread_id")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	wsCtx, err := ws.NewContext(conn, "", userID, threadID, "")
	if err != nil {
		// Only possible without a thread id; generate one instead of
		// rejecting the connection.
		wsCtx, err = ws.NewContext(conn, "", userID, "thread_"+userID, "")
		if err != nil {
			h.logger.Error("failed to build connection context", "user_id", userID, "error", err)
			conn.Close()
			return
		}
	}
	bridge := ws.NewBridge(conn)

	h.logger.Info("chat connection opened", "connection_id", wsCtx.ConnectionID, "user_id", userID)
	event.Emit(event.ConnectionOpenedEvent{ConnectionID: wsCtx.ConnectionID, UserID: userID})
	h.presence.ConnectionOpened(c.Request.Context(), wsCtx.ConnectionID, userID)

	// Cleanup runs exactly once, regardless of how the read loop exits.
	defer func() {
		wsCtx.MarkClosed()
		conn.Close()
		h.factory.CleanupTable().Cleanup(wsCtx.ConnectionID)
		h.presence.ConnectionClosed(context.Background(), wsCtx.ConnectionID)
		event.Emit(event.ConnectionClosedEvent{ConnectionID: wsCtx.ConnectionID, UserID: userID})
		h.logger.Info("chat connection closed", "connection_id", wsCtx.ConnectionID, "user_id", userID)
	}()

	bridge.Send(c.Request.Context(), api.EnvelopeSession, api.SessionPayload{
		ConnectionID: wsCtx.ConnectionID,
		UserID:       userID,
		ThreadID:     wsCtx.ThreadID,
	})

	conn.SetReadDeadline(time.Now().Add(h.pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.pongWait))
		wsCtx.Touch()
		h.presence.Refresh(c.Request.Context(), wsCtx.ConnectionID)
		return nil
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go h.pingLoop(conn, stopPing)

	for {
		var env api.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "connection_id", wsCtx.ConnectionID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(h.pongWait))
		wsCtx.Touch()

		switch env.Type {
		case api.EnvelopePing:
			bridge.Send(c.Request.Context(), api.EnvelopePong, nil)
		case api.EnvelopeChat:
			h.handleChatMessage(c, wsCtx, bridge, env.Payload)
		default:
			bridge.Send(c.Request.Context(), api.EnvelopeError, api.ErrorPayload{
				Code:    "unknown_type",
				Message: "unknown envelope type: " + env.Type,
			})
		}

		// A chat turn runs synchronously in this loop and can outlive the
		// deadline set before it started; pongs queue unread meanwhile. Reset
		// so a long turn does not kill a live connection on the next read.
		conn.SetReadDeadline(time.Now().Add(h.pongWait))
	}
}

// handleChatMessage creates a fresh supervisor for one chat envelope and
// streams the reply back over the connection.
func (h *WSChatHandler) handleChatMessage(c *gin.Context, wsCtx *ws.Context, bridge *ws.Bridge, payload json.RawMessage) {
	ctx := c.Request.Context()

	var req api.ChatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		bridge.Send(ctx, api.EnvelopeError, api.ErrorPayload{Code: "bad_payload", Message: "invalid chat payload"})
		return
	}
	if req.ConversationID == "" {
		bridge.Send(ctx, api.EnvelopeError, api.ErrorPayload{Code: "bad_payload", Message: "conversation_id required"})
		return
	}

	toolIDs := make([]tools.ToolID, 0, len(req.ToolIDs))
	for _, id := range req.ToolIDs {
		toolIDs = append(toolIDs, tools.ToolID(id))
	}

	agent, err := h.factory.CreateForConnection(ctx, wsCtx, ws.CreateOptions{
		Override: &ws.Collaborators{Bridge: bridge},
		ModelID:  req.ModelID,
		ToolIDs:  toolIDs,
	})
	if err != nil {
		h.logger.Error("failed to create supervisor", "connection_id", wsCtx.ConnectionID, "error", err)
		bridge.Send(ctx, api.EnvelopeError, api.ErrorPayload{Code: "create_failed", Message: err.Error()})
		return
	}

	final, err := agent.Run(ctx, &supervisor.RunRequest{
		ConversationID: req.ConversationID,
		Content:        req.Message.Content,
		ModelID:        req.ModelID,
	}, func(delta *supervisor.ChatDelta) {
		bridge.Send(ctx, api.EnvelopeMessage, delta)
	})
	if err != nil {
		bridge.Send(ctx, api.EnvelopeError, api.ErrorPayload{Code: "run_failed", Message: err.Error()})
		return
	}

	bridge.Send(ctx, api.EnvelopeComplete, api.ChatResponse{
		ConversationID: req.ConversationID,
		MessageID:      final.ID,
		RunID:          agent.Execution().RunID,
	})
}

func (h *WSChatHandler) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
