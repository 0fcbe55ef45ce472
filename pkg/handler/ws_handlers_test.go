package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"
	toolutils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/cadenza-chat/cadenza/pkg/api"
	"github.com/cadenza-chat/cadenza/pkg/db"
	"github.com/cadenza-chat/cadenza/pkg/service"
	"github.com/cadenza-chat/cadenza/pkg/tools"
	"github.com/cadenza-chat/cadenza/pkg/ws"
)

var registerSlowTool sync.Once

// A tool whose construction outlasts the test's shortened pong window, so a
// chat turn occupies the read loop longer than one keepalive interval.
func ensureSlowTool() {
	registerSlowTool.Do(func() {
		tools.Register(tools.ToolDefinition{
			ID:       "slow_lookup",
			Name:     "slow_lookup",
			Category: tools.CategoryDatabase,
		}, func(tc *tools.ToolContext) einotool.InvokableTool {
			time.Sleep(600 * time.Millisecond)
			return toolutils.NewTool(&schema.ToolInfo{
				Name: "slow_lookup",
				Desc: "slow external lookup",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"q": {Type: schema.String},
				}),
			}, func(ctx context.Context, input *struct {
				Q string `json:"q"`
			}) (string, error) {
				return input.Q, nil
			})
		})
	})
}

func newChatWSServer(t *testing.T, pongWait time.Duration) *httptest.Server {
	t.Helper()

	database, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	chatStore := service.NewChatStoreService(database)
	state := &ws.AppState{DB: database, Primary: &ws.Collaborators{ChatStore: chatStore}}
	factory := ws.NewConnectionFactory(state, ws.NewCleanupTable())

	upgrader := &websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	h := NewWSChatHandler(upgrader, factory, nil)
	h.pongWait = pongWait

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", h.HandleChatWS)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialChatWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestChatWS_ConnectionSurvivesSlowTurn(t *testing.T) {
	ensureSlowTool()
	srv := newChatWSServer(t, 200*time.Millisecond)
	conn := dialChatWS(t, srv)

	var session ws.Envelope
	if err := conn.ReadJSON(&session); err != nil {
		t.Fatalf("read session frame: %v", err)
	}
	if session.Type != api.EnvelopeSession {
		t.Fatalf("expected session frame, got %q", session.Type)
	}

	chat, err := json.Marshal(api.ChatRequest{
		ConversationID: "missing",
		Message:        schema.Message{Role: schema.User, Content: "hi"},
		ToolIDs:        []string{"slow_lookup"},
	})
	if err != nil {
		t.Fatalf("marshal chat: %v", err)
	}
	if err := conn.WriteJSON(api.Envelope{Type: api.EnvelopeChat, Payload: chat}); err != nil {
		t.Fatalf("write chat: %v", err)
	}

	// The turn takes ~600ms (tool construction), far past the 200ms read
	// deadline set before it started, then fails fast on the unknown
	// conversation.
	var errFrame ws.Envelope
	if err := conn.ReadJSON(&errFrame); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if errFrame.Type != api.EnvelopeError {
		t.Fatalf("expected error frame, got %q", errFrame.Type)
	}

	// The connection must still be serviceable after the long turn.
	if err := conn.WriteJSON(api.Envelope{Type: api.EnvelopePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong ws.Envelope
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("connection dead after long turn: %v", err)
	}
	if pong.Type != api.EnvelopePong {
		t.Fatalf("expected pong frame, got %q", pong.Type)
	}
}
