// Package api defines the request/response payloads shared by the HTTP and
// WebSocket chat surfaces.
package api

import (
	"encoding/json"

	"github.com/cloudwego/eino/schema"
)

// ChatRequest is the body of POST /api/chat and of WebSocket "chat" envelopes.
type ChatRequest struct {
	ConversationID string         `json:"conversation_id"`
	MessageID      string         `json:"message_id"`
	ParentID       string         `json:"parent_id,omitempty"`
	ThreadID       string         `json:"thread_id,omitempty"`
	Message        schema.Message `json:"message"`
	ModelID        string         `json:"model_id,omitempty"`
	ToolIDs        []string       `json:"tool_ids,omitempty"`
}

// ChatResponse carries one assistant chunk or message back to the client.
type ChatResponse struct {
	ConversationID string         `json:"conversation_id"`
	MessageID      string         `json:"message_id"`
	ParentID       string         `json:"parent_id,omitempty"`
	RunID          string         `json:"run_id,omitempty"`
	Message        schema.Message `json:"message"`
}

// Envelope is the WebSocket message frame: a type tag plus a raw payload.
// Chat payloads decode into ChatRequest; lifecycle payloads are event-specific.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope types sent by clients.
const (
	EnvelopeChat = "chat"
	EnvelopePing = "ping"
)

// Envelope types sent by the server.
const (
	EnvelopeSession   = "session"
	EnvelopeLifecycle = "lifecycle"
	EnvelopeMessage   = "message"
	EnvelopeError     = "error"
	EnvelopeComplete  = "complete"
	EnvelopePong      = "pong"
)

// ErrorPayload is the payload of an "error" envelope.
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// SessionPayload is sent once on connect so the client learns its identifiers.
type SessionPayload struct {
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
	ThreadID     string `json:"thread_id"`
}
