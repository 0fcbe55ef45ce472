// Package ws owns per-connection chat state: the connection context, the
// supervisor-per-message factory and the cleanup table that releases
// connection-scoped registries on disconnect.
package ws

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Conn is the transport surface the chat layer needs from a WebSocket
// connection. *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// ClientError is a fault attributable to the client's connection, not the
// server. It always names the connection so operators can line up logs with
// client reports.
type ClientError struct {
	ConnectionID string
	Reason       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("connection %s: %s", e.ConnectionID, e.Reason)
}

// Context is the identity and liveness state of one chat WebSocket
// connection. One Context exists per connection; supervisors are created per
// message against it.
type Context struct {
	ConnectionID string
	Conn         Conn
	UserID       string
	ThreadID     string
	RunID        string
	ConnectedAt  time.Time

	closed atomic.Bool

	mu           sync.Mutex
	lastActivity time.Time
}

// NewContext builds the context for one accepted connection. ConnectionID and
// RunID are generated when absent; UserID, ThreadID and the transport handle
// are required.
func NewContext(conn Conn, connectionID, userID, threadID, runID string) (*Context, error) {
	if conn == nil {
		return nil, fmt.Errorf("websocket context requires a transport handle")
	}
	if userID == "" {
		return nil, fmt.Errorf("websocket context requires a user id")
	}
	if threadID == "" {
		return nil, fmt.Errorf("websocket context requires a thread id")
	}
	if connectionID == "" {
		connectionID = fmt.Sprintf("ws_%s_%d_%s", userID, time.Now().UnixMilli(), uuid.NewString()[:8])
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	now := time.Now()
	return &Context{
		ConnectionID: connectionID,
		Conn:         conn,
		UserID:       userID,
		ThreadID:     threadID,
		RunID:        runID,
		ConnectedAt:  now,
		lastActivity: now,
	}, nil
}

// IsActive reports whether the connection can still carry messages. Fails
// closed: a nil context or missing transport is inactive.
func (c *Context) IsActive() bool {
	if c == nil || c.Conn == nil {
		return false
	}
	return !c.closed.Load()
}

// MarkClosed flags the connection as gone. Subsequent IsActive calls report
// false regardless of the transport's state.
func (c *Context) MarkClosed() {
	c.closed.Store(true)
}

// Touch records activity on the connection.
func (c *Context) Touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// LastActivity returns the time of the most recent activity.
func (c *Context) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// ValidateForMessageProcessing checks the connection is fit to process a chat
// message. Every failure is a client error naming the connection.
func (c *Context) ValidateForMessageProcessing() error {
	if c == nil {
		return &ClientError{ConnectionID: "unknown", Reason: "no connection context"}
	}
	if !c.IsActive() {
		return &ClientError{ConnectionID: c.ConnectionID, Reason: "connection is not active"}
	}
	if c.UserID == "" || c.ThreadID == "" || c.RunID == "" {
		return &ClientError{ConnectionID: c.ConnectionID, Reason: "connection is missing identity fields"}
	}
	return nil
}

// IsolationKey mirrors the execution context's partition key.
func (c *Context) IsolationKey() string {
	return fmt.Sprintf("%s:%s:%s", c.UserID, c.ThreadID, c.RunID)
}
