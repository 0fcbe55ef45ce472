// Package execution defines the per-execution identity and resource bundle
// that scopes all supervisor work to exactly one user, thread and run.
package execution

import (
	"fmt"

	"github.com/google/uuid"
)

// Context carries the identity fields and scoped resources for one logical
// execution: one HTTP request or one WebSocket message-processing cycle.
// Exactly one Context exists per execution; it is never cached or shared
// across users.
type Context struct {
	UserID   string
	ThreadID string
	RunID    string

	// WebSocketClientID is set only for WebSocket-originated executions and
	// carries the originating connection's id. Lifecycle events are routed
	// back to the connection through it.
	WebSocketClientID string

	// Session is the request-scoped database handle. Its lifetime is owned
	// by the caller, never by this context or the supervisor.
	Session *Session
}

// NewContext builds a Context for one execution. UserID and ThreadID are
// required; RunID is generated when empty. WebSocketClientID may be empty for
// HTTP-originated executions.
func NewContext(userID, threadID, runID, websocketClientID string, session *Session) (*Context, error) {
	if userID == "" {
		return nil, fmt.Errorf("execution context requires a user id")
	}
	if threadID == "" {
		return nil, fmt.Errorf("execution context requires a thread id")
	}
	if session == nil {
		return nil, fmt.Errorf("execution context requires a database session")
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Context{
		UserID:            userID,
		ThreadID:          threadID,
		RunID:             runID,
		WebSocketClientID: websocketClientID,
		Session:           session,
	}, nil
}

// IsolationKey combines user, thread and run into the logical partition key
// for per-execution auxiliary state.
func (c *Context) IsolationKey() string {
	return fmt.Sprintf("%s:%s:%s", c.UserID, c.ThreadID, c.RunID)
}
