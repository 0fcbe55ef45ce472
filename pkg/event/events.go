package event

// ============================================================================
// Event Names (constants)
// ============================================================================

const (
	RunStarted          = "run.started"
	RunCompleted        = "run.completed"
	RunFailed           = "run.failed"
	AgentStep           = "agent.step"
	AgentTransfer       = "agent.transfer"
	ToolCallStarted     = "tool.callStarted"
	ToolCallCompleted   = "tool.callCompleted"
	ConnectionOpened    = "connection.opened"
	ConnectionClosed    = "connection.closed"
	ConversationCreated = "conversation.created"
	ConversationDeleted = "conversation.deleted"
	MemoryStored        = "memory.stored"
)

// ============================================================================
// Run Events
// ============================================================================

// RunStartedEvent is emitted when a supervisor run begins.
type RunStartedEvent struct {
	RunID          string `json:"run_id"`
	UserID         string `json:"user_id"`
	ThreadID       string `json:"thread_id"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (e RunStartedEvent) EventName() string { return RunStarted }

// RunCompletedEvent is emitted when a supervisor run finishes.
type RunCompletedEvent struct {
	RunID    string `json:"run_id"`
	ThreadID string `json:"thread_id"`
}

func (e RunCompletedEvent) EventName() string { return RunCompleted }

// RunFailedEvent is emitted when a supervisor run ends with an error.
type RunFailedEvent struct {
	RunID    string `json:"run_id"`
	ThreadID string `json:"thread_id"`
	Error    string `json:"error"`
}

func (e RunFailedEvent) EventName() string { return RunFailed }

// ============================================================================
// Agent Events
// ============================================================================

// AgentStepEvent is emitted when an agent in the supervisor tree produces output.
type AgentStepEvent struct {
	RunID     string `json:"run_id"`
	AgentName string `json:"agent_name"`
}

func (e AgentStepEvent) EventName() string { return AgentStep }

// AgentTransferEvent is emitted when the supervisor hands work to a sub-agent.
type AgentTransferEvent struct {
	RunID string `json:"run_id"`
	From  string `json:"from"`
	To    string `json:"to"`
}

func (e AgentTransferEvent) EventName() string { return AgentTransfer }

// ============================================================================
// Tool Events
// ============================================================================

// ToolCallStartedEvent is emitted when an agent invokes a tool.
type ToolCallStartedEvent struct {
	RunID    string `json:"run_id"`
	ToolName string `json:"tool_name"`
	CallID   string `json:"call_id"`
}

func (e ToolCallStartedEvent) EventName() string { return ToolCallStarted }

// ToolCallCompletedEvent is emitted when a tool call returns.
type ToolCallCompletedEvent struct {
	RunID    string `json:"run_id"`
	ToolName string `json:"tool_name"`
	CallID   string `json:"call_id"`
	Success  bool   `json:"success"`
}

func (e ToolCallCompletedEvent) EventName() string { return ToolCallCompleted }

// ============================================================================
// Connection Events
// ============================================================================

// ConnectionOpenedEvent is emitted when a chat WebSocket connects.
type ConnectionOpenedEvent struct {
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
}

func (e ConnectionOpenedEvent) EventName() string { return ConnectionOpened }

// ConnectionClosedEvent is emitted after a chat WebSocket disconnects and
// its per-connection state is released.
type ConnectionClosedEvent struct {
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
}

func (e ConnectionClosedEvent) EventName() string { return ConnectionClosed }

// ============================================================================
// Conversation Events
// ============================================================================

// ConversationCreatedEvent is emitted when a conversation is created.
type ConversationCreatedEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

func (e ConversationCreatedEvent) EventName() string { return ConversationCreated }

// ConversationDeletedEvent is emitted when a conversation is deleted.
type ConversationDeletedEvent struct {
	ConversationID string `json:"conversation_id"`
}

func (e ConversationDeletedEvent) EventName() string { return ConversationDeleted }

// ============================================================================
// Memory Events
// ============================================================================

// MemoryStoredEvent is emitted when a memory record is stored.
type MemoryStoredEvent struct {
	MemoryID string `json:"memory_id"`
	UserID   string `json:"user_id"`
}

func (e MemoryStoredEvent) EventName() string { return MemoryStored }
