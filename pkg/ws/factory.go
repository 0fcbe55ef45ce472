package ws

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/cadenza-chat/cadenza/pkg/execution"
	"github.com/cadenza-chat/cadenza/pkg/supervisor"
	"github.com/cadenza-chat/cadenza/pkg/tools"
	"github.com/cadenza-chat/cadenza/pkg/utils"
)

// DefaultToolIDs is the tool set wired into a connection's supervisors when
// the caller does not choose one.
var DefaultToolIDs = []tools.ToolID{
	"memory_store", "memory_recall", "memory_forget",
	"conversation_list", "conversation_history", "conversation_search",
	"mysql_query", "postgres_query", "redis_keys",
}

// ConnectionFactory creates one supervisor per incoming chat message, scoped
// to the originating connection, and tracks the connection-scoped state it
// creates for later cleanup.
type ConnectionFactory struct {
	state   *AppState
	cleanup *CleanupTable
	logger  *slog.Logger
}

// NewConnectionFactory builds a factory over the application's collaborator
// configuration and cleanup table.
func NewConnectionFactory(state *AppState, cleanup *CleanupTable) *ConnectionFactory {
	return &ConnectionFactory{
		state:   state,
		cleanup: cleanup,
		logger:  utils.GetLogger(),
	}
}

// CleanupTable returns the factory's cleanup table.
func (f *ConnectionFactory) CleanupTable() *CleanupTable {
	return f.cleanup
}

// CreateOptions tune one supervisor creation.
type CreateOptions struct {
	// Override is checked before app state when resolving collaborators.
	Override *Collaborators

	// ModelID overrides the conversation's stored model.
	ModelID string

	// ToolIDs selects the tools; DefaultToolIDs when empty.
	ToolIDs []tools.ToolID
}

// CreateForConnection builds a supervisor for one message on one connection.
// It validates the connection, derives a per-message execution context with
// the connection id as the websocket client id, resolves collaborators
// through the ordered chain, builds the per-user dispatcher, and registers
// the dispatcher's registry for cleanup on disconnect.
func (f *ConnectionFactory) CreateForConnection(ctx context.Context, wsCtx *Context, opts CreateOptions) (*supervisor.SupervisorAgent, error) {
	if err := wsCtx.ValidateForMessageProcessing(); err != nil {
		return nil, err
	}

	if f.state == nil || f.state.DB == nil {
		return nil, fmt.Errorf("connection factory has no database configured")
	}

	// One fresh run per message; the connection id routes events back.
	session := execution.NewRequestSession(f.state.DB.Session(&gorm.Session{NewDB: true}))
	execCtx, err := execution.NewContext(wsCtx.UserID, wsCtx.ThreadID, "", wsCtx.ConnectionID, session)
	if err != nil {
		return nil, fmt.Errorf("derive execution context: %w", err)
	}

	res := newResolution(opts.Override, f.state.Primary, f.state.Fallback)

	chatStore, err := res.chatStore()
	if err != nil {
		return nil, err
	}
	bridge, err := res.bridge()
	if err != nil {
		return nil, err
	}
	memory := res.memory()

	toolIDs := opts.ToolIDs
	if len(toolIDs) == 0 {
		toolIDs = DefaultToolIDs
	}

	tc := tools.NewToolContext(execCtx).
		WithBridge(bridge).
		WithChatStore(chatStore).
		WithMemory(memory)
	dispatcher, err := tools.NewDispatcher(ctx, tc, toolIDs)
	if err != nil {
		return nil, fmt.Errorf("build connection dispatcher: %w", err)
	}

	agent, err := supervisor.Create(supervisor.Options{
		Execution: execCtx,
		Bridge:    bridge,
		LLM:       res.llmManager(),
		ModelID:   opts.ModelID,
		Wiring:    supervisor.ReadyWiring(dispatcher),
		ChatStore: chatStore,
		Memory:    memory,
	})
	if err != nil {
		return nil, err
	}

	// Registered only after the supervisor is fully built, so nothing
	// partially constructed is ever visible to cleanup.
	f.cleanup.Track(wsCtx.ConnectionID, dispatcher.Registry())
	wsCtx.Touch()

	f.logger.Debug("supervisor created for connection",
		"connection_id", wsCtx.ConnectionID,
		"user_id", wsCtx.UserID,
		"run_id", execCtx.RunID)
	return agent, nil
}
