package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/cadenza-chat/cadenza/pkg/db"
	"github.com/cadenza-chat/cadenza/pkg/event"
	"github.com/cadenza-chat/cadenza/pkg/execution"
	"github.com/cadenza-chat/cadenza/pkg/llm"
	"github.com/cadenza-chat/cadenza/pkg/service"
	"github.com/cadenza-chat/cadenza/pkg/tools"
)

// Agent names in the supervisor tree.
const (
	supervisorName = "Supervisor"
	triageName     = "Triage"
	dataName       = "Data"
	actionsName    = "Actions"
)

const supervisorInstruction = `You are the supervisor of a small team of assistants.
Route each user request to the agent best suited to handle it:
- Triage: clarify ambiguous requests and answer simple questions directly.
- Data: look up stored memories and past conversations.
- Actions: query external databases (MySQL, PostgreSQL, Redis).
Delegate, collect the results, and compose the final answer yourself.`

const triageInstruction = `You classify and answer simple requests.
If a request needs stored data or external systems, say so and hand it back.`

const dataInstruction = `You retrieve the user's stored memories and conversation history.
Use your tools; never invent data you did not retrieve.`

const actionsInstruction = `You run queries against external databases on the user's behalf.
Prefer read-only queries; state clearly when a command modifies data.`

// SupervisorAgent is a per-execution multi-agent orchestrator. It is built by
// Create, belongs to exactly one execution context, and must not be reused
// for a different user or connection.
type SupervisorAgent struct {
	execution *execution.Context
	bridge    event.Bridge
	llm       *llm.Manager
	modelID   string
	chatStore *service.ChatStoreService
	memory    *service.MemoryService

	// Tool wiring. A pending wiring is resolved exactly once, on first Run.
	mu             sync.Mutex
	dispatcher     *tools.Dispatcher
	pendingToolIDs []tools.ToolID
	wired          bool

	logger *slog.Logger
}

// Execution returns the execution context this supervisor is bound to.
func (a *SupervisorAgent) Execution() *execution.Context {
	return a.execution
}

// Dispatcher returns the tool dispatcher, or nil while wiring is pending.
func (a *SupervisorAgent) Dispatcher() *tools.Dispatcher {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dispatcher
}

// resolveTools turns a pending wiring into a live dispatcher. Runs at most
// once; concurrent callers see either nothing or the fully built dispatcher.
func (a *SupervisorAgent) resolveTools(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.wired {
		return nil
	}

	tc := tools.NewToolContext(a.execution).
		WithBridge(a.bridge).
		WithChatStore(a.chatStore).
		WithMemory(a.memory)

	d, err := tools.NewDispatcher(ctx, tc, a.pendingToolIDs)
	if err != nil {
		return fmt.Errorf("resolve tool wiring: %w", err)
	}

	a.dispatcher = d
	a.wired = true
	a.logger.Debug("tool wiring resolved", "run_id", a.execution.RunID, "tools", len(a.pendingToolIDs))
	return nil
}

// RunRequest is one user turn.
type RunRequest struct {
	ConversationID string
	Content        string

	// ModelID overrides the supervisor's and the conversation's model.
	ModelID string
}

// ChatDelta is one streamed increment of the assistant's reply.
type ChatDelta struct {
	MessageID        string             `json:"message_id"`
	Role             string             `json:"role,omitempty"`
	AgentName        string             `json:"agent_name,omitempty"`
	Content          string             `json:"content,omitempty"`
	ReasoningContent string             `json:"reasoning_content,omitempty"`
	ToolCalls        []db.ToolCallRecord `json:"tool_calls,omitempty"`
	ToolCallID       string             `json:"tool_call_id,omitempty"`
	FinishReason     string             `json:"finish_reason,omitempty"`
}

// ChunkHandler receives streamed deltas. May be nil when the caller only
// wants the final message.
type ChunkHandler func(delta *ChatDelta)

// Run executes one user turn through the supervisor tree, streaming deltas
// to onChunk and lifecycle events to the bridge, and persisting everything
// through the chat store.
func (a *SupervisorAgent) Run(ctx context.Context, req *RunRequest, onChunk ChunkHandler) (*db.Message, error) {
	if err := a.resolveTools(ctx); err != nil {
		return nil, err
	}
	if onChunk == nil {
		onChunk = func(*ChatDelta) {}
	}

	conv, err := a.chatStore.GetConversation(a.execution.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = a.modelID
	}
	if modelID == "" {
		modelID = conv.ModelID
	}
	if modelID == "" {
		return nil, service.ErrModelNotConfigured
	}

	// Persist the user turn before building history so it is part of it.
	userMsg := &db.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           string(schema.User),
		Content:        req.Content,
		RunID:          a.execution.RunID,
		Status:         db.MessageStatusCompleted,
	}
	if err := a.chatStore.SaveMessage(userMsg); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	history, err := a.chatStore.SchemaHistory(conv.ID)
	if err != nil {
		return nil, fmt.Errorf("build history: %w", err)
	}

	chatModel, err := a.llm.ResolveChatModel(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("resolve chat model: %w", err)
	}

	tree, err := a.buildAgentTree(ctx, chatModel)
	if err != nil {
		return nil, fmt.Errorf("build agent tree: %w", err)
	}

	a.emit(ctx, event.RunStartedEvent{
		RunID:          a.execution.RunID,
		UserID:         a.execution.UserID,
		ThreadID:       a.execution.ThreadID,
		ConversationID: conv.ID,
	})

	assistantMsg := &db.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           string(schema.Assistant),
		RunID:          a.execution.RunID,
		Status:         db.MessageStatusStreaming,
	}
	if err := a.chatStore.SaveMessage(assistantMsg); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	onChunk(&ChatDelta{MessageID: assistantMsg.ID, Role: string(schema.Assistant)})

	final, err := a.consume(ctx, tree.Run(ctx, &adk.AgentInput{Messages: history, EnableStreaming: true}), conv, assistantMsg, onChunk)
	if err != nil {
		a.recordRunFailure(ctx, assistantMsg.ID, err)
		return final, err
	}

	a.chatStore.TouchConversation(conv.ID)
	a.emit(ctx, event.RunCompletedEvent{
		RunID:    a.execution.RunID,
		ThreadID: a.execution.ThreadID,
	})
	onChunk(&ChatDelta{MessageID: final.ID, FinishReason: "stop"})
	return final, nil
}

// recordRunFailure marks the assistant message failed and emits the failure
// event. Cancellations are not failures: consume has already finalized the
// partial message as completed/"cancelled", so that status must survive.
func (a *SupervisorAgent) recordRunFailure(ctx context.Context, messageID string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	a.chatStore.UpdateMessageStatus(messageID, db.MessageStatusError, "error")
	a.emit(ctx, event.RunFailedEvent{
		RunID:    a.execution.RunID,
		ThreadID: a.execution.ThreadID,
		Error:    err.Error(),
	})
}

// consume drains the agent event iterator, streaming and persisting as it
// goes. Returns the finalized assistant message.
func (a *SupervisorAgent) consume(ctx context.Context, iter *adk.AsyncIterator[*adk.AgentEvent], conv *db.Conversation, assistantMsg *db.Message, onChunk ChunkHandler) (*db.Message, error) {
	for {
		select {
		case <-ctx.Done():
			a.chatStore.UpdateMessageStatus(assistantMsg.ID, db.MessageStatusCompleted, "cancelled")
			return assistantMsg, ctx.Err()
		default:
		}

		part, ok := iter.Next()
		if !ok {
			break
		}
		if part.Err != nil {
			a.logger.Error("agent iteration error", "run_id", a.execution.RunID, "error", part.Err)
			return assistantMsg, fmt.Errorf("agent error: %w", part.Err)
		}

		if part.Action != nil && part.Action.TransferToAgent != nil {
			a.emit(ctx, event.AgentTransferEvent{
				RunID: a.execution.RunID,
				From:  part.AgentName,
				To:    part.Action.TransferToAgent.DestAgentName,
			})
			continue
		}

		if part.Output == nil || part.Output.MessageOutput == nil {
			continue
		}

		a.emit(ctx, event.AgentStepEvent{RunID: a.execution.RunID, AgentName: part.AgentName})

		switch part.Output.MessageOutput.Role {
		case schema.Tool:
			if err := a.consumeToolResult(ctx, part, conv, assistantMsg, onChunk); err != nil {
				return assistantMsg, err
			}
		case schema.Assistant:
			if err := a.consumeAssistant(ctx, part, assistantMsg, onChunk); err != nil {
				return assistantMsg, err
			}
		}
	}

	if assistantMsg.Status != db.MessageStatusCompleted {
		assistantMsg.Status = db.MessageStatusCompleted
		assistantMsg.FinishReason = "stop"
		if err := a.chatStore.SaveMessage(assistantMsg); err != nil {
			return assistantMsg, fmt.Errorf("finalize assistant message: %w", err)
		}
	}
	return assistantMsg, nil
}

func (a *SupervisorAgent) consumeToolResult(ctx context.Context, part *adk.AgentEvent, conv *db.Conversation, assistantMsg *db.Message, onChunk ChunkHandler) error {
	fullMsg, err := part.Output.MessageOutput.GetMessage()
	if err != nil {
		a.logger.Error("failed to read tool result", "run_id", a.execution.RunID, "error", err)
		return nil
	}

	a.emit(ctx, event.ToolCallCompletedEvent{
		RunID:    a.execution.RunID,
		ToolName: fullMsg.ToolName,
		CallID:   fullMsg.ToolCallID,
		Success:  true,
	})

	// Tool results are their own rows so SchemaHistory can pair them with
	// the assistant's tool calls later.
	toolMsg := &db.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Role:           string(schema.Tool),
		Content:        fullMsg.Content,
		ToolCallID:     fullMsg.ToolCallID,
		AgentName:      part.AgentName,
		RunID:          a.execution.RunID,
		Status:         db.MessageStatusCompleted,
	}
	if err := a.chatStore.SaveMessage(toolMsg); err != nil {
		return fmt.Errorf("save tool result: %w", err)
	}

	onChunk(&ChatDelta{
		MessageID:  assistantMsg.ID,
		Role:       string(schema.Tool),
		AgentName:  part.AgentName,
		Content:    fullMsg.Content,
		ToolCallID: fullMsg.ToolCallID,
	})
	return nil
}

func (a *SupervisorAgent) consumeAssistant(ctx context.Context, part *adk.AgentEvent, assistantMsg *db.Message, onChunk ChunkHandler) error {
	var chunks []*schema.Message

	if stream := part.Output.MessageOutput.MessageStream; stream != nil {
		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				a.logger.Error("agent stream error", "run_id", a.execution.RunID, "error", err)
				return fmt.Errorf("stream error: %w", err)
			}
			chunks = append(chunks, chunk)

			if chunk.Content != "" {
				onChunk(&ChatDelta{MessageID: assistantMsg.ID, AgentName: part.AgentName, Content: chunk.Content})
			}
			if chunk.ReasoningContent != "" {
				onChunk(&ChatDelta{MessageID: assistantMsg.ID, AgentName: part.AgentName, ReasoningContent: chunk.ReasoningContent})
			}
		}
	} else if msg, err := part.Output.MessageOutput.GetMessage(); err == nil {
		chunks = append(chunks, msg)
		if msg.Content != "" {
			onChunk(&ChatDelta{MessageID: assistantMsg.ID, AgentName: part.AgentName, Content: msg.Content})
		}
	}

	if len(chunks) == 0 {
		return nil
	}

	streamed, err := schema.ConcatMessages(chunks)
	if err != nil {
		return fmt.Errorf("concat messages: %w", err)
	}

	assistantMsg.Content += streamed.Content
	assistantMsg.AgentName = part.AgentName

	if len(streamed.ToolCalls) > 0 {
		for _, tc := range streamed.ToolCalls {
			record := db.ToolCallRecord{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
			assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, record)

			a.emit(ctx, event.ToolCallStartedEvent{
				RunID:    a.execution.RunID,
				ToolName: tc.Function.Name,
				CallID:   tc.ID,
			})
			onChunk(&ChatDelta{
				MessageID: assistantMsg.ID,
				AgentName: part.AgentName,
				ToolCalls: []db.ToolCallRecord{record},
			})
		}
	} else {
		assistantMsg.Status = db.MessageStatusCompleted
		assistantMsg.FinishReason = "stop"
	}

	if err := a.chatStore.SaveMessage(assistantMsg); err != nil {
		return fmt.Errorf("save assistant message: %w", err)
	}
	return nil
}

// buildAgentTree assembles supervisor + triage/data/actions for this run.
// Sub-agents transfer back to the supervisor deterministically so the
// supervisor always composes the final answer.
func (a *SupervisorAgent) buildAgentTree(ctx context.Context, chatModel model.ToolCallingChatModel) (adk.Agent, error) {
	var dataTools, actionTools []tool.BaseTool
	if d := a.Dispatcher(); d != nil {
		dataTools = d.ToolsFor(tools.CategoryMemory, tools.CategoryConversation)
		actionTools = d.ToolsFor(tools.CategoryDatabase)
	}

	triage, err := adk.NewChatModelAgent(ctx, &adk.ChatModelAgentConfig{
		Name:        triageName,
		Description: "Clarifies requests and answers simple questions directly",
		Instruction: triageInstruction,
		Model:       chatModel,
	})
	if err != nil {
		return nil, fmt.Errorf("create triage agent: %w", err)
	}

	data, err := adk.NewChatModelAgent(ctx, &adk.ChatModelAgentConfig{
		Name:          dataName,
		Description:   "Retrieves stored memories and conversation history",
		Instruction:   dataInstruction,
		Model:         chatModel,
		ToolsConfig:   adk.ToolsConfig{ToolsNodeConfig: compose.ToolsNodeConfig{Tools: dataTools}},
		MaxIterations: 20,
	})
	if err != nil {
		return nil, fmt.Errorf("create data agent: %w", err)
	}

	actions, err := adk.NewChatModelAgent(ctx, &adk.ChatModelAgentConfig{
		Name:          actionsName,
		Description:   "Queries external databases",
		Instruction:   actionsInstruction,
		Model:         chatModel,
		ToolsConfig:   adk.ToolsConfig{ToolsNodeConfig: compose.ToolsNodeConfig{Tools: actionTools}},
		MaxIterations: 20,
	})
	if err != nil {
		return nil, fmt.Errorf("create actions agent: %w", err)
	}

	root, err := adk.NewChatModelAgent(ctx, &adk.ChatModelAgentConfig{
		Name:          supervisorName,
		Description:   "Coordinates the assistant team",
		Instruction:   supervisorInstruction,
		Model:         chatModel,
		MaxIterations: 50,
	})
	if err != nil {
		return nil, fmt.Errorf("create supervisor agent: %w", err)
	}

	subAgents := make([]adk.Agent, 0, 3)
	for _, sub := range []adk.Agent{triage, data, actions} {
		subAgents = append(subAgents, adk.AgentWithDeterministicTransferTo(ctx, &adk.DeterministicTransferConfig{
			Agent:        sub,
			ToAgentNames: []string{supervisorName},
		}))
	}

	return adk.SetSubAgents(ctx, root, subAgents)
}

// emit routes a lifecycle event to the originating connection. HTTP-origin
// executions have no connection; the event still reaches in-process
// listeners through the global emitter.
func (a *SupervisorAgent) emit(ctx context.Context, ev event.Event) {
	event.Emit(ev)

	clientID := a.execution.WebSocketClientID
	if clientID == "" {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.bridge.SendLifecycleEvent(sendCtx, clientID, ev); err != nil {
		a.logger.Warn("failed to deliver lifecycle event", "event", ev.EventName(), "client_id", clientID, "error", err)
	}
}
