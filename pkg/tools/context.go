package tools

import (
	"github.com/cadenza-chat/cadenza/pkg/event"
	"github.com/cadenza-chat/cadenza/pkg/execution"
	"github.com/cadenza-chat/cadenza/pkg/service"
)

// ToolContext provides services and identity needed by tools. One ToolContext
// belongs to exactly one execution context; tools built from it must never be
// reused for a different user.
type ToolContext struct {
	// Execution scopes every tool invocation to one user/thread/run.
	Execution *execution.Context

	// Bridge delivers tool progress events back to the originating
	// connection. Optional; tools check for nil.
	Bridge event.Bridge

	// Services
	ChatStore *service.ChatStoreService
	Memory    *service.MemoryService
}

// NewToolContext creates a tool context bound to one execution context.
func NewToolContext(execCtx *execution.Context) *ToolContext {
	return &ToolContext{Execution: execCtx}
}

// WithBridge sets the event bridge
func (c *ToolContext) WithBridge(bridge event.Bridge) *ToolContext {
	c.Bridge = bridge
	return c
}

// WithChatStore sets the chat store service
func (c *ToolContext) WithChatStore(store *service.ChatStoreService) *ToolContext {
	c.ChatStore = store
	return c
}

// WithMemory sets the memory service
func (c *ToolContext) WithMemory(memory *service.MemoryService) *ToolContext {
	c.Memory = memory
	return c
}

// UserID returns the owning user's id, or empty when unbound.
func (c *ToolContext) UserID() string {
	if c.Execution == nil {
		return ""
	}
	return c.Execution.UserID
}

// ThreadID returns the owning thread's id, or empty when unbound.
func (c *ToolContext) ThreadID() string {
	if c.Execution == nil {
		return ""
	}
	return c.Execution.ThreadID
}
