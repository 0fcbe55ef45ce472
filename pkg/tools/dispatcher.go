package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"

	"github.com/cadenza-chat/cadenza/pkg/event"
	"github.com/cadenza-chat/cadenza/pkg/utils"
)

// Dispatcher executes tool calls on behalf of one supervisor, scoped to one
// execution context. It owns a connection-scoped SchemaRegistry recording
// which schemas it registered; the registry is cleared on disconnect.
type Dispatcher struct {
	tc         *ToolContext
	registry   *SchemaRegistry
	tools      map[string]tool.InvokableTool
	ordered    []tool.BaseTool
	byCategory map[ToolCategory][]tool.BaseTool
}

// NewDispatcher builds the tools named by ids against tc and registers their
// schemas in a fresh registry. A duplicate schema name fails construction;
// nothing partially built is published anywhere.
func NewDispatcher(ctx context.Context, tc *ToolContext, ids []ToolID) (*Dispatcher, error) {
	if tc == nil || tc.Execution == nil {
		return nil, fmt.Errorf("dispatcher requires an execution context")
	}

	d := &Dispatcher{
		tc:         tc,
		registry:   NewSchemaRegistry(),
		tools:      make(map[string]tool.InvokableTool),
		byCategory: make(map[ToolCategory][]tool.BaseTool),
	}

	for _, id := range ids {
		def, ok := GetToolDefinition(id)
		if !ok {
			return nil, fmt.Errorf("tool %s not registered", id)
		}
		t, err := GetTool(id, tc)
		if err != nil {
			return nil, fmt.Errorf("build tool %s: %w", id, err)
		}
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool %s schema: %w", id, err)
		}
		if err := d.registry.Add(info); err != nil {
			return nil, fmt.Errorf("register tool %s: %w", id, err)
		}
		d.tools[info.Name] = t
		d.ordered = append(d.ordered, t)
		d.byCategory[def.Category] = append(d.byCategory[def.Category], t)
	}

	return d, nil
}

// Registry returns the dispatcher's connection-scoped schema registry.
func (d *Dispatcher) Registry() *SchemaRegistry {
	return d.registry
}

// Tools returns the built tools in registration order, for binding to an
// agent.
func (d *Dispatcher) Tools() []tool.BaseTool {
	return d.ordered
}

// ToolsFor returns the built tools belonging to the given categories, in
// registration order within each category.
func (d *Dispatcher) ToolsFor(categories ...ToolCategory) []tool.BaseTool {
	var out []tool.BaseTool
	for _, cat := range categories {
		out = append(out, d.byCategory[cat]...)
	}
	return out
}

// Dispatch runs one tool call and reports start/completion through the
// context's bridge when present.
func (d *Dispatcher) Dispatch(ctx context.Context, name, callID, argumentsJSON string) (string, error) {
	t, ok := d.tools[name]
	if !ok {
		return "", fmt.Errorf("tool %q not available in this context", name)
	}

	d.emit(ctx, event.ToolCallStartedEvent{
		RunID:    d.tc.Execution.RunID,
		ToolName: name,
		CallID:   callID,
	})

	out, err := t.InvokableRun(ctx, argumentsJSON)

	d.emit(ctx, event.ToolCallCompletedEvent{
		RunID:    d.tc.Execution.RunID,
		ToolName: name,
		CallID:   callID,
		Success:  err == nil,
	})

	if err != nil {
		return "", fmt.Errorf("tool %s: %w", name, err)
	}
	return out, nil
}

func (d *Dispatcher) emit(ctx context.Context, ev event.Event) {
	if d.tc.Bridge == nil {
		return
	}
	clientID := d.tc.Execution.WebSocketClientID
	if clientID == "" {
		return
	}
	if err := d.tc.Bridge.SendLifecycleEvent(ctx, clientID, ev); err != nil {
		utils.GetLogger().Warn("failed to deliver tool event", "event", ev.EventName(), "client_id", clientID, "error", err)
	}
}
