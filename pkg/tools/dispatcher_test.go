package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	toolutils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/cadenza-chat/cadenza/pkg/execution"
)

type echoInput struct {
	Text string `json:"text"`
}

func registerEchoTool(t *testing.T, id ToolID, toolName string) {
	t.Helper()
	Register(ToolDefinition{
		ID:       id,
		Name:     toolName,
		Category: CategoryConversation,
	}, func(tc *ToolContext) tool.InvokableTool {
		return toolutils.NewTool(&schema.ToolInfo{
			Name: toolName,
			Desc: "Echo the input text",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"text": {Type: schema.String, Required: true, Desc: "Text to echo"},
			}),
		}, func(ctx context.Context, input *echoInput) (string, error) {
			return input.Text, nil
		})
	})
}

func testToolContext(t *testing.T) *ToolContext {
	t.Helper()
	execCtx, err := execution.NewContext("u1", "t1", "r1", "", execution.NewRequestSession(nil))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return NewToolContext(execCtx)
}

func TestNewDispatcher_BuildsRegisteredTools(t *testing.T) {
	registerEchoTool(t, "echo_build", "echo_build")

	d, err := NewDispatcher(context.Background(), testToolContext(t), []ToolID{"echo_build"})
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if got := len(d.Tools()); got != 1 {
		t.Fatalf("tools = %d, want 1", got)
	}
	if d.Registry().Len() != 1 {
		t.Fatalf("registry len = %d, want 1", d.Registry().Len())
	}

	out, err := d.Dispatch(context.Background(), "echo_build", "call-1", `{"text":"hello"}`)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if out != "hello" {
		t.Fatalf("out = %q, want hello", out)
	}
}

func TestNewDispatcher_UnknownTool(t *testing.T) {
	_, err := NewDispatcher(context.Background(), testToolContext(t), []ToolID{"no_such_tool"})
	if err == nil {
		t.Fatal("expected error for unknown tool id")
	}
}

func TestNewDispatcher_DuplicateSchema(t *testing.T) {
	registerEchoTool(t, "echo_dup_a", "echo_dup")
	registerEchoTool(t, "echo_dup_b", "echo_dup")

	_, err := NewDispatcher(context.Background(), testToolContext(t), []ToolID{"echo_dup_a", "echo_dup_b"})
	if err == nil {
		t.Fatal("expected duplicate schema error")
	}
	if !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("err = %v, want duplicate registration", err)
	}
}

func TestDispatch_UnknownName(t *testing.T) {
	d, err := NewDispatcher(context.Background(), testToolContext(t), nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	if _, err := d.Dispatch(context.Background(), "missing", "call-1", "{}"); err == nil {
		t.Fatal("expected error for unknown tool name")
	}
}

func TestSchemaRegistry_Clear(t *testing.T) {
	r := NewSchemaRegistry()
	if err := r.Add(&schema.ToolInfo{Name: "a"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(&schema.ToolInfo{Name: "a"}); err == nil {
		t.Fatal("expected duplicate error")
	}

	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("len after clear = %d", r.Len())
	}
	// A cleared registry accepts the name again.
	if err := r.Add(&schema.ToolInfo{Name: "a"}); err != nil {
		t.Fatalf("Add after clear: %v", err)
	}
	r.Clear()
	r.Clear() // repeated clear is fine
}
