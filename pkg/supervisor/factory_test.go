package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	einotool "github.com/cloudwego/eino/components/tool"
	toolutils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/cadenza-chat/cadenza/pkg/db"
	"github.com/cadenza-chat/cadenza/pkg/event"
	"github.com/cadenza-chat/cadenza/pkg/execution"
	"github.com/cadenza-chat/cadenza/pkg/llm"
	"github.com/cadenza-chat/cadenza/pkg/tools"
)

type nopBridge struct{}

func (nopBridge) SendLifecycleEvent(ctx context.Context, clientID string, ev event.Event) error {
	return nil
}

func testExecContext(t *testing.T, userID string) *execution.Context {
	t.Helper()
	database, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	execCtx, err := execution.NewContext(userID, "thread-"+userID, "", "", execution.NewRequestSession(database))
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	return execCtx
}

func TestCreate_RejectsGlobalSession(t *testing.T) {
	database, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	execCtx, err := execution.NewContext("u1", "t1", "", "", execution.NewSession(database, execution.ScopeGlobal))
	if err != nil {
		t.Fatalf("new context: %v", err)
	}

	_, err = Create(Options{Execution: execCtx, Bridge: nopBridge{}})
	if err == nil {
		t.Fatal("expected error for global session")
	}
	if !errors.Is(err, ErrIsolationViolation) {
		t.Fatalf("expected isolation violation, got %v", err)
	}
	if !strings.Contains(err.Error(), "failed to create supervisor") {
		t.Fatalf("expected uniform factory error, got %q", err.Error())
	}
}

func TestCreate_RejectsNilBridge(t *testing.T) {
	execCtx := testExecContext(t, "u1")

	_, err := Create(Options{Execution: execCtx, Bridge: nil})
	if err == nil {
		t.Fatal("expected error for nil bridge")
	}
	if !errors.Is(err, ErrMissingBridge) {
		t.Fatalf("expected missing bridge error, got %v", err)
	}
}

func TestCreate_RejectsNilExecution(t *testing.T) {
	_, err := Create(Options{Bridge: nopBridge{}})
	if !errors.Is(err, ErrMissingExecution) {
		t.Fatalf("expected missing execution error, got %v", err)
	}
}

func TestCreate_FreshManagerPerCall(t *testing.T) {
	a1, err := Create(Options{Execution: testExecContext(t, "u1"), Bridge: nopBridge{}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a2, err := Create(Options{Execution: testExecContext(t, "u2"), Bridge: nopBridge{}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a1.llm == a2.llm {
		t.Fatal("expected distinct LLM managers per creation")
	}
}

func TestCreate_KeepsSuppliedManager(t *testing.T) {
	manager := llm.NewManager()
	a, err := Create(Options{Execution: testExecContext(t, "u1"), Bridge: nopBridge{}, LLM: manager})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.llm != manager {
		t.Fatal("expected supplied manager to be kept")
	}
}

func TestCreate_ReadyWiringRequiresDispatcher(t *testing.T) {
	_, err := Create(Options{
		Execution: testExecContext(t, "u1"),
		Bridge:    nopBridge{},
		Wiring:    ReadyWiring(nil),
	})
	if err == nil {
		t.Fatal("expected error for ready wiring without dispatcher")
	}
}

func TestCreate_EmptyWiringIsDegradedNotFatal(t *testing.T) {
	a, err := Create(Options{Execution: testExecContext(t, "u1"), Bridge: nopBridge{}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Dispatcher() != nil {
		t.Fatal("expected no dispatcher for empty wiring")
	}
	if !a.wired {
		t.Fatal("empty wiring should not stay pending")
	}
}

func TestCreate_ConcurrentIsolation(t *testing.T) {
	const n = 8

	agents := make([]*SupervisorAgent, n)
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		execCtx := testExecContext(t, fmt.Sprintf("user-%d", i))
		wg.Add(1)
		go func(i int, execCtx *execution.Context) {
			defer wg.Done()
			a, err := Create(Options{Execution: execCtx, Bridge: nopBridge{}})
			agents[i], errs[i] = a, err
		}(i, execCtx)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	seenKeys := make(map[string]bool)
	for i, a := range agents {
		key := a.Execution().IsolationKey()
		if seenKeys[key] {
			t.Fatalf("duplicate isolation key %q", key)
		}
		seenKeys[key] = true

		for j := i + 1; j < n; j++ {
			if a.Execution() == agents[j].Execution() {
				t.Fatalf("agents %d and %d share an execution context", i, j)
			}
			if a.llm == agents[j].llm {
				t.Fatalf("agents %d and %d share an LLM manager", i, j)
			}
		}
	}
}

var registerCountingTool sync.Once

var countingToolBuilds atomic.Int64

func ensureCountingTool(t *testing.T) {
	t.Helper()
	registerCountingTool.Do(func() {
		tools.Register(tools.ToolDefinition{
			ID:       "wiring_probe",
			Name:     "wiring_probe",
			Category: tools.CategoryConversation,
		}, func(tc *tools.ToolContext) einotool.InvokableTool {
			countingToolBuilds.Add(1)
			return toolutils.NewTool(&schema.ToolInfo{
				Name: "wiring_probe",
				Desc: "test probe",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"in": {Type: schema.String},
				}),
			}, func(ctx context.Context, input *struct {
				In string `json:"in"`
			}) (string, error) {
				return input.In, nil
			})
		})
	})
}

func TestPendingWiring_ResolvedExactlyOnce(t *testing.T) {
	ensureCountingTool(t)
	countingToolBuilds.Store(0)

	a, err := Create(Options{
		Execution: testExecContext(t, "u1"),
		Bridge:    nopBridge{},
		Wiring:    PendingWiring("wiring_probe"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Dispatcher() != nil {
		t.Fatal("pending wiring should not build a dispatcher at creation")
	}

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.resolveTools(context.Background()); err != nil {
				t.Errorf("resolve: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := countingToolBuilds.Load(); got != 1 {
		t.Fatalf("expected tool built exactly once, got %d", got)
	}
	if a.Dispatcher() == nil {
		t.Fatal("expected dispatcher after resolution")
	}
}
