package execution

import (
	"strings"
	"testing"
)

func TestNewContext_RequiresIdentity(t *testing.T) {
	session := NewRequestSession(nil)

	if _, err := NewContext("", "t1", "", "", session); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if _, err := NewContext("u1", "", "", "", session); err == nil {
		t.Fatal("expected error for empty thread id")
	}
	if _, err := NewContext("u1", "t1", "", "", nil); err == nil {
		t.Fatal("expected error for nil session")
	}
}

func TestNewContext_GeneratesRunID(t *testing.T) {
	session := NewRequestSession(nil)

	ctx, err := NewContext("u1", "t1", "", "", session)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if ctx.RunID == "" {
		t.Fatal("expected a generated run id")
	}

	other, err := NewContext("u1", "t1", "", "", session)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if other.RunID == ctx.RunID {
		t.Fatal("expected distinct generated run ids")
	}
}

func TestNewContext_KeepsSuppliedRunID(t *testing.T) {
	ctx, err := NewContext("u1", "t1", "run-42", "ws_u1_1_abc", NewRequestSession(nil))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if ctx.RunID != "run-42" {
		t.Fatalf("run id = %q, want run-42", ctx.RunID)
	}
	if ctx.WebSocketClientID != "ws_u1_1_abc" {
		t.Fatalf("websocket client id = %q", ctx.WebSocketClientID)
	}
}

func TestIsolationKey(t *testing.T) {
	ctx, err := NewContext("u1", "t1", "r1", "", NewRequestSession(nil))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	key := ctx.IsolationKey()
	for _, part := range []string{"u1", "t1", "r1"} {
		if !strings.Contains(key, part) {
			t.Fatalf("isolation key %q missing %q", key, part)
		}
	}

	other, _ := NewContext("u1", "t1", "r2", "", NewRequestSession(nil))
	if other.IsolationKey() == key {
		t.Fatal("expected distinct isolation keys for distinct runs")
	}
}

func TestSessionScope(t *testing.T) {
	if NewRequestSession(nil).IsGlobal() {
		t.Fatal("request session reported global")
	}
	if !NewSession(nil, ScopeGlobal).IsGlobal() {
		t.Fatal("global session not reported global")
	}
	if NewSession(nil, ScopeRequest).Scope() != ScopeRequest {
		t.Fatal("unexpected scope")
	}
}
