package ws

import (
	"errors"
	"strings"
	"testing"
)

type fakeConn struct {
	frames []interface{}
	closed bool
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.frames = append(c.frames, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestNewContext_RequiresTransportAndIdentity(t *testing.T) {
	if _, err := NewContext(nil, "", "u1", "t1", ""); err == nil {
		t.Fatal("expected error for nil transport")
	}
	if _, err := NewContext(&fakeConn{}, "", "", "t1", ""); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if _, err := NewContext(&fakeConn{}, "", "u1", "", ""); err == nil {
		t.Fatal("expected error for empty thread id")
	}
}

func TestNewContext_GeneratesIdentifiers(t *testing.T) {
	ctx, err := NewContext(&fakeConn{}, "", "u1", "t1", "")
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	if !strings.HasPrefix(ctx.ConnectionID, "ws_u1_") {
		t.Fatalf("unexpected connection id %q", ctx.ConnectionID)
	}
	if ctx.RunID == "" {
		t.Fatal("expected generated run id")
	}
	if ctx.ConnectedAt.IsZero() {
		t.Fatal("expected connected-at timestamp")
	}

	other, err := NewContext(&fakeConn{}, "", "u1", "t1", "")
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	if other.ConnectionID == ctx.ConnectionID {
		t.Fatal("expected distinct connection ids")
	}
}

func TestNewContext_KeepsSuppliedIdentifiers(t *testing.T) {
	ctx, err := NewContext(&fakeConn{}, "conn-1", "u1", "t1", "run-1")
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	if ctx.ConnectionID != "conn-1" || ctx.RunID != "run-1" {
		t.Fatalf("identifiers overwritten: %q %q", ctx.ConnectionID, ctx.RunID)
	}
}

func TestIsActive_FailsClosed(t *testing.T) {
	var nilCtx *Context
	if nilCtx.IsActive() {
		t.Fatal("nil context must be inactive")
	}

	ctx, err := NewContext(&fakeConn{}, "", "u1", "t1", "")
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	if !ctx.IsActive() {
		t.Fatal("fresh context should be active")
	}

	ctx.MarkClosed()
	if ctx.IsActive() {
		t.Fatal("closed context must be inactive")
	}
}

func TestValidateForMessageProcessing_NamesConnection(t *testing.T) {
	ctx, err := NewContext(&fakeConn{}, "conn-42", "u1", "t1", "")
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	if err := ctx.ValidateForMessageProcessing(); err != nil {
		t.Fatalf("active context should validate: %v", err)
	}

	ctx.MarkClosed()
	err = ctx.ValidateForMessageProcessing()
	if err == nil {
		t.Fatal("expected validation error for closed connection")
	}
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected ClientError, got %T", err)
	}
	if !strings.Contains(err.Error(), "conn-42") {
		t.Fatalf("error should name the connection: %q", err.Error())
	}
}

func TestTouch_UpdatesLastActivity(t *testing.T) {
	ctx, err := NewContext(&fakeConn{}, "", "u1", "t1", "")
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	before := ctx.LastActivity()
	ctx.Touch()
	if ctx.LastActivity().Before(before) {
		t.Fatal("last activity went backwards")
	}
}

func TestIsolationKey_MirrorsExecution(t *testing.T) {
	ctx, err := NewContext(&fakeConn{}, "", "u1", "t1", "r1")
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	if ctx.IsolationKey() != "u1:t1:r1" {
		t.Fatalf("unexpected isolation key %q", ctx.IsolationKey())
	}
}
