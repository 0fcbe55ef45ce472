package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeChatModel struct {
	calls    int
	failures int // fail the first N calls
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("upstream unavailable")
	}
	return schema.AssistantMessage("ok", nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("upstream unavailable")
	}
	sr, sw := schema.Pipe[*schema.Message](1)
	sw.Send(schema.AssistantMessage("ok", nil), nil)
	sw.Close()
	return sr, nil
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (einoModel.ToolCallingChatModel, error) {
	return f, nil
}

func TestResilient_RetriesTransientFailure(t *testing.T) {
	fake := &fakeChatModel{failures: 1}
	r := WrapResilient(fake)

	out, err := r.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Content != "ok" {
		t.Fatalf("content = %q", out.Content)
	}
	if fake.calls != 2 {
		t.Fatalf("calls = %d, want 2", fake.calls)
	}
}

func TestResilient_ExhaustsRetries(t *testing.T) {
	fake := &fakeChatModel{failures: 100}
	r := WrapResilient(fake)

	_, err := r.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if fake.calls != defaultMaxRetries+1 {
		t.Fatalf("calls = %d, want %d", fake.calls, defaultMaxRetries+1)
	}
}

func TestResilient_BreakerOpensAndFailsFast(t *testing.T) {
	fake := &fakeChatModel{failures: 1000}
	r := WrapResilient(fake)
	r.breaker.threshold = 3

	// Drive the breaker open.
	_, _ = r.Generate(context.Background(), nil)
	if r.breaker.state != breakerOpen {
		t.Fatalf("breaker state = %d, want open", r.breaker.state)
	}

	before := fake.calls
	if _, err := r.Generate(context.Background(), nil); err == nil {
		t.Fatal("expected fail-fast error while breaker open")
	}
	if fake.calls != before {
		t.Fatal("open breaker still reached the upstream model")
	}
}

func TestResilient_BreakerHalfOpenRecovers(t *testing.T) {
	fake := &fakeChatModel{failures: 0}
	r := WrapResilient(fake)
	r.breaker.state = breakerOpen
	r.breaker.openedAt = time.Now().Add(-time.Minute)

	if _, err := r.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")}); err != nil {
		t.Fatalf("Generate after cool-off: %v", err)
	}
	if r.breaker.state != breakerClosed {
		t.Fatalf("breaker state = %d, want closed after probe success", r.breaker.state)
	}
}

func TestResilient_WithToolsSharesBreaker(t *testing.T) {
	fake := &fakeChatModel{}
	r := WrapResilient(fake)

	bound, err := r.WithTools([]*schema.ToolInfo{{Name: "noop"}})
	if err != nil {
		t.Fatalf("WithTools: %v", err)
	}
	wrapped, ok := bound.(*ResilientChatModel)
	if !ok {
		t.Fatalf("WithTools returned %T", bound)
	}
	if wrapped.breaker != r.breaker {
		t.Fatal("bound model does not share the breaker")
	}
}
