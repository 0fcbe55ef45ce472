package supervisor

import (
	"context"
	"errors"
	"testing"

	"github.com/cadenza-chat/cadenza/pkg/db"
	"github.com/cadenza-chat/cadenza/pkg/execution"
	"github.com/cadenza-chat/cadenza/pkg/service"
	"github.com/google/uuid"
)

func testAgentWithStore(t *testing.T) (*SupervisorAgent, *service.ChatStoreService, *db.Conversation) {
	t.Helper()

	database, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	chatStore := service.NewChatStoreService(database)

	execCtx, err := execution.NewContext("u1", "t1", "", "", execution.NewRequestSession(database))
	if err != nil {
		t.Fatalf("new context: %v", err)
	}

	a, err := Create(Options{Execution: execCtx, Bridge: nopBridge{}, ChatStore: chatStore})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	conv, err := chatStore.CreateConversation("u1", "t1", "cancel test", "")
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return a, chatStore, conv
}

func savedStreamingMessage(t *testing.T, chatStore *service.ChatStoreService, convID string) *db.Message {
	t.Helper()
	msg := &db.Message{
		ID:             uuid.New().String(),
		ConversationID: convID,
		Role:           "assistant",
		RunID:          "run-1",
		Status:         db.MessageStatusStreaming,
	}
	if err := chatStore.SaveMessage(msg); err != nil {
		t.Fatalf("save message: %v", err)
	}
	return msg
}

func TestRun_CancellationKeepsCancelledStatus(t *testing.T) {
	a, chatStore, conv := testAgentWithStore(t)
	msg := savedStreamingMessage(t, chatStore, conv.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.consume(ctx, nil, conv, msg, func(*ChatDelta) {})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The run's error branch must not rewrite a cancelled turn as a failure.
	a.recordRunFailure(ctx, msg.ID, err)

	got, err := chatStore.GetMessage(msg.ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if got.Status != db.MessageStatusCompleted {
		t.Fatalf("expected status %q, got %q", db.MessageStatusCompleted, got.Status)
	}
	if got.FinishReason != "cancelled" {
		t.Fatalf("expected finish reason %q, got %q", "cancelled", got.FinishReason)
	}
}

func TestRun_DeadlineKeepsCancelledStatus(t *testing.T) {
	a, chatStore, conv := testAgentWithStore(t)
	msg := savedStreamingMessage(t, chatStore, conv.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	_, err := a.consume(ctx, nil, conv, msg, func(*ChatDelta) {})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}

	a.recordRunFailure(ctx, msg.ID, err)

	got, err := chatStore.GetMessage(msg.ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if got.Status != db.MessageStatusCompleted {
		t.Fatalf("expected status %q, got %q", db.MessageStatusCompleted, got.Status)
	}
}

func TestRecordRunFailure_MarksGenuineErrors(t *testing.T) {
	a, chatStore, conv := testAgentWithStore(t)
	msg := savedStreamingMessage(t, chatStore, conv.ID)

	a.recordRunFailure(context.Background(), msg.ID, errors.New("model exploded"))

	got, err := chatStore.GetMessage(msg.ID)
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if got.Status != db.MessageStatusError {
		t.Fatalf("expected status %q, got %q", db.MessageStatusError, got.Status)
	}
}
