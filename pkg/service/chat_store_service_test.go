package service

import (
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/cadenza-chat/cadenza/pkg/db"
)

func newTestChatStore(t *testing.T) *ChatStoreService {
	t.Helper()
	database, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return NewChatStoreService(database)
}

func TestCreateAndGetConversation(t *testing.T) {
	store := newTestChatStore(t)

	conv, err := store.CreateConversation("u1", "", "My chat", "gpt-4o")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.ID == "" || conv.ThreadID == "" {
		t.Fatal("expected generated ids")
	}
	if conv.Status != db.ConversationStatusActive {
		t.Fatalf("expected active status, got %q", conv.Status)
	}

	got, err := store.GetConversation("u1", conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "My chat" {
		t.Fatalf("unexpected title %q", got.Title)
	}
}

func TestGetConversation_ScopedToOwner(t *testing.T) {
	store := newTestChatStore(t)

	conv, err := store.CreateConversation("u1", "", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.GetConversation("u2", conv.ID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected not-found for other user, got %v", err)
	}
	if _, err := store.GetConversationByThread("u2", conv.ThreadID); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected not-found by thread for other user, got %v", err)
	}
}

func TestListConversations_Pagination(t *testing.T) {
	store := newTestChatStore(t)

	for i := 0; i < 5; i++ {
		if _, err := store.CreateConversation("u1", "", "", ""); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	conversations, hasMore, err := store.ListConversations("u1", "", 3, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(conversations) != 3 || !hasMore {
		t.Fatalf("expected 3 with more, got %d hasMore=%v", len(conversations), hasMore)
	}

	conversations, hasMore, err = store.ListConversations("u1", "", 3, 3)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(conversations) != 2 || hasMore {
		t.Fatalf("expected final 2, got %d hasMore=%v", len(conversations), hasMore)
	}
}

func TestDeleteConversation_RemovesMessages(t *testing.T) {
	store := newTestChatStore(t)

	conv, err := store.CreateConversation("u1", "", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.SaveMessage(&db.Message{ConversationID: conv.ID, Role: "user", Content: "hello"}); err != nil {
		t.Fatalf("save message: %v", err)
	}

	if err := store.DeleteConversation("u1", conv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	messages, err := store.GetMessages(conv.ID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected no messages after delete, got %d", len(messages))
	}
}

func TestSearchMessages_ScopedToUser(t *testing.T) {
	store := newTestChatStore(t)

	mine, err := store.CreateConversation("u1", "", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	theirs, err := store.CreateConversation("u2", "", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	store.SaveMessage(&db.Message{ConversationID: mine.ID, Role: "user", Content: "deploy the rocket"})
	store.SaveMessage(&db.Message{ConversationID: theirs.ID, Role: "user", Content: "rocket launch codes"})

	hits, err := store.SearchMessages("u1", "rocket", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit scoped to u1, got %d", len(hits))
	}
	if hits[0].ConversationID != mine.ID {
		t.Fatal("hit leaked from another user's conversation")
	}
}

func TestSchemaHistory_DropsUnpairedToolCalls(t *testing.T) {
	store := newTestChatStore(t)

	conv, err := store.CreateConversation("u1", "", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	store.SaveMessage(&db.Message{ConversationID: conv.ID, Role: "user", Content: "look this up"})
	store.SaveMessage(&db.Message{
		ConversationID: conv.ID,
		Role:           string(schema.Assistant),
		ToolCalls: db.ToolCallArray{
			{ID: "call-1", Name: "memory_recall", Arguments: "{}"},
			{ID: "call-2", Name: "redis_keys", Arguments: "{}"},
		},
	})
	// Only call-1 has a recorded result.
	store.SaveMessage(&db.Message{ConversationID: conv.ID, Role: string(schema.Tool), ToolCallID: "call-1", Content: "found it"})

	history, err := store.SchemaHistory(conv.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	var assistant *schema.Message
	for _, msg := range history {
		if msg.Role == schema.Assistant {
			assistant = msg
		}
	}
	if assistant == nil {
		t.Fatal("expected assistant message in history")
	}
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].ID != "call-1" {
		t.Fatalf("expected only the paired tool call, got %+v", assistant.ToolCalls)
	}
}

func TestSchemaHistory_SkipsEmptyMessages(t *testing.T) {
	store := newTestChatStore(t)

	conv, err := store.CreateConversation("u1", "", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	store.SaveMessage(&db.Message{ConversationID: conv.ID, Role: "user", Content: ""})
	store.SaveMessage(&db.Message{ConversationID: conv.ID, Role: "user", Content: "real"})

	history, err := store.SchemaHistory(conv.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 message, got %d", len(history))
	}
}
