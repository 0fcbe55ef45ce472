package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cadenza-chat/cadenza/pkg/db"
	"github.com/cadenza-chat/cadenza/pkg/event"
)

func newTestMemoryService(t *testing.T) *MemoryService {
	t.Helper()
	database, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	svc, err := NewMemoryService(database, &MemoryConfig{EnableVectorStore: false})
	if err != nil {
		t.Fatalf("new memory service: %v", err)
	}
	return svc
}

func TestMemoryStore_UpsertByKey(t *testing.T) {
	svc := newTestMemoryService(t)
	ctx := context.Background()

	first, err := svc.Store(ctx, "u1", &db.CreateMemoryRequest{
		Type: db.MemoryTypeFact, Key: "favorite-color", Content: "blue",
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if first.Importance != 50 {
		t.Fatalf("expected default importance 50, got %d", first.Importance)
	}

	second, err := svc.Store(ctx, "u1", &db.CreateMemoryRequest{
		Type: db.MemoryTypeFact, Key: "favorite-color", Content: "green",
	})
	if err != nil {
		t.Fatalf("store update: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("expected upsert to keep the same id")
	}
	if second.Content != "green" {
		t.Fatalf("expected updated content, got %q", second.Content)
	}
}

func TestMemoryGetByKey_ScopedToUser(t *testing.T) {
	svc := newTestMemoryService(t)
	ctx := context.Background()

	if _, err := svc.Store(ctx, "u1", &db.CreateMemoryRequest{
		Type: db.MemoryTypePreference, Key: "editor", Content: "vim",
	}); err != nil {
		t.Fatalf("store: %v", err)
	}

	if _, err := svc.GetByKey(ctx, "u1", "editor"); err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if _, err := svc.GetByKey(ctx, "u2", "editor"); !errors.Is(err, ErrMemoryNotFound) {
		t.Fatalf("expected not-found for other user, got %v", err)
	}
}

func TestMemoryDelete_ScopedToUser(t *testing.T) {
	svc := newTestMemoryService(t)
	ctx := context.Background()

	mem, err := svc.Store(ctx, "u1", &db.CreateMemoryRequest{
		Type: db.MemoryTypeFact, Key: "k", Content: "v",
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := svc.Delete(ctx, "u2", mem.ID); !errors.Is(err, ErrMemoryNotFound) {
		t.Fatalf("expected cross-user delete rejected, got %v", err)
	}
	if err := svc.Delete(ctx, "u1", mem.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetByKey(ctx, "u1", "k"); !errors.Is(err, ErrMemoryNotFound) {
		t.Fatalf("expected memory gone, got %v", err)
	}
}

func TestMemoryList_Filters(t *testing.T) {
	svc := newTestMemoryService(t)
	ctx := context.Background()

	svc.Store(ctx, "u1", &db.CreateMemoryRequest{Type: db.MemoryTypeFact, Key: "f1", Content: "the sky is blue"})
	svc.Store(ctx, "u1", &db.CreateMemoryRequest{Type: db.MemoryTypePreference, Key: "p1", Content: "prefers dark mode"})
	svc.Store(ctx, "u2", &db.CreateMemoryRequest{Type: db.MemoryTypeFact, Key: "f1", Content: "other user's fact"})

	facts, err := svc.List(ctx, "u1", db.MemoryTypeFact, "", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(facts) != 1 || facts[0].Key != "f1" {
		t.Fatalf("expected u1's single fact, got %+v", facts)
	}

	byKeyword, err := svc.List(ctx, "u1", "", "dark", 10)
	if err != nil {
		t.Fatalf("list keyword: %v", err)
	}
	if len(byKeyword) != 1 || byKeyword[0].Key != "p1" {
		t.Fatalf("expected keyword match on p1, got %+v", byKeyword)
	}
}

func TestSearchSemantic_DisabledWithoutVectorStore(t *testing.T) {
	svc := newTestMemoryService(t)

	_, err := svc.SearchSemantic(context.Background(), "u1", "anything", 5)
	if !errors.Is(err, ErrVectorStoreDisabled) {
		t.Fatalf("expected vector store disabled error, got %v", err)
	}
}

func TestSearchCombined_FallsBackToKeyword(t *testing.T) {
	svc := newTestMemoryService(t)
	ctx := context.Background()

	svc.Store(ctx, "u1", &db.CreateMemoryRequest{Type: db.MemoryTypeFact, Key: "city", Content: "lives in Lisbon"})

	results, err := svc.SearchCombined(ctx, "u1", "Lisbon", 5)
	if err != nil {
		t.Fatalf("search combined: %v", err)
	}
	if len(results) != 1 || results[0].Memory.Key != "city" {
		t.Fatalf("expected keyword fallback hit, got %+v", results)
	}
}

func TestMemoryStore_EmitsStoredEvent(t *testing.T) {
	svc := newTestMemoryService(t)
	ctx := context.Background()

	var got []event.MemoryStoredEvent
	off := event.On(event.MemoryStored, func(ev event.Event) {
		if e, ok := ev.(event.MemoryStoredEvent); ok {
			got = append(got, e)
		}
	})
	defer off()

	mem, err := svc.Store(ctx, "u1", &db.CreateMemoryRequest{
		Type: db.MemoryTypeFact, Key: "city", Content: "Oslo",
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one stored event, got %d", len(got))
	}
	if got[0].MemoryID != mem.ID || got[0].UserID != "u1" {
		t.Fatalf("unexpected event %+v", got[0])
	}

	// Upserting an existing key announces the change too.
	if _, err := svc.Store(ctx, "u1", &db.CreateMemoryRequest{
		Type: db.MemoryTypeFact, Key: "city", Content: "Bergen",
	}); err != nil {
		t.Fatalf("store update: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two stored events, got %d", len(got))
	}
}
