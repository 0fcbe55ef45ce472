package ws

import (
	"context"
	"testing"
)

func TestNewPresenceStore_DisabledWithoutAddr(t *testing.T) {
	if NewPresenceStore("", "", 0) != nil {
		t.Fatal("expected nil store when no redis address is configured")
	}
}

func TestPresenceStore_NilSafe(t *testing.T) {
	var p *PresenceStore
	ctx := context.Background()

	// A disabled store must be callable from every connection hook.
	p.ConnectionOpened(ctx, "conn-1", "u1")
	p.Refresh(ctx, "conn-1")
	p.ConnectionClosed(ctx, "conn-1")
}
