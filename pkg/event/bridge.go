package event

import "context"

// Bridge delivers lifecycle events to one live client connection. The
// supervisor layer only validates its presence and calls through; transport
// details belong to the implementation.
type Bridge interface {
	// SendLifecycleEvent delivers ev to the connection identified by
	// clientID. Implementations must be safe for concurrent use.
	SendLifecycleEvent(ctx context.Context, clientID string, ev Event) error
}
