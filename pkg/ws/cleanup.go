package ws

import (
	"log/slog"
	"sync"
	"weak"

	"github.com/cadenza-chat/cadenza/pkg/tools"
	"github.com/cadenza-chat/cadenza/pkg/utils"
)

// CleanupTable tracks, per connection, weak references to the schema
// registries created for that connection's supervisors, and clears whatever
// is still alive when the connection goes away. Weak references keep the
// table from pinning registries whose supervisors are already gone.
type CleanupTable struct {
	mu      sync.Mutex
	entries map[string]map[weak.Pointer[tools.SchemaRegistry]]struct{}
	logger  *slog.Logger
}

// NewCleanupTable creates an empty cleanup table.
func NewCleanupTable() *CleanupTable {
	return &CleanupTable{
		entries: make(map[string]map[weak.Pointer[tools.SchemaRegistry]]struct{}),
		logger:  utils.GetLogger(),
	}
}

// Track records a registry under a connection id. Tracking the same registry
// twice is a no-op.
func (t *CleanupTable) Track(connectionID string, registry *tools.SchemaRegistry) {
	if connectionID == "" || registry == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.entries[connectionID]
	if !ok {
		set = make(map[weak.Pointer[tools.SchemaRegistry]]struct{})
		t.entries[connectionID] = set
	}
	set[weak.Make(registry)] = struct{}{}
}

// Cleanup clears every still-live registry tracked for the connection and
// removes the entry. Best effort: already-collected registries are skipped.
// Cleaning up an unknown or already-cleaned connection is a logged no-op.
// Returns the number of registries cleared.
func (t *CleanupTable) Cleanup(connectionID string) int {
	t.mu.Lock()
	set, ok := t.entries[connectionID]
	delete(t.entries, connectionID)
	t.mu.Unlock()

	if !ok {
		t.logger.Debug("cleanup for unknown connection", "connection_id", connectionID)
		return 0
	}

	cleared := 0
	for ref := range set {
		if registry := ref.Value(); registry != nil {
			registry.Clear()
			cleared++
		}
	}
	t.logger.Debug("connection state released", "connection_id", connectionID, "registries_cleared", cleared)
	return cleared
}

// TableStatus is a point-in-time snapshot of the cleanup table.
type TableStatus struct {
	ActiveConnections int            `json:"active_connections"`
	TrackedRegistries int            `json:"tracked_registries"`
	Connections       map[string]int `json:"connections"`
}

// Status reports current table contents. Dead references are pruned as a
// side effect so the numbers reflect only live registries.
func (t *CleanupTable) Status() TableStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := TableStatus{Connections: make(map[string]int)}
	for connectionID, set := range t.entries {
		live := 0
		for ref := range set {
			if ref.Value() == nil {
				delete(set, ref)
				continue
			}
			live++
		}
		status.ActiveConnections++
		status.TrackedRegistries += live
		status.Connections[connectionID] = live
	}
	return status
}
