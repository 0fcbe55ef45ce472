package ws

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/cadenza-chat/cadenza/pkg/event"
	"github.com/cadenza-chat/cadenza/pkg/llm"
	"github.com/cadenza-chat/cadenza/pkg/service"
)

// Collaborators is one source of the services a supervisor needs. Any field
// may be nil; resolution walks the chain until it finds a value.
type Collaborators struct {
	LLM       *llm.Manager
	ChatStore *service.ChatStoreService
	Memory    *service.MemoryService
	Bridge    event.Bridge
}

// AppState is the application-level collaborator configuration the factory
// resolves against. Fallback covers deployments where the primary wiring is
// only partially configured.
type AppState struct {
	DB       *gorm.DB
	Primary  *Collaborators
	Fallback *Collaborators
}

// resolution walks an explicit ordered chain: per-call override first, then
// app state primary, then app state fallback. Never an implicit shared
// singleton; a miss reports every path that was checked.
type resolution struct {
	chain []*Collaborators
}

const resolutionPaths = "per-call override, app state primary, app state fallback"

func newResolution(override, primary, fallback *Collaborators) *resolution {
	return &resolution{chain: []*Collaborators{override, primary, fallback}}
}

func (r *resolution) chatStore() (*service.ChatStoreService, error) {
	for _, c := range r.chain {
		if c != nil && c.ChatStore != nil {
			return c.ChatStore, nil
		}
	}
	return nil, fmt.Errorf("chat store unavailable: checked %s", resolutionPaths)
}

func (r *resolution) memory() *service.MemoryService {
	for _, c := range r.chain {
		if c != nil && c.Memory != nil {
			return c.Memory
		}
	}
	// Memory is optional; tools degrade gracefully without it.
	return nil
}

func (r *resolution) llmManager() *llm.Manager {
	for _, c := range r.chain {
		if c != nil && c.LLM != nil {
			return c.LLM
		}
	}
	// The supervisor factory builds a fresh manager when none is supplied.
	return nil
}

func (r *resolution) bridge() (event.Bridge, error) {
	for _, c := range r.chain {
		if c != nil && c.Bridge != nil {
			return c.Bridge, nil
		}
	}
	return nil, fmt.Errorf("event bridge unavailable: checked %s", resolutionPaths)
}
