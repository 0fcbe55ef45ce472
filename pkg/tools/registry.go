// Package tools provides built-in tools for AI agents.
// These tools enable agents to work with conversations, memories, and
// external databases.
package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// ToolID identifies a built-in tool
type ToolID string

// ToolCategory represents the category of a tool
type ToolCategory string

// Tool categories
const (
	CategoryConversation ToolCategory = "conversation"
	CategoryMemory       ToolCategory = "memory"
	CategoryDatabase     ToolCategory = "database"
)

// ToolDefinition describes a built-in tool
type ToolDefinition struct {
	ID          ToolID       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    ToolCategory `json:"category"`
	Dangerous   bool         `json:"dangerous"` // Whether this tool can modify data
}

// ToolFactory is a function that creates a tool instance
type ToolFactory func(tc *ToolContext) tool.InvokableTool

type catalog struct {
	definitions map[ToolID]ToolDefinition
	factories   map[ToolID]ToolFactory
	mu          sync.RWMutex
}

// Global tool catalog. Definitions and factories are process-wide and
// immutable after init; per-connection state lives in SchemaRegistry.
var globalCatalog = &catalog{
	definitions: make(map[ToolID]ToolDefinition),
	factories:   make(map[ToolID]ToolFactory),
}

// Register registers a tool with its definition and factory
func Register(def ToolDefinition, factory ToolFactory) {
	globalCatalog.mu.Lock()
	defer globalCatalog.mu.Unlock()
	globalCatalog.definitions[def.ID] = def
	globalCatalog.factories[def.ID] = factory
}

// GetTool returns an invokable tool by ID
func GetTool(id ToolID, tc *ToolContext) (tool.InvokableTool, error) {
	globalCatalog.mu.RLock()
	defer globalCatalog.mu.RUnlock()

	factory, exists := globalCatalog.factories[id]
	if !exists {
		return nil, fmt.Errorf("unknown tool: %s", id)
	}
	return factory(tc), nil
}

// GetToolDefinition returns a tool definition by ID
func GetToolDefinition(id ToolID) (ToolDefinition, bool) {
	globalCatalog.mu.RLock()
	defer globalCatalog.mu.RUnlock()
	def, ok := globalCatalog.definitions[id]
	return def, ok
}

// ListToolDefinitions returns all available tool definitions sorted by
// category and name
func ListToolDefinitions() []ToolDefinition {
	globalCatalog.mu.RLock()
	defer globalCatalog.mu.RUnlock()

	result := make([]ToolDefinition, 0, len(globalCatalog.definitions))
	for _, def := range globalCatalog.definitions {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// IsRegistered checks if a tool ID is registered
func IsRegistered(id ToolID) bool {
	globalCatalog.mu.RLock()
	defer globalCatalog.mu.RUnlock()
	_, exists := globalCatalog.definitions[id]
	return exists
}

// SchemaRegistry records the tool schemas registered for one connection.
// Registering the same name twice is an error: reusing a registry across
// reconnects without clearing it is exactly the bug the per-connection
// cleanup table exists to prevent.
type SchemaRegistry struct {
	mu      sync.Mutex
	schemas map[string]*schema.ToolInfo
}

// NewSchemaRegistry returns an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{
		schemas: make(map[string]*schema.ToolInfo),
	}
}

// Add records a tool schema. Fails on a duplicate name.
func (r *SchemaRegistry) Add(info *schema.ToolInfo) error {
	if info == nil || info.Name == "" {
		return fmt.Errorf("tool schema requires a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[info.Name]; exists {
		return fmt.Errorf("tool schema %q already registered", info.Name)
	}
	r.schemas[info.Name] = info
	return nil
}

// Clear removes every registered schema. Safe to call repeatedly.
func (r *SchemaRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas = make(map[string]*schema.ToolInfo)
}

// Len returns the number of registered schemas.
func (r *SchemaRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.schemas)
}
