// Memory tools for AI agents to store and retrieve memories
package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/cadenza-chat/cadenza/pkg/db"
	"github.com/cadenza-chat/cadenza/pkg/tools"
)

// Tool IDs
const (
	ToolIDMemoryStore  tools.ToolID = "memory_store"
	ToolIDMemoryRecall tools.ToolID = "memory_recall"
	ToolIDMemoryForget tools.ToolID = "memory_forget"
)

func init() {
	tools.Register(tools.ToolDefinition{
		ID:          ToolIDMemoryStore,
		Name:        "memory_store",
		Description: "Store important information to long-term memory for future reference.",
		Category:    tools.CategoryMemory,
		Dangerous:   false,
	}, newMemoryStoreTool)

	tools.Register(tools.ToolDefinition{
		ID:          ToolIDMemoryRecall,
		Name:        "memory_recall",
		Description: "Recall information from long-term memory.",
		Category:    tools.CategoryMemory,
		Dangerous:   false,
	}, newMemoryRecallTool)

	tools.Register(tools.ToolDefinition{
		ID:          ToolIDMemoryForget,
		Name:        "memory_forget",
		Description: "Remove a memory from long-term storage by its key.",
		Category:    tools.CategoryMemory,
		Dangerous:   true,
	}, newMemoryForgetTool)
}

// ========== Memory Store Tool ==========

type MemoryStoreInput struct {
	Type       string   `json:"type"`
	Key        string   `json:"key"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags,omitempty"`
	Importance int      `json:"importance,omitempty"`
}

type MemoryStoreOutput struct {
	Success  bool   `json:"success"`
	MemoryID string `json:"memory_id,omitempty"`
	Message  string `json:"message"`
	IsUpdate bool   `json:"is_update"`
}

func newMemoryStoreTool(tc *tools.ToolContext) tool.InvokableTool {
	memoryService := tc.Memory
	userID := tc.UserID()

	return utils.NewTool(&schema.ToolInfo{
		Name: "memory_store",
		Desc: "Store important information to long-term memory for future reference. Use this to remember facts, user preferences, or instructions.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"type": {
				Type:     schema.String,
				Desc:     "Memory type: fact, preference, instruction, summary",
				Required: true,
				Enum:     []string{"fact", "preference", "instruction", "summary"},
			},
			"key": {
				Type:     schema.String,
				Desc:     "Unique identifier for this memory. If exists, it will be updated.",
				Required: true,
			},
			"content": {
				Type:     schema.String,
				Desc:     "The information to remember.",
				Required: true,
			},
			"tags": {
				Type:     schema.Array,
				Desc:     "Tags for organization",
				ElemInfo: &schema.ParameterInfo{Type: schema.String},
			},
			"importance": {
				Type: schema.Integer,
				Desc: "Importance level 0-100. Default: 50",
			},
		}),
	}, func(ctx context.Context, input *MemoryStoreInput) (string, error) {
		if memoryService == nil {
			return formatJSON(&MemoryStoreOutput{Success: false, Message: "Memory service not available"}), nil
		}

		if input.Type == "" || input.Key == "" || input.Content == "" {
			return formatJSON(&MemoryStoreOutput{Success: false, Message: "type, key, and content are required"}), nil
		}

		existing, _ := memoryService.GetByKey(ctx, userID, input.Key)
		isUpdate := existing != nil

		req := &db.CreateMemoryRequest{
			Type:       db.MemoryType(input.Type),
			Key:        input.Key,
			Content:    input.Content,
			Tags:       input.Tags,
			Importance: input.Importance,
			SourceType: db.MemorySourceTool,
		}

		memory, err := memoryService.Store(ctx, userID, req)
		if err != nil {
			return formatJSON(&MemoryStoreOutput{Success: false, Message: fmt.Sprintf("Failed: %v", err)}), nil
		}

		action := "stored"
		if isUpdate {
			action = "updated"
		}

		return formatJSON(&MemoryStoreOutput{
			Success:  true,
			MemoryID: memory.ID,
			Message:  fmt.Sprintf("Memory '%s' %s successfully", input.Key, action),
			IsUpdate: isUpdate,
		}), nil
	})
}

// ========== Memory Recall Tool ==========

type MemoryRecallInput struct {
	Query string `json:"query,omitempty"`
	Type  string `json:"type,omitempty"`
	Key   string `json:"key,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type MemoryRecallOutput struct {
	Success  bool          `json:"success"`
	Memories []RecalledMem `json:"memories,omitempty"`
	Count    int           `json:"count"`
	Message  string        `json:"message,omitempty"`
}

type RecalledMem struct {
	Key        string  `json:"key"`
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	Importance int     `json:"importance"`
	Similarity float32 `json:"similarity,omitempty"`
}

func newMemoryRecallTool(tc *tools.ToolContext) tool.InvokableTool {
	memoryService := tc.Memory
	userID := tc.UserID()

	return utils.NewTool(&schema.ToolInfo{
		Name: "memory_recall",
		Desc: "Recall information from long-term memory. Use semantic search or filter by type/key.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type: schema.String,
				Desc: "Semantic search query to find relevant memories.",
			},
			"type": {
				Type: schema.String,
				Desc: "Filter by memory type",
				Enum: []string{"fact", "preference", "instruction", "summary"},
			},
			"key": {
				Type: schema.String,
				Desc: "Recall a specific memory by its exact key",
			},
			"limit": {
				Type: schema.Integer,
				Desc: "Maximum memories to return. Default: 10",
			},
		}),
	}, func(ctx context.Context, input *MemoryRecallInput) (string, error) {
		if memoryService == nil {
			return formatJSON(&MemoryRecallOutput{Success: false, Message: "Memory service not available"}), nil
		}

		limit := input.Limit
		if limit <= 0 {
			limit = 10
		}

		var results []db.MemorySearchResult

		if input.Key != "" {
			mem, err := memoryService.GetByKey(ctx, userID, input.Key)
			if err != nil {
				return formatJSON(&MemoryRecallOutput{Success: false, Message: fmt.Sprintf("Memory '%s' not found", input.Key)}), nil
			}
			results = []db.MemorySearchResult{{Memory: *mem, Similarity: 1.0}}
		} else if input.Query != "" {
			var err error
			results, err = memoryService.SearchCombined(ctx, userID, input.Query, limit)
			if err != nil {
				return formatJSON(&MemoryRecallOutput{Success: false, Message: fmt.Sprintf("Search failed: %v", err)}), nil
			}
		} else {
			mems, err := memoryService.List(ctx, userID, db.MemoryType(input.Type), "", limit)
			if err != nil {
				return formatJSON(&MemoryRecallOutput{Success: false, Message: fmt.Sprintf("Query failed: %v", err)}), nil
			}
			for _, m := range mems {
				results = append(results, db.MemorySearchResult{Memory: m})
			}
		}

		recalled := make([]RecalledMem, len(results))
		for i, r := range results {
			recalled[i] = RecalledMem{
				Key:        r.Memory.Key,
				Type:       string(r.Memory.Type),
				Content:    r.Memory.Content,
				Importance: r.Memory.Importance,
				Similarity: r.Similarity,
			}
		}

		return formatJSON(&MemoryRecallOutput{Success: true, Memories: recalled, Count: len(recalled)}), nil
	})
}

// ========== Memory Forget Tool ==========

type MemoryForgetInput struct {
	Key string `json:"key"`
}

type MemoryForgetOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func newMemoryForgetTool(tc *tools.ToolContext) tool.InvokableTool {
	memoryService := tc.Memory
	userID := tc.UserID()

	return utils.NewTool(&schema.ToolInfo{
		Name: "memory_forget",
		Desc: "Remove a memory from long-term storage by its key.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"key": {
				Type:     schema.String,
				Desc:     "The key of the memory to delete",
				Required: true,
			},
		}),
	}, func(ctx context.Context, input *MemoryForgetInput) (string, error) {
		if memoryService == nil {
			return formatJSON(&MemoryForgetOutput{Success: false, Message: "Memory service not available"}), nil
		}

		if input.Key == "" {
			return formatJSON(&MemoryForgetOutput{Success: false, Message: "key is required"}), nil
		}

		mem, err := memoryService.GetByKey(ctx, userID, input.Key)
		if err != nil {
			return formatJSON(&MemoryForgetOutput{Success: false, Message: fmt.Sprintf("Memory '%s' not found", input.Key)}), nil
		}

		if err := memoryService.Delete(ctx, userID, mem.ID); err != nil {
			return formatJSON(&MemoryForgetOutput{Success: false, Message: fmt.Sprintf("Failed: %v", err)}), nil
		}

		return formatJSON(&MemoryForgetOutput{Success: true, Message: fmt.Sprintf("Memory '%s' deleted", input.Key)}), nil
	})
}

func formatJSON(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}
