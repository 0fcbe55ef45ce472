// Package models holds model-provider configuration shared by the LLM
// manager and the model management API.
package models

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const modelFileName = ".cadenza/models.json"

// ============================================================
// Domain Constants - High-level model categories
// ============================================================

const (
	DomainLanguage   = "language"   // Text/language processing
	DomainEmbedding  = "embedding"  // Vector embeddings
	DomainMultimodal = "multimodal" // Multi-modal processing
)

// SupportedDomains all valid domain values
var SupportedDomains = map[string]struct{}{
	DomainLanguage:   {},
	DomainEmbedding:  {},
	DomainMultimodal: {},
}

// ============================================================
// Task Type Constants - Specific capabilities within domains
// ============================================================

const (
	TaskTypeChat          = "chat"           // Conversational text generation
	TaskTypeTextEmbedding = "text_embedding" // Text to vector
	TaskTypeRerank        = "rerank"         // Relevance scoring
)

// SupportedTaskTypes all valid task type values
var SupportedTaskTypes = map[string]struct{}{
	TaskTypeChat:          {},
	TaskTypeTextEmbedding: {},
	TaskTypeRerank:        {},
}

// DomainTaskMapping maps domains to their supported task types
var DomainTaskMapping = map[string][]string{
	DomainLanguage:   {TaskTypeChat},
	DomainEmbedding:  {TaskTypeTextEmbedding, TaskTypeRerank},
	DomainMultimodal: {TaskTypeChat, TaskTypeTextEmbedding},
}

// ModelCapabilities represents functional features that a model supports.
// All fields are optional and default to false when omitted.
type ModelCapabilities struct {
	Reasoning    bool `json:"reasoning,omitempty"`     // Chain-of-thought / deep thinking
	FunctionCall bool `json:"function_call,omitempty"` // Tool use / function calling
	Streaming    bool `json:"streaming,omitempty"`     // Streaming response support
	JSONMode     bool `json:"json_mode,omitempty"`     // Structured JSON output
	SystemPrompt bool `json:"system_prompt,omitempty"` // System prompt support
}

// ModelLimits represents optional size limits.
type ModelLimits struct {
	MaxTokens     int   `json:"max_tokens"`
	ContextWindow int   `json:"context_window"`
	Dimensions    []int `json:"dimensions,omitempty"` // Embedding output dimensions (first is default)
}

// ModelConfig unified struct containing common fields and vendor extension fields.
// Extra stores vendor specific additional parameters.
type ModelConfig struct {
	ID           string                 `json:"id"`
	Provider     string                 `json:"provider"`
	Domain       string                 `json:"domain"`
	TaskTypes    []string               `json:"task_types"`
	Capabilities *ModelCapabilities     `json:"capabilities,omitempty"`
	Limits       *ModelLimits           `json:"limits,omitempty"`
	Model        string                 `json:"model"`    // Model identifier
	Name         string                 `json:"name"`     // Display name
	BaseUrl      string                 `json:"base_url"` // API endpoint
	ApiKey       string                 `json:"api_key"`  // API key
	Extra        map[string]interface{} `json:"extra"`    // Vendor-specific fields
}

func (m *ModelConfig) Normalize() {
	if m.Domain == "" {
		m.Domain = DomainLanguage
	}
	if len(m.TaskTypes) == 0 {
		m.TaskTypes = []string{TaskTypeChat}
	}
	if m.Extra == nil {
		m.Extra = map[string]interface{}{}
	}
}

// SupportsTask reports whether the config lists the given task type.
func (m *ModelConfig) SupportsTask(task string) bool {
	for _, t := range m.TaskTypes {
		if t == task {
			return true
		}
	}
	return false
}

// Get model storage file path
func getModelFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return modelFileName // fallback
	}
	return filepath.Join(home, modelFileName)
}

// LoadModels loads the model list from disk.
func LoadModels() ([]*ModelConfig, error) {
	path := getModelFilePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return []*ModelConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var models []*ModelConfig
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, err
	}
	for _, m := range models {
		if m != nil {
			m.Normalize()
		}
	}
	return models, nil
}

// SaveModels persists the model list to disk.
func SaveModels(models []*ModelConfig) error {
	path := getModelFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	for _, m := range models {
		if m != nil {
			m.Normalize()
		}
	}
	data, err := json.MarshalIndent(models, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// SupportedModelProviders supported model providers
var SupportedModelProviders = map[string]struct{}{
	"openai":    {},
	"deepseek":  {},
	"anthropic": {},
	"google":    {},
	"ark":       {},
	"ollama":    {},
	"qianfan":   {},
	"qwen":      {},
	"custom":    {},
}
