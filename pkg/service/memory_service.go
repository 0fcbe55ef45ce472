// Memory service with chromem-go vector store integration
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"gorm.io/gorm"

	"github.com/cadenza-chat/cadenza/pkg/db"
	"github.com/cadenza-chat/cadenza/pkg/event"
	"github.com/cadenza-chat/cadenza/pkg/llm"
	"github.com/cadenza-chat/cadenza/pkg/models"
	"github.com/cadenza-chat/cadenza/pkg/utils"
)

var (
	ErrMemoryNotFound      = errors.New("memory not found")
	ErrVectorStoreDisabled = errors.New("vector store is disabled")
)

// MemoryConfig holds configuration for memory service
type MemoryConfig struct {
	EnableVectorStore bool
	VectorStorePath   string // Path for persistent storage
	EmbeddingProvider string // provider of the embedding model
	EmbeddingModel    string // model name

	DefaultMaxResults   int
	SemanticSearchLimit int
}

// DefaultMemoryConfig returns default configuration
func DefaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		EnableVectorStore:   true,
		DefaultMaxResults:   50,
		SemanticSearchLimit: 20,
	}
}

// MemoryService stores per-user memories with optional semantic search over
// a chromem-go vector store. Each user gets their own collection.
type MemoryService struct {
	db     *gorm.DB
	config *MemoryConfig
	logger *slog.Logger

	vectorDB    *chromem.DB
	collections sync.Map // userID -> *chromem.Collection

	embeddingFunc chromem.EmbeddingFunc
}

// NewMemoryService creates a new memory service
func NewMemoryService(database *gorm.DB, config *MemoryConfig) (*MemoryService, error) {
	if config == nil {
		config = DefaultMemoryConfig()
	}

	s := &MemoryService{
		db:     database,
		config: config,
		logger: utils.GetLogger(),
	}

	if config.EnableVectorStore {
		if err := s.initVectorStore(); err != nil {
			s.logger.Warn("failed to initialize vector store, semantic search disabled", "error", err)
			s.config.EnableVectorStore = false
		}
	}

	return s, nil
}

// initVectorStore initializes chromem-go vector store
func (s *MemoryService) initVectorStore() error {
	if s.config.VectorStorePath != "" {
		if err := os.MkdirAll(s.config.VectorStorePath, 0o755); err != nil {
			return fmt.Errorf("failed to create vector store directory: %w", err)
		}
	}

	s.embeddingFunc = s.createEmbeddingFunc()
	if s.embeddingFunc == nil {
		return errors.New("no embedding function available")
	}

	var err error
	if s.config.VectorStorePath != "" {
		s.vectorDB, err = chromem.NewPersistentDB(s.config.VectorStorePath, false)
	} else {
		s.vectorDB = chromem.NewDB()
	}
	if err != nil {
		return fmt.Errorf("failed to create vector DB: %w", err)
	}

	s.logger.Info("vector store initialized", "path", s.config.VectorStorePath)
	return nil
}

// createEmbeddingFunc resolves an embedding function, preferring a configured
// embedding model and falling back to chromem-go built-ins.
func (s *MemoryService) createEmbeddingFunc() chromem.EmbeddingFunc {
	// Configured embedding model via the llm manager.
	if s.config.EmbeddingProvider != "" && s.config.EmbeddingModel != "" {
		if modelConfig, err := s.findEmbeddingModelConfig(s.config.EmbeddingProvider, s.config.EmbeddingModel); err == nil {
			embedder, err := llm.NewManager().CreateEmbedder(context.Background(), modelConfig)
			if err == nil && embedder != nil {
				s.logger.Info("using configured embedding model", "provider", s.config.EmbeddingProvider, "model", s.config.EmbeddingModel)
				return embeddingFuncFromEmbedder(embedder)
			}
			s.logger.Warn("failed to create configured embedder, trying fallback", "provider", s.config.EmbeddingProvider, "model", s.config.EmbeddingModel, "error", err)
		}
	}

	// Fallback: chromem-go built-in providers.
	switch s.config.EmbeddingProvider {
	case "ollama":
		model := s.config.EmbeddingModel
		if model == "" {
			model = "nomic-embed-text"
		}
		return chromem.NewEmbeddingFuncOllama(model, "http://localhost:11434/api")
	default:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil
		}
		model := s.config.EmbeddingModel
		if model == "" {
			model = "text-embedding-3-small"
		}
		return chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI(model))
	}
}

// embeddingFuncFromEmbedder wraps an eino Embedder as chromem.EmbeddingFunc
func embeddingFuncFromEmbedder(embedder embedding.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		embeddings, err := embedder.EmbedStrings(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(embeddings) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}
		result := make([]float32, len(embeddings[0]))
		for i, v := range embeddings[0] {
			result[i] = float32(v)
		}
		return result, nil
	}
}

// findEmbeddingModelConfig finds a model config by provider and model name
func (s *MemoryService) findEmbeddingModelConfig(provider, model string) (*models.ModelConfig, error) {
	modelsList, err := models.LoadModels()
	if err != nil {
		return nil, err
	}
	for _, m := range modelsList {
		if m.Provider == provider && m.Model == model && m.SupportsTask(models.TaskTypeTextEmbedding) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("no matching embedding model found for provider=%s, model=%s", provider, model)
}

// ========== CRUD Operations ==========

// Store creates or updates a memory keyed by (user, key).
func (s *MemoryService) Store(ctx context.Context, userID string, req *db.CreateMemoryRequest) (*db.Memory, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id required")
	}
	if req.Importance == 0 {
		req.Importance = 50
	}

	// Upsert by key when one is given.
	if req.Key != "" {
		var existing db.Memory
		err := s.db.Where("user_id = ? AND key = ?", userID, req.Key).First(&existing).Error
		if err == nil {
			updates := map[string]interface{}{
				"content":     req.Content,
				"type":        req.Type,
				"tags":        db.StringArray(req.Tags),
				"metadata":    req.Metadata,
				"importance":  req.Importance,
				"source_type": req.SourceType,
				"source_id":   req.SourceID,
				"updated_at":  time.Now(),
			}
			if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
				return nil, fmt.Errorf("failed to update memory: %w", err)
			}
			existing.Content = req.Content
			if s.config.EnableVectorStore {
				s.upsertVector(ctx, userID, &existing)
			}
			event.Emit(event.MemoryStoredEvent{MemoryID: existing.ID, UserID: userID})
			return s.Get(ctx, existing.ID)
		}
	}

	memory := &db.Memory{
		ID:         uuid.New().String(),
		UserID:     userID,
		Type:       req.Type,
		Key:        req.Key,
		Content:    req.Content,
		Metadata:   req.Metadata,
		SourceType: req.SourceType,
		SourceID:   req.SourceID,
		Tags:       db.StringArray(req.Tags),
		Importance: req.Importance,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.db.Create(memory).Error; err != nil {
		return nil, fmt.Errorf("failed to create memory: %w", err)
	}

	if s.config.EnableVectorStore {
		s.upsertVector(ctx, userID, memory)
	}

	s.logger.Debug("memory stored", "id", memory.ID, "user", userID, "key", memory.Key, "type", memory.Type)
	event.Emit(event.MemoryStoredEvent{MemoryID: memory.ID, UserID: userID})
	return memory, nil
}

// Get retrieves a memory by ID and updates its access stats.
func (s *MemoryService) Get(ctx context.Context, id string) (*db.Memory, error) {
	var memory db.Memory
	if err := s.db.First(&memory, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemoryNotFound
		}
		return nil, err
	}

	s.db.Model(&memory).Updates(map[string]interface{}{
		"access_count": gorm.Expr("access_count + 1"),
		"last_access":  time.Now(),
	})

	return &memory, nil
}

// GetByKey retrieves a user's memory by its key and updates its access stats.
func (s *MemoryService) GetByKey(ctx context.Context, userID, key string) (*db.Memory, error) {
	var memory db.Memory
	if err := s.db.First(&memory, "user_id = ? AND key = ?", userID, key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemoryNotFound
		}
		return nil, err
	}

	s.db.Model(&memory).Updates(map[string]interface{}{
		"access_count": gorm.Expr("access_count + 1"),
		"last_access":  time.Now(),
	})

	return &memory, nil
}

// Delete removes a memory
func (s *MemoryService) Delete(ctx context.Context, userID, id string) error {
	var memory db.Memory
	if err := s.db.First(&memory, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemoryNotFound
		}
		return err
	}

	if err := s.db.Delete(&db.Memory{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}

	if s.config.EnableVectorStore {
		if col, err := s.getOrCreateCollection(ctx, userID); err == nil {
			if err := col.Delete(ctx, nil, nil, id); err != nil {
				s.logger.Warn("failed to remove memory vector", "id", id, "error", err)
			}
		}
	}
	return nil
}

// List retrieves a user's memories filtered by type and keyword.
func (s *MemoryService) List(ctx context.Context, userID string, memType db.MemoryType, keyword string, limit int) ([]db.Memory, error) {
	if limit <= 0 {
		limit = s.config.DefaultMaxResults
	}

	query := s.db.Model(&db.Memory{}).Where("user_id = ?", userID)
	if memType != "" {
		query = query.Where("type = ?", memType)
	}
	if keyword != "" {
		kw := "%" + keyword + "%"
		query = query.Where("content LIKE ? OR key LIKE ?", kw, kw)
	}

	var memories []db.Memory
	if err := query.Order("importance DESC, updated_at DESC").Limit(limit).Find(&memories).Error; err != nil {
		return nil, err
	}
	return memories, nil
}

// ========== Search ==========

// SearchSemantic performs semantic search using vector similarity
func (s *MemoryService) SearchSemantic(ctx context.Context, userID, query string, limit int) ([]db.MemorySearchResult, error) {
	if !s.config.EnableVectorStore || s.vectorDB == nil {
		return nil, ErrVectorStoreDisabled
	}
	if limit <= 0 {
		limit = s.config.SemanticSearchLimit
	}

	col, err := s.getOrCreateCollection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	// chromem rejects a result count above the collection size
	if count := col.Count(); count < limit {
		limit = count
	}
	if limit == 0 {
		return []db.MemorySearchResult{}, nil
	}

	results, err := col.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if len(results) == 0 {
		return []db.MemorySearchResult{}, nil
	}

	ids := make([]string, len(results))
	similarityMap := make(map[string]float32)
	for i, r := range results {
		ids[i] = r.ID
		similarityMap[r.ID] = r.Similarity
	}

	var memories []db.Memory
	if err := s.db.Where("id IN ? AND user_id = ?", ids, userID).Find(&memories).Error; err != nil {
		return nil, err
	}

	searchResults := make([]db.MemorySearchResult, len(memories))
	for i, m := range memories {
		searchResults[i] = db.MemorySearchResult{
			Memory:     m,
			Similarity: similarityMap[m.ID],
		}
	}
	sort.Slice(searchResults, func(i, j int) bool {
		return searchResults[i].Similarity > searchResults[j].Similarity
	})
	return searchResults, nil
}

// SearchCombined performs both keyword and semantic search, merging results
func (s *MemoryService) SearchCombined(ctx context.Context, userID, query string, limit int) ([]db.MemorySearchResult, error) {
	if limit <= 0 {
		limit = s.config.SemanticSearchLimit
	}

	resultMap := make(map[string]db.MemorySearchResult)

	if s.config.EnableVectorStore {
		semanticResults, err := s.SearchSemantic(ctx, userID, query, limit)
		if err == nil {
			for _, r := range semanticResults {
				resultMap[r.Memory.ID] = r
			}
		}
	}

	keywordResults, err := s.List(ctx, userID, "", query, limit)
	if err == nil {
		for _, m := range keywordResults {
			if _, exists := resultMap[m.ID]; !exists {
				resultMap[m.ID] = db.MemorySearchResult{
					Memory:     m,
					Similarity: 0.5, // Default score for keyword matches
				}
			}
		}
	}

	results := make([]db.MemorySearchResult, 0, len(resultMap))
	for _, r := range resultMap {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ========== Vector Store Operations ==========

// getOrCreateCollection gets or creates the collection for a user
func (s *MemoryService) getOrCreateCollection(ctx context.Context, userID string) (*chromem.Collection, error) {
	collectionName := "user_" + userID

	if col, ok := s.collections.Load(collectionName); ok {
		return col.(*chromem.Collection), nil
	}
	if s.embeddingFunc == nil {
		return nil, errors.New("no embedding function available")
	}

	col := s.vectorDB.GetCollection(collectionName, s.embeddingFunc)
	if col == nil {
		var err error
		col, err = s.vectorDB.CreateCollection(collectionName, nil, s.embeddingFunc)
		if err != nil {
			return nil, err
		}
	}
	s.collections.Store(collectionName, col)
	return col, nil
}

func (s *MemoryService) upsertVector(ctx context.Context, userID string, memory *db.Memory) {
	col, err := s.getOrCreateCollection(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to get vector collection", "user", userID, "error", err)
		return
	}
	doc := chromem.Document{
		ID:      memory.ID,
		Content: memory.Content,
		Metadata: map[string]string{
			"type": string(memory.Type),
			"key":  memory.Key,
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		s.logger.Warn("failed to index memory", "id", memory.ID, "error", err)
	}
}
