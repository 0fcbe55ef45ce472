package llm

import (
	"context"
	"fmt"

	embark "github.com/cloudwego/eino-ext/components/embedding/ark"
	embdashscope "github.com/cloudwego/eino-ext/components/embedding/dashscope"
	embgemini "github.com/cloudwego/eino-ext/components/embedding/gemini"
	embollama "github.com/cloudwego/eino-ext/components/embedding/ollama"
	embopenai "github.com/cloudwego/eino-ext/components/embedding/openai"
	embqianfan "github.com/cloudwego/eino-ext/components/embedding/qianfan"
	"github.com/cloudwego/eino/components/embedding"
	"google.golang.org/genai"

	"github.com/cadenza-chat/cadenza/pkg/models"
)

// CreateEmbedder creates an eino embedder from config
func (m *Manager) CreateEmbedder(ctx context.Context, config *models.ModelConfig) (embedding.Embedder, error) {
	if config == nil {
		return nil, fmt.Errorf("model config is nil")
	}

	switch config.Provider {
	case "openai", "custom":
		embedder, err := embopenai.NewEmbedder(ctx, &embopenai.EmbeddingConfig{
			BaseURL: config.BaseUrl,
			APIKey:  config.ApiKey,
			Model:   config.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI embedder: %w", err)
		}
		return embedder, nil

	case "ark":
		embedder, err := embark.NewEmbedder(ctx, &embark.EmbeddingConfig{
			BaseURL: config.BaseUrl,
			APIKey:  config.ApiKey,
			Model:   config.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Ark embedder: %w", err)
		}
		return embedder, nil

	case "dashscope", "qwen":
		embedder, err := embdashscope.NewEmbedder(ctx, &embdashscope.EmbeddingConfig{
			APIKey: config.ApiKey,
			Model:  config.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create DashScope embedder: %w", err)
		}
		return embedder, nil

	case "ollama":
		embedder, err := embollama.NewEmbedder(ctx, &embollama.EmbeddingConfig{
			BaseURL: config.BaseUrl,
			Model:   config.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama embedder: %w", err)
		}
		return embedder, nil

	case "google":
		genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  config.ApiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		embedder, err := embgemini.NewEmbedder(ctx, &embgemini.EmbeddingConfig{
			Client: genaiClient,
			Model:  config.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini embedder: %w", err)
		}
		return embedder, nil

	case "qianfan":
		embedder, err := embqianfan.NewEmbedder(ctx, &embqianfan.EmbeddingConfig{
			Model: config.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Qianfan embedder: %w", err)
		}
		return embedder, nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", config.Provider)
	}
}
