package llm

import (
	"context"
	"fmt"

	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/rag/llm/gemini"
	"github.com/mfales/ragengine/internal/rag/llm/openaiLLM"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message = commonModels.ChatMessage

type Provider interface {
	Generate(ctx context.Context, messages []Message, temperature float32) (string, error)
	// GenerateStream calls onFragment for each produced text fragment.
	// A non-nil error from onFragment aborts the stream.
	GenerateStream(ctx context.Context, messages []Message, temperature float32, onFragment func(fragment string) error) error
}

func NewProvider(ctx context.Context, provider string, modelName string, apiKey string) (Provider, error) {
	switch provider {
	case config.ProviderGoogle:
		return gemini.NewClient(ctx, modelName, apiKey)
	case config.ProviderOpenAI:
		return openaiLLM.NewClient(modelName, apiKey), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}
