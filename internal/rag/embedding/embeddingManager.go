package embedding

import (
	"context"
	"fmt"

	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/rag/embedding/googleEmbedding"
	"github.com/mfales/ragengine/internal/rag/embedding/openaiEmbedding"
)

type Embedder interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	BatchEmbedding(ctx context.Context, chunks []string, isHugeDataSet bool) ([][]float32, error)
	Dimension() int32
}

// NewEmbedder builds a provider client keyed on the configured provider
// name. Callers hold the result behind a versioned handle and rebuild it
// when the active provider or model changes.
func NewEmbedder(ctx context.Context, provider string, modelName string, apiKey string, dimension int32) (Embedder, error) {
	switch provider {
	case config.ProviderGoogle:
		return googleEmbedding.NewClient(ctx, modelName, apiKey, dimension)
	case config.ProviderOpenAI:
		return openaiEmbedding.NewClient(modelName, apiKey, dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}
