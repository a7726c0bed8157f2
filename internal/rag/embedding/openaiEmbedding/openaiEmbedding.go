package openaiEmbedding

import (
	"context"
	"sync"

	"github.com/mfales/ragengine/pkg/logx"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var logger *logx.Logger
var loggerOnce sync.Once

type Client struct {
	api       openai.Client
	model     string
	dimension int32
}

func NewClient(modelName string, apikey string, dimension int32) *Client {
	loggerOnce.Do(func() {
		logger = logx.NewLogger("openai_embedding")
	})

	logger.Info("OpenAI Embedding client created", "model", modelName, "dimension", dimension)
	return &Client{
		api:       openai.NewClient(option.WithAPIKey(apikey)),
		model:     modelName,
		dimension: dimension,
	}
}

func (c *Client) Dimension() int32 {
	return c.dimension
}

func (c *Client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	log := logger.With("traceId", ctx.Value("traceId"))

	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(query)},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: openai.Int(int64(c.dimension)),
	})
	if err != nil {
		log.Error("Error getting Embedding from OpenAI", "error", err.Error())
		return nil, err
	}
	return toFloat32(resp.Data[0].Embedding), nil
}

// BatchEmbedding embeds all chunks in one request. OpenAI has no async
// batch job path here, isLargeDataSet only changes the request slicing.
func (c *Client) BatchEmbedding(ctx context.Context, chunks []string, isLargeDataSet bool) ([][]float32, error) {
	log := logger.With("traceId", ctx.Value("traceId"))

	batchSize := len(chunks)
	if isLargeDataSet {
		batchSize = 2048 //API limit on inputs per request
	}

	var results [][]float32
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: chunks[start:end]},
			Model:      openai.EmbeddingModel(c.model),
			Dimensions: openai.Int(int64(c.dimension)),
		})
		if err != nil {
			log.Error("Error getting Embeddings from OpenAI", "error", err.Error())
			return nil, err
		}
		for _, d := range resp.Data {
			results = append(results, toFloat32(d.Embedding))
		}
	}

	return results, nil
}

func toFloat32(vector []float64) []float32 {
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(v)
	}
	return out
}
