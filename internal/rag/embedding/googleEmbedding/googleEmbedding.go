package googleEmbedding

import (
	"context"
	"sync"
	"time"

	"github.com/mfales/ragengine/pkg/logx"
	"google.golang.org/genai"
)

var logger *logx.Logger
var loggerOnce sync.Once

type Client struct {
	genAi     *genai.Client
	model     string
	dimension int32
}

// NewClient builds a fresh client for the given model. Not a singleton:
// the embedding provider can be swapped at runtime and the old client is
// simply dropped with its handle.
func NewClient(ctx context.Context, modelName string, apikey string, dimension int32) (*Client, error) {
	loggerOnce.Do(func() {
		logger = logx.NewLogger("google_embedding")
	})

	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		logger.Error("Error creating Google Embedding client:", "error", err)
		return nil, err
	}

	logger.Info("Google Embedding client created", "model", modelName, "dimension", dimension)
	return &Client{
		genAi:     c,
		model:     modelName,
		dimension: dimension,
	}, nil
}

func (c *Client) Dimension() int32 {
	return c.dimension
}

func (c *Client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	log := logger.With("traceId", ctx.Value("traceId"))

	result, err := c.doCall(ctx, genai.Text(query))
	if err != nil {
		log.Error("Error getting Embedding from Google", "error", err.Error())
		return nil, err
	}
	return result.Embeddings[0].Values, nil
}

func (c *Client) BatchEmbedding(ctx context.Context, chunks []string, isLargeDataSet bool) ([][]float32, error) {
	log := logger.With("traceId", ctx.Value("traceId"))

	if !isLargeDataSet {
		res, err := c.doCall(ctx, getContent(chunks))
		if err != nil || res == nil {
			if doRetry(err, log) {
				time.Sleep(5 * time.Second)
				log.Debug("Retrying in 5 seconds")

				res, err = c.doCall(ctx, getContent(chunks))
			}
			if err != nil || res == nil {
				log.Error("Error getting Embeddings from Google", "error", err)
				return nil, err
			}
		}
		var embeddingResults [][]float32
		for _, r := range res.Embeddings {
			embeddingResults = append(embeddingResults, r.Values)
		}

		return embeddingResults, nil
	}

	return c.batchJobEmbedding(ctx, chunks, log)
}

func (c *Client) doCall(ctx context.Context, content []*genai.Content) (*genai.EmbedContentResponse, error) {
	conf := &genai.EmbedContentConfig{OutputDimensionality: &c.dimension, TaskType: "RETRIEVAL_DOCUMENT"}
	return c.genAi.Models.EmbedContent(ctx, c.model, content, conf)
}
