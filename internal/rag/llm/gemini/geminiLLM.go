package gemini

import (
	"context"
	"sync"

	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/pkg/logx"
	"google.golang.org/genai"
)

var logger *logx.Logger
var loggerOnce sync.Once

type Client struct {
	client    *genai.Client
	modelName string
}

func NewClient(ctx context.Context, modelName string, apikey string) (*Client, error) {
	loggerOnce.Do(func() {
		logger = logx.NewLogger("llm_gemini")
	})

	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		logger.Error("Error creating Gemini client:", "error", err)
		return nil, err
	}

	logger.Info("Gemini client created", "model", modelName)
	return &Client{client: c, modelName: modelName}, nil
}

func (c *Client) Generate(ctx context.Context, messages []commonModels.ChatMessage, temperature float32) (string, error) {
	log := logger.With("traceId", ctx.Value("traceId"))

	contents, conf := c.toRequest(messages, temperature)
	result, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, conf)
	if err != nil {
		log.Error("Gemini generation failed", "error", err)
		return "", err
	}
	return result.Text(), nil
}

func (c *Client) GenerateStream(ctx context.Context, messages []commonModels.ChatMessage, temperature float32, onFragment func(string) error) error {
	log := logger.With("traceId", ctx.Value("traceId"))

	contents, conf := c.toRequest(messages, temperature)
	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.modelName, contents, conf) {
		if err != nil {
			log.Error("Gemini stream failed", "error", err)
			return err
		}
		fragment := resp.Text()
		if fragment == "" {
			continue
		}
		if err := onFragment(fragment); err != nil {
			return err
		}
	}
	return nil
}

// toRequest maps chat turns to the genai shapes: the system turn becomes
// the system instruction, assistant turns get the "model" role.
func (c *Client) toRequest(messages []commonModels.ChatMessage, temperature float32) ([]*genai.Content, *genai.GenerateContentConfig) {
	conf := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}

	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case "system":
			conf.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: m.Content}},
			}
		case "assistant":
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}

	return contents, conf
}
