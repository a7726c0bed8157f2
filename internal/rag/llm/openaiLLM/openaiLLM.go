package openaiLLM

import (
	"context"
	"sync"

	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/pkg/logx"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var logger *logx.Logger
var loggerOnce sync.Once

type Client struct {
	api       openai.Client
	modelName string
}

func NewClient(modelName string, apikey string) *Client {
	loggerOnce.Do(func() {
		logger = logx.NewLogger("llm_openai")
	})

	logger.Info("OpenAI chat client created", "model", modelName)
	return &Client{
		api:       openai.NewClient(option.WithAPIKey(apikey)),
		modelName: modelName,
	}
}

func (c *Client) Generate(ctx context.Context, messages []commonModels.ChatMessage, temperature float32) (string, error) {
	log := logger.With("traceId", ctx.Value("traceId"))

	resp, err := c.api.Chat.Completions.New(ctx, c.toParams(messages, temperature))
	if err != nil {
		log.Error("OpenAI generation failed", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) GenerateStream(ctx context.Context, messages []commonModels.ChatMessage, temperature float32, onFragment func(string) error) error {
	log := logger.With("traceId", ctx.Value("traceId"))

	stream := c.api.Chat.Completions.NewStreaming(ctx, c.toParams(messages, temperature))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		fragment := chunk.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}
		if err := onFragment(fragment); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		log.Error("OpenAI stream failed", "error", err)
		return err
	}
	return nil
}

func (c *Client) toParams(messages []commonModels.ChatMessage, temperature float32) openai.ChatCompletionNewParams {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			converted = append(converted, openai.SystemMessage(m.Content))
		case "assistant":
			converted = append(converted, openai.AssistantMessage(m.Content))
		default:
			converted = append(converted, openai.UserMessage(m.Content))
		}
	}

	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.modelName),
		Messages:    converted,
		Temperature: openai.Float(float64(temperature)),
	}
}
