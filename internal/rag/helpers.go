package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/metrics"
	"github.com/mfales/ragengine/internal/rag/contextbuild"
	"github.com/mfales/ragengine/internal/rag/llm"
	"github.com/mfales/ragengine/internal/rag/retriever"
	"github.com/mfales/ragengine/internal/rag/vectorDB"
	"github.com/mfales/ragengine/pkg/logx"
)

// preparedQuery carries everything the generation step needs: the query
// vector, the assembled context, the per-source table and the message
// list. cached is set when the semantic cache already held an answer.
type preparedQuery struct {
	vector   []float32
	table    []contextbuild.SourceEntry
	messages []llm.Message
	cached   string
}

func (s *service) prepare(ctx context.Context, log *logx.Logger, req AnswerRequest) (*preparedQuery, error) {
	handle, err := s.embedderHandle(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	vector, err := handle.embedder.GetEmbedding(ctx, req.Question)
	metrics.CaptureExecutionMetrics("embedding", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	// the cache ignores filters, so a scoped question must skip it
	if len(req.SourceIds) == 0 && req.Date.IsZero() {
		start = time.Now()
		answer, found, err := s.index.GetCachedAnswer(ctx, vector)
		metrics.CaptureExecutionMetrics("cache_lookup", time.Since(start))
		if err != nil {
			log.Warn("Semantic cache lookup failed", "error", err)
		}
		if found {
			return &preparedQuery{vector: vector, cached: answer}, nil
		}
	}

	start = time.Now()
	hits, err := s.retriever.SearchWithContext(ctx, vector, retriever.Params{
		Limit: config.SearchLimit,
		Filter: vectorDB.QueryFilter{
			SourceIds:      req.SourceIds,
			Date:           req.Date,
			ScoreThreshold: config.ScoreThreshold,
		},
		ContextWindow: config.ContextWindowSize,
	})
	metrics.CaptureExecutionMetrics("vector_search", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	contextText, table := s.assembler.Build(ctx, hits)
	if contextText == "" {
		contextText = "No relevant context found."
	}

	return &preparedQuery{
		vector:   vector,
		table:    table,
		messages: buildMessages(contextText, req),
	}, nil
}

func buildMessages(contextText string, req AnswerRequest) []llm.Message {
	messages := []llm.Message{{
		Role:    llm.RoleSystem,
		Content: config.SystemPrompt + "\n\nContext:\n" + contextText,
	}}
	for _, turn := range req.History {
		if turn.Question == "" && turn.Answer == "" {
			continue
		}
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: turn.Question},
			llm.Message{Role: llm.RoleAssistant, Content: turn.Answer})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: req.Question})
}
