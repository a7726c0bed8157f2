package rag_test

import (
	"context"

	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/rag/embedding"
	"github.com/mfales/ragengine/internal/rag/llm"
	"github.com/mfales/ragengine/internal/rag/vectorDB"
)

// MockVectorDB implements vectorDB.DataProcessor
type MockVectorDB struct {
	// Control fields to simulate different behaviors
	OnQuery            func(ctx context.Context, collection string, vector []float32, limit uint64, filter vectorDB.QueryFilter) ([]commonModels.SearchHit, error)
	OnFetchChunks      func(ctx context.Context, collection string, documentId string, indices []int) ([]commonModels.SearchHit, error)
	OnGetCachedAnswer  func(ctx context.Context, queryVector []float32) (string, bool, error)
	OnSaveToCache      func(ctx context.Context, id string, vector []float32, answer string) error
	OnEnsureCollection func(ctx context.Context, collection string, dimension uint64) error
	OnUpsertChunks     func(ctx context.Context, collection string, doc commonModels.Document, sourceId string, chunks []commonModels.Chunk, vectors [][]float32) error
	OnDeleteByDocument func(ctx context.Context, collection string, documentId string) error
}

func (m *MockVectorDB) Query(ctx context.Context, collection string, vector []float32, limit uint64, filter vectorDB.QueryFilter) ([]commonModels.SearchHit, error) {
	if m.OnQuery != nil {
		return m.OnQuery(ctx, collection, vector, limit, filter)
	}
	return []commonModels.SearchHit{{
		ChunkId:    "chunk-1",
		DocumentId: "doc-1",
		SourceId:   "src-1",
		ChunkIndex: 0,
		Content:    "default context",
		Title:      "Default Doc",
		Score:      0.7,
	}}, nil
}

func (m *MockVectorDB) FetchChunks(ctx context.Context, collection string, documentId string, indices []int) ([]commonModels.SearchHit, error) {
	if m.OnFetchChunks != nil {
		return m.OnFetchChunks(ctx, collection, documentId, indices)
	}
	return nil, nil
}

func (m *MockVectorDB) GetCachedAnswer(ctx context.Context, v []float32) (string, bool, error) {
	if m.OnGetCachedAnswer != nil {
		return m.OnGetCachedAnswer(ctx, v)
	}
	return "", false, nil
}

func (m *MockVectorDB) SaveToCache(ctx context.Context, id string, v []float32, a string) error {
	if m.OnSaveToCache != nil {
		return m.OnSaveToCache(ctx, id, v, a)
	}
	return nil
}

func (m *MockVectorDB) EnsureCollection(ctx context.Context, collection string, dimension uint64) error {
	if m.OnEnsureCollection != nil {
		return m.OnEnsureCollection(ctx, collection, dimension)
	}
	return nil
}

func (m *MockVectorDB) RecreateCollection(ctx context.Context, collection string, dimension uint64) error {
	return nil
}

func (m *MockVectorDB) UpsertChunks(ctx context.Context, collection string, doc commonModels.Document, sourceId string, chunks []commonModels.Chunk, vectors [][]float32) error {
	if m.OnUpsertChunks != nil {
		return m.OnUpsertChunks(ctx, collection, doc, sourceId, chunks, vectors)
	}
	return nil
}

func (m *MockVectorDB) DeleteByDocument(ctx context.Context, collection string, documentId string) error {
	if m.OnDeleteByDocument != nil {
		return m.OnDeleteByDocument(ctx, collection, documentId)
	}
	return nil
}

func (m *MockVectorDB) DeleteBySource(ctx context.Context, collection string, sourceId string) error {
	return nil
}

type MockEmbedder struct {
	OnGetEmbedding   func(ctx context.Context, text string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, chunks []string, isHuge bool) ([][]float32, error)
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, query)
	}
	return []float32{0.1}, nil
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, chunks []string, isHuge bool) ([][]float32, error) {
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, chunks, isHuge)
	}
	return make([][]float32, len(chunks)), nil
}

func (m *MockEmbedder) Dimension() int32 {
	return 1
}

// MockFactory hands the same mock embedder to every version token.
func MockFactory(e *MockEmbedder) func(ctx context.Context, provider, modelName, apiKey string, dimension int32) (embedding.Embedder, error) {
	return func(ctx context.Context, provider, modelName, apiKey string, dimension int32) (embedding.Embedder, error) {
		return e, nil
	}
}

// MockLLM implements llm.Provider
type MockLLM struct {
	OnGenerate       func(ctx context.Context, messages []llm.Message, temperature float32) (string, error)
	OnGenerateStream func(ctx context.Context, messages []llm.Message, temperature float32, onFragment func(string) error) error
}

func (m *MockLLM) Generate(ctx context.Context, messages []llm.Message, temperature float32) (string, error) {
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, messages, temperature)
	}
	return "mocked llm response", nil
}

func (m *MockLLM) GenerateStream(ctx context.Context, messages []llm.Message, temperature float32, onFragment func(string) error) error {
	if m.OnGenerateStream != nil {
		return m.OnGenerateStream(ctx, messages, temperature, onFragment)
	}
	return onFragment("mocked llm response")
}
