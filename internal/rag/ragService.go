package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mfales/ragengine/internal/adapter/utils"
	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/domain/jobModel"
	"github.com/mfales/ragengine/internal/metrics"
	"github.com/mfales/ragengine/internal/rag/chunker"
	"github.com/mfales/ragengine/internal/rag/citations"
	"github.com/mfales/ragengine/internal/rag/contextbuild"
	"github.com/mfales/ragengine/internal/rag/embedding"
	"github.com/mfales/ragengine/internal/rag/extract"
	"github.com/mfales/ragengine/internal/rag/llm"
	"github.com/mfales/ragengine/internal/rag/reconcile"
	"github.com/mfales/ragengine/internal/rag/retriever"
	"github.com/mfales/ragengine/internal/rag/vectorDB"
	"github.com/mfales/ragengine/internal/security"
	"github.com/mfales/ragengine/pkg/logx"
)

// SourceEntry is re-exported so callers of the engine don't reach into
// the assembly package for the source table type.
type SourceEntry = contextbuild.SourceEntry

type AnswerRequest struct {
	Question  string
	SourceIds []string
	Date      commonModels.DateFilter
	History   []jobModel.ChatTurn
}

type AnswerResponse struct {
	Answer    string
	Sources   []contextbuild.SourceEntry
	Citations []int
	Cached    bool
}

type SearchRequest struct {
	Query     string
	Limit     uint64
	SourceIds []string
	Date      commonModels.DateFilter
}

// Service is the single surface the handlers and the worker call. They
// never touch the vector index, the embedder or the generator directly,
// so tests swap the whole engine behind this interface.
type Service interface {
	Answer(ctx context.Context, req AnswerRequest) (AnswerResponse, error)
	// AnswerStream feeds generated fragments to onFragment as they
	// arrive. The returned response carries whatever answer text was
	// produced, with citations computed from it, even when the stream
	// was cancelled mid-generation.
	AnswerStream(ctx context.Context, req AnswerRequest, onFragment func(fragment string) error) (AnswerResponse, error)
	Search(ctx context.Context, req SearchRequest) ([]commonModels.SearchHit, error)
	// DeleteSource removes a source's vectors first, then its documents
	// and chunks, so retrieval never sees vectors without stored chunks.
	DeleteSource(ctx context.Context, sourceId string) error
	ProcessJob(ctx context.Context, job jobModel.Job) jobModel.Job
	SetEmbeddingVersion(ctx context.Context, provider string, modelName string, dimension int32) error
	ActiveEmbeddingVersion(ctx context.Context) (string, error)
}

// embeddingHandle pins an embedder client to the version token it was
// built from. Call paths re-check the shared version store and swap the
// handle on mismatch instead of mutating a process-wide singleton.
type embeddingHandle struct {
	token    string
	embedder embedding.Embedder
}

type service struct {
	index       vectorDB.DataProcessor
	llmProvider llm.Provider
	docs        commonModels.DocumentStore
	versions    commonModels.VersionStore
	guard       *security.URLGuard
	retriever   *retriever.Retriever
	assembler   *contextbuild.Assembler
	chunks      *chunker.Chunker
	apiKeys     map[string]string
	newEmbedder EmbedderFactory

	mu     sync.RWMutex
	handle *embeddingHandle

	logger *logx.Logger
}

// EmbedderFactory builds a provider client for a published embedding
// version. Tests stub it, production uses embedding.NewEmbedder.
type EmbedderFactory func(ctx context.Context, provider string, modelName string, apiKey string, dimension int32) (embedding.Embedder, error)

// NewService wires the engine. apiKeys maps provider name to API key so
// an embedding version switch can build the new provider's client.
func NewService(index vectorDB.DataProcessor, llmProvider llm.Provider, docs commonModels.DocumentStore, versions commonModels.VersionStore, apiKeys map[string]string) Service {
	return NewServiceWithEmbedderFactory(index, llmProvider, docs, versions, apiKeys, embedding.NewEmbedder)
}

func NewServiceWithEmbedderFactory(index vectorDB.DataProcessor, llmProvider llm.Provider, docs commonModels.DocumentStore, versions commonModels.VersionStore, apiKeys map[string]string, factory EmbedderFactory) Service {
	return &service{
		index:       index,
		llmProvider: llmProvider,
		docs:        docs,
		versions:    versions,
		guard:       security.NewURLGuard(),
		retriever:   retriever.New(index, config.ChunkCollectionName),
		assembler:   contextbuild.NewAssembler(docs, contextbuild.DefaultOptions()),
		chunks:      chunker.NewChunker(config.ChunkSizeTokens, config.ChunkOverlapTokens, nil),
		apiKeys:     apiKeys,
		newEmbedder: factory,
		logger:      logx.NewLogger("RAG Service"),
	}
}

func versionToken(provider, modelName string, dimension int32) string {
	return fmt.Sprintf("%s/%s/%d", provider, modelName, dimension)
}

func parseVersionToken(token string) (provider, modelName string, dimension int32, err error) {
	parts := strings.Split(token, "/")
	if len(parts) != 3 {
		return "", "", 0, fmt.Errorf("malformed embedding version token: %s", token)
	}
	var dim int
	if _, err := fmt.Sscanf(parts[2], "%d", &dim); err != nil {
		return "", "", 0, fmt.Errorf("malformed embedding dimension in token %s", token)
	}
	return parts[0], parts[1], int32(dim), nil
}

// embedderHandle returns the embedder matching the shared version store,
// rebuilding the client and ensuring the collection when the active
// version moved since the handle was built. An empty store is seeded
// from the configured defaults.
func (s *service) embedderHandle(ctx context.Context) (*embeddingHandle, error) {
	token, err := s.versions.GetVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading embedding version: %w", err)
	}
	if token == "" {
		token = versionToken(config.EmbeddingProvider, config.EmbeddingModelName, config.EmbeddingDimension)
		if err := s.versions.SetVersion(ctx, token); err != nil {
			return nil, fmt.Errorf("seeding embedding version: %w", err)
		}
	}

	s.mu.RLock()
	current := s.handle
	s.mu.RUnlock()
	if current != nil && current.token == token {
		return current, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil && s.handle.token == token {
		return s.handle, nil
	}

	provider, modelName, dimension, err := parseVersionToken(token)
	if err != nil {
		return nil, err
	}

	embedder, err := s.newEmbedder(ctx, provider, modelName, s.apiKeys[provider], dimension)
	if err != nil {
		return nil, fmt.Errorf("building embedder for %s: %w", token, err)
	}
	if err := s.index.EnsureCollection(ctx, config.ChunkCollectionName, uint64(dimension)); err != nil {
		return nil, fmt.Errorf("ensuring chunk collection: %w", err)
	}

	s.logger.Info("Embedding handle rebuilt", "version", token)
	s.handle = &embeddingHandle{token: token, embedder: embedder}
	return s.handle, nil
}

// SetEmbeddingVersion publishes a new active embedding identity. Callers
// enqueue rechunk jobs afterwards, existing vectors are unusable in the
// new embedding space.
func (s *service) SetEmbeddingVersion(ctx context.Context, provider string, modelName string, dimension int32) error {
	switch provider {
	case config.ProviderGoogle, config.ProviderOpenAI:
	default:
		return fmt.Errorf("unknown embedding provider: %s", provider)
	}
	token := versionToken(provider, modelName, dimension)
	if err := s.versions.SetVersion(ctx, token); err != nil {
		return fmt.Errorf("publishing embedding version: %w", err)
	}
	s.logger.Info("Embedding version changed", "version", token)
	return nil
}

func (s *service) ActiveEmbeddingVersion(ctx context.Context) (string, error) {
	token, err := s.versions.GetVersion(ctx)
	if err != nil {
		return "", err
	}
	if token == "" {
		return versionToken(config.EmbeddingProvider, config.EmbeddingModelName, config.EmbeddingDimension), nil
	}
	return token, nil
}

func (s *service) Answer(ctx context.Context, req AnswerRequest) (AnswerResponse, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	processCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	prep, err := s.prepare(processCtx, log, req)
	if err != nil {
		return AnswerResponse{}, err
	}
	if prep.cached != "" {
		resp := AnswerResponse{Answer: prep.cached, Cached: true}
		return resp, nil
	}

	start := time.Now()
	answer, err := s.llmProvider.Generate(processCtx, prep.messages, config.ModelTemperature)
	metrics.CaptureExecutionMetrics("llm_generation", time.Since(start))
	if err != nil {
		return AnswerResponse{}, fmt.Errorf("generation failed: %w", err)
	}

	s.cacheInBackground(req, prep.vector, answer)
	return s.finish(prep, answer), nil
}

func (s *service) AnswerStream(ctx context.Context, req AnswerRequest, onFragment func(string) error) (AnswerResponse, error) {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	prep, err := s.prepare(ctx, log, req)
	if err != nil {
		return AnswerResponse{}, err
	}
	if prep.cached != "" {
		if err := onFragment(prep.cached); err != nil {
			return AnswerResponse{}, err
		}
		return AnswerResponse{Answer: prep.cached, Cached: true}, nil
	}

	var answer strings.Builder
	start := time.Now()
	streamErr := s.llmProvider.GenerateStream(ctx, prep.messages, config.ModelTemperature, func(fragment string) error {
		answer.WriteString(fragment)
		return onFragment(fragment)
	})
	metrics.CaptureExecutionMetrics("llm_generation", time.Since(start))

	// A cancelled stream still gets the citation summary for whatever
	// text made it out, the caller needs a terminal payload either way.
	resp := s.finish(prep, answer.String())
	if streamErr != nil {
		return resp, streamErr
	}

	s.cacheInBackground(req, prep.vector, resp.Answer)
	return resp, nil
}

func (s *service) Search(ctx context.Context, req SearchRequest) ([]commonModels.SearchHit, error) {
	handle, err := s.embedderHandle(ctx)
	if err != nil {
		return nil, err
	}

	vector, err := handle.embedder.GetEmbedding(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	limit := req.Limit
	if limit == 0 {
		limit = config.SearchLimit
	}
	return s.retriever.SearchWithContext(ctx, vector, retriever.Params{
		Limit: limit,
		Filter: vectorDB.QueryFilter{
			SourceIds:      req.SourceIds,
			Date:           req.Date,
			ScoreThreshold: config.ScoreThreshold,
		},
		ContextWindow: config.ContextWindowSize,
	})
}

func (s *service) DeleteSource(ctx context.Context, sourceId string) error {
	if _, ok := s.docs.GetSource(ctx, sourceId); !ok {
		return fmt.Errorf("source %s not found", sourceId)
	}
	if err := s.index.DeleteBySource(ctx, config.ChunkCollectionName, sourceId); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	if err := s.docs.DeleteSource(ctx, sourceId); err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}
	s.logger.Info("Source deleted", "sourceId", sourceId)
	return nil
}

// ProcessJob runs a reconcile or rechunk job with the currently active
// embedding handle and returns the finished job for the worker to save.
func (s *service) ProcessJob(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureJobMetrics(string(job.JobType), time.Since(start)) }()

	handle, err := s.embedderHandle(ctx)
	if err != nil {
		s.logger.Error("Embedding handle unavailable for job", "jobId", job.Id, "error", err)
		job.Status = jobModel.JobStatusError
		job.Error = jobModel.JobError{Message: err.Error(), Retry: true}
		job.EndTime = time.Now()
		return job
	}

	reconciler := reconcile.New(s.docs, s.index, s.chunks, handle.embedder, config.ChunkCollectionName)

	switch job.JobType {
	case jobModel.JobTypeRechunk:
		return reconcile.ProcessRechunkJob(ctx, job, s.docs, reconciler)
	default:
		source, ok := s.docs.GetSource(ctx, job.SourceId)
		if !ok {
			job.Status = jobModel.JobStatusError
			job.Error = jobModel.JobError{Message: "source not found"}
			job.EndTime = time.Now()
			return job
		}
		extractor, err := extract.NewExtractor(source.Type, s.guard)
		if err != nil {
			job.Status = jobModel.JobStatusError
			job.Error = jobModel.JobError{Message: err.Error()}
			job.EndTime = time.Now()
			return job
		}
		return reconcile.ProcessReconcileJob(ctx, job, s.docs, reconciler, extractor)
	}
}

func (s *service) cacheInBackground(req AnswerRequest, vector []float32, answer string) {
	// scoped answers would poison the cache for differently-filtered
	// queries, only unfiltered questions are cached
	if len(req.SourceIds) > 0 || !req.Date.IsZero() || answer == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.index.SaveToCache(ctx, utils.GetNewUUID(), vector, answer); err != nil {
			s.logger.Error("Saving answer to cache failed", "error", err)
		}
	}()
}

func (s *service) finish(prep *preparedQuery, answer string) AnswerResponse {
	cited := citations.Extract(answer, len(prep.table))
	contextbuild.MarkCited(prep.table, cited)
	return AnswerResponse{
		Answer:    answer,
		Sources:   prep.table,
		Citations: cited,
	}
}
