package config

import (
	"log/slog"
	"time"
)

const (
	IS_PROD                         = false
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = false //if redis init fails, it falls back to an in-memory store
	TRACE_ID_KEY                    = "traceId"
	RATE_LIMIT_PER_SECOND           = 2
	BURST_RATE_LIMIT_PER_SECOND     = 5
	CacheSimilarityCutoff           = 0.97

	//chunking, sizes in tokens
	ChunkSizeTokens    = 1000
	ChunkOverlapTokens = 200
	CharsPerToken      = 4

	//retrieval
	SearchLimit       = 10
	ScoreThreshold    = 0.5
	ContextWindowSize = 2

	//context assembly
	MaxContextTokens      = 16000
	FullDocScoreThreshold = 0.85
	MaxFullDocChars       = 10000
	MinBlockChars         = 500

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute
	//IdleWorkerTimeout = 1 * time.Second //for tests

	//reconcile retry policy
	ReconcileMaxAttempts = 3
	ReconcileBackoffBase = 2 * time.Second
	ReconcileJobTimeout  = 10 * time.Minute
	FeedSweepInterval    = 5 * time.Minute

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 120 * time.Second //SSE answers stream for up to a minute

	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//vectorDB
	QdrantConnectionTimeout = 30 * time.Second
	QdrantHost              = ""
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false //set for https
	QdrantPoolSize          = 1     //2-5 is preferred for prod according to documentation
	ChunkCollectionName     = "knowledge-chunks"
	AnswerCacheCollection   = "answer-cache"

	//embedding providers, picked by EMBEDDING_PROVIDER / LLM_PROVIDER
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"

	EmbeddingProvider          = ProviderGoogle
	GoogleEmbeddingModel       = "gemini-embedding-001"
	OpenAIEmbeddingModel       = "text-embedding-3-small"
	EmbeddingModelName         = GoogleEmbeddingModel
	EmbeddingDimension   int32 = 1536

	LLMProvider = ProviderGoogle

	GeminiModelName = "gemini-2.5-flash-lite-preview-09-2025"
	OpenAIModelName = "gpt-4o-mini"

	ModelTemperature float32 = 0.7
	SystemPrompt             = "You are a helpful assistant that answers questions based on the provided context.\n\n" +
		"Instructions:\n" +
		"1. Answer the question based ONLY on the provided context\n" +
		"2. If the context doesn't contain enough information to answer, say so clearly\n" +
		"3. ALWAYS cite your sources using bracketed numbers like [1], [2] that match the source numbers provided\n" +
		"4. Place citations after relevant information, e.g., \"The answer is 42 [1].\"\n" +
		"5. Be concise but thorough in your answers"

	//outbound http connection pooling
	MaxIdleConns        = 100
	MaxIdleConnsPerHost = 10
	IdleConnTimeout     = 90 * time.Second

	//extraction
	CrawlTimeout      = 30 * time.Second
	DefaultCrawlDepth = 2
	MaxFeedItems      = 50
	CrawlUserAgent    = "Mozilla/5.0 (compatible; ragengine/1.0)"

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisJobStore      = 0
	RedisMessageStore  = 1
	RedisDocumentStore = 2
	RedisVersionStore  = 3

	//redis timeouts
	RedisJobStoreTTL     = 24 * time.Hour
	RedisMessageStoreTTL = 24 * time.Hour
)
