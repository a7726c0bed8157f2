// @title           RAG Ingestion & Retrieval API
// @version         1.0
// @description     Reconciliation-based ingestion of web, feed and file sources with cited retrieval over the result.

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/data/store"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	jobmodel "github.com/mfales/ragengine/internal/domain/jobModel"
	"github.com/mfales/ragengine/internal/handlers"
	"github.com/mfales/ragengine/internal/job"
	"github.com/mfales/ragengine/internal/rag"
	"github.com/mfales/ragengine/internal/rag/llm"
	"github.com/mfales/ragengine/internal/rag/vectorDB/qdrantDB"
	"github.com/mfales/ragengine/internal/server"
	"github.com/mfales/ragengine/internal/worker"
	"github.com/mfales/ragengine/pkg/logx"
)

var (
	listenAddr        string
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	logx.Init(config.IS_PROD, config.LOG_LEVEL_PROD)
	var logger = logx.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//stores, redis first with the in-memory fallback
	var jobStore jobmodel.JobStore
	var messageStore jobmodel.MessageStore
	var docStore commonModels.DocumentStore
	var versionStore commonModels.VersionStore

	if redisJobs := store.GetRedisJobStore(serviceContext); redisJobs != nil {
		jobStore = redisJobs
	}
	if redisMessages := store.GetRedisMessageStore(serviceContext); redisMessages != nil {
		messageStore = redisMessages
	}
	if redisDocs := store.GetRedisDocumentStore(serviceContext); redisDocs != nil {
		docStore = redisDocs
	}
	if redisVersions := store.GetRedisVersionStore(serviceContext); redisVersions != nil {
		versionStore = redisVersions
	}
	if jobStore == nil || messageStore == nil || docStore == nil || versionStore == nil {
		logger.Error("Redis stores are offline, falling back to in-memory stores")
		jobStore = store.InitInMemoryJobStore()
		messageStore = store.InitMessageStore()
		docStore = store.InitInMemoryDocumentStore()
		versionStore = store.InitInMemoryVersionStore()
	}

	logger.Info("Starting job service")
	service := job.InitJobService(job.ServiceConfig{
		JobChannel:        jobChannel,
		DispatcherChannel: dispatcherChannel,
		JobStore:          jobStore,
		MessageStore:      messageStore,
	})

	apiKeys := map[string]string{
		config.ProviderGoogle: config.GoogleAPIKey,
		config.ProviderOpenAI: config.OpenAIAPIKey,
	}

	vectorDB := qdrantDB.GetQdrantClient(serviceContext)

	llmModel := config.GeminiModelName
	if config.LLMProvider == config.ProviderOpenAI {
		llmModel = config.OpenAIModelName
	}
	llmProvider, err := llm.NewProvider(serviceContext, config.LLMProvider, llmModel, apiKeys[config.LLMProvider])

	if vectorDB == nil || err != nil {
		logger.Error("One or more external services failed to initialize. Shutting down.")
		logger.Debug("Available services : ", "VectorDB", vectorDB != nil, "LLMProvider", err == nil)
		return
	}

	ragService := rag.NewService(vectorDB, llmProvider, docStore, versionStore, apiKeys)

	handlers.InitHandlers(service, ragService, docStore)

	//init worker pool
	worker.InitServices(service, ragService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)
	worker.StartFeedSweeper(serviceContext, docStore)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}
