package handlers

import (
	"context"
	"sync"

	"github.com/mfales/ragengine/internal/api"
	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/domain/jobModel"
	"github.com/mfales/ragengine/internal/job"
	"github.com/mfales/ragengine/internal/rag"
	"github.com/mfales/ragengine/pkg/logx"
)

var (
	handlerInstance *APIHandler //private singleton
	once            sync.Once
	logJH           *logx.Logger
	logRH           *logx.Logger
)

type APIHandler struct {
	jobs   *job.Service
	engine rag.Service
	docs   commonModels.DocumentStore
}

func InitHandlers(jobService *job.Service, engine rag.Service, docs commonModels.DocumentStore) {
	once.Do(func() {
		handlerInstance = &APIHandler{jobs: jobService, engine: engine, docs: docs}

		logJH = logx.NewLogger("JobHandler")
		logRH = logx.NewLogger("RequestHandler")
		logJH.Info("Starting request handlers")
	})
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.jobs.JobStore.GetJob(ctxC, id)
	}
	return result, false
}

func ValidateChatRequest(chatReq api.ChatRequest) bool {
	if handlerInstance == nil {
		return false
	}
	logJH.Debug(" Validating chat id ", "chatId :", chatReq.ChatID)
	if chatReq.Message == "" {
		return false
	}
	if chatReq.ChatID == "" {
		return true
	}
	return handlerInstance.jobs.MessageStore.ValidateChatId(context.Background(), chatReq.ChatID)
}

func (h *APIHandler) initNewChat(chatId string, traceId string) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	err := h.jobs.MessageStore.InitNewChat(ctxC, chatId)
	if err != nil {
		logJH.Error("Error initiating new chat", chatId, err)
		return
	}
}
