package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mfales/ragengine/internal/adapter"
	"github.com/mfales/ragengine/internal/adapter/utils"
	"github.com/mfales/ragengine/internal/api"
	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/jobModel"
	"github.com/mfales/ragengine/internal/rag"
)

// ChatHandler godoc
// @Summary      Ask a question over the ingested sources
// @Description  Retrieves relevant chunks, assembles a context and generates a cited answer. Optional source and date filters scope retrieval.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        request  body      api.ChatRequest   true  "Question, optional Chat ID and filters"
// @Success      200      {object}  api.ChatResponse  "Answer with source table"
// @Failure      400      {object}  api.JobResponse   "Invalid request data or chat ID"
// @Router       /chat [post]
func ChatHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	requestData, chatId, answerReq, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	res, err := handlerInstance.engine.Answer(r.Context(), answerReq)
	if err != nil {
		logRH.Error("Answer failed", "chatId", chatId, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, chatId, "Could not generate an answer")
		return
	}

	saveTurn(chatId, requestData.Message, res, traceFrom(r.Context()))
	writeJsonResponse(w, http.StatusOK, adapter.ToChatResponse(chatId, res))
}

// ChatStreamHandler streams the answer over SSE: `text` events carry
// generated fragments, then one `sources` event with the source table
// (citation flags computed from whatever text was produced) and one
// `done` event. A client disconnect cancels generation but the terminal
// events for the partial answer are still written.
// @Summary      Ask a question, streaming the answer
// @Tags         Chat
// @Accept       json
// @Produce      text/event-stream
// @Param        request  body  api.ChatRequest  true  "Question, optional Chat ID and filters"
// @Success      200  "SSE stream of text, sources and done events"
// @Failure      400  {object}  api.JobResponse  "Invalid request data or chat ID"
// @Router       /chat/stream [post]
func ChatStreamHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	requestData, chatId, answerReq, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		WriteErrorResponse(w, http.StatusInternalServerError, chatId, "Streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	onFragment := func(fragment string) error {
		if err := writeSSE(w, "text", fragment); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	res, streamErr := handlerInstance.engine.AnswerStream(r.Context(), answerReq, onFragment)
	if streamErr != nil {
		logRH.Warn("Stream ended early", "chatId", chatId, "error", streamErr)
	}

	// terminal events cover whatever was produced, even after an early end
	if err := writeSSE(w, "sources", adapter.ToSourceRefs(res.Sources)); err != nil {
		return //client is gone
	}
	_ = writeSSE(w, "done", map[string]any{"chat_id": chatId, "citations": res.Citations, "cached": res.Cached})
	flusher.Flush()

	if streamErr == nil {
		saveTurn(chatId, requestData.Message, res, traceFrom(r.Context()))
	}
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (api.ChatRequest, string, rag.AnswerRequest, bool) {
	var requestData api.ChatRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil || !ValidateChatRequest(requestData) {
		logRH.Warn("Bad Chat Request: ", "error:", err, "request data:", requestData)
		WriteErrorResponse(w, http.StatusBadRequest, requestData.ChatID, "Bad Request")
		return requestData, "", rag.AnswerRequest{}, false
	}

	filter, err := parseDateFilter(requestData.StartDate, requestData.EndDate, requestData.IncludeUndated)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, requestData.ChatID, "Dates must be YYYY-MM-DD")
		return requestData, "", rag.AnswerRequest{}, false
	}

	chatId := requestData.ChatID
	var history []jobModel.ChatTurn
	if chatId == "" {
		chatId = utils.GetNewUUID()
		logRH.Debug(" New Chat request : ", "chatID:", chatId)
		handlerInstance.initNewChat(chatId, traceFrom(r.Context()))
	} else {
		err, turns := handlerInstance.jobs.MessageStore.GetMessageHistory(r.Context(), chatId)
		if err != nil {
			logRH.Warn("History unavailable, answering without it", "chatId", chatId, "error", err)
		}
		history = chronological(turns)
	}

	return requestData, chatId, rag.AnswerRequest{
		Question:  requestData.Message,
		SourceIds: requestData.SourceIds,
		Date:      filter,
		History:   history,
	}, true
}

// saveTurn persists the exchange off the request context so a client
// disconnect can't lose it.
func saveTurn(chatId string, question string, res rag.AnswerResponse, traceId string) {
	if res.Answer == "" {
		return
	}
	sources := make([]string, 0, len(res.Sources))
	for _, s := range res.Sources {
		if s.URL != "" {
			sources = append(sources, s.URL)
		} else if s.Title != "" {
			sources = append(sources, s.Title)
		}
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ctx = context.WithValue(ctx, config.TRACE_ID_KEY, traceId)
		turn := jobModel.ChatTurn{Question: question, Answer: res.Answer, Sources: sources}
		if err := handlerInstance.jobs.MessageStore.TrySaveChat(ctx, chatId, turn); err != nil {
			logRH.Error("Saving chat turn failed", "chatId", chatId, "error", err)
		}
	}()
}

func writeSSE(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
