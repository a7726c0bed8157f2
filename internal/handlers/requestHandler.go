package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mfales/ragengine/internal/adapter"
	"github.com/mfales/ragengine/internal/adapter/utils"
	"github.com/mfales/ragengine/internal/api"
	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/job"
	"github.com/mfales/ragengine/internal/rag"
)

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	return
}

// CreateSourceHandler godoc
// @Summary      Register a knowledge source
// @Description  Registers a web, feed or file source and queues its first reconciliation run.
// @Tags         Sources
// @Accept       json
// @Produce      json
// @Param        request  body      api.SourceRequest    true  "Source type and location"
// @Success      202      {object}  api.InitJobResponse  "Source registered, reconcile queued"
// @Failure      400      {object}  api.JobResponse      "Invalid source definition"
// @Router       /sources [post]
func CreateSourceHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	var requestData api.SourceRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		logRH.Warn("Bad Source Request: ", "error:", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return
	}

	source, errMessage := buildSource(requestData)
	if errMessage != "" {
		logRH.Warn("Bad Source Request: ", "reason:", errMessage, "request data:", requestData)
		WriteErrorResponse(w, http.StatusBadRequest, "", errMessage)
		return
	}

	if err := handlerInstance.docs.SaveSource(r.Context(), source); err != nil {
		logRH.Error("Saving source failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, source.Id, "Storage error")
		return
	}

	enqueueReconcile(w, r, source)
}

// ListSourcesHandler godoc
// @Summary      List knowledge sources
// @Tags         Sources
// @Produce      json
// @Success      200  {array}  api.SourceResponse
// @Router       /sources [get]
func ListSourcesHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	sources, err := handlerInstance.docs.ListSources(r.Context())
	if err != nil {
		logRH.Error("Listing sources failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Storage error")
		return
	}

	out := make([]api.SourceResponse, 0, len(sources))
	for _, s := range sources {
		out = append(out, adapter.ToSourceResponse(s))
	}
	writeJsonResponse(w, http.StatusOK, out)
}

// GetSourceHandler godoc
// @Summary      Get one source with its counts and last error
// @Tags         Sources
// @Produce      json
// @Param        id   path      string  true  "Source ID"
// @Success      200  {object}  api.SourceResponse
// @Failure      404  {object}  api.JobResponse  "Source not found"
// @Router       /sources/{id} [get]
func GetSourceHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	id := utils.GetChiURLParam(r, "id")
	source, found := handlerInstance.docs.GetSource(r.Context(), id)
	if !found {
		WriteErrorResponse(w, http.StatusNotFound, id, "Source not found")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToSourceResponse(source))
}

// DeleteSourceHandler godoc
// @Summary      Delete a source and everything ingested from it
// @Tags         Sources
// @Produce      json
// @Param        id   path  string  true  "Source ID"
// @Success      204  "Source removed"
// @Failure      404  {object}  api.JobResponse  "Source not found"
// @Failure      409  {object}  api.JobResponse  "Reconciliation in flight"
// @Router       /sources/{id} [delete]
func DeleteSourceHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	id := utils.GetChiURLParam(r, "id")
	if handlerInstance.jobs.IsBusy(id) {
		WriteErrorResponse(w, http.StatusConflict, id, "Source has a job in flight")
		return
	}

	if err := handlerInstance.engine.DeleteSource(r.Context(), id); err != nil {
		logRH.Warn("Deleting source failed", "sourceId", id, "error", err)
		WriteErrorResponse(w, http.StatusNotFound, id, "Source not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReconcileSourceHandler godoc
// @Summary      Re-ingest a source
// @Description  Queues a reconciliation run. Rejected while another run for the same source is in flight.
// @Tags         Sources
// @Produce      json
// @Param        id   path      string  true  "Source ID"
// @Success      202  {object}  api.InitJobResponse
// @Failure      404  {object}  api.JobResponse  "Source not found"
// @Failure      409  {object}  api.JobResponse  "Reconciliation in flight"
// @Router       /sources/{id}/reconcile [post]
func ReconcileSourceHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	id := utils.GetChiURLParam(r, "id")
	source, found := handlerInstance.docs.GetSource(r.Context(), id)
	if !found {
		WriteErrorResponse(w, http.StatusNotFound, id, "Source not found")
		return
	}
	enqueueReconcile(w, r, source)
}

// RechunkSourceHandler queues a rebuild of a source's chunks and vectors
// from the stored document bodies, without re-fetching the source.
// @Summary      Rechunk a source from stored documents
// @Tags         Sources
// @Produce      json
// @Param        id   path      string  true  "Source ID"
// @Success      202  {object}  api.InitJobResponse
// @Failure      404  {object}  api.JobResponse  "Source not found"
// @Failure      409  {object}  api.JobResponse  "Reconciliation in flight"
// @Router       /sources/{id}/rechunk [post]
func RechunkSourceHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	id := utils.GetChiURLParam(r, "id")
	if _, found := handlerInstance.docs.GetSource(r.Context(), id); !found {
		WriteErrorResponse(w, http.StatusNotFound, id, "Source not found")
		return
	}

	queued, err := handlerInstance.jobs.EnqueueRechunk(r.Context(), id, traceFrom(r.Context()))
	if err != nil {
		writeEnqueueError(w, id, err)
		return
	}
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(queued))
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a specific job using its ID.
// @Tags         Job Status
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Job ID "
// @Success      200  {object}  api.JobResponse   "Successful retrieval of job status"
// @Failure      404  {object}  api.JobResponse   "Job not found (returns Error object within JobResponse)"
// @Router       /jobs/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		//use chi get the url id
		idString := utils.GetChiURLParam(r, "id")
		result, isFound := validateId(idString, traceFrom(r.Context()))

		logRH.Debug("Get Status Request:", "URL path", r.URL.Path)
		if !isFound {
			WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
			return
		}

		writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
	}
}

// UploadSourceHandler handles the uploading of PDF, DOCX or text documents.
// @Summary      Upload a document as a file source
// @Description  Receives a file via multipart/form-data, saves it to a temporary directory, registers a file source and queues its ingestion.
// @Tags         Sources
// @Accept       multipart/form-data
// @Produce      json
// @Param        document_name  formData  string  true  "The display name of the document"
// @Param        document       formData  file    true  "The PDF, DOCX or text file to upload"
// @Success      202  {object}  api.InitJobResponse "Accepted"
// @Failure      400  {object}  api.JobResponse "Bad Request - Missing fields or file too large"
// @Failure      500  {object}  api.JobResponse "Internal Server Error - Storage or Write Error"
// @Router       /sources/upload [post]
func UploadSourceHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	targetDir, errString := getTargetDirectory()
	if errString != "" {
		logRH.Error("Couldn't get target directory :", "err", errString)
		WriteErrorResponse(w, http.StatusInternalServerError, "", errString)
		return
	}

	const maxUploadSize = 32 << 20 //32mb
	err := r.ParseMultipartForm(maxUploadSize)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "File too large or bad request")
		return
	}

	docName := r.FormValue("document_name")
	if docName == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "document_name is required")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, docName, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), fileMetadata.Filename)
	tempFilePath := filepath.Join(targetDir, filename)
	destinationFileWriter, err := os.Create(tempFilePath)
	if err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Storage error")
		return
	}
	defer destinationFileWriter.Close()

	if _, err := io.Copy(destinationFileWriter, fileReader); err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, docName, "Write error")
		return
	}

	source := commonModels.Source{
		Id:        utils.GetNewUUID(),
		Type:      commonModels.File,
		URL:       tempFilePath,
		Title:     docName,
		Status:    commonModels.SourcePending,
		CreatedAt: time.Now(),
	}
	if err := handlerInstance.docs.SaveSource(r.Context(), source); err != nil {
		logRH.Error("Saving uploaded source failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, source.Id, "Storage error")
		return
	}
	enqueueReconcile(w, r, source)
}

// SearchHandler godoc
// @Summary      Raw retrieval without generation
// @Description  Runs the similarity query with context-window expansion and returns the ranked hits.
// @Tags         Search
// @Produce      json
// @Param        q               query     string  true   "Query text"
// @Param        limit           query     int     false  "Maximum base hits"
// @Param        source_ids      query     string  false  "Comma-separated source IDs"
// @Param        start_date      query     string  false  "YYYY-MM-DD"
// @Param        end_date        query     string  false  "YYYY-MM-DD"
// @Param        include_undated query     bool    false  "Keep undated documents when date-filtered"
// @Success      200  {object}  api.SearchResponse
// @Failure      400  {object}  api.JobResponse  "Missing query or bad date"
// @Router       /search [get]
func SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	params := r.URL.Query()
	query := params.Get("q")
	if query == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "q is required")
		return
	}

	includeUndated, _ := strconv.ParseBool(params.Get("include_undated"))
	filter, err := parseDateFilter(params.Get("start_date"), params.Get("end_date"), includeUndated)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Dates must be YYYY-MM-DD")
		return
	}

	limit, _ := strconv.ParseUint(params.Get("limit"), 10, 64)
	var sourceIds []string
	if raw := params.Get("source_ids"); raw != "" {
		sourceIds = strings.Split(raw, ",")
	}

	hits, err := handlerInstance.engine.Search(r.Context(), rag.SearchRequest{
		Query:     query,
		Limit:     limit,
		SourceIds: sourceIds,
		Date:      filter,
	})
	if err != nil {
		logRH.Error("Search failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Search failed")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToSearchResponse(hits))
}

// SetEmbeddingVersionHandler publishes new embedding settings and queues
// a rechunk of every source so stored vectors catch up with the new
// model. Busy sources are skipped; the feed sweeper or a manual rechunk
// picks them up later.
// @Summary      Change the active embedding model
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request  body      api.EmbeddingVersionRequest  true  "Provider, model and dimension"
// @Success      200      {object}  api.EmbeddingVersionResponse
// @Failure      400      {object}  api.JobResponse  "Unknown provider or bad dimension"
// @Router       /admin/embedding [put]
func SetEmbeddingVersionHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	var requestData api.EmbeddingVersionRequest
	defer closeBody(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil ||
		requestData.Provider == "" || requestData.Model == "" || requestData.Dimension <= 0 {
		WriteErrorResponse(w, http.StatusBadRequest, "", "provider, model and dimension are required")
		return
	}

	err := handlerInstance.engine.SetEmbeddingVersion(r.Context(), requestData.Provider, requestData.Model, requestData.Dimension)
	if err != nil {
		logRH.Warn("Rejected embedding version", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", err.Error())
		return
	}

	version, err := handlerInstance.engine.ActiveEmbeddingVersion(r.Context())
	if err != nil {
		logRH.Error("Reading back embedding version failed", "error", err)
	}

	response := api.EmbeddingVersionResponse{Version: version}
	sources, err := handlerInstance.docs.ListSources(r.Context())
	if err != nil {
		logRH.Error("Listing sources for rechunk failed", "error", err)
		writeJsonResponse(w, http.StatusOK, response)
		return
	}
	for _, source := range sources {
		queued, err := handlerInstance.jobs.EnqueueRechunk(r.Context(), source.Id, traceFrom(r.Context()))
		if err != nil {
			logRH.Warn("Skipping rechunk", "sourceId", source.Id, "error", err)
			continue
		}
		response.RechunkJobs = append(response.RechunkJobs, adapter.ToInitJobResponse(queued))
	}
	writeJsonResponse(w, http.StatusOK, response)
}

func buildSource(req api.SourceRequest) (commonModels.Source, string) {
	sourceType := commonModels.SourceType(req.Type)
	switch sourceType {
	case commonModels.Web, commonModels.Feed:
		if req.URL == "" {
			return commonModels.Source{}, "url is required for web and feed sources"
		}
	case commonModels.File:
		if req.URL == "" {
			return commonModels.Source{}, "url must point at an uploaded file path"
		}
	default:
		return commonModels.Source{}, "type must be web, feed or file"
	}

	crawlDepth := req.CrawlDepth
	if sourceType == commonModels.Web && crawlDepth == 0 {
		crawlDepth = config.DefaultCrawlDepth
	}

	return commonModels.Source{
		Id:         utils.GetNewUUID(),
		Type:       sourceType,
		URL:        req.URL,
		Title:      req.Title,
		CrawlDepth: crawlDepth,
		Status:     commonModels.SourcePending,
		CreatedAt:  time.Now(),
	}, ""
}

func enqueueReconcile(w http.ResponseWriter, r *http.Request, source commonModels.Source) {
	queued, err := handlerInstance.jobs.EnqueueReconcile(r.Context(), source.Id, source.URL, traceFrom(r.Context()))
	if err != nil {
		writeEnqueueError(w, source.Id, err)
		return
	}
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(queued))
}

func writeEnqueueError(w http.ResponseWriter, sourceId string, err error) {
	if errors.Is(err, job.ErrSourceBusy) {
		WriteErrorResponse(w, http.StatusConflict, sourceId, "Source has a job in flight")
		return
	}
	logRH.Error("Enqueue failed", "sourceId", sourceId, "error", err)
	WriteErrorResponse(w, http.StatusServiceUnavailable, sourceId, "Job queue full, try again later")
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logRH.Error("Couldn't close the request body :", err)
	}
}
