package middleware

import (
	"net/http"
	"strconv"

	"github.com/mfales/ragengine/internal/handlers"
	"github.com/mfales/ragengine/internal/metrics"
	"github.com/mfales/ragengine/pkg/logx"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logx.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
	id           string
}

var GetHandler = Wrap(handlers.GetHandler)

var CreateSourceHandler = Wrap(handlers.CreateSourceHandler)
var ListSourcesHandler = Wrap(handlers.ListSourcesHandler)
var GetSourceHandler = Wrap(handlers.GetSourceHandler)
var DeleteSourceHandler = Wrap(handlers.DeleteSourceHandler)
var UploadSourceHandler = Wrap(handlers.UploadSourceHandler)
var ReconcileSourceHandler = Wrap(handlers.ReconcileSourceHandler)
var RechunkSourceHandler = Wrap(handlers.RechunkSourceHandler)

var GetStatusHandler = Wrap(handlers.GetStatusHandler)
var ChatHandler = Wrap(handlers.ChatHandler)
var ChatStreamHandler = Wrap(handlers.ChatStreamHandler)
var SearchHandler = Wrap(handlers.SearchHandler)
var SetEmbeddingVersionHandler = Wrap(handlers.SetEmbeddingVersionHandler)

func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: 200} //metrics
		re := processRequest(requestResponseStruct{req: r, writer: rec})

		if re.badRequest.isBadRequest {
			handleBadRequest(re)
			return
		}
		next(rec, re.req)

		metrics.HttpRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.Status)).Inc() //metrics
	}
}
func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logx.NewLogger("middleware")
	re.logger.Info("New request received")
	re = injectTrace(re)
	re = authenticate(re)
	if re.badRequest.isBadRequest {
		return re //stop if auth fails
	}
	re = rateLimiter(re)
	return re
}
