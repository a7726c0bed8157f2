package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mfales/ragengine/internal/adapter"
	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/domain/jobModel"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response: %v", err)
	}
}

func validateId(id string, traceId string) (result jobModel.Job, isFound bool) {
	if id == "" {
		logRH.Warn("Empty Job ID")
		return jobModel.Job{}, false
	}
	return GetJobStatus(id, traceId)
}

func validateContext(ctx context.Context) bool {
	logRH.With("traceId:", traceFrom(ctx))
	if ctx.Err() != nil {
		logRH.Warn("context error", ctx.Err())
		return false
	}

	select {
	case <-ctx.Done():
		logRH.Warn("context cancelled")
		return false
	default:
		return true

	}
}

func traceFrom(ctx context.Context) string {
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

func getTargetDirectory() (string, string) {
	root, err := os.Getwd()
	if err != nil {
		return "", "Storage Error"
	}

	targetDir := filepath.Join(root, "temporary_data")
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", "Storage Error"
	}
	return targetDir, ""
}

// parseDateFilter reads YYYY-MM-DD bounds. An empty bound stays open.
func parseDateFilter(start string, end string, includeUndated bool) (commonModels.DateFilter, error) {
	filter := commonModels.DateFilter{IncludeUndated: includeUndated}
	if start != "" {
		t, err := time.Parse("2006-01-02", start)
		if err != nil {
			return filter, err
		}
		filter.Start = &t
	}
	if end != "" {
		t, err := time.Parse("2006-01-02", end)
		if err != nil {
			return filter, err
		}
		filter.End = &t
	}
	return filter, nil
}

// chronological reorders store history, which arrives most recent first,
// into the oldest-first order prompt assembly expects.
func chronological(turns []jobModel.ChatTurn) []jobModel.ChatTurn {
	out := make([]jobModel.ChatTurn, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		out = append(out, turns[i])
	}
	return out
}
