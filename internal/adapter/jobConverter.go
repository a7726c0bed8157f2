package adapter

import (
	"fmt"
	"time"

	"github.com/mfales/ragengine/internal/api"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/domain/jobModel"
	"github.com/mfales/ragengine/internal/rag"
)

func ToInitJobResponse(job jobModel.Job) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        job.Id,
		SourceId:  job.SourceId,
		StatusURL: fmt.Sprintf("jobs/%s", job.Id), //pass "jobs/job.Id"
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:    string(job.Status),
		Step:      string(job.CurrentStep),
		Reconcile: ToReconcileResult(job.JobPayload),
	}

	return api.JobResponse{
		Id:        job.Id,
		SourceId:  job.SourceId,
		Type:      string(job.JobType),
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

// ToReconcileResult hides the diff counters until the run wrote them.
func ToReconcileResult(payload jobModel.JobPayload) *api.ReconcileResult {
	if payload.DocsAdded == 0 && payload.DocsUpdated == 0 && payload.DocsRemoved == 0 &&
		payload.DocsUnchanged == 0 && payload.ChunksWritten == 0 {
		return nil
	}

	return &api.ReconcileResult{
		DocsAdded:     payload.DocsAdded,
		DocsUpdated:   payload.DocsUpdated,
		DocsRemoved:   payload.DocsRemoved,
		DocsUnchanged: payload.DocsUnchanged,
		ChunksWritten: payload.ChunksWritten,
	}
}

func ToSourceResponse(source commonModels.Source) api.SourceResponse {
	return api.SourceResponse{
		Id:               source.Id,
		Type:             string(source.Type),
		URL:              source.URL,
		Title:            source.Title,
		Status:           string(source.Status),
		Error:            source.Error,
		DocumentCount:    source.DocumentCount,
		ChunkCount:       source.ChunkCount,
		CreatedAt:        source.CreatedAt,
		LastReconciledAt: source.LastReconciledAt,
	}
}

func ToSourceRefs(entries []rag.SourceEntry) []api.SourceRef {
	refs := make([]api.SourceRef, 0, len(entries))
	for _, e := range entries {
		refs = append(refs, api.SourceRef{
			Number:  e.Number,
			Title:   e.Title,
			URL:     e.URL,
			Score:   e.BestScore,
			Preview: e.Preview,
			Cited:   e.Cited,
		})
	}
	return refs
}

func ToChatResponse(chatId string, res rag.AnswerResponse) api.ChatResponse {
	return api.ChatResponse{
		ChatID:    chatId,
		Answer:    res.Answer,
		Sources:   ToSourceRefs(res.Sources),
		Citations: res.Citations,
		Cached:    res.Cached,
	}
}

func ToSearchResponse(hits []commonModels.SearchHit) api.SearchResponse {
	out := api.SearchResponse{Hits: make([]api.SearchHitResponse, 0, len(hits))}
	for _, h := range hits {
		out.Hits = append(out.Hits, api.SearchHitResponse{
			DocumentId:  h.DocumentId,
			SourceId:    h.SourceId,
			ChunkIndex:  h.ChunkIndex,
			Title:       h.Title,
			URL:         h.URL,
			Score:       h.Score,
			Content:     h.Content,
			PublishedAt: h.PublishedAt,
		})
	}
	return out
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   false,
		},
	}
}
