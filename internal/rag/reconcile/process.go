package reconcile

import (
	"context"
	"time"

	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/domain/jobModel"
	"github.com/mfales/ragengine/internal/rag/extract"
)

// ProcessReconcileJob drives one reconciliation job end to end: extract,
// diff, converge, with bounded retries and exponential backoff across
// the whole run. Per-document progress from a failed attempt stands, the
// next attempt converges the remainder. Returns the job with status and
// payload counters filled in for the worker to persist.
func ProcessReconcileJob(ctx context.Context, job jobModel.Job, store commonModels.DocumentStore, r *Reconciler, extractor extract.Extractor) jobModel.Job {
	return processJob(ctx, job, store, func(ctx context.Context, source commonModels.Source) (Result, error) {
		items, err := extractor.Extract(ctx, source)
		if err != nil {
			return Result{}, err
		}
		return r.Reconcile(ctx, source, items)
	})
}

// ProcessRechunkJob re-chunks and re-embeds every stored document of the
// job's source without re-extracting. Runs after the embedding provider
// or model changed.
func ProcessRechunkJob(ctx context.Context, job jobModel.Job, store commonModels.DocumentStore, r *Reconciler) jobModel.Job {
	return processJob(ctx, job, store, r.Rechunk)
}

func processJob(ctx context.Context, job jobModel.Job, store commonModels.DocumentStore, run func(context.Context, commonModels.Source) (Result, error)) jobModel.Job {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	source, ok := store.GetSource(ctx, job.SourceId)
	if !ok {
		log.Error("Source not found for job", "jobId", job.Id, "sourceId", job.SourceId)
		return failJob(job, "source not found")
	}

	source.Status = commonModels.SourceProcessing
	source.Error = ""
	if err := store.SaveSource(ctx, source); err != nil {
		log.Error("Marking source processing failed", "error", err)
		return failJob(job, err.Error())
	}

	var result Result
	var runErr error

	for attempt := 1; attempt <= config.ReconcileMaxAttempts; attempt++ {
		job.Attempt = attempt
		job.CurrentStep = jobModel.ExtractCall
		if job.JobType == jobModel.JobTypeRechunk {
			job.CurrentStep = jobModel.ChunkCall
		}

		result, runErr = run(ctx, source)
		if runErr == nil {
			break
		}
		log.Warn("Reconciliation attempt failed", "sourceId", source.Id, "attempt", attempt, "error", runErr)

		if attempt == config.ReconcileMaxAttempts || ctx.Err() != nil {
			break
		}

		job.CurrentStep = jobModel.RetryWait
		backoff := config.ReconcileBackoffBase << (attempt - 1)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			runErr = ctx.Err()
		}
		if ctx.Err() != nil {
			break
		}
	}

	if runErr != nil {
		source.Status = commonModels.SourceError
		source.Error = runErr.Error()
		if err := store.SaveSource(ctx, source); err != nil {
			log.Error("Recording source error state failed", "error", err)
		}
		return failJob(job, runErr.Error())
	}

	source.Status = commonModels.SourceReady
	source.Error = ""
	source.DocumentCount = result.DocumentCount
	source.ChunkCount = result.ChunkCount
	source.LastReconciledAt = time.Now()
	if err := store.SaveSource(ctx, source); err != nil {
		log.Error("Saving reconciled source failed", "error", err)
		return failJob(job, err.Error())
	}

	job.JobPayload.DocsAdded = result.Added
	job.JobPayload.DocsUpdated = result.Updated
	job.JobPayload.DocsRemoved = result.Removed
	job.JobPayload.DocsUnchanged = result.Unchanged
	job.JobPayload.ChunksWritten = result.ChunksWritten
	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	job.EndTime = time.Now()
	return job
}

func failJob(job jobModel.Job, message string) jobModel.Job {
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	job.Error = jobModel.JobError{Message: message}
	job.EndTime = time.Now()
	return job
}
