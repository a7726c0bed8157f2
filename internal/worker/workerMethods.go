package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	jobmodel "github.com/mfales/ragengine/internal/domain/jobModel"
	"github.com/mfales/ragengine/internal/metrics"
)

func executeJob(j jobmodel.Job) {
	defer _jobService.Release(j.SourceId)

	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, j.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, config.ReconcileJobTimeout)
	defer cancel()

	logger.Debug("Processing job:", "job Id:", j.Id, "type", j.JobType)
	saveJobState(ctx, j, jobmodel.JobStatusRunning)

	j = _ragService.ProcessJob(ctx, j)

	if j.EndTime.IsZero() {
		j.EndTime = time.Now()
	}
	saveJobState(ctx, j, j.Status)
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker ", "reason", reason, "workerCount", currentWorkerCount)
	metrics.DecrementActiveWorkerCount()
}

func saveJobState(ctx context.Context, j jobmodel.Job, jobStatus jobmodel.JobStatus) {
	j.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, j); err != nil {
		logger.Error("Failed to update status in Redis", "err", err)
	}
}

// StartFeedSweeper periodically re-enqueues feed sources so new entries
// keep flowing in without an explicit reconcile call. Busy sources are
// skipped, their running job already covers the window.
func StartFeedSweeper(ctx context.Context, docs commonModels.DocumentStore) {
	go func() {
		ticker := time.NewTicker(config.FeedSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepFeeds(ctx, docs)
			}
		}
	}()
}

func sweepFeeds(ctx context.Context, docs commonModels.DocumentStore) {
	sources, err := docs.ListSources(ctx)
	if err != nil {
		logger.Error("Feed sweep could not list sources", "err", err)
		return
	}
	for _, source := range sources {
		if source.Type != commonModels.Feed || source.Status == commonModels.SourceProcessing {
			continue
		}
		if _, err := _jobService.EnqueueReconcile(ctx, source.Id, source.URL, "feed-sweep"); err != nil {
			logger.Debug("Feed sweep skipped source", "sourceId", source.Id, "reason", err)
		}
	}
}
