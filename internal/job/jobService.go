package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mfales/ragengine/internal/adapter/utils"
	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/jobModel"
	"github.com/mfales/ragengine/internal/metrics"
	"github.com/mfales/ragengine/pkg/logx"
)

// ErrSourceBusy means the source already has a reconciliation in
// flight. Two concurrent runs would interleave diff and chunk
// replacement, so the second enqueue is rejected.
var ErrSourceBusy = errors.New("source already has a job in flight")

var logger = logx.NewLogger("Job Service")

type Service struct {
	JobChannel        chan jobModel.Job
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	MessageStore      jobModel.MessageStore

	mu       sync.Mutex
	inFlight map[string]string // sourceId -> jobId
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	MessageStore      jobModel.MessageStore
}

func InitJobService(cfg ServiceConfig) *Service {
	return &Service{
		JobChannel:        cfg.JobChannel,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
		MessageStore:      cfg.MessageStore,
		inFlight:          make(map[string]string),
	}
}

// EnqueueReconcile queues a reconciliation run for a source. A source
// never holds two runs at once, the second enqueue gets ErrSourceBusy.
func (s *Service) EnqueueReconcile(ctx context.Context, sourceId string, sourceURL string, traceId string) (jobModel.Job, error) {
	return s.enqueue(ctx, jobModel.Job{
		Id:       utils.GetNewUUID(),
		SourceId: sourceId,
		TraceId:  traceId,
		JobType:  jobModel.JobTypeReconcile,
		JobPayload: jobModel.JobPayload{
			SourceURL: sourceURL,
		},
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.ReconcileInit,
	})
}

// EnqueueRechunk queues a full re-chunk and re-embed of a source's
// stored documents, used after an embedding version change.
func (s *Service) EnqueueRechunk(ctx context.Context, sourceId string, traceId string) (jobModel.Job, error) {
	return s.enqueue(ctx, jobModel.Job{
		Id:          utils.GetNewUUID(),
		SourceId:    sourceId,
		TraceId:     traceId,
		JobType:     jobModel.JobTypeRechunk,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.ReconcileInit,
	})
}

func (s *Service) enqueue(ctx context.Context, j jobModel.Job) (jobModel.Job, error) {
	s.mu.Lock()
	if blocking, busy := s.inFlight[j.SourceId]; busy {
		s.mu.Unlock()
		logger.Warn("Rejected job for busy source", "sourceId", j.SourceId, "blockingJob", blocking)
		return jobModel.Job{}, ErrSourceBusy
	}
	s.inFlight[j.SourceId] = j.Id
	s.mu.Unlock()

	if err := s.JobStore.SaveJob(ctx, j); err != nil {
		s.Release(j.SourceId)
		return jobModel.Job{}, err
	}

	select {
	case s.JobChannel <- j:
	default:
		s.Release(j.SourceId)
		j.Status = jobModel.JobStatusError
		j.Error = jobModel.JobError{Message: "job queue full", Retry: true}
		if err := s.JobStore.SaveJob(ctx, j); err != nil {
			logger.Error("Saving rejected job failed", "error", err)
		}
		return jobModel.Job{}, errors.New("job queue full")
	}

	metrics.IncrementJobsInQueue()
	s.signalDispatcher()
	logger.Info("Job queued", "jobId", j.Id, "sourceId", j.SourceId, "type", j.JobType)
	return j, nil
}

// Release frees a source for the next job. The worker calls it when a
// job finishes, regardless of outcome.
func (s *Service) Release(sourceId string) {
	s.mu.Lock()
	delete(s.inFlight, sourceId)
	s.mu.Unlock()
}

// IsBusy reports whether a source currently has a job in flight.
func (s *Service) IsBusy(sourceId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.inFlight[sourceId]
	return busy
}

func (s *Service) signalDispatcher() {
	if len(s.JobChannel) < int(config.RequestsPerNewWorkerCount) {
		return
	}
	select {
	case s.DispatcherChannel <- true:
		metrics.StartDispatcherSignalCount()
	default:
	}
}
