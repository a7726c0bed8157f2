package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/domain/jobModel"
	"github.com/mfales/ragengine/internal/job"
	"github.com/mfales/ragengine/internal/rag"
	"github.com/mfales/ragengine/pkg/logx"
)

// MockRagService to track if jobs are executed
type MockRagService struct {
	ProcessedCount int32
}

func (m *MockRagService) Answer(ctx context.Context, req rag.AnswerRequest) (rag.AnswerResponse, error) {
	return rag.AnswerResponse{}, nil
}

func (m *MockRagService) AnswerStream(ctx context.Context, req rag.AnswerRequest, onFragment func(string) error) (rag.AnswerResponse, error) {
	return rag.AnswerResponse{}, nil
}

func (m *MockRagService) Search(ctx context.Context, req rag.SearchRequest) ([]commonModels.SearchHit, error) {
	return nil, nil
}

func (m *MockRagService) DeleteSource(ctx context.Context, sourceId string) error {
	return nil
}

func (m *MockRagService) SetEmbeddingVersion(ctx context.Context, provider string, modelName string, dimension int32) error {
	return nil
}

func (m *MockRagService) ActiveEmbeddingVersion(ctx context.Context) (string, error) {
	return "", nil
}

func (m *MockRagService) ProcessJob(ctx context.Context, j jobModel.Job) jobModel.Job {
	atomic.AddInt32(&m.ProcessedCount, 1)
	j.Status = jobModel.JobStatusComplete
	return j
}

type MockJobStore struct {
	OnSaveJob func(ctx context.Context, job jobModel.Job) error
}

func (m *MockJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	return jobModel.Job{}, false
}

func (m *MockJobStore) DeleteJob(ctx context.Context, jobID string) {
}

func (m *MockJobStore) SaveJob(ctx context.Context, j jobModel.Job) error {
	if m.OnSaveJob != nil {
		return m.OnSaveJob(ctx, j)
	}
	return nil
}

func newTestJobService() *job.Service {
	return job.InitJobService(job.ServiceConfig{
		JobChannel:        make(chan jobModel.Job, 10),
		DispatcherChannel: make(chan bool, 10),
		JobStore:          &MockJobStore{},
	})
}

func TestWorkerPool_Flow(t *testing.T) {
	jobSvc := newTestJobService()
	mockRag := &MockRagService{}
	stopChan := make(chan bool)
	wg := &sync.WaitGroup{}

	InitServices(jobSvc, mockRag)
	InitWorkerPool(stopChan, wg)

	// Reset global state for test
	atomic.StoreInt64(&currentWorkerCount, 0)

	t.Run("Dispatcher creates worker on signal", func(t *testing.T) {
		jobSvc.DispatcherChannel <- true

		time.Sleep(50 * time.Millisecond)

		count := atomic.LoadInt64(&currentWorkerCount)
		if count < 1 {
			t.Errorf("Expected at least 1 worker, got %d", count)
		}
	})

	t.Run("Worker processes a job", func(t *testing.T) {
		testJob := jobModel.Job{Id: "test-1", SourceId: "src-1", JobType: jobModel.JobTypeReconcile}
		jobSvc.JobChannel <- testJob

		time.Sleep(50 * time.Millisecond)

		processed := atomic.LoadInt32(&mockRag.ProcessedCount)
		if processed != 1 {
			t.Errorf("Expected 1 job processed, got %d", processed)
		}
	})

	t.Run("Stop signal retires workers", func(t *testing.T) {
		close(stopChan)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Workers did not stop within timeout")
		}
	})
}

func TestWorker_IdleTimeout(t *testing.T) {
	atomic.StoreInt64(&currentWorkerCount, 0)
	atomic.StoreInt64(&minWorkerCount, 2) // idle retirement only kicks in above one worker
	logger = logx.NewLogger("TestWorkerPool")
	jobSvc := job.InitJobService(job.ServiceConfig{
		JobChannel: make(chan jobModel.Job),
		JobStore:   &MockJobStore{},
	})
	InitServices(jobSvc, &MockRagService{})

	wg := &sync.WaitGroup{}
	stopChan := make(chan bool)
	workerWaitGroup = wg
	stopWorkerChannel = stopChan

	createWorker()
	time.Sleep(config.IdleWorkerTimeout)

	time.Sleep(100 * time.Millisecond)
	count := atomic.LoadInt64(&currentWorkerCount)
	if count != 0 {
		t.Errorf("Assertion Failed: Worker should have timed out and retired, but count is %d", count)
	}
}

func TestWorkerReleasesSourceAfterJob(t *testing.T) {
	jobSvc := newTestJobService()
	mockRag := &MockRagService{}
	InitServices(jobSvc, mockRag)
	logger = logx.NewLogger("TestWorkerPool")

	wg := &sync.WaitGroup{}
	stopChan := make(chan bool)
	workerWaitGroup = wg
	stopWorkerChannel = stopChan
	atomic.StoreInt64(&currentWorkerCount, 0)
	createWorker()
	defer close(stopChan)

	ctx := context.Background()
	queued, err := jobSvc.EnqueueReconcile(ctx, "src-1", "https://example.com", "trace")
	if err != nil {
		t.Fatal(err)
	}
	if queued.Id == "" {
		t.Fatal("queued job has no id")
	}

	time.Sleep(100 * time.Millisecond)

	// the worker must have released the source, a new enqueue succeeds
	if _, err := jobSvc.EnqueueReconcile(ctx, "src-1", "https://example.com", "trace"); err != nil {
		t.Fatalf("source still held after job completion: %v", err)
	}
}

func TestEnqueueRejectsBusySource(t *testing.T) {
	jobSvc := newTestJobService()

	ctx := context.Background()
	if _, err := jobSvc.EnqueueReconcile(ctx, "src-1", "https://example.com", "trace"); err != nil {
		t.Fatal(err)
	}
	// no worker is draining the channel, the source stays in flight
	if _, err := jobSvc.EnqueueReconcile(ctx, "src-1", "https://example.com", "trace"); err != job.ErrSourceBusy {
		t.Fatalf("second enqueue got %v, want ErrSourceBusy", err)
	}
	// a different source is unaffected
	if _, err := jobSvc.EnqueueReconcile(ctx, "src-2", "https://example.com/2", "trace"); err != nil {
		t.Fatalf("independent source rejected: %v", err)
	}
}

type feedListingStore struct {
	commonModels.DocumentStore
	sources []commonModels.Source
}

func (f *feedListingStore) ListSources(ctx context.Context) ([]commonModels.Source, error) {
	return f.sources, nil
}

func TestFeedSweepEnqueuesOnlyFeeds(t *testing.T) {
	jobSvc := newTestJobService()
	InitServices(jobSvc, &MockRagService{})
	logger = logx.NewLogger("TestWorkerPool")

	docs := &feedListingStore{sources: []commonModels.Source{
		{Id: "feed-1", Type: commonModels.Feed, URL: "https://example.com/rss", Status: commonModels.SourceReady},
		{Id: "web-1", Type: commonModels.Web, URL: "https://example.com", Status: commonModels.SourceReady},
		{Id: "feed-busy", Type: commonModels.Feed, URL: "https://example.com/rss2", Status: commonModels.SourceProcessing},
	}}

	sweepFeeds(context.Background(), docs)

	if got := len(jobSvc.JobChannel); got != 1 {
		t.Fatalf("%d jobs queued, want 1 (only the ready feed)", got)
	}
	queued := <-jobSvc.JobChannel
	if queued.SourceId != "feed-1" || queued.JobType != jobModel.JobTypeReconcile {
		t.Fatalf("unexpected job queued: %+v", queued)
	}
}
