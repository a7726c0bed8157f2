package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/mfales/ragengine/internal/data/store"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/domain/jobModel"
	"github.com/mfales/ragengine/internal/rag/chunker"
	"github.com/mfales/ragengine/internal/rag/vectorDB"
)

type wordTokenizer struct{}

func (wordTokenizer) CountTokens(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			n++
			inWord = true
		}
	}
	return n
}

type indexCall struct {
	op         string
	documentId string
}

type mockIndex struct {
	calls      []indexCall
	upsertErr  error
	vectorsFor map[string]bool // document ids currently holding vectors
}

func newMockIndex() *mockIndex {
	return &mockIndex{vectorsFor: make(map[string]bool)}
}

func (m *mockIndex) Query(ctx context.Context, collection string, vector []float32, limit uint64, filter vectorDB.QueryFilter) ([]commonModels.SearchHit, error) {
	return nil, nil
}

func (m *mockIndex) FetchChunks(ctx context.Context, collection string, documentId string, indices []int) ([]commonModels.SearchHit, error) {
	return nil, nil
}

func (m *mockIndex) GetCachedAnswer(ctx context.Context, queryVector []float32) (string, bool, error) {
	return "", false, nil
}

func (m *mockIndex) SaveToCache(ctx context.Context, id string, vector []float32, answer string) error {
	return nil
}

func (m *mockIndex) EnsureCollection(ctx context.Context, collection string, dimension uint64) error {
	return nil
}

func (m *mockIndex) RecreateCollection(ctx context.Context, collection string, dimension uint64) error {
	return nil
}

func (m *mockIndex) UpsertChunks(ctx context.Context, collection string, doc commonModels.Document, sourceId string, chunks []commonModels.Chunk, vectors [][]float32) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.calls = append(m.calls, indexCall{op: "upsert", documentId: doc.Id})
	m.vectorsFor[doc.Id] = true
	return nil
}

func (m *mockIndex) DeleteByDocument(ctx context.Context, collection string, documentId string) error {
	m.calls = append(m.calls, indexCall{op: "delete", documentId: documentId})
	delete(m.vectorsFor, documentId)
	return nil
}

func (m *mockIndex) DeleteBySource(ctx context.Context, collection string, sourceId string) error {
	m.calls = append(m.calls, indexCall{op: "deleteSource", documentId: sourceId})
	return nil
}

type mockEmbedder struct {
	batchFunc func(ctx context.Context, chunks []string, isHugeDataSet bool) ([][]float32, error)
}

func (m *mockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	return []float32{0.1}, nil
}

func (m *mockEmbedder) BatchEmbedding(ctx context.Context, chunks []string, isHugeDataSet bool) ([][]float32, error) {
	if m.batchFunc != nil {
		return m.batchFunc(ctx, chunks, isHugeDataSet)
	}
	vectors := make([][]float32, len(chunks))
	for i := range vectors {
		vectors[i] = []float32{0.1}
	}
	return vectors, nil
}

func (m *mockEmbedder) Dimension() int32 {
	return 1
}

func newTestReconciler(index *mockIndex) (*Reconciler, *store.InMemoryDocumentStore) {
	docs := store.InitInMemoryDocumentStore()
	chunks := chunker.NewChunker(50, 10, wordTokenizer{})
	return New(docs, index, chunks, &mockEmbedder{}, "chunks"), docs
}

func webSource() commonModels.Source {
	return commonModels.Source{Id: "src-1", Type: commonModels.Web, URL: "https://example.com"}
}

func item(url, content string) commonModels.ExtractedItem {
	return commonModels.ExtractedItem{URL: url, Title: "T " + url, Content: content}
}

func TestDiffPartitions(t *testing.T) {
	ctx := context.Background()
	index := newMockIndex()
	r, docs := newTestReconciler(index)
	source := webSource()

	// seed stored state {A, B, C}
	first, err := r.Reconcile(ctx, source, []commonModels.ExtractedItem{
		item("https://example.com/a", "content of a"),
		item("https://example.com/b", "content of b"),
		item("https://example.com/c", "content of c"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.Added != 3 {
		t.Fatalf("seed run added %d, want 3", first.Added)
	}

	stored, _ := docs.GetDocumentsBySource(ctx, source.Id)
	removedDocId := stored["https://example.com/a"].Id
	changedDocId := stored["https://example.com/c"].Id

	// fresh extraction {B, C, D}, C's content changed
	result, err := r.Reconcile(ctx, source, []commonModels.ExtractedItem{
		item("https://example.com/b", "content of b"),
		item("https://example.com/c", "new content of c"),
		item("https://example.com/d", "content of d"),
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Added != 1 || result.Updated != 1 || result.Removed != 1 || result.Unchanged != 1 {
		t.Fatalf("got %+v, want added=1 updated=1 removed=1 unchanged=1", result)
	}
	if result.DocumentCount != 3 {
		t.Fatalf("document count %d, want 3", result.DocumentCount)
	}

	stored, _ = docs.GetDocumentsBySource(ctx, source.Id)
	if _, gone := stored["https://example.com/a"]; gone {
		t.Fatal("removed document still stored")
	}
	if stored["https://example.com/c"].Content != "new content of c" {
		t.Fatalf("updated document body not replaced: %q", stored["https://example.com/c"].Content)
	}
	if index.vectorsFor[removedDocId] {
		t.Fatal("removed document still holds vectors")
	}

	// the changed document's old vectors must be deleted before the new upsert
	var deleteAt, upsertAt int
	for i, call := range index.calls {
		if call.documentId != changedDocId {
			continue
		}
		if call.op == "delete" {
			deleteAt = i
		}
		if call.op == "upsert" && i > deleteAt {
			upsertAt = i
		}
	}
	if upsertAt == 0 || deleteAt > upsertAt {
		t.Fatalf("vector delete/upsert order wrong for updated document: %v", index.calls)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestReconciler(newMockIndex())
	source := webSource()

	items := []commonModels.ExtractedItem{
		item("https://example.com/a", "content of a"),
		item("https://example.com/b", "content of b"),
	}

	if _, err := r.Reconcile(ctx, source, items); err != nil {
		t.Fatal(err)
	}
	second, err := r.Reconcile(ctx, source, items)
	if err != nil {
		t.Fatal(err)
	}

	if second.Added != 0 || second.Updated != 0 || second.Removed != 0 {
		t.Fatalf("second run not idempotent: %+v", second)
	}
	if second.Unchanged != 2 {
		t.Fatalf("second run unchanged %d, want 2", second.Unchanged)
	}
}

func TestFeedEntriesNeverRemoved(t *testing.T) {
	ctx := context.Background()
	index := newMockIndex()
	r, docs := newTestReconciler(index)
	source := commonModels.Source{Id: "src-feed", Type: commonModels.Feed, URL: "https://example.com/rss"}

	if _, err := r.Reconcile(ctx, source, []commonModels.ExtractedItem{
		item("https://example.com/old", "old entry"),
		item("https://example.com/new", "new entry"),
	}); err != nil {
		t.Fatal(err)
	}

	// old entry rolled out of the feed window
	result, err := r.Reconcile(ctx, source, []commonModels.ExtractedItem{
		item("https://example.com/new", "new entry"),
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Removed != 0 {
		t.Fatalf("feed reconciliation removed %d documents", result.Removed)
	}
	if result.Unchanged != 2 {
		t.Fatalf("unchanged %d, want 2 (present entry plus retained one)", result.Unchanged)
	}
	if result.DocumentCount != 2 {
		t.Fatalf("document count %d, want 2", result.DocumentCount)
	}

	stored, _ := docs.GetDocumentsBySource(ctx, source.Id)
	if _, kept := stored["https://example.com/old"]; !kept {
		t.Fatal("absent feed entry was deleted")
	}
}

func TestContentHashFallbackIdentity(t *testing.T) {
	// Two uploads with byte-identical content share a content-hash
	// identity key and collapse into one stored document. Known
	// ambiguity of hash-as-identity, kept deliberately.
	ctx := context.Background()
	r, docs := newTestReconciler(newMockIndex())
	source := commonModels.Source{Id: "src-file", Type: commonModels.File}

	result, err := r.Reconcile(ctx, source, []commonModels.ExtractedItem{
		{Title: "upload-1.txt", Content: "same bytes"},
		{Title: "upload-2.txt", Content: "same bytes"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Added != 1 {
		t.Fatalf("added %d, want 1", result.Added)
	}

	stored, _ := docs.GetDocumentsBySource(ctx, source.Id)
	if len(stored) != 1 {
		t.Fatalf("stored %d documents, want 1", len(stored))
	}
}

func TestChunkCountsRecorded(t *testing.T) {
	ctx := context.Background()
	r, docs := newTestReconciler(newMockIndex())
	source := webSource()

	result, err := r.Reconcile(ctx, source, []commonModels.ExtractedItem{
		item("https://example.com/a", "one two three four five."),
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.ChunksWritten == 0 || result.ChunkCount != result.ChunksWritten {
		t.Fatalf("chunk accounting off: %+v", result)
	}

	stored, _ := docs.GetDocumentsBySource(ctx, source.Id)
	doc := stored["https://example.com/a"]
	chunks, _ := docs.GetChunks(ctx, doc.Id)
	if len(chunks) != result.ChunkCount {
		t.Fatalf("stored %d chunks, result claims %d", len(chunks), result.ChunkCount)
	}
	for i, c := range chunks {
		if c.Index != i || c.DocumentId != doc.Id || c.TokenCount == 0 {
			t.Fatalf("malformed chunk row: %+v", c)
		}
	}
}

func TestRechunkRewritesEveryDocument(t *testing.T) {
	ctx := context.Background()
	index := newMockIndex()
	r, _ := newTestReconciler(index)
	source := webSource()

	if _, err := r.Reconcile(ctx, source, []commonModels.ExtractedItem{
		item("https://example.com/a", "content of a"),
		item("https://example.com/b", "content of b"),
	}); err != nil {
		t.Fatal(err)
	}

	index.calls = nil
	result, err := r.Rechunk(ctx, source)
	if err != nil {
		t.Fatal(err)
	}
	if result.Updated != 2 || result.DocumentCount != 2 {
		t.Fatalf("got %+v, want 2 rewritten documents", result)
	}

	deletes, upserts := 0, 0
	for _, call := range index.calls {
		switch call.op {
		case "delete":
			deletes++
		case "upsert":
			upserts++
		}
	}
	if deletes != 2 || upserts != 2 {
		t.Fatalf("got %d deletes / %d upserts, want 2 each", deletes, upserts)
	}
}

type stubExtractor struct {
	items []commonModels.ExtractedItem
	err   error
}

func (s *stubExtractor) Extract(ctx context.Context, source commonModels.Source) ([]commonModels.ExtractedItem, error) {
	return s.items, s.err
}

func TestProcessReconcileJobSuccess(t *testing.T) {
	ctx := context.Background()
	index := newMockIndex()
	r, docs := newTestReconciler(index)
	source := webSource()
	source.Status = commonModels.SourcePending
	if err := docs.SaveSource(ctx, source); err != nil {
		t.Fatal(err)
	}

	job := jobModel.Job{Id: "job-1", SourceId: source.Id, JobType: jobModel.JobTypeReconcile, Status: jobModel.JobStatusRunning}
	extractor := &stubExtractor{items: []commonModels.ExtractedItem{item("https://example.com/a", "content of a")}}

	job = ProcessReconcileJob(ctx, job, docs, r, extractor)

	if job.Status != jobModel.JobStatusComplete {
		t.Fatalf("job status %s, want complete (error: %s)", job.Status, job.Error.Message)
	}
	if job.JobPayload.DocsAdded != 1 {
		t.Fatalf("payload %+v, want DocsAdded=1", job.JobPayload)
	}

	saved, _ := docs.GetSource(ctx, source.Id)
	if saved.Status != commonModels.SourceReady {
		t.Fatalf("source status %s, want ready", saved.Status)
	}
	if saved.DocumentCount != 1 || saved.ChunkCount == 0 {
		t.Fatalf("source counts not recomputed: %+v", saved)
	}
	if saved.LastReconciledAt.IsZero() {
		t.Fatal("last reconciled timestamp not set")
	}
}

func TestProcessReconcileJobFinalFailure(t *testing.T) {
	// cancelled context keeps the retry loop from sleeping through backoff
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	index := newMockIndex()
	r, docs := newTestReconciler(index)
	source := webSource()
	if err := docs.SaveSource(context.Background(), source); err != nil {
		t.Fatal(err)
	}

	job := jobModel.Job{Id: "job-1", SourceId: source.Id, JobType: jobModel.JobTypeReconcile}
	extractor := &stubExtractor{err: errors.New("crawl blew up")}

	job = ProcessReconcileJob(ctx, job, docs, r, extractor)

	if job.Status != jobModel.JobStatusError {
		t.Fatalf("job status %s, want error", job.Status)
	}
	if job.Error.Message == "" {
		t.Fatal("job error message empty")
	}

	saved, _ := docs.GetSource(context.Background(), source.Id)
	if saved.Status != commonModels.SourceError {
		t.Fatalf("source status %s, want error", saved.Status)
	}
	if saved.Error == "" {
		t.Fatal("source error message empty")
	}
}
