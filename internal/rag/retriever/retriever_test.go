package retriever

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/rag/vectorDB"
)

type mockIndex struct {
	queryFunc func(ctx context.Context, collection string, vector []float32, limit uint64, filter vectorDB.QueryFilter) ([]commonModels.SearchHit, error)
	fetchFunc func(ctx context.Context, collection string, documentId string, indices []int) ([]commonModels.SearchHit, error)
}

func (m *mockIndex) Query(ctx context.Context, collection string, vector []float32, limit uint64, filter vectorDB.QueryFilter) ([]commonModels.SearchHit, error) {
	return m.queryFunc(ctx, collection, vector, limit, filter)
}

func (m *mockIndex) FetchChunks(ctx context.Context, collection string, documentId string, indices []int) ([]commonModels.SearchHit, error) {
	return m.fetchFunc(ctx, collection, documentId, indices)
}

func (m *mockIndex) GetCachedAnswer(ctx context.Context, vector []float32) (string, bool, error) {
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
	return nil
}

func (m *mockIndex) DeleteByDocument(ctx context.Context, collection string, documentId string) error {
	return nil
}

func (m *mockIndex) DeleteBySource(ctx context.Context, collection string, sourceId string) error {
	return nil
}

func hit(doc string, index int, score float32) commonModels.SearchHit {
	return commonModels.SearchHit{DocumentId: doc, ChunkIndex: index, Score: score, Content: "c"}
}

func TestContextWindowExpansion(t *testing.T) {
	var fetched []int
	index := &mockIndex{
		queryFunc: func(ctx context.Context, collection string, vector []float32, limit uint64, filter vectorDB.QueryFilter) ([]commonModels.SearchHit, error) {
			return []commonModels.SearchHit{hit("doc-7", 4, 0.9), hit("doc-7", 9, 0.8), hit("doc-7", 12, 0.7)}, nil
		},
		fetchFunc: func(ctx context.Context, collection string, documentId string, indices []int) ([]commonModels.SearchHit, error) {
			fetched = indices
			hits := make([]commonModels.SearchHit, 0, len(indices))
			for _, idx := range indices {
				hits = append(hits, hit(documentId, idx, 0.99))
			}
			return hits, nil
		},
	}

	r := New(index, "chunks")
	hits, err := r.SearchWithContext(context.Background(), []float32{0.1}, Params{Limit: 10, ContextWindow: 1})
	if err != nil {
		t.Fatal(err)
	}

	want := []int{3, 5, 8, 10, 11, 13}
	if len(fetched) != len(want) {
		t.Fatalf("fetched indices %v, want %v", fetched, want)
	}
	for i := range want {
		if fetched[i] != want[i] {
			t.Fatalf("fetched indices %v, want %v", fetched, want)
		}
	}

	if len(hits) != 9 {
		t.Fatalf("got %d merged hits, want 9", len(hits))
	}
	for _, h := range hits {
		isNeighbor := true
		for _, idx := range []int{4, 9, 12} {
			if h.ChunkIndex == idx {
				isNeighbor = false
			}
		}
		if isNeighbor && h.Score != 0 {
			t.Fatalf("neighbor chunk %d carries score %v, want 0", h.ChunkIndex, h.Score)
		}
	}
}

func TestWindowClippedAtZero(t *testing.T) {
	var fetched []int
	index := &mockIndex{
		queryFunc: func(ctx context.Context, collection string, vector []float32, limit uint64, filter vectorDB.QueryFilter) ([]commonModels.SearchHit, error) {
			return []commonModels.SearchHit{hit("doc-1", 0, 0.9)}, nil
		},
		fetchFunc: func(ctx context.Context, collection string, documentId string, indices []int) ([]commonModels.SearchHit, error) {
			fetched = indices
			return nil, nil
		},
	}

	r := New(index, "chunks")
	if _, err := r.SearchWithContext(context.Background(), []float32{0.1}, Params{Limit: 10, ContextWindow: 2}); err != nil {
		t.Fatal(err)
	}

	want := []int{1, 2}
	if len(fetched) != len(want) || fetched[0] != 1 || fetched[1] != 2 {
		t.Fatalf("fetched indices %v, want %v", fetched, want)
	}
}

func TestAdjacentHitsNotRefetched(t *testing.T) {
	var fetched []int
	index := &mockIndex{
		queryFunc: func(ctx context.Context, collection string, vector []float32, limit uint64, filter vectorDB.QueryFilter) ([]commonModels.SearchHit, error) {
			return []commonModels.SearchHit{hit("doc-1", 3, 0.9), hit("doc-1", 4, 0.8)}, nil
		},
		fetchFunc: func(ctx context.Context, collection string, documentId string, indices []int) ([]commonModels.SearchHit, error) {
			fetched = indices
			return nil, nil
		},
	}

	r := New(index, "chunks")
	if _, err := r.SearchWithContext(context.Background(), []float32{0.1}, Params{Limit: 10, ContextWindow: 1}); err != nil {
		t.Fatal(err)
	}

	want := []int{2, 5}
	if len(fetched) != 2 || fetched[0] != want[0] || fetched[1] != want[1] {
		t.Fatalf("fetched indices %v, want %v", fetched, want)
	}
}

func TestOrderingByBestDocumentScore(t *testing.T) {
	index := &mockIndex{
		queryFunc: func(ctx context.Context, collection string, vector []float32, limit uint64, filter vectorDB.QueryFilter) ([]commonModels.SearchHit, error) {
			return []commonModels.SearchHit{
				hit("doc-low", 1, 0.6),
				hit("doc-high", 5, 0.9),
				hit("doc-high", 2, 0.7),
				hit("doc-low", 0, 0.5),
			}, nil
		},
		fetchFunc: func(ctx context.Context, collection string, documentId string, indices []int) ([]commonModels.SearchHit, error) {
			return nil, nil
		},
	}

	r := New(index, "chunks")
	hits, err := r.SearchWithContext(context.Background(), []float32{0.1}, Params{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}

	wantDocs := []string{"doc-high", "doc-high", "doc-low", "doc-low"}
	wantIndices := []int{2, 5, 0, 1}
	for i := range hits {
		if hits[i].DocumentId != wantDocs[i] || hits[i].ChunkIndex != wantIndices[i] {
			t.Fatalf("position %d got %s/%d, want %s/%d", i, hits[i].DocumentId, hits[i].ChunkIndex, wantDocs[i], wantIndices[i])
		}
	}
}

func TestNeighborFetchFailureKeepsHits(t *testing.T) {
	index := &mockIndex{
		queryFunc: func(ctx context.Context, collection string, vector []float32, limit uint64, filter vectorDB.QueryFilter) ([]commonModels.SearchHit, error) {
			return []commonModels.SearchHit{hit("doc-1", 3, 0.9)}, nil
		},
		fetchFunc: func(ctx context.Context, collection string, documentId string, indices []int) ([]commonModels.SearchHit, error) {
			return nil, errors.New("scroll failed")
		},
	}

	r := New(index, "chunks")
	hits, err := r.SearchWithContext(context.Background(), []float32{0.1}, Params{Limit: 10, ContextWindow: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ChunkIndex != 3 {
		t.Fatalf("got %v, want the original hit alone", hits)
	}
}

func TestEmptyQueryResult(t *testing.T) {
	index := &mockIndex{
		queryFunc: func(ctx context.Context, collection string, vector []float32, limit uint64, filter vectorDB.QueryFilter) ([]commonModels.SearchHit, error) {
			return nil, nil
		},
	}

	r := New(index, "chunks")
	hits, err := r.SearchWithContext(context.Background(), []float32{0.1}, Params{Limit: 10, ContextWindow: 1})
	if err != nil {
		t.Fatal(err)
	}
	if hits != nil {
		t.Fatalf("got %v, want nil", hits)
	}
}

func TestOrderingIsDeterministicOnScoreTies(t *testing.T) {
	index := &mockIndex{
		queryFunc: func(ctx context.Context, collection string, vector []float32, limit uint64, filter vectorDB.QueryFilter) ([]commonModels.SearchHit, error) {
			return []commonModels.SearchHit{hit("doc-b", 0, 0.8), hit("doc-a", 0, 0.8)}, nil
		},
		fetchFunc: func(ctx context.Context, collection string, documentId string, indices []int) ([]commonModels.SearchHit, error) {
			return nil, nil
		},
	}

	r := New(index, "chunks")
	hits, err := r.SearchWithContext(context.Background(), []float32{0.1}, Params{Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	got := []string{hits[0].DocumentId, hits[1].DocumentId}
	if !sort.StringsAreSorted(got) {
		t.Fatalf("tie order %v not deterministic by document id", got)
	}
}
