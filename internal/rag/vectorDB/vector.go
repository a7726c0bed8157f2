package vectorDB

import (
	"context"

	"github.com/mfales/ragengine/internal/domain/commonModels"
)

// QueryFilter narrows a similarity query. Zero value means no filtering.
type QueryFilter struct {
	SourceIds      []string
	Date           commonModels.DateFilter
	ScoreThreshold float32
}

type DataProcessor interface {
	Query(ctx context.Context, collectionName string, vector []float32, limit uint64, filter QueryFilter) ([]commonModels.SearchHit, error)
	// FetchChunks loads specific chunk indices of one document, used for
	// context-window expansion around a hit.
	FetchChunks(ctx context.Context, collectionName string, documentId string, indices []int) ([]commonModels.SearchHit, error)

	GetCachedAnswer(ctx context.Context, queryVector []float32) (string, bool, error)
	SaveToCache(ctx context.Context, id string, vector []float32, answer string) error

	// EnsureCollection recreates the collection from scratch when the
	// stored vector size differs from dimension.
	EnsureCollection(ctx context.Context, collectionName string, dimension uint64) error
	RecreateCollection(ctx context.Context, collectionName string, dimension uint64) error
	UpsertChunks(ctx context.Context, collectionName string, doc commonModels.Document, sourceId string, chunks []commonModels.Chunk, vectors [][]float32) error
	DeleteByDocument(ctx context.Context, collectionName string, documentId string) error
	DeleteBySource(ctx context.Context, collectionName string, sourceId string) error
}
