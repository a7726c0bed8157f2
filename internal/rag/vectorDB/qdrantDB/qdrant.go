package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/rag/vectorDB"
	"github.com/mfales/ragengine/pkg/logx"
	"github.com/qdrant/go-client/qdrant"
)

var logger *logx.Logger
var qdrantInstance *qdrant.Client
var once sync.Once

type ClientHolder struct {
	QObj *qdrant.Client
}

func GetQdrantClient(ctx context.Context) *ClientHolder {

	once.Do(func() {
		logger = logx.NewLogger("Qdrant")
		res := newClient()
		if res != nil {
			qdrantInstance = res
			initCacheCollection(ctx, qdrantInstance)
			go closeQdrant(ctx, qdrantInstance)
		}
	})

	if qdrantInstance == nil {
		return nil
	}
	return &ClientHolder{
		QObj: qdrantInstance,
	}
}

func newClient() *qdrant.Client {

	host := os.Getenv("QDRANT_HOST")
	port, er := strconv.Atoi(os.Getenv("QDRANT_PORT"))

	if host == "" || er != nil {
		host = config.QdrantHost
		port = config.QdrantGrpcPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate: ", "error:", err)
		return nil
	}

	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	err := qi.Close()
	if err != nil {
		logger.Error("could not close Qdrant: ", "error:", err)
	}
	logger.Info("Closed Qdrant")
}

// EnsureCollection creates the collection if missing. An existing
// collection with a different vector size is destroyed and recreated:
// vectors from different embedding spaces are not comparable, so the
// old ones are useless the moment the dimension changes.
func (db *ClientHolder) EnsureCollection(ctx context.Context, collectionName string, dimension uint64) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}

	exists, err := db.QObj.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}

	if exists {
		info, err := db.QObj.GetCollectionInfo(ctx, collectionName)
		if err != nil {
			return err
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size == dimension {
			return nil
		}
		logger.Warn("Embedding dimension changed, recreating collection",
			"collection", collectionName, "old", size, "new", dimension)
		return db.RecreateCollection(ctx, collectionName, dimension)
	}

	return db.createCollection(ctx, collectionName, dimension)
}

func (db *ClientHolder) RecreateCollection(ctx context.Context, collectionName string, dimension uint64) error {
	exists, err := db.QObj.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		if err := db.QObj.DeleteCollection(ctx, collectionName); err != nil {
			return fmt.Errorf("deleting collection %s failed: %w", collectionName, err)
		}
	}
	return db.createCollection(ctx, collectionName, dimension)
}

func (db *ClientHolder) createCollection(ctx context.Context, collectionName string, dimension uint64) error {
	return db.QObj.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (db *ClientHolder) UpsertChunks(ctx context.Context, collectionName string, doc commonModels.Document, sourceId string, chunks []commonModels.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(chunks))

	for i, chunk := range chunks {
		payload := map[string]any{
			"content":     chunk.Content,
			"chunk_id":    chunk.Id,
			"chunk_index": chunk.Index,
			"token_count": chunk.TokenCount,
			"document_id": doc.Id,
			"source_id":   sourceId,
			"title":       doc.Title,
			"url":         doc.URL,
			"ingested_at": doc.IngestedAt.Unix(),
		}
		// Undated documents get an explicit null so the IsNull side of
		// the include_undated filter can match them
		if doc.PublishedAt != nil {
			payload["published_at_ts"] = doc.PublishedAt.Unix()
		} else {
			payload["published_at_ts"] = nil
		}

		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.Id),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})

	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}

	return nil
}

func (db *ClientHolder) DeleteByDocument(ctx context.Context, collectionName string, documentId string) error {
	return db.deleteByFilter(ctx, collectionName, &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("document_id", documentId)},
	})
}

func (db *ClientHolder) DeleteBySource(ctx context.Context, collectionName string, sourceId string) error {
	return db.deleteByFilter(ctx, collectionName, &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("source_id", sourceId)},
	})
}

func (db *ClientHolder) deleteByFilter(ctx context.Context, collectionName string, filter *qdrant.Filter) error {
	_, err := db.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

func (db *ClientHolder) Query(ctx context.Context, collectionName string, vector []float32, limit uint64, filter vectorDB.QueryFilter) ([]commonModels.SearchHit, error) {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	query := &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if qf := buildFilter(filter); qf != nil {
		query.Filter = qf
	}
	if filter.ScoreThreshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(filter.ScoreThreshold)
	}

	result, err := db.QObj.Query(ctx, query)
	if err != nil {
		loggr.Error("Error querying Qdrant: ", "error:", err)
		return nil, err
	}

	hits := make([]commonModels.SearchHit, 0, len(result))
	for _, point := range result {
		hit := hitFromPayload(point.Payload)
		hit.Score = point.Score
		hits = append(hits, hit)
	}

	loggr.Debug("Query returned hits", "count", len(hits))
	return hits, nil
}

// FetchChunks scrolls the given chunk indices of one document. Scores
// come back zero, these points did not match a query.
func (db *ClientHolder) FetchChunks(ctx context.Context, collectionName string, documentId string, indices []int) ([]commonModels.SearchHit, error) {
	if len(indices) == 0 {
		return nil, nil
	}

	wanted := make([]int64, len(indices))
	for i, idx := range indices {
		wanted[i] = int64(idx)
	}

	result, err := db.QObj.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collectionName,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentId),
				qdrant.NewMatchInts("chunk_index", wanted...),
			},
		},
		Limit:       qdrant.PtrOf(uint32(len(indices))),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant scroll failed: %w", err)
	}

	hits := make([]commonModels.SearchHit, 0, len(result))
	for _, point := range result {
		hits = append(hits, hitFromPayload(point.Payload))
	}
	return hits, nil
}

func hitFromPayload(payload map[string]*qdrant.Value) commonModels.SearchHit {
	hit := commonModels.SearchHit{
		ChunkId:    payload["chunk_id"].GetStringValue(),
		DocumentId: payload["document_id"].GetStringValue(),
		SourceId:   payload["source_id"].GetStringValue(),
		ChunkIndex: int(payload["chunk_index"].GetIntegerValue()),
		Content:    payload["content"].GetStringValue(),
		Title:      payload["title"].GetStringValue(),
		URL:        payload["url"].GetStringValue(),
	}
	if ts, ok := payload["published_at_ts"]; ok {
		if _, isNull := ts.GetKind().(*qdrant.Value_NullValue); !isNull {
			t := unixTime(ts.GetIntegerValue())
			hit.PublishedAt = &t
		}
	}
	return hit
}
