package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mfales/ragengine/internal/adapter/utils"
	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/internal/metrics"
	"github.com/mfales/ragengine/internal/rag/chunker"
	"github.com/mfales/ragengine/internal/rag/embedding"
	"github.com/mfales/ragengine/internal/rag/vectorDB"
	"github.com/mfales/ragengine/pkg/logx"
)

var logger = logx.NewLogger("Reconcile")

// Result reports what one reconciliation pass did to a source.
type Result struct {
	Added         int `json:"added"`
	Updated       int `json:"updated"`
	Removed       int `json:"removed"`
	Unchanged     int `json:"unchanged"`
	ChunksWritten int `json:"chunksWritten"`
	ChunkCount    int `json:"chunkCount"`
	DocumentCount int `json:"documentCount"`
}

type Reconciler struct {
	store      commonModels.DocumentStore
	index      vectorDB.DataProcessor
	chunks     *chunker.Chunker
	embedder   embedding.Embedder
	collection string
}

func New(store commonModels.DocumentStore, index vectorDB.DataProcessor, chunks *chunker.Chunker, embedder embedding.Embedder, collection string) *Reconciler {
	return &Reconciler{
		store:      store,
		index:      index,
		chunks:     chunks,
		embedder:   embedder,
		collection: collection,
	}
}

// Reconcile diffs freshly extracted items against the stored documents
// of a source and converges storage and the vector index onto the fresh
// state. Each document commits on its own, so a failure mid-run leaves
// the documents already processed in place and a re-run converges the
// rest. Feed sources never remove: an entry absent from the current
// fetch stays stored and counts as unchanged.
func (r *Reconciler) Reconcile(ctx context.Context, source commonModels.Source, items []commonModels.ExtractedItem) (Result, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	newMap := make(map[string]commonModels.ExtractedItem, len(items))
	for _, item := range items {
		newMap[itemIdentityKey(item)] = item
	}

	existing, err := r.store.GetDocumentsBySource(ctx, source.Id)
	if err != nil {
		return Result{}, fmt.Errorf("loading stored documents: %w", err)
	}

	var result Result

	for _, key := range sortedKeys(existing) {
		if _, stillPresent := newMap[key]; stillPresent {
			continue
		}
		if source.Type == commonModels.Feed {
			// feeds roll entries out of the window, that is not a deletion
			doc := existing[key]
			count, err := r.storedChunkCount(ctx, doc.Id)
			if err != nil {
				return result, err
			}
			result.Unchanged++
			result.ChunkCount += count
			continue
		}
		if err := r.removeDocument(ctx, source.Id, key, existing[key]); err != nil {
			return result, err
		}
		delete(existing, key)
		result.Removed++
	}

	for _, key := range sortedKeys(newMap) {
		item := newMap[key]
		doc, known := existing[key]

		if !known {
			written, err := r.addDocument(ctx, source.Id, key, item)
			if err != nil {
				return result, err
			}
			result.Added++
			result.ChunksWritten += written
			result.ChunkCount += written
			continue
		}

		if commonModels.HashContent(item.Content) == doc.ContentHash {
			count, err := r.storedChunkCount(ctx, doc.Id)
			if err != nil {
				return result, err
			}
			result.Unchanged++
			result.ChunkCount += count
			continue
		}

		written, err := r.updateDocument(ctx, source.Id, doc, item)
		if err != nil {
			return result, err
		}
		result.Updated++
		result.ChunksWritten += written
		result.ChunkCount += written
	}

	result.DocumentCount = len(existing) + result.Added
	metrics.CaptureReconcileCounts(result.Added, result.Updated, result.Removed, result.Unchanged, result.ChunksWritten)

	log.Info("Reconciliation pass finished",
		"sourceId", source.Id,
		"added", result.Added,
		"updated", result.Updated,
		"removed", result.Removed,
		"unchanged", result.Unchanged)
	return result, nil
}

// Rechunk rebuilds chunks and vectors for every stored document of a
// source from its stored body, without re-extracting. Used after the
// embedding provider or model changes.
func (r *Reconciler) Rechunk(ctx context.Context, source commonModels.Source) (Result, error) {
	existing, err := r.store.GetDocumentsBySource(ctx, source.Id)
	if err != nil {
		return Result{}, fmt.Errorf("loading stored documents: %w", err)
	}

	var result Result
	for _, key := range sortedKeys(existing) {
		doc := existing[key]
		if err := r.clearDocument(ctx, doc.Id); err != nil {
			return result, err
		}
		written, err := r.writeDocument(ctx, source.Id, doc)
		if err != nil {
			return result, err
		}
		result.Updated++
		result.ChunksWritten += written
		result.ChunkCount += written
	}
	result.DocumentCount = len(existing)
	return result, nil
}

func (r *Reconciler) removeDocument(ctx context.Context, sourceId string, key string, doc commonModels.Document) error {
	if err := r.clearDocument(ctx, doc.Id); err != nil {
		return err
	}
	if err := r.store.DeleteDocument(ctx, sourceId, key); err != nil {
		return fmt.Errorf("deleting document %s: %w", doc.Id, err)
	}
	return nil
}

// clearDocument removes a document's vectors first, then its chunk rows.
// Old vectors must be gone before new ones are written for the same
// document, a failed run may leave the document chunkless but never with
// stale vectors still queryable.
func (r *Reconciler) clearDocument(ctx context.Context, documentId string) error {
	if err := r.index.DeleteByDocument(ctx, r.collection, documentId); err != nil {
		return fmt.Errorf("deleting vectors of %s: %w", documentId, err)
	}
	if err := r.store.DeleteChunks(ctx, documentId); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", documentId, err)
	}
	return nil
}

func (r *Reconciler) addDocument(ctx context.Context, sourceId string, key string, item commonModels.ExtractedItem) (int, error) {
	doc := commonModels.Document{
		Id:          utils.GetNewUUID(),
		SourceId:    sourceId,
		URL:         item.URL,
		Title:       item.Title,
		Content:     item.Content,
		ContentHash: commonModels.HashContent(item.Content),
		PublishedAt: item.PublishedAt,
		IngestedAt:  time.Now(),
	}
	return r.writeDocument(ctx, sourceId, doc)
}

func (r *Reconciler) updateDocument(ctx context.Context, sourceId string, doc commonModels.Document, item commonModels.ExtractedItem) (int, error) {
	if err := r.clearDocument(ctx, doc.Id); err != nil {
		return 0, err
	}

	doc.Title = item.Title
	doc.Content = item.Content
	doc.ContentHash = commonModels.HashContent(item.Content)
	doc.PublishedAt = item.PublishedAt
	doc.IngestedAt = time.Now()

	return r.writeDocument(ctx, sourceId, doc)
}

// writeDocument chunks, embeds, indexes and stores one document as a
// single unit of work.
func (r *Reconciler) writeDocument(ctx context.Context, sourceId string, doc commonModels.Document) (int, error) {
	texts := r.chunks.Chunk(doc.Content)

	chunks := make([]commonModels.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, commonModels.Chunk{
			Id:         utils.GetNewUUID(),
			DocumentId: doc.Id,
			Index:      i,
			Content:    text,
			TokenCount: r.chunks.CountTokens(text),
		})
	}

	if len(chunks) > 0 {
		isHugeDataSet := len(chunks) > 1000
		vectors, err := r.embedder.BatchEmbedding(ctx, texts, isHugeDataSet)
		if err != nil {
			return 0, fmt.Errorf("embedding document %s: %w", doc.Id, err)
		}
		if err := r.index.UpsertChunks(ctx, r.collection, doc, sourceId, chunks, vectors); err != nil {
			return 0, fmt.Errorf("indexing document %s: %w", doc.Id, err)
		}
	}

	if err := r.store.SaveDocument(ctx, doc); err != nil {
		return 0, fmt.Errorf("saving document %s: %w", doc.Id, err)
	}
	if err := r.store.SaveChunks(ctx, doc.Id, chunks); err != nil {
		return 0, fmt.Errorf("saving chunks of %s: %w", doc.Id, err)
	}
	return len(chunks), nil
}

func (r *Reconciler) storedChunkCount(ctx context.Context, documentId string) (int, error) {
	chunks, err := r.store.GetChunks(ctx, documentId)
	if err != nil {
		return 0, fmt.Errorf("counting chunks of %s: %w", documentId, err)
	}
	return len(chunks), nil
}

// itemIdentityKey matches documents across ingestion runs: the URL when
// the item has one, the content hash otherwise. Two uploads with
// byte-identical content therefore collapse into one document.
func itemIdentityKey(item commonModels.ExtractedItem) string {
	if item.URL != "" {
		return item.URL
	}
	return commonModels.HashContent(item.Content)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
