package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mfales/ragengine/internal/config"
	"github.com/mfales/ragengine/internal/data/redisStore"
	"github.com/mfales/ragengine/internal/domain/commonModels"
	"github.com/mfales/ragengine/pkg/logx"
)

// Key layout:
//
//	sources            hash, field sourceId -> Source JSON
//	docs:<sourceId>    hash, field identityKey -> Document JSON
//	chunks:<docId>     string, Chunk JSON array, replaced wholesale
const (
	sourcesKey  = "sources"
	docsPrefix  = "docs:"
	chunkPrefix = "chunks:"
)

type RedisDocumentStore struct {
	store  *redisStore.Store
	logger *logx.Logger
}

func GetRedisDocumentStore(ctx context.Context) *RedisDocumentStore {
	return &RedisDocumentStore{
		store:  redisStore.GetRedisStore(ctx, config.RedisDocumentStore),
		logger: logx.NewLogger("DocumentStore"),
	}
}

func (s *RedisDocumentStore) SaveSource(ctx context.Context, source commonModels.Source) error {
	data, err := json.Marshal(source)
	if err != nil {
		return err
	}
	return s.store.HashSet(ctx, sourcesKey, source.Id, data)
}

func (s *RedisDocumentStore) GetSource(ctx context.Context, sourceId string) (commonModels.Source, bool) {
	var source commonModels.Source
	val, err := s.store.HashGet(ctx, sourcesKey, sourceId)
	if err != nil {
		if !s.store.IsNil(err) {
			s.logger.Error("Failed to get source", "sourceId", sourceId, "error", err)
		}
		return source, false
	}
	if err := json.Unmarshal([]byte(val), &source); err != nil {
		s.logger.Error("Failed to unmarshal source", "sourceId", sourceId, "error", err)
		return source, false
	}
	return source, true
}

func (s *RedisDocumentStore) ListSources(ctx context.Context) ([]commonModels.Source, error) {
	raw, err := s.store.HashGetAll(ctx, sourcesKey)
	if err != nil {
		return nil, fmt.Errorf("listing sources failed: %w", err)
	}

	sources := make([]commonModels.Source, 0, len(raw))
	for id, val := range raw {
		var source commonModels.Source
		if err := json.Unmarshal([]byte(val), &source); err != nil {
			s.logger.Error("Skipping malformed source", "sourceId", id, "error", err)
			continue
		}
		sources = append(sources, source)
	}
	return sources, nil
}

// DeleteSource removes the source row, its document map and every chunk
// list. Vector cleanup is the caller's job.
func (s *RedisDocumentStore) DeleteSource(ctx context.Context, sourceId string) error {
	docs, err := s.GetDocumentsBySource(ctx, sourceId)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := s.DeleteChunks(ctx, doc.Id); err != nil {
			return err
		}
	}
	if err := s.store.Del(ctx, docsPrefix+sourceId); err != nil {
		return err
	}
	return s.store.HashDel(ctx, sourcesKey, sourceId)
}

func (s *RedisDocumentStore) SaveDocument(ctx context.Context, doc commonModels.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.store.HashSet(ctx, docsPrefix+doc.SourceId, doc.IdentityKey(), data)
}

func (s *RedisDocumentStore) GetDocumentsBySource(ctx context.Context, sourceId string) (map[string]commonModels.Document, error) {
	raw, err := s.store.HashGetAll(ctx, docsPrefix+sourceId)
	if err != nil {
		return nil, fmt.Errorf("loading documents for source %s failed: %w", sourceId, err)
	}

	docs := make(map[string]commonModels.Document, len(raw))
	for key, val := range raw {
		var doc commonModels.Document
		if err := json.Unmarshal([]byte(val), &doc); err != nil {
			s.logger.Error("Skipping malformed document", "identityKey", key, "error", err)
			continue
		}
		docs[key] = doc
	}
	return docs, nil
}

func (s *RedisDocumentStore) DeleteDocument(ctx context.Context, sourceId string, identityKey string) error {
	return s.store.HashDel(ctx, docsPrefix+sourceId, identityKey)
}

func (s *RedisDocumentStore) SaveChunks(ctx context.Context, documentId string, chunks []commonModels.Chunk) error {
	data, err := json.Marshal(chunks)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, chunkPrefix+documentId, data, 0)
}

func (s *RedisDocumentStore) GetChunks(ctx context.Context, documentId string) ([]commonModels.Chunk, error) {
	val, err := s.store.Get(ctx, chunkPrefix+documentId)
	if s.store.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading chunks for document %s failed: %w", documentId, err)
	}

	var chunks []commonModels.Chunk
	if err := json.Unmarshal([]byte(val), &chunks); err != nil {
		return nil, fmt.Errorf("unmarshalling chunks for document %s failed: %w", documentId, err)
	}
	return chunks, nil
}

func (s *RedisDocumentStore) DeleteChunks(ctx context.Context, documentId string) error {
	return s.store.Del(ctx, chunkPrefix+documentId)
}

func TestDocumentStore(store *redisStore.Store) *RedisDocumentStore {
	return &RedisDocumentStore{
		store:  store,
		logger: logx.NewLogger("test redis"),
	}
}
