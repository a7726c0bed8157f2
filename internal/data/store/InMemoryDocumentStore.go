package store

import (
	"context"
	"sync"

	"github.com/mfales/ragengine/internal/domain/commonModels"
)

type InMemoryDocumentStore struct {
	mu      *sync.RWMutex
	sources map[string]commonModels.Source
	docs    map[string]map[string]commonModels.Document //sourceId -> identityKey -> doc
	chunks  map[string][]commonModels.Chunk             //documentId -> chunks
}

func InitInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{
		mu:      new(sync.RWMutex),
		sources: make(map[string]commonModels.Source),
		docs:    make(map[string]map[string]commonModels.Document),
		chunks:  make(map[string][]commonModels.Chunk),
	}
}

func (s *InMemoryDocumentStore) SaveSource(ctx context.Context, source commonModels.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[source.Id] = source
	return nil
}

func (s *InMemoryDocumentStore) GetSource(ctx context.Context, sourceId string) (commonModels.Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	source, ok := s.sources[sourceId]
	return source, ok
}

func (s *InMemoryDocumentStore) ListSources(ctx context.Context) ([]commonModels.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sources := make([]commonModels.Source, 0, len(s.sources))
	for _, source := range s.sources {
		sources = append(sources, source)
	}
	return sources, nil
}

func (s *InMemoryDocumentStore) DeleteSource(ctx context.Context, sourceId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.docs[sourceId] {
		delete(s.chunks, doc.Id)
	}
	delete(s.docs, sourceId)
	delete(s.sources, sourceId)
	return nil
}

func (s *InMemoryDocumentStore) SaveDocument(ctx context.Context, doc commonModels.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[doc.SourceId] == nil {
		s.docs[doc.SourceId] = make(map[string]commonModels.Document)
	}
	s.docs[doc.SourceId][doc.IdentityKey()] = doc
	return nil
}

func (s *InMemoryDocumentStore) GetDocumentsBySource(ctx context.Context, sourceId string) (map[string]commonModels.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]commonModels.Document, len(s.docs[sourceId]))
	for key, doc := range s.docs[sourceId] {
		out[key] = doc
	}
	return out, nil
}

func (s *InMemoryDocumentStore) DeleteDocument(ctx context.Context, sourceId string, identityKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs[sourceId], identityKey)
	return nil
}

func (s *InMemoryDocumentStore) SaveChunks(ctx context.Context, documentId string, chunks []commonModels.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[documentId] = append([]commonModels.Chunk(nil), chunks...)
	return nil
}

func (s *InMemoryDocumentStore) GetChunks(ctx context.Context, documentId string) ([]commonModels.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]commonModels.Chunk(nil), s.chunks[documentId]...), nil
}

func (s *InMemoryDocumentStore) DeleteChunks(ctx context.Context, documentId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentId)
	return nil
}
