package commonModels

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type SourceType string

var Web SourceType = "web"
var Feed SourceType = "feed"
var File SourceType = "file"

type SourceStatus string

var SourcePending SourceStatus = "pending"
var SourceProcessing SourceStatus = "processing"
var SourceReady SourceStatus = "ready"
var SourceError SourceStatus = "error"

type Source struct {
	Id               string       `json:"id"`
	Type             SourceType   `json:"type"`
	URL              string       `json:"url"`
	Title            string       `json:"title,omitempty"`
	CrawlDepth       int          `json:"crawl_depth,omitempty"`
	Status           SourceStatus `json:"status"`
	Error            string       `json:"error,omitempty"`
	DocumentCount    int          `json:"document_count"`
	ChunkCount       int          `json:"chunk_count"`
	CreatedAt        time.Time    `json:"created_at"`
	LastReconciledAt time.Time    `json:"last_reconciled_at,omitempty"`
}

type Document struct {
	Id          string     `json:"id"`
	SourceId    string     `json:"source_id"`
	URL         string     `json:"url,omitempty"`
	Title       string     `json:"title,omitempty"`
	Content     string     `json:"content"`
	ContentHash string     `json:"content_hash"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	IngestedAt  time.Time  `json:"ingested_at"`
}

// IdentityKey is the reconciliation identity of a document within its
// source: the URL when one exists, the content hash otherwise.
func (d Document) IdentityKey() string {
	if d.URL != "" {
		return d.URL
	}
	return d.ContentHash
}

func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

type Chunk struct {
	Id         string `json:"id"`
	DocumentId string `json:"document_id"`
	Index      int    `json:"chunk_index"`
	Content    string `json:"content"`
	TokenCount int    `json:"token_count"`
}

// ExtractedItem is what an extractor hands back per document before
// chunking, hash not yet computed.
type ExtractedItem struct {
	URL         string
	Title       string
	Content     string
	PublishedAt *time.Time
}

type SearchHit struct {
	ChunkId     string     `json:"chunk_id"`
	DocumentId  string     `json:"document_id"`
	SourceId    string     `json:"source_id"`
	ChunkIndex  int        `json:"chunk_index"`
	Content     string     `json:"content"`
	Title       string     `json:"title,omitempty"`
	URL         string     `json:"url,omitempty"`
	Score       float32    `json:"score"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ChatMessage is one turn handed to a text generator.
type ChatMessage struct {
	Role    string `json:"role"` //system, user or assistant
	Content string `json:"content"`
}

// DateFilter restricts retrieval by publication date. Nil bounds are
// open. IncludeUndated keeps chunks whose documents carry no date.
type DateFilter struct {
	Start          *time.Time
	End            *time.Time
	IncludeUndated bool
}

func (f DateFilter) IsZero() bool {
	return f.Start == nil && f.End == nil
}

// DocumentStore persists sources, their documents keyed by identity key,
// and each document's current chunk set.
type DocumentStore interface {
	SaveSource(ctx context.Context, source Source) error
	GetSource(ctx context.Context, sourceId string) (Source, bool)
	ListSources(ctx context.Context) ([]Source, error)
	DeleteSource(ctx context.Context, sourceId string) error

	SaveDocument(ctx context.Context, doc Document) error
	// GetDocumentsBySource returns the stored documents of a source keyed
	// by identity key, the shape the reconciliation diff works on.
	GetDocumentsBySource(ctx context.Context, sourceId string) (map[string]Document, error)
	DeleteDocument(ctx context.Context, sourceId string, identityKey string) error

	// SaveChunks replaces a document's chunk set wholesale.
	SaveChunks(ctx context.Context, documentId string, chunks []Chunk) error
	GetChunks(ctx context.Context, documentId string) ([]Chunk, error)
	DeleteChunks(ctx context.Context, documentId string) error
}

// VersionStore holds the shared token identifying the active embedding
// provider+model. Handles compare against it before use.
type VersionStore interface {
	GetVersion(ctx context.Context) (string, error)
	SetVersion(ctx context.Context, token string) error
}
