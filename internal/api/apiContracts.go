package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	SourceId  string            `json:"source_id" example:"src_550"`
	Type      string            `json:"type" example:"Reconcile"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type Result struct {
	Status    string           `json:"status"`
	Step      string           `json:"step,omitempty"`
	Reconcile *ReconcileResult `json:"reconcile,omitempty"`
}

// ReconcileResult is the per-run diff summary surfaced on a finished job.
type ReconcileResult struct {
	DocsAdded     int `json:"docs_added"`
	DocsUpdated   int `json:"docs_updated"`
	DocsRemoved   int `json:"docs_removed"`
	DocsUnchanged int `json:"docs_unchanged"`
	ChunksWritten int `json:"chunks_written"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	SourceId  string `json:"source_id"`
	StatusURL string `json:"status_url"`
}

type SourceResponse struct {
	Id               string    `json:"id"`
	Type             string    `json:"type" example:"web"`
	URL              string    `json:"url,omitempty"`
	Title            string    `json:"title,omitempty"`
	Status           string    `json:"status" example:"ready"`
	Error            string    `json:"error,omitempty"`
	DocumentCount    int       `json:"document_count"`
	ChunkCount       int       `json:"chunk_count"`
	CreatedAt        time.Time `json:"created_at"`
	LastReconciledAt time.Time `json:"last_reconciled_at,omitempty"`
}

type SourceRef struct {
	Number  int     `json:"number"`
	Title   string  `json:"title,omitempty"`
	URL     string  `json:"url,omitempty"`
	Score   float32 `json:"score"`
	Preview string  `json:"preview,omitempty"`
	Cited   bool    `json:"cited"`
}

type ChatResponse struct {
	ChatID    string      `json:"chat_id"`
	Answer    string      `json:"answer"`
	Sources   []SourceRef `json:"sources"`
	Citations []int       `json:"citations,omitempty"`
	Cached    bool        `json:"cached"`
}

type SearchHitResponse struct {
	DocumentId  string     `json:"document_id"`
	SourceId    string     `json:"source_id"`
	ChunkIndex  int        `json:"chunk_index"`
	Title       string     `json:"title,omitempty"`
	URL         string     `json:"url,omitempty"`
	Score       float32    `json:"score"`
	Content     string     `json:"content"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type SearchResponse struct {
	Hits []SearchHitResponse `json:"hits"`
}

type EmbeddingVersionResponse struct {
	Version     string            `json:"version"`
	RechunkJobs []InitJobResponse `json:"rechunk_jobs,omitempty"`
}

// requests---------------------

type SourceRequest struct {
	Type       string `json:"type" validate:"required" example:"web"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	CrawlDepth int    `json:"crawl_depth,omitempty"`
}

type ChatRequest struct {
	Message        string   `json:"message" validate:"required"`
	ChatID         string   `json:"chatID,omitempty"`
	SourceIds      []string `json:"source_ids,omitempty"`
	StartDate      string   `json:"start_date,omitempty" example:"2024-01-01"`
	EndDate        string   `json:"end_date,omitempty" example:"2024-12-31"`
	IncludeUndated bool     `json:"include_undated,omitempty"`
}

type EmbeddingVersionRequest struct {
	Provider  string `json:"provider" validate:"required" example:"google"`
	Model     string `json:"model" validate:"required"`
	Dimension int32  `json:"dimension" validate:"required" example:"1536"`
}
