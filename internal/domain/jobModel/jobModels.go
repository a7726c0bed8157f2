package jobModel

import (
	"context"
	"time"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	ReconcileInit     InternalStatus = "Init"
	ExtractCall       InternalStatus = "Extract"
	DiffCall          InternalStatus = "Diff"
	ChunkCall         InternalStatus = "Chunk"
	EmbeddingAPICall  InternalStatus = "EmbeddingAPI"
	VectorDBCall      InternalStatus = "VectorDB"
	RedisCall         InternalStatus = "Redis"
	RetryWait         InternalStatus = "RetryWait"
	Error             InternalStatus = "Error"

	Complete InternalStatus = "Complete"

	JobTypeReconcile JobType = "Reconcile"
	JobTypeRechunk   JobType = "Rechunk"
)

type Job struct {
	Id          string         `json:"id"`
	SourceId    string         `json:"source_id"`
	TraceId     string         `json:"trace_id"`
	JobType     JobType        `json:"job_type"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
	Attempt     int            `json:"attempt"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	SourceURL string `json:"source_url,omitempty"`

	DocsAdded     int `json:"docs_added,omitempty"`
	DocsUpdated   int `json:"docs_updated,omitempty"`
	DocsRemoved   int `json:"docs_removed,omitempty"`
	DocsUnchanged int `json:"docs_unchanged,omitempty"`
	ChunksWritten int `json:"chunks_written,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

// MessageStore keeps per-conversation history for the chat endpoints.
type MessageStore interface {
	ValidateChatId(ctx context.Context, id string) bool
	TrySaveChat(ctx context.Context, id string, payload ChatTurn) error
	InitNewChat(ctx context.Context, id string) error
	GetMessageHistory(ctx context.Context, chatId string) (error, []ChatTurn)
}

type ChatTurn struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources,omitempty"`
}
