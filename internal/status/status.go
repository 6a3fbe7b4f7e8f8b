// Package status tracks decomposition jobs through a durable record per
// document id. Every mutation is a read-modify-write against the
// persisted record so that a crash mid-job leaves the last successfully
// written state queryable.
package status

import (
	"context"
	"time"
)

// Job states. StateNotFound is a read-side sentinel, never persisted.
const (
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
	StateNotFound   = "not_found"
)

// JobStatus is the durable record of one decomposition job.
//
// ProcessedPages reflects the last page number attempted, not
// necessarily the count of pages written; PageErrors counts per-page
// failures so callers can tell a clean run from a degraded one without
// a new terminal state.
type JobStatus struct {
	Status         string     `json:"status" firestore:"status"`
	TotalPages     int        `json:"totalPages" firestore:"totalPages"`
	ProcessedPages int        `json:"processedPages" firestore:"processedPages"`
	PageErrors     int        `json:"pageErrors" firestore:"pageErrors"`
	Generation     uint64     `json:"generation" firestore:"generation"`
	StartedAt      time.Time  `json:"startedAt" firestore:"startedAt"`
	UpdatedAt      time.Time  `json:"updatedAt" firestore:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty" firestore:"completedAt,omitempty"`
	Error          string     `json:"error,omitempty" firestore:"error,omitempty"`
}

// NotFound is the sentinel record returned when no job was ever started
// for a document.
func NotFound() JobStatus {
	return JobStatus{Status: StateNotFound}
}

// Store persists JobStatus records keyed by document id.
//
// Every mutation carries the generation of the job run performing it
// and becomes a no-op once a newer generation has initialized the
// record, so a superseded run can never clobber its successor's state.
// Generations are monotonic per document, so a new start always wins:
// its Initialize resets the record regardless of the previous run's
// state.
type Store interface {
	Initialize(ctx context.Context, docID string, generation uint64) error
	SetTotalPages(ctx context.Context, docID string, generation uint64, totalPages int) error
	RecordPageDone(ctx context.Context, docID string, generation uint64, pageNumber int) error
	RecordPageError(ctx context.Context, docID string, generation uint64, pageNumber int) error
	MarkCompleted(ctx context.Context, docID string, generation uint64) error
	MarkFailed(ctx context.Context, docID string, generation uint64, message string) error

	// Read returns the current record, or the NotFound sentinel when no
	// record exists. The sentinel is not an error.
	Read(ctx context.Context, docID string) (JobStatus, error)
}
