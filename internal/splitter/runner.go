// Package splitter runs decomposition jobs: it splits a stored
// multi-page PDF into one artifact per page and records progress in the
// status store after every page, so progress survives restarts and is
// observable while the job runs.
package splitter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/lectorhq/pagesplit/internal/models"
	"github.com/lectorhq/pagesplit/internal/pdfsplit"
	"github.com/lectorhq/pagesplit/internal/status"
	"github.com/lectorhq/pagesplit/internal/store"
)

// ErrClosed is returned by Start and Run after Close.
var ErrClosed = fmt.Errorf("splitter: runner is closed")

// Runner orchestrates decomposition jobs. It is the sole writer of the
// status store and the artifact store.
//
// There is no locking between two runs for the same document: a new
// start supersedes any in-flight run via a monotonic generation number.
// Writes from a stale generation become no-ops once a newer generation
// has started.
type Runner struct {
	source    store.BlobStore
	artifacts store.BlobStore
	status    status.Store
	trigger   *WorkflowTrigger

	mu     sync.Mutex
	jobs   map[string]uint64 // document id -> newest generation
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Runner.
type Option func(*Runner)

// WithCompletionTrigger makes the runner hand a completed document off
// to a downstream workflow.
func WithCompletionTrigger(t *WorkflowTrigger) Option {
	return func(r *Runner) { r.trigger = t }
}

// New creates a Runner reading source documents from source and writing
// split pages to artifacts.
func New(source, artifacts store.BlobStore, st status.Store, opts ...Option) *Runner {
	r := &Runner{
		source:    source,
		artifacts: artifacts,
		status:    st,
		jobs:      make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins a decomposition job for the stored document at filePath
// and returns its document id immediately; the job itself runs on a
// tracked background goroutine detached from the caller's context.
func (r *Runner) Start(ctx context.Context, filePath string) (string, error) {
	docID, gen, log, err := r.begin(ctx, filePath)
	if err != nil {
		return "", err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.process(context.WithoutCancel(ctx), log, filePath, docID, gen)
	}()
	return docID, nil
}

// Run performs a decomposition job synchronously. It is the entry point
// for event-driven deployments where the invocation must not return
// until the work is done.
func (r *Runner) Run(ctx context.Context, filePath string) (string, error) {
	docID, gen, log, err := r.begin(ctx, filePath)
	if err != nil {
		return "", err
	}
	r.wg.Add(1)
	defer r.wg.Done()
	r.process(ctx, log, filePath, docID, gen)
	return docID, nil
}

// Close stops accepting jobs and drains the ones in flight.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}

// begin validates the source, picks the next generation for the
// document, writes the initial processing record and registers the run.
func (r *Runner) begin(ctx context.Context, filePath string) (string, uint64, *slog.Logger, error) {
	ok, err := r.source.Exists(ctx, filePath)
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to check source document %s: %w", filePath, err)
	}
	if !ok {
		return "", 0, nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, filePath)
	}

	docID := models.DocumentID(filePath)

	// The next generation must beat both any in-flight run and whatever
	// a previous process persisted.
	prev, err := r.status.Read(ctx, docID)
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to read status record for %s: %w", docID, err)
	}
	gen := prev.Generation + 1

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", 0, nil, ErrClosed
	}
	if cur := r.jobs[docID]; cur >= gen {
		gen = cur + 1
	}
	r.jobs[docID] = gen
	r.mu.Unlock()

	if err := r.status.Initialize(ctx, docID, gen); err != nil {
		return "", 0, nil, fmt.Errorf("failed to initialize status record for %s: %w", docID, err)
	}

	log := slog.With("documentId", docID, "runId", uuid.NewString(), "generation", gen)
	log.Info("Decomposition job started.", "filePath", filePath)
	return docID, gen, log, nil
}

func (r *Runner) process(ctx context.Context, log *slog.Logger, filePath, docID string, gen uint64) {
	defer r.release(docID, gen)

	data, err := r.source.Read(ctx, filePath)
	if err != nil {
		r.fail(ctx, log, docID, gen, "failed to load source document", err)
		return
	}
	doc, err := pdfsplit.Load(data)
	if err != nil {
		r.fail(ctx, log, docID, gen, "failed to parse source document", err)
		return
	}

	pageCount := doc.PageCount()
	if err := r.status.SetTotalPages(ctx, docID, gen, pageCount); err != nil {
		// The persisted record lags reality until the next successful
		// write; the job itself keeps going.
		log.Error("Failed to persist total page count.", "error", err)
	}
	log.Info("Source document loaded.", "pageCount", pageCount)

	for i := 0; i < pageCount; i++ {
		if r.superseded(docID, gen) {
			log.Info("Job superseded by a newer run, stopping.", "page", i+1)
			return
		}
		r.processPage(ctx, log, doc, docID, gen, i)
	}

	if r.superseded(docID, gen) {
		log.Info("Job superseded by a newer run, skipping completion.")
		return
	}
	if err := r.status.MarkCompleted(ctx, docID, gen); err != nil {
		log.Error("Failed to mark job completed.", "error", err)
	}
	log.Info("Decomposition job completed.", "pageCount", pageCount)

	if r.trigger != nil {
		if err := r.trigger.Trigger(ctx, docID, pageCount); err != nil {
			log.Error("Failed to trigger downstream workflow.", "error", err)
		}
	}
}

// processPage extracts and persists one page. A failing page is logged
// and counted but does not abort the job.
func (r *Runner) processPage(ctx context.Context, log *slog.Logger, doc *pdfsplit.Document, docID string, gen uint64, pageIndex int) {
	pageNumber := pageIndex + 1
	data, err := doc.ExtractPage(pageIndex)
	if err != nil {
		log.Error("Failed to extract page, continuing.", "page", pageNumber, "error", err)
		r.recordPageError(ctx, log, docID, gen, pageNumber)
		return
	}
	object := models.ArtifactObject(docID, pageNumber)
	if err := r.artifacts.Write(ctx, object, data); err != nil {
		log.Error("Failed to write page artifact, continuing.", "page", pageNumber, "object", object, "error", err)
		r.recordPageError(ctx, log, docID, gen, pageNumber)
		return
	}
	if err := r.status.RecordPageDone(ctx, docID, gen, pageNumber); err != nil {
		log.Error("Failed to persist page progress.", "page", pageNumber, "error", err)
	}
}

func (r *Runner) recordPageError(ctx context.Context, log *slog.Logger, docID string, gen uint64, pageNumber int) {
	if err := r.status.RecordPageError(ctx, docID, gen, pageNumber); err != nil {
		log.Error("Failed to persist page error.", "page", pageNumber, "error", err)
	}
}

func (r *Runner) fail(ctx context.Context, log *slog.Logger, docID string, gen uint64, message string, cause error) {
	log.Error(message, "error", cause)
	if err := r.status.MarkFailed(ctx, docID, gen, fmt.Sprintf("%s: %v", message, cause)); err != nil {
		log.Error("CRITICAL: Failed to update status to failed after a processing error.", "updateError", err)
	}
}

func (r *Runner) superseded(docID string, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[docID] > gen
}

// release clears the registry entry unless a newer run owns it.
func (r *Runner) release(docID string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.jobs[docID] == gen {
		delete(r.jobs, docID)
	}
}
