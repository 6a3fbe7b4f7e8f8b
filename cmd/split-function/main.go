// Cloud Functions deployment of the splitter: a storage upload event
// triggers decomposition of the uploaded document. The invocation stays
// synchronous so the runtime does not reap the job mid-split; progress
// is still observable through the status record while it runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/lectorhq/pagesplit/internal/config"
	"github.com/lectorhq/pagesplit/internal/gcp"
	"github.com/lectorhq/pagesplit/internal/splitter"
	"github.com/lectorhq/pagesplit/internal/status"
	"github.com/lectorhq/pagesplit/internal/store"
)

var (
	runnerInstance *splitter.Runner
	sourceBucket   string
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("SplitDocument", splitDocument)
}

// main is required by the Go Functions Framework.
func main() {}

// gcsEvent is the payload of a storage object-finalized event.
type gcsEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func splitDocument(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		runnerInstance, initErr = newRunner(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization.", "error", initErr)
		return initErr
	}

	var ev gcsEvent
	if err := json.Unmarshal(e.Data(), &ev); err != nil {
		slog.Error("Failed to unmarshal event data.", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	if ev.Bucket != sourceBucket {
		slog.Warn("Ignoring event for unexpected bucket.", "bucket", ev.Bucket, "object", ev.Name)
		return nil
	}

	docID, err := runnerInstance.Run(ctx, ev.Name)
	if err != nil {
		slog.Error("Decomposition job failed to start.", "object", ev.Name, "error", err)
		return err
	}
	slog.Info("Decomposition job finished.", "documentId", docID)
	return nil
}

// requireCloudBackends rejects local backends: function instances are
// ephemeral, so blobs must live in GCS and status records in Firestore
// to survive across invocations.
func requireCloudBackends(cfg *config.Config) error {
	if cfg.BlobBackend != config.BlobBackendGCS {
		return fmt.Errorf("the split function requires BLOB_BACKEND=gcs")
	}
	if cfg.StatusBackend != config.StatusBackendFirestore {
		return fmt.Errorf("the split function requires STATUS_BACKEND=firestore")
	}
	return nil
}

func newRunner(ctx context.Context) (*splitter.Runner, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := requireCloudBackends(cfg); err != nil {
		return nil, err
	}
	sourceBucket = cfg.SourceBucket

	storageClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, err
	}
	source := store.NewGCS(storageClient, cfg.SourceBucket)
	artifacts := store.NewGCS(storageClient, cfg.SplitPagesBucket)

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	statusStore := status.NewFirestoreStore(firestoreClient, cfg.FirestoreCollection)

	var opts []splitter.Option
	if cfg.WorkflowID != "" {
		execClient, err := gcp.NewExecutionsClient(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, splitter.WithCompletionTrigger(
			splitter.NewWorkflowTrigger(execClient, cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)))
	}

	slog.Info("Split function initialized.", "sourceBucket", cfg.SourceBucket, "splitPagesBucket", cfg.SplitPagesBucket)
	return splitter.New(source, artifacts, statusStore, opts...), nil
}
