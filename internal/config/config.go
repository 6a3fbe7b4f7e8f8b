package config

import (
	"fmt"
	"os"
)

// Backend names accepted for the blob and status stores.
const (
	BlobBackendFS  = "fs"
	BlobBackendGCS = "gcs"

	StatusBackendFile      = "file"
	StatusBackendFirestore = "firestore"
)

// Config holds all runtime settings for the page-splitting service,
// read from the environment.
type Config struct {
	ListenAddr string

	// DataDir is the root of the local document store. Source PDFs live
	// directly under it, split pages under DataDir/pages, status records
	// under DataDir/status.
	DataDir string

	BlobBackend   string
	StatusBackend string

	// GCS / Firestore settings, required only for the cloud backends.
	ProjectID           string
	SourceBucket        string
	SplitPagesBucket    string
	FirestoreCollection string

	// Optional downstream hand-off: when WorkflowID is set, a completed
	// job triggers a Cloud Workflows execution with the document id and
	// page count.
	WorkflowID       string
	WorkflowLocation string
}

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Load reads configuration from the environment and validates the
// combination of backends.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:          GetEnv("LISTEN_ADDR", ":8080"),
		DataDir:             GetEnv("DATA_DIR", "data"),
		BlobBackend:         GetEnv("BLOB_BACKEND", BlobBackendFS),
		StatusBackend:       GetEnv("STATUS_BACKEND", StatusBackendFile),
		ProjectID:           GetEnv("PROJECT_ID", ""),
		SourceBucket:        GetEnv("SOURCE_BUCKET", ""),
		SplitPagesBucket:    GetEnv("SPLIT_PAGES_BUCKET", ""),
		FirestoreCollection: GetEnv("FIRESTORE_COLLECTION", "documents"),
		WorkflowID:          GetEnv("WORKFLOW_ID", ""),
		WorkflowLocation:    GetEnv("WORKFLOW_LOCATION", "us-central1"),
	}

	switch cfg.BlobBackend {
	case BlobBackendFS:
	case BlobBackendGCS:
		if cfg.SourceBucket == "" {
			return nil, fmt.Errorf("SOURCE_BUCKET environment variable must be set for the gcs backend")
		}
		if cfg.SplitPagesBucket == "" {
			return nil, fmt.Errorf("SPLIT_PAGES_BUCKET environment variable must be set for the gcs backend")
		}
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}

	switch cfg.StatusBackend {
	case StatusBackendFile:
	case StatusBackendFirestore:
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("PROJECT_ID environment variable must be set for the firestore backend")
		}
	default:
		return nil, fmt.Errorf("unknown status backend %q", cfg.StatusBackend)
	}

	if cfg.WorkflowID != "" && cfg.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set when WORKFLOW_ID is configured")
	}

	return cfg, nil
}
