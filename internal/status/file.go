package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileStore keeps one JSON status record per document id under a local
// directory. Records survive process restarts; writes go through a temp
// file and rename so a crash never leaves a truncated record behind.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the status directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create status directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// path rejects ids with path separators so a crafted document id cannot
// address records outside the status directory.
func (s *FileStore) path(docID string) (string, error) {
	if docID == "" || strings.ContainsAny(docID, `/\`) || docID == ".." {
		return "", fmt.Errorf("invalid document id %q", docID)
	}
	return filepath.Join(s.dir, docID+".json"), nil
}

func (s *FileStore) Initialize(ctx context.Context, docID string, generation uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, err := s.read(docID)
	if err != nil {
		return err
	}
	if prev.Status != StateNotFound && prev.Generation > generation {
		return nil
	}
	now := time.Now().UTC()
	rec := JobStatus{
		Status:     StateProcessing,
		Generation: generation,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	return s.write(docID, rec)
}

func (s *FileStore) SetTotalPages(ctx context.Context, docID string, generation uint64, totalPages int) error {
	return s.update(docID, generation, func(rec *JobStatus) {
		rec.TotalPages = totalPages
	})
}

func (s *FileStore) RecordPageDone(ctx context.Context, docID string, generation uint64, pageNumber int) error {
	return s.update(docID, generation, func(rec *JobStatus) {
		rec.ProcessedPages = pageNumber
	})
}

func (s *FileStore) RecordPageError(ctx context.Context, docID string, generation uint64, pageNumber int) error {
	return s.update(docID, generation, func(rec *JobStatus) {
		rec.ProcessedPages = pageNumber
		rec.PageErrors++
	})
}

func (s *FileStore) MarkCompleted(ctx context.Context, docID string, generation uint64) error {
	return s.update(docID, generation, func(rec *JobStatus) {
		now := time.Now().UTC()
		rec.Status = StateCompleted
		rec.CompletedAt = &now
	})
}

func (s *FileStore) MarkFailed(ctx context.Context, docID string, generation uint64, message string) error {
	return s.update(docID, generation, func(rec *JobStatus) {
		rec.Status = StateFailed
		rec.Error = message
	})
}

func (s *FileStore) Read(ctx context.Context, docID string) (JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(docID)
}

// update performs the read-modify-write. Writes from a generation older
// than the persisted one are dropped: a newer run owns the record.
func (s *FileStore) update(docID string, generation uint64, mutate func(*JobStatus)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.read(docID)
	if err != nil {
		return err
	}
	if rec.Status == StateNotFound {
		return fmt.Errorf("no status record for document %s", docID)
	}
	if rec.Generation > generation {
		return nil
	}
	mutate(&rec)
	rec.UpdatedAt = time.Now().UTC()
	return s.write(docID, rec)
}

func (s *FileStore) read(docID string) (JobStatus, error) {
	p, err := s.path(docID)
	if err != nil {
		return JobStatus{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return NotFound(), nil
		}
		return JobStatus{}, fmt.Errorf("failed to read status record for %s: %w", docID, err)
	}
	var rec JobStatus
	if err := json.Unmarshal(data, &rec); err != nil {
		return JobStatus{}, fmt.Errorf("failed to parse status record for %s: %w", docID, err)
	}
	return rec, nil
}

func (s *FileStore) write(docID string, rec JobStatus) error {
	p, err := s.path(docID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status record for %s: %w", docID, err)
	}
	tmp, err := os.CreateTemp(s.dir, ".status-*")
	if err != nil {
		return fmt.Errorf("failed to create temp status file for %s: %w", docID, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write status record for %s: %w", docID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close status record for %s: %w", docID, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to finalize status record for %s: %w", docID, err)
	}
	return nil
}
