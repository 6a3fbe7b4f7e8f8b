package status

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// FirestoreStore keeps one status document per document id in a
// Firestore collection, for deployments where the splitter runs as a
// cloud function and a local status directory is not durable.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) doc(docID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(docID)
}

func (s *FirestoreStore) Initialize(ctx context.Context, docID string, generation uint64) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(s.doc(docID))
		if err == nil {
			var prev JobStatus
			if err := snap.DataTo(&prev); err != nil {
				return err
			}
			if prev.Generation > generation {
				return nil
			}
		} else if grpcstatus.Code(err) != codes.NotFound {
			return err
		}
		now := time.Now().UTC()
		return tx.Set(s.doc(docID), JobStatus{
			Status:     StateProcessing,
			Generation: generation,
			StartedAt:  now,
			UpdatedAt:  now,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to initialize status record for %s: %w", docID, err)
	}
	return nil
}

func (s *FirestoreStore) SetTotalPages(ctx context.Context, docID string, generation uint64, totalPages int) error {
	return s.update(ctx, docID, generation, func(rec *JobStatus) {
		rec.TotalPages = totalPages
	})
}

func (s *FirestoreStore) RecordPageDone(ctx context.Context, docID string, generation uint64, pageNumber int) error {
	return s.update(ctx, docID, generation, func(rec *JobStatus) {
		rec.ProcessedPages = pageNumber
	})
}

func (s *FirestoreStore) RecordPageError(ctx context.Context, docID string, generation uint64, pageNumber int) error {
	return s.update(ctx, docID, generation, func(rec *JobStatus) {
		rec.ProcessedPages = pageNumber
		rec.PageErrors++
	})
}

func (s *FirestoreStore) MarkCompleted(ctx context.Context, docID string, generation uint64) error {
	return s.update(ctx, docID, generation, func(rec *JobStatus) {
		now := time.Now().UTC()
		rec.Status = StateCompleted
		rec.CompletedAt = &now
	})
}

func (s *FirestoreStore) MarkFailed(ctx context.Context, docID string, generation uint64, message string) error {
	return s.update(ctx, docID, generation, func(rec *JobStatus) {
		rec.Status = StateFailed
		rec.Error = message
	})
}

func (s *FirestoreStore) Read(ctx context.Context, docID string) (JobStatus, error) {
	snap, err := s.doc(docID).Get(ctx)
	if err != nil {
		if grpcstatus.Code(err) == codes.NotFound {
			return NotFound(), nil
		}
		return JobStatus{}, fmt.Errorf("failed to read status record for %s: %w", docID, err)
	}
	var rec JobStatus
	if err := snap.DataTo(&rec); err != nil {
		return JobStatus{}, fmt.Errorf("failed to parse status record for %s: %w", docID, err)
	}
	return rec, nil
}

// update runs the read-modify-write in a transaction so that the
// generation check and the write are atomic across processes.
func (s *FirestoreStore) update(ctx context.Context, docID string, generation uint64, mutate func(*JobStatus)) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(s.doc(docID))
		if err != nil {
			if grpcstatus.Code(err) == codes.NotFound {
				return fmt.Errorf("no status record for document %s", docID)
			}
			return err
		}
		var rec JobStatus
		if err := snap.DataTo(&rec); err != nil {
			return err
		}
		if rec.Generation > generation {
			return nil
		}
		mutate(&rec)
		rec.UpdatedAt = time.Now().UTC()
		return tx.Set(s.doc(docID), rec)
	})
	if err != nil {
		return fmt.Errorf("failed to update status record for %s: %w", docID, err)
	}
	return nil
}
