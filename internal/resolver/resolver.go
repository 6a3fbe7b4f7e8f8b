// Package resolver serves individual pages of a stored document. It
// prefers the pre-split artifacts produced by the job runner and falls
// back to on-demand extraction for pages that were never materialized;
// fallback pages are returned inline and never persisted, so the
// resolver holds no locks against a concurrently running job.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/lectorhq/pagesplit/internal/models"
	"github.com/lectorhq/pagesplit/internal/pdfsplit"
	"github.com/lectorhq/pagesplit/internal/store"
)

// ResolvedPage is one page of a document, either a reference to a
// pre-split artifact or bytes extracted on demand.
type ResolvedPage struct {
	PageNumber   int
	PreProcessed bool

	// Object names the artifact in the split-pages store when
	// PreProcessed; Data carries the extracted page otherwise.
	Object string
	Data   []byte
}

// Resolver reads source documents and pre-split artifacts. It never
// writes either.
type Resolver struct {
	source    store.BlobStore
	artifacts store.BlobStore
}

func New(source, artifacts store.BlobStore) *Resolver {
	return &Resolver{source: source, artifacts: artifacts}
}

// ResolvePage returns the given 1-based page of the stored document at
// filePath, from cache when a pre-split artifact exists and extracted
// on the spot otherwise. It also returns the document's page count.
func (r *Resolver) ResolvePage(ctx context.Context, filePath string, pageNumber int) (ResolvedPage, int, error) {
	doc, totalPages, err := r.load(ctx, filePath)
	if err != nil {
		return ResolvedPage{}, 0, err
	}
	if pageNumber < 1 || pageNumber > totalPages {
		return ResolvedPage{}, totalPages, fmt.Errorf("%w: %d is outside [1, %d]", models.ErrInvalidPage, pageNumber, totalPages)
	}
	page, err := r.resolve(ctx, doc, models.DocumentID(filePath), pageNumber)
	if err != nil {
		return ResolvedPage{}, totalPages, err
	}
	return page, totalPages, nil
}

// ResolveRange returns the inclusive 1-based page range [fromPage,
// toPage], sorted ascending, partitioned into cache hits and on-demand
// extractions. It also returns the document's page count.
func (r *Resolver) ResolveRange(ctx context.Context, filePath string, fromPage, toPage int) ([]ResolvedPage, int, error) {
	doc, totalPages, err := r.load(ctx, filePath)
	if err != nil {
		return nil, 0, err
	}
	if fromPage < 1 || toPage > totalPages || fromPage > toPage {
		return nil, totalPages, fmt.Errorf("%w: [%d, %d] is outside [1, %d]", models.ErrInvalidRange, fromPage, toPage, totalPages)
	}

	docID := models.DocumentID(filePath)

	// Cache-hit checks fan out; they are independent reads and the GCS
	// backend pays a round trip per page.
	cached := make([]bool, toPage-fromPage+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for p := fromPage; p <= toPage; p++ {
		g.Go(func() error {
			ok, err := r.artifacts.Exists(gctx, models.ArtifactObject(docID, p))
			if err != nil {
				return fmt.Errorf("page %d: %w", p, err)
			}
			cached[p-fromPage] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, totalPages, err
	}

	pages := make([]ResolvedPage, 0, toPage-fromPage+1)
	for p := fromPage; p <= toPage; p++ {
		if cached[p-fromPage] {
			pages = append(pages, ResolvedPage{
				PageNumber:   p,
				PreProcessed: true,
				Object:       models.ArtifactObject(docID, p),
			})
			continue
		}
		data, err := doc.ExtractPage(p - 1)
		if err != nil {
			return nil, totalPages, err
		}
		pages = append(pages, ResolvedPage{PageNumber: p, Data: data})
	}
	return pages, totalPages, nil
}

// load rejects external references, reads the source document from the
// store and parses it.
func (r *Resolver) load(ctx context.Context, filePath string) (*pdfsplit.Document, int, error) {
	if isExternal(filePath) {
		return nil, 0, fmt.Errorf("%w: %s", models.ErrExternalDocument, filePath)
	}
	data, err := r.source.Read(ctx, filePath)
	if err != nil {
		if errors.Is(err, store.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, filePath)
		}
		return nil, 0, err
	}
	doc, err := pdfsplit.Load(data)
	if err != nil {
		return nil, 0, err
	}
	return doc, doc.PageCount(), nil
}

// resolve serves one validated page, preferring the pre-split artifact.
func (r *Resolver) resolve(ctx context.Context, doc *pdfsplit.Document, docID string, pageNumber int) (ResolvedPage, error) {
	object := models.ArtifactObject(docID, pageNumber)
	ok, err := r.artifacts.Exists(ctx, object)
	if err != nil {
		return ResolvedPage{}, fmt.Errorf("failed to check artifact %s: %w", object, err)
	}
	if ok {
		return ResolvedPage{PageNumber: pageNumber, PreProcessed: true, Object: object}, nil
	}
	data, err := doc.ExtractPage(pageNumber - 1)
	if err != nil {
		return ResolvedPage{}, err
	}
	return ResolvedPage{PageNumber: pageNumber, Data: data}, nil
}

func isExternal(filePath string) bool {
	u, err := url.Parse(filePath)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
