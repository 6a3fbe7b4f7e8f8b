// Package pdfsplit wraps the PDF parsing capability: load a multi-page
// document, report its page count, and copy single pages out as
// standalone PDFs. Extraction is a pure transform of the loaded
// document; nothing here touches the document store.
package pdfsplit

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ExtractionError reports a failure to copy a specific page out of a
// document.
type ExtractionError struct {
	Page int // 1-based
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract page %d: %v", e.Page, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// PageArtifact is one extracted single-page PDF.
type PageArtifact struct {
	PageNumber int // 1-based
	Data       []byte
}

// Document is a parsed, optimized in-memory PDF ready for page
// extraction.
type Document struct {
	// pdfcpu contexts are not safe for concurrent use; extraction calls
	// are serialized so callers may share a Document across goroutines.
	mu  sync.Mutex
	ctx *model.Context
}

// Load parses and optimizes a PDF from raw bytes. Validation is relaxed
// to accept the slightly malformed files real uploads tend to be.
func Load(data []byte) (*Document, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}
	return &Document{ctx: ctx}, nil
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// ExtractPage copies the page at the given 0-based index into a new
// single-page PDF and returns its serialized bytes. The output is a
// pure function of the document and the index, so repeated calls yield
// identical bytes.
func (d *Document) ExtractPage(pageIndex int) ([]byte, error) {
	if pageIndex < 0 || pageIndex >= d.PageCount() {
		return nil, &ExtractionError{
			Page: pageIndex + 1,
			Err:  fmt.Errorf("page index %d out of range [0, %d)", pageIndex, d.PageCount()),
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	r, err := api.ExtractPage(d.ctx, pageIndex+1)
	if err != nil {
		return nil, &ExtractionError{Page: pageIndex + 1, Err: err}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ExtractionError{Page: pageIndex + 1, Err: err}
	}
	return data, nil
}

// ExtractRange copies every page in the inclusive 0-based index range
// into per-page artifacts, returned in ascending page-number order. A
// failing page fails the whole range; partial results are not returned.
func (d *Document) ExtractRange(fromIndex, toIndex int) ([]PageArtifact, error) {
	if fromIndex > toIndex {
		return nil, fmt.Errorf("invalid page range [%d, %d]", fromIndex, toIndex)
	}
	artifacts := make([]PageArtifact, 0, toIndex-fromIndex+1)
	for i := fromIndex; i <= toIndex; i++ {
		data, err := d.ExtractPage(i)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, PageArtifact{PageNumber: i + 1, Data: data})
	}
	return artifacts, nil
}
