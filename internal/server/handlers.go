package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lectorhq/pagesplit/internal/models"
	"github.com/lectorhq/pagesplit/internal/pdfsplit"
	"github.com/lectorhq/pagesplit/internal/splitter"
	"github.com/lectorhq/pagesplit/internal/status"
	"github.com/lectorhq/pagesplit/internal/store"
)

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req models.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "could not parse request body")
		return
	}
	if req.FilePath == "" {
		writeError(w, http.StatusBadRequest, "filePath is required")
		return
	}

	docID, err := s.runner.Start(r.Context(), req.FilePath)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDocumentNotFound):
			writeError(w, http.StatusNotFound, "document not found")
		case errors.Is(err, splitter.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, "service is shutting down")
		default:
			slog.Error("Failed to start decomposition job.", "filePath", req.FilePath, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to start processing")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, models.ProcessResponse{
		Success:    true,
		DocumentID: docID,
		Message:    "processing started",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("documentId")
	rec, err := s.status.Read(r.Context(), docID)
	if err != nil {
		slog.Error("Failed to read status record.", "documentId", docID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read status")
		return
	}
	if rec.Status == status.StateNotFound {
		writeJSON(w, http.StatusOK, models.StatusNotFoundResponse{
			Status:  status.StateNotFound,
			Message: fmt.Sprintf("no processing job found for document %s", docID),
		})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	filePath := r.URL.Query().Get("file")
	if filePath == "" {
		writeError(w, http.StatusBadRequest, "file parameter is required")
		return
	}
	pageNumber, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "page parameter must be an integer")
		return
	}

	page, _, err := s.resolver.ResolvePage(r.Context(), filePath, pageNumber)
	if err != nil {
		s.writeResolveError(w, filePath, err)
		return
	}

	if page.PreProcessed {
		w.Header().Set("Cache-Control", cacheControlImmutable)
		http.Redirect(w, r, artifactURL(page.Object), http.StatusFound)
		return
	}
	servePDF(w, page.Data)
}

func (s *Server) handlePageRange(w http.ResponseWriter, r *http.Request) {
	filePath := r.URL.Query().Get("file")
	if filePath == "" {
		writeError(w, http.StatusBadRequest, "file parameter is required")
		return
	}
	fromPage, err := strconv.Atoi(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from parameter must be an integer")
		return
	}
	toPage, err := strconv.Atoi(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to parameter must be an integer")
		return
	}

	pages, totalPages, err := s.resolver.ResolveRange(r.Context(), filePath, fromPage, toPage)
	if err != nil {
		s.writeResolveError(w, filePath, err)
		return
	}

	resp := models.PageRangeResponse{
		Pages:      make([]models.PageInfo, 0, len(pages)),
		TotalPages: totalPages,
		FromPage:   fromPage,
		ToPage:     toPage,
	}
	for _, p := range pages {
		info := models.PageInfo{
			PageNumber:     p.PageNumber,
			IsPreProcessed: p.PreProcessed,
		}
		if p.PreProcessed {
			info.URL = artifactURL(p.Object)
		} else {
			// Not persisted anywhere; the single-page endpoint re-extracts
			// on demand.
			info.URL = fmt.Sprintf("/api/pdf/page?file=%s&page=%d", url.QueryEscape(filePath), p.PageNumber)
		}
		resp.Pages = append(resp.Pages, info)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	object := r.PathValue("documentId") + "/" + r.PathValue("file")
	data, err := s.artifacts.Read(r.Context(), object)
	if err != nil {
		if errors.Is(err, store.ErrNotExist) {
			writeError(w, http.StatusNotFound, "page not found")
			return
		}
		slog.Error("Failed to read page artifact.", "object", object, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read page")
		return
	}
	servePDF(w, data)
}

// writeResolveError maps resolver errors onto response codes. Internal
// extraction failures surface as a generic failure only.
func (s *Server) writeResolveError(w http.ResponseWriter, filePath string, err error) {
	var extractionErr *pdfsplit.ExtractionError
	switch {
	case errors.Is(err, models.ErrExternalDocument):
		writeJSON(w, http.StatusOK, models.ExternalDocumentResponse{External: true, URL: filePath})
	case errors.Is(err, models.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, models.ErrInvalidPage):
		writeError(w, http.StatusBadRequest, "page number out of range")
	case errors.Is(err, models.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid page range")
	case errors.As(err, &extractionErr):
		slog.Error("On-demand extraction failed.", "file", filePath, "page", extractionErr.Page, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to extract page")
	default:
		slog.Error("Failed to resolve page request.", "file", filePath, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve page")
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, models.ErrorResponse{Error: message})
}

func servePDF(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Cache-Control", cacheControlImmutable)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write page response.", "error", err)
	}
}

func artifactURL(object string) string {
	return "/files/" + object
}
