// Package server exposes the page-splitting service over HTTP: trigger
// decomposition, poll job status, and fetch single pages or ranges.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lectorhq/pagesplit/internal/resolver"
	"github.com/lectorhq/pagesplit/internal/splitter"
	"github.com/lectorhq/pagesplit/internal/status"
	"github.com/lectorhq/pagesplit/internal/store"
)

// Split pages never change once written, so both artifact responses and
// on-demand extractions are served with a long-lived cache directive.
const cacheControlImmutable = "public, max-age=31536000, immutable"

// Server wires the HTTP boundary to the runner, resolver and stores.
type Server struct {
	runner    *splitter.Runner
	resolver  *resolver.Resolver
	status    status.Store
	artifacts store.BlobStore
}

func New(runner *splitter.Runner, res *resolver.Resolver, st status.Store, artifacts store.BlobStore) *Server {
	return &Server{
		runner:    runner,
		resolver:  res,
		status:    st,
		artifacts: artifacts,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/pdf/process", s.handleProcess)
	mux.HandleFunc("GET /api/pdf/status/{documentId}", s.handleStatus)
	mux.HandleFunc("GET /api/pdf/page", s.handlePage)
	mux.HandleFunc("GET /api/pdf/pages", s.handlePageRange)
	mux.HandleFunc("GET /files/{documentId}/{file}", s.handleArtifact)
	return mux
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response.", "error", err)
	}
}
