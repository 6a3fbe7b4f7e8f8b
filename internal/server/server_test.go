package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectorhq/pagesplit/internal/models"
	"github.com/lectorhq/pagesplit/internal/resolver"
	"github.com/lectorhq/pagesplit/internal/splitter"
	"github.com/lectorhq/pagesplit/internal/status"
	"github.com/lectorhq/pagesplit/internal/store"
	"github.com/lectorhq/pagesplit/internal/testpdf"
)

type testEnv struct {
	handler   http.Handler
	source    *store.FS
	artifacts *store.FS
	status    *status.FileStore
	runner    *splitter.Runner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	source, err := store.NewFS(t.TempDir())
	require.NoError(t, err)
	artifacts, err := store.NewFS(t.TempDir())
	require.NoError(t, err)
	st, err := status.NewFileStore(t.TempDir())
	require.NoError(t, err)
	runner := splitter.New(source, artifacts, st)
	srv := New(runner, resolver.New(source, artifacts), st, artifacts)
	return &testEnv{
		handler:   srv.Handler(),
		source:    source,
		artifacts: artifacts,
		status:    st,
		runner:    runner,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestProcessEndpoint(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.source.Write(context.Background(), "book.pdf", testpdf.MultiPage(3)))

	t.Run("missing path", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/pdf/process", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown document", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/pdf/process", `{"filePath":"ghost.pdf"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("starts processing", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/pdf/process", `{"filePath":"book.pdf"}`)
		require.Equal(t, http.StatusAccepted, rec.Code)
		resp := decode[models.ProcessResponse](t, rec)
		assert.True(t, resp.Success)
		assert.Equal(t, "book", resp.DocumentID)

		require.Eventually(t, func() bool {
			r, err := env.status.Read(context.Background(), "book")
			return err == nil && r.Status == status.StateCompleted
		}, 10*time.Second, 10*time.Millisecond)
	})
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.source.Write(ctx, "book.pdf", testpdf.MultiPage(2)))

	t.Run("not found", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/pdf/status/ghost", "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[models.StatusNotFoundResponse](t, rec)
		assert.Equal(t, status.StateNotFound, resp.Status)
		assert.NotEmpty(t, resp.Message)
	})

	t.Run("completed job", func(t *testing.T) {
		_, err := env.runner.Run(ctx, "book.pdf")
		require.NoError(t, err)

		rec := env.do(t, http.MethodGet, "/api/pdf/status/book", "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[status.JobStatus](t, rec)
		assert.Equal(t, status.StateCompleted, resp.Status)
		assert.Equal(t, 2, resp.TotalPages)
		assert.Equal(t, 2, resp.ProcessedPages)
	})
}

func TestPageEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.source.Write(ctx, "book.pdf", testpdf.MultiPage(3)))

	t.Run("missing file parameter", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/pdf/page?page=1", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad page parameter", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/pdf/page?file=book.pdf&page=two", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown document", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/pdf/page?file=ghost.pdf&page=1", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("page out of range", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/pdf/page?file=book.pdf&page=5", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cache miss served inline", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/pdf/page?file=book.pdf&page=2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Equal(t, cacheControlImmutable, rec.Header().Get("Cache-Control"))
		count, err := api.PageCount(bytes.NewReader(rec.Body.Bytes()), nil)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("cache hit redirects to artifact", func(t *testing.T) {
		_, err := env.runner.Run(ctx, "book.pdf")
		require.NoError(t, err)

		rec := env.do(t, http.MethodGet, "/api/pdf/page?file=book.pdf&page=2", "")
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/files/book/page_2.pdf", rec.Header().Get("Location"))
	})

	t.Run("external reference returned unresolved", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/pdf/page?file="+"https%3A%2F%2Fexample.com%2Fbook.pdf"+"&page=1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[models.ExternalDocumentResponse](t, rec)
		assert.True(t, resp.External)
		assert.Equal(t, "https://example.com/book.pdf", resp.URL)
	})
}

func TestPageRangeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.source.Write(ctx, "book.pdf", testpdf.MultiPage(3)))

	// Pre-split page 1 only.
	page, _, err := resolver.New(env.source, env.artifacts).ResolvePage(ctx, "book.pdf", 1)
	require.NoError(t, err)
	require.NoError(t, env.artifacts.Write(ctx, models.ArtifactObject("book", 1), page.Data))

	t.Run("invalid ranges", func(t *testing.T) {
		for _, q := range []string{"from=0&to=2", "from=1&to=4", "from=3&to=2", "from=a&to=2"} {
			rec := env.do(t, http.MethodGet, "/api/pdf/pages?file=book.pdf&"+q, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, "query %s", q)
		}
	})

	t.Run("partitioned range", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/pdf/pages?file=book.pdf&from=1&to=2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[models.PageRangeResponse](t, rec)

		assert.Equal(t, 3, resp.TotalPages)
		assert.Equal(t, 1, resp.FromPage)
		assert.Equal(t, 2, resp.ToPage)
		require.Len(t, resp.Pages, 2)

		assert.Equal(t, 1, resp.Pages[0].PageNumber)
		assert.True(t, resp.Pages[0].IsPreProcessed)
		assert.Equal(t, "/files/book/page_1.pdf", resp.Pages[0].URL)

		assert.Equal(t, 2, resp.Pages[1].PageNumber)
		assert.False(t, resp.Pages[1].IsPreProcessed)
		assert.Equal(t, fmt.Sprintf("/api/pdf/page?file=%s&page=2", "book.pdf"), resp.Pages[1].URL)
	})
}

func TestArtifactEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.source.Write(ctx, "book.pdf", testpdf.MultiPage(2)))
	_, err := env.runner.Run(ctx, "book.pdf")
	require.NoError(t, err)

	t.Run("serves immutable artifact", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/files/book/page_1.pdf", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Equal(t, cacheControlImmutable, rec.Header().Get("Cache-Control"))
		count, err := api.PageCount(bytes.NewReader(rec.Body.Bytes()), nil)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("missing artifact", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/files/book/page_9.pdf", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
