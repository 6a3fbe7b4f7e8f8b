package resolver

import (
	"bytes"
	"context"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lectorhq/pagesplit/internal/models"
	"github.com/lectorhq/pagesplit/internal/pdfsplit"
	"github.com/lectorhq/pagesplit/internal/splitter"
	"github.com/lectorhq/pagesplit/internal/status"
	"github.com/lectorhq/pagesplit/internal/store"
	"github.com/lectorhq/pagesplit/internal/testpdf"
)

type testEnv struct {
	resolver  *Resolver
	source    *store.FS
	artifacts *store.FS
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
	return &testEnv{
		resolver:  New(source, artifacts),
		source:    source,
		artifacts: artifacts,
		runner:    splitter.New(source, artifacts, st),
	}
}

func requireSinglePage(t *testing.T, data []byte) {
	t.Helper()
	require.NotEmpty(t, data)
	count, err := api.PageCount(bytes.NewReader(data), nil)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestResolvePageFallback(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.source.Write(ctx, "book.pdf", testpdf.MultiPage(3)))

	// No pre-split artifacts: every page comes from on-demand
	// extraction and nothing is persisted as a side effect.
	page, totalPages, err := env.resolver.ResolvePage(ctx, "book.pdf", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, totalPages)
	assert.False(t, page.PreProcessed)
	requireSinglePage(t, page.Data)

	names, err := env.artifacts.List(ctx, models.ArtifactPrefix("book"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestResolvePageCacheHit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.source.Write(ctx, "book.pdf", testpdf.MultiPage(3)))
	_, err := env.runner.Run(ctx, "book.pdf")
	require.NoError(t, err)

	page, totalPages, err := env.resolver.ResolvePage(ctx, "book.pdf", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, totalPages)
	assert.True(t, page.PreProcessed)
	assert.Equal(t, models.ArtifactObject("book", 2), page.Object)
	assert.Nil(t, page.Data)
}

func TestCacheTransparency(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.source.Write(ctx, "book.pdf", testpdf.MultiPage(3)))

	// Resolve page 1 before and after pre-splitting; both paths must
	// yield a valid single-page document for the same page.
	miss, _, err := env.resolver.ResolvePage(ctx, "book.pdf", 1)
	require.NoError(t, err)
	require.False(t, miss.PreProcessed)
	requireSinglePage(t, miss.Data)

	_, err = env.runner.Run(ctx, "book.pdf")
	require.NoError(t, err)

	hit, _, err := env.resolver.ResolvePage(ctx, "book.pdf", 1)
	require.NoError(t, err)
	require.True(t, hit.PreProcessed)
	cached, err := env.artifacts.Read(ctx, hit.Object)
	require.NoError(t, err)
	requireSinglePage(t, cached)
}

func TestResolvePageErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.source.Write(ctx, "book.pdf", testpdf.MultiPage(3)))

	t.Run("document not found", func(t *testing.T) {
		_, _, err := env.resolver.ResolvePage(ctx, "ghost.pdf", 1)
		assert.ErrorIs(t, err, models.ErrDocumentNotFound)
	})
	t.Run("page out of range", func(t *testing.T) {
		_, _, err := env.resolver.ResolvePage(ctx, "book.pdf", 5)
		assert.ErrorIs(t, err, models.ErrInvalidPage)
	})
	t.Run("page zero", func(t *testing.T) {
		_, _, err := env.resolver.ResolvePage(ctx, "book.pdf", 0)
		assert.ErrorIs(t, err, models.ErrInvalidPage)
	})
	t.Run("external reference", func(t *testing.T) {
		_, _, err := env.resolver.ResolvePage(ctx, "https://example.com/book.pdf", 1)
		assert.ErrorIs(t, err, models.ErrExternalDocument)
	})
}

func TestResolveRangePartition(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.source.Write(ctx, "book.pdf", testpdf.MultiPage(3)))

	// Only page 1 is pre-split.
	doc, err := pdfsplit.Load(testpdf.MultiPage(3))
	require.NoError(t, err)
	pageOne, err := doc.ExtractPage(0)
	require.NoError(t, err)
	require.NoError(t, env.artifacts.Write(ctx, models.ArtifactObject("book", 1), pageOne))

	pages, totalPages, err := env.resolver.ResolveRange(ctx, "book.pdf", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, totalPages)
	require.Len(t, pages, 2)

	assert.Equal(t, 1, pages[0].PageNumber)
	assert.True(t, pages[0].PreProcessed)
	assert.Equal(t, models.ArtifactObject("book", 1), pages[0].Object)

	assert.Equal(t, 2, pages[1].PageNumber)
	assert.False(t, pages[1].PreProcessed)
	requireSinglePage(t, pages[1].Data)
}

func TestResolveRangeComplete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.source.Write(ctx, "book.pdf", testpdf.MultiPage(5)))

	pages, _, err := env.resolver.ResolveRange(ctx, "book.pdf", 2, 4)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, i+2, p.PageNumber, "pages must be ascending with no gaps")
	}
}

func TestResolveRangeInvalid(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.source.Write(ctx, "book.pdf", testpdf.MultiPage(3)))

	cases := []struct{ from, to int }{
		{0, 2},
		{1, 4},
		{3, 2},
	}
	for _, c := range cases {
		_, _, err := env.resolver.ResolveRange(ctx, "book.pdf", c.from, c.to)
		assert.ErrorIs(t, err, models.ErrInvalidRange, "range [%d, %d]", c.from, c.to)
	}
}
