package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentID(t *testing.T) {
	cases := map[string]string{
		"book.pdf":                   "book",
		"uploads/manual.pdf":         "manual",
		"report.v2.pdf":              "report.v2",
		`windows\style\path.pdf`:     "path",
		"no-extension":               "no-extension",
		"nested/dir/with spaces.pdf": "with spaces",
	}
	for path, want := range cases {
		assert.Equal(t, want, DocumentID(path), "path %q", path)
	}
}

func TestArtifactNaming(t *testing.T) {
	// Writer and reader derive locations independently; the scheme must
	// be stable.
	assert.Equal(t, "book/page_1.pdf", ArtifactObject("book", 1))
	assert.Equal(t, "book/page_12.pdf", ArtifactObject("book", 12))
	assert.Equal(t, "book/", ArtifactPrefix("book"))
}
