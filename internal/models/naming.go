package models

import (
	"fmt"
	"path"
	"strings"
)

// DocumentID derives the stable identifier for a stored document from
// its path: the filename stem. The splitter and the resolver both
// derive names through here so writer and reader agree on artifact
// locations without coordination.
func DocumentID(filePath string) string {
	base := path.Base(strings.ReplaceAll(filePath, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// ArtifactObject is the object name of one split page within the
// split-pages store, keyed by document id and 1-based page number.
func ArtifactObject(docID string, pageNumber int) string {
	return fmt.Sprintf("%s/page_%d.pdf", docID, pageNumber)
}

// ArtifactPrefix is the object-name prefix holding all split pages of
// one document.
func ArtifactPrefix(docID string) string {
	return docID + "/"
}
