package models

import "errors"

// Domain errors shared by the splitter and the resolver. The HTTP layer
// maps these onto response codes.
var (
	// ErrDocumentNotFound means the source document is absent from the
	// store.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidPage means a requested page number is outside
	// [1, totalPages].
	ErrInvalidPage = errors.New("invalid page number")

	// ErrInvalidRange means a requested page range is malformed or out
	// of bounds.
	ErrInvalidRange = errors.New("invalid page range")

	// ErrExternalDocument means the reference does not point into the
	// local document store and is handed back unresolved.
	ErrExternalDocument = errors.New("document reference is external")
)
