package models

// These structs define the JSON payloads exchanged with the HTTP
// boundary of the page-splitting service.

// ProcessRequest triggers decomposition of a stored document.
type ProcessRequest struct {
	FilePath string `json:"filePath"`
}

// ProcessResponse acknowledges a trigger; processing continues
// asynchronously.
type ProcessResponse struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"documentId"`
	Message    string `json:"message"`
}

// PageInfo describes one resolved page of a range request.
// IsPreProcessed distinguishes cache hits (stable artifact URL) from
// pages extracted on demand.
type PageInfo struct {
	PageNumber     int    `json:"pageNumber"`
	URL            string `json:"url"`
	IsPreProcessed bool   `json:"isPreProcessed"`
}

// PageRangeResponse is the payload of a range fetch, pages sorted
// ascending by page number.
type PageRangeResponse struct {
	Pages      []PageInfo `json:"pages"`
	TotalPages int        `json:"totalPages"`
	FromPage   int        `json:"fromPage"`
	ToPage     int        `json:"toPage"`
}

// ExternalDocumentResponse is returned when the requested document is
// not held in the local store; the reference is handed back unresolved.
type ExternalDocumentResponse struct {
	External bool   `json:"external"`
	URL      string `json:"url"`
}

// ErrorResponse is the generic failure payload.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// StatusNotFoundResponse is returned when no job was ever started for a
// document id.
type StatusNotFoundResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
