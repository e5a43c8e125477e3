package models

// Document is a single search hit as returned by the search engine. The
// schema of indexed documents is owned by the store models; hits come back as
// loose maps because the engine may crop/highlight fields.
type Document map[string]any

// SearchResult is the normalized envelope every gateway call returns. A
// degraded search (provider down, timeout, bad response) is represented by a
// zero-valued envelope, never by an error.
type SearchResult struct {
	Hits              []Document     `json:"hits"`
	EstimatedTotal    int64          `json:"estimated_total"`
	ProcessingTimeMs  int64          `json:"processing_time_ms"`
	FacetDistribution map[string]any `json:"facet_distribution,omitempty"`
	Query             string         `json:"query"`
	Degraded          bool           `json:"degraded"`
}

// EmptySearchResult is the degraded envelope used whenever the provider
// cannot serve a query.
func EmptySearchResult(query string) *SearchResult {
	return &SearchResult{
		Hits:             []Document{},
		EstimatedTotal:   0,
		ProcessingTimeMs: 0,
		Query:            query,
		Degraded:         true,
	}
}

// IndexStats summarizes one search index.
type IndexStats struct {
	NumberOfDocuments int64            `json:"number_of_documents"`
	IsIndexing        bool             `json:"is_indexing"`
	FieldDistribution map[string]int64 `json:"field_distribution,omitempty"`
}
