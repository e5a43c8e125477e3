package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/flowmarket/marketplace/internal/observability"
	"github.com/flowmarket/marketplace/internal/search"
)

const maxSuggestionPrefixLen = 100

// Search answers marketplace queries against Meilisearch. The gateway never
// propagates backend failures: an unreachable index yields an empty result
// set with degraded=true, and the HTTP status stays 200.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	query := q.Get("q")
	index := h.resolveIndex(q.Get("index"))

	filter, err := h.filterFromQuery(q)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	params := search.Params{
		Query:  query,
		Filter: filter,
		Limit:  int64(h.limitFromQuery(q.Get("limit"))),
		Offset: int64(intFromQuery(q.Get("offset"))),
		Facets: []string{"category", "tags"},
	}
	if sort := q.Get("sort"); sort != "" {
		params.Sort = []string{sort}
	}
	if index == h.search.FreelancersIndex() {
		params.Facets = []string{"skills", "expertise_level"}
	}

	start := time.Now()
	result := h.search.Search(ctx, index, params)
	duration := time.Since(start)

	h.slow.Intercept(ctx, query, index, "search", duration, result.EstimatedTotal, result.Degraded)

	status := "success"
	if result.Degraded {
		status = "degraded"
	}
	observability.SearchRequestsTotal.WithLabelValues(index, status).Inc()
	observability.SearchRequestDuration.WithLabelValues(index, status).Observe(duration.Seconds())

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":               result.Hits,
		"estimated_total":    result.EstimatedTotal,
		"processing_time_ms": result.ProcessingTimeMs,
		"facets":             result.FacetDistribution,
		"query":              result.Query,
		"degraded":           result.Degraded,
	})
}

func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")
	if prefix == "" {
		h.writeError(w, http.StatusBadRequest, "missing_query", "Query parameter 'q' is required")
		return
	}
	if len(prefix) > maxSuggestionPrefixLen {
		prefix = prefix[:maxSuggestionPrefixLen]
	}

	index := h.resolveIndex(r.URL.Query().Get("index"))
	docs := h.search.Suggestions(r.Context(), index, prefix, 10)

	suggestions := make([]string, 0, len(docs))
	for _, doc := range docs {
		if title, ok := doc["title"].(string); ok && title != "" {
			suggestions = append(suggestions, title)
			continue
		}
		if name, ok := doc["name"].(string); ok && name != "" {
			suggestions = append(suggestions, name)
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": suggestions,
		"index":       index,
	})
}

func (h *Handler) SearchStats(w http.ResponseWriter, r *http.Request) {
	index := h.resolveIndex(r.URL.Query().Get("index"))
	stats, err := h.search.Stats(r.Context(), index)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "search_unavailable", "search backend unreachable")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) resolveIndex(name string) string {
	if name == "freelancers" {
		return h.search.FreelancersIndex()
	}
	return h.search.TemplatesIndex()
}

// filterFromQuery translates the filterable query parameters into a
// Meilisearch filter string. Unknown parameters are ignored.
func (h *Handler) filterFromQuery(q map[string][]string) (string, error) {
	f := search.NewFilter()

	if v := first(q, "category"); v != "" {
		f.Eq("category", v)
	}
	if tags := q["tags"]; len(tags) > 0 {
		vals := make([]any, len(tags))
		for i, t := range tags {
			vals[i] = t
		}
		f.In("tags", vals...)
	}
	if v := first(q, "min_rating"); v != "" {
		if rating, err := strconv.ParseFloat(v, 64); err == nil {
			f.Range("rating", &rating, nil)
		}
	}
	if v := first(q, "max_hourly_rate"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			f.Range("hourly_rate", nil, &rate)
		}
	}
	if v := first(q, "license"); v != "" {
		f.Eq("license", v)
	}
	if first(q, "available") == "true" {
		f.Eq("availability", true)
	}

	return f.Build()
}

func first(q map[string][]string, key string) string {
	if vs := q[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}
