package search

import (
	"context"
	"fmt"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/config"
	"github.com/flowmarket/marketplace/internal/models"
	"github.com/flowmarket/marketplace/internal/observability"
	"github.com/flowmarket/marketplace/internal/resilience"
)

// Client is the gateway to the hosted search engine. Query failures are
// absorbed: Search always returns a result envelope, degraded to empty
// when the provider is unreachable. Index maintenance operations return
// errors to their callers, which log and continue.
type Client struct {
	meili    *meilisearch.Client
	cb       *gobreaker.CircuitBreaker
	cfg      config.MeilisearchConfig
	retryCfg resilience.RetryConfig
	logger   *zap.Logger
}

func NewClient(cfg config.MeilisearchConfig, searchCfg config.SearchConfig, logger *zap.Logger) (*Client, error) {
	meili := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:    cfg.Host,
		APIKey:  cfg.APIKey,
		Timeout: cfg.RequestTimeout,
	})

	health, err := meili.Health()
	if err != nil {
		return nil, fmt.Errorf("pinging meilisearch: %w", err)
	}
	if health.Status != "available" {
		return nil, fmt.Errorf("meilisearch unhealthy: status %q", health.Status)
	}

	cb := resilience.NewCircuitBreaker("meilisearch-primary", searchCfg.CircuitBreaker, logger)

	logger.Info("meilisearch client connected", zap.String("host", cfg.Host))

	return &Client{
		meili: meili,
		cb:    cb,
		cfg:   cfg,
		retryCfg: resilience.RetryConfig{
			MaxAttempts: searchCfg.Retry.MaxAttempts,
			InitialWait: searchCfg.Retry.InitialWait,
			MaxWait:     searchCfg.Retry.MaxWait,
			Multiplier:  searchCfg.Retry.Multiplier,
		},
		logger: logger,
	}, nil
}

// Params describes one search request. An empty or "*" query means
// browse mode (match all documents). Limit 0 is a valid facets-only
// request when Facets is set.
type Params struct {
	Query  string
	Filter string
	Limit  int64
	Offset int64
	Facets []string
	Sort   []string
}

// Search runs a query against index. It never returns an error: any
// provider failure is logged and an empty envelope is returned, because
// a degraded empty result beats a failed user request here.
func (c *Client) Search(ctx context.Context, index string, p Params) *models.SearchResult {
	ctx, span := observability.StartSpan(ctx, "meili.search",
		attribute.String("search.index", index),
	)
	defer span.End()

	query := p.Query
	if query == "*" {
		query = ""
	}

	req := &meilisearch.SearchRequest{
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	// The client library drops a zero limit from the request body and the
	// engine then applies its own default page size. Ask for a single hit
	// and discard it after the response so a facets-only request stays
	// hit-free.
	facetsOnly := p.Limit == 0
	if facetsOnly {
		req.Limit = 1
	}
	if p.Filter != "" {
		req.Filter = p.Filter
	}
	if len(p.Facets) > 0 {
		req.Facets = p.Facets
	}
	if len(p.Sort) > 0 {
		req.Sort = p.Sort
	}

	start := time.Now()

	cbResult, err := c.cb.Execute(func() (any, error) {
		var resp *meilisearch.SearchResponse
		retryErr := resilience.Retry(ctx, c.retryCfg, func() error {
			var execErr error
			resp, execErr = c.meili.Index(index).Search(query, req)
			return execErr
		})
		return resp, retryErr
	})

	duration := time.Since(start)

	if err != nil {
		observability.MeiliQueryDuration.WithLabelValues(index, "error").Observe(duration.Seconds())
		observability.DegradedSearchesTotal.Inc()
		c.logger.Error("search degraded to empty result",
			zap.String("index", index),
			zap.String("trace_id", observability.TraceIDFromContext(ctx)),
			zap.Error(err),
		)
		return models.EmptySearchResult(p.Query)
	}

	resp, ok := cbResult.(*meilisearch.SearchResponse)
	if !ok || resp == nil {
		observability.MeiliQueryDuration.WithLabelValues(index, "error").Observe(duration.Seconds())
		observability.DegradedSearchesTotal.Inc()
		c.logger.Error("search returned malformed response", zap.String("index", index))
		return models.EmptySearchResult(p.Query)
	}

	observability.MeiliQueryDuration.WithLabelValues(index, "success").Observe(duration.Seconds())

	result := normalizeResponse(p.Query, resp)
	if facetsOnly {
		result.Hits = result.Hits[:0]
	}
	return result
}

func normalizeResponse(query string, resp *meilisearch.SearchResponse) *models.SearchResult {
	hits := make([]models.Document, 0, len(resp.Hits))
	for _, raw := range resp.Hits {
		if doc, ok := raw.(map[string]any); ok {
			hits = append(hits, models.Document(doc))
		}
	}

	var facets map[string]any
	if fd, ok := resp.FacetDistribution.(map[string]any); ok {
		facets = fd
	}

	return &models.SearchResult{
		Hits:              hits,
		EstimatedTotal:    resp.EstimatedTotalHits,
		ProcessingTimeMs:  resp.ProcessingTimeMs,
		FacetDistribution: facets,
		Query:             query,
	}
}

// Suggestions returns up to limit short completions for a prefix, used
// by typeahead. Failures degrade to an empty list.
func (c *Client) Suggestions(ctx context.Context, index, prefix string, limit int64) []models.Document {
	result := c.Search(ctx, index, Params{Query: prefix, Limit: limit})
	return result.Hits
}

// EnsureIndexes creates and configures both indexes. Safe to call on
// every startup: an existing index is left alone except for settings,
// which are re-applied. Settings failures are logged and skipped so a
// half-configured search engine never blocks startup.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	if err := c.ensureIndex(ctx, c.cfg.TemplatesIndex, templatesSettings()); err != nil {
		return err
	}
	return c.ensureIndex(ctx, c.cfg.FreelancersIndex, freelancersSettings())
}

func (c *Client) ensureIndex(ctx context.Context, uid string, settings *meilisearch.Settings) error {
	_, span := observability.StartSpan(ctx, "meili.ensure_index",
		attribute.String("search.index", uid),
	)
	defer span.End()

	if _, err := c.meili.GetIndex(uid); err != nil {
		if _, err := c.meili.CreateIndex(&meilisearch.IndexConfig{Uid: uid, PrimaryKey: "id"}); err != nil {
			return fmt.Errorf("creating index %s: %w", uid, err)
		}
		c.logger.Info("search index created", zap.String("index", uid))
	}

	if _, err := c.meili.Index(uid).UpdateSettings(settings); err != nil {
		c.logger.Warn("applying index settings failed",
			zap.String("index", uid),
			zap.Error(err),
		)
	}

	return nil
}

func templatesSettings() *meilisearch.Settings {
	return &meilisearch.Settings{
		SearchableAttributes: []string{"title", "description", "category", "tags", "author_name"},
		FilterableAttributes: []string{"category", "tags", "license", "rating", "downloads"},
		SortableAttributes:   []string{"rating", "downloads", "created_at"},
		RankingRules: []string{
			"words", "typo", "proximity", "attribute", "sort", "exactness",
			"downloads:desc", "rating:desc",
		},
		Synonyms: map[string][]string{
			"automacao":  {"automation", "workflow"},
			"automation": {"automacao", "workflow"},
			"fluxo":      {"workflow", "flow"},
			"workflow":   {"fluxo", "automation"},
			"modelo":     {"template"},
			"template":   {"modelo"},
			"integracao": {"integration"},
		},
	}
}

func freelancersSettings() *meilisearch.Settings {
	return &meilisearch.Settings{
		SearchableAttributes: []string{"name", "bio", "skills"},
		FilterableAttributes: []string{"skills", "expertise_level", "availability", "hourly_rate", "rating"},
		SortableAttributes:   []string{"hourly_rate", "rating", "completed_projects"},
		RankingRules: []string{
			"words", "typo", "proximity", "attribute", "sort", "exactness",
			"rating:desc", "completed_projects:desc",
		},
		Synonyms: map[string][]string{
			"desenvolvedor": {"developer"},
			"developer":     {"desenvolvedor"},
			"especialista":  {"expert", "specialist"},
		},
	}
}

// IndexDocument adds or replaces a single document.
func (c *Client) IndexDocument(ctx context.Context, index string, doc any) error {
	_, span := observability.StartSpan(ctx, "meili.index_document",
		attribute.String("search.index", index),
	)
	defer span.End()

	if _, err := c.meili.Index(index).AddDocuments([]any{doc}); err != nil {
		observability.IndexingEventsTotal.WithLabelValues("index", "error").Inc()
		return fmt.Errorf("indexing document into %s: %w", index, err)
	}
	observability.IndexingEventsTotal.WithLabelValues("index", "success").Inc()
	return nil
}

// UpdateDocument applies a partial update to a single document.
func (c *Client) UpdateDocument(ctx context.Context, index string, doc any) error {
	_, span := observability.StartSpan(ctx, "meili.update_document",
		attribute.String("search.index", index),
	)
	defer span.End()

	if _, err := c.meili.Index(index).UpdateDocuments([]any{doc}); err != nil {
		observability.IndexingEventsTotal.WithLabelValues("update", "error").Inc()
		return fmt.Errorf("updating document in %s: %w", index, err)
	}
	observability.IndexingEventsTotal.WithLabelValues("update", "success").Inc()
	return nil
}

// IndexDocuments bulk-indexes docs in chunks. A failed chunk is logged
// and skipped so one bad batch never aborts the rest. Returns the number
// of documents submitted successfully.
func (c *Client) IndexDocuments(ctx context.Context, index string, docs []any) int {
	ctx, span := observability.StartSpan(ctx, "meili.bulk_index",
		attribute.String("search.index", index),
		attribute.Int("search.documents", len(docs)),
	)
	defer span.End()

	chunkSize := c.cfg.BulkChunkSize
	if chunkSize <= 0 {
		chunkSize = 500
	}

	indexed := 0
	for start := 0; start < len(docs); start += chunkSize {
		end := start + chunkSize
		if end > len(docs) {
			end = len(docs)
		}
		chunk := docs[start:end]

		if _, err := c.meili.Index(index).AddDocuments(chunk); err != nil {
			observability.IndexingEventsTotal.WithLabelValues("bulk", "error").Inc()
			c.logger.Error("bulk index chunk failed",
				zap.String("index", index),
				zap.Int("chunk_start", start),
				zap.Int("chunk_size", len(chunk)),
				zap.String("trace_id", observability.TraceIDFromContext(ctx)),
				zap.Error(err),
			)
			continue
		}
		observability.IndexingEventsTotal.WithLabelValues("bulk", "success").Inc()
		indexed += len(chunk)
	}

	return indexed
}

// DeleteDocument removes one document by identifier.
func (c *Client) DeleteDocument(ctx context.Context, index, id string) error {
	_, span := observability.StartSpan(ctx, "meili.delete_document",
		attribute.String("search.index", index),
	)
	defer span.End()

	if _, err := c.meili.Index(index).DeleteDocument(id); err != nil {
		observability.IndexingEventsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("deleting document %s from %s: %w", id, index, err)
	}
	observability.IndexingEventsTotal.WithLabelValues("delete", "success").Inc()
	return nil
}

// ClearIndex drops all documents from an index. Used before a full
// reindex.
func (c *Client) ClearIndex(ctx context.Context, index string) error {
	_, span := observability.StartSpan(ctx, "meili.clear_index",
		attribute.String("search.index", index),
	)
	defer span.End()

	if _, err := c.meili.Index(index).DeleteAllDocuments(); err != nil {
		return fmt.Errorf("clearing index %s: %w", index, err)
	}
	return nil
}

// Stats reports document counts for an index.
func (c *Client) Stats(ctx context.Context, index string) (*models.IndexStats, error) {
	stats, err := c.meili.Index(index).GetStats()
	if err != nil {
		return nil, fmt.Errorf("fetching stats for %s: %w", index, err)
	}
	return &models.IndexStats{
		NumberOfDocuments: stats.NumberOfDocuments,
		IsIndexing:        stats.IsIndexing,
		FieldDistribution: stats.FieldDistribution,
	}, nil
}

// TemplatesIndex returns the configured templates index name.
func (c *Client) TemplatesIndex() string { return c.cfg.TemplatesIndex }

// FreelancersIndex returns the configured freelancers index name.
func (c *Client) FreelancersIndex() string { return c.cfg.FreelancersIndex }

// HealthCheck verifies the search engine is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	health, err := c.meili.Health()
	if err != nil {
		return fmt.Errorf("meilisearch health check: %w", err)
	}
	if health.Status != "available" {
		return fmt.Errorf("meilisearch status %q", health.Status)
	}
	return nil
}
